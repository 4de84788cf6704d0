package db

import (
	"context"
	"fmt"
	"time"
)

type PlayerRecord struct {
	Identity  string
	FirstSeen time.Time
	LastSeen  time.Time
}

func (d *DB) UpsertPlayer(ctx context.Context, identity string, seen time.Time) error {
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO players (identity, first_seen, last_seen)
		VALUES ($1, $2, $2)
		ON CONFLICT (identity) DO UPDATE SET last_seen = GREATEST(players.last_seen, $2)
	`, identity, seen)
	if err != nil {
		return fmt.Errorf("upserting player: %w", err)
	}
	return nil
}

func (d *DB) GetPlayer(ctx context.Context, identity string) (*PlayerRecord, error) {
	var p PlayerRecord
	err := d.conn.QueryRowContext(ctx, `
		SELECT identity, first_seen, last_seen FROM players WHERE identity = $1
	`, identity).Scan(&p.Identity, &p.FirstSeen, &p.LastSeen)
	if err != nil {
		return nil, fmt.Errorf("getting player: %w", err)
	}
	return &p, nil
}
