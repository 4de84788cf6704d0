package db

import (
	"context"
	"fmt"
)

func (d *DB) AwardBadge(ctx context.Context, identity, badgeID string, gameID *string) error {
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO player_badges (identity, badge_id, game_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity, badge_id) DO NOTHING
	`, identity, badgeID, gameID)
	if err != nil {
		return fmt.Errorf("awarding badge: %w", err)
	}
	return nil
}

func (d *DB) GetPlayerBadges(ctx context.Context, identity string) ([]string, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT badge_id FROM player_badges WHERE identity = $1 ORDER BY awarded_at, badge_id
	`, identity)
	if err != nil {
		return nil, fmt.Errorf("getting badges: %w", err)
	}
	defer rows.Close()

	var badges []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		badges = append(badges, id)
	}
	return badges, rows.Err()
}
