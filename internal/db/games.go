package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type GameRecord struct {
	ID        string
	RoomCode  string
	StoryID   int
	Host      string
	Players   []string
	StartedAt time.Time
	EndedAt   *time.Time
	Winner    string
	Aborted   bool
}

type QuestionRecord struct {
	GameID   string
	Seq      int
	Identity string
	Question string
	Answer   string
	Correct  bool
	AskedAt  time.Time
}

// CreateGame stores a started game together with its participants.
func (d *DB) CreateGame(ctx context.Context, g GameRecord) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO games (id, room_code, story_id, host, started_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, g.ID, g.RoomCode, g.StoryID, g.Host, g.StartedAt)
	if err != nil {
		return fmt.Errorf("creating game: %w", err)
	}

	for _, identity := range g.Players {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO players (identity, first_seen, last_seen)
			VALUES ($1, $2, $2)
			ON CONFLICT (identity) DO UPDATE SET last_seen = GREATEST(players.last_seen, $2)
		`, identity, g.StartedAt)
		if err != nil {
			return fmt.Errorf("upserting game player: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO game_players (game_id, identity)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, g.ID, identity)
		if err != nil {
			return fmt.Errorf("adding game player: %w", err)
		}
	}
	return tx.Commit()
}

// EndGame marks a game finished. An empty winner records no winner.
func (d *DB) EndGame(ctx context.Context, gameID, winner string, aborted bool, at time.Time) error {
	_, err := d.conn.ExecContext(ctx, `
		UPDATE games SET ended_at = $2, winner = NULLIF($3, ''), aborted = $4
		WHERE id = $1 AND ended_at IS NULL
	`, gameID, at, winner, aborted)
	if err != nil {
		return fmt.Errorf("ending game: %w", err)
	}
	return nil
}

const insertQuestion = `
	INSERT INTO questions (game_id, seq, identity, question, answer, correct, asked_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (game_id, seq) DO NOTHING`

func (d *DB) RecordQuestion(ctx context.Context, q QuestionRecord) error {
	_, err := d.conn.ExecContext(ctx, insertQuestion,
		q.GameID, q.Seq, q.Identity, q.Question, q.Answer, q.Correct, q.AskedAt)
	if err != nil {
		return fmt.Errorf("recording question: %w", err)
	}
	return nil
}

func (d *DB) BatchRecordQuestions(ctx context.Context, questions []QuestionRecord) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertQuestion)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, q := range questions {
		if _, err := stmt.ExecContext(ctx, q.GameID, q.Seq, q.Identity, q.Question, q.Answer, q.Correct, q.AskedAt); err != nil {
			return fmt.Errorf("recording question in batch: %w", err)
		}
	}

	return tx.Commit()
}

func (d *DB) GetGame(ctx context.Context, gameID string) (*GameRecord, error) {
	g := GameRecord{ID: gameID}
	var (
		ended  sql.NullTime
		winner sql.NullString
	)
	err := d.conn.QueryRowContext(ctx, `
		SELECT room_code, story_id, host, started_at, ended_at, winner, aborted
		FROM games WHERE id = $1
	`, gameID).Scan(&g.RoomCode, &g.StoryID, &g.Host, &g.StartedAt, &ended, &winner, &g.Aborted)
	if err != nil {
		return nil, fmt.Errorf("getting game: %w", err)
	}
	if ended.Valid {
		g.EndedAt = &ended.Time
	}
	g.Winner = winner.String

	g.Players, err = d.GetGamePlayers(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (d *DB) GetGamePlayers(ctx context.Context, gameID string) ([]string, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT identity FROM game_players WHERE game_id = $1 ORDER BY identity
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("getting game players: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (d *DB) GetQuestions(ctx context.Context, gameID string) ([]QuestionRecord, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT seq, identity, question, answer, correct, asked_at
		FROM questions WHERE game_id = $1 ORDER BY seq
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("getting questions: %w", err)
	}
	defer rows.Close()

	var qs []QuestionRecord
	for rows.Next() {
		q := QuestionRecord{GameID: gameID}
		if err := rows.Scan(&q.Seq, &q.Identity, &q.Question, &q.Answer, &q.Correct, &q.AskedAt); err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	return qs, rows.Err()
}
