package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"turtlesoup/internal/db"
)

var (
	ErrUnknownCategory = errors.New("unknown leaderboard category")
	ErrNotFound        = errors.New("not found")
)

// Categories lists the leaderboards GetLeaderboard understands.
var Categories = []string{"wins", "games", "questions", "fastest"}

type Queries struct {
	DB *db.DB
}

func NewQueries(database *db.DB) *Queries {
	return &Queries{DB: database}
}

func (q *Queries) GetPlayerGameStats(ctx context.Context, gameID, identity string) (*PlayerGameStats, error) {
	stats := &PlayerGameStats{
		GameID:   gameID,
		Identity: identity,
	}

	var winner sql.NullString
	err := q.DB.QueryRow(ctx, `
		SELECT g.winner, g.aborted,
			(SELECT COUNT(*) FROM game_players WHERE game_id = g.id)
		FROM game_players gp
		JOIN games g ON g.id = gp.game_id
		WHERE gp.game_id = $1 AND gp.identity = $2
	`, gameID, identity).Scan(&winner, &stats.Aborted, &stats.PlayersInGame)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting game player: %w", err)
	}
	stats.Won = winner.Valid && winner.String == identity

	err = q.DB.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE identity = $2),
			COUNT(*)
		FROM questions
		WHERE game_id = $1
	`, gameID, identity).Scan(&stats.Questions, &stats.GameQuestions)
	if err != nil {
		return nil, fmt.Errorf("getting question stats: %w", err)
	}

	return stats, nil
}

func (q *Queries) GetPlayerLifetimeStats(ctx context.Context, identity string) (*PlayerLifetimeStats, error) {
	stats := &PlayerLifetimeStats{
		Identity: identity,
	}

	if _, err := q.DB.GetPlayer(ctx, identity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var fewest sql.NullInt64
	err := q.DB.QueryRow(ctx, `
		SELECT
			COUNT(*) AS games_played,
			COUNT(*) FILTER (WHERE g.winner = $1) AS win_count,
			MIN(qc.n) FILTER (WHERE g.winner = $1)
		FROM game_players gp
		JOIN games g ON g.id = gp.game_id
		LEFT JOIN (SELECT game_id, COUNT(*) AS n FROM questions GROUP BY game_id) qc ON qc.game_id = g.id
		WHERE gp.identity = $1 AND g.ended_at IS NOT NULL
	`, identity).Scan(&stats.GamesPlayed, &stats.WinCount, &fewest)
	if err != nil {
		return nil, fmt.Errorf("getting lifetime stats: %w", err)
	}
	stats.FewestToSolve = int(fewest.Int64)

	err = q.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM questions WHERE identity = $1
	`, identity).Scan(&stats.QuestionsAsked)
	if err != nil {
		return nil, fmt.Errorf("getting questions asked: %w", err)
	}

	// Calculate win streak (most recent consecutive wins). Aborted games
	// neither extend nor break it.
	rows, err := q.DB.Query(ctx, `
		SELECT COALESCE(g.winner = $1, false)
		FROM game_players gp
		JOIN games g ON g.id = gp.game_id
		WHERE gp.identity = $1 AND g.ended_at IS NOT NULL AND NOT g.aborted
		ORDER BY g.ended_at DESC
	`, identity)
	if err != nil {
		return nil, fmt.Errorf("getting win streak: %w", err)
	}
	defer rows.Close()

	streak := 0
	for rows.Next() {
		var won bool
		if err := rows.Scan(&won); err != nil {
			return nil, err
		}
		if !won {
			break
		}
		streak++
	}
	stats.WinStreak = streak

	stored, err := q.DB.GetPlayerBadges(ctx, identity)
	if err != nil {
		return nil, err
	}
	stats.Badges = mergeBadges(stored, EvaluateLifetimeBadges(*stats))

	return stats, nil
}

func mergeBadges(stored []string, evaluated []Badge) []Badge {
	seen := make(map[BadgeID]bool)
	var out []Badge
	for _, id := range stored {
		b, ok := AllBadges[BadgeID(id)]
		if ok && !seen[b.ID] {
			seen[b.ID] = true
			out = append(out, b)
		}
	}
	for _, b := range evaluated {
		if !seen[b.ID] {
			seen[b.ID] = true
			out = append(out, b)
		}
	}
	return out
}

func (q *Queries) GetLeaderboard(ctx context.Context, category string, limit int) ([]LeaderboardEntry, error) {
	var query string
	switch category {
	case "wins":
		query = `
			SELECT winner, COUNT(*) AS value
			FROM games
			WHERE winner IS NOT NULL
			GROUP BY winner
			ORDER BY value DESC, winner
			LIMIT $1`
	case "games":
		query = `
			SELECT gp.identity, COUNT(*) AS value
			FROM game_players gp
			JOIN games g ON g.id = gp.game_id AND g.ended_at IS NOT NULL
			GROUP BY gp.identity
			ORDER BY value DESC, gp.identity
			LIMIT $1`
	case "questions":
		query = `
			SELECT identity, COUNT(*) AS value
			FROM questions
			GROUP BY identity
			ORDER BY value DESC, identity
			LIMIT $1`
	case "fastest":
		query = `
			SELECT g.winner, MIN(qc.n) AS value
			FROM games g
			JOIN (SELECT game_id, COUNT(*) AS n FROM questions GROUP BY game_id) qc ON qc.game_id = g.id
			WHERE g.winner IS NOT NULL
			GROUP BY g.winner
			ORDER BY value ASC, g.winner
			LIMIT $1`
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}

	rows, err := q.DB.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("getting leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []LeaderboardEntry{}
	rank := 1
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Identity, &e.Value); err != nil {
			return nil, err
		}
		e.Rank = rank
		rank++
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (q *Queries) GetGameRecap(ctx context.Context, gameID string) (*GameRecap, error) {
	g, err := q.DB.GetGame(ctx, gameID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	recap := &GameRecap{
		GameID:    g.ID,
		RoomCode:  g.RoomCode,
		StoryID:   g.StoryID,
		Host:      g.Host,
		Winner:    g.Winner,
		Aborted:   g.Aborted,
		StartedAt: g.StartedAt,
		EndedAt:   g.EndedAt,
		Players:   g.Players,
		Questions: []QuestionRecap{},
	}

	qs, err := q.DB.GetQuestions(ctx, gameID)
	if err != nil {
		return nil, err
	}
	for _, qr := range qs {
		recap.Questions = append(recap.Questions, QuestionRecap{
			Identity: qr.Identity,
			Question: qr.Question,
			Answer:   qr.Answer,
			Correct:  qr.Correct,
		})
	}
	return recap, nil
}

// AwardGameBadges stores the badges every participant earned by the end of
// gameID. Failures are returned after every player has been tried.
func (q *Queries) AwardGameBadges(ctx context.Context, gameID string) error {
	ids, err := q.DB.GetGamePlayers(ctx, gameID)
	if err != nil {
		return err
	}

	var errs []error
	for _, id := range ids {
		game, err := q.GetPlayerGameStats(ctx, gameID, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		life, err := q.GetPlayerLifetimeStats(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, b := range append(EvaluateGameBadges(*game), EvaluateLifetimeBadges(*life)...) {
			if err := q.DB.AwardBadge(ctx, id, string(b.ID), &gameID); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
