package analytics

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"turtlesoup/internal/db"
)

func TestMergeBadges(t *testing.T) {
	got := mergeBadges(
		[]string{"sharp_mind", "retired_badge", "first_solve"},
		[]Badge{AllBadges[BadgeFirstSolve], AllBadges[BadgeVeteran]},
	)
	want := []BadgeID{BadgeSharpMind, BadgeFirstSolve, BadgeVeteran}
	if len(got) != len(want) {
		t.Fatalf("mergeBadges() = %v, want %v", got, want)
	}
	for i, b := range got {
		if b.ID != want[i] {
			t.Errorf("badge %d = %s, want %s", i, b.ID, want[i])
		}
	}
}

func getTestQueries(t *testing.T) *Queries {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}
	ctx := context.Background()
	database, err := db.Connect(ctx, dsn, zerolog.Nop())
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if err := database.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	t.Cleanup(func() {
		for _, table := range []string{"player_badges", "questions", "game_players", "games", "players"} {
			database.Exec(ctx, "DELETE FROM "+table)
		}
		database.Close()
	})
	return NewQueries(database)
}

func playGame(t *testing.T, q *Queries, id string, now time.Time, winner string, asked ...string) {
	t.Helper()
	ctx := context.Background()
	err := q.DB.CreateGame(ctx, db.GameRecord{
		ID: id, RoomCode: "ABCD", Host: "alice", Players: []string{"alice", "bob"}, StartedAt: now,
	})
	if err != nil {
		t.Fatal(err)
	}
	var qs []db.QuestionRecord
	for i, who := range asked {
		qs = append(qs, db.QuestionRecord{
			GameID: id, Seq: i + 1, Identity: who, Question: "q", Answer: "no",
			Correct: i == len(asked)-1 && who == winner, AskedAt: now,
		})
	}
	if err := q.DB.BatchRecordQuestions(ctx, qs); err != nil {
		t.Fatal(err)
	}
	if err := q.DB.EndGame(ctx, id, winner, winner == "", now.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
}

func TestQueries_StatsAndBadges(t *testing.T) {
	q := getTestQueries(t)
	ctx := context.Background()

	start := time.Now().Add(-time.Hour)
	playGame(t, q, "g1", start, "bob", "bob", "alice", "bob")
	playGame(t, q, "g2", start.Add(10*time.Minute), "alice", "bob", "alice")

	game, err := q.GetPlayerGameStats(ctx, "g1", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if !game.Won || game.Questions != 2 || game.GameQuestions != 3 || game.PlayersInGame != 2 {
		t.Errorf("GetPlayerGameStats() = %+v", game)
	}

	if err := q.AwardGameBadges(ctx, "g1"); err != nil {
		t.Fatalf("AwardGameBadges() error: %v", err)
	}
	life, err := q.GetPlayerLifetimeStats(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if life.GamesPlayed != 2 || life.WinCount != 1 || life.WinStreak != 0 || life.QuestionsAsked != 3 {
		t.Errorf("GetPlayerLifetimeStats() = %+v", life)
	}
	if life.FewestToSolve != 3 {
		t.Errorf("FewestToSolve = %d, want 3", life.FewestToSolve)
	}
	if !hasBadge(life.Badges, BadgeSharpMind) || !hasBadge(life.Badges, BadgeFirstSolve) {
		t.Errorf("badges = %v", life.Badges)
	}

	board, err := q.GetLeaderboard(ctx, "questions", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(board) != 2 || board[0].Identity != "bob" || board[0].Rank != 1 {
		t.Errorf("GetLeaderboard(questions) = %+v", board)
	}

	recap, err := q.GetGameRecap(ctx, "g2")
	if err != nil {
		t.Fatal(err)
	}
	if recap.Winner != "alice" || len(recap.Questions) != 2 {
		t.Errorf("GetGameRecap() = %+v", recap)
	}
}

func TestQueries_Errors(t *testing.T) {
	q := getTestQueries(t)
	ctx := context.Background()

	if _, err := q.GetLeaderboard(ctx, "reaction", 10); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("GetLeaderboard(reaction) error = %v, want %v", err, ErrUnknownCategory)
	}
	if _, err := q.GetPlayerLifetimeStats(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPlayerLifetimeStats(nobody) error = %v, want %v", err, ErrNotFound)
	}
	if _, err := q.GetGameRecap(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetGameRecap(missing) error = %v, want %v", err, ErrNotFound)
	}
}
