package analytics

import "time"

// PlayerGameStats is one player's part in a single game.
type PlayerGameStats struct {
	Identity      string `json:"identity"`
	GameID        string `json:"game_id"`
	Questions     int    `json:"questions"`
	GameQuestions int    `json:"game_questions"` // asked by everyone
	Won           bool   `json:"won"`
	Aborted       bool   `json:"aborted"`
	PlayersInGame int    `json:"players_in_game"`
}

type PlayerLifetimeStats struct {
	Identity       string  `json:"identity"`
	GamesPlayed    int     `json:"games_played"`
	WinCount       int     `json:"wins"`
	WinStreak      int     `json:"win_streak"`
	QuestionsAsked int     `json:"questions_asked"`
	FewestToSolve  int     `json:"fewest_to_solve,omitempty"`
	Badges         []Badge `json:"badges"`
}

type LeaderboardEntry struct {
	Identity string `json:"identity"`
	Value    int    `json:"value"`
	Rank     int    `json:"rank"`
}

type QuestionRecap struct {
	Identity string `json:"username"`
	Question string `json:"question"`
	Answer   string `json:"judgment"`
	Correct  bool   `json:"correct"`
}

type GameRecap struct {
	GameID    string          `json:"game_id"`
	RoomCode  string          `json:"room_id"`
	StoryID   int             `json:"story_id"`
	Host      string          `json:"host"`
	Winner    string          `json:"winner,omitempty"`
	Aborted   bool            `json:"aborted"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
	Players   []string        `json:"players"`
	Questions []QuestionRecap `json:"questions"`
}
