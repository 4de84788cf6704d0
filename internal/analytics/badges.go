package analytics

type BadgeID string

const (
	BadgeSharpMind   BadgeID = "sharp_mind"
	BadgeLuckyGuess  BadgeID = "lucky_guess"
	BadgeMarathon    BadgeID = "marathon"
	BadgeFirstSolve  BadgeID = "first_solve"
	BadgeUnstoppable BadgeID = "unstoppable"
	BadgeVeteran     BadgeID = "veteran"
	BadgeCurious     BadgeID = "curious"
)

type Badge struct {
	ID          BadgeID `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
}

var AllBadges = map[BadgeID]Badge{
	BadgeSharpMind:   {ID: BadgeSharpMind, Name: "Sharp Mind", Description: "Solved a story within 3 questions", Icon: "🧠"},
	BadgeLuckyGuess:  {ID: BadgeLuckyGuess, Name: "Lucky Guess", Description: "Solved a story with your first question", Icon: "🍀"},
	BadgeMarathon:    {ID: BadgeMarathon, Name: "Marathon", Description: "Finished a game of 20+ questions", Icon: "🏃"},
	BadgeFirstSolve:  {ID: BadgeFirstSolve, Name: "First Solve", Description: "Solved your first story", Icon: "🐢"},
	BadgeUnstoppable: {ID: BadgeUnstoppable, Name: "Unstoppable", Description: "3-game win streak", Icon: "🔥"},
	BadgeVeteran:     {ID: BadgeVeteran, Name: "Veteran", Description: "Played 10+ games", Icon: "🏅"},
	BadgeCurious:     {ID: BadgeCurious, Name: "Curious", Description: "Asked 50+ questions", Icon: "❓"},
}

// EvaluateGameBadges checks which badges a player earned in a single game.
func EvaluateGameBadges(stats PlayerGameStats) []Badge {
	var earned []Badge
	if stats.Aborted {
		return earned
	}

	if stats.Won && stats.GameQuestions <= 3 {
		earned = append(earned, AllBadges[BadgeSharpMind])
	}

	if stats.Won && stats.Questions == 1 {
		earned = append(earned, AllBadges[BadgeLuckyGuess])
	}

	if stats.GameQuestions >= 20 {
		earned = append(earned, AllBadges[BadgeMarathon])
	}

	return earned
}

// EvaluateLifetimeBadges checks which badges a player earned across their career.
func EvaluateLifetimeBadges(stats PlayerLifetimeStats) []Badge {
	var earned []Badge

	if stats.WinCount >= 1 {
		earned = append(earned, AllBadges[BadgeFirstSolve])
	}

	// Unstoppable: 3-game win streak
	if stats.WinStreak >= 3 {
		earned = append(earned, AllBadges[BadgeUnstoppable])
	}

	// Veteran: 10+ games
	if stats.GamesPlayed >= 10 {
		earned = append(earned, AllBadges[BadgeVeteran])
	}

	if stats.QuestionsAsked >= 50 {
		earned = append(earned, AllBadges[BadgeCurious])
	}

	return earned
}
