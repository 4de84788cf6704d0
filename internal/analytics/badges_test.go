package analytics

import "testing"

func TestEvaluateGameBadges_SharpMind(t *testing.T) {
	stats := PlayerGameStats{Won: true, Questions: 2, GameQuestions: 3}
	badges := EvaluateGameBadges(stats)
	if !hasBadge(badges, BadgeSharpMind) {
		t.Error("should earn Sharp Mind solving on the 3rd question")
	}
}

func TestEvaluateGameBadges_NoSharpMind(t *testing.T) {
	stats := PlayerGameStats{Won: true, Questions: 2, GameQuestions: 4}
	if hasBadge(EvaluateGameBadges(stats), BadgeSharpMind) {
		t.Error("should not earn Sharp Mind solving on the 4th question")
	}

	stats = PlayerGameStats{Won: false, Questions: 1, GameQuestions: 2}
	if hasBadge(EvaluateGameBadges(stats), BadgeSharpMind) {
		t.Error("should not earn Sharp Mind without winning")
	}
}

func TestEvaluateGameBadges_LuckyGuess(t *testing.T) {
	stats := PlayerGameStats{Won: true, Questions: 1, GameQuestions: 7}
	badges := EvaluateGameBadges(stats)
	if !hasBadge(badges, BadgeLuckyGuess) {
		t.Error("should earn Lucky Guess solving with the first own question")
	}
	if hasBadge(badges, BadgeSharpMind) {
		t.Error("should not earn Sharp Mind after 7 questions")
	}
}

func TestEvaluateGameBadges_Marathon(t *testing.T) {
	stats := PlayerGameStats{Questions: 5, GameQuestions: 20}
	if !hasBadge(EvaluateGameBadges(stats), BadgeMarathon) {
		t.Error("should earn Marathon with 20 questions")
	}

	stats.GameQuestions = 19
	if hasBadge(EvaluateGameBadges(stats), BadgeMarathon) {
		t.Error("should not earn Marathon with 19 questions")
	}
}

func TestEvaluateGameBadges_AbortedEarnsNothing(t *testing.T) {
	stats := PlayerGameStats{GameQuestions: 30, Aborted: true}
	if badges := EvaluateGameBadges(stats); len(badges) != 0 {
		t.Errorf("aborted game earned %d badges", len(badges))
	}
}

func TestEvaluateGameBadges_MultipleBadges(t *testing.T) {
	stats := PlayerGameStats{Won: true, Questions: 1, GameQuestions: 1}
	badges := EvaluateGameBadges(stats)
	if len(badges) != 2 {
		t.Errorf("expected 2 badges, got %d", len(badges))
	}
}

func TestEvaluateLifetimeBadges_FirstSolve(t *testing.T) {
	if !hasBadge(EvaluateLifetimeBadges(PlayerLifetimeStats{WinCount: 1}), BadgeFirstSolve) {
		t.Error("should earn First Solve with 1 win")
	}
	if hasBadge(EvaluateLifetimeBadges(PlayerLifetimeStats{GamesPlayed: 4}), BadgeFirstSolve) {
		t.Error("should not earn First Solve without a win")
	}
}

func TestEvaluateLifetimeBadges_Unstoppable(t *testing.T) {
	stats := PlayerLifetimeStats{WinStreak: 3}
	badges := EvaluateLifetimeBadges(stats)
	if !hasBadge(badges, BadgeUnstoppable) {
		t.Error("should earn Unstoppable with 3-game streak")
	}
}

func TestEvaluateLifetimeBadges_NoUnstoppable(t *testing.T) {
	stats := PlayerLifetimeStats{WinStreak: 2}
	badges := EvaluateLifetimeBadges(stats)
	if hasBadge(badges, BadgeUnstoppable) {
		t.Error("should not earn Unstoppable with 2-game streak")
	}
}

func TestEvaluateLifetimeBadges_Veteran(t *testing.T) {
	stats := PlayerLifetimeStats{GamesPlayed: 10}
	badges := EvaluateLifetimeBadges(stats)
	if !hasBadge(badges, BadgeVeteran) {
		t.Error("should earn Veteran with 10 games")
	}
}

func TestEvaluateLifetimeBadges_NoVeteran(t *testing.T) {
	stats := PlayerLifetimeStats{GamesPlayed: 9}
	badges := EvaluateLifetimeBadges(stats)
	if hasBadge(badges, BadgeVeteran) {
		t.Error("should not earn Veteran with 9 games")
	}
}

func TestEvaluateLifetimeBadges_Curious(t *testing.T) {
	if !hasBadge(EvaluateLifetimeBadges(PlayerLifetimeStats{QuestionsAsked: 50}), BadgeCurious) {
		t.Error("should earn Curious with 50 questions")
	}
	if hasBadge(EvaluateLifetimeBadges(PlayerLifetimeStats{QuestionsAsked: 49}), BadgeCurious) {
		t.Error("should not earn Curious with 49 questions")
	}
}

func hasBadge(badges []Badge, id BadgeID) bool {
	for _, b := range badges {
		if b.ID == id {
			return true
		}
	}
	return false
}
