// Package judge turns a free-text question about a riddle into a verdict.
package judge

import (
	"context"
	"errors"
	"strings"
)

var ErrUnavailable = errors.New("judge unavailable")

const (
	AnswerYes        = "yes"
	AnswerNo         = "no"
	AnswerIrrelevant = "irrelevant"

	// successToken is what the referee model replies when the solution has been found.
	successToken = "SUCCESS"
)

// Exchange is an earlier question and the answer it got.
type Exchange struct {
	Identity string
	Question string
	Answer   string
}

type Request struct {
	Surface  string
	Solution string
	Question string
	History  []Exchange
}

type Verdict struct {
	Correct bool
	Answer  string
}

type Judge interface {
	Evaluate(ctx context.Context, req Request) (Verdict, error)
}

// ParseReply maps a raw referee reply onto a verdict.
func ParseReply(reply string) Verdict {
	r := strings.TrimSpace(reply)
	if strings.Contains(strings.ToUpper(r), successToken) {
		return Verdict{Correct: true, Answer: AnswerYes}
	}
	var word string
	if fields := strings.Fields(r); len(fields) > 0 {
		word = strings.ToLower(strings.Trim(fields[0], ".,!\"'`"))
	}
	switch word {
	case "yes", "是":
		return Verdict{Answer: AnswerYes}
	case "no", "否":
		return Verdict{Answer: AnswerNo}
	default:
		return Verdict{Answer: AnswerIrrelevant}
	}
}

// Offline is used when no judge API is configured. It only recognises a
// guess that contains the whole solution; every other question is irrelevant.
type Offline struct{}

func (Offline) Evaluate(ctx context.Context, req Request) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return Verdict{}, ErrUnavailable
	}
	q, sol := normalize(req.Question), normalize(req.Solution)
	if sol != "" && strings.Contains(q, sol) {
		return Verdict{Correct: true, Answer: AnswerYes}, nil
	}
	return Verdict{Answer: AnswerIrrelevant}, nil
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
