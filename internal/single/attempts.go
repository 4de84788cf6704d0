// Package single runs the single-player mode: one attempt per browser
// session, a fixed question budget and the judge answering every question.
package single

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"turtlesoup/internal/game"
	"turtlesoup/internal/judge"
	"turtlesoup/internal/stories"
)

var (
	ErrInvalidStory = errors.New("invalid story id")
	ErrNoStory      = errors.New("choose a story first")
	ErrGameOver     = errors.New("the game is over")
	ErrEmptyGuess   = errors.New("enter a question or a guess")
)

const (
	msgStart     = "Ask a question or make a guess. The judge answers yes, no or irrelevant."
	msgSolved    = "Congratulations, you found the heart of the story!"
	msgExhausted = "Game over: you have used all %d questions."
	msgJudged    = "Judge: %s"
)

type Catalog interface {
	Get(id int) (stories.Story, bool)
}

// Exchange is one question and its answer. It encodes as a [question,
// answer] pair.
type Exchange struct {
	Question string
	Answer   string
}

func (e Exchange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{e.Question, e.Answer})
}

// Attempt is a session's run at one story.
type Attempt struct {
	StoryID      int
	AttemptsLeft int
	History      []Exchange
	Solved       bool
	Revealed     bool
	LastSeen     time.Time

	gen uint64 // bumped on every restart
}

func (a *Attempt) over() bool {
	return a.Solved || a.Revealed || a.AttemptsLeft <= 0
}

type StartResult struct {
	Surface      string `json:"surface"`
	Message      string `json:"message"`
	AttemptsLeft int    `json:"attempts_left"`
}

type GuessResult struct {
	Judgment       string     `json:"judgment"`
	Success        bool       `json:"success"`
	Message        string     `json:"message"`
	Surface        string     `json:"surface,omitempty"`
	Bottom         string     `json:"bottom,omitempty"`
	FinalGuess     string     `json:"final_guess,omitempty"`
	SpecialMessage string     `json:"special_message,omitempty"`
	AttemptsLeft   *int       `json:"attempts_left,omitempty"`
	History        []Exchange `json:"history"`
}

type RevealResult struct {
	Surface        string `json:"surface"`
	Bottom         string `json:"bottom"`
	Attempts       int    `json:"attempts"`
	SpecialMessage string `json:"special_message,omitempty"`
}

type Store struct {
	// JudgeTimeout bounds each judge call; zero leaves it to the caller.
	JudgeTimeout time.Duration

	mu       sync.Mutex
	attempts map[string]*Attempt
	gen      uint64

	judge       judge.Judge
	catalog     Catalog
	maxAttempts int
	ttl         time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

func NewStore(j judge.Judge, catalog Catalog, maxAttempts int, ttl time.Duration, log zerolog.Logger) *Store {
	return &Store{
		attempts:    make(map[string]*Attempt),
		judge:       j,
		catalog:     catalog,
		maxAttempts: maxAttempts,
		ttl:         ttl,
		now:         time.Now,
		log:         log,
	}
}

// Start begins, or restarts, session's attempt at a story.
func (s *Store) Start(session string, storyID int) (StartResult, error) {
	story, ok := s.catalog.Get(storyID)
	if !ok {
		return StartResult{}, ErrInvalidStory
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.attempts[session] = &Attempt{
		StoryID:      storyID,
		AttemptsLeft: s.maxAttempts,
		LastSeen:     s.now(),
		gen:          s.gen,
	}
	return StartResult{Surface: story.Surface, Message: msgStart, AttemptsLeft: s.maxAttempts}, nil
}

// Guess sends a question to the judge. A judge failure does not use up an
// attempt.
func (s *Store) Guess(ctx context.Context, session, guess string) (GuessResult, error) {
	guess = strings.TrimSpace(guess)

	s.mu.Lock()
	a, story, err := s.lookup(session)
	if err == nil && a.over() {
		err = ErrGameOver
	}
	if err == nil && guess == "" {
		err = ErrEmptyGuess
	}
	if err != nil {
		s.mu.Unlock()
		return GuessResult{}, err
	}
	gen := a.gen
	req := judge.Request{Surface: story.Surface, Solution: story.Bottom, Question: guess}
	for _, ex := range a.History {
		req.History = append(req.History, judge.Exchange{Question: ex.Question, Answer: ex.Answer})
	}
	s.mu.Unlock()

	if s.JudgeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.JudgeTimeout)
		defer cancel()
	}
	verdict, err := s.judge.Evaluate(ctx, req)
	if err != nil {
		s.log.Warn().Err(err).Str("session", session).Msg("judge failed")
		return GuessResult{}, game.ErrJudgeUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a = s.attempts[session]
	if a == nil || a.gen != gen {
		return GuessResult{}, ErrNoStory
	}
	if a.over() {
		return GuessResult{}, ErrGameOver
	}
	a.LastSeen = s.now()

	if verdict.Correct {
		a.Solved = true
		return GuessResult{
			Judgment:       judge.AnswerYes,
			Success:        true,
			Message:        msgSolved,
			Surface:        story.Surface,
			Bottom:         story.Bottom,
			FinalGuess:     guess,
			SpecialMessage: story.SpecialMessage,
			History:        cloneHistory(a.History),
		}, nil
	}

	a.AttemptsLeft--
	a.History = append(a.History, Exchange{Question: guess, Answer: verdict.Answer})
	res := GuessResult{
		Judgment: verdict.Answer,
		Surface:  story.Surface,
		History:  cloneHistory(a.History),
	}
	if a.AttemptsLeft <= 0 {
		res.Message = fmt.Sprintf(msgExhausted, s.maxAttempts)
		res.Bottom = story.Bottom
	} else {
		left := a.AttemptsLeft
		res.Message = fmt.Sprintf(msgJudged, verdict.Answer)
		res.AttemptsLeft = &left
	}
	return res, nil
}

// Reveal ends the attempt and shows the solution.
func (s *Store) Reveal(session string) (RevealResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, story, err := s.lookup(session)
	if err != nil {
		return RevealResult{}, err
	}
	a.Revealed = true
	a.LastSeen = s.now()
	return RevealResult{
		Surface:        story.Surface,
		Bottom:         story.Bottom,
		Attempts:       s.maxAttempts - a.AttemptsLeft,
		SpecialMessage: story.SpecialMessage,
	}, nil
}

// Get returns a copy of session's attempt.
func (s *Store) Get(session string) (Attempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[session]
	if !ok {
		return Attempt{}, false
	}
	cp := *a
	cp.History = cloneHistory(a.History)
	return cp, true
}

func (s *Store) lookup(session string) (*Attempt, stories.Story, error) {
	a, ok := s.attempts[session]
	if !ok {
		return nil, stories.Story{}, ErrNoStory
	}
	story, ok := s.catalog.Get(a.StoryID)
	if !ok {
		return nil, stories.Story{}, ErrNoStory
	}
	return a, story, nil
}

// Sweep drops attempts idle for longer than the TTL.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for id, a := range s.attempts {
		if now.Sub(a.LastSeen) > s.ttl {
			delete(s.attempts, id)
			n++
		}
	}
	return n
}

// Run sweeps periodically until ctx is done.
func (s *Store) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.log.Debug().Int("count", n).Msg("swept idle single-player sessions")
			}
		}
	}
}

func cloneHistory(h []Exchange) []Exchange {
	out := make([]Exchange, len(h))
	copy(out, h)
	return out
}
