package db

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"turtlesoup/internal/game"
)

const (
	archiveBuffer = 1000
	batchSize     = 50
	flushEvery    = 500 * time.Millisecond
	writeTimeout  = 5 * time.Second
)

// Writer is the subset of DB the archive writes through.
type Writer interface {
	CreateGame(ctx context.Context, g GameRecord) error
	BatchRecordQuestions(ctx context.Context, qs []QuestionRecord) error
	EndGame(ctx context.Context, gameID, winner string, aborted bool, at time.Time) error
}

type gameEnd struct {
	gameID  string
	winner  string
	aborted bool
	at      time.Time
}

type archiveOp struct {
	start    *GameRecord
	question *QuestionRecord
	end      *gameEnd
}

// Archive records room lifecycle facts in the background. Its Recorder
// methods never block: when the buffer is full the fact is dropped and
// logged. Questions are batched; a game start or end flushes pending
// questions first so rows land in order.
type Archive struct {
	w       Writer
	ops     chan archiveOp
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
	onEnded func(ctx context.Context, gameID string)
	log     zerolog.Logger
}

// NewArchive starts the batch writer. onEnded, if set, runs on the writer
// goroutine after a game's end has been stored.
func NewArchive(w Writer, onEnded func(ctx context.Context, gameID string), log zerolog.Logger) *Archive {
	a := &Archive{
		w:       w,
		ops:     make(chan archiveOp, archiveBuffer),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		onEnded: onEnded,
		log:     log,
	}
	go a.run()
	return a
}

func (a *Archive) GameStarted(roomID, host string, s game.Session) {
	ids := make([]string, 0, len(s.TurnOrder)+1)
	seen := make(map[string]bool, len(s.TurnOrder)+1)
	for _, id := range append([]string{host}, s.TurnOrder...) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	a.enqueue(archiveOp{start: &GameRecord{
		ID:        s.ID,
		RoomCode:  roomID,
		StoryID:   s.StoryID,
		Host:      host,
		Players:   ids,
		StartedAt: s.StartedAt,
	}})
}

func (a *Archive) QuestionJudged(gameID string, seq int, ex game.Exchange) {
	a.enqueue(archiveOp{question: &QuestionRecord{
		GameID:   gameID,
		Seq:      seq,
		Identity: ex.Identity,
		Question: ex.Question,
		Answer:   ex.Answer,
		Correct:  ex.Correct,
		AskedAt:  ex.AskedAt,
	}})
}

func (a *Archive) GameEnded(gameID, winner string, aborted bool, at time.Time) {
	a.enqueue(archiveOp{end: &gameEnd{gameID: gameID, winner: winner, aborted: aborted, at: at}})
}

func (a *Archive) enqueue(op archiveOp) {
	select {
	case <-a.quit:
		a.log.Warn().Msg("archive closed, dropping record")
		return
	default:
	}
	select {
	case a.ops <- op:
	default:
		a.log.Warn().Msg("archive buffer full, dropping record")
	}
}

// Close flushes everything queued so far and stops the writer.
func (a *Archive) Close() {
	a.once.Do(func() { close(a.quit) })
	<-a.done
}

func (a *Archive) run() {
	defer close(a.done)
	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()

	batch := make([]QuestionRecord, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := a.w.BatchRecordQuestions(ctx, batch); err != nil {
			a.log.Error().Err(err).Int("count", len(batch)).Msg("batch record questions")
		}
		batch = batch[:0]
	}
	apply := func(op archiveOp) {
		if op.question != nil {
			batch = append(batch, *op.question)
			if len(batch) >= batchSize {
				flush()
			}
			return
		}
		flush()
		a.write(op)
	}

	for {
		select {
		case op := <-a.ops:
			apply(op)
		case <-ticker.C:
			flush()
		case <-a.quit:
			for {
				select {
				case op := <-a.ops:
					apply(op)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (a *Archive) write(op archiveOp) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	switch {
	case op.start != nil:
		if err := a.w.CreateGame(ctx, *op.start); err != nil {
			a.log.Error().Err(err).Str("game", op.start.ID).Msg("create game")
		}
	case op.end != nil:
		if err := a.w.EndGame(ctx, op.end.gameID, op.end.winner, op.end.aborted, op.end.at); err != nil {
			a.log.Error().Err(err).Str("game", op.end.gameID).Msg("end game")
			return
		}
		if a.onEnded != nil {
			a.onEnded(ctx, op.end.gameID)
		}
	}
}
