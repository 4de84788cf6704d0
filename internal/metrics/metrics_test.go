package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turtlesoup/internal/game"
	"turtlesoup/internal/judge"
)

func TestCollectors_NilSafe(t *testing.T) {
	var c *Collectors
	c.RoomOpened()
	c.ConnClosed()
	c.ObserveCommand("join", nil)
	c.GameFinished("won")
}

func TestCollectors_ObserveCommand(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.ObserveCommand("submit_question", nil)
	c.ObserveCommand("submit_question", game.ErrNotYourTurn)
	c.ObserveCommand("submit_question", game.ErrNotYourTurn)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Commands.WithLabelValues("submit_question", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Commands.WithLabelValues("submit_question", "not_your_turn")))
}

func TestCollectors_Rooms(t *testing.T) {
	c := New(prometheus.NewRegistry())
	c.RoomOpened()
	c.RoomOpened()
	c.RoomClosed()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.RoomsActive))
}

func TestInstrumentJudge(t *testing.T) {
	c := New(prometheus.NewRegistry())
	j := InstrumentJudge(judge.Offline{}, c)

	_, err := j.Evaluate(context.Background(), judge.Request{Question: "q", Solution: "s"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = j.Evaluate(ctx, judge.Request{Question: "q"})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.JudgeFailures))
	assert.Equal(t, 1, testutil.CollectAndCount(c.JudgeLatency))
}
