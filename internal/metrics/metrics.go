package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"turtlesoup/internal/game"
	"turtlesoup/internal/judge"
)

// Collectors is nil-safe: every method is a no-op on a nil receiver, so
// components can be built without metrics in tests.
type Collectors struct {
	RoomsActive   prometheus.Gauge
	Connections   prometheus.Gauge
	Commands      *prometheus.CounterVec
	JudgeLatency  prometheus.Histogram
	JudgeFailures prometheus.Counter
	GamesFinished *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		RoomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "soup_rooms_active",
			Help: "Rooms currently open.",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "soup_ws_connections",
			Help: "Open real-time connections.",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soup_room_commands_total",
			Help: "Room commands applied, by command and result code.",
		}, []string{"command", "result"}),
		JudgeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "soup_judge_latency_seconds",
			Help:    "Time taken by the judge to return a verdict.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),
		JudgeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soup_judge_failures_total",
			Help: "Judge calls that returned no verdict.",
		}),
		GamesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soup_games_finished_total",
			Help: "Games that ended, by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(c.RoomsActive, c.Connections, c.Commands, c.JudgeLatency, c.JudgeFailures, c.GamesFinished)
	}
	return c
}

func (c *Collectors) RoomOpened() {
	if c != nil {
		c.RoomsActive.Inc()
	}
}

func (c *Collectors) RoomClosed() {
	if c != nil {
		c.RoomsActive.Dec()
	}
}

func (c *Collectors) ConnOpened() {
	if c != nil {
		c.Connections.Inc()
	}
}

func (c *Collectors) ConnClosed() {
	if c != nil {
		c.Connections.Dec()
	}
}

// ObserveCommand counts a room command under its rejection code, or "ok".
func (c *Collectors) ObserveCommand(command string, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		var gerr *game.Error
		if errors.As(err, &gerr) {
			result = gerr.Code
		}
	}
	c.Commands.WithLabelValues(command, result).Inc()
}

func (c *Collectors) GameFinished(outcome string) {
	if c != nil {
		c.GamesFinished.WithLabelValues(outcome).Inc()
	}
}

func (c *Collectors) observeJudge(d time.Duration, err error) {
	if c == nil {
		return
	}
	c.JudgeLatency.Observe(d.Seconds())
	if err != nil {
		c.JudgeFailures.Inc()
	}
}

type instrumentedJudge struct {
	next judge.Judge
	c    *Collectors
}

// InstrumentJudge wraps j so every evaluation is timed and failures counted.
func InstrumentJudge(j judge.Judge, c *Collectors) judge.Judge {
	if c == nil {
		return j
	}
	return &instrumentedJudge{next: j, c: c}
}

func (i *instrumentedJudge) Evaluate(ctx context.Context, req judge.Request) (judge.Verdict, error) {
	start := time.Now()
	v, err := i.next.Evaluate(ctx, req)
	i.c.observeJudge(time.Since(start), err)
	return v, err
}
