package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"turtlesoup/internal/analytics"
	"turtlesoup/internal/config"
	"turtlesoup/internal/db"
	"turtlesoup/internal/judge"
	"turtlesoup/internal/logger"
	"turtlesoup/internal/metrics"
	"turtlesoup/internal/rooms"
	"turtlesoup/internal/single"
	"turtlesoup/internal/stories"
	"turtlesoup/internal/wshub"
)

const (
	readTimeout     = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Run wires every component from cfg and serves until ctx is cancelled.
func Run(ctx context.Context, cfg config.Config) error {
	log := logger.For("server")

	catalog, err := stories.Load(cfg.StoriesPath)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var j judge.Judge = judge.Offline{}
	if cfg.JudgeAPIKey != "" {
		j = judge.NewOpenAI(cfg.JudgeAPIKey, cfg.JudgeBaseURL, cfg.JudgeModel)
		log.Info().Str("model", cfg.JudgeModel).Str("base_url", cfg.JudgeBaseURL).Msg("using remote judge")
	} else {
		log.Warn().Msg("JUDGE_API_KEY not set, using the offline judge")
	}
	j = metrics.InstrumentJudge(j, m)

	srv := &Server{
		Stories: catalog,
		Hub:     wshub.NewHub(m, logger.For("wshub")),
		WS:      wshub.Options{HeartbeatTimeout: cfg.HeartbeatTimeout},
		Metrics: reg,
		log:     log,
	}

	// Optional database connection
	var archive *db.Archive
	if cfg.DatabaseURL != "" {
		dbLog := logger.For("db")
		database, err := db.Connect(ctx, cfg.DatabaseURL, dbLog)
		if err != nil {
			log.Error().Err(err).Msg("database unavailable, running without archive")
		} else {
			defer database.Close()
			if err := database.Migrate(ctx); err != nil {
				log.Error().Err(err).Msg("migration failed")
			}
			srv.DB = database
			srv.Stats = analytics.NewQueries(database)
			archive = db.NewArchive(database, func(ctx context.Context, gameID string) {
				if err := srv.Stats.AwardGameBadges(ctx, gameID); err != nil {
					dbLog.Error().Err(err).Str("game", gameID).Msg("award badges")
				}
			}, dbLog)
			defer archive.Close()
		}
	} else {
		log.Info().Msg("DATABASE_URL not set, running without archive")
	}

	roomLog := logger.For("rooms")
	opts := rooms.Options{
		Capacity:       cfg.RoomCapacity,
		ReconnectGrace: cfg.ReconnectGrace,
		JudgeTimeout:   cfg.JudgeTimeout,
		IdleTTL:        cfg.RoomTTL,
		Metrics:        m,
		Logger:         &roomLog,
	}
	if archive != nil {
		opts.Recorder = archive
	}
	srv.Rooms = rooms.NewStore(j, catalog, opts)
	defer srv.Rooms.Close()

	srv.Single = single.NewStore(j, catalog, cfg.MaxAttempts, cfg.RoomTTL, logger.For("single"))
	srv.Single.JudgeTimeout = cfg.JudgeTimeout
	go srv.Single.Run(ctx, time.Minute)

	httpSrv := &http.Server{
		Addr:              net.JoinHostPort("0.0.0.0", cfg.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: readTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errs := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpSrv.Addr).Msgf("listening on http://localhost:%s", cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	srv.Hub.CloseAll("server shutting down")
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown")
	}
	return nil
}

// Routes builds the HTTP surface.
func (s *Server) Routes() http.Handler {
	mux := httprouter.New()

	mux.GET("/api/stories", s.handleStories)
	mux.GET("/api/story/:id", s.handleStartStory)
	mux.POST("/api/guess", s.handleGuess)
	mux.GET("/api/reveal", s.handleReveal)

	mux.GET("/api/rooms", s.handleListRooms)
	mux.POST("/api/rooms", s.handleCreateRoom)
	mux.GET("/api/rooms/:id", s.handleRoom)
	mux.GET("/rooms/:id/qr", s.handleRoomQR)
	mux.GET("/ws", s.handleWebSocket)

	mux.GET("/api/leaderboard", s.handleLeaderboard)
	mux.GET("/api/players/:identity/stats", s.handlePlayerStats)
	mux.GET("/api/games/:id", s.handleGameRecap)

	mux.GET("/healthz", s.handleHealth)
	if s.Metrics != nil {
		mux.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(s.Metrics, promhttp.HandlerOpts{}))
	}

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		s.log.Error().Interface("panic", v).Str("path", r.URL.Path).Msg("handler panic")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
	return mux
}
