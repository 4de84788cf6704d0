package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"turtlesoup/internal/analytics"
)

const leaderboardSize = 10

func (s *Server) requireStats(w http.ResponseWriter) bool {
	if s.Stats == nil {
		writeError(w, http.StatusServiceUnavailable, "analytics requires a database connection")
		return false
	}
	return true
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !s.requireStats(w) {
		return
	}
	category := r.URL.Query().Get("cat")
	if category == "" {
		category = "wins"
	}
	limit := leaderboardSize
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n <= 100 {
		limit = n
	}

	entries, err := s.Stats.GetLeaderboard(r.Context(), category, limit)
	if errors.Is(err, analytics.ErrUnknownCategory) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("category", category).Msg("leaderboard")
		writeError(w, http.StatusInternalServerError, "error loading leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"category": category, "entries": entries})
}

func (s *Server) handlePlayerStats(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	if !s.requireStats(w) {
		return
	}
	stats, err := s.Stats.GetPlayerLifetimeStats(r.Context(), p.ByName("identity"))
	if errors.Is(err, analytics.ErrNotFound) {
		writeError(w, http.StatusNotFound, "player not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("player stats")
		writeError(w, http.StatusInternalServerError, "error loading player stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGameRecap(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	if !s.requireStats(w) {
		return
	}
	recap, err := s.Stats.GetGameRecap(r.Context(), p.ByName("id"))
	if errors.Is(err, analytics.ErrNotFound) {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("game recap")
		writeError(w, http.StatusInternalServerError, "error loading game recap")
		return
	}
	writeJSON(w, http.StatusOK, recap)
}
