package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"

	"turtlesoup/internal/analytics"
	"turtlesoup/internal/db"
	"turtlesoup/internal/game"
	"turtlesoup/internal/rooms"
	"turtlesoup/internal/single"
	"turtlesoup/internal/stories"
	"turtlesoup/internal/wshub"
)

// Server holds the components the HTTP handlers drive.
type Server struct {
	Rooms   *rooms.Store
	Single  *single.Store
	Stories *stories.Catalog
	Hub     *wshub.Hub
	WS      wshub.Options
	DB      *db.DB             // nil if no database configured
	Stats   *analytics.Queries // nil if no database configured
	Metrics *prometheus.Registry

	log zerolog.Logger
}

const (
	sessionCookie = "soup_session"
	qrSize        = 320
	maxBodyBytes  = 16 << 10
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// session returns the single-player session id, issuing a cookie when the
// request carries none.
func session(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func (s *Server) handleStories(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.Stories.List())
}

func (s *Server) handleStartStory(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	id, err := strconv.Atoi(p.ByName("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, single.ErrInvalidStory.Error())
		return
	}
	res, err := s.Single.Start(session(w, r), id)
	if err != nil {
		s.writeSingleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		Guess string `json:"guess"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := s.Single.Guess(r.Context(), session(w, r), body.Guess)
	if err != nil {
		s.writeSingleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	res, err := s.Single.Reveal(session(w, r))
	if err != nil {
		s.writeSingleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) writeSingleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, single.ErrInvalidStory):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrJudgeUnavailable):
		writeError(w, http.StatusServiceUnavailable, game.ErrJudgeUnavailable.Message)
	case errors.Is(err, single.ErrNoStory), errors.Is(err, single.ErrGameOver), errors.Is(err, single.ErrEmptyGuess):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).Msg("single-player request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type roomSummary struct {
	RoomID  string `json:"room_id"`
	Host    string `json:"host"`
	Members int    `json:"members"`
	State   string `json:"state"`
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list := []roomSummary{}
	for _, room := range s.Rooms.List() {
		snap, err := room.Snapshot(r.Context())
		if err != nil {
			continue
		}
		list = append(list, roomSummary{
			RoomID:  snap.RoomID,
			Host:    snap.Host,
			Members: len(snap.Members),
			State:   string(snap.State),
		})
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	room, err := s.Rooms.Create()
	if err != nil {
		s.log.Error().Err(err).Msg("create room")
		writeError(w, http.StatusInternalServerError, "failed to create room")
		return
	}
	s.log.Info().Str("room", room.Code).Msg("created room")
	writeJSON(w, http.StatusCreated, map[string]string{
		"room_id":  room.Code,
		"join_url": joinURL(r, room.Code),
	})
}

func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	snap, err := s.Rooms.Snapshot(r.Context(), p.ByName("id"))
	if errors.Is(err, rooms.ErrRoomNotFound) {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleRoomQR serves a PNG QR code of the room's join link.
func (s *Server) handleRoomQR(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	room := s.Rooms.Get(p.ByName("id"))
	if room == nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	png, err := qrcode.Encode(joinURL(r, room.Code), qrcode.Medium, qrSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "qr generation failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// joinURL is the link players open to join code.
func joinURL(r *http.Request, code string) string {
	return baseURL(r) + "/?room=" + code
}

// baseURL derives the externally visible origin, respecting X-Forwarded-Proto.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// handleWebSocket upgrades to the real-time channel. The username query
// parameter is the player's identity; room, if given, is joined by a
// join_game without a room_id.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity := strings.TrimSpace(r.URL.Query().Get("username"))
	if identity == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket accept")
		return
	}

	opts := s.WS
	if room := r.URL.Query().Get("room"); room != "" {
		opts.DefaultRoom = rooms.NormalizeCode(room)
	}
	wshub.NewClient(identity, conn, s.Hub, s.Rooms, opts).Serve(r.Context())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	status := map[string]any{
		"status": "ok",
		"rooms":  len(s.Rooms.List()),
	}
	if s.DB != nil {
		if err := s.DB.Ping(r.Context()); err != nil {
			status["status"] = "db_error"
			status["error"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
	}
	writeJSON(w, http.StatusOK, status)
}
