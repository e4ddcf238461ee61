// Package api provides HTTP handlers for the debate arena API.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/go-chi/chi/v5"
	"github.com/prysmai/debate-arena/internal/debate"
	"github.com/prysmai/debate-arena/internal/store"
)

// PresetTopics are offered to the frontend for one-click debates.
var PresetTopics = []string{
	"Is AI consciousness possible?",
	"Should coding be taught in primary school?",
	"Will remote work survive the next decade?",
	"Is social media doing more harm than good?",
	"Should we colonize Mars before fixing Earth?",
	"Is open-source AI safer than closed-source AI?",
}

// Handler serves the debate REST and SSE endpoints.
type Handler struct {
	orc     *debate.Orchestrator
	archive store.Repository
}

// NewHandler creates the debate API handler. archive may be nil.
func NewHandler(orc *debate.Orchestrator, archive store.Repository) *Handler {
	return &Handler{orc: orc, archive: archive}
}

// RegisterRoutes mounts the debate API under /api/debate.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/debate", func(r chi.Router) {
		r.Post("/start", h.startDebate)
		r.Get("/topics", h.listTopics)
		r.Get("/{sessionID}/round/{roundNum}", h.streamRound)
		r.Post("/{sessionID}/judge", h.judgeDebate)
		r.Get("/{sessionID}/status", h.debateStatus)
		r.Get("/{sessionID}/transcript", h.getTranscript)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// ErrorFromDomain maps a classified domain error onto an HTTP status.
func ErrorFromDomain(w http.ResponseWriter, err error) {
	switch {
	case errdefs.IsInvalidArgument(err):
		Error(w, http.StatusBadRequest, err.Error())
	case errdefs.IsNotFound(err):
		Error(w, http.StatusNotFound, err.Error())
	case errdefs.IsConflict(err):
		Error(w, http.StatusConflict, err.Error())
	case errdefs.IsUnavailable(err):
		Error(w, http.StatusServiceUnavailable, err.Error())
	default:
		Error(w, http.StatusInternalServerError, err.Error())
	}
}

type startRequest struct {
	Topic string `json:"topic"`
}

func (h *Handler) startDebate(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		Error(w, http.StatusBadRequest, "topic is required")
		return
	}

	sess, err := h.orc.Create(topic)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"session_id":   sess.ID,
		"topic":        sess.Topic,
		"total_rounds": sess.TotalRounds,
		"round_types":  debate.RoundSummaries(),
		"agents":       h.orc.Agents(),
	})
}

func (h *Handler) listTopics(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{"topics": PresetTopics})
}

func (h *Handler) streamRound(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	roundNum, err := strconv.Atoi(chi.URLParam(r, "roundNum"))
	if err != nil {
		Error(w, http.StatusBadRequest, "round must be an integer")
		return
	}

	events, err := h.orc.Advance(r.Context(), sessionID, roundNum)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	streamSSE(w, r, events)
}

func (h *Handler) judgeDebate(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	verdict, err := h.orc.Judge(r.Context(), sessionID)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	JSON(w, http.StatusOK, verdict)
}

func (h *Handler) debateStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	sess, err := h.orc.Get(sessionID)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"topic":            sess.Topic,
		"current_round":    sess.Cursor,
		"total_rounds":     sess.TotalRounds,
		"status":           sess.Status,
		"rounds_completed": sess.RoundsCompleted(),
		"block_counts":     sess.BlockCounts,
	})
}

func (h *Handler) getTranscript(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		Error(w, http.StatusNotFound, "transcript archive disabled")
		return
	}
	sessionID := chi.URLParam(r, "sessionID")

	transcript, err := h.archive.GetTranscript(r.Context(), sessionID)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if transcript == nil {
		Error(w, http.StatusNotFound, "transcript not found")
		return
	}
	JSON(w, http.StatusOK, transcript)
}
