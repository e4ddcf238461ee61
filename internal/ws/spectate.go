// Package ws provides the WebSocket spectate transport: one socket carrying
// a whole debate, with the client pacing round advancement.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/prysmai/debate-arena/internal/debate"
)

// SpectateHandler upgrades a connection and relays the round event feed.
// Round pacing stays with the client: it sends advance commands, the server
// never auto-advances.
type SpectateHandler struct {
	orc           *debate.Orchestrator
	allowedOrigin string
	isDev         bool
}

// NewSpectateHandler creates the websocket handler.
func NewSpectateHandler(orc *debate.Orchestrator, allowedOrigin string, isDev bool) *SpectateHandler {
	return &SpectateHandler{orc: orc, allowedOrigin: allowedOrigin, isDev: isDev}
}

// command is one client instruction on the socket.
type command struct {
	Type  string `json:"type"`  // "advance" or "judge"
	Round int    `json:"round"` // for advance
}

// controlMessage is a non-event server frame.
type controlMessage struct {
	Type    string `json:"type"`
	Error   string `json:"error,omitempty"`
	Verdict any    `json:"verdict,omitempty"`
}

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (h *SpectateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	slog.Info("spectate connection request", "session_id", sessionID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("failed to accept websocket", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := conn.Close(websocket.StatusNormalClosure, "debate ended"); closeErr != nil {
			slog.Debug("failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()

	if _, err := h.orc.Get(sessionID); err != nil {
		h.writeControl(r.Context(), conn, controlMessage{Type: "error", Error: "session not found"})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Commands are handled sequentially, so all socket writes come from this
	// loop and never interleave.
	for {
		var cmd command
		if err := readJSON(ctx, conn, &cmd); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				slog.Debug("spectate read failed", "error", err, "session_id", sessionID)
			}
			return
		}

		switch cmd.Type {
		case "advance":
			if !h.relayRound(ctx, conn, sessionID, cmd.Round) {
				// Socket is gone; returning cancels ctx, which aborts the
				// in-flight round and discards its results.
				return
			}
		case "judge":
			verdict, err := h.orc.Judge(ctx, sessionID)
			if err != nil {
				h.writeControl(ctx, conn, controlMessage{Type: "error", Error: err.Error()})
				continue
			}
			h.writeControl(ctx, conn, controlMessage{Type: "verdict", Verdict: verdict})
		default:
			h.writeControl(ctx, conn, controlMessage{Type: "error", Error: "unknown command"})
		}
	}
}

// relayRound streams one round's events onto the socket. Returns false when
// the socket write fails and the connection should be torn down.
func (h *SpectateHandler) relayRound(ctx context.Context, conn *websocket.Conn, sessionID string, round int) bool {
	events, err := h.orc.Advance(ctx, sessionID, round)
	if err != nil {
		h.writeControl(ctx, conn, controlMessage{Type: "error", Error: err.Error()})
		return true
	}

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			slog.Error("failed to encode event", "type", ev.Type, "error", err)
			continue
		}
		if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
			slog.Debug("spectate write failed", "error", err, "session_id", sessionID)
			return false
		}
	}
	return true
}

func (h *SpectateHandler) writeControl(ctx context.Context, conn *websocket.Conn, msg controlMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("spectate control write failed", "error", err)
	}
}

func readJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// checkOrigin mirrors the CORS policy for the upgrade request.
func (h *SpectateHandler) checkOrigin(r *http.Request) bool {
	if h.isDev || h.allowedOrigin == "" || h.allowedOrigin == "*" {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	allowed, err := url.Parse(h.allowedOrigin)
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed.Host, allowed.Host)
}
