package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/prysmai/debate-arena/internal/backend"
	"github.com/prysmai/debate-arena/internal/debate"
	"github.com/prysmai/debate-arena/internal/domain"
	"github.com/prysmai/debate-arena/internal/session"
)

type frame struct {
	Type    string          `json:"type"`
	Round   int             `json:"round"`
	Agent   string          `json:"agent"`
	Error   string          `json:"error"`
	Verdict json.RawMessage `json:"verdict"`
}

func newTestArena(t *testing.T) (*httptest.Server, *debate.Orchestrator) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := debate.DefaultConfig()
	cfg.RetryBackoff = time.Millisecond

	backends := map[string]backend.Backend{
		"gpt":    backend.NewScripted("gpt", nil),
		"claude": backend.NewScripted("claude", nil),
	}
	agents := domain.DefaultLineup("gpt-4o-mini", "claude-sonnet-4-20250514")
	sessions := session.NewStore(0, logger)
	coord := debate.NewCoordinator(backends, cfg, logger)
	orc := debate.NewOrchestrator(sessions, coord, agents, backend.NewScripted("judge", nil), "gpt-4o", nil, cfg, logger)

	r := chi.NewRouter()
	r.Get("/ws/debate/{sessionID}", NewSpectateHandler(orc, "", true).ServeHTTP)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, orc
}

func dialSpectate(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := strings.Replace(srv.URL, "http://", "ws://", 1) + "/ws/debate/" + sessionID
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatal(err)
	}
}

func recv(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("frame not JSON: %q", data)
	}
	return f
}

// recvRound reads frames until round_end and returns everything seen.
func recvRound(t *testing.T, conn *websocket.Conn) []frame {
	t.Helper()
	var frames []frame
	for {
		f := recv(t, conn)
		frames = append(frames, f)
		if f.Type == "round_end" || f.Type == "error" {
			return frames
		}
	}
}

func TestSpectateRelaysRound(t *testing.T) {
	srv, orc := newTestArena(t)
	sess, err := orc.Create("Topic T")
	if err != nil {
		t.Fatal(err)
	}

	conn := dialSpectate(t, srv, sess.ID)
	send(t, conn, map[string]any{"type": "advance", "round": 1})

	frames := recvRound(t, conn)
	if frames[0].Type != "round_start" || frames[0].Round != 1 {
		t.Fatalf("first frame %+v", frames[0])
	}
	last := frames[len(frames)-1]
	if last.Type != "round_end" {
		t.Fatalf("last frame %+v", last)
	}

	var sawToken, sawDone bool
	for _, f := range frames {
		switch f.Type {
		case "token":
			sawToken = true
		case "done":
			sawDone = true
		}
	}
	if !sawToken || !sawDone {
		t.Errorf("round missing token/done frames: token=%v done=%v", sawToken, sawDone)
	}

	snap, err := orc.Get(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Cursor != 1 {
		t.Errorf("cursor = %d after relayed round", snap.Cursor)
	}
}

func TestSpectateRejectsUnknownSession(t *testing.T) {
	srv, _ := newTestArena(t)

	conn := dialSpectate(t, srv, "nope")
	f := recv(t, conn)
	if f.Type != "error" || !strings.Contains(f.Error, "not found") {
		t.Errorf("expected not-found error frame, got %+v", f)
	}
}

func TestSpectateOutOfOrderRoundKeepsSocketAlive(t *testing.T) {
	srv, orc := newTestArena(t)
	sess, _ := orc.Create("Topic T")

	conn := dialSpectate(t, srv, sess.ID)
	send(t, conn, map[string]any{"type": "advance", "round": 5})

	f := recv(t, conn)
	if f.Type != "error" {
		t.Fatalf("expected error frame, got %+v", f)
	}

	// The connection survives a rejected command.
	send(t, conn, map[string]any{"type": "advance", "round": 1})
	frames := recvRound(t, conn)
	if frames[len(frames)-1].Type != "round_end" {
		t.Errorf("round 1 did not complete after rejected command")
	}
}

func TestSpectateJudgeGatedThenDelivered(t *testing.T) {
	srv, orc := newTestArena(t)
	sess, _ := orc.Create("Topic T")

	conn := dialSpectate(t, srv, sess.ID)

	send(t, conn, map[string]any{"type": "judge"})
	if f := recv(t, conn); f.Type != "error" {
		t.Fatalf("judge before completion should error, got %+v", f)
	}

	for round := 1; round <= debate.TotalRounds; round++ {
		send(t, conn, map[string]any{"type": "advance", "round": round})
		frames := recvRound(t, conn)
		if frames[len(frames)-1].Type != "round_end" {
			t.Fatalf("round %d did not complete: %+v", round, frames[len(frames)-1])
		}
	}

	send(t, conn, map[string]any{"type": "judge"})
	f := recv(t, conn)
	if f.Type != "verdict" || len(f.Verdict) == 0 {
		t.Fatalf("expected verdict frame, got %+v", f)
	}
	var verdict domain.Verdict
	if err := json.Unmarshal(f.Verdict, &verdict); err != nil || verdict.Content == "" {
		t.Errorf("verdict payload malformed: %s", f.Verdict)
	}
}

func TestSpectateUnknownCommand(t *testing.T) {
	srv, orc := newTestArena(t)
	sess, _ := orc.Create("Topic T")

	conn := dialSpectate(t, srv, sess.ID)
	send(t, conn, map[string]any{"type": "dance"})

	f := recv(t, conn)
	if f.Type != "error" || !strings.Contains(f.Error, "unknown command") {
		t.Errorf("expected unknown-command error, got %+v", f)
	}
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed string
		isDev   bool
		origin  string
		want    bool
	}{
		{"dev allows anything", "", true, "http://evil.example", true},
		{"no policy allows anything", "", false, "http://evil.example", true},
		{"wildcard allows anything", "*", false, "http://evil.example", true},
		{"matching host", "https://arena.example.com", false, "https://arena.example.com", true},
		{"case-insensitive host", "https://arena.example.com", false, "https://ARENA.example.COM", true},
		{"mismatched host", "https://arena.example.com", false, "https://evil.example", false},
		{"no origin header", "https://arena.example.com", false, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSpectateHandler(nil, tt.allowed, tt.isDev)
			r := httptest.NewRequest(http.MethodGet, "/ws/debate/x", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := h.checkOrigin(r); got != tt.want {
				t.Errorf("checkOrigin = %v", got)
			}
		})
	}
}
