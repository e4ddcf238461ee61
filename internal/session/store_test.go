package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prysmai/debate-arena/internal/domain"
)

var testKeys = []string{"gpt", "claude"}

func TestCreateAndGet(t *testing.T) {
	s := NewStore(0, nil)

	sess, err := s.Create("Topic T", 10, testKeys)
	if err != nil {
		t.Fatal(err)
	}
	if sess.ID == "" || sess.Topic != "Topic T" || sess.TotalRounds != 10 {
		t.Fatalf("malformed session: %+v", sess)
	}
	if sess.Cursor != 0 || sess.Status != domain.StatusActive {
		t.Fatalf("fresh session not at round 0/active: %+v", sess)
	}

	got, err := s.Get(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != sess.ID {
		t.Errorf("got wrong session: %s", got.ID)
	}
}

func TestGetUnknownSession(t *testing.T) {
	s := NewStore(0, nil)
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionLimit(t *testing.T) {
	s := NewStore(2, nil)
	for i := 0; i < 2; i++ {
		if _, err := s.Create("t", 10, testKeys); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Create("t", 10, testKeys); !errors.Is(err, ErrSessionLimit) {
		t.Errorf("expected ErrSessionLimit, got %v", err)
	}
}

func TestBeginRoundValidatesCursor(t *testing.T) {
	s := NewStore(0, nil)
	sess, _ := s.Create("t", 10, testKeys)

	for _, round := range []int{0, 2, 11} {
		if _, err := s.BeginRound(sess.ID, round); !errors.Is(err, ErrInvalidRound) {
			t.Errorf("round %d: expected ErrInvalidRound, got %v", round, err)
		}
	}

	if _, err := s.BeginRound(sess.ID, 1); err != nil {
		t.Fatalf("valid round rejected: %v", err)
	}
}

func TestBeginRoundSingleFlight(t *testing.T) {
	s := NewStore(0, nil)
	sess, _ := s.Create("t", 10, testKeys)

	if _, err := s.BeginRound(sess.ID, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.BeginRound(sess.ID, 1); !errors.Is(err, ErrRoundInFlight) {
		t.Errorf("expected ErrRoundInFlight, got %v", err)
	}

	// Abort releases the slot without touching state.
	s.AbortRound(sess.ID, 1)
	snap, _ := s.Get(sess.ID)
	if snap.Cursor != 0 {
		t.Errorf("abort moved the cursor: %d", snap.Cursor)
	}
	if _, err := s.BeginRound(sess.ID, 1); err != nil {
		t.Fatalf("round not replayable after abort: %v", err)
	}
}

func TestEndRoundAppliesUnderLock(t *testing.T) {
	s := NewStore(0, nil)
	sess, _ := s.Create("t", 10, testKeys)

	if _, err := s.BeginRound(sess.ID, 1); err != nil {
		t.Fatal(err)
	}
	err := s.EndRound(sess.ID, 1, func(live *domain.Session) {
		live.History["gpt"] = append(live.History["gpt"], "a1")
		live.History["claude"] = append(live.History["claude"], "b1")
		live.Cursor = 1
	})
	if err != nil {
		t.Fatal(err)
	}

	snap, _ := s.Get(sess.ID)
	if snap.Cursor != 1 || len(snap.History["gpt"]) != 1 {
		t.Errorf("mutation not applied: %+v", snap)
	}

	// The slot is released; the next round can begin.
	if _, err := s.BeginRound(sess.ID, 2); err != nil {
		t.Fatalf("next round rejected: %v", err)
	}
}

func TestEndRoundWithoutBegin(t *testing.T) {
	s := NewStore(0, nil)
	sess, _ := s.Create("t", 10, testKeys)

	err := s.EndRound(sess.ID, 1, func(*domain.Session) {})
	if !errors.Is(err, ErrInvalidRound) {
		t.Errorf("expected ErrInvalidRound, got %v", err)
	}
}

func TestSnapshotsAreIsolated(t *testing.T) {
	s := NewStore(0, nil)
	sess, _ := s.Create("t", 10, testKeys)

	snap, _ := s.Get(sess.ID)
	snap.History["gpt"] = append(snap.History["gpt"], "tampered")
	snap.Cursor = 5

	fresh, _ := s.Get(sess.ID)
	if fresh.Cursor != 0 || len(fresh.History["gpt"]) != 0 {
		t.Error("snapshot mutation leaked into the store")
	}
}

func TestSetVerdictCompletesSession(t *testing.T) {
	s := NewStore(0, nil)
	sess, _ := s.Create("t", 10, testKeys)

	if err := s.SetVerdict(sess.ID, domain.Verdict{Content: "draw"}); err != nil {
		t.Fatal(err)
	}
	snap, _ := s.Get(sess.ID)
	if snap.Status != domain.StatusComplete || snap.Verdict == nil || snap.Verdict.Content != "draw" {
		t.Errorf("verdict not recorded: %+v", snap)
	}
}

func TestConcurrentBeginRoundExactlyOneWinner(t *testing.T) {
	s := NewStore(0, nil)
	sess, _ := s.Create("t", 10, testKeys)

	const callers = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.BeginRound(sess.ID, 1); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	var n int
	for range wins {
		n++
	}
	if n != 1 {
		t.Fatalf("expected exactly one winner, got %d", n)
	}
}

func TestEvictIdleSkipsInFlight(t *testing.T) {
	s := NewStore(0, nil)
	idle, _ := s.Create("idle", 10, testKeys)
	busy, _ := s.Create("busy", 10, testKeys)

	if _, err := s.BeginRound(busy.ID, 1); err != nil {
		t.Fatal(err)
	}

	// Backdate both sessions past the TTL.
	s.mu.Lock()
	for _, sess := range s.sessions {
		sess.UpdatedAt = time.Now().Add(-2 * time.Hour)
	}
	s.mu.Unlock()

	s.evictIdle(time.Hour)

	if _, err := s.Get(idle.ID); !errors.Is(err, ErrNotFound) {
		t.Error("idle session should have been evicted")
	}
	if _, err := s.Get(busy.ID); err != nil {
		t.Errorf("in-flight session must survive eviction: %v", err)
	}
}
