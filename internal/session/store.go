// Package session provides the in-memory debate session store. It owns every
// live session, the round cursor discipline, and the per-(session, round)
// single-flight locks that make round advancement race-free.
package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/containerd/errdefs"
	"github.com/google/uuid"
	"github.com/prysmai/debate-arena/internal/domain"
)

var (
	// ErrNotFound rejects unknown session ids.
	ErrNotFound = fmt.Errorf("session not found: %w", errdefs.ErrNotFound)
	// ErrRoundInFlight rejects a duplicate in-flight advance for the same round.
	ErrRoundInFlight = fmt.Errorf("round already in flight: %w", errdefs.ErrConflict)
	// ErrInvalidRound rejects a round that is not the session's cursor + 1.
	ErrInvalidRound = fmt.Errorf("invalid round: %w", errdefs.ErrInvalidArgument)
	// ErrSessionLimit rejects new sessions once the store is at capacity.
	ErrSessionLimit = fmt.Errorf("session limit reached: %w", errdefs.ErrUnavailable)
)

// Store holds live sessions. All reads return deep copies; mutation happens
// only through BeginRound/EndRound/AbortRound and SetVerdict under the lock.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	inflight map[string]int // session id -> round currently executing
	limit    int
	logger   *slog.Logger
}

// NewStore creates a store capped at limit concurrent sessions (0 = unlimited).
func NewStore(limit int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*domain.Session),
		inflight: make(map[string]int),
		limit:    limit,
		logger:   logger,
	}
}

// Create registers a new active session and returns a snapshot of it.
func (s *Store) Create(topic string, totalRounds int, agentKeys []string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limit > 0 && len(s.sessions) >= s.limit {
		return nil, ErrSessionLimit
	}

	id := uuid.NewString()[:8]
	sess := domain.NewSession(id, topic, totalRounds, agentKeys)
	s.sessions[id] = sess
	s.logger.Info("session created", "session_id", id, "topic", topic, "total_rounds", totalRounds)
	return sess.Clone(), nil
}

// Get returns a snapshot of a session.
func (s *Store) Get(id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	return sess.Clone(), nil
}

// BeginRound atomically validates that round is the session's next round and
// claims the single-flight slot for it. Exactly one of two concurrent callers
// for the same (session, round) succeeds; the loser observes ErrRoundInFlight
// and no side effects. The returned snapshot seeds prompt construction.
func (s *Store) BeginRound(id string, round int) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	if round != sess.Cursor+1 || round > sess.TotalRounds {
		return nil, fmt.Errorf("round %d with cursor %d: %w", round, sess.Cursor, ErrInvalidRound)
	}
	if current, busy := s.inflight[id]; busy {
		return nil, fmt.Errorf("round %d of session %q: %w", current, id, ErrRoundInFlight)
	}
	s.inflight[id] = round
	return sess.Clone(), nil
}

// EndRound applies the round's mutation (history append + cursor advance)
// and releases the single-flight slot. The apply callback runs under the
// store lock and is the only place session state may change.
func (s *Store) EndRound(id string, round int, apply func(*domain.Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		delete(s.inflight, id)
		return fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	if s.inflight[id] != round {
		return fmt.Errorf("round %d not in flight for session %q: %w", round, id, ErrInvalidRound)
	}
	apply(sess)
	sess.UpdatedAt = time.Now()
	delete(s.inflight, id)
	return nil
}

// AbortRound releases the single-flight slot without touching session state,
// leaving the round replayable. Used when the caller abandons the stream.
func (s *Store) AbortRound(id string, round int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[id] == round {
		delete(s.inflight, id)
	}
}

// SetVerdict records the judge's verdict and completes the session.
func (s *Store) SetVerdict(id string, verdict domain.Verdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	sess.Verdict = &verdict
	sess.Status = domain.StatusComplete
	sess.UpdatedAt = time.Now()
	return nil
}

// Count returns the number of live sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
