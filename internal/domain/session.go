package domain

import (
	"time"
)

// SessionStatus is the lifecycle state of a debate session.
type SessionStatus string

const (
	// StatusActive means rounds are still being played.
	StatusActive SessionStatus = "active"
	// StatusComplete means the judge has delivered a verdict.
	StatusComplete SessionStatus = "complete"
)

// Session holds the in-memory state of one debate. The session store owns
// every instance; history and cursor are mutated only at round boundaries
// under the store's lock.
type Session struct {
	ID          string
	Topic       string
	TotalRounds int

	// Cursor is the number of the last completed round, starting at 0.
	Cursor int

	// History maps agent key to one finalized text per completed round.
	// Append-only: len(History[key]) == Cursor for every agent, including
	// agents that were blocked or errored in some rounds.
	History map[string][]string

	// BlockCounts tracks how many rounds each agent was security-blocked in.
	BlockCounts map[string]int

	Status    SessionStatus
	Verdict   *Verdict
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSession creates an active session with empty histories for each agent.
func NewSession(id, topic string, totalRounds int, agentKeys []string) *Session {
	now := time.Now()
	s := &Session{
		ID:          id,
		Topic:       topic,
		TotalRounds: totalRounds,
		History:     make(map[string][]string, len(agentKeys)),
		BlockCounts: make(map[string]int, len(agentKeys)),
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, key := range agentKeys {
		s.History[key] = nil
	}
	return s
}

// LastArgument returns the most recent finalized text for an agent,
// or "" if the agent has not completed a round yet.
func (s *Session) LastArgument(agentKey string) string {
	h := s.History[agentKey]
	if len(h) == 0 {
		return ""
	}
	return h[len(h)-1]
}

// RoundsCompleted returns the number of fully recorded rounds.
func (s *Session) RoundsCompleted() int {
	return s.Cursor
}

// Clone returns a deep copy safe to read outside the store's lock.
func (s *Session) Clone() *Session {
	cp := *s
	cp.History = make(map[string][]string, len(s.History))
	for key, rounds := range s.History {
		cp.History[key] = append([]string(nil), rounds...)
	}
	cp.BlockCounts = make(map[string]int, len(s.BlockCounts))
	for key, n := range s.BlockCounts {
		cp.BlockCounts[key] = n
	}
	if s.Verdict != nil {
		v := *s.Verdict
		cp.Verdict = &v
	}
	return &cp
}

// Verdict is the judge's final ruling for a completed debate.
type Verdict struct {
	Content      string  `json:"content"`
	LatencyMS    float64 `json:"latency_ms"`
	Tokens       int     `json:"tokens"`
	Undetermined bool    `json:"undetermined"`
}
