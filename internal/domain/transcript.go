package domain

import "time"

// Transcript is the archived record of a completed debate. Unlike Session it
// is immutable and safe to persist; the archive store serializes Rounds as JSON.
type Transcript struct {
	SessionID    string            `json:"session_id"`
	Topic        string            `json:"topic"`
	TotalRounds  int               `json:"total_rounds"`
	Rounds       []TranscriptRound `json:"rounds"`
	Verdict      string            `json:"verdict"`
	Undetermined bool              `json:"undetermined"`
	CompletedAt  time.Time         `json:"completed_at"`
}

// TranscriptRound holds every agent's finalized text for one round.
type TranscriptRound struct {
	Round      int               `json:"round"`
	Label      string            `json:"label"`
	IsAttack   bool              `json:"is_attack"`
	AttackType string            `json:"attack_type,omitempty"`
	Entries    map[string]string `json:"entries"`
}
