// Package backend defines the provider adapter contract used by the debate
// orchestrator, plus the adapters that implement it.
package backend

import (
	"context"
	"iter"
)

// Message is one role-tagged entry in a request payload.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params are per-call generation settings.
type Params struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// CallMeta tags a backend call for upstream trace and observability
// consumption. The orchestrator produces it; adapters attach it to the wire
// and never interpret it.
type CallMeta struct {
	App        string `json:"app"`
	SessionID  string `json:"session_id"`
	AgentKey   string `json:"agent_key"`
	Round      int    `json:"round"`
	RoundType  string `json:"round_type"`
	IsAttack   bool   `json:"is_attack"`
	AttackType string `json:"attack_type,omitempty"`
	Role       string `json:"role,omitempty"`
}

// Request is one backend call.
type Request struct {
	Messages []Message
	Params   Params
	Meta     CallMeta
}

// Chunk is one unit of a streamed response. Delta carries token text;
// the final chunk has Done set and carries the usage total.
type Chunk struct {
	Delta  string
	Done   bool
	Tokens int
}

// Completion is a full non-streamed response.
type Completion struct {
	Content string
	Tokens  int
}

// Backend is the capability every provider adapter must expose.
//
// StreamComplete yields token chunks in generation order and terminates with
// either a Done chunk or a *Failure error. All failures are classified at
// this boundary; callers never inspect error text. A context cancellation is
// surfaced as the plain context error, not a Failure.
type Backend interface {
	Name() string
	StreamComplete(ctx context.Context, req Request) iter.Seq2[*Chunk, error]
	Complete(ctx context.Context, req Request) (*Completion, error)
}
