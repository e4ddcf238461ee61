package backend

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"
)

// Script decides the outcome of one scripted call: the token sequence to
// stream, or a classified failure instead.
type Script func(req Request) ([]string, *Failure)

// Scripted is a deterministic offline backend. The server falls back to it
// when no API key is configured, and tests drive the coordinator with it.
type Scripted struct {
	name       string
	script     Script
	tokenDelay time.Duration
}

// NewScripted creates a scripted backend. A nil script uses DefaultScript.
func NewScripted(name string, script Script) *Scripted {
	if script == nil {
		script = DefaultScript()
	}
	return &Scripted{name: name, script: script}
}

// WithTokenDelay sets a per-token delay, giving dev mode a visible stream.
func (s *Scripted) WithTokenDelay(d time.Duration) *Scripted {
	s.tokenDelay = d
	return s
}

// Name identifies the adapter in logs.
func (s *Scripted) Name() string { return "scripted:" + s.name }

// StreamComplete replays the scripted tokens as a stream.
func (s *Scripted) StreamComplete(ctx context.Context, req Request) iter.Seq2[*Chunk, error] {
	return func(yield func(*Chunk, error) bool) {
		tokens, failure := s.script(req)
		if failure != nil {
			yield(nil, failure)
			return
		}
		for _, tok := range tokens {
			if s.tokenDelay > 0 {
				select {
				case <-time.After(s.tokenDelay):
				case <-ctx.Done():
					yield(nil, classifyCtx(ctx))
					return
				}
			}
			if ctx.Err() != nil {
				yield(nil, classifyCtx(ctx))
				return
			}
			if !yield(&Chunk{Delta: tok}, nil) {
				return
			}
		}
		yield(&Chunk{Done: true, Tokens: len(tokens)}, nil)
	}
}

// Complete returns the scripted tokens joined into one response.
func (s *Scripted) Complete(ctx context.Context, req Request) (*Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tokens, failure := s.script(req)
	if failure != nil {
		return nil, failure
	}
	return &Completion{Content: strings.Join(tokens, ""), Tokens: len(tokens)}, nil
}

// classifyCtx mirrors the live adapter's boundary classification: a deadline
// is a transient backend failure, a cancellation passes through untouched.
func classifyCtx(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return TransientFailure("call timed out")
	}
	return ctx.Err()
}

// DefaultScript produces a canned argument keyed on the call metadata, so
// offline debates read coherently and reproduce exactly.
func DefaultScript() Script {
	return func(req Request) ([]string, *Failure) {
		if req.Meta.Role == "judge" {
			return splitTokens("After weighing both sides, this debate ends in a narrow split decision. " +
				"Both debaters argued consistently across all rounds."), nil
		}
		text := fmt.Sprintf("As %s in round %d (%s), I maintain my position with three points: "+
			"the evidence favors my side, my opponent's last argument does not hold up, "+
			"and the practical consequences support my case.",
			req.Meta.AgentKey, req.Meta.Round, req.Meta.RoundType)
		return splitTokens(text), nil
	}
}

// splitTokens breaks text into word-sized deltas, preserving spacing.
func splitTokens(text string) []string {
	words := strings.Split(text, " ")
	tokens := make([]string, 0, len(words))
	for i, w := range words {
		if i < len(words)-1 {
			w += " "
		}
		tokens = append(tokens, w)
	}
	return tokens
}
