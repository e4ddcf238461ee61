package debate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prysmai/debate-arena/internal/backend"
	"github.com/prysmai/debate-arena/internal/domain"
)

// Config bounds the coordinator's per-call behavior.
type Config struct {
	// CallTimeout caps every individual backend call. A hung call is forced
	// into a transient failure so the round can always close.
	CallTimeout time.Duration
	// MaxRetries is the number of additional attempts after a transient
	// failure, scoped per agent call.
	MaxRetries int
	// RetryBackoff is the base delay before the first retry; it doubles per
	// attempt.
	RetryBackoff time.Duration
	// PreviewCap bounds round_end preview length in runes.
	PreviewCap int
	// EventBuffer sizes the round's event channel.
	EventBuffer int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		CallTimeout:  120 * time.Second,
		MaxRetries:   2,
		RetryBackoff: 500 * time.Millisecond,
		PreviewCap:   200,
		EventBuffer:  64,
	}
}

// AgentOutcome is one agent's terminal state for a round.
type AgentOutcome struct {
	Content   string
	Blocked   bool
	Errored   bool
	LatencyMS float64
	TTFTMS    float64
	Tokens    int
}

// Coordinator executes one round at a time: it fans out one backend call per
// agent and multiplexes their token streams into a single ordered event feed.
type Coordinator struct {
	backends map[string]backend.Backend
	cfg      Config
	logger   *slog.Logger
}

// NewCoordinator creates a coordinator over a per-agent backend map.
func NewCoordinator(backends map[string]backend.Backend, cfg Config, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{backends: backends, cfg: cfg, logger: logger}
}

// Run executes one round. It emits round_start, launches one goroutine per
// agent, interleaves their events in arrival order (strict order within an
// agent), and emits round_end only after every agent reached a terminal
// state and commit recorded the results.
//
// commit is called exactly once: with the full outcome map on completion, or
// with nil if ctx was cancelled and the results must be discarded. The
// returned channel is closed when the round is over.
func (c *Coordinator) Run(
	ctx context.Context,
	def RoundDefinition,
	agents []domain.Agent,
	requests map[string]backend.Request,
	commit func(map[string]AgentOutcome) error,
) <-chan Event {
	events := make(chan Event, c.cfg.EventBuffer)

	// emit serializes concurrent producers onto the single feed; each event
	// is one channel send, so events never interleave partially.
	emit := func(ev Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(events)

		if !emit(roundStartEvent(def)) {
			commit(nil)
			return
		}

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			results = make(map[string]AgentOutcome, len(agents))
		)
		for _, ag := range agents {
			req, ok := requests[ag.Key]
			if !ok {
				c.logger.Error("no request built for agent", "agent", ag.Key, "round", def.Number)
				continue
			}
			wg.Add(1)
			go func(ag domain.Agent, req backend.Request) {
				defer wg.Done()
				outcome := c.runAgent(ctx, ag, def, req, emit)
				mu.Lock()
				results[ag.Key] = outcome
				mu.Unlock()
			}(ag, req)
		}
		wg.Wait()

		if ctx.Err() != nil {
			// Caller abandoned the round; discard everything.
			commit(nil)
			return
		}
		if err := commit(results); err != nil {
			c.logger.Error("failed to record round results", "round", def.Number, "error", err)
			return
		}

		previews := make(map[string]string, len(results))
		for key, outcome := range results {
			previews[key] = preview(outcome.Content, c.cfg.PreviewCap)
		}
		emit(roundEndEvent(def.Number, previews))
	}()

	return events
}
