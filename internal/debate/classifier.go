package debate

import (
	"context"
	"strings"
	"time"

	"github.com/prysmai/debate-arena/internal/backend"
	"github.com/prysmai/debate-arena/internal/domain"
)

// Terminal sentinel contents. A blocked or errored agent still contributes a
// history entry, so no agent is ever missing a round.
const (
	blockedSentinel = "[blocked]"
	erroredSentinel = "[error]"
)

// runAgent drives a single agent's backend call to a terminal state, emitting
// its events through emit. Failures arrive pre-classified from the adapter;
// this layer only decides retry vs. terminal sentinel. One agent's failure
// never touches another agent's call.
func (c *Coordinator) runAgent(
	ctx context.Context,
	ag domain.Agent,
	def RoundDefinition,
	req backend.Request,
	emit func(Event) bool,
) AgentOutcome {
	be := c.backends[ag.Key]
	start := time.Now()

	for attempt := 0; ; attempt++ {
		content, tokens, firstToken, err := c.streamOnce(ctx, be, ag, req, emit)
		latency := msSince(start)
		ttft := latency
		if !firstToken.IsZero() {
			ttft = float64(firstToken.Sub(start)) / float64(time.Millisecond)
		}

		if err == nil {
			emit(Event{
				Type:      EventDone,
				Agent:     ag.Key,
				Round:     def.Number,
				Content:   content,
				LatencyMS: latency,
				TTFTMS:    ttft,
				Tokens:    tokens,
			})
			return AgentOutcome{Content: content, LatencyMS: latency, TTFTMS: ttft, Tokens: tokens}
		}

		if ctx.Err() != nil {
			// Round cancelled; the coordinator discards all results.
			return AgentOutcome{}
		}

		failure, classified := backend.AsFailure(err)
		if !classified {
			c.logger.Error("unclassified backend error, treating as fatal",
				"agent", ag.Key, "round", def.Number, "error", err)
			failure = backend.FatalFailure("%v", err)
		}

		switch failure.Kind {
		case backend.FailureSecurityBlocked:
			c.logger.Warn("agent security-blocked",
				"agent", ag.Key, "round", def.Number,
				"threat_level", failure.ThreatLevel, "threat_score", failure.ThreatScore)
			emit(securityBlockedEvent(ag.Key, failure.ThreatLevel, failure.ThreatScore))
			emit(Event{
				Type:      EventDone,
				Agent:     ag.Key,
				Round:     def.Number,
				Content:   blockedSentinel,
				Blocked:   true,
				LatencyMS: latency,
				TTFTMS:    ttft,
			})
			return AgentOutcome{Content: blockedSentinel, Blocked: true, LatencyMS: latency, TTFTMS: ttft}

		case backend.FailureTransient:
			// Retry only while nothing streamed yet; a partial stream has
			// already reached the consumer and cannot be replayed.
			if content == "" && attempt < c.cfg.MaxRetries {
				backoff := c.cfg.RetryBackoff << attempt
				c.logger.Warn("transient backend failure, retrying",
					"agent", ag.Key, "round", def.Number, "attempt", attempt+1,
					"backoff", backoff, "error", failure.Message)
				select {
				case <-time.After(backoff):
					continue
				case <-ctx.Done():
					return AgentOutcome{}
				}
			}
			fallthrough

		default:
			c.logger.Error("agent call failed terminally",
				"agent", ag.Key, "round", def.Number, "kind", failure.Kind, "error", failure.Message)
			emit(Event{
				Type:      EventDone,
				Agent:     ag.Key,
				Round:     def.Number,
				Content:   erroredSentinel,
				Errored:   true,
				LatencyMS: latency,
				TTFTMS:    ttft,
			})
			return AgentOutcome{Content: erroredSentinel, Errored: true, LatencyMS: latency, TTFTMS: ttft}
		}
	}
}

// streamOnce performs one attempt: it iterates the backend stream under the
// mandatory call timeout, emitting token events in generation order.
func (c *Coordinator) streamOnce(
	ctx context.Context,
	be backend.Backend,
	ag domain.Agent,
	req backend.Request,
	emit func(Event) bool,
) (content string, tokens int, firstToken time.Time, err error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	var sb strings.Builder
	for chunk, streamErr := range be.StreamComplete(callCtx, req) {
		if streamErr != nil {
			return sb.String(), tokens, firstToken, streamErr
		}
		if chunk.Done {
			tokens = chunk.Tokens
			break
		}
		if firstToken.IsZero() {
			firstToken = time.Now()
		}
		sb.WriteString(chunk.Delta)
		if !emit(tokenEvent(ag.Key, chunk.Delta)) {
			return sb.String(), tokens, firstToken, ctx.Err()
		}
	}
	return sb.String(), tokens, firstToken, nil
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
