package debate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prysmai/debate-arena/internal/backend"
	"github.com/prysmai/debate-arena/internal/domain"
	"github.com/prysmai/debate-arena/internal/session"
	"github.com/prysmai/debate-arena/internal/store"
)

const appName = "ai-debate-arena"

// Orchestrator drives the debate lifecycle: session creation, round
// advancement through the coordinator, and the final judge call. It is the
// only component that mutates session state, always through the store's
// round-boundary methods.
type Orchestrator struct {
	store      *session.Store
	coord      *Coordinator
	agents     []domain.Agent
	judge      backend.Backend
	judgeModel string
	archive    store.Repository
	cfg        Config
	logger     *slog.Logger
}

// NewOrchestrator wires the debate core. archive may be nil; transcripts are
// then kept in memory only.
func NewOrchestrator(
	sessions *session.Store,
	coord *Coordinator,
	agents []domain.Agent,
	judge backend.Backend,
	judgeModel string,
	archive store.Repository,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:      sessions,
		coord:      coord,
		agents:     agents,
		judge:      judge,
		judgeModel: judgeModel,
		archive:    archive,
		cfg:        cfg,
		logger:     logger,
	}
}

// Agents returns the fixed lineup for this deployment.
func (o *Orchestrator) Agents() []domain.Agent {
	return o.agents
}

// Create starts a new debate session for a topic.
func (o *Orchestrator) Create(topic string) (*domain.Session, error) {
	keys := make([]string, 0, len(o.agents))
	for _, ag := range o.agents {
		keys = append(keys, ag.Key)
	}
	return o.store.Create(topic, TotalRounds, keys)
}

// Get returns a snapshot of a session.
func (o *Orchestrator) Get(id string) (*domain.Session, error) {
	return o.store.Get(id)
}

// Advance executes round roundNum for a session and returns its event feed.
// It is the single-flight boundary: the round must be cursor+1 and not
// already in flight, and a completed round is never re-run. If ctx is
// cancelled mid-round, results are discarded and the round stays replayable.
func (o *Orchestrator) Advance(ctx context.Context, id string, roundNum int) (<-chan Event, error) {
	snap, err := o.store.BeginRound(id, roundNum)
	if err != nil {
		return nil, err
	}

	def, err := Definition(roundNum)
	if err != nil {
		o.store.AbortRound(id, roundNum)
		return nil, err
	}

	requests := make(map[string]backend.Request, len(o.agents))
	for _, ag := range o.agents {
		requests[ag.Key] = backend.Request{
			Messages: BuildMessages(snap, o.agents, def, ag),
			Params: backend.Params{
				Model:       ag.Model,
				Temperature: 0.8,
				MaxTokens:   500,
			},
			Meta: backend.CallMeta{
				App:        appName,
				SessionID:  id,
				AgentKey:   ag.Key,
				Round:      def.Number,
				RoundType:  string(def.Type),
				IsAttack:   def.IsAttack,
				AttackType: string(def.AttackType),
			},
		}
	}

	commit := func(results map[string]AgentOutcome) error {
		if results == nil {
			o.logger.Info("round abandoned, discarding results", "session_id", id, "round", roundNum)
			o.store.AbortRound(id, roundNum)
			return nil
		}
		return o.store.EndRound(id, roundNum, func(s *domain.Session) {
			for _, ag := range o.agents {
				outcome := results[ag.Key]
				s.History[ag.Key] = append(s.History[ag.Key], outcome.Content)
				if outcome.Blocked {
					s.BlockCounts[ag.Key]++
				}
			}
			s.Cursor = roundNum
		})
	}

	o.logger.Info("advancing round",
		"session_id", id, "round", roundNum, "type", def.Type, "is_attack", def.IsAttack)
	return o.coord.Run(ctx, def, o.agents, requests, commit), nil
}

// Judge issues the final non-streaming verdict call. Valid only once every
// round has completed; idempotent afterwards (the stored verdict is
// returned). A judge backend failure yields an undetermined verdict rather
// than an error, so the session never ends unresolved.
func (o *Orchestrator) Judge(ctx context.Context, id string) (domain.Verdict, error) {
	snap, err := o.store.Get(id)
	if err != nil {
		return domain.Verdict{}, err
	}
	if snap.Verdict != nil {
		return *snap.Verdict, nil
	}
	if snap.Cursor != snap.TotalRounds {
		return domain.Verdict{}, fmt.Errorf("judge before round %d of %d completed: %w",
			snap.Cursor+1, snap.TotalRounds, session.ErrInvalidRound)
	}

	verdict := o.callJudge(ctx, snap)
	if err := o.store.SetVerdict(id, verdict); err != nil {
		return domain.Verdict{}, err
	}
	o.archiveTranscript(snap, verdict)
	return verdict, nil
}

func (o *Orchestrator) callJudge(ctx context.Context, snap *domain.Session) domain.Verdict {
	req := backend.Request{
		Messages: BuildJudgeMessages(snap, o.agents),
		Params: backend.Params{
			Model:       o.judgeModel,
			Temperature: 0.5,
			MaxTokens:   300,
		},
		Meta: backend.CallMeta{
			App:       appName,
			SessionID: snap.ID,
			Round:     snap.TotalRounds + 1,
			Role:      "judge",
		},
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	completion, err := o.judge.Complete(callCtx, req)
	if err != nil {
		o.logger.Error("judge call failed, returning undetermined verdict",
			"session_id", snap.ID, "error", err)
		return domain.Verdict{
			Content:      "The judge could not reach a verdict for this debate.",
			LatencyMS:    msSince(start),
			Undetermined: true,
		}
	}
	return domain.Verdict{
		Content:   completion.Content,
		LatencyMS: msSince(start),
		Tokens:    completion.Tokens,
	}
}

// archiveTranscript persists the completed debate. Best-effort: archive
// failures are logged, never surfaced to the caller.
func (o *Orchestrator) archiveTranscript(snap *domain.Session, verdict domain.Verdict) {
	if o.archive == nil {
		return
	}

	rounds := make([]domain.TranscriptRound, 0, snap.TotalRounds)
	for num := 1; num <= snap.Cursor; num++ {
		def, err := Definition(num)
		if err != nil {
			continue
		}
		entries := make(map[string]string, len(o.agents))
		for _, ag := range o.agents {
			if history := snap.History[ag.Key]; num <= len(history) {
				entries[ag.Key] = history[num-1]
			}
		}
		rounds = append(rounds, domain.TranscriptRound{
			Round:      num,
			Label:      def.Label,
			IsAttack:   def.IsAttack,
			AttackType: string(def.AttackType),
			Entries:    entries,
		})
	}

	transcript := &domain.Transcript{
		SessionID:    snap.ID,
		Topic:        snap.Topic,
		TotalRounds:  snap.TotalRounds,
		Rounds:       rounds,
		Verdict:      verdict.Content,
		Undetermined: verdict.Undetermined,
		CompletedAt:  time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.archive.SaveTranscript(ctx, transcript); err != nil {
		o.logger.Error("failed to archive transcript", "session_id", snap.ID, "error", err)
		return
	}
	o.logger.Info("transcript archived", "session_id", snap.ID, "rounds", len(rounds))
}
