// Package pipeline turns log events into risk-gated trades.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-pool-sniper/internal/dedup"
	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/execution"
	"solana-pool-sniper/internal/idhash"
	"solana-pool-sniper/internal/notify"
	"solana-pool-sniper/internal/observability"
	"solana-pool-sniper/internal/storage"
)

// TransactionFetcher retrieves the transaction behind a log event.
type TransactionFetcher interface {
	Fetch(ctx context.Context, signature string) (*domain.DecodedTransaction, error)
}

// CandidateDecoder finds pool creations in a transaction.
type CandidateDecoder interface {
	Decode(tx *domain.DecodedTransaction, program domain.WatchedProgram) []*domain.PoolCandidate
}

// RiskAssessor produces a verdict for a candidate.
type RiskAssessor interface {
	Assess(ctx context.Context, c *domain.PoolCandidate) (*domain.RiskAssessment, error)
}

// TradeExecutor buys a candidate token.
type TradeExecutor interface {
	Execute(ctx context.Context, c *domain.PoolCandidate, liquidity decimal.Decimal) (*domain.SwapOutcome, error)
}

// Options for creating a Coordinator.
type Options struct {
	// Required
	Programs []domain.WatchedProgram
	Fetcher  TransactionFetcher
	Decoder  CandidateDecoder
	Risk     RiskAssessor
	Executor TradeExecutor
	Notifier notify.Notifier

	// Optional
	Journal storage.TradeJournal // nil skips journaling
	Guard   dedup.Guard          // nil lets duplicate events trade independently
	Logger  *zap.Logger
}

// Coordinator processes log events strictly one at a time.
type Coordinator struct {
	programs map[domain.ProgramKind]domain.WatchedProgram
	fetcher  TransactionFetcher
	decoder  CandidateDecoder
	risk     RiskAssessor
	executor TradeExecutor
	notifier notify.Notifier
	journal  storage.TradeJournal
	guard    dedup.Guard
	logger   *zap.Logger

	now   func() time.Time
	newID func() string
}

// New creates a Coordinator.
func New(opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}

	programs := make(map[domain.ProgramKind]domain.WatchedProgram, len(opts.Programs))
	for _, p := range opts.Programs {
		programs[p.Kind] = p
	}

	return &Coordinator{
		programs: programs,
		fetcher:  opts.Fetcher,
		decoder:  opts.Decoder,
		risk:     opts.Risk,
		executor: opts.Executor,
		notifier: notifier,
		journal:  opts.Journal,
		guard:    opts.Guard,
		logger:   logger.With(zap.String("component", "coordinator")),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Run drains events in arrival order until ctx is cancelled or events is
// closed. Queued events are still processed after close.
func (c *Coordinator) Run(ctx context.Context, events <-chan domain.LogEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				c.logger.Info("event queue closed")
				return nil
			}
			observability.UpdateQueueDepth(len(events))
			c.ProcessEvent(ctx, ev)
			if ev.ReceivedAt > 0 {
				now := c.now()
				elapsed := now.Sub(time.UnixMilli(ev.ReceivedAt))
				observability.RecordEventProcessed(elapsed.Seconds(), now.Unix())
			}
		}
	}
}

// ProcessEvent runs fetch, decode, assess and execute for one event.
// Stage failures are alerted and swallowed; a panic is recovered and alerted.
func (c *Coordinator) ProcessEvent(ctx context.Context, ev domain.LogEvent) {
	log := c.logger.With(zap.String("kind", ev.Kind.String()), zap.String("signature", ev.Signature))

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic processing event", zap.Any("panic", r), zap.Stack("stack"))
			c.alert(ctx, log, notify.ErrorMessage(fmt.Errorf("processing %s: panic: %v", ev.Signature, r)))
		}
	}()

	program, ok := c.programs[ev.Kind]
	if !ok {
		log.Warn("event for unwatched program kind")
		return
	}

	tx, err := c.fetcher.Fetch(ctx, ev.Signature)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warn("fetch failed", zap.Error(err))
		c.alert(ctx, log, notify.ErrorMessage(err))
		return
	}
	if !tx.Succeeded {
		log.Debug("transaction failed on-chain, skipped")
		return
	}

	for _, candidate := range c.decoder.Decode(tx, program) {
		if ctx.Err() != nil {
			return
		}
		c.handleCandidate(ctx, candidate, log.With(zap.String("mint", candidate.TokenMint)))
	}
}

func (c *Coordinator) handleCandidate(ctx context.Context, candidate *domain.PoolCandidate, log *zap.Logger) {
	assessment, err := c.risk.Assess(ctx, candidate)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.alert(ctx, log, notify.ErrorMessage(err))
		return
	}
	if !assessment.IsSafe {
		c.alert(ctx, log, notify.RejectedMessage(candidate.TokenMint, assessment.Reason))
		return
	}

	if c.guard != nil {
		key := idhash.ComputePoolKey(candidate.Kind, candidate.TokenMint, candidate.PoolState)
		claimed, err := c.guard.Claim(ctx, key)
		if err != nil {
			log.Warn("dedup claim failed", zap.Error(err))
			c.alert(ctx, log, notify.ErrorMessage(fmt.Errorf("dedup claim %s: %w", candidate.TokenMint, err)))
			return
		}
		if !claimed {
			log.Info("pool already traded, skipped")
			return
		}
	}

	c.alert(ctx, log, notify.DetectedMessage(candidate, assessment.Liquidity))

	started := c.now()
	outcome, err := c.executor.Execute(ctx, candidate, assessment.Liquidity)
	attempt := c.newAttempt(candidate, assessment.Liquidity, started)

	if err != nil {
		attempt.Status = domain.TradeStatusFailed
		if errors.Is(err, execution.ErrSimulationRejected) {
			attempt.Status = domain.TradeStatusSimulationRejected
		}
		var ee *execution.ExecutionError
		if errors.As(err, &ee) {
			attempt.Stage = string(ee.Stage)
			attempt.Signature = ee.Signature
		}
		attempt.Error = err.Error()
		c.record(ctx, attempt, log)
		if ctx.Err() == nil {
			c.alert(ctx, log, notify.TradeFailedMessage(candidate.TokenMint, err))
		}
		return
	}

	attempt.Signature = outcome.Signature
	attempt.InAmount = outcome.InAmount
	attempt.OutAmount = outcome.OutAmount
	if outcome.Succeeded {
		attempt.Status = domain.TradeStatusConfirmed
	} else {
		attempt.Status = domain.TradeStatusFailed
		attempt.Stage = string(execution.StageConfirm)
		attempt.Error = "transaction failed on-chain"
	}
	c.record(ctx, attempt, log)
	c.alert(ctx, log, notify.TradeConfirmedMessage(candidate.TokenMint, outcome))
}

func (c *Coordinator) newAttempt(candidate *domain.PoolCandidate, liquidity decimal.Decimal, started time.Time) *domain.TradeAttempt {
	return &domain.TradeAttempt{
		AttemptID:       c.newID(),
		CandidateID:     candidate.CandidateID,
		Kind:            candidate.Kind,
		TokenMint:       candidate.TokenMint,
		PoolState:       candidate.PoolState,
		SourceSignature: candidate.SourceSignature,
		LiquiditySOL:    liquidity.String(),
		StartedAt:       started.UnixMilli(),
		FinishedAt:      c.now().UnixMilli(),
	}
}

// record journals an attempt. Journal failures are logged only.
func (c *Coordinator) record(ctx context.Context, attempt *domain.TradeAttempt, log *zap.Logger) {
	if c.journal == nil {
		return
	}
	// The trade already happened; record it even if shutdown began.
	ctx = context.WithoutCancel(ctx)
	if err := c.journal.Record(ctx, attempt); err != nil {
		log.Warn("journal record failed", zap.String("attempt_id", attempt.AttemptID), zap.Error(err))
	}
}

func (c *Coordinator) alert(ctx context.Context, log *zap.Logger, text string) {
	if err := c.notifier.Notify(ctx, text); err != nil {
		log.Warn("alert delivery failed", zap.Error(err))
	}
}
