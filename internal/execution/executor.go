// Package execution quotes, signs, broadcasts and confirms swaps.
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-pool-sniper/internal/aggregator"
	"solana-pool-sniper/internal/discovery"
	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/observability"
	"solana-pool-sniper/internal/retry"
	"solana-pool-sniper/internal/solana"
)

// Defaults.
const (
	DefaultInputAmount         uint64 = 10_000_000 // 0.01 SOL
	DefaultSlippageBps                = 500
	DefaultPriorityFee         uint64 = 1_000_000
	DefaultConfirmTimeout             = 60 * time.Second
	DefaultConfirmPollInterval        = time.Second
)

// Aggregator quotes routes and builds swap transactions.
type Aggregator interface {
	Quote(ctx context.Context, req aggregator.QuoteRequest) (*domain.Quote, error)
	SwapTransaction(ctx context.Context, req aggregator.SwapRequest) ([]byte, error)
}

// Signer signs serialized transactions.
type Signer interface {
	PublicKey() string
	SignTransaction(raw []byte) (signed []byte, signature string, err error)
}

// Config controls trade parameters.
type Config struct {
	InputMint                string // defaults to wrapped SOL
	InputAmount              uint64 // lamports
	SlippageBps              int
	PriorityFeeMicroLamports uint64 // 0 disables the priority fee
	Simulate                 bool
	ConfirmTimeout           time.Duration
	ConfirmPollInterval      time.Duration
	Retry                    retry.Policy
}

// Executor runs one swap per Execute call.
type Executor struct {
	cfg    Config
	agg    Aggregator
	rpc    solana.RPCClient
	signer Signer
	logger *zap.Logger
}

// NewExecutor creates an executor. Zero config fields take the package defaults.
func NewExecutor(cfg Config, agg Aggregator, rpc solana.RPCClient, signer Signer, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.InputMint == "" {
		cfg.InputMint = discovery.WSOL
	}
	if cfg.InputAmount == 0 {
		cfg.InputAmount = DefaultInputAmount
	}
	if cfg.SlippageBps <= 0 {
		cfg.SlippageBps = DefaultSlippageBps
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfirmTimeout
	}
	if cfg.ConfirmPollInterval <= 0 {
		cfg.ConfirmPollInterval = DefaultConfirmPollInterval
	}
	cfg.Retry.Classify = Classify
	return &Executor{
		cfg:    cfg,
		agg:    agg,
		rpc:    rpc,
		signer: signer,
		logger: logger.With(zap.String("component", "executor")),
	}
}

// Classify separates transient failures from permanent ones.
func Classify(err error) retry.Class {
	switch {
	case retry.IsExhausted(err):
		// The RPC client already spent its own budget.
		return retry.Fatal
	case errors.Is(err, aggregator.ErrDecode):
		return retry.Fatal
	case solana.IsRPCError(err):
		return retry.Fatal
	}
	// Transport errors, per-request timeouts and *aggregator.StatusError.
	return retry.Retryable
}

// Execute buys the candidate token with the configured SOL amount.
// liquidity is informational.
func (e *Executor) Execute(ctx context.Context, c *domain.PoolCandidate, liquidity decimal.Decimal) (*domain.SwapOutcome, error) {
	log := e.logger.With(zap.String("mint", c.TokenMint), zap.String("liquidity", liquidity.String()))
	start := time.Now()
	observability.RecordTradeAttempt()

	outcome, err := e.execute(ctx, c, log)
	if err != nil {
		var ee *ExecutionError
		if errors.As(err, &ee) {
			observability.RecordTradeFailure(string(ee.Stage))
			log.Warn("trade failed", zap.String("stage", string(ee.Stage)), zap.Error(ee.Err))
		}
		return nil, err
	}

	observability.RecordTradeOutcome(outcome.Succeeded, time.Since(start).Seconds())
	log.Info("trade landed",
		zap.String("signature", outcome.Signature),
		zap.Bool("succeeded", outcome.Succeeded),
		zap.Uint64("in_amount", outcome.InAmount),
		zap.Uint64("out_amount", outcome.OutAmount))
	return outcome, nil
}

func (e *Executor) execute(ctx context.Context, c *domain.PoolCandidate, log *zap.Logger) (*domain.SwapOutcome, error) {
	var quote *domain.Quote
	err := retry.Do(ctx, e.policy(StageQuote, log), func(ctx context.Context) error {
		var err error
		quote, err = e.agg.Quote(ctx, aggregator.QuoteRequest{
			InputMint:   e.cfg.InputMint,
			OutputMint:  c.TokenMint,
			Amount:      e.cfg.InputAmount,
			SlippageBps: e.cfg.SlippageBps,
		})
		return err
	})
	if err != nil {
		return nil, &ExecutionError{Stage: StageQuote, Err: err}
	}

	var unsigned []byte
	err = retry.Do(ctx, e.policy(StageSwap, log), func(ctx context.Context) error {
		var err error
		unsigned, err = e.agg.SwapTransaction(ctx, aggregator.SwapRequest{
			Quote:                         quote,
			UserPublicKey:                 e.signer.PublicKey(),
			ComputeUnitPriceMicroLamports: e.cfg.PriorityFeeMicroLamports,
		})
		return err
	})
	if err != nil {
		return nil, &ExecutionError{Stage: StageSwap, Err: err}
	}

	if e.cfg.Simulate {
		sim, err := e.rpc.SimulateTransaction(ctx, unsigned)
		if err != nil {
			return nil, &ExecutionError{Stage: StageSimulate, Err: err}
		}
		if sim.Failed() {
			log.Info("simulation rejected swap", zap.Any("err", sim.Err), zap.Strings("logs", sim.Logs))
			return nil, &ExecutionError{Stage: StageSimulate, Err: fmt.Errorf("%w: %v", ErrSimulationRejected, sim.Err)}
		}
	}

	signed, signature, err := e.signer.SignTransaction(unsigned)
	if err != nil {
		return nil, &ExecutionError{Stage: StageSign, Err: err}
	}

	// Re-sending identical bytes cannot double-spend.
	err = retry.Do(ctx, e.policy(StageBroadcast, log), func(ctx context.Context) error {
		sent, err := e.rpc.SendTransaction(ctx, signed, solana.SendOptions{
			SkipPreflight:       e.cfg.Simulate,
			PreflightCommitment: solana.CommitmentConfirmed,
		})
		if err != nil {
			return err
		}
		if sent != "" && sent != signature {
			log.Debug("node reported a different signature", zap.String("local", signature), zap.String("node", sent))
			signature = sent
		}
		return nil
	})
	if err != nil {
		return nil, &ExecutionError{Stage: StageBroadcast, Signature: signature, Err: err}
	}

	status, err := e.awaitConfirmation(ctx, signature, log)
	if err != nil {
		return nil, &ExecutionError{Stage: StageConfirm, Signature: signature, Err: err}
	}

	return &domain.SwapOutcome{
		Signature:  signature,
		Succeeded:  status.Err == nil,
		InputMint:  quote.InputMint,
		OutputMint: quote.OutputMint,
		InAmount:   quote.InAmount,
		OutAmount:  quote.OutAmount,
	}, nil
}

// awaitConfirmation polls until the signature reaches confirmed commitment.
// Status lookup errors are tolerated until the deadline.
func (e *Executor) awaitConfirmation(ctx context.Context, signature string, log *zap.Logger) (*solana.SignatureStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(e.cfg.ConfirmPollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		statuses, err := e.rpc.GetSignatureStatuses(ctx, signature)
		switch {
		case err != nil:
			lastErr = err
			log.Debug("signature status lookup failed", zap.String("signature", signature), zap.Error(err))
		case len(statuses) > 0 && statuses[0].Landed():
			return statuses[0], nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				if lastErr != nil {
					return nil, fmt.Errorf("%w after %s: %v", ErrConfirmTimeout, e.cfg.ConfirmTimeout, lastErr)
				}
				return nil, fmt.Errorf("%w after %s", ErrConfirmTimeout, e.cfg.ConfirmTimeout)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *Executor) policy(stage Stage, log *zap.Logger) retry.Policy {
	p := e.cfg.Retry
	p.OnRetry = func(attempt int, wait time.Duration, err error) {
		observability.RecordRetry(string(stage))
		log.Info("retrying trade stage",
			zap.String("stage", string(stage)),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	return p
}
