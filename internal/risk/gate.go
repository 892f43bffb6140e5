// Package risk decides whether a freshly listed token may be traded.
package risk

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/observability"
)

// Check names.
const (
	CheckNovelty   = "novelty"
	CheckLiquidity = "liquidity"
	CheckHoneypot  = "honeypot"
)

// Rejection reasons.
const (
	ReasonNotNew   = "token is not new: existing trading pairs found"
	ReasonHoneypot = "potential honeypot detected"
)

// NoveltyChecker reports whether a mint has no trading pairs yet.
type NoveltyChecker interface {
	IsNew(ctx context.Context, mint string) (bool, error)
}

// LiquidityEstimator estimates pool liquidity in SOL.
type LiquidityEstimator interface {
	Estimate(ctx context.Context, c *domain.PoolCandidate) (decimal.Decimal, error)
}

// HoneypotDetector reports whether a token cannot be sold back.
type HoneypotDetector interface {
	IsHoneypot(ctx context.Context, c *domain.PoolCandidate) (bool, error)
}

// RiskCheckError means a check could not produce a verdict.
type RiskCheckError struct {
	Check string
	Err   error
}

func (e *RiskCheckError) Error() string {
	return fmt.Sprintf("risk check %s: %v", e.Check, e.Err)
}

func (e *RiskCheckError) Unwrap() error { return e.Err }

// Config holds gate thresholds.
type Config struct {
	MinLiquiditySOL decimal.Decimal
	CheckHoneypot   bool
}

// Gate runs novelty, liquidity and honeypot checks in that order.
// The first failing check decides the verdict.
type Gate struct {
	cfg       Config
	novelty   NoveltyChecker
	liquidity LiquidityEstimator
	honeypot  HoneypotDetector
	logger    *zap.Logger
}

// NewGate creates a gate. honeypot may be nil when cfg.CheckHoneypot is false.
func NewGate(cfg Config, novelty NoveltyChecker, liquidity LiquidityEstimator, honeypot HoneypotDetector, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		cfg:       cfg,
		novelty:   novelty,
		liquidity: liquidity,
		honeypot:  honeypot,
		logger:    logger.With(zap.String("component", "risk")),
	}
}

// Assess evaluates c. A dependency failure returns *RiskCheckError and no verdict.
func (g *Gate) Assess(ctx context.Context, c *domain.PoolCandidate) (*domain.RiskAssessment, error) {
	log := g.logger.With(zap.String("mint", c.TokenMint))

	isNew, err := g.novelty.IsNew(ctx, c.TokenMint)
	if err != nil {
		return nil, g.checkFailed(CheckNovelty, err)
	}
	observability.RecordRiskVerdict(CheckNovelty, isNew)
	if !isNew {
		log.Info("token rejected", zap.String("check", CheckNovelty))
		return &domain.RiskAssessment{IsSafe: false, Reason: ReasonNotNew, Liquidity: decimal.Zero}, nil
	}

	liquidity, err := g.liquidity.Estimate(ctx, c)
	if err != nil {
		return nil, g.checkFailed(CheckLiquidity, err)
	}
	enough := liquidity.GreaterThanOrEqual(g.cfg.MinLiquiditySOL)
	observability.RecordRiskVerdict(CheckLiquidity, enough)
	if !enough {
		reason := fmt.Sprintf("insufficient liquidity: %s SOL (minimum %s SOL)",
			liquidity.StringFixed(2), g.cfg.MinLiquiditySOL.StringFixed(2))
		log.Info("token rejected", zap.String("check", CheckLiquidity), zap.String("liquidity", liquidity.String()))
		return &domain.RiskAssessment{IsSafe: false, Reason: reason, Liquidity: liquidity}, nil
	}

	if g.cfg.CheckHoneypot && g.honeypot != nil {
		trapped, err := g.honeypot.IsHoneypot(ctx, c)
		if err != nil {
			return nil, g.checkFailed(CheckHoneypot, err)
		}
		observability.RecordRiskVerdict(CheckHoneypot, !trapped)
		if trapped {
			log.Info("token rejected", zap.String("check", CheckHoneypot))
			return &domain.RiskAssessment{IsSafe: false, Reason: ReasonHoneypot, Liquidity: liquidity, IsHoneypot: true}, nil
		}
	}

	return &domain.RiskAssessment{IsSafe: true, Liquidity: liquidity}, nil
}

func (g *Gate) checkFailed(check string, err error) error {
	observability.RecordRiskError(check)
	g.logger.Warn("risk check failed", zap.String("check", check), zap.Error(err))
	return &RiskCheckError{Check: check, Err: err}
}
