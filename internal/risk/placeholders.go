package risk

import (
	"context"

	"github.com/shopspring/decimal"

	"solana-pool-sniper/internal/domain"
)

// DefaultStaticLiquiditySOL is the value reported by StaticLiquidity when unset.
var DefaultStaticLiquiditySOL = decimal.NewFromInt(10)

// StaticLiquidity reports a fixed liquidity for every candidate.
type StaticLiquidity struct {
	Value decimal.Decimal
}

// Estimate implements LiquidityEstimator.
func (s StaticLiquidity) Estimate(context.Context, *domain.PoolCandidate) (decimal.Decimal, error) {
	return s.Value, nil
}

// StaticHoneypot reports a fixed verdict for every candidate.
type StaticHoneypot struct {
	Verdict bool
}

// IsHoneypot implements HoneypotDetector.
func (s StaticHoneypot) IsHoneypot(context.Context, *domain.PoolCandidate) (bool, error) {
	return s.Verdict, nil
}
