// Package storage defines the trade journal and its backends.
package storage

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"solana-pool-sniper/internal/domain"
)

// TradeJournal records trade attempts for later audit. It is never read to
// influence detection.
type TradeJournal interface {
	// Record stores a new attempt. Returns ErrDuplicateKey if attempt_id exists.
	Record(ctx context.Context, a *domain.TradeAttempt) error

	// GetByID retrieves an attempt. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, attemptID string) (*domain.TradeAttempt, error)

	// GetByMint retrieves all attempts for a token, ordered by started_at ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.TradeAttempt, error)

	// Close releases backend resources.
	Close() error
}

// ValidateAttempt checks the fields every backend requires.
func ValidateAttempt(a *domain.TradeAttempt) error {
	if a == nil {
		return fmt.Errorf("%w: nil attempt", ErrInvalidInput)
	}
	if a.AttemptID == "" {
		return fmt.Errorf("%w: empty attempt_id", ErrInvalidInput)
	}
	if a.TokenMint == "" {
		return fmt.Errorf("%w: empty token_mint", ErrInvalidInput)
	}
	if !a.Kind.IsValid() {
		return fmt.Errorf("%w: unknown pool kind %d", ErrInvalidInput, a.Kind)
	}
	if !a.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, a.Status)
	}
	if a.LiquiditySOL != "" {
		if _, err := decimal.NewFromString(a.LiquiditySOL); err != nil {
			return fmt.Errorf("%w: liquidity %q", ErrInvalidInput, a.LiquiditySOL)
		}
	}
	if a.FinishedAt < a.StartedAt {
		return fmt.Errorf("%w: finished_at before started_at", ErrInvalidInput)
	}
	return nil
}
