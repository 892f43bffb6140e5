package memory

import (
	"context"
	"sort"
	"sync"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/storage"
)

// TradeJournal is an in-memory implementation of storage.TradeJournal.
type TradeJournal struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeAttempt // keyed by attempt_id
}

// NewTradeJournal creates a new in-memory journal.
func NewTradeJournal() *TradeJournal {
	return &TradeJournal{
		data: make(map[string]*domain.TradeAttempt),
	}
}

// Compile-time interface check.
var _ storage.TradeJournal = (*TradeJournal)(nil)

// Record stores a new attempt. Returns ErrDuplicateKey if attempt_id exists.
func (j *TradeJournal) Record(_ context.Context, a *domain.TradeAttempt) error {
	if err := storage.ValidateAttempt(a); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, exists := j.data[a.AttemptID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *a
	j.data[a.AttemptID] = &cp
	return nil
}

// GetByID retrieves an attempt by id.
func (j *TradeJournal) GetByID(_ context.Context, attemptID string) (*domain.TradeAttempt, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	a, ok := j.data[attemptID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// GetByMint retrieves all attempts for mint, ordered by started_at ASC.
func (j *TradeJournal) GetByMint(_ context.Context, mint string) ([]*domain.TradeAttempt, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []*domain.TradeAttempt
	for _, a := range j.data {
		if a.TokenMint == mint {
			cp := *a
			out = append(out, &cp)
		}
	}

	sort.Slice(out, func(i, k int) bool {
		if out[i].StartedAt != out[k].StartedAt {
			return out[i].StartedAt < out[k].StartedAt
		}
		return out[i].AttemptID < out[k].AttemptID
	})
	return out, nil
}

// Len returns the number of recorded attempts.
func (j *TradeJournal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.data)
}

// Close is a no-op.
func (j *TradeJournal) Close() error { return nil }
