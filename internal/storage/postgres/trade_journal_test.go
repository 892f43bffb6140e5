package postgres_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/storage"
	"solana-pool-sniper/internal/storage/postgres"
)

func createTestAttempt(id, mint string, startedAt int64) *domain.TradeAttempt {
	return &domain.TradeAttempt{
		AttemptID:       id,
		CandidateID:     "cand-" + id,
		Kind:            domain.PoolAmmKind,
		TokenMint:       mint,
		PoolState:       "POOL1",
		SourceSignature: "SRC1",
		LiquiditySOL:    "10.5",
		InAmount:        10_000_000,
		OutAmount:       123_456_789,
		Signature:       "SIG-" + id,
		Status:          domain.TradeStatusConfirmed,
		StartedAt:       startedAt,
		FinishedAt:      startedAt + 1200,
	}
}

func TestTradeJournal_RecordAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	j := postgres.NewTradeJournal(pool)

	want := createTestAttempt("a1", "MINTX", 1000)
	require.NoError(t, j.Record(ctx, want))

	got, err := j.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, want.CandidateID, got.CandidateID)
	assert.Equal(t, domain.PoolAmmKind, got.Kind)
	assert.Equal(t, want.InAmount, got.InAmount)
	assert.Equal(t, want.OutAmount, got.OutAmount)
	assert.Equal(t, want.Status, got.Status)
	assert.True(t, decimal.RequireFromString("10.5").Equal(decimal.RequireFromString(got.LiquiditySOL)))
}

func TestTradeJournal_FailedAttempt(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	j := postgres.NewTradeJournal(pool)

	a := createTestAttempt("f1", "MINTY", 1000)
	a.Kind = domain.PoolClmmKind
	a.PoolState = ""
	a.Status = domain.TradeStatusSimulationRejected
	a.Stage = "simulate"
	a.Error = "simulation rejected transaction"
	a.Signature = ""
	a.OutAmount = 0
	require.NoError(t, j.Record(ctx, a))

	got, err := j.GetByID(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, domain.PoolClmmKind, got.Kind)
	assert.Equal(t, "simulate", got.Stage)
	assert.Empty(t, got.Signature)
}

func TestTradeJournal_Duplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	j := postgres.NewTradeJournal(pool)

	require.NoError(t, j.Record(ctx, createTestAttempt("a1", "MINTX", 1000)))
	err := j.Record(ctx, createTestAttempt("a1", "MINTX", 2000))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTradeJournal_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := postgres.NewTradeJournal(pool).GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeJournal_GetByMint(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	j := postgres.NewTradeJournal(pool)

	require.NoError(t, j.Record(ctx, createTestAttempt("a2", "MINTX", 2000)))
	require.NoError(t, j.Record(ctx, createTestAttempt("a1", "MINTX", 1000)))
	require.NoError(t, j.Record(ctx, createTestAttempt("b1", "OTHER", 1500)))

	got, err := j.GetByMint(ctx, "MINTX")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a1", got[0].AttemptID)
	assert.Equal(t, "a2", got[1].AttemptID)
}
