package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/observability"
	"solana-pool-sniper/internal/storage"
)

// TradeJournal implements storage.TradeJournal using PostgreSQL.
type TradeJournal struct {
	pool *Pool
}

// NewTradeJournal creates a journal on pool. The journal owns the pool.
func NewTradeJournal(pool *Pool) *TradeJournal {
	return &TradeJournal{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeJournal = (*TradeJournal)(nil)

const selectAttempt = `
	SELECT
		attempt_id, candidate_id, pool_kind, token_mint, pool_state, source_signature,
		liquidity_sol::text, in_amount, out_amount, signature,
		status, stage, error, started_at, finished_at
	FROM trade_attempts
`

// Record stores a new attempt. Returns ErrDuplicateKey if attempt_id exists.
func (j *TradeJournal) Record(ctx context.Context, a *domain.TradeAttempt) error {
	if err := storage.ValidateAttempt(a); err != nil {
		return err
	}

	liquidity := a.LiquiditySOL
	if liquidity == "" {
		liquidity = "0"
	}

	query := `
		INSERT INTO trade_attempts (
			attempt_id, candidate_id, pool_kind, token_mint, pool_state, source_signature,
			liquidity_sol, in_amount, out_amount, signature,
			status, stage, error, started_at, finished_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7::numeric, $8, $9, $10,
			$11, $12, $13, $14, $15
		)
	`

	start := time.Now()
	_, err := j.pool.Exec(ctx, query,
		a.AttemptID, a.CandidateID, a.Kind.String(), a.TokenMint, a.PoolState, a.SourceSignature,
		liquidity, int64(a.InAmount), int64(a.OutAmount), a.Signature,
		string(a.Status), a.Stage, a.Error, a.StartedAt, a.FinishedAt,
	)
	observability.RecordDBQuery("postgres", "insert_attempt", time.Since(start).Seconds(), err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade attempt: %w", err)
	}
	return nil
}

// GetByID retrieves an attempt by id.
func (j *TradeJournal) GetByID(ctx context.Context, attemptID string) (*domain.TradeAttempt, error) {
	row := j.pool.QueryRow(ctx, selectAttempt+` WHERE attempt_id = $1`, attemptID)
	a, err := scanAttempt(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade attempt: %w", err)
	}
	return a, nil
}

// GetByMint retrieves attempts for mint, ordered by started_at ASC.
func (j *TradeJournal) GetByMint(ctx context.Context, mint string) ([]*domain.TradeAttempt, error) {
	rows, err := j.pool.Query(ctx, selectAttempt+` WHERE token_mint = $1 ORDER BY started_at ASC, attempt_id ASC`, mint)
	if err != nil {
		return nil, fmt.Errorf("query trade attempts: %w", err)
	}
	defer rows.Close()

	var out []*domain.TradeAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade attempt: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade attempts: %w", err)
	}
	return out, nil
}

// Close closes the underlying pool.
func (j *TradeJournal) Close() error {
	j.pool.Close()
	return nil
}

func scanAttempt(row pgx.Row) (*domain.TradeAttempt, error) {
	var (
		a         domain.TradeAttempt
		kind      string
		status    string
		inAmount  int64
		outAmount int64
	)
	err := row.Scan(
		&a.AttemptID, &a.CandidateID, &kind, &a.TokenMint, &a.PoolState, &a.SourceSignature,
		&a.LiquiditySOL, &inAmount, &outAmount, &a.Signature,
		&status, &a.Stage, &a.Error, &a.StartedAt, &a.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Kind, err = domain.ParseProgramKind(kind)
	if err != nil {
		return nil, err
	}
	a.Status = domain.TradeStatus(status)
	a.InAmount = uint64(inAmount)
	a.OutAmount = uint64(outAmount)
	return &a, nil
}
