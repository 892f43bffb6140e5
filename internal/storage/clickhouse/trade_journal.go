package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/observability"
	"solana-pool-sniper/internal/storage"
)

// TradeJournal implements storage.TradeJournal using ClickHouse.
type TradeJournal struct {
	conn *Conn
}

// NewTradeJournal creates a journal on conn. The journal owns the connection.
func NewTradeJournal(conn *Conn) *TradeJournal {
	return &TradeJournal{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeJournal = (*TradeJournal)(nil)

const selectAttempt = `
	SELECT
		attempt_id, candidate_id, pool_kind, token_mint, pool_state, source_signature,
		liquidity_sol, in_amount, out_amount, signature,
		status, stage, error, started_at, finished_at
	FROM trade_attempts
`

// Record stores a new attempt. Returns ErrDuplicateKey if attempt_id exists.
func (j *TradeJournal) Record(ctx context.Context, a *domain.TradeAttempt) error {
	if err := storage.ValidateAttempt(a); err != nil {
		return err
	}

	// MergeTree does not enforce uniqueness.
	exists, err := j.exists(ctx, a.AttemptID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	liquidity := decimal.Zero
	if a.LiquiditySOL != "" {
		liquidity, err = decimal.NewFromString(a.LiquiditySOL)
		if err != nil {
			return fmt.Errorf("%w: liquidity %q", storage.ErrInvalidInput, a.LiquiditySOL)
		}
	}

	query := `
		INSERT INTO trade_attempts (
			attempt_id, candidate_id, pool_kind, token_mint, pool_state, source_signature,
			liquidity_sol, in_amount, out_amount, signature,
			status, stage, error, started_at, finished_at
		) VALUES (
			?, ?, ?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?, ?
		)
	`

	start := time.Now()
	err = j.conn.Exec(ctx, query,
		a.AttemptID, a.CandidateID, a.Kind.String(), a.TokenMint, a.PoolState, a.SourceSignature,
		liquidity, a.InAmount, a.OutAmount, a.Signature,
		string(a.Status), a.Stage, a.Error, a.StartedAt, a.FinishedAt,
	)
	observability.RecordDBQuery("clickhouse", "insert_attempt", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("insert trade attempt: %w", err)
	}
	return nil
}

// GetByID retrieves an attempt by id.
func (j *TradeJournal) GetByID(ctx context.Context, attemptID string) (*domain.TradeAttempt, error) {
	rows, err := j.conn.Query(ctx, selectAttempt+` WHERE attempt_id = ? LIMIT 1`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("query trade attempt: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query trade attempt: %w", err)
		}
		return nil, storage.ErrNotFound
	}
	return scanAttempt(rows)
}

// GetByMint retrieves attempts for mint, ordered by started_at ASC.
func (j *TradeJournal) GetByMint(ctx context.Context, mint string) ([]*domain.TradeAttempt, error) {
	rows, err := j.conn.Query(ctx, selectAttempt+` WHERE token_mint = ? ORDER BY started_at ASC, attempt_id ASC`, mint)
	if err != nil {
		return nil, fmt.Errorf("query trade attempts: %w", err)
	}
	defer rows.Close()

	var out []*domain.TradeAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade attempts: %w", err)
	}
	return out, nil
}

// Close closes the connection.
func (j *TradeJournal) Close() error {
	return j.conn.Close()
}

func (j *TradeJournal) exists(ctx context.Context, attemptID string) (bool, error) {
	var count uint64
	err := j.conn.QueryRow(ctx, `SELECT count() FROM trade_attempts WHERE attempt_id = ?`, attemptID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row scanner) (*domain.TradeAttempt, error) {
	var (
		a         domain.TradeAttempt
		kind      string
		status    string
		liquidity decimal.Decimal
	)
	err := row.Scan(
		&a.AttemptID, &a.CandidateID, &kind, &a.TokenMint, &a.PoolState, &a.SourceSignature,
		&liquidity, &a.InAmount, &a.OutAmount, &a.Signature,
		&status, &a.Stage, &a.Error, &a.StartedAt, &a.FinishedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan trade attempt: %w", err)
	}

	a.Kind, err = domain.ParseProgramKind(kind)
	if err != nil {
		return nil, fmt.Errorf("scan trade attempt: %w", err)
	}
	a.Status = domain.TradeStatus(status)
	a.LiquiditySOL = liquidity.String()
	return &a, nil
}
