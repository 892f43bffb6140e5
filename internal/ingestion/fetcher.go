package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/observability"
	"solana-pool-sniper/internal/retry"
	"solana-pool-sniper/internal/solana"
)

var (
	// ErrTransactionNotFound means the node does not serve the transaction yet.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrMalformedTransaction means the payload cannot be decoded. Never retried.
	ErrMalformedTransaction = errors.New("malformed transaction")
)

// FetchError is returned when a transaction could not be retrieved.
type FetchError struct {
	Signature string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch transaction %s: %v", e.Signature, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher retrieves full transactions for log notifications.
type Fetcher struct {
	rpc    solana.RPCClient
	policy retry.Policy
	logger *zap.Logger
}

// NewFetcher creates a fetcher retrying transient failures under policy.
func NewFetcher(rpc solana.RPCClient, policy retry.Policy, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		rpc:    rpc,
		policy: policy,
		logger: logger.With(zap.String("component", "fetcher")),
	}
}

// Fetch retrieves and decodes the transaction for signature.
// A transaction that failed on-chain is returned with Succeeded=false and no error.
func (f *Fetcher) Fetch(ctx context.Context, signature string) (*domain.DecodedTransaction, error) {
	policy := f.policy
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		observability.RecordRetry("getTransaction")
		f.logger.Debug("retry getTransaction",
			zap.String("signature", signature),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	var decoded *domain.DecodedTransaction
	start := time.Now()
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		tx, err := f.rpc.GetTransaction(ctx, signature)
		if err != nil {
			return err
		}
		if tx == nil {
			return ErrTransactionNotFound
		}
		if tx.Signature == "" {
			tx.Signature = signature
		}

		decoded, err = toDecodedTransaction(tx)
		if err != nil {
			return retry.Permanent(err)
		}
		return nil
	})
	observability.RecordRPCLatency("getTransaction", time.Since(start).Seconds())

	if err != nil {
		observability.RecordFetch("error")
		return nil, &FetchError{Signature: signature, Err: err}
	}

	if !decoded.Succeeded {
		observability.RecordFetch("failed_onchain")
		return decoded, nil
	}

	observability.RecordFetch("ok")
	return decoded, nil
}
