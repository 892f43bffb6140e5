package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-pool-sniper/internal/retry"
	"solana-pool-sniper/internal/solana"
	"solana-pool-sniper/internal/solana/stub"
)

func fastRetry(attempts int) retry.Policy {
	return retry.Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func sampleTx(sig string, metaErr interface{}) *solana.Transaction {
	return &solana.Transaction{
		Slot:      99,
		Signature: sig,
		BlockTime: 1700000000,
		Meta: &solana.TransactionMeta{
			Err: metaErr,
			LoadedAddresses: solana.LoadedAddresses{
				Writable: []string{"loadedW"},
				Readonly: []string{"loadedR"},
			},
		},
		Message: &solana.TransactionMessage{
			AccountKeys: []string{"payer", "program"},
			Instructions: []solana.CompiledInstruction{
				{ProgramIDIndex: 1, Accounts: []int{0, 2, 3}, Data: base58.Encode([]byte{33, 7})},
			},
		},
	}
}

func TestFetcher_Fetch(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddTransaction(sampleTx("SIG1", nil))

	tx, err := NewFetcher(rpc, fastRetry(3), nil).Fetch(context.Background(), "SIG1")
	require.NoError(t, err)

	assert.True(t, tx.Succeeded)
	assert.Equal(t, int64(99), tx.Slot)
	assert.Equal(t, []string{"payer", "program", "loadedW", "loadedR"}, tx.AccountKeys)
	require.Len(t, tx.Instructions, 1)
	assert.Equal(t, []byte{33, 7}, tx.Instructions[0].Data)

	addr, err := tx.AccountAt(tx.Instructions[0], 2)
	require.NoError(t, err)
	assert.Equal(t, "loadedR", addr)
}

func TestFetcher_FailedOnChain(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddTransaction(sampleTx("SIGF", map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}))

	tx, err := NewFetcher(rpc, fastRetry(3), nil).Fetch(context.Background(), "SIGF")
	require.NoError(t, err)

	assert.False(t, tx.Succeeded)
	assert.NotNil(t, tx.Err)
	assert.Equal(t, 1, rpc.GetTransactionCalls)
}

func TestFetcher_RetriesNotFoundThenFails(t *testing.T) {
	rpc := stub.NewRPCClient()

	_, err := NewFetcher(rpc, fastRetry(3), nil).Fetch(context.Background(), "MISSING")
	require.Error(t, err)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "MISSING", fetchErr.Signature)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
	assert.True(t, retry.IsExhausted(err))
	assert.Equal(t, 3, rpc.GetTransactionCalls)
}

func TestFetcher_RecoversFromTransientError(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddTransaction(sampleTx("SIG2", nil))
	rpc.GetTransactionErrs = []error{errors.New("connection reset"), errors.New("timeout")}

	tx, err := NewFetcher(rpc, fastRetry(3), nil).Fetch(context.Background(), "SIG2")
	require.NoError(t, err)
	assert.Equal(t, "SIG2", tx.Signature)
	assert.Equal(t, 3, rpc.GetTransactionCalls)
}

func TestFetcher_MalformedIsNotRetried(t *testing.T) {
	bad := sampleTx("SIGM", nil)
	bad.Message.Instructions[0].Data = "0OIl" // not base58

	rpc := stub.NewRPCClient()
	rpc.AddTransaction(bad)

	_, err := NewFetcher(rpc, fastRetry(5), nil).Fetch(context.Background(), "SIGM")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedTransaction)
	assert.Equal(t, 1, rpc.GetTransactionCalls)
}

func TestFetcher_MissingMessage(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddTransaction(&solana.Transaction{Signature: "SIGN", Meta: &solana.TransactionMeta{}})

	_, err := NewFetcher(rpc, fastRetry(2), nil).Fetch(context.Background(), "SIGN")
	assert.ErrorIs(t, err, ErrMalformedTransaction)
}
