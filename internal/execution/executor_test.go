package execution

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-pool-sniper/internal/aggregator"
	"solana-pool-sniper/internal/discovery"
	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/retry"
	"solana-pool-sniper/internal/solana"
	"solana-pool-sniper/internal/solana/stub"
)

// unsignedTx builds a legacy transaction with an empty signature slot for payer,
// the shape the aggregator returns.
func unsignedTx(t *testing.T, payer types.Account) []byte {
	t.Helper()
	msg := types.NewMessage(types.NewMessageParam{
		FeePayer:        payer.PublicKey,
		RecentBlockhash: types.NewAccount().PublicKey.ToBase58(),
		Instructions: []types.Instruction{{
			ProgramID: common.SystemProgramID,
			Accounts:  []types.AccountMeta{{PubKey: payer.PublicKey, IsSigner: true, IsWritable: true}},
			Data:      []byte{2, 0, 0, 0},
		}},
	})
	body, err := msg.Serialize()
	require.NoError(t, err)

	raw := append([]byte{1}, make([]byte, 64)...)
	return append(raw, body...)
}

type fakeAggregator struct {
	quoteErrs  []error
	swapErrs   []error
	quoteCalls int
	swapCalls  int
	swapTx     []byte
	lastQuote  aggregator.QuoteRequest
	lastSwap   aggregator.SwapRequest
}

func (f *fakeAggregator) Quote(_ context.Context, req aggregator.QuoteRequest) (*domain.Quote, error) {
	f.quoteCalls++
	f.lastQuote = req
	if len(f.quoteErrs) > 0 {
		err := f.quoteErrs[0]
		if len(f.quoteErrs) > 1 {
			f.quoteErrs = f.quoteErrs[1:]
		}
		if err != nil {
			return nil, err
		}
	}
	return &domain.Quote{
		InputMint:   req.InputMint,
		OutputMint:  req.OutputMint,
		InAmount:    req.Amount,
		OutAmount:   5_000_000,
		SlippageBps: req.SlippageBps,
		Raw:         json.RawMessage(`{}`),
	}, nil
}

func (f *fakeAggregator) SwapTransaction(_ context.Context, req aggregator.SwapRequest) ([]byte, error) {
	f.swapCalls++
	f.lastSwap = req
	if len(f.swapErrs) > 0 {
		err := f.swapErrs[0]
		f.swapErrs = f.swapErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.swapTx, nil
}

type fixture struct {
	wallet *Wallet
	agg    *fakeAggregator
	rpc    *stub.RPCClient
	exec   *Executor
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	acc := types.NewAccount()
	f := &fixture{
		wallet: NewWallet(acc),
		agg:    &fakeAggregator{swapTx: unsignedTx(t, acc)},
		rpc:    stub.NewRPCClient(),
	}
	cfg := Config{
		SlippageBps:              500,
		PriorityFeeMicroLamports: DefaultPriorityFee,
		Simulate:                 true,
		ConfirmTimeout:           200 * time.Millisecond,
		ConfirmPollInterval:      5 * time.Millisecond,
		Retry:                    retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	f.exec = NewExecutor(cfg, f.agg, f.rpc, f.wallet, nil)
	return f
}

var target = &domain.PoolCandidate{Kind: domain.PoolAmmKind, TokenMint: "MINTX"}

func TestExecutor_HappyPath(t *testing.T) {
	f := newFixture(t, nil)

	out, err := f.exec.Execute(context.Background(), target, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
	assert.Equal(t, "stub-sig-1", out.Signature)
	assert.Equal(t, DefaultInputAmount, out.InAmount)
	assert.Equal(t, uint64(5_000_000), out.OutAmount)

	assert.Equal(t, discovery.WSOL, f.agg.lastQuote.InputMint)
	assert.Equal(t, "MINTX", f.agg.lastQuote.OutputMint)
	assert.Equal(t, 500, f.agg.lastQuote.SlippageBps)
	assert.Equal(t, f.wallet.PublicKey(), f.agg.lastSwap.UserPublicKey)
	assert.Equal(t, DefaultPriorityFee, f.agg.lastSwap.ComputeUnitPriceMicroLamports)
	assert.Equal(t, 1, f.rpc.SimulateCalls)
	require.Len(t, f.rpc.Sent, 1)

	tx, err := types.TransactionDeserialize(f.rpc.Sent[0])
	require.NoError(t, err)
	msg, err := tx.Message.Serialize()
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(f.wallet.account.PublicKey.Bytes(), msg, tx.Signatures[0]))
}

func TestExecutor_TransientQuoteRetriesToMaxAttempts(t *testing.T) {
	f := newFixture(t, nil)
	f.agg.quoteErrs = []error{&aggregator.StatusError{Endpoint: "quote", StatusCode: http.StatusServiceUnavailable}}

	_, err := f.exec.Execute(context.Background(), target, decimal.NewFromInt(10))
	var ee *ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, StageQuote, ee.Stage)
	assert.True(t, retry.IsExhausted(err))
	assert.Equal(t, 3, f.agg.quoteCalls)
	assert.Equal(t, 0, f.agg.swapCalls)
}

func TestExecutor_TransientQuoteRecovers(t *testing.T) {
	f := newFixture(t, nil)
	f.agg.quoteErrs = []error{errors.New("connection reset"), nil}

	_, err := f.exec.Execute(context.Background(), target, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, 2, f.agg.quoteCalls)
}

func TestExecutor_PermanentQuoteSingleAttempt(t *testing.T) {
	f := newFixture(t, nil)
	f.agg.quoteErrs = []error{fmt.Errorf("%w: bad payload", aggregator.ErrDecode)}

	_, err := f.exec.Execute(context.Background(), target, decimal.NewFromInt(10))
	var ee *ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, StageQuote, ee.Stage)
	assert.ErrorIs(t, err, aggregator.ErrDecode)
	assert.False(t, retry.IsExhausted(err))
	assert.Equal(t, 1, f.agg.quoteCalls)
}

func TestExecutor_SwapBuildFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.agg.swapErrs = []error{fmt.Errorf("%w: no swapTransaction", aggregator.ErrDecode)}

	_, err := f.exec.Execute(context.Background(), target, decimal.NewFromInt(10))
	var ee *ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, StageSwap, ee.Stage)
	assert.Equal(t, 1, f.agg.swapCalls)
}

func TestExecutor_SimulationRejected(t *testing.T) {
	f := newFixture(t, nil)
	f.rpc.Simulation = &solana.SimulationResult{
		Err:  map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}},
		Logs: []string{"Program log: slippage exceeded"},
	}

	_, err := f.exec.Execute(context.Background(), target, decimal.NewFromInt(10))
	var ee *ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, StageSimulate, ee.Stage)
	assert.ErrorIs(t, err, ErrSimulationRejected)
	assert.Equal(t, 0, f.rpc.SendCalls)
}

func TestExecutor_SimulationDisabled(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Simulate = false })

	_, err := f.exec.Execute(context.Background(), target, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, 0, f.rpc.SimulateCalls)
}

func TestExecutor_SignFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.agg.swapTx = unsignedTx(t, types.NewAccount())

	_, err := f.exec.Execute(context.Background(), target, decimal.NewFromInt(10))
	var ee *ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, StageSign, ee.Stage)
	assert.ErrorIs(t, err, ErrSignerNotRequired)
	assert.Equal(t, 0, f.rpc.SendCalls)
}

func TestExecutor_BroadcastRetried(t *testing.T) {
	f := newFixture(t, nil)
	f.rpc.SendErrs = []error{errors.New("connection reset")}

	out, err := f.exec.Execute(context.Background(), target, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, 2, f.rpc.SendCalls)
	assert.Equal(t, "stub-sig-2", out.Signature)
}

func TestExecutor_BroadcastRPCErrorNotRetried(t *testing.T) {
	f := newFixture(t, nil)
	f.rpc.SendErrs = []error{&solana.RPCError{Code: -32002, Message: "Blockhash not found"}}

	_, err := f.exec.Execute(context.Background(), target, decimal.NewFromInt(10))
	var ee *ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, StageBroadcast, ee.Stage)
	assert.NotEmpty(t, ee.Signature)
	assert.Equal(t, 1, f.rpc.SendCalls)
}

func TestExecutor_LandedButFailed(t *testing.T) {
	f := newFixture(t, nil)
	f.rpc.Statuses["stub-sig-1"] = &solana.SignatureStatus{
		ConfirmationStatus: solana.CommitmentConfirmed,
		Err:                map[string]interface{}{"InstructionError": []interface{}{2, "Custom"}},
	}

	out, err := f.exec.Execute(context.Background(), target, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.False(t, out.Succeeded)
	assert.Equal(t, "stub-sig-1", out.Signature)
}

func TestExecutor_ConfirmTimeout(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.ConfirmTimeout = 30 * time.Millisecond })
	f.rpc.Statuses["stub-sig-1"] = nil

	_, err := f.exec.Execute(context.Background(), target, decimal.NewFromInt(10))
	var ee *ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, StageConfirm, ee.Stage)
	assert.Equal(t, "stub-sig-1", ee.Signature)
	assert.ErrorIs(t, err, ErrConfirmTimeout)
	assert.GreaterOrEqual(t, f.rpc.StatusCalls, 2)
}

func TestExecutor_ConfirmToleratesLookupErrors(t *testing.T) {
	f := newFixture(t, nil)
	f.rpc.StatusErrs = []error{errors.New("timeout"), errors.New("timeout")}

	out, err := f.exec.Execute(context.Background(), target, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
	assert.Equal(t, 3, f.rpc.StatusCalls)
}

func TestLoadWallet(t *testing.T) {
	acc := types.NewAccount()
	want := acc.PublicKey.ToBase58()

	ints := make([]int, len(acc.PrivateKey))
	for i, b := range acc.PrivateKey {
		ints[i] = int(b)
	}
	arr, err := json.Marshal(ints)
	require.NoError(t, err)

	fromJSON, err := LoadWallet(string(arr))
	require.NoError(t, err)
	assert.Equal(t, want, fromJSON.PublicKey())

	from58, err := LoadWallet(base58.Encode(acc.PrivateKey))
	require.NoError(t, err)
	assert.Equal(t, want, from58.PublicKey())
}

func TestLoadWallet_Invalid(t *testing.T) {
	for name, secret := range map[string]string{
		"empty":        "",
		"short array":  "[1,2,3]",
		"out of range": "[256" + strings.Repeat(",0", 63) + "]",
		"bad base58":   "0OIl",
		"short base58": base58.Encode([]byte{1, 2, 3}),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadWallet(secret)
			require.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestExecutor_QuoteTimeoutRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	agg := aggregator.NewClient(
		aggregator.WithBaseURL(srv.URL),
		aggregator.WithHTTPClient(&http.Client{Timeout: 30 * time.Millisecond}),
	)
	acc := types.NewAccount()
	exec := NewExecutor(Config{
		Retry: retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	}, agg, stub.NewRPCClient(), NewWallet(acc), nil)

	_, err := exec.Execute(context.Background(), target, decimal.NewFromInt(10))
	var ee *ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, StageQuote, ee.Stage)
	assert.True(t, retry.IsExhausted(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestExecutor_BroadcastRequestsBounded(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
		wantSends  int32
	}{
		{"stage policy owns retries", 0, 3},
		{"exhausted client budget is final", 3, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sends int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					Method string `json:"method"`
				}
				_ = json.NewDecoder(r.Body).Decode(&req)
				if req.Method == "sendTransaction" {
					atomic.AddInt32(&sends, 1)
				}
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			defer srv.Close()

			rpc := solana.NewHTTPClient(srv.URL,
				solana.WithMaxRetries(tt.maxRetries),
				solana.WithRetryDelay(time.Millisecond),
				solana.WithMaxDelay(time.Millisecond),
			)
			acc := types.NewAccount()
			exec := NewExecutor(Config{
				Simulate: false,
				Retry:    retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
			}, &fakeAggregator{swapTx: unsignedTx(t, acc)}, rpc, NewWallet(acc), nil)

			_, err := exec.Execute(context.Background(), target, decimal.NewFromInt(10))
			var ee *ExecutionError
			require.True(t, errors.As(err, &ee))
			assert.Equal(t, StageBroadcast, ee.Stage)
			assert.Equal(t, tt.wantSends, atomic.LoadInt32(&sends))
		})
	}
}
