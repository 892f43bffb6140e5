package stub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"solana-pool-sniper/internal/solana"
)

// ErrNotFound is returned when a signature is not known to the stub.
var ErrNotFound = errors.New("not found")

// RPCClient implements solana.RPCClient for testing.
// Failures queued in the *Errs slices are returned first, one per call.
type RPCClient struct {
	mu sync.Mutex

	Transactions map[string]*solana.Transaction
	Statuses     map[string]*solana.SignatureStatus
	Simulation   *solana.SimulationResult
	Slot         int64

	// SendSignature is returned by SendTransaction; empty derives one from the call count.
	SendSignature string

	GetTransactionErrs []error
	SendErrs           []error
	SimulateErrs       []error
	StatusErrs         []error

	GetTransactionCalls int
	SendCalls           int
	SimulateCalls       int
	StatusCalls         int
	Sent                [][]byte
}

var _ solana.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Transactions: make(map[string]*solana.Transaction),
		Statuses:     make(map[string]*solana.SignatureStatus),
	}
}

func popErr(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

// GetTransaction returns the stored transaction, or nil, nil if unknown.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.GetTransactionCalls++
	if err := popErr(&c.GetTransactionErrs); err != nil {
		return nil, err
	}
	return c.Transactions[signature], nil
}

// SendTransaction records the payload and returns a signature.
func (c *RPCClient) SendTransaction(_ context.Context, rawTx []byte, _ solana.SendOptions) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.SendCalls++
	if err := popErr(&c.SendErrs); err != nil {
		return "", err
	}
	c.Sent = append(c.Sent, append([]byte(nil), rawTx...))
	if c.SendSignature != "" {
		return c.SendSignature, nil
	}
	return fmt.Sprintf("stub-sig-%d", c.SendCalls), nil
}

// SimulateTransaction returns Simulation, or a clean result if unset.
func (c *RPCClient) SimulateTransaction(_ context.Context, _ []byte) (*solana.SimulationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.SimulateCalls++
	if err := popErr(&c.SimulateErrs); err != nil {
		return nil, err
	}
	if c.Simulation != nil {
		return c.Simulation, nil
	}
	return &solana.SimulationResult{}, nil
}

// GetSignatureStatuses looks up Statuses; signatures without an entry are
// reported confirmed unless the map holds an explicit nil.
func (c *RPCClient) GetSignatureStatuses(_ context.Context, signatures ...string) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.StatusCalls++
	if err := popErr(&c.StatusErrs); err != nil {
		return nil, err
	}

	out := make([]*solana.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		status, ok := c.Statuses[sig]
		if !ok {
			status = &solana.SignatureStatus{ConfirmationStatus: solana.CommitmentConfirmed}
		}
		out[i] = status
	}
	return out, nil
}

// GetSlot returns Slot.
func (c *RPCClient) GetSlot(_ context.Context) (int64, error) {
	return c.Slot, nil
}

// AddTransaction adds a transaction to the stub store.
func (c *RPCClient) AddTransaction(tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions[tx.Signature] = tx
}
