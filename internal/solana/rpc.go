package solana

import "context"

// RPCClient defines the Solana RPC HTTP calls used by the sniper.
type RPCClient interface {
	// GetTransaction retrieves a transaction by signature.
	// Returns nil, nil if the node does not know the transaction yet.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// SendTransaction broadcasts a signed wire transaction and returns its signature.
	SendTransaction(ctx context.Context, rawTx []byte, opts SendOptions) (string, error)

	// SimulateTransaction dry-runs a wire transaction.
	SimulateTransaction(ctx context.Context, rawTx []byte) (*SimulationResult, error)

	// GetSignatureStatuses returns one status per signature, nil for unknown ones.
	GetSignatureStatuses(ctx context.Context, signatures ...string) ([]*SignatureStatus, error)

	// GetSlot retrieves the current slot.
	GetSlot(ctx context.Context) (int64, error)
}

// Transaction represents a fetched Solana transaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err             interface{}
	LogMessages     []string
	LoadedAddresses LoadedAddresses
}

// LoadedAddresses are the v0 address lookup table resolutions.
type LoadedAddresses struct {
	Writable []string
	Readonly []string
}

// TransactionMessage contains the parsed transaction message.
type TransactionMessage struct {
	AccountKeys  []string
	Instructions []CompiledInstruction
}

// CompiledInstruction is an instruction in json encoding.
type CompiledInstruction struct {
	ProgramIDIndex int
	Accounts       []int
	Data           string // base58
}
