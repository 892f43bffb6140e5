package domain

import "encoding/json"

// Quote is an aggregator price quote. Consumed at most once to build a swap.
type Quote struct {
	InputMint   string
	OutputMint  string
	InAmount    uint64 // base units of InputMint
	OutAmount   uint64 // base units of OutputMint
	SlippageBps int
	Raw         json.RawMessage // payload echoed back to the swap endpoint
}

// SwapOutcome is the terminal record of a trade attempt.
type SwapOutcome struct {
	Signature  string
	Succeeded  bool
	InputMint  string
	OutputMint string
	InAmount   uint64
	OutAmount  uint64
}

// TradeStatus is the journal status of a trade attempt.
type TradeStatus string

const (
	TradeStatusConfirmed          TradeStatus = "CONFIRMED"
	TradeStatusFailed             TradeStatus = "FAILED"
	TradeStatusSimulationRejected TradeStatus = "SIMULATION_REJECTED"
)

// IsValid checks if the status is a valid value.
func (s TradeStatus) IsValid() bool {
	return s == TradeStatusConfirmed || s == TradeStatusFailed || s == TradeStatusSimulationRejected
}

// TradeAttempt is a journal row describing one execute call.
// Corresponds to the trade_attempts table.
type TradeAttempt struct {
	AttemptID       string      // PRIMARY KEY, uuid
	CandidateID     string      // pool candidate hash
	Kind            ProgramKind // pool program variant
	TokenMint       string
	PoolState       string // empty for CLMM
	SourceSignature string // pool creation transaction
	LiquiditySOL    string // decimal string
	InAmount        uint64
	OutAmount       uint64
	Signature       string // swap transaction signature, empty if never broadcast
	Status          TradeStatus
	Stage           string // failing stage, empty on success
	Error           string
	StartedAt       int64 // Unix timestamp in milliseconds
	FinishedAt      int64 // Unix timestamp in milliseconds
}
