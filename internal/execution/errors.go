package execution

import (
	"errors"
	"fmt"
)

// Stage names a step of a trade attempt.
type Stage string

const (
	StageQuote     Stage = "quote"
	StageSwap      Stage = "swap"
	StageSimulate  Stage = "simulate"
	StageSign      Stage = "sign"
	StageBroadcast Stage = "broadcast"
	StageConfirm   Stage = "confirm"
)

var (
	// ErrSimulationRejected means the node predicted the swap would fail.
	ErrSimulationRejected = errors.New("simulation rejected transaction")
	// ErrConfirmTimeout means the transaction did not land before the deadline.
	ErrConfirmTimeout = errors.New("confirmation timed out")
)

// ExecutionError reports the stage at which a trade attempt stopped.
// Signature is set once the transaction has been signed.
type ExecutionError struct {
	Stage     Stage
	Signature string
	Err       error
}

func (e *ExecutionError) Error() string {
	if e.Signature != "" {
		return fmt.Sprintf("%s failed (tx %s): %v", e.Stage, e.Signature, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// StageName returns the failing stage.
func (e *ExecutionError) StageName() string { return string(e.Stage) }
