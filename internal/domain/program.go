package domain

import (
	"fmt"
	"strings"
)

// ProgramKind identifies which pool program a subscription watches.
type ProgramKind int

const (
	PoolAmmKind ProgramKind = iota + 1
	PoolClmmKind
)

// String returns the config/log name of the kind.
func (k ProgramKind) String() string {
	switch k {
	case PoolAmmKind:
		return "AMM"
	case PoolClmmKind:
		return "CLMM"
	default:
		return fmt.Sprintf("ProgramKind(%d)", int(k))
	}
}

// IsValid checks if the kind is one of the known variants.
func (k ProgramKind) IsValid() bool {
	return k == PoolAmmKind || k == PoolClmmKind
}

// ParseProgramKind parses "AMM" or "CLMM" (case-insensitive).
func ParseProgramKind(s string) (ProgramKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AMM":
		return PoolAmmKind, nil
	case "CLMM":
		return PoolClmmKind, nil
	default:
		return 0, fmt.Errorf("unknown program kind %q", s)
	}
}

// WatchedProgram is a program subscribed to at startup. Immutable.
type WatchedProgram struct {
	ProgramID      string      // program address (base58)
	Kind           ProgramKind // pool program variant
	CreationOpcode byte        // first data byte of the pool creation instruction
}

// LogEvent is a tagged log notification handed from a subscriber to the coordinator.
type LogEvent struct {
	Kind       ProgramKind
	Signature  string
	Slot       int64
	ReceivedAt int64 // Unix timestamp in milliseconds
}
