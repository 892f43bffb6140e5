package discovery

import (
	"errors"
	"fmt"

	"github.com/near/borsh-go"
	"go.uber.org/zap"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/idhash"
	"solana-pool-sniper/internal/observability"
)

// Decoder recognizes pool creation instructions in fetched transactions.
type Decoder struct {
	logger *zap.Logger
}

// NewDecoder creates a decoder. A nil logger disables logging.
func NewDecoder(logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{logger: logger.With(zap.String("component", "decoder"))}
}

// Decode scans the top-level instructions of tx for program's creation opcode.
// Instructions that match but fail to decode are logged and skipped; the scan stops
// at the first candidate, so at most one candidate is returned per transaction.
func (d *Decoder) Decode(tx *domain.DecodedTransaction, program domain.WatchedProgram) []*domain.PoolCandidate {
	if tx == nil {
		return nil
	}

	for i, ix := range tx.Instructions {
		candidate, err := d.DecodeInstruction(tx, i, program)
		if errors.Is(err, ErrNotCreation) {
			continue
		}
		if err != nil {
			d.logger.Warn("skip creation instruction",
				zap.String("kind", program.Kind.String()),
				zap.String("signature", tx.Signature),
				zap.Int("instruction", i),
				zap.Int("accounts", len(ix.Accounts)),
				zap.Error(err))
			observability.RecordDecodeFailure(program.Kind.String(), reasonOf(err))
			continue
		}

		observability.RecordCandidate(program.Kind.String())
		return []*domain.PoolCandidate{candidate}
	}

	return nil
}

// DecodeInstruction decodes instruction index of tx against program.
// Returns ErrNotCreation if the instruction belongs to another program or opcode.
func (d *Decoder) DecodeInstruction(tx *domain.DecodedTransaction, index int, program domain.WatchedProgram) (*domain.PoolCandidate, error) {
	if index < 0 || index >= len(tx.Instructions) {
		return nil, fmt.Errorf("instruction %d: %w", index, ErrNotCreation)
	}
	ix := tx.Instructions[index]

	programID, err := tx.ProgramID(ix)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProgramIndex, err)
	}
	if programID != program.ProgramID {
		return nil, ErrNotCreation
	}
	opcode, ok := ix.Opcode()
	if !ok || opcode != program.CreationOpcode {
		return nil, ErrNotCreation
	}

	layout, err := LayoutFor(program.Kind)
	if err != nil {
		return nil, err
	}
	if len(ix.Accounts) < layout.MinAccounts {
		return nil, fmt.Errorf("%s: got %d accounts, need %d: %w",
			layout.Version, len(ix.Accounts), layout.MinAccounts, ErrAccountsTooShort)
	}

	candidate := &domain.PoolCandidate{
		Kind:            program.Kind,
		SourceSignature: tx.Signature,
		Slot:            tx.Slot,
	}

	if candidate.TokenMint, err = accountAt(tx, ix, layout.TokenMint); err != nil {
		return nil, err
	}
	if layout.PoolState != noAccount {
		if candidate.PoolState, err = accountAt(tx, ix, layout.PoolState); err != nil {
			return nil, err
		}
	}
	if layout.QuoteMint != noAccount {
		candidate.BaseMint = candidate.TokenMint
		if candidate.QuoteMint, err = accountAt(tx, ix, layout.QuoteMint); err != nil {
			return nil, err
		}
		// Pools listed as SOL/TOKEN still target the non-SOL side.
		if candidate.BaseMint == WSOL && candidate.QuoteMint != WSOL {
			candidate.TokenMint = candidate.QuoteMint
		}
	}
	if layout.HasArgs {
		candidate.InitArgs = d.decodeInitArgs(ix.Data[1:], tx.Signature)
	}

	candidate.CandidateID = idhash.ComputeCandidateID(
		candidate.Kind,
		candidate.TokenMint,
		candidate.PoolState,
		candidate.SourceSignature,
		index,
		candidate.Slot,
	)

	return candidate, nil
}

func accountAt(tx *domain.DecodedTransaction, ix domain.Instruction, pos int) (string, error) {
	addr, err := tx.AccountAt(ix, pos)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAccountIndex, err)
	}
	return addr, nil
}

// initialize2Args is the borsh layout following the initialize2 opcode.
type initialize2Args struct {
	Nonce          uint8
	OpenTime       uint64
	InitPcAmount   uint64
	InitCoinAmount uint64
}

// initialize2ArgsLen is 1 + 3*8 bytes.
const initialize2ArgsLen = 25

// decodeInitArgs is best effort: a malformed tail does not invalidate the candidate.
func (d *Decoder) decodeInitArgs(data []byte, signature string) (out *domain.AmmInitArgs) {
	if len(data) < initialize2ArgsLen {
		d.logger.Debug("initialize2 args too short", zap.String("signature", signature), zap.Int("len", len(data)))
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("initialize2 args panic", zap.String("signature", signature), zap.Any("panic", r))
			out = nil
		}
	}()

	var args initialize2Args
	if err := borsh.Deserialize(&args, data[:initialize2ArgsLen]); err != nil {
		d.logger.Debug("initialize2 args undecodable", zap.String("signature", signature), zap.Error(err))
		return nil
	}

	return &domain.AmmInitArgs{
		Nonce:          args.Nonce,
		OpenTime:       args.OpenTime,
		InitPcAmount:   args.InitPcAmount,
		InitCoinAmount: args.InitCoinAmount,
	}
}

func reasonOf(err error) string {
	switch {
	case errors.Is(err, ErrAccountsTooShort):
		return "accounts_too_short"
	case errors.Is(err, ErrAccountIndex):
		return "account_index"
	case errors.Is(err, ErrProgramIndex):
		return "program_index"
	default:
		return "other"
	}
}
