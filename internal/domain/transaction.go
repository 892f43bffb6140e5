package domain

import "fmt"

// DecodedTransaction is a read-only view over a fetched transaction.
type DecodedTransaction struct {
	Signature    string
	Slot         int64
	BlockTime    int64
	Succeeded    bool        // false when meta.err is set
	Err          interface{} // raw on-chain error, nil on success
	AccountKeys  []string    // static keys, then loaded writable, then loaded readonly
	Instructions []Instruction
}

// Instruction is a top-level compiled instruction.
type Instruction struct {
	ProgramIndex int    // index into AccountKeys
	Data         []byte // raw instruction data
	Accounts     []int  // indexes into AccountKeys
}

// Opcode returns the first data byte.
func (ix Instruction) Opcode() (byte, bool) {
	if len(ix.Data) == 0 {
		return 0, false
	}
	return ix.Data[0], true
}

// ProgramID resolves the instruction's program address.
func (tx *DecodedTransaction) ProgramID(ix Instruction) (string, error) {
	if ix.ProgramIndex < 0 || ix.ProgramIndex >= len(tx.AccountKeys) {
		return "", fmt.Errorf("program index %d out of range (%d keys)", ix.ProgramIndex, len(tx.AccountKeys))
	}
	return tx.AccountKeys[ix.ProgramIndex], nil
}

// AccountAt resolves the account at position pos of the instruction.
func (tx *DecodedTransaction) AccountAt(ix Instruction, pos int) (string, error) {
	if pos < 0 || pos >= len(ix.Accounts) {
		return "", fmt.Errorf("account position %d out of range (%d accounts)", pos, len(ix.Accounts))
	}
	idx := ix.Accounts[pos]
	if idx < 0 || idx >= len(tx.AccountKeys) {
		return "", fmt.Errorf("account index %d out of range (%d keys)", idx, len(tx.AccountKeys))
	}
	return tx.AccountKeys[idx], nil
}
