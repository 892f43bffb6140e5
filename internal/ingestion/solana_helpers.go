package ingestion

import (
	"fmt"

	"github.com/mr-tron/base58"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/solana"
)

// toDecodedTransaction converts an RPC transaction into the pipeline view.
// Account keys are ordered static keys, loaded writable, loaded readonly,
// which is the index space v0 instructions reference.
func toDecodedTransaction(tx *solana.Transaction) (*domain.DecodedTransaction, error) {
	if tx.Message == nil {
		return nil, fmt.Errorf("%w: missing message", ErrMalformedTransaction)
	}

	out := &domain.DecodedTransaction{
		Signature: tx.Signature,
		Slot:      tx.Slot,
		BlockTime: tx.BlockTime,
		Succeeded: true,
	}

	keys := make([]string, 0, len(tx.Message.AccountKeys))
	keys = append(keys, tx.Message.AccountKeys...)
	if tx.Meta != nil {
		out.Err = tx.Meta.Err
		out.Succeeded = tx.Meta.Err == nil
		keys = append(keys, tx.Meta.LoadedAddresses.Writable...)
		keys = append(keys, tx.Meta.LoadedAddresses.Readonly...)
	}
	out.AccountKeys = keys

	out.Instructions = make([]domain.Instruction, 0, len(tx.Message.Instructions))
	for i, ix := range tx.Message.Instructions {
		data, err := base58.Decode(ix.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: instruction %d data: %v", ErrMalformedTransaction, i, err)
		}
		out.Instructions = append(out.Instructions, domain.Instruction{
			ProgramIndex: ix.ProgramIDIndex,
			Data:         data,
			Accounts:     ix.Accounts,
		})
	}

	return out, nil
}
