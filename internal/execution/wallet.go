package execution

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"
)

var (
	// ErrInvalidKey means the secret is neither a JSON byte array nor base58.
	ErrInvalidKey = errors.New("invalid wallet key")
	// ErrSignerNotRequired means the transaction does not list the wallet as a signer.
	ErrSignerNotRequired = errors.New("wallet is not a required signer")
)

// Wallet holds the single signing keypair.
type Wallet struct {
	account types.Account
}

// NewWallet wraps an existing account.
func NewWallet(account types.Account) *Wallet {
	return &Wallet{account: account}
}

// LoadWallet parses a 64-byte secret given as a JSON array ("[12,34,...]")
// or a base58 string.
func LoadWallet(secret string) (*Wallet, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidKey)
	}

	var raw []byte
	if strings.HasPrefix(secret, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(secret), &ints); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		raw = make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("%w: byte %d out of range", ErrInvalidKey, i)
			}
			raw[i] = byte(v)
		}
	} else {
		decoded, err := base58.Decode(secret)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		raw = decoded
	}

	if len(raw) != 64 {
		return nil, fmt.Errorf("%w: expected 64 bytes, got %d", ErrInvalidKey, len(raw))
	}
	account, err := types.AccountFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &Wallet{account: account}, nil
}

// PublicKey returns the base58 address.
func (w *Wallet) PublicKey() string {
	return w.account.PublicKey.ToBase58()
}

// SignTransaction fills the wallet's signature slot of a serialized transaction
// and returns the signed bytes with the base58 signature.
func (w *Wallet) SignTransaction(raw []byte) ([]byte, string, error) {
	tx, err := types.TransactionDeserialize(raw)
	if err != nil {
		return nil, "", fmt.Errorf("deserialize transaction: %w", err)
	}

	message, err := tx.Message.Serialize()
	if err != nil {
		return nil, "", fmt.Errorf("serialize message: %w", err)
	}

	slot := -1
	signers := int(tx.Message.Header.NumRequireSignatures)
	for i := 0; i < signers && i < len(tx.Message.Accounts); i++ {
		if tx.Message.Accounts[i] == w.account.PublicKey {
			slot = i
			break
		}
	}
	if slot < 0 || slot >= len(tx.Signatures) {
		return nil, "", ErrSignerNotRequired
	}

	sig := w.account.Sign(message)
	tx.Signatures[slot] = sig

	signed, err := tx.Serialize()
	if err != nil {
		return nil, "", fmt.Errorf("serialize signed transaction: %w", err)
	}
	return signed, base58.Encode(sig), nil
}
