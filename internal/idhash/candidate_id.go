package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"solana-pool-sniper/internal/domain"
)

// ComputeCandidateID computes a deterministic candidate_id using SHA256.
// Formula: SHA256(kind|mint|pool|tx_signature|instruction_index|slot)
// Returns hex-encoded hash (64 characters).
func ComputeCandidateID(
	kind domain.ProgramKind,
	mint string,
	pool string,
	txSignature string,
	instructionIndex int,
	slot int64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d|%d",
		kind.String(),
		mint,
		pool,
		txSignature,
		instructionIndex,
		slot,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputePoolKey identifies a pool independent of the transaction that announced it.
// Formula: SHA256(kind|mint|pool)
// Two detections of the same pool share a key, which makes it usable for dedup.
func ComputePoolKey(kind domain.ProgramKind, mint string, pool string) string {
	data := fmt.Sprintf("%s|%s|%s", kind.String(), mint, pool)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
