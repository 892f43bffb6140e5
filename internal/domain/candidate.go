package domain

// PoolCandidate is a pool creation recognized by the decoder.
type PoolCandidate struct {
	CandidateID     string      // deterministic hash
	Kind            ProgramKind // pool program variant
	TokenMint       string      // token to buy
	BaseMint        string      // AMM base (coin) mint, empty for CLMM
	QuoteMint       string      // AMM quote (pc) mint, empty for CLMM
	PoolState       string      // AMM pool state account, empty for CLMM
	SourceSignature string      // creation transaction signature
	Slot            int64       // Solana slot number
	InitArgs        *AmmInitArgs
}

// AmmInitArgs are the initialize2 arguments following the opcode byte.
type AmmInitArgs struct {
	Nonce          uint8
	OpenTime       uint64
	InitPcAmount   uint64
	InitCoinAmount uint64
}
