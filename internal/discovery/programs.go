package discovery

import (
	"fmt"

	"solana-pool-sniper/internal/domain"
)

// Known pool program IDs.
const (
	// RaydiumAMMV4 is the Raydium AMM v4 program ID.
	RaydiumAMMV4 = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	// RaydiumCLMM is the Raydium concentrated liquidity program ID.
	RaydiumCLMM = "CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK"
)

// WSOL is the Wrapped SOL mint address.
const WSOL = "So11111111111111111111111111111111111111112"

// Default creation opcodes.
const (
	AmmInitialize2Opcode   byte = 33
	ClmmOpenPositionOpcode byte = 4
)

// noAccount marks a position the layout does not carry.
const noAccount = -1

// AccountLayout pins the account positions of a creation instruction.
// Positions are a contract with the on-chain program version named by Version;
// a layout change upstream must surface as a decode failure, never a silent misparse.
type AccountLayout struct {
	Version     string
	MinAccounts int
	PoolState   int
	TokenMint   int
	QuoteMint   int
	HasArgs     bool // AMM initialize arguments follow the opcode
}

// Raydium AMM v4 - initialize2 account layout:
//
// #0  - Token Program
// #1  - Associated Token Program
// #2  - System Program
// #3  - Rent Sysvar
// #4  - AMM pool state (amm id)
// #5  - AMM authority
// #6  - AMM open orders
// #7  - LP mint
// #8  - Coin (base) mint
// #9  - Pc (quote) mint
// #10+ - vaults, target orders, config, fee destination, market, user accounts
var ammInitialize2Layout = AccountLayout{
	Version:     "raydium-amm-v4/initialize2",
	MinAccounts: 10,
	PoolState:   4,
	TokenMint:   8,
	QuoteMint:   9,
	HasArgs:     true,
}

// Raydium CLMM - open_position: the token mint is read from #8.
// No pool state is taken from this instruction.
var clmmOpenPositionLayout = AccountLayout{
	Version:     "raydium-clmm/open_position",
	MinAccounts: 9,
	PoolState:   noAccount,
	TokenMint:   8,
	QuoteMint:   noAccount,
}

// LayoutFor returns the account layout of the creation instruction for kind.
func LayoutFor(kind domain.ProgramKind) (AccountLayout, error) {
	switch kind {
	case domain.PoolAmmKind:
		return ammInitialize2Layout, nil
	case domain.PoolClmmKind:
		return clmmOpenPositionLayout, nil
	default:
		return AccountLayout{}, fmt.Errorf("no layout for program kind %s", kind)
	}
}

// DefaultProgram returns the watched program for kind with mainnet defaults.
func DefaultProgram(kind domain.ProgramKind) (domain.WatchedProgram, error) {
	switch kind {
	case domain.PoolAmmKind:
		return domain.WatchedProgram{ProgramID: RaydiumAMMV4, Kind: kind, CreationOpcode: AmmInitialize2Opcode}, nil
	case domain.PoolClmmKind:
		return domain.WatchedProgram{ProgramID: RaydiumCLMM, Kind: kind, CreationOpcode: ClmmOpenPositionOpcode}, nil
	default:
		return domain.WatchedProgram{}, fmt.Errorf("unknown program kind %s", kind)
	}
}
