package notify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"solana-pool-sniper/internal/domain"
)

const (
	solscanTxURL       = "https://solscan.io/tx/"
	dexscreenerPairURL = "https://dexscreener.com/solana/"
	lamportsExp        = -9
)

// DetectedMessage announces a pool that passed the risk gate.
func DetectedMessage(c *domain.PoolCandidate, liquidity decimal.Decimal) string {
	var b strings.Builder
	b.WriteString("New pool detected\n")
	fmt.Fprintf(&b, "Token: %s\n", c.TokenMint)
	fmt.Fprintf(&b, "Pool type: %s\n", c.Kind)
	if c.PoolState != "" {
		fmt.Fprintf(&b, "Pool: %s\n", c.PoolState)
	}
	fmt.Fprintf(&b, "Liquidity: %s SOL\n", liquidity.StringFixed(2))
	fmt.Fprintf(&b, "Tx: %s%s\n", solscanTxURL, c.SourceSignature)
	fmt.Fprintf(&b, "Chart: %s%s", dexscreenerPairURL, c.TokenMint)
	return b.String()
}

// RejectedMessage reports a failed risk assessment.
func RejectedMessage(tokenMint, reason string) string {
	return fmt.Sprintf("Token %s failed risk assessment: %s", tokenMint, reason)
}

// TradeConfirmedMessage reports a landed swap. Price is SOL paid per raw token unit.
func TradeConfirmedMessage(tokenMint string, outcome *domain.SwapOutcome) string {
	spent := decimal.NewFromUint64(outcome.InAmount).Shift(lamportsExp)

	var b strings.Builder
	if outcome.Succeeded {
		b.WriteString("Trade executed\n")
	} else {
		b.WriteString("Trade landed but failed on-chain\n")
	}
	fmt.Fprintf(&b, "Token: %s\n", tokenMint)
	fmt.Fprintf(&b, "Amount: %s SOL\n", spent.StringFixed(2))
	if outcome.OutAmount > 0 {
		price := spent.Div(decimal.NewFromUint64(outcome.OutAmount))
		fmt.Fprintf(&b, "Price: %s SOL\n", price.StringFixed(8))
	}
	fmt.Fprintf(&b, "Tx: %s%s", solscanTxURL, outcome.Signature)
	return b.String()
}

// StageError is implemented by errors carrying a pipeline stage name.
type StageError interface {
	error
	StageName() string
}

// TradeFailedMessage reports a trade that did not complete.
func TradeFailedMessage(tokenMint string, err error) string {
	stage := "unknown"
	var se StageError
	if errors.As(err, &se) {
		stage = se.StageName()
	}
	return fmt.Sprintf("Trade failed\nToken: %s\nStage: %s\nError: %v", tokenMint, stage, err)
}

// ErrorMessage wraps an operational error.
func ErrorMessage(err error) string {
	return fmt.Sprintf("Error: %v", err)
}
