package domain

import "github.com/shopspring/decimal"

// RiskAssessment is the reduced verdict of all risk checks for one candidate.
type RiskAssessment struct {
	IsSafe     bool
	Reason     string          // empty when safe
	Liquidity  decimal.Decimal // SOL
	IsHoneypot bool
}
