// Package commission computes the brokerage fee charged on every fill.
// The model is a flat percentage of trade notional, rounded half-up to the
// ledger's minimum currency unit. Compute has no side effects, so the
// executor can call it speculatively on every transaction retry without
// double-charging.
package commission

import "github.com/shopspring/decimal"

// currencyScale is the ledger's minimum unit: cents.
const currencyScale = 2

// DefaultRate is the brokerage rate applied when none is configured: 0.3%.
var DefaultRate = decimal.NewFromFloat(0.003)

// Model is a rate-based commission schedule.
type Model struct {
	rate decimal.Decimal
}

// New creates a Model with the given rate (e.g. 0.003 for 0.3%).
// Negative rates are clamped to zero.
func New(rate decimal.Decimal) Model {
	if rate.IsNegative() {
		rate = decimal.Zero
	}
	return Model{rate: rate}
}

// Default returns a Model at DefaultRate.
func Default() Model {
	return New(DefaultRate)
}

// Rate returns the configured commission rate.
func (m Model) Rate() decimal.Decimal {
	return m.rate
}

// Compute returns the fee on a trade of the given gross notional value,
// rounded half-up to cents. Gross is never negative in practice; decimal's
// Round is half-away-from-zero, which is half-up for non-negative input.
func (m Model) Compute(gross decimal.Decimal) decimal.Decimal {
	return gross.Mul(m.rate).Round(currencyScale)
}
