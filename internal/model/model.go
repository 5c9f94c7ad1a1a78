// Package model defines the core domain types shared across the ledger engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order sides.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Trade settlement statuses.
const (
	StatusPending  = "pending"
	StatusSettled  = "settled"
	StatusReversed = "reversed" // administrative correction only
)

// Position is a holding in one ticker within an account.
// Quantity is a whole number of shares and never goes negative.
// AverageCost is the quantity-weighted average entry price; it resets to
// zero when the position is fully liquidated.
type Position struct {
	Ticker      string          `json:"ticker"`
	Quantity    int64           `json:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost"`
}

// Account is the per-user cash-and-holdings ledger. It is mutated only
// through atomic store transactions driven by the order executor.
type Account struct {
	ID          string              `json:"id"`
	CashBalance decimal.Decimal     `json:"cash_balance"`
	Holdings    map[string]Position `json:"holdings"`
	CreatedAt   time.Time           `json:"created_at"`
}

// Clone returns a deep copy so a transaction can mutate freely while the
// committed snapshot stays untouched on abort.
func (a *Account) Clone() *Account {
	cp := *a
	cp.Holdings = make(map[string]Position, len(a.Holdings))
	for k, v := range a.Holdings {
		cp.Holdings[k] = v
	}
	return &cp
}

// Order is the ephemeral client intent. It is validated and converted into
// exactly one Trade; it is never persisted on its own.
type Order struct {
	AccountID   string    `json:"account_id"`
	Side        string    `json:"side"`
	Ticker      string    `json:"ticker"`
	Quantity    int64     `json:"quantity"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Trade is the immutable record of one executed order. Only Status changes
// after creation: pending → settled on the settlement date, or reversed
// through an administrative correction path.
type Trade struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"account_id"`
	Side         string          `json:"side"`
	Ticker       string          `json:"ticker"`
	Quantity     int64           `json:"quantity"`
	FillPrice    decimal.Decimal `json:"fill_price"`
	Commission   decimal.Decimal `json:"commission"`
	GrossAmount  decimal.Decimal `json:"gross_amount"`
	NetCashDelta decimal.Decimal `json:"net_cash_delta"` // signed: negative for buys, positive for sells
	RealizedPnL  decimal.Decimal `json:"realized_pnl"`   // sells only, against average cost
	CreatedAt    time.Time       `json:"created_at"`
	SettlesOn    time.Time       `json:"settles_on"` // date-only, always a trading day
	Status       string          `json:"status"`
}

// EffectiveStatus computes the settlement status as of a point in time
// without touching the stored record. A pending trade whose settlement date
// has arrived reads as settled; the result never reverts.
func (t *Trade) EffectiveStatus(asOf time.Time) string {
	if t.Status != StatusPending {
		return t.Status
	}
	day := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	if !day.Before(t.SettlesOn) {
		return StatusSettled
	}
	return StatusPending
}
