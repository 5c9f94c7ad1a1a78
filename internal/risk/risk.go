// Package risk enforces pre-trade limits on order size and resulting
// position size. Limits are advisory guard rails for the simulator, checked
// before the ledger transaction opens; a zero limit disables its check.
package risk

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrPositionLimitExceeded is returned when a buy would push a single
	// position beyond the per-ticker share cap.
	ErrPositionLimitExceeded = errors.New("risk: position limit exceeded")

	// ErrNotionalLimitExceeded is returned when one order's gross value
	// exceeds the per-order notional cap.
	ErrNotionalLimitExceeded = errors.New("risk: order notional limit exceeded")
)

// Limiter holds the configured limits.
type Limiter struct {
	// MaxPositionQty caps the share count of any single position after a
	// buy. Zero disables the check.
	MaxPositionQty int64

	// MaxOrderNotional caps a single order's gross value. Zero disables
	// the check.
	MaxOrderNotional decimal.Decimal
}

// NewLimiter creates a Limiter with the given caps.
func NewLimiter(maxPositionQty int64, maxOrderNotional decimal.Decimal) *Limiter {
	return &Limiter{
		MaxPositionQty:   maxPositionQty,
		MaxOrderNotional: maxOrderNotional,
	}
}

// CheckOrder validates an order against the limits.
//
//   - buying: qty is added to currentQty for the per-position check
//   - selling: only the notional cap applies
func (l *Limiter) CheckOrder(buying bool, qty int64, notional decimal.Decimal, currentQty int64) error {
	if l.MaxOrderNotional.IsPositive() && notional.GreaterThan(l.MaxOrderNotional) {
		return ErrNotionalLimitExceeded
	}
	if buying && l.MaxPositionQty > 0 && currentQty+qty > l.MaxPositionQty {
		return ErrPositionLimitExceeded
	}
	return nil
}
