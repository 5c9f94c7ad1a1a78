// Package quote supplies the latest known market price for a ticker.
// The engine treats the feed as a read-only oracle: it never writes prices
// and enforces no staleness bound. When no price is known the executor
// rejects the order rather than guessing.
package quote

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
)

// ErrNoQuote is returned when no price is known for a ticker.
var ErrNoQuote = errors.New("quote: no price available")

// Source supplies the latest known price for a ticker.
type Source interface {
	LatestPrice(ctx context.Context, ticker string) (decimal.Decimal, error)
}

// MemoryFeed is an in-memory Source for development and tests. Prices are
// pushed in via SetPrice.
type MemoryFeed struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

// NewMemoryFeed creates an empty MemoryFeed.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{prices: make(map[string]decimal.Decimal)}
}

// SetPrice records the latest price for a ticker. Non-positive prices
// remove the quote.
func (f *MemoryFeed) SetPrice(ticker string, price decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if price.LessThanOrEqual(decimal.Zero) {
		delete(f.prices, ticker)
		return
	}
	f.prices[ticker] = price
}

func (f *MemoryFeed) LatestPrice(_ context.Context, ticker string) (decimal.Decimal, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.prices[ticker]
	if !ok {
		return decimal.Decimal{}, ErrNoQuote
	}
	return p, nil
}
