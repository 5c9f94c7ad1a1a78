// Package settle finalizes trades whose T+1 settlement date has arrived.
//
// Reads always compute effective status lazily from the settlement date, so
// the sweep is not needed for correctness; it persists the pending→settled
// flip so store queries and external consumers see final status. Settlement
// is a status-only change — cash and holdings were fully applied at order
// time and are never touched again.
package settle

import (
	"context"
	"log/slog"
	"time"

	"github.com/papertrade/ledger-engine/internal/metrics"
	"github.com/papertrade/ledger-engine/internal/store"
)

// Broadcaster receives settlement notifications. Satisfied by engine.WSHub.
type Broadcaster interface {
	BroadcastSettled(tradeID, accountID string)
}

// Sweeper periodically flips matured pending trades to settled.
type Sweeper struct {
	store    store.Store
	interval time.Duration
	notify   Broadcaster // optional
	now      func() time.Time
}

// NewSweeper creates a Sweeper. Pass nil for notify if settlement
// broadcasts are not needed.
func NewSweeper(st store.Store, interval time.Duration, notify Broadcaster) *Sweeper {
	return &Sweeper{
		store:    st,
		interval: interval,
		notify:   notify,
		now:      time.Now,
	}
}

// SetClock overrides the time source. Test use only.
func (s *Sweeper) SetClock(fn func() time.Time) {
	s.now = fn
}

// SweepOnce settles every pending trade whose settlesOn date is at or
// before asOf, returning the number settled. Individual failures are
// logged and skipped so one bad record cannot wedge the sweep.
func (s *Sweeper) SweepOnce(ctx context.Context, asOf time.Time) (int, error) {
	due, err := s.store.TradesDue(ctx, asOf)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, t := range due {
		if err := s.store.MarkSettled(ctx, t.ID); err != nil {
			slog.Error("settlement failed", "trade_id", t.ID, "err", err)
			continue
		}
		settled++
		metrics.SettlementsTotal.Inc()
		if s.notify != nil {
			s.notify.BroadcastSettled(t.ID, t.AccountID)
		}
	}

	if settled > 0 {
		slog.Info("settlement sweep complete", "settled", settled, "as_of", asOf.Format("2006-01-02"))
	}
	return settled, nil
}

// Run sweeps at the configured interval until ctx is cancelled. The first
// sweep happens immediately on startup to catch trades that matured while
// the service was down.
func (s *Sweeper) Run(ctx context.Context) error {
	if _, err := s.SweepOnce(ctx, s.now()); err != nil {
		slog.Error("settlement sweep failed", "err", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx, s.now()); err != nil {
				slog.Error("settlement sweep failed", "err", err)
			}
		}
	}
}
