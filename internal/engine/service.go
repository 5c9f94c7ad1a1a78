// Package engine implements the order executor: it validates an order,
// prices it against the quote source, computes commission, and applies the
// result to the account ledger in one atomic store transaction together
// with the pending trade record.
//
// All monetary values use shopspring/decimal — never float64 for money.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/papertrade/ledger-engine/internal/calendar"
	"github.com/papertrade/ledger-engine/internal/commission"
	"github.com/papertrade/ledger-engine/internal/metrics"
	"github.com/papertrade/ledger-engine/internal/model"
	"github.com/papertrade/ledger-engine/internal/quote"
	"github.com/papertrade/ledger-engine/internal/risk"
	"github.com/papertrade/ledger-engine/internal/store"
	"github.com/papertrade/ledger-engine/internal/symbol"
)

// Failure taxonomy surfaced to callers. Validation errors are rejected
// before any store access; business-rule errors abort the transaction with
// no partial effects; conflict exhaustion is transient and safe to resubmit
// because no trade was created.
var (
	ErrInvalidQuantity      = errors.New("engine: quantity must be a positive integer")
	ErrInvalidSide          = errors.New("engine: side must be buy or sell")
	ErrQuoteUnavailable     = errors.New("engine: no quote available")
	ErrInsufficientFunds    = errors.New("engine: insufficient funds")
	ErrInsufficientHoldings = errors.New("engine: insufficient holdings")
	ErrConflictExhausted    = errors.New("engine: transaction conflict retries exhausted")
)

// defaultMaxAttempts bounds the optimistic-transaction retry loop.
const defaultMaxAttempts = 5

// Service is the order executor and query surface of the settlement core.
type Service struct {
	store        store.Store
	quotes       quote.Source
	cal          *calendar.Calendar
	fees         commission.Model
	limits       *risk.Limiter // optional pre-trade limits
	hub          *WSHub        // optional WebSocket hub for broadcasts
	startingCash decimal.Decimal
	maxAttempts  int
	now          func() time.Time
}

// NewService creates the order executor. Pass nil for limits or hub when
// pre-trade limits or WebSocket broadcasting are not needed.
func NewService(st store.Store, quotes quote.Source, cal *calendar.Calendar, fees commission.Model, limits *risk.Limiter, hub *WSHub) *Service {
	return &Service{
		store:        st,
		quotes:       quotes,
		cal:          cal,
		fees:         fees,
		limits:       limits,
		hub:          hub,
		startingCash: decimal.NewFromInt(100000), // default starting grant
		maxAttempts:  defaultMaxAttempts,
		now:          time.Now,
	}
}

// SetStartingCash overrides the cash grant for accounts created on first use.
func (s *Service) SetStartingCash(amount decimal.Decimal) {
	if amount.IsPositive() {
		s.startingCash = amount
	}
}

// SetMaxAttempts overrides the transaction retry bound.
func (s *Service) SetMaxAttempts(n int) {
	if n > 0 {
		s.maxAttempts = n
	}
}

// SetClock overrides the time source. Test use only.
func (s *Service) SetClock(fn func() time.Time) {
	s.now = fn
}

// SubmitOrder executes one order end to end and returns the committed
// pending trade. The fill price is fixed at quote-read time, not at commit
// time. On every failure path the account is left exactly as it was.
func (s *Service) SubmitOrder(ctx context.Context, accountID, side, ticker string, qty int64) (*model.Trade, error) {
	// Validation, before any store access.
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	if side != model.SideBuy && side != model.SideSell {
		return nil, ErrInvalidSide
	}
	ticker, err := symbol.Normalize(ticker)
	if err != nil {
		return nil, err
	}

	// Price against the oracle. This read is deliberately outside the
	// transaction; the quote may be stale by commit time.
	price, err := s.quotes.LatestPrice(ctx, ticker)
	if err != nil {
		if errors.Is(err, quote.ErrNoQuote) {
			return nil, ErrQuoteUnavailable
		}
		return nil, err
	}

	gross := price.Mul(decimal.NewFromInt(qty))
	fee := s.fees.Compute(gross)
	buying := side == model.SideBuy

	// First simulator use creates the account with the starting grant.
	if err := s.store.CreateAccount(ctx, accountID, s.startingCash); err != nil {
		return nil, err
	}

	if s.limits != nil {
		acct, err := s.store.GetAccount(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if err := s.limits.CheckOrder(buying, qty, gross, acct.Holdings[ticker].Quantity); err != nil {
			return nil, err
		}
	}

	// Bounded optimistic retry: the closure re-reads account state each
	// attempt, so two concurrent orders never pass their balance checks
	// against the same stale snapshot.
	start := s.now()
	var trade *model.Trade
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		trade, err = s.store.ExecuteTrade(ctx, accountID, func(acct *model.Account) (*model.Trade, error) {
			return s.applyOrder(acct, side, ticker, qty, price, gross, fee)
		})
		if errors.Is(err, store.ErrConflict) {
			metrics.ConflictRetries.Inc()
			continue
		}
		break
	}
	metrics.OrderLatency.WithLabelValues(side).Observe(time.Since(start).Seconds())

	if errors.Is(err, store.ErrConflict) {
		metrics.OrdersTotal.WithLabelValues(side, "conflict").Inc()
		return nil, ErrConflictExhausted
	}
	if err != nil {
		metrics.OrdersTotal.WithLabelValues(side, "rejected").Inc()
		return nil, err
	}
	metrics.OrdersTotal.WithLabelValues(side, "filled").Inc()

	if s.hub != nil {
		s.hub.Broadcast(WSMessage{
			Type:      "order_executed",
			TradeID:   trade.ID,
			AccountID: trade.AccountID,
			Ticker:    trade.Ticker,
			Side:      trade.Side,
			Quantity:  trade.Quantity,
			FillPrice: trade.FillPrice.String(),
			SettlesOn: trade.SettlesOn.Format(calendar.DateFormat),
		})
	}
	return trade, nil
}

// applyOrder is the read-check-mutate body run inside the atomic account
// transaction. It mutates acct in place and returns the trade that must
// commit with it.
func (s *Service) applyOrder(acct *model.Account, side, ticker string, qty int64, price, gross, fee decimal.Decimal) (*model.Trade, error) {
	now := s.now().UTC()
	pos := acct.Holdings[ticker]

	t := &model.Trade{
		ID:          uuid.New().String(),
		AccountID:   acct.ID,
		Side:        side,
		Ticker:      ticker,
		Quantity:    qty,
		FillPrice:   price,
		Commission:  fee,
		GrossAmount: gross,
		RealizedPnL: decimal.Zero,
		CreatedAt:   now,
		SettlesOn:   s.cal.NextTradingDay(now, 1),
		Status:      model.StatusPending,
	}

	if side == model.SideBuy {
		total := gross.Add(fee)
		if acct.CashBalance.LessThan(total) {
			return nil, ErrInsufficientFunds
		}
		acct.CashBalance = acct.CashBalance.Sub(total)

		newQty := pos.Quantity + qty
		newAvg := decimal.NewFromInt(pos.Quantity).Mul(pos.AverageCost).
			Add(gross).
			Div(decimal.NewFromInt(newQty))
		acct.Holdings[ticker] = model.Position{Ticker: ticker, Quantity: newQty, AverageCost: newAvg}
		t.NetCashDelta = total.Neg()
		return t, nil
	}

	// Sell.
	if pos.Quantity < qty {
		return nil, ErrInsufficientHoldings
	}
	proceeds := gross.Sub(fee)
	acct.CashBalance = acct.CashBalance.Add(proceeds)

	newQty := pos.Quantity - qty
	if newQty == 0 {
		// Full liquidation: average cost resets with the position.
		delete(acct.Holdings, ticker)
	} else {
		// Average cost is unchanged by sales.
		acct.Holdings[ticker] = model.Position{Ticker: ticker, Quantity: newQty, AverageCost: pos.AverageCost}
	}
	t.NetCashDelta = proceeds
	t.RealizedPnL = price.Sub(pos.AverageCost).Mul(decimal.NewFromInt(qty))
	return t, nil
}

// GetAccountSnapshot returns the account's cash and holdings, creating the
// account with the starting grant on first use.
func (s *Service) GetAccountSnapshot(ctx context.Context, accountID string) (*model.Account, error) {
	if err := s.store.CreateAccount(ctx, accountID, s.startingCash); err != nil {
		return nil, err
	}
	return s.store.GetAccount(ctx, accountID)
}

// ListTrades returns all trades for an account, oldest first, each
// annotated with its live-computed settlement status.
func (s *Service) ListTrades(ctx context.Context, accountID string) ([]model.Trade, error) {
	trades, err := s.store.TradesByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	asOf := s.now()
	for i := range trades {
		trades[i].Status = trades[i].EffectiveStatus(asOf)
	}
	return trades, nil
}

// GetTradeStatus returns the live-computed settlement status of one trade.
func (s *Service) GetTradeStatus(ctx context.Context, tradeID string) (string, error) {
	t, err := s.store.GetTrade(ctx, tradeID)
	if err != nil {
		return "", err
	}
	return t.EffectiveStatus(s.now()), nil
}
