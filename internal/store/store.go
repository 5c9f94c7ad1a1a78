// Package store defines the persistence interface for the ledger engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/papertrade/ledger-engine/internal/model"
)

var (
	// ErrAccountNotFound is returned when no account exists for an ID.
	ErrAccountNotFound = errors.New("store: account not found")

	// ErrTradeNotFound is returned when no trade exists for an ID.
	ErrTradeNotFound = errors.New("store: trade not found")

	// ErrConflict is returned by ExecuteTrade when the account changed
	// between the transaction's read and its commit. The caller is expected
	// to retry against fresh state.
	ErrConflict = errors.New("store: write conflict")
)

// TxFunc runs inside an atomic account transaction. It receives the
// freshly-read account state, mutates it in place, and returns the trade to
// record alongside the mutation. Returning an error aborts the transaction
// with no effects.
type TxFunc func(acct *model.Account) (*model.Trade, error)

// Store is the persistence interface. The account document is the only
// shared mutable resource; all safety comes from ExecuteTrade's optimistic
// transaction, never from caller-side locking.
type Store interface {
	// --- Accounts ---

	// CreateAccount creates an account with the given starting cash grant.
	// It is a no-op if the account already exists.
	CreateAccount(ctx context.Context, id string, startingCash decimal.Decimal) error

	// GetAccount retrieves an account snapshot by ID.
	GetAccount(ctx context.Context, id string) (*model.Account, error)

	// ExecuteTrade runs fn atomically against the current account state.
	// The mutated account and the returned trade commit together or not at
	// all. A concurrent commit on the same account between read and commit
	// surfaces ErrConflict.
	ExecuteTrade(ctx context.Context, accountID string, fn TxFunc) (*model.Trade, error)

	// --- Trades ---

	// GetTrade retrieves a trade by ID.
	GetTrade(ctx context.Context, id string) (*model.Trade, error)

	// TradesByAccount returns all trades for an account, oldest first.
	TradesByAccount(ctx context.Context, accountID string) ([]model.Trade, error)

	// TradesDue returns pending trades whose settlement date has arrived.
	TradesDue(ctx context.Context, asOf time.Time) ([]model.Trade, error)

	// MarkSettled flips a pending trade to settled. It is a status-only
	// update: cash and holdings were fully applied at order time. Settling
	// an already-settled trade is a no-op.
	MarkSettled(ctx context.Context, tradeID string) error
}
