package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/papertrade/ledger-engine/internal/metrics"
	"github.com/papertrade/ledger-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Accounts carry a version counter; ExecuteTrade runs its
// closure against a snapshot and commits only if the version is unchanged,
// mirroring the optimistic-concurrency contract of the Postgres store.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*model.Account
	versions map[string]uint64
	trades   map[string]*model.Trade
	byAcct   map[string][]string // accountID → trade IDs, creation order

	// beforeCommit, when set, runs between the transactional read and the
	// commit attempt. Tests use it to force interleavings.
	beforeCommit func()
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*model.Account),
		versions: make(map[string]uint64),
		trades:   make(map[string]*model.Trade),
		byAcct:   make(map[string][]string),
	}
}

// SetBeforeCommit installs a hook run between read and commit. Test use only.
func (s *MemoryStore) SetBeforeCommit(fn func()) {
	s.beforeCommit = fn
}

// BumpVersion simulates a competing commit on an account. Test use only.
func (s *MemoryStore) BumpVersion(accountID string) {
	s.mu.Lock()
	s.versions[accountID]++
	s.mu.Unlock()
}

func (s *MemoryStore) CreateAccount(_ context.Context, id string, startingCash decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; ok {
		return nil
	}
	s.accounts[id] = &model.Account{
		ID:          id,
		CashBalance: startingCash,
		Holdings:    make(map[string]model.Position),
		CreatedAt:   time.Now().UTC(),
	}
	metrics.OpenAccounts.Inc()
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, id string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return a.Clone(), nil
}

func (s *MemoryStore) ExecuteTrade(_ context.Context, accountID string, fn TxFunc) (*model.Trade, error) {
	// Read phase: snapshot the account and its version.
	s.mu.RLock()
	a, ok := s.accounts[accountID]
	if !ok {
		s.mu.RUnlock()
		return nil, ErrAccountNotFound
	}
	snapshot := a.Clone()
	readVersion := s.versions[accountID]
	s.mu.RUnlock()

	// Mutate phase: fn runs outside the lock so concurrent transactions on
	// the same account can interleave and collide.
	trade, err := fn(snapshot)
	if err != nil {
		return nil, err
	}

	if s.beforeCommit != nil {
		s.beforeCommit()
	}

	// Commit phase: all-or-nothing under the write lock.
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.versions[accountID] != readVersion {
		return nil, ErrConflict
	}
	s.accounts[accountID] = snapshot
	s.versions[accountID] = readVersion + 1

	cp := *trade
	s.trades[trade.ID] = &cp
	s.byAcct[accountID] = append(s.byAcct[accountID], trade.ID)

	return trade, nil
}

func (s *MemoryStore) GetTrade(_ context.Context, id string) (*model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trades[id]
	if !ok {
		return nil, ErrTradeNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) TradesByAccount(_ context.Context, accountID string) ([]model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byAcct[accountID]
	trades := make([]model.Trade, 0, len(ids))
	for _, id := range ids {
		trades = append(trades, *s.trades[id])
	}
	return trades, nil
}

func (s *MemoryStore) TradesDue(_ context.Context, asOf time.Time) ([]model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	var due []model.Trade
	for _, t := range s.trades {
		if t.Status == model.StatusPending && !t.SettlesOn.After(day) {
			due = append(due, *t)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	return due, nil
}

func (s *MemoryStore) MarkSettled(_ context.Context, tradeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trades[tradeID]
	if !ok {
		return ErrTradeNotFound
	}
	if t.Status == model.StatusPending {
		t.Status = model.StatusSettled
	}
	return nil
}
