package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/papertrade/ledger-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for account snapshots and per-account trade lists. Writes go to the
// primary store and invalidate the cache; reads check Redis first then fall
// back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Writes (write to primary, invalidate cache) ---

func (s *CachedStore) CreateAccount(ctx context.Context, id string, startingCash decimal.Decimal) error {
	if err := s.primary.CreateAccount(ctx, id, startingCash); err != nil {
		return err
	}
	s.rdb.Del(ctx, accountKey(id))
	return nil
}

func (s *CachedStore) ExecuteTrade(ctx context.Context, accountID string, fn TxFunc) (*model.Trade, error) {
	trade, err := s.primary.ExecuteTrade(ctx, accountID, fn)
	if err != nil {
		return nil, err
	}
	s.rdb.Del(ctx, accountKey(accountID), tradesKey(accountID))
	return trade, nil
}

func (s *CachedStore) MarkSettled(ctx context.Context, tradeID string) error {
	// The trade's account is needed to invalidate its list; read before the
	// flip so a missing trade short-circuits.
	trade, err := s.primary.GetTrade(ctx, tradeID)
	if err != nil {
		return err
	}
	if err := s.primary.MarkSettled(ctx, tradeID); err != nil {
		return err
	}
	s.rdb.Del(ctx, tradesKey(trade.AccountID))
	return nil
}

// --- Reads (check cache first) ---

func (s *CachedStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	data, err := s.rdb.Get(ctx, accountKey(id)).Bytes()
	if err == nil {
		var a model.Account
		if json.Unmarshal(data, &a) == nil {
			return &a, nil
		}
	}

	a, err := s.primary.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(a); err == nil {
		s.rdb.Set(ctx, accountKey(id), data, s.ttl)
	}
	return a, nil
}

func (s *CachedStore) TradesByAccount(ctx context.Context, accountID string) ([]model.Trade, error) {
	data, err := s.rdb.Get(ctx, tradesKey(accountID)).Bytes()
	if err == nil {
		var trades []model.Trade
		if json.Unmarshal(data, &trades) == nil {
			return trades, nil
		}
	}

	trades, err := s.primary.TradesByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(trades); err == nil {
		s.rdb.Set(ctx, tradesKey(accountID), data, s.ttl)
	}
	return trades, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) GetTrade(ctx context.Context, id string) (*model.Trade, error) {
	return s.primary.GetTrade(ctx, id)
}

func (s *CachedStore) TradesDue(ctx context.Context, asOf time.Time) ([]model.Trade, error) {
	return s.primary.TradesDue(ctx, asOf)
}

// --- Cache keys ---

func accountKey(id string) string { return fmt.Sprintf("account:%s", id) }
func tradesKey(id string) string  { return fmt.Sprintf("trades:%s", id) }
