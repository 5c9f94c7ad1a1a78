package quote

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RedisFeed reads prices published to Redis by an external market-data
// process. Keys hold the decimal price as a string; a missing key or an
// unparseable value reads as no quote.
type RedisFeed struct {
	rdb *redis.Client
}

// NewRedisFeed creates a RedisFeed over an existing client.
func NewRedisFeed(rdb *redis.Client) *RedisFeed {
	return &RedisFeed{rdb: rdb}
}

func quoteKey(ticker string) string { return fmt.Sprintf("quote:%s", ticker) }

func (f *RedisFeed) LatestPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	val, err := f.rdb.Get(ctx, quoteKey(ticker)).Result()
	if err == redis.Nil {
		return decimal.Decimal{}, ErrNoQuote
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("quote: redis get %s: %w", ticker, err)
	}
	p, err := decimal.NewFromString(val)
	if err != nil || p.LessThanOrEqual(decimal.Zero) {
		return decimal.Decimal{}, ErrNoQuote
	}
	return p, nil
}
