// Package pricecache provides a Redis read-through cache in front of a
// closing-price store.
package pricecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ndewijer/fund-ledger/internal/model"
)

const (
	keyPrefix = "price:"
	// absent is stored for ticker/date pairs the backing store has no quote for.
	absent = "-"
)

// AbsentTTL bounds how long a "no quote" entry is served, including one written
// by a miss that raced a price import's invalidation.
const AbsentTTL = time.Minute

// Oracle is the price lookup the cache wraps.
type Oracle interface {
	Price(ctx context.Context, ticker string, date time.Time) (decimal.Decimal, bool, error)
	PricesBetween(ctx context.Context, tickers []string, start, end time.Time) ([]model.PriceQuote, error)
}

// Cache answers single-price lookups from Redis, falling back to the backing
// oracle on a miss and storing the result for ttl. "No quote" results are
// stored for at most AbsentTTL.
// Redis failures are logged and never surface to callers.
type Cache struct {
	client  *redis.Client
	backing Oracle
	ttl     time.Duration
	log     *zap.Logger
}

// New creates a Cache. A non-positive ttl stores entries without expiry.
func New(client *redis.Client, backing Oracle, ttl time.Duration, log *zap.Logger) *Cache {
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{
		client:  client,
		backing: backing,
		ttl:     ttl,
		log:     log,
	}
}

// Key returns the cache key for a ticker on a date.
func Key(ticker string, date time.Time) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, ticker, date.Format("2006-01-02"))
}

// Price returns the closing price for ticker on date.
func (c *Cache) Price(ctx context.Context, ticker string, date time.Time) (decimal.Decimal, bool, error) {
	key := Key(ticker, date)

	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if cached == absent {
			return decimal.Zero, false, nil
		}
		price, perr := decimal.NewFromString(cached)
		if perr == nil {
			return price, true, nil
		}
		c.log.Warn("discarding malformed cached price", zap.String("key", key), zap.Error(perr))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("price cache read failed", zap.String("key", key), zap.Error(err))
	}

	price, ok, err := c.backing.Price(ctx, ticker, date)
	if err != nil {
		return decimal.Zero, false, err
	}

	value, ttl := absent, c.absentTTL()
	if ok {
		value, ttl = price.String(), c.ttl
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.log.Warn("price cache write failed", zap.String("key", key), zap.Error(err))
	}
	return price, ok, nil
}

func (c *Cache) absentTTL() time.Duration {
	if c.ttl > 0 && c.ttl < AbsentTTL {
		return c.ttl
	}
	return AbsentTTL
}

// PricesBetween is served by the backing oracle. Range results are not cached.
func (c *Cache) PricesBetween(ctx context.Context, tickers []string, start, end time.Time) ([]model.PriceQuote, error) {
	return c.backing.PricesBetween(ctx, tickers, start, end)
}

// Invalidate drops the cached entry for a ticker on a date.
func (c *Cache) Invalidate(ctx context.Context, ticker string, date time.Time) error {
	if err := c.client.Del(ctx, Key(ticker, date)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached price for %s: %w", ticker, err)
	}
	return nil
}
