package pricecache_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ndewijer/fund-ledger/internal/pricecache"
	"github.com/ndewijer/fund-ledger/internal/repository"
	"github.com/ndewijer/fund-ledger/internal/testutil"
)

func setup(t *testing.T) (*pricecache.Cache, *miniredis.Miniredis, *sql.DB) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	db := testutil.SetupTestDB(t)
	cache := pricecache.New(client, repository.NewPriceRepository(db), time.Hour, zap.NewNop())
	return cache, mr, db
}

func TestCache_Price(t *testing.T) {
	ctx := context.Background()
	day := testutil.Date("2025-01-02")

	t.Run("miss populates the cache", func(t *testing.T) {
		cache, mr, db := setup(t)
		testutil.NewPrice("AAA").OnDate(day).At("101.25").Build(t, db)

		price, ok, err := cache.Price(ctx, "AAA", day)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "101.25", price.String())

		cached, err := mr.Get(pricecache.Key("AAA", day))
		require.NoError(t, err)
		assert.Equal(t, "101.25", cached)
		assert.Greater(t, mr.TTL(pricecache.Key("AAA", day)), time.Duration(0))
	})

	t.Run("hit is served from redis", func(t *testing.T) {
		cache, mr, _ := setup(t)
		require.NoError(t, mr.Set(pricecache.Key("BBB", day), "55.5"))

		price, ok, err := cache.Price(ctx, "BBB", day)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "55.5", price.String())
	})

	t.Run("absent price is cached", func(t *testing.T) {
		cache, mr, db := setup(t)

		_, ok, err := cache.Price(ctx, "ZZZ", day)
		require.NoError(t, err)
		assert.False(t, ok)

		cached, err := mr.Get(pricecache.Key("ZZZ", day))
		require.NoError(t, err)
		assert.Equal(t, "-", cached)

		// A quote added later stays hidden until the entry is invalidated.
		testutil.NewPrice("ZZZ").OnDate(day).At("3").Build(t, db)
		_, ok, err = cache.Price(ctx, "ZZZ", day)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("absent entry expires long before present ones", func(t *testing.T) {
		cache, mr, db := setup(t)

		_, ok, err := cache.Price(ctx, "ZZZ", day)
		require.NoError(t, err)
		require.False(t, ok)
		ttl := mr.TTL(pricecache.Key("ZZZ", day))
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, pricecache.AbsentTTL)

		// A quote stored after the miss, without invalidation, shows once the
		// sentinel expires.
		testutil.NewPrice("ZZZ").OnDate(day).At("3").Build(t, db)
		mr.FastForward(pricecache.AbsentTTL + time.Second)

		price, ok, err := cache.Price(ctx, "ZZZ", day)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "3", price.String())
		assert.Equal(t, time.Hour, mr.TTL(pricecache.Key("ZZZ", day)))
	})

	t.Run("malformed entry is refreshed", func(t *testing.T) {
		cache, mr, db := setup(t)
		testutil.NewPrice("AAA").OnDate(day).At("9").Build(t, db)
		require.NoError(t, mr.Set(pricecache.Key("AAA", day), "garbage"))

		price, ok, err := cache.Price(ctx, "AAA", day)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "9", price.String())
	})

	t.Run("falls back to the store when redis is down", func(t *testing.T) {
		cache, mr, db := setup(t)
		testutil.NewPrice("CCC").OnDate(day).At("7").Build(t, db)
		mr.Close()

		price, ok, err := cache.Price(ctx, "CCC", day)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "7", price.String())
	})
}

func TestCache_Invalidate(t *testing.T) {
	cache, mr, db := setup(t)
	ctx := context.Background()
	day := testutil.Date("2025-01-02")

	testutil.NewPrice("AAA").OnDate(day).At("10").Build(t, db)
	_, _, err := cache.Price(ctx, "AAA", day)
	require.NoError(t, err)

	testutil.NewPrice("AAA").OnDate(day).At("12").Build(t, db)
	require.NoError(t, cache.Invalidate(ctx, "AAA", day))
	assert.False(t, mr.Exists(pricecache.Key("AAA", day)))

	price, ok, err := cache.Price(ctx, "AAA", day)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "12", price.String())
}

func TestCache_PricesBetween(t *testing.T) {
	cache, _, db := setup(t)
	testutil.PriceSeries(t, db, "AAA", testutil.Date("2025-01-01"), []string{"1", "2", "3"})

	quotes, err := cache.PricesBetween(context.Background(), []string{"AAA"},
		testutil.Date("2025-01-01"), testutil.Date("2025-01-03"))
	require.NoError(t, err)
	assert.Len(t, quotes, 2)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "price:AAA:2025-01-02", pricecache.Key("AAA", testutil.Date("2025-01-02")))
}
