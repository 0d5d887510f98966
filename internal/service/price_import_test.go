package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/model"
	"github.com/ndewijer/fund-ledger/internal/repository"
	"github.com/ndewijer/fund-ledger/internal/service"
	"github.com/ndewijer/fund-ledger/internal/testutil"
)

// fakeFetcher serves fixed quotes per ticker and fails for tickers in fail.
type fakeFetcher struct {
	quotes map[string][]model.PriceQuote
	fail   map[string]bool
}

func (f fakeFetcher) DailyCloses(_ context.Context, ticker string, _, _ time.Time) ([]model.PriceQuote, error) {
	if f.fail[ticker] {
		return nil, errors.New("source unavailable")
	}
	return f.quotes[ticker], nil
}

type recordingInvalidator struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, ticker string, date time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, ticker+":"+date.Format("2006-01-02"))
	return nil
}

func quote(ticker, date, price string) model.PriceQuote {
	return model.PriceQuote{Ticker: ticker, Date: testutil.Date(date), Price: testutil.Dec(price)}
}

func TestPriceImportService_Import(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	ledger := repository.NewLedgerRepository(db)
	prices := repository.NewPriceRepository(db)
	cache := &recordingInvalidator{}

	fetcher := fakeFetcher{
		quotes: map[string][]model.PriceQuote{
			"AAA": {quote("AAA", "2025-01-02", "10"), quote("AAA", "2025-01-03", "11")},
		},
		fail: map[string]bool{"BBB": true},
	}
	svc := service.NewPriceImportService(fetcher, prices, service.NewCompositionResolver(ledger, zap.NewNop()), cache, zap.NewNop())

	results, err := svc.Import(ctx, []string{"AAA", "BBB", "CCC"}, testutil.Date("2025-01-02"), testutil.Date("2025-01-03"))
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, model.OutcomeOK, results[0].Status)
	assert.Equal(t, 2, results[0].Quotes)
	assert.Equal(t, model.OutcomeFailed, results[1].Status)
	assert.Contains(t, results[1].Error, "source unavailable")
	assert.Equal(t, model.OutcomeSkipped, results[2].Status)

	p, ok, err := prices.Price(ctx, "AAA", testutil.Date("2025-01-03"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "11", p.String())
	assert.ElementsMatch(t, []string{"AAA:2025-01-02", "AAA:2025-01-03"}, cache.keys)
}

func TestPriceImportService_ImportHeld(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	ledger := repository.NewLedgerRepository(db)

	testutil.Buy(t, db, "2025-01-02", "AAA", "2", "20")
	testutil.Buy(t, db, "2025-01-02", "SOLD", "1", "5")
	testutil.Sell(t, db, "2025-01-02", "SOLD", "1", "5")

	fetcher := fakeFetcher{quotes: map[string][]model.PriceQuote{
		"AAA":  {quote("AAA", "2025-01-02", "10")},
		"SOLD": {quote("SOLD", "2025-01-02", "5")},
	}}
	svc := service.NewPriceImportService(fetcher, repository.NewPriceRepository(db),
		service.NewCompositionResolver(ledger, zap.NewNop()), nil, zap.NewNop())

	results, err := svc.ImportHeld(ctx, testutil.Date("2025-01-02"), testutil.Date("2025-01-02"))
	require.NoError(t, err)
	require.Len(t, results, 1, "only held tickers are fetched")
	assert.Equal(t, "AAA", results[0].Ticker)
	testutil.AssertRowCount(t, db, "price_quote", 1)
}

func TestPriceImportService_InvalidRange(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := service.NewPriceImportService(fakeFetcher{}, repository.NewPriceRepository(db),
		service.NewCompositionResolver(repository.NewLedgerRepository(db), zap.NewNop()), nil, zap.NewNop())

	_, err := svc.Import(context.Background(), []string{"AAA"}, testutil.Date("2025-02-01"), testutil.Date("2025-01-01"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidDateRange)
}
