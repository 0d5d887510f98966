package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/logging"
	"github.com/ndewijer/fund-ledger/internal/model"
)

// QuoteFetcher retrieves daily closes from an external price source.
type QuoteFetcher interface {
	DailyCloses(ctx context.Context, ticker string, start, end time.Time) ([]model.PriceQuote, error)
}

// PriceWriter stores closing prices.
type PriceWriter interface {
	UpsertMany(ctx context.Context, quotes []model.PriceQuote) error
}

// PriceInvalidator drops cached prices after they are rewritten.
type PriceInvalidator interface {
	Invalidate(ctx context.Context, ticker string, date time.Time) error
}

// importParallelism bounds concurrent requests to the price source.
const importParallelism = 4

// PriceImportService loads closing prices from an external source into the
// price store.
type PriceImportService struct {
	fetcher     QuoteFetcher
	store       PriceWriter
	composition *CompositionResolver
	cache       PriceInvalidator
	log         *zap.Logger
}

// NewPriceImportService creates a new PriceImportService. cache may be nil.
func NewPriceImportService(fetcher QuoteFetcher, store PriceWriter, composition *CompositionResolver, cache PriceInvalidator, log *zap.Logger) *PriceImportService {
	return &PriceImportService{
		fetcher:     fetcher,
		store:       store,
		composition: composition,
		cache:       cache,
		log:         log,
	}
}

// Import fetches and stores closes for each ticker between start and end
// inclusive. Tickers are fetched concurrently; one ticker's failure is
// recorded in its result and does not affect the others.
func (s *PriceImportService) Import(ctx context.Context, tickers []string, start, end time.Time) ([]model.ImportResult, error) {
	start, end = dateOnly(start), dateOnly(end)
	if start.After(end) {
		return nil, fmt.Errorf("%w: start %s is after end %s",
			apperrors.ErrInvalidDateRange, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	results := make([]model.ImportResult, len(tickers))

	var g errgroup.Group
	g.SetLimit(importParallelism)
	for i, ticker := range tickers {
		g.Go(func() error {
			results[i] = s.importTicker(ctx, ticker, start, end)
			return nil
		})
	}
	_ = g.Wait()

	return results, ctx.Err()
}

// ImportHeld imports prices for every ticker held on end.
func (s *PriceImportService) ImportHeld(ctx context.Context, start, end time.Time) ([]model.ImportResult, error) {
	comp, err := s.composition.CompositionAt(ctx, end)
	if err != nil {
		return nil, err
	}
	tickers := comp.Tickers()
	sort.Strings(tickers)
	return s.Import(ctx, tickers, start, end)
}

func (s *PriceImportService) importTicker(ctx context.Context, ticker string, start, end time.Time) model.ImportResult {
	quotes, err := s.fetcher.DailyCloses(ctx, ticker, start, end)
	if err == nil {
		err = s.store.UpsertMany(ctx, quotes)
	}
	if err != nil {
		s.log.Error("price import failed", zap.String("ticker", ticker), zap.Error(err))
		return model.ImportResult{Ticker: ticker, Status: model.OutcomeFailed, Err: err, Error: err.Error()}
	}

	if s.cache != nil {
		for _, q := range quotes {
			if err := s.cache.Invalidate(ctx, q.Ticker, q.Date); err != nil {
				s.log.Warn("price cache invalidation failed", zap.String("ticker", q.Ticker), logging.Date("date", q.Date), zap.Error(err))
			}
		}
	}

	if len(quotes) == 0 {
		return model.ImportResult{Ticker: ticker, Status: model.OutcomeSkipped}
	}

	s.log.Info("prices imported",
		zap.String("ticker", ticker),
		zap.Int("quotes", len(quotes)),
		logging.Date("start", start),
		logging.Date("end", end),
	)
	return model.ImportResult{Ticker: ticker, Status: model.OutcomeOK, Quotes: len(quotes)}
}
