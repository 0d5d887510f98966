package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/logging"
	"github.com/ndewijer/fund-ledger/internal/model"
	"github.com/ndewijer/fund-ledger/internal/riskmath"
)

// RiskOptions configures the historical-simulation engine.
type RiskOptions struct {
	// LookbackDays is the length of the price window ending at the anchor date.
	LookbackDays int
	// MaxParallel bounds ComputeRiskMany's concurrency.
	MaxParallel int
}

// RiskService estimates Value-at-Risk and Expected Shortfall by historical
// simulation over the composition held at the last settled snapshot.
type RiskService struct {
	composition *CompositionResolver
	prices      PriceOracle
	snapshots   SnapshotStore
	store       RiskStore
	opts        RiskOptions
	log         *zap.Logger
	now         func() time.Time
}

// NewRiskService creates a new RiskService with the provided dependencies.
func NewRiskService(
	composition *CompositionResolver,
	prices PriceOracle,
	snapshots SnapshotStore,
	store RiskStore,
	opts RiskOptions,
	log *zap.Logger,
) *RiskService {
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 365
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 1
	}
	return &RiskService{
		composition: composition,
		prices:      prices,
		snapshots:   snapshots,
		store:       store,
		opts:        opts,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// anchorFor returns the latest settled snapshot date strictly before date.
func (s *RiskService) anchorFor(ctx context.Context, date time.Time) (time.Time, error) {
	snap, ok, err := s.snapshots.LatestBefore(ctx, dateOnly(date))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveSnapshot, err)
	}
	if !ok {
		return time.Time{}, apperrors.ErrNoSettledSnapshot
	}
	return snap.Date, nil
}

// ValueSeries returns portfolio values for the composition on every date in
// [start, end) with at least one price. Tickers without a price on a date
// contribute nothing that day; prices are not carried forward.
func (s *RiskService) ValueSeries(ctx context.Context, comp model.Composition, start, end time.Time) ([]time.Time, []decimal.Decimal, error) {
	tickers := comp.Tickers()
	sort.Strings(tickers)

	quotes, err := s.prices.PricesBetween(ctx, tickers, start, end)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load price history: %w", err)
	}

	var dates []time.Time
	var values []decimal.Decimal
	for _, q := range quotes {
		contribution := comp[q.Ticker].Mul(q.Price)
		if n := len(dates); n > 0 && dates[n-1].Equal(q.Date) {
			values[n-1] = values[n-1].Add(contribution)
			continue
		}
		dates = append(dates, q.Date)
		values = append(values, contribution)
	}
	return dates, values, nil
}

// ComputeRisk estimates VaR and ES at every configured confidence and horizon,
// anchored on the most recent snapshot before date, and persists the result.
// When any horizon lacks h+1 rolling observations an *InsufficientHistoryError
// is returned and nothing is stored.
func (s *RiskService) ComputeRisk(ctx context.Context, date time.Time) (model.VarSnapshot, error) {
	anchor, err := s.anchorFor(ctx, date)
	if err != nil {
		return model.VarSnapshot{}, err
	}

	comp, err := s.composition.CompositionAt(ctx, anchor)
	if err != nil {
		return model.VarSnapshot{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToComputeRisk, err)
	}

	start := anchor.AddDate(0, 0, -s.opts.LookbackDays)
	_, values, err := s.ValueSeries(ctx, comp, start, anchor)
	if err != nil {
		return model.VarSnapshot{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToComputeRisk, err)
	}

	returns := riskmath.Returns(values)

	samples := make(map[int][]decimal.Decimal, len(model.RiskHorizons))
	for _, h := range model.RiskHorizons {
		sums := riskmath.RollingSums(returns, h)
		if len(sums) < h+1 {
			return model.VarSnapshot{}, &apperrors.InsufficientHistoryError{Horizon: h, Have: len(sums), Need: h + 1}
		}
		samples[h] = sums
	}

	reference := values[len(values)-1]
	v := model.VarSnapshot{
		AnchorDate:     anchor,
		ReferenceValue: round2(reference),
		Observations:   len(returns),
		CalculatedAt:   s.now(),
	}

	for _, c := range model.RiskConfidences {
		confidence := decimal.New(int64(c), -2)
		for _, h := range model.RiskHorizons {
			est, err := riskmath.HistoricalVaR(samples[h], confidence)
			if err != nil {
				return model.VarSnapshot{}, fmt.Errorf("%w: %d%% %dd: %w", apperrors.ErrFailedToComputeRisk, c, h, err)
			}
			v.Figures = append(v.Figures, model.RiskFigure{
				Confidence: c,
				Horizon:    h,
				VaR:        round8(est.VaR),
				VaRAmount:  round2(est.VaR.Mul(reference)),
				ES:         round8(est.ES),
				ESAmount:   round2(est.ES.Mul(reference)),
			})
		}
	}

	if err := s.store.UpsertVar(ctx, v); err != nil {
		return model.VarSnapshot{}, err
	}

	s.log.Info("risk snapshot persisted",
		logging.Date("date", date),
		logging.Date("anchor", anchor),
		zap.Int("observations", v.Observations),
		zap.String("referenceValue", v.ReferenceValue.String()),
	)

	return v, nil
}

// ComputeRiskMany runs ComputeRisk for each date concurrently, bounded by
// MaxParallel. Results are returned in input order; one date's failure does
// not affect the others. Each date's anchor is read-only here, so there is no
// write ordering between dates beyond the per-anchor upsert.
func (s *RiskService) ComputeRiskMany(ctx context.Context, dates []time.Time) ([]model.RiskResult, error) {
	results := make([]model.RiskResult, len(dates))

	var g errgroup.Group
	g.SetLimit(s.opts.MaxParallel)

	for i, d := range dates {
		g.Go(func() error {
			results[i] = s.riskResult(ctx, d)
			return nil
		})
	}
	_ = g.Wait()

	return results, ctx.Err()
}

func (s *RiskService) riskResult(ctx context.Context, date time.Time) model.RiskResult {
	date = dateOnly(date)
	if err := ctx.Err(); err != nil {
		return model.RiskResult{Date: date, Status: model.OutcomeFailed, Err: err, Error: err.Error()}
	}

	v, err := s.ComputeRisk(ctx, date)
	switch {
	case err == nil:
		return model.RiskResult{Date: date, Status: model.OutcomeOK, Snapshot: &v}
	case IsRiskSkip(err):
		s.log.Warn("risk computation skipped", logging.Date("date", date), zap.Error(err))
		return model.RiskResult{Date: date, Status: model.OutcomeSkipped, Err: err, Error: err.Error()}
	default:
		s.log.Error("risk computation failed", logging.Date("date", date), zap.Error(err))
		return model.RiskResult{Date: date, Status: model.OutcomeFailed, Err: err, Error: err.Error()}
	}
}

// IsRiskSkip reports whether err means a risk estimate could not be formed for
// the date, as opposed to a failure computing it.
func IsRiskSkip(err error) bool {
	return errors.Is(err, apperrors.ErrInsufficientHistory) || errors.Is(err, apperrors.ErrNoSettledSnapshot)
}

// GetRisk returns the stored estimate whose anchor is the latest snapshot before date.
func (s *RiskService) GetRisk(ctx context.Context, date time.Time) (model.VarSnapshot, error) {
	anchor, err := s.anchorFor(ctx, date)
	if err != nil {
		return model.VarSnapshot{}, err
	}
	v, err := s.store.GetVar(ctx, anchor)
	if err != nil {
		if errors.Is(err, apperrors.ErrVarSnapshotNotFound) {
			return model.VarSnapshot{}, err
		}
		return model.VarSnapshot{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveRisk, err)
	}
	return v, nil
}
