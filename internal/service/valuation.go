package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/logging"
	"github.com/ndewijer/fund-ledger/internal/model"
)

// ValuationService values the fund on a date: ledger cash plus priced holdings.
type ValuationService struct {
	ledger      TransactionLedger
	prices      PriceOracle
	composition *CompositionResolver
	log         *zap.Logger
}

// NewValuationService creates a new ValuationService with the provided dependencies.
func NewValuationService(ledger TransactionLedger, prices PriceOracle, log *zap.Logger) *ValuationService {
	return &ValuationService{
		ledger:      ledger,
		prices:      prices,
		composition: NewCompositionResolver(ledger, log),
		log:         log,
	}
}

// Composition exposes the resolver used by this service.
func (s *ValuationService) Composition() *CompositionResolver {
	return s.composition
}

// Cash returns the fund's cash balance through date:
//
//	deposits + dividends + sells - (withdrawals + fees + buys)
//
// where every term is a cumulative sum of absolute amounts.
func (s *ValuationService) Cash(ctx context.Context, date time.Time) (decimal.Decimal, error) {
	sums := make(map[model.TransactionType]decimal.Decimal, len(model.AllTransactionTypes))
	for _, t := range model.AllTransactionTypes {
		v, err := s.ledger.SumAbs(ctx, t, date)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to sum %s: %w", t, err)
		}
		sums[t] = v
	}

	inflow := sums[model.TypeDeposit].Add(sums[model.TypeDividend]).Add(sums[model.TypeSell])
	outflow := sums[model.TypeWithdrawal].Add(sums[model.TypeFee]).Add(sums[model.TypeBuy])
	return inflow.Sub(outflow), nil
}

// FundValue computes the fund's valuation on date. Holdings without a closing
// price for the date are left out of the portfolio value and listed in Skipped;
// this is not an error.
func (s *ValuationService) FundValue(ctx context.Context, date time.Time) (model.FundValuation, error) {
	date = dateOnly(date)

	cash, err := s.Cash(ctx, date)
	if err != nil {
		return model.FundValuation{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToComputeValuation, err)
	}

	comp, err := s.composition.CompositionAt(ctx, date)
	if err != nil {
		return model.FundValuation{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToComputeValuation, err)
	}

	tickers := comp.Tickers()
	sort.Strings(tickers)

	v := model.FundValuation{
		Date:        date,
		Cash:        round2(cash),
		Composition: comp,
		Positions:   []model.PositionValue{},
	}

	portfolio := decimal.Zero
	for _, ticker := range tickers {
		qty := comp[ticker]
		price, ok, err := s.prices.Price(ctx, ticker, date)
		if err != nil {
			return model.FundValuation{}, fmt.Errorf("%w: price %s: %w", apperrors.ErrFailedToComputeValuation, ticker, err)
		}
		if !ok {
			s.log.Warn("no closing price, ticker skipped from valuation",
				logging.Date("date", date),
				zap.String("ticker", ticker),
				zap.String("quantity", qty.String()),
			)
			v.Skipped = append(v.Skipped, model.SkippedTicker{
				Ticker:   ticker,
				Quantity: qty,
				Reason:   apperrors.ErrMissingPrice.Error(),
			})
			continue
		}

		value := round2(qty.Mul(price))
		portfolio = portfolio.Add(value)
		v.Positions = append(v.Positions, model.PositionValue{
			Ticker:   ticker,
			Quantity: qty,
			Price:    price,
			Value:    value,
		})
	}

	v.PortfolioTotalValue = portfolio
	v.TotalValue = v.Cash.Add(portfolio)

	return v, nil
}
