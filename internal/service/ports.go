package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/fund-ledger/internal/model"
)

// TransactionLedger is the read side of the event ledger.
type TransactionLedger interface {
	Query(ctx context.Context, filter model.LedgerFilter) ([]model.CashFlowEvent, error)
	// SumAbs sums |amount| over events of typ dated on or before through.
	SumAbs(ctx context.Context, typ model.TransactionType, through time.Time) (decimal.Decimal, error)
	// NetShares returns signed buy/sell share totals per ticker through the date.
	NetShares(ctx context.Context, through time.Time) (map[string]decimal.Decimal, error)
	EventsOn(ctx context.Context, date time.Time, typ model.TransactionType) ([]model.CashFlowEvent, error)
	// OldestDate reports the earliest event date; false when the ledger is empty.
	OldestDate(ctx context.Context) (time.Time, bool, error)
}

// PriceOracle answers closing-price lookups. A missing price is reported with
// ok == false, not an error.
type PriceOracle interface {
	Price(ctx context.Context, ticker string, date time.Time) (price decimal.Decimal, ok bool, err error)
	// PricesBetween returns quotes with start <= date < end.
	PricesBetween(ctx context.Context, tickers []string, start, end time.Time) ([]model.PriceQuote, error)
}

// SnapshotStore persists daily fund snapshots and their investor rows.
type SnapshotStore interface {
	Get(ctx context.Context, date time.Time) (model.DailyFundSnapshot, error)
	LatestBefore(ctx context.Context, date time.Time) (model.DailyFundSnapshot, bool, error)
	SaveDay(ctx context.Context, rec model.DayRecord) error
	Range(ctx context.Context, start, end time.Time) ([]model.DailyFundSnapshot, error)
	UserSnapshots(ctx context.Context, date time.Time) ([]model.UserUnitSnapshot, error)
}

// RiskStore persists risk estimates keyed by anchor date.
type RiskStore interface {
	UpsertVar(ctx context.Context, v model.VarSnapshot) error
	GetVar(ctx context.Context, anchor time.Time) (model.VarSnapshot, error)
}

// EventAppender accepts new ledger events.
type EventAppender interface {
	Append(ctx context.Context, event model.CashFlowEvent) (model.CashFlowEvent, error)
}
