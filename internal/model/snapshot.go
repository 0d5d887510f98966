package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionValue is one priced holding inside a valuation.
type PositionValue struct {
	Ticker   string          `json:"ticker"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Value    decimal.Decimal `json:"value"`
}

// SkippedTicker is a holding left out of a valuation, with the reason.
type SkippedTicker struct {
	Ticker   string          `json:"ticker"`
	Quantity decimal.Decimal `json:"quantity"`
	Reason   string          `json:"reason"`
}

// FundValuation is the fund's value on a date: cash from the ledger plus
// priced holdings. TotalValue always equals Cash + PortfolioTotalValue.
type FundValuation struct {
	Date                time.Time       `json:"date"`
	TotalValue          decimal.Decimal `json:"totalValue"`
	Cash                decimal.Decimal `json:"cash"`
	PortfolioTotalValue decimal.Decimal `json:"portfolioTotalValue"`
	Composition         Composition     `json:"composition"`
	Positions           []PositionValue `json:"positions"`
	Skipped             []SkippedTicker `json:"skipped,omitempty"`
}

// Partial reports whether any holding was left out of the valuation.
func (v FundValuation) Partial() bool {
	return len(v.Skipped) > 0
}

// DailyFundSnapshot is the persisted fund state for one calendar date.
//
// NavPerUnit is the closing NAV (TotalValue / TotalUnits). SettlementNav is the
// NAV at which the day's deposits and withdrawals were converted to units,
// always derived from the preceding snapshot.
type DailyFundSnapshot struct {
	Date                time.Time       `json:"date"`
	TotalValue          decimal.Decimal `json:"totalValue"`
	TotalUnits          decimal.Decimal `json:"totalUnits"`
	NavPerUnit          decimal.Decimal `json:"navPerUnit"`
	SettlementNav       decimal.Decimal `json:"settlementNav"`
	NavReturn           decimal.Decimal `json:"navReturn"`
	Cash                decimal.Decimal `json:"cash"`
	GainOrLoss          decimal.Decimal `json:"gainOrLoss"`
	NetInflows          decimal.Decimal `json:"netInflows"`
	PortfolioTotalValue decimal.Decimal `json:"portfolioTotalValue"`
	CalculatedAt        time.Time       `json:"calculatedAt"`
}

// UserUnitSnapshot is one investor's holding on a date.
type UserUnitSnapshot struct {
	Date      time.Time       `json:"date"`
	Investor  string          `json:"investor"`
	UnitsHeld decimal.Decimal `json:"unitsHeld"`
	ValueHeld decimal.Decimal `json:"valueHeld"`
}

// CompositionSnapshot records one holding as valued on a computed date.
// Price is invalid when the ticker had no quote that day.
type CompositionSnapshot struct {
	Date     time.Time           `json:"date"`
	Ticker   string              `json:"ticker"`
	Quantity decimal.Decimal     `json:"quantity"`
	Price    decimal.NullDecimal `json:"price"`
	Value    decimal.Decimal     `json:"value"`
}

// DayRecord groups everything persisted for one computed date. It is written
// atomically: the fund snapshot is upserted and the investor and composition
// rows for the date are replaced wholesale.
type DayRecord struct {
	Snapshot    DailyFundSnapshot
	Users       []UserUnitSnapshot
	Composition []CompositionSnapshot
}
