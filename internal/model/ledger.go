package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger event.
type TransactionType string

// Ledger event types. Deposits and withdrawals move investor money in and out
// of the fund; the rest are fund-level cash or security movements.
const (
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"
	TypeBuy        TransactionType = "buy"
	TypeSell       TransactionType = "sell"
	TypeDividend   TransactionType = "dividend"
	TypeFee        TransactionType = "fee"
)

// AllTransactionTypes lists every valid TransactionType in a stable order.
var AllTransactionTypes = []TransactionType{
	TypeDeposit, TypeWithdrawal, TypeBuy, TypeSell, TypeDividend, TypeFee,
}

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeBuy, TypeSell, TypeDividend, TypeFee:
		return true
	}
	return false
}

// IsSecurity reports whether events of this type move security quantities.
func (t TransactionType) IsSecurity() bool {
	return t == TypeBuy || t == TypeSell
}

// CashFlowEvent is one immutable ledger entry. Amount is in settlement currency
// and may carry either sign; aggregations use its absolute value.
// Events are ordered by (Date, Seq).
type CashFlowEvent struct {
	ID        string          `json:"id"`
	Seq       int64           `json:"seq"`
	Type      TransactionType `json:"type"`
	Date      time.Time       `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	Owner     string          `json:"owner,omitempty"` // Investor id, empty for fund-level events
	Ticker    string          `json:"ticker,omitempty"`
	Shares    decimal.Decimal `json:"shares"`
	CreatedAt time.Time       `json:"createdAt,omitempty"`
}

// SignedShares returns the share delta this event applies to its ticker:
// positive for buys, negative for sells, zero otherwise.
func (e CashFlowEvent) SignedShares() decimal.Decimal {
	switch e.Type {
	case TypeBuy:
		return e.Shares.Abs()
	case TypeSell:
		return e.Shares.Abs().Neg()
	}
	return decimal.Zero
}

// LedgerFilter narrows a ledger query. Zero values mean "no constraint".
type LedgerFilter struct {
	Types []TransactionType
	Start time.Time
	End   time.Time
	Owner string
}

// PriceQuote is a closing price for one ticker on one date, in settlement currency.
type PriceQuote struct {
	Ticker string          `json:"ticker"`
	Date   time.Time       `json:"date"`
	Price  decimal.Decimal `json:"price"`
}

// Composition maps ticker to net held quantity. Only positive quantities appear.
type Composition map[string]decimal.Decimal

// Tickers returns the composition's tickers in no particular order.
func (c Composition) Tickers() []string {
	tickers := make([]string, 0, len(c))
	for t := range c {
		tickers = append(tickers, t)
	}
	return tickers
}
