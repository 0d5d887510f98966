package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/fund-ledger/internal/model"
	"github.com/ndewijer/fund-ledger/internal/repository"
)

// EventBuilder provides a fluent interface for creating ledger events.
//
// Example usage:
//
//	// Investor deposit with defaults
//	testutil.NewEvent(model.TypeDeposit).On("2025-01-02").Amount("1000").By("alice").Build(t, db)
//
//	// Security purchase
//	testutil.NewEvent(model.TypeBuy).On("2025-01-02").Amount("2000").Shares("AAA", "10").Build(t, db)
type EventBuilder struct {
	typ    model.TransactionType
	date   time.Time
	amount decimal.Decimal
	owner  string
	ticker string
	shares decimal.Decimal
}

// NewEvent creates an EventBuilder with sensible defaults.
func NewEvent(typ model.TransactionType) *EventBuilder {
	return &EventBuilder{
		typ:    typ,
		date:   Date("2025-01-02"),
		amount: decimal.NewFromInt(100),
	}
}

// On sets the booking date (YYYY-MM-DD).
func (b *EventBuilder) On(date string) *EventBuilder {
	b.date = Date(date)
	return b
}

// Amount sets the settlement-currency amount.
func (b *EventBuilder) Amount(amount string) *EventBuilder {
	b.amount = Dec(amount)
	return b
}

// By sets the investor owning the event.
func (b *EventBuilder) By(owner string) *EventBuilder {
	b.owner = owner
	return b
}

// Shares sets the ticker and share count of a buy or sell.
func (b *EventBuilder) Shares(ticker, shares string) *EventBuilder {
	b.ticker = ticker
	b.shares = Dec(shares)
	return b
}

// Event returns the event without persisting it.
func (b *EventBuilder) Event() model.CashFlowEvent {
	return model.CashFlowEvent{
		Type:   b.typ,
		Date:   b.date,
		Amount: b.amount,
		Owner:  b.owner,
		Ticker: b.ticker,
		Shares: b.shares,
	}
}

// Build appends the event to the ledger.
func (b *EventBuilder) Build(t *testing.T, db *sql.DB) model.CashFlowEvent {
	t.Helper()

	e, err := repository.NewLedgerRepository(db).Append(context.Background(), b.Event())
	if err != nil {
		t.Fatalf("Failed to append ledger event: %v", err)
	}
	return e
}

// Deposit appends an investor deposit.
func Deposit(t *testing.T, db *sql.DB, date, owner, amount string) model.CashFlowEvent {
	t.Helper()
	return NewEvent(model.TypeDeposit).On(date).By(owner).Amount(amount).Build(t, db)
}

// Withdrawal appends an investor withdrawal.
func Withdrawal(t *testing.T, db *sql.DB, date, owner, amount string) model.CashFlowEvent {
	t.Helper()
	return NewEvent(model.TypeWithdrawal).On(date).By(owner).Amount(amount).Build(t, db)
}

// Buy appends a security purchase.
func Buy(t *testing.T, db *sql.DB, date, ticker, shares, amount string) model.CashFlowEvent {
	t.Helper()
	return NewEvent(model.TypeBuy).On(date).Shares(ticker, shares).Amount(amount).Build(t, db)
}

// Sell appends a security sale.
func Sell(t *testing.T, db *sql.DB, date, ticker, shares, amount string) model.CashFlowEvent {
	t.Helper()
	return NewEvent(model.TypeSell).On(date).Shares(ticker, shares).Amount(amount).Build(t, db)
}

// PriceBuilder provides a fluent interface for creating price quotes.
//
// Example usage:
//
//	testutil.NewPrice("AAA").On("2025-01-02").At("101.5").Build(t, db)
type PriceBuilder struct {
	Ticker string
	Date   time.Time
	Price  decimal.Decimal
}

// NewPrice creates a PriceBuilder for the ticker.
func NewPrice(ticker string) *PriceBuilder {
	return &PriceBuilder{
		Ticker: ticker,
		Date:   Date("2025-01-02"),
		Price:  decimal.NewFromInt(100),
	}
}

// On sets the quote date (YYYY-MM-DD).
func (b *PriceBuilder) On(date string) *PriceBuilder {
	b.Date = Date(date)
	return b
}

// OnDate sets the quote date.
func (b *PriceBuilder) OnDate(date time.Time) *PriceBuilder {
	b.Date = date
	return b
}

// At sets the closing price.
func (b *PriceBuilder) At(price string) *PriceBuilder {
	b.Price = Dec(price)
	return b
}

// Build stores the quote.
func (b *PriceBuilder) Build(t *testing.T, db *sql.DB) model.PriceQuote {
	t.Helper()

	q := model.PriceQuote{Ticker: b.Ticker, Date: b.Date, Price: b.Price}
	if err := repository.NewPriceRepository(db).Upsert(context.Background(), q); err != nil {
		t.Fatalf("Failed to create price quote: %v", err)
	}
	return q
}

// PriceSeries stores one quote per calendar day starting at start, taking
// prices in order. Used to build risk-engine histories.
func PriceSeries(t *testing.T, db *sql.DB, ticker string, start time.Time, prices []string) []model.PriceQuote {
	t.Helper()

	quotes := make([]model.PriceQuote, len(prices))
	for i, p := range prices {
		quotes[i] = model.PriceQuote{Ticker: ticker, Date: start.AddDate(0, 0, i), Price: Dec(p)}
	}
	if err := repository.NewPriceRepository(db).UpsertMany(context.Background(), quotes); err != nil {
		t.Fatalf("Failed to create price series: %v", err)
	}
	return quotes
}

// SnapshotBuilder provides a fluent interface for seeding daily fund snapshots
// directly, bypassing the unit accounting engine.
type SnapshotBuilder struct {
	Snapshot model.DailyFundSnapshot
	Users    []model.UserUnitSnapshot
}

// NewSnapshot creates a SnapshotBuilder for the date with unit NAV and no value.
func NewSnapshot(date string) *SnapshotBuilder {
	return &SnapshotBuilder{
		Snapshot: model.DailyFundSnapshot{
			Date:          Date(date),
			NavPerUnit:    decimal.NewFromInt(1),
			SettlementNav: decimal.NewFromInt(1),
			CalculatedAt:  time.Now().UTC(),
		},
	}
}

// WithValue sets total value and total units, deriving NAV.
func (b *SnapshotBuilder) WithValue(totalValue, totalUnits string) *SnapshotBuilder {
	b.Snapshot.TotalValue = Dec(totalValue)
	b.Snapshot.TotalUnits = Dec(totalUnits)
	b.Snapshot.Cash = Dec(totalValue)
	if b.Snapshot.TotalUnits.IsPositive() {
		b.Snapshot.NavPerUnit = b.Snapshot.TotalValue.DivRound(b.Snapshot.TotalUnits, 8)
	}
	return b
}

// WithInvestor adds an investor row.
func (b *SnapshotBuilder) WithInvestor(investor, units string) *SnapshotBuilder {
	b.Users = append(b.Users, model.UserUnitSnapshot{
		Date:      b.Snapshot.Date,
		Investor:  investor,
		UnitsHeld: Dec(units),
	})
	return b
}

// Build stores the snapshot with its investor rows.
func (b *SnapshotBuilder) Build(t *testing.T, db *sql.DB) model.DailyFundSnapshot {
	t.Helper()

	rec := model.DayRecord{Snapshot: b.Snapshot, Users: b.Users}
	if err := repository.NewSnapshotRepository(db).SaveDay(context.Background(), rec); err != nil {
		t.Fatalf("Failed to create snapshot: %v", err)
	}
	return b.Snapshot
}
