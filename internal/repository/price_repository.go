package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/fund-ledger/internal/model"
)

// PriceRepository provides access to the price_quote table: one closing price
// per ticker per date, in settlement currency.
type PriceRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPriceRepository creates a new PriceRepository with the provided database connection.
func NewPriceRepository(db *sql.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

// WithTx returns a new PriceRepository scoped to the provided transaction.
func (r *PriceRepository) WithTx(tx *sql.Tx) *PriceRepository {
	return &PriceRepository{
		db: r.db,
		tx: tx,
	}
}

// getQuerier returns the active transaction if one is set, otherwise the database connection.
func (r *PriceRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// Upsert stores the closing price for a ticker on a date, replacing any existing quote.
func (r *PriceRepository) Upsert(ctx context.Context, q model.PriceQuote) error {
	_, err := r.getQuerier().ExecContext(ctx, `
		INSERT INTO price_quote (ticker, date, price) VALUES (?, ?, ?)
		ON CONFLICT(ticker, date) DO UPDATE SET price = excluded.price
	`, q.Ticker, FormatDate(q.Date), q.Price)
	if err != nil {
		return fmt.Errorf("failed to upsert price for %s on %s: %w", q.Ticker, FormatDate(q.Date), err)
	}
	return nil
}

// UpsertMany stores several quotes in one transaction.
func (r *PriceRepository) UpsertMany(ctx context.Context, quotes []model.PriceQuote) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		scoped := r.WithTx(tx)
		for _, q := range quotes {
			if err := scoped.Upsert(ctx, q); err != nil {
				return err
			}
		}
		return nil
	})
}

// Price returns the closing price for ticker on date. The boolean is false when
// no quote exists, which is a normal outcome rather than an error.
func (r *PriceRepository) Price(ctx context.Context, ticker string, date time.Time) (decimal.Decimal, bool, error) {
	var price decimal.Decimal
	err := r.getQuerier().QueryRowContext(ctx,
		`SELECT price FROM price_quote WHERE ticker = ? AND date = ?`,
		ticker, FormatDate(date),
	).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to query price_quote table: %w", err)
	}
	return price, true, nil
}

// PricesBetween returns all quotes for the given tickers with start <= date < end,
// ordered by date then ticker. An empty ticker list returns no quotes.
func (r *PriceRepository) PricesBetween(ctx context.Context, tickers []string, start, end time.Time) ([]model.PriceQuote, error) {
	if len(tickers) == 0 {
		return []model.PriceQuote{}, nil
	}

	placeholders := make([]string, len(tickers))
	args := make([]any, 0, len(tickers)+2)
	for i, t := range tickers {
		placeholders[i] = "?"
		args = append(args, t)
	}
	args = append(args, FormatDate(start), FormatDate(end))

	//#nosec G202 -- Safe: placeholders are generated programmatically, not from user input
	query := `
		SELECT ticker, date, price
		FROM price_quote
		WHERE ticker IN (` + strings.Join(placeholders, ",") + `)
		AND date >= ? AND date < ?
		ORDER BY date ASC, ticker ASC
	`

	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query price_quote table: %w", err)
	}
	defer rows.Close()

	quotes := []model.PriceQuote{}
	for rows.Next() {
		var q model.PriceQuote
		var dateStr string
		if err := rows.Scan(&q.Ticker, &dateStr, &q.Price); err != nil {
			return nil, fmt.Errorf("failed to scan price_quote table results: %w", err)
		}
		if q.Date, err = ParseTime(dateStr); err != nil {
			return nil, fmt.Errorf("failed to parse date: %w", err)
		}
		quotes = append(quotes, q)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price_quote table: %w", err)
	}

	return quotes, nil
}
