package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ndewijer/fund-ledger/internal/model"
)

// LedgerRepository provides access to the append-only ledger_event table and
// the per-day aggregates maintained alongside it.
//
// Every Append updates ledger_daily_total (absolute amount per date and type)
// and ledger_daily_shares (net signed shares per date and ticker) in the same
// transaction, so cumulative sums read one row per active day instead of one
// row per event.
type LedgerRepository struct {
	db *sql.DB
}

// NewLedgerRepository creates a new LedgerRepository with the provided database connection.
func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Append stores a new event and updates the running aggregates atomically.
// ID and CreatedAt are assigned when empty; Seq is assigned by the database.
func (r *LedgerRepository) Append(ctx context.Context, event model.CashFlowEvent) (model.CashFlowEvent, error) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		var shares any
		if event.Type.IsSecurity() {
			shares = event.Shares
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_event (id, type, date, amount, owner, ticker, shares, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			event.ID,
			string(event.Type),
			FormatDate(event.Date),
			event.Amount,
			nullString(event.Owner),
			nullString(event.Ticker),
			shares,
			formatTimestamp(event.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert ledger event: %w", err)
		}
		if event.Seq, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read ledger sequence: %w", err)
		}

		if err := bumpDailyTotal(ctx, tx, event); err != nil {
			return err
		}
		if event.Type.IsSecurity() {
			return bumpDailyShares(ctx, tx, event)
		}
		return nil
	})
	if err != nil {
		return model.CashFlowEvent{}, err
	}

	return event, nil
}

func bumpDailyTotal(ctx context.Context, tx *sql.Tx, event model.CashFlowEvent) error {
	var current decimal.Decimal
	err := tx.QueryRowContext(ctx,
		`SELECT total_abs FROM ledger_daily_total WHERE date = ? AND type = ?`,
		FormatDate(event.Date), string(event.Type),
	).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read daily total: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_daily_total (date, type, total_abs) VALUES (?, ?, ?)
		ON CONFLICT(date, type) DO UPDATE SET total_abs = excluded.total_abs
	`, FormatDate(event.Date), string(event.Type), current.Add(event.Amount.Abs()))
	if err != nil {
		return fmt.Errorf("failed to update daily total: %w", err)
	}
	return nil
}

func bumpDailyShares(ctx context.Context, tx *sql.Tx, event model.CashFlowEvent) error {
	var current decimal.Decimal
	err := tx.QueryRowContext(ctx,
		`SELECT net_shares FROM ledger_daily_shares WHERE date = ? AND ticker = ?`,
		FormatDate(event.Date), event.Ticker,
	).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read daily shares: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_daily_shares (date, ticker, net_shares) VALUES (?, ?, ?)
		ON CONFLICT(date, ticker) DO UPDATE SET net_shares = excluded.net_shares
	`, FormatDate(event.Date), event.Ticker, current.Add(event.SignedShares()))
	if err != nil {
		return fmt.Errorf("failed to update daily shares: %w", err)
	}
	return nil
}

// Query returns ledger events matching the filter, ordered by (date, seq).
func (r *LedgerRepository) Query(ctx context.Context, filter model.LedgerFilter) ([]model.CashFlowEvent, error) {
	query := `
		SELECT seq, id, type, date, amount, owner, ticker, shares, created_at
		FROM ledger_event
	`

	var conditions []string
	var args []any

	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		//#nosec G202 -- Safe: placeholders are generated programmatically, not from user input
		conditions = append(conditions, "type IN ("+strings.Join(placeholders, ",")+")")
	}
	if !filter.Start.IsZero() {
		conditions = append(conditions, "date >= ?")
		args = append(args, FormatDate(filter.Start))
	}
	if !filter.End.IsZero() {
		conditions = append(conditions, "date <= ?")
		args = append(args, FormatDate(filter.End))
	}
	if filter.Owner != "" {
		conditions = append(conditions, "owner = ?")
		args = append(args, filter.Owner)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date ASC, seq ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger_event table: %w", err)
	}
	defer rows.Close()

	events := []model.CashFlowEvent{}
	for rows.Next() {
		var e model.CashFlowEvent
		var typ, dateStr, createdAtStr string
		var owner, ticker sql.NullString
		var shares decimal.NullDecimal

		err := rows.Scan(&e.Seq, &e.ID, &typ, &dateStr, &e.Amount, &owner, &ticker, &shares, &createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger_event table results: %w", err)
		}

		e.Type = model.TransactionType(typ)
		e.Owner = owner.String
		e.Ticker = ticker.String
		if shares.Valid {
			e.Shares = shares.Decimal
		}

		e.Date, err = ParseTime(dateStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse date: %w", err)
		}
		e.CreatedAt, err = ParseTime(createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}

		events = append(events, e)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger_event table: %w", err)
	}

	return events, nil
}

// EventsOn returns the events of one type booked on exactly the given date.
func (r *LedgerRepository) EventsOn(ctx context.Context, date time.Time, typ model.TransactionType) ([]model.CashFlowEvent, error) {
	return r.Query(ctx, model.LedgerFilter{
		Types: []model.TransactionType{typ},
		Start: date,
		End:   date,
	})
}

// SumAbs returns the cumulative absolute amount of events of the given type
// dated on or before through.
func (r *LedgerRepository) SumAbs(ctx context.Context, typ model.TransactionType, through time.Time) (decimal.Decimal, error) {
	totals, err := r.SumsAbs(ctx, through)
	if err != nil {
		return decimal.Zero, err
	}
	return totals[typ], nil
}

// SumsAbs returns SumAbs for every transaction type in one pass. Types with no
// events map to zero.
func (r *LedgerRepository) SumsAbs(ctx context.Context, through time.Time) (map[model.TransactionType]decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT type, total_abs FROM ledger_daily_total WHERE date <= ?`,
		FormatDate(through),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger_daily_total table: %w", err)
	}
	defer rows.Close()

	totals := make(map[model.TransactionType]decimal.Decimal, len(model.AllTransactionTypes))
	for _, t := range model.AllTransactionTypes {
		totals[t] = decimal.Zero
	}

	for rows.Next() {
		var typ string
		var amount decimal.Decimal
		if err := rows.Scan(&typ, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan ledger_daily_total table results: %w", err)
		}
		t := model.TransactionType(typ)
		totals[t] = totals[t].Add(amount)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger_daily_total table: %w", err)
	}

	return totals, nil
}

// NetShares returns the cumulative signed share count per ticker for events
// dated on or before through. Zero and negative totals are included; callers
// decide how to treat them.
func (r *LedgerRepository) NetShares(ctx context.Context, through time.Time) (map[string]decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ticker, net_shares FROM ledger_daily_shares WHERE date <= ?`,
		FormatDate(through),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger_daily_shares table: %w", err)
	}
	defer rows.Close()

	net := make(map[string]decimal.Decimal)
	for rows.Next() {
		var ticker string
		var shares decimal.Decimal
		if err := rows.Scan(&ticker, &shares); err != nil {
			return nil, fmt.Errorf("failed to scan ledger_daily_shares table results: %w", err)
		}
		net[ticker] = net[ticker].Add(shares)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger_daily_shares table: %w", err)
	}

	return net, nil
}

// OldestDate finds the date of the earliest ledger event.
// The boolean is false when the ledger is empty.
func (r *LedgerRepository) OldestDate(ctx context.Context) (time.Time, bool, error) {
	var oldest sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT MIN(date) FROM ledger_event`).Scan(&oldest)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query oldest ledger date: %w", err)
	}
	if !oldest.Valid {
		return time.Time{}, false, nil
	}
	date, err := ParseTime(oldest.String)
	if err != nil {
		return time.Time{}, false, err
	}
	return date, true, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
