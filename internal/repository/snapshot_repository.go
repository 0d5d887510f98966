package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/model"
)

// SnapshotRepository provides data access for the daily fund snapshot and its
// child tables user_unit_snapshot and composition_snapshot.
type SnapshotRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewSnapshotRepository creates a new SnapshotRepository with the provided database connection.
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// WithTx returns a new SnapshotRepository scoped to the provided transaction.
func (r *SnapshotRepository) WithTx(tx *sql.Tx) *SnapshotRepository {
	return &SnapshotRepository{
		db: r.db,
		tx: tx,
	}
}

// getQuerier returns the active transaction if one is set, otherwise the database connection.
func (r *SnapshotRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const snapshotColumns = `
	date, total_value, total_units, nav_per_unit, settlement_nav, nav_return,
	cash, gain_or_loss, net_inflows, portfolio_total_value, calculated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (model.DailyFundSnapshot, error) {
	var s model.DailyFundSnapshot
	var dateStr, calculatedAtStr string

	err := row.Scan(
		&dateStr,
		&s.TotalValue,
		&s.TotalUnits,
		&s.NavPerUnit,
		&s.SettlementNav,
		&s.NavReturn,
		&s.Cash,
		&s.GainOrLoss,
		&s.NetInflows,
		&s.PortfolioTotalValue,
		&calculatedAtStr,
	)
	if err != nil {
		return model.DailyFundSnapshot{}, err
	}

	if s.Date, err = ParseTime(dateStr); err != nil {
		return model.DailyFundSnapshot{}, err
	}
	if s.CalculatedAt, err = ParseTime(calculatedAtStr); err != nil {
		return model.DailyFundSnapshot{}, err
	}
	return s, nil
}

// Get retrieves the snapshot for exactly the given date.
// Returns apperrors.ErrSnapshotNotFound when none exists.
func (r *SnapshotRepository) Get(ctx context.Context, date time.Time) (model.DailyFundSnapshot, error) {
	//#nosec G202 -- Safe: column list is a constant
	row := r.getQuerier().QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM daily_fund_snapshot WHERE date = ?`,
		FormatDate(date),
	)

	s, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DailyFundSnapshot{}, apperrors.ErrSnapshotNotFound
	}
	if err != nil {
		return model.DailyFundSnapshot{}, fmt.Errorf("failed to query daily_fund_snapshot table: %w", err)
	}
	return s, nil
}

// LatestBefore returns the most recent snapshot dated strictly before date.
// The boolean is false when no earlier snapshot exists.
func (r *SnapshotRepository) LatestBefore(ctx context.Context, date time.Time) (model.DailyFundSnapshot, bool, error) {
	//#nosec G202 -- Safe: column list is a constant
	row := r.getQuerier().QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM daily_fund_snapshot WHERE date < ? ORDER BY date DESC LIMIT 1`,
		FormatDate(date),
	)

	s, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DailyFundSnapshot{}, false, nil
	}
	if err != nil {
		return model.DailyFundSnapshot{}, false, fmt.Errorf("failed to query daily_fund_snapshot table: %w", err)
	}
	return s, true, nil
}

// Range returns stored snapshots with start <= date <= end in ascending order.
func (r *SnapshotRepository) Range(ctx context.Context, start, end time.Time) ([]model.DailyFundSnapshot, error) {
	//#nosec G202 -- Safe: column list is a constant
	rows, err := r.getQuerier().QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM daily_fund_snapshot WHERE date >= ? AND date <= ? ORDER BY date ASC`,
		FormatDate(start), FormatDate(end),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily_fund_snapshot table: %w", err)
	}
	defer rows.Close()

	snapshots := []model.DailyFundSnapshot{}
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily_fund_snapshot table results: %w", err)
		}
		snapshots = append(snapshots, s)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily_fund_snapshot table: %w", err)
	}

	return snapshots, nil
}

// UserSnapshots returns every investor row for the date, ordered by investor.
func (r *SnapshotRepository) UserSnapshots(ctx context.Context, date time.Time) ([]model.UserUnitSnapshot, error) {
	rows, err := r.getQuerier().QueryContext(ctx, `
		SELECT date, investor, units_held, value_held
		FROM user_unit_snapshot
		WHERE date = ?
		ORDER BY investor ASC
	`, FormatDate(date))
	if err != nil {
		return nil, fmt.Errorf("failed to query user_unit_snapshot table: %w", err)
	}
	defer rows.Close()

	users := []model.UserUnitSnapshot{}
	for rows.Next() {
		var u model.UserUnitSnapshot
		var dateStr string
		if err := rows.Scan(&dateStr, &u.Investor, &u.UnitsHeld, &u.ValueHeld); err != nil {
			return nil, fmt.Errorf("failed to scan user_unit_snapshot table results: %w", err)
		}
		if u.Date, err = ParseTime(dateStr); err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user_unit_snapshot table: %w", err)
	}

	return users, nil
}

// CompositionSnapshots returns the holdings recorded for the date, ordered by ticker.
func (r *SnapshotRepository) CompositionSnapshots(ctx context.Context, date time.Time) ([]model.CompositionSnapshot, error) {
	rows, err := r.getQuerier().QueryContext(ctx, `
		SELECT date, ticker, quantity, price, value
		FROM composition_snapshot
		WHERE date = ?
		ORDER BY ticker ASC
	`, FormatDate(date))
	if err != nil {
		return nil, fmt.Errorf("failed to query composition_snapshot table: %w", err)
	}
	defer rows.Close()

	holdings := []model.CompositionSnapshot{}
	for rows.Next() {
		var c model.CompositionSnapshot
		var dateStr string
		if err := rows.Scan(&dateStr, &c.Ticker, &c.Quantity, &c.Price, &c.Value); err != nil {
			return nil, fmt.Errorf("failed to scan composition_snapshot table results: %w", err)
		}
		if c.Date, err = ParseTime(dateStr); err != nil {
			return nil, err
		}
		holdings = append(holdings, c)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating composition_snapshot table: %w", err)
	}

	return holdings, nil
}

// SaveDay persists one computed date atomically: the fund snapshot is upserted
// and the date's investor and composition rows are replaced. On any failure
// nothing is written and the returned error wraps apperrors.ErrPersistenceFailure.
func (r *SnapshotRepository) SaveDay(ctx context.Context, rec model.DayRecord) error {
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		return r.WithTx(tx).writeDay(ctx, rec)
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", apperrors.ErrPersistenceFailure, FormatDate(rec.Snapshot.Date), err)
	}
	return nil
}

func (r *SnapshotRepository) writeDay(ctx context.Context, rec model.DayRecord) error {
	q := r.getQuerier()
	s := rec.Snapshot
	date := FormatDate(s.Date)

	// Upsert rather than replace so the child rows are not cascaded away mid-write.
	_, err := q.ExecContext(ctx, `
		INSERT INTO daily_fund_snapshot (`+snapshotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			total_value = excluded.total_value,
			total_units = excluded.total_units,
			nav_per_unit = excluded.nav_per_unit,
			settlement_nav = excluded.settlement_nav,
			nav_return = excluded.nav_return,
			cash = excluded.cash,
			gain_or_loss = excluded.gain_or_loss,
			net_inflows = excluded.net_inflows,
			portfolio_total_value = excluded.portfolio_total_value,
			calculated_at = excluded.calculated_at
	`,
		date,
		s.TotalValue,
		s.TotalUnits,
		s.NavPerUnit,
		s.SettlementNav,
		s.NavReturn,
		s.Cash,
		s.GainOrLoss,
		s.NetInflows,
		s.PortfolioTotalValue,
		formatTimestamp(s.CalculatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert daily_fund_snapshot: %w", err)
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM user_unit_snapshot WHERE date = ?`, date); err != nil {
		return fmt.Errorf("failed to clear user_unit_snapshot: %w", err)
	}
	for _, u := range rec.Users {
		_, err := q.ExecContext(ctx, `
			INSERT INTO user_unit_snapshot (date, investor, units_held, value_held)
			VALUES (?, ?, ?, ?)
		`, date, u.Investor, u.UnitsHeld, u.ValueHeld)
		if err != nil {
			return fmt.Errorf("failed to insert user_unit_snapshot for %s: %w", u.Investor, err)
		}
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM composition_snapshot WHERE date = ?`, date); err != nil {
		return fmt.Errorf("failed to clear composition_snapshot: %w", err)
	}
	for _, c := range rec.Composition {
		var price any
		if c.Price.Valid {
			price = c.Price.Decimal
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO composition_snapshot (date, ticker, quantity, price, value)
			VALUES (?, ?, ?, ?, ?)
		`, date, c.Ticker, c.Quantity, price, c.Value)
		if err != nil {
			return fmt.Errorf("failed to insert composition_snapshot for %s: %w", c.Ticker, err)
		}
	}

	return nil
}
