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

// RiskRepository stores historical-simulation risk estimates in var_snapshot
// and var_figure, keyed by anchor date.
type RiskRepository struct {
	db *sql.DB
}

// NewRiskRepository creates a new RiskRepository with the provided database connection.
func NewRiskRepository(db *sql.DB) *RiskRepository {
	return &RiskRepository{db: db}
}

// UpsertVar replaces the risk estimate for the snapshot's anchor date.
func (r *RiskRepository) UpsertVar(ctx context.Context, v model.VarSnapshot) error {
	anchor := FormatDate(v.AnchorDate)

	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO var_snapshot (anchor_date, reference_value, observations, calculated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(anchor_date) DO UPDATE SET
				reference_value = excluded.reference_value,
				observations = excluded.observations,
				calculated_at = excluded.calculated_at
		`, anchor, v.ReferenceValue, v.Observations, formatTimestamp(v.CalculatedAt))
		if err != nil {
			return fmt.Errorf("failed to upsert var_snapshot: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM var_figure WHERE anchor_date = ?`, anchor); err != nil {
			return fmt.Errorf("failed to clear var_figure: %w", err)
		}

		for _, f := range v.Figures {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO var_figure (anchor_date, confidence, horizon, var_fraction, var_amount, es_fraction, es_amount)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, anchor, f.Confidence, f.Horizon, f.VaR, f.VaRAmount, f.ES, f.ESAmount)
			if err != nil {
				return fmt.Errorf("failed to insert var_figure (%d%%, %dd): %w", f.Confidence, f.Horizon, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrPersistenceFailure, err)
	}
	return nil
}

// GetVar retrieves the risk estimate anchored on the given date.
// Returns apperrors.ErrVarSnapshotNotFound when none exists.
func (r *RiskRepository) GetVar(ctx context.Context, anchor time.Time) (model.VarSnapshot, error) {
	var v model.VarSnapshot
	var anchorStr, calculatedAtStr string

	err := r.db.QueryRowContext(ctx, `
		SELECT anchor_date, reference_value, observations, calculated_at
		FROM var_snapshot
		WHERE anchor_date = ?
	`, FormatDate(anchor)).Scan(&anchorStr, &v.ReferenceValue, &v.Observations, &calculatedAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return model.VarSnapshot{}, apperrors.ErrVarSnapshotNotFound
	}
	if err != nil {
		return model.VarSnapshot{}, fmt.Errorf("failed to query var_snapshot table: %w", err)
	}

	if v.AnchorDate, err = ParseTime(anchorStr); err != nil {
		return model.VarSnapshot{}, err
	}
	if v.CalculatedAt, err = ParseTime(calculatedAtStr); err != nil {
		return model.VarSnapshot{}, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT confidence, horizon, var_fraction, var_amount, es_fraction, es_amount
		FROM var_figure
		WHERE anchor_date = ?
		ORDER BY confidence ASC, horizon ASC
	`, anchorStr)
	if err != nil {
		return model.VarSnapshot{}, fmt.Errorf("failed to query var_figure table: %w", err)
	}
	defer rows.Close()

	v.Figures = []model.RiskFigure{}
	for rows.Next() {
		var f model.RiskFigure
		if err := rows.Scan(&f.Confidence, &f.Horizon, &f.VaR, &f.VaRAmount, &f.ES, &f.ESAmount); err != nil {
			return model.VarSnapshot{}, fmt.Errorf("failed to scan var_figure table results: %w", err)
		}
		v.Figures = append(v.Figures, f)
	}

	if err = rows.Err(); err != nil {
		return model.VarSnapshot{}, fmt.Errorf("error iterating var_figure table: %w", err)
	}

	return v, nil
}
