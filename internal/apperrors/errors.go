package apperrors

import (
	"errors"
	"fmt"
)

// Domain entity errors represent missing or invalid entities in the system.
// These errors indicate that a requested resource does not exist.
var (
	// ErrSnapshotNotFound indicates that no daily fund snapshot exists for the requested date.
	ErrSnapshotNotFound = errors.New("fund snapshot not found")

	// ErrNoSettledSnapshot indicates that no snapshot exists strictly before the requested date,
	// so there is no settled composition to anchor a risk computation on.
	ErrNoSettledSnapshot = errors.New("no settled snapshot before date")

	// ErrVarSnapshotNotFound indicates that no risk snapshot exists for the requested anchor date.
	ErrVarSnapshotNotFound = errors.New("var snapshot not found")
)

// Valuation and accounting errors. Only some of these are fatal; see the
// comment on each.
var (
	// ErrMissingPrice marks a ticker that was left out of a valuation because no
	// closing price exists for the date. Never returned as a failure; recorded as a skip.
	ErrMissingPrice = errors.New("missing price")

	// ErrInsufficientHistory indicates that the risk engine could not form enough
	// rolling-window observations for a horizon.
	ErrInsufficientHistory = errors.New("insufficient price history")

	// ErrInvalidDateRange indicates that the provided date range is invalid
	// (e.g., start date is after end date).
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrNegativeUnitsAttempt marks a redemption that would take an investor below zero units.
	// The redemption is clamped and logged, never returned to callers.
	ErrNegativeUnitsAttempt = errors.New("redemption exceeds units held")

	// ErrZeroTotalUnits marks a NAV lookup against a snapshot with no units outstanding.
	// The engine falls back to the bootstrap NAV instead of failing.
	ErrZeroTotalUnits = errors.New("zero total units")

	// ErrPersistenceFailure indicates that writing a day's snapshot failed and was rolled back.
	ErrPersistenceFailure = errors.New("persistence failure")

	// ErrInvalidTransaction indicates that a ledger event failed validation.
	ErrInvalidTransaction = errors.New("invalid transaction")

	// ErrInvalidDate indicates that a date parameter is missing or malformed.
	ErrInvalidDate = errors.New("invalid date")
)

// Operation failure errors represent system-level failures when retrieving or processing data.
var (
	ErrFailedToComputeValuation = errors.New("failed to compute valuation")
	ErrFailedToComputeSnapshot  = errors.New("failed to compute snapshot")
	ErrFailedToRetrieveSnapshot = errors.New("failed to retrieve snapshot")
	ErrFailedToComputeRisk      = errors.New("failed to compute risk")
	ErrFailedToRetrieveRisk     = errors.New("failed to retrieve risk")
	ErrFailedToAppendEvent      = errors.New("failed to append ledger event")
	ErrFailedToImportPrices     = errors.New("failed to import prices")
	ErrFailedToGetVersionInfo   = errors.New("failed to get version information")
)

// InsufficientHistoryError reports which horizon could not be estimated and how
// many rolling observations were available.
type InsufficientHistoryError struct {
	Horizon int
	Have    int
	Need    int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("%s: %d-day horizon has %d rolling observations, need %d",
		ErrInsufficientHistory, e.Horizon, e.Have, e.Need)
}

// Unwrap lets errors.Is match ErrInsufficientHistory.
func (e *InsufficientHistoryError) Unwrap() error {
	return ErrInsufficientHistory
}
