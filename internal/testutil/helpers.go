package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ndewijer/fund-ledger/internal/repository"
	"github.com/ndewijer/fund-ledger/internal/service"
)

// NewTestValuationService wires a ValuationService to the SQL ledger and price store.
func NewTestValuationService(t *testing.T, db *sql.DB) *service.ValuationService {
	t.Helper()

	return service.NewValuationService(
		repository.NewLedgerRepository(db),
		repository.NewPriceRepository(db),
		zap.NewNop(),
	)
}

// NewTestUnitAccountingService wires a UnitAccountingService against db.
func NewTestUnitAccountingService(t *testing.T, db *sql.DB) *service.UnitAccountingService {
	t.Helper()

	return service.NewUnitAccountingService(
		repository.NewLedgerRepository(db),
		NewTestValuationService(t, db),
		repository.NewSnapshotRepository(db),
		zap.NewNop(),
	)
}

// NewTestRiskService wires a RiskService with a 365-day lookback and the given parallelism.
func NewTestRiskService(t *testing.T, db *sql.DB, maxParallel int) *service.RiskService {
	t.Helper()

	ledger := repository.NewLedgerRepository(db)
	return service.NewRiskService(
		service.NewCompositionResolver(ledger, zap.NewNop()),
		repository.NewPriceRepository(db),
		repository.NewSnapshotRepository(db),
		repository.NewRiskRepository(db),
		service.RiskOptions{LookbackDays: 365, MaxParallel: maxParallel},
		zap.NewNop(),
	)
}

// NewTestLedgerService wires a LedgerService against db.
func NewTestLedgerService(t *testing.T, db *sql.DB) *service.LedgerService {
	t.Helper()

	ledger := repository.NewLedgerRepository(db)
	return service.NewLedgerService(ledger, ledger, zap.NewNop())
}

// NewTestPriceImportService wires a PriceImportService that fetches through
// fetcher and writes to the SQL price store without a cache.
func NewTestPriceImportService(t *testing.T, db *sql.DB, fetcher service.QuoteFetcher) *service.PriceImportService {
	t.Helper()

	return service.NewPriceImportService(
		fetcher,
		repository.NewPriceRepository(db),
		service.NewCompositionResolver(repository.NewLedgerRepository(db), zap.NewNop()),
		nil,
		zap.NewNop(),
	)
}

// NewTestSystemService wires a SystemService against db.
func NewTestSystemService(t *testing.T, db *sql.DB) *service.SystemService {
	t.Helper()

	return service.NewSystemService(db)
}

// MakeID generates a UUID string for use in tests.
func MakeID() string {
	return uuid.New().String()
}

// Date parses a YYYY-MM-DD string as a UTC date, panicking on malformed input.
//
// Example usage:
//
//	d := testutil.Date("2025-01-02")
func Date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

// Dec parses a decimal literal, panicking on malformed input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
