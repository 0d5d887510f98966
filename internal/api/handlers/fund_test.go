package handlers_test

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/fund-ledger/internal/api/handlers"
	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/model"
	"github.com/ndewijer/fund-ledger/internal/testutil"
)

func setupFundHandler(t *testing.T) (*handlers.FundHandler, *sql.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return handlers.NewFundHandler(
		testutil.NewTestValuationService(t, db),
		testutil.NewTestUnitAccountingService(t, db),
	), db
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

// TestFundHandler_Value tests GET /api/fund/value.
//
// WHY: The valuation endpoint is the read-only view of what the fund is worth
// on a date; a missing price must degrade to a partial result, not an error.
func TestFundHandler_Value(t *testing.T) {
	t.Run("returns the valuation with positions and skips", func(t *testing.T) {
		handler, db := setupFundHandler(t)
		testutil.Deposit(t, db, "2025-01-01", "alice", "1000")
		testutil.Buy(t, db, "2025-01-01", "AAA", "5", "500")
		testutil.Buy(t, db, "2025-01-01", "BBB", "1", "100")
		testutil.NewPrice("AAA").On("2025-01-01").At("110").Build(t, db)

		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/fund/value", map[string]string{"date": "2025-01-01"})
		w := httptest.NewRecorder()
		handler.Value(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var v model.FundValuation
		require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
		assert.Equal(t, "400", v.Cash.String())
		assert.Equal(t, "550", v.PortfolioTotalValue.String())
		assert.Equal(t, "950", v.TotalValue.String())
		require.Len(t, v.Skipped, 1)
		assert.Equal(t, "BBB", v.Skipped[0].Ticker)
	})

	t.Run("returns 400 when date is missing", func(t *testing.T) {
		handler, _ := setupFundHandler(t)

		req := httptest.NewRequest(http.MethodGet, "/api/fund/value", nil)
		w := httptest.NewRecorder()
		handler.Value(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apperrors.ErrInvalidDate.Error(), decodeError(t, w)["error"])
	})

	t.Run("returns 500 on database error", func(t *testing.T) {
		handler, db := setupFundHandler(t)
		db.Close()

		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/fund/value", map[string]string{"date": "2025-01-01"})
		w := httptest.NewRecorder()
		handler.Value(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, decodeError(t, w), "error")
	})
}

func TestFundHandler_ComputeSnapshot(t *testing.T) {
	t.Run("computes and persists the date", func(t *testing.T) {
		handler, db := setupFundHandler(t)
		testutil.Deposit(t, db, "2025-01-01", "alice", "1000")

		req := testutil.NewRequestWithURLParams(http.MethodPost, "/api/fund/snapshot/2025-01-01", map[string]string{"date": "2025-01-01"})
		w := httptest.NewRecorder()
		handler.ComputeSnapshot(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var snap model.DailyFundSnapshot
		require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
		assert.Equal(t, "1000", snap.TotalValue.String())
		assert.Equal(t, "1000", snap.TotalUnits.String())
		assert.Equal(t, "1", snap.NavPerUnit.String())
		testutil.AssertRowCount(t, db, "daily_fund_snapshot", 1)
	})

	t.Run("returns 400 for a malformed date", func(t *testing.T) {
		handler, _ := setupFundHandler(t)

		req := testutil.NewRequestWithURLParams(http.MethodPost, "/api/fund/snapshot/x", map[string]string{"date": "2025-13-01"})
		w := httptest.NewRecorder()
		handler.ComputeSnapshot(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestFundHandler_ComputeRange(t *testing.T) {
	t.Run("skips weekends by default", func(t *testing.T) {
		handler, db := setupFundHandler(t)
		testutil.Deposit(t, db, "2025-01-03", "alice", "1000") // Friday

		req := testutil.NewRequestWithQueryParams(http.MethodPost, "/api/fund/snapshot/range",
			map[string]string{"start": "2025-01-03", "end": "2025-01-06"})
		w := httptest.NewRecorder()
		handler.ComputeRange(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp handlers.RangeResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, 2, resp.Computed)
		assert.Equal(t, 2, resp.Skipped)
		assert.Equal(t, 0, resp.Failed)
		require.Len(t, resp.Results, 4)
		assert.Equal(t, model.OutcomeSkipped, resp.Results[1].Status)
		assert.Equal(t, "weekend", resp.Results[1].Reason)
	})

	t.Run("computes every day when weekdays=false", func(t *testing.T) {
		handler, db := setupFundHandler(t)
		testutil.Deposit(t, db, "2025-01-03", "alice", "1000")

		req := testutil.NewRequestWithQueryParams(http.MethodPost, "/api/fund/snapshot/range",
			map[string]string{"start": "2025-01-03", "end": "2025-01-06", "weekdays": "false"})
		w := httptest.NewRecorder()
		handler.ComputeRange(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp handlers.RangeResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, 4, resp.Computed)
		testutil.AssertRowCount(t, db, "daily_fund_snapshot", 4)
	})

	t.Run("returns 400 for an inverted range", func(t *testing.T) {
		handler, _ := setupFundHandler(t)

		req := testutil.NewRequestWithQueryParams(http.MethodPost, "/api/fund/snapshot/range",
			map[string]string{"start": "2025-02-01", "end": "2025-01-01"})
		w := httptest.NewRecorder()
		handler.ComputeRange(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apperrors.ErrInvalidDateRange.Error(), decodeError(t, w)["error"])
	})

	t.Run("returns 400 for a bad weekdays flag", func(t *testing.T) {
		handler, _ := setupFundHandler(t)

		req := testutil.NewRequestWithQueryParams(http.MethodPost, "/api/fund/snapshot/range",
			map[string]string{"start": "2025-01-01", "end": "2025-01-02", "weekdays": "sometimes"})
		w := httptest.NewRecorder()
		handler.ComputeRange(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestFundHandler_Snapshots(t *testing.T) {
	t.Run("returns stored snapshots in the inclusive range", func(t *testing.T) {
		handler, db := setupFundHandler(t)
		testutil.NewSnapshot("2025-01-01").WithValue("100", "100").Build(t, db)
		testutil.NewSnapshot("2025-01-02").WithValue("110", "100").Build(t, db)
		testutil.NewSnapshot("2025-01-03").WithValue("120", "100").Build(t, db)

		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/fund/snapshot",
			map[string]string{"start": "2025-01-02", "end": "2025-01-03"})
		w := httptest.NewRecorder()
		handler.Snapshots(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var snaps []model.DailyFundSnapshot
		require.NoError(t, json.NewDecoder(w.Body).Decode(&snaps))
		require.Len(t, snaps, 2)
		assert.Equal(t, "110", snaps[0].TotalValue.String())
	})

	t.Run("returns empty array when nothing is stored", func(t *testing.T) {
		handler, _ := setupFundHandler(t)

		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/fund/snapshot",
			map[string]string{"start": "2025-01-01", "end": "2025-01-31"})
		w := httptest.NewRecorder()
		handler.Snapshots(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, "[]", w.Body.String())
	})
}

func TestFundHandler_Investors(t *testing.T) {
	t.Run("returns investor rows for a computed date", func(t *testing.T) {
		handler, db := setupFundHandler(t)
		testutil.NewSnapshot("2025-01-01").WithValue("300", "300").
			WithInvestor("alice", "200").WithInvestor("bob", "100").Build(t, db)

		req := testutil.NewRequestWithURLParams(http.MethodGet, "/api/fund/snapshot/2025-01-01/investors",
			map[string]string{"date": "2025-01-01"})
		w := httptest.NewRecorder()
		handler.Investors(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var rows []model.UserUnitSnapshot
		require.NoError(t, json.NewDecoder(w.Body).Decode(&rows))
		require.Len(t, rows, 2)
		assert.Equal(t, "alice", rows[0].Investor)
		assert.Equal(t, "200", rows[0].UnitsHeld.String())
	})

	t.Run("returns 404 when the date was never computed", func(t *testing.T) {
		handler, _ := setupFundHandler(t)

		req := testutil.NewRequestWithURLParams(http.MethodGet, "/api/fund/snapshot/2025-01-01/investors",
			map[string]string{"date": "2025-01-01"})
		w := httptest.NewRecorder()
		handler.Investors(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, apperrors.ErrSnapshotNotFound.Error(), decodeError(t, w)["error"])
	})
}
