package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/model"
	"github.com/ndewijer/fund-ledger/internal/testutil"
)

// wobble returns n deterministic prices oscillating around 100.
func wobble(n int) []string {
	prices := make([]string, n)
	for i := range prices {
		prices[i] = fmt.Sprintf("%d.%02d", 95+(i*7)%11, (i*37)%100)
	}
	return prices
}

// TestRiskService_ComputeRisk tests the historical-simulation estimate.
//
// WHY: Risk figures are reported to investors; they must match the empirical
// quantile of the observed returns exactly, not an approximation of it.
func TestRiskService_ComputeRisk(t *testing.T) {
	ctx := context.Background()

	t.Run("VaR equals the negative empirical quantile", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestRiskService(t, db, 1)

		testutil.Buy(t, db, "2025-01-02", "AAA", "2", "200")
		testutil.NewSnapshot("2025-03-01").Build(t, db)
		prices := wobble(31)
		quotes := testutil.PriceSeries(t, db, "AAA", testutil.Date("2025-01-29"), prices)
		// Anchor-day and later prices are outside the window.
		testutil.NewPrice("AAA").On("2025-03-01").At("1").Build(t, db)

		v, err := svc.ComputeRisk(ctx, testutil.Date("2025-03-02"))
		require.NoError(t, err)

		assert.Equal(t, "2025-03-01", v.AnchorDate.Format("2006-01-02"))
		assert.Equal(t, 30, v.Observations)
		assert.Len(t, v.Figures, len(model.RiskConfidences)*len(model.RiskHorizons))

		// 30 returns, h = 29 x 0.05 = 1.45: the quantile lies 0.45 of the way from
		// the 2nd smallest return (96.03/100.66 - 1) to the 3rd (95.14/99.77 - 1),
		// -0.0464067354916308 + 0.45 x 0.0004103118874186 = -0.04622209514...
		f, ok := v.Figure(95, 1)
		require.True(t, ok)
		assertDec(t, "0.0462221", f.VaR)
		assert.True(t, v.ReferenceValue.Equal(quotes[len(quotes)-1].Price.Mul(testutil.Dec("2")).Round(2)))

		for _, fig := range v.Figures {
			assert.True(t, fig.ES.GreaterThanOrEqual(fig.VaR), "ES >= VaR at %d%% %dd", fig.Confidence, fig.Horizon)
		}
		f99, _ := v.Figure(99, 1)
		assert.True(t, f99.VaR.GreaterThanOrEqual(f.VaR))

		stored, err := svc.GetRisk(ctx, testutil.Date("2025-03-02"))
		require.NoError(t, err)
		assert.Equal(t, v.Observations, stored.Observations)
		assert.Len(t, stored.Figures, 6)
	})

	t.Run("insufficient history stores nothing", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestRiskService(t, db, 1)

		testutil.Buy(t, db, "2025-01-02", "AAA", "1", "100")
		testutil.NewSnapshot("2025-03-01").Build(t, db)
		testutil.PriceSeries(t, db, "AAA", testutil.Date("2025-02-20"), wobble(5))

		_, err := svc.ComputeRisk(ctx, testutil.Date("2025-03-02"))
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrInsufficientHistory)

		var ihe *apperrors.InsufficientHistoryError
		require.True(t, errors.As(err, &ihe))
		assert.Equal(t, 5, ihe.Horizon)
		assert.Equal(t, 6, ihe.Need)

		testutil.AssertRowCount(t, db, "var_snapshot", 0)
	})

	t.Run("no settled snapshot", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestRiskService(t, db, 1)

		testutil.NewSnapshot("2025-03-01").Build(t, db)

		_, err := svc.ComputeRisk(ctx, testutil.Date("2025-03-01"))
		assert.ErrorIs(t, err, apperrors.ErrNoSettledSnapshot)
	})
}

// TestRiskService_ComputeRiskMany tests the bounded parallel batch.
func TestRiskService_ComputeRiskMany(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestRiskService(t, db, 3)

	testutil.Buy(t, db, "2025-01-02", "AAA", "1", "100")
	testutil.PriceSeries(t, db, "AAA", testutil.Date("2025-01-01"), wobble(70))
	testutil.NewSnapshot("2025-02-15").Build(t, db)
	testutil.NewSnapshot("2025-03-01").Build(t, db)

	dates := []time.Time{
		testutil.Date("2025-03-02"),
		testutil.Date("2025-01-05"), // no earlier snapshot
		testutil.Date("2025-02-16"),
		testutil.Date("2025-01-10"),
	}
	results, err := svc.ComputeRiskMany(ctx, dates)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, model.OutcomeOK, results[0].Status)
	assert.Equal(t, model.OutcomeSkipped, results[1].Status)
	assert.ErrorIs(t, results[1].Err, apperrors.ErrNoSettledSnapshot)
	assert.Equal(t, model.OutcomeOK, results[2].Status)
	assert.Equal(t, "2025-02-15", results[2].Snapshot.AnchorDate.Format("2006-01-02"))
	assert.Equal(t, model.OutcomeSkipped, results[3].Status)

	testutil.AssertRowCount(t, db, "var_snapshot", 2)
}
