package service_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/fund-ledger/internal/model"
	"github.com/ndewijer/fund-ledger/internal/service"
	"github.com/ndewijer/fund-ledger/internal/testutil"
)

func valuation(total string) model.FundValuation {
	return model.FundValuation{TotalValue: testutil.Dec(total), Cash: testutil.Dec(total)}
}

func TestSettlementNav(t *testing.T) {
	assertDec(t, "1", service.SettlementNav(nil))

	zero := &service.NavState{Snapshot: model.DailyFundSnapshot{TotalValue: testutil.Dec("10"), TotalUnits: decimal.Zero}}
	assertDec(t, "1", service.SettlementNav(zero))

	prior := &service.NavState{Snapshot: model.DailyFundSnapshot{TotalValue: testutil.Dec("1000"), TotalUnits: testutil.Dec("3")}}
	assertDec(t, "333.33333333", service.SettlementNav(prior))
}

// TestStep exercises the fold directly, without storage.
func TestStep(t *testing.T) {
	t.Run("inception pins closing NAV at par", func(t *testing.T) {
		res := service.Step(nil, service.DayInput{
			Date:       testutil.Date("2025-01-02"),
			Valuation:  valuation("990"),
			Deposits:   []model.CashFlowEvent{testutil.NewEvent(model.TypeDeposit).By("x").Amount("1000").Event()},
			NetInflows: testutil.Dec("1000"),
		})
		assertDec(t, "1", res.State.Snapshot.NavPerUnit)
		assertDec(t, "1000", res.State.Snapshot.TotalUnits)
		assertDec(t, "-10", res.State.Snapshot.GainOrLoss)
		assertDec(t, "990.00", res.Users[0].ValueHeld)
	})

	t.Run("issues at prior NAV with 8dp rounding", func(t *testing.T) {
		prior := &service.NavState{
			Snapshot: model.DailyFundSnapshot{
				TotalValue: testutil.Dec("1000"),
				TotalUnits: testutil.Dec("3"),
				NavPerUnit: testutil.Dec("333.33333333"),
			},
			Units: map[string]decimal.Decimal{"x": testutil.Dec("3")},
		}
		res := service.Step(prior, service.DayInput{
			Date:      testutil.Date("2025-01-03"),
			Valuation: valuation("1100"),
			Deposits:  []model.CashFlowEvent{testutil.NewEvent(model.TypeDeposit).By("y").Amount("100").Event()},
		})

		// 100 / 333.33333333 = 0.3000000000030...
		assertDec(t, "0.3", res.State.Units["y"])
		assertDec(t, "3.3", res.State.Snapshot.TotalUnits)
		assert.Empty(t, res.Clamps)
	})

	t.Run("clamps and reports over-redemption", func(t *testing.T) {
		prior := &service.NavState{
			Snapshot: model.DailyFundSnapshot{TotalValue: testutil.Dec("200"), TotalUnits: testutil.Dec("200"), NavPerUnit: testutil.Dec("1")},
			Units:    map[string]decimal.Decimal{"x": testutil.Dec("50"), "y": testutil.Dec("150")},
		}
		res := service.Step(prior, service.DayInput{
			Date:        testutil.Date("2025-01-03"),
			Valuation:   valuation("120"),
			Withdrawals: []model.CashFlowEvent{testutil.NewEvent(model.TypeWithdrawal).By("x").Amount("80").Event()},
		})

		require.Len(t, res.Clamps, 1)
		assertDec(t, "80", res.Clamps[0].Requested)
		assertDec(t, "50", res.Clamps[0].Redeemed)
		assertDec(t, "0", res.State.Units["x"])
		assertDec(t, "150", res.State.Snapshot.TotalUnits)
		assertDec(t, "0.8", res.State.Snapshot.NavPerUnit)
		assertDec(t, "-0.2", res.State.Snapshot.NavReturn)
	})

	t.Run("does not mutate prior", func(t *testing.T) {
		prior := &service.NavState{
			Snapshot: model.DailyFundSnapshot{TotalValue: testutil.Dec("100"), TotalUnits: testutil.Dec("100"), NavPerUnit: testutil.Dec("1")},
			Units:    map[string]decimal.Decimal{"x": testutil.Dec("100")},
		}
		service.Step(prior, service.DayInput{
			Valuation: valuation("150"),
			Deposits:  []model.CashFlowEvent{testutil.NewEvent(model.TypeDeposit).By("x").Amount("50").Event()},
		})
		assertDec(t, "100", prior.Units["x"])
	})
}
