package riskmath_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/fund-ledger/internal/riskmath"
)

func decs(ss ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(ss))
	for i, s := range ss {
		out[i] = decimal.RequireFromString(s)
	}
	return out
}

// ladder returns from/100, (from+1)/100, ... to/100.
func ladder(from, to int) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, decimal.New(int64(i), -2))
	}
	return out
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestReturns(t *testing.T) {
	r := riskmath.Returns(decs("100", "110", "99"))
	require.Len(t, r, 2)
	assertDec(t, "0.1", r[0])
	assertDec(t, "-0.1", r[1])

	t.Run("skips zero predecessor", func(t *testing.T) {
		r := riskmath.Returns(decs("0", "5", "10"))
		require.Len(t, r, 1)
		assertDec(t, "1", r[0])
	})

	t.Run("needs two points", func(t *testing.T) {
		assert.Empty(t, riskmath.Returns(decs("100")))
	})
}

func TestRollingSums(t *testing.T) {
	in := decs("1", "2", "3", "4")

	sums := riskmath.RollingSums(in, 2)
	require.Len(t, sums, 3)
	assertDec(t, "3", sums[0])
	assertDec(t, "5", sums[1])
	assertDec(t, "7", sums[2])

	assert.Len(t, riskmath.RollingSums(in, 1), 4)
	assert.Len(t, riskmath.RollingSums(in, 4), 1)
	assert.Empty(t, riskmath.RollingSums(in, 5))
}

// TestQuantile checks linear interpolation between order statistics.
func TestQuantile(t *testing.T) {
	sample := ladder(1, 21) // 0.01 .. 0.21, shuffled order must not matter
	sample[0], sample[20] = sample[20], sample[0]

	q, err := riskmath.Quantile(sample, decimal.RequireFromString("0.05"))
	require.NoError(t, err)
	assertDec(t, "0.02", q)

	q, err = riskmath.Quantile(sample, decimal.RequireFromString("0.01"))
	require.NoError(t, err)
	assertDec(t, "0.012", q)

	q, err = riskmath.Quantile(sample, decimal.NewFromInt(1))
	require.NoError(t, err)
	assertDec(t, "0.21", q)

	_, err = riskmath.Quantile(nil, decimal.RequireFromString("0.5"))
	assert.ErrorIs(t, err, riskmath.ErrEmptySample)
}

func TestHistoricalVaR(t *testing.T) {
	sample := ladder(-10, 10)

	est, err := riskmath.HistoricalVaR(sample, decimal.RequireFromString("0.95"))
	require.NoError(t, err)
	assertDec(t, "0.09", est.VaR)
	assertDec(t, "0.095", est.ES)

	est, err = riskmath.HistoricalVaR(sample, decimal.RequireFromString("0.99"))
	require.NoError(t, err)
	assertDec(t, "0.098", est.VaR)
	assertDec(t, "0.1", est.ES)

	assert.True(t, est.ES.GreaterThanOrEqual(est.VaR))
}
