// Package riskmath implements the historical-simulation statistics behind the
// risk engine: simple returns, rolling horizon sums, empirical quantiles and
// expected shortfall. All arithmetic is decimal so results are reproducible.
package riskmath

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

// Precision is the number of decimal places kept for intermediate ratios.
const Precision int32 = 16

// ErrEmptySample is returned by statistics that need at least one observation.
var ErrEmptySample = errors.New("empty sample")

// Returns computes simple returns v[i]/v[i-1] - 1 over consecutive points.
// Points whose predecessor is zero are skipped. The result has at most len(values)-1 entries.
func Returns(values []decimal.Decimal) []decimal.Decimal {
	if len(values) < 2 {
		return nil
	}
	out := make([]decimal.Decimal, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev.IsZero() {
			continue
		}
		out = append(out, values[i].DivRound(prev, Precision).Sub(decimal.NewFromInt(1)))
	}
	return out
}

// RollingSums returns the sums of every window of h consecutive returns, an
// additive approximation of the h-day return. h <= 1 returns a copy of r.
func RollingSums(r []decimal.Decimal, h int) []decimal.Decimal {
	if h <= 1 {
		return append([]decimal.Decimal(nil), r...)
	}
	if len(r) < h {
		return nil
	}

	out := make([]decimal.Decimal, 0, len(r)-h+1)
	sum := decimal.Zero
	for i, v := range r {
		sum = sum.Add(v)
		if i >= h {
			sum = sum.Sub(r[i-h])
		}
		if i >= h-1 {
			out = append(out, sum)
		}
	}
	return out
}

// Quantile returns the p-quantile of sample (0 <= p <= 1) by linear
// interpolation between order statistics: with the sample sorted ascending and
// h = (n-1)p, q = x[floor(h)] + (h - floor(h)) * (x[floor(h)+1] - x[floor(h)]).
func Quantile(sample []decimal.Decimal, p decimal.Decimal) (decimal.Decimal, error) {
	if len(sample) == 0 {
		return decimal.Zero, ErrEmptySample
	}
	sorted := sortedCopy(sample)

	h := decimal.NewFromInt(int64(len(sorted) - 1)).Mul(p)
	lo := int(h.Floor().IntPart())
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1], nil
	}
	if lo < 0 {
		return sorted[0], nil
	}

	frac := h.Sub(decimal.NewFromInt(int64(lo)))
	return sorted[lo].Add(frac.Mul(sorted[lo+1].Sub(sorted[lo]))), nil
}

// TailMean returns the mean of all observations at or below threshold.
func TailMean(sample []decimal.Decimal, threshold decimal.Decimal) (decimal.Decimal, error) {
	sum := decimal.Zero
	n := 0
	for _, v := range sample {
		if v.LessThanOrEqual(threshold) {
			sum = sum.Add(v)
			n++
		}
	}
	if n == 0 {
		return decimal.Zero, ErrEmptySample
	}
	return sum.DivRound(decimal.NewFromInt(int64(n)), Precision), nil
}

// Estimate holds value-at-risk and expected shortfall as positive loss fractions.
type Estimate struct {
	VaR decimal.Decimal
	ES  decimal.Decimal
}

// HistoricalVaR estimates VaR and ES at the given confidence (e.g. 0.95) from a
// sample of horizon returns: VaR = -q(1-confidence), ES = -mean(r <= q).
func HistoricalVaR(sample []decimal.Decimal, confidence decimal.Decimal) (Estimate, error) {
	alpha := decimal.NewFromInt(1).Sub(confidence)
	q, err := Quantile(sample, alpha)
	if err != nil {
		return Estimate{}, err
	}
	tail, err := TailMean(sample, q)
	if err != nil {
		return Estimate{}, err
	}
	return Estimate{VaR: q.Neg(), ES: tail.Neg()}, nil
}

func sortedCopy(sample []decimal.Decimal) []decimal.Decimal {
	sorted := append([]decimal.Decimal(nil), sample...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	return sorted
}
