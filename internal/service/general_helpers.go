package service

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rounding precisions for persisted figures.
const (
	// UnitPrecision applies to unit counts and NAV per unit.
	UnitPrecision int32 = 8
	// MoneyPrecision applies to currency amounts.
	MoneyPrecision int32 = 2

	ratioPrecision int32 = 16
)

var one = decimal.NewFromInt(1)

// round8 rounds half away from zero to 8 decimal places.
//
// Example:
//
//	round8(decimal.RequireFromString("0.123456785"))  // 0.12345679
func round8(d decimal.Decimal) decimal.Decimal {
	return d.Round(UnitPrecision)
}

// round2 rounds a currency amount half away from zero to cents.
//
// Example:
//
//	round2(decimal.RequireFromString("123.455"))  // 123.46
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPrecision)
}

// dateOnly truncates t to its UTC calendar date.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsWeekend reports whether the date falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
