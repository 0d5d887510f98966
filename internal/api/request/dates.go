package request

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
)

// DateLayout is the accepted format for date parameters.
const DateLayout = "2006-01-02"

// ParseDate parses a required YYYY-MM-DD parameter.
func ParseDate(name, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", apperrors.ErrInvalidDate, name)
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", apperrors.ErrInvalidDate, name)
	}
	return t, nil
}

// ParseDateRange parses required start and end parameters and checks start <= end.
func ParseDateRange(startParam, endParam string) (time.Time, time.Time, error) {
	start, err := ParseDate("start", startParam)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := ParseDate("end", endParam)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start %s is after end %s",
			apperrors.ErrInvalidDateRange, startParam, endParam)
	}
	return start, end, nil
}

// ParseBool parses an optional boolean parameter, returning def when empty.
func ParseBool(name, value string, def bool) (bool, error) {
	if value == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q", name, value)
	}
	return b, nil
}
