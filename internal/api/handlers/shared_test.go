package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/validation"
)

// TestStatusFor is an internal test (package handlers, not handlers_test)
// because statusFor is unexported.
func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &validation.Error{Fields: map[string]string{"type": "bad"}}, http.StatusBadRequest},
		{"invalid date", fmt.Errorf("%w: date is required", apperrors.ErrInvalidDate), http.StatusBadRequest},
		{"invalid range", apperrors.ErrInvalidDateRange, http.StatusBadRequest},
		{"snapshot not found", fmt.Errorf("wrapped: %w", apperrors.ErrSnapshotNotFound), http.StatusNotFound},
		{"var not found", apperrors.ErrVarSnapshotNotFound, http.StatusNotFound},
		{"no settled snapshot", apperrors.ErrNoSettledSnapshot, http.StatusNotFound},
		{"insufficient history", &apperrors.InsufficientHistoryError{Horizon: 10, Have: 3, Need: 11}, http.StatusUnprocessableEntity},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := statusFor(tt.err, "fallback")
			if got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}

	if _, msg := statusFor(errors.New("x"), "failed to compute"); msg != "failed to compute" {
		t.Errorf("Expected fallback message, got %q", msg)
	}
}
