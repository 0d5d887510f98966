package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/fund-ledger/internal/api/request"
	"github.com/ndewijer/fund-ledger/internal/api/response"
	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/validation"
)

// statusFor maps a service error to its HTTP status code and the public error
// message. Unknown errors are reported as 500 with fallback as the message.
func statusFor(err error, fallback string) (int, string) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "validation failed"
	case errors.Is(err, apperrors.ErrInvalidDate):
		return http.StatusBadRequest, apperrors.ErrInvalidDate.Error()
	case errors.Is(err, apperrors.ErrInvalidDateRange):
		return http.StatusBadRequest, apperrors.ErrInvalidDateRange.Error()
	case errors.Is(err, apperrors.ErrSnapshotNotFound):
		return http.StatusNotFound, apperrors.ErrSnapshotNotFound.Error()
	case errors.Is(err, apperrors.ErrVarSnapshotNotFound):
		return http.StatusNotFound, apperrors.ErrVarSnapshotNotFound.Error()
	case errors.Is(err, apperrors.ErrNoSettledSnapshot):
		return http.StatusNotFound, apperrors.ErrNoSettledSnapshot.Error()
	case errors.Is(err, apperrors.ErrInsufficientHistory):
		return http.StatusUnprocessableEntity, apperrors.ErrInsufficientHistory.Error()
	}
	return http.StatusInternalServerError, fallback
}

// respondServiceError writes err using the status mapping in statusFor.
// Validation errors carry their per-field messages as details.
func respondServiceError(w http.ResponseWriter, err error, fallback string) {
	status, message := statusFor(err, fallback)

	var verr *validation.Error
	if errors.As(err, &verr) {
		response.RespondError(w, status, message, verr.Fields)
		return
	}
	response.RespondError(w, status, message, err.Error())
}

// dateParam parses the {date} URL parameter.
func dateParam(r *http.Request) (time.Time, error) {
	return request.ParseDate("date", chi.URLParam(r, "date"))
}
