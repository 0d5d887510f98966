// Package middleware provides HTTP middleware for request validation and processing.
package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/fund-ledger/internal/api/request"
	"github.com/ndewijer/fund-ledger/internal/api/response"
)

// ValidateDateMiddleware validates that the date URL parameter is present and
// is a YYYY-MM-DD date. Returns 400 Bad Request otherwise.
//
// Example usage in router:
//
//	r.Route("/{date}", func(r chi.Router) {
//	    r.Use(middleware.ValidateDateMiddleware)
//	    r.Get("/", handler.GetRisk)
//	    r.Post("/", handler.ComputeRisk)
//	})
func ValidateDateMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		date := chi.URLParam(r, "date")

		if date == "" {
			response.RespondError(w, http.StatusBadRequest, "valid date is required", "")
			return
		}

		if _, err := request.ParseDate("date", date); err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid date format", err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}
