package handlers

import (
	"net/http"
	"time"

	"github.com/ndewijer/fund-ledger/internal/api/request"
	"github.com/ndewijer/fund-ledger/internal/api/response"
	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/service"
)

// RiskHandler handles HTTP requests for Value-at-Risk estimates.
type RiskHandler struct {
	riskService *service.RiskService
}

// NewRiskHandler creates a new RiskHandler with the provided service dependency.
func NewRiskHandler(riskService *service.RiskService) *RiskHandler {
	return &RiskHandler{
		riskService: riskService,
	}
}

// ComputeRisk handles POST requests to estimate and persist VaR and ES for a date.
//
// Endpoint: POST /api/risk/{date}
// Response: 200 OK with model.VarSnapshot
// Error: 404 Not Found if no snapshot exists before the date
// Error: 422 Unprocessable Entity if the price history is too short
// Error: 500 Internal Server Error if computation fails
func (h *RiskHandler) ComputeRisk(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r)
	if err != nil {
		respondServiceError(w, err, "")
		return
	}

	v, err := h.riskService.ComputeRisk(r.Context(), date)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToComputeRisk.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, v)
}

// GetRisk handles GET requests for the stored estimate anchored before a date.
//
// Endpoint: GET /api/risk/{date}
// Response: 200 OK with model.VarSnapshot
// Error: 404 Not Found if no snapshot or no stored estimate exists
// Error: 500 Internal Server Error if retrieval fails
func (h *RiskHandler) GetRisk(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r)
	if err != nil {
		respondServiceError(w, err, "")
		return
	}

	v, err := h.riskService.GetRisk(r.Context(), date)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToRetrieveRisk.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, v)
}

// ComputeRange handles POST requests to estimate risk for every date in a
// range. Dates run in parallel; each date's outcome is reported separately.
//
// Endpoint: POST /api/risk/range?start=YYYY-MM-DD&end=YYYY-MM-DD
// Response: 200 OK with array of model.RiskResult
// Error: 400 Bad Request if the range is missing, malformed or inverted
func (h *RiskHandler) ComputeRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end, err := request.ParseDateRange(q.Get("start"), q.Get("end"))
	if err != nil {
		respondServiceError(w, err, "")
		return
	}

	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}

	results, err := h.riskService.ComputeRiskMany(r.Context(), dates)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToComputeRisk.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, results)
}
