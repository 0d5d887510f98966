package handlers

import (
	"net/http"

	"github.com/ndewijer/fund-ledger/internal/api/request"
	"github.com/ndewijer/fund-ledger/internal/api/response"
	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/model"
	"github.com/ndewijer/fund-ledger/internal/service"
)

// FundHandler handles HTTP requests for fund valuation and daily snapshots.
// It serves as the HTTP layer adapter, parsing requests and delegating
// business logic to the valuation and unit accounting services.
type FundHandler struct {
	valuationService      *service.ValuationService
	unitAccountingService *service.UnitAccountingService
}

// NewFundHandler creates a new FundHandler with the provided service dependencies.
func NewFundHandler(valuationService *service.ValuationService, unitAccountingService *service.UnitAccountingService) *FundHandler {
	return &FundHandler{
		valuationService:      valuationService,
		unitAccountingService: unitAccountingService,
	}
}

// RangeResponse summarises a batch computation.
type RangeResponse struct {
	Computed int                `json:"computed"`
	Skipped  int                `json:"skipped"`
	Failed   int                `json:"failed"`
	Results  []model.DateResult `json:"results"`
}

// Value handles GET requests for the fund's valuation on a date.
//
// Endpoint: GET /api/fund/value?date=YYYY-MM-DD
// Response: 200 OK with model.FundValuation
// Error: 400 Bad Request if the date is missing or malformed
// Error: 500 Internal Server Error if valuation fails
func (h *FundHandler) Value(w http.ResponseWriter, r *http.Request) {
	date, err := request.ParseDate("date", r.URL.Query().Get("date"))
	if err != nil {
		respondServiceError(w, err, "")
		return
	}

	valuation, err := h.valuationService.FundValue(r.Context(), date)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToComputeValuation.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, valuation)
}

// ComputeSnapshot handles POST requests to compute and persist one date.
//
// Endpoint: POST /api/fund/snapshot/{date}
// Response: 200 OK with model.DailyFundSnapshot
// Error: 400 Bad Request if the date is malformed
// Error: 500 Internal Server Error if computation or persistence fails
func (h *FundHandler) ComputeSnapshot(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r)
	if err != nil {
		respondServiceError(w, err, "")
		return
	}

	snapshot, err := h.unitAccountingService.Compute(r.Context(), date)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToComputeSnapshot.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, snapshot)
}

// ComputeRange handles POST requests to compute every date in a range.
// Weekends are skipped unless weekdays=false is given. Per-date failures are
// reported in the results; the request itself still succeeds.
//
// Endpoint: POST /api/fund/snapshot/range?start=YYYY-MM-DD&end=YYYY-MM-DD&weekdays=true
// Response: 200 OK with RangeResponse
// Error: 400 Bad Request if the range is missing, malformed or inverted
func (h *FundHandler) ComputeRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end, err := request.ParseDateRange(q.Get("start"), q.Get("end"))
	if err != nil {
		respondServiceError(w, err, "")
		return
	}
	weekdays, err := request.ParseBool("weekdays", q.Get("weekdays"), true)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid query parameter", err.Error())
		return
	}

	results, err := h.unitAccountingService.ComputeRange(r.Context(), start, end, service.RangeOptions{SkipWeekends: weekdays})
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToComputeSnapshot.Error())
		return
	}

	resp := RangeResponse{Results: results}
	for _, res := range results {
		switch res.Status {
		case model.OutcomeOK:
			resp.Computed++
		case model.OutcomeSkipped:
			resp.Skipped++
		case model.OutcomeFailed:
			resp.Failed++
		}
	}
	response.RespondJSON(w, http.StatusOK, resp)
}

// Snapshots handles GET requests for stored snapshots in an inclusive range.
//
// Endpoint: GET /api/fund/snapshot?start=YYYY-MM-DD&end=YYYY-MM-DD
// Response: 200 OK with array of model.DailyFundSnapshot
// Error: 400 Bad Request if the range is missing, malformed or inverted
// Error: 500 Internal Server Error if retrieval fails
func (h *FundHandler) Snapshots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end, err := request.ParseDateRange(q.Get("start"), q.Get("end"))
	if err != nil {
		respondServiceError(w, err, "")
		return
	}

	snapshots, err := h.unitAccountingService.Snapshots(r.Context(), start, end)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToRetrieveSnapshot.Error())
		return
	}
	if snapshots == nil {
		snapshots = []model.DailyFundSnapshot{}
	}

	response.RespondJSON(w, http.StatusOK, snapshots)
}

// Investors handles GET requests for the per-investor unit rows of a computed date.
//
// Endpoint: GET /api/fund/snapshot/{date}/investors
// Response: 200 OK with array of model.UserUnitSnapshot
// Error: 404 Not Found if the date has not been computed
// Error: 500 Internal Server Error if retrieval fails
func (h *FundHandler) Investors(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r)
	if err != nil {
		respondServiceError(w, err, "")
		return
	}

	rows, err := h.unitAccountingService.Investors(r.Context(), date)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToRetrieveSnapshot.Error())
		return
	}
	if rows == nil {
		rows = []model.UserUnitSnapshot{}
	}

	response.RespondJSON(w, http.StatusOK, rows)
}
