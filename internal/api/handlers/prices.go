package handlers

import (
	"net/http"
	"strings"

	"github.com/ndewijer/fund-ledger/internal/api/request"
	"github.com/ndewijer/fund-ledger/internal/api/response"
	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/model"
	"github.com/ndewijer/fund-ledger/internal/service"
)

// PricesHandler handles HTTP requests for price ingestion.
type PricesHandler struct {
	importService *service.PriceImportService
}

// NewPricesHandler creates a new PricesHandler.
func NewPricesHandler(importService *service.PriceImportService) *PricesHandler {
	return &PricesHandler{
		importService: importService,
	}
}

// ImportResponse summarises a price import.
type ImportResponse struct {
	Imported int                  `json:"imported"`
	Skipped  int                  `json:"skipped"`
	Failed   int                  `json:"failed"`
	Results  []model.ImportResult `json:"results"`
}

// Import handles POST requests to fetch closing prices from the external
// source. Without ticker parameters every ticker held on end is imported.
//
// Endpoint: POST /api/prices/import?start=YYYY-MM-DD&end=YYYY-MM-DD[&ticker=...]
// Response: 200 OK with ImportResponse
// Error: 400 Bad Request if the range is missing, malformed or inverted
// Error: 500 Internal Server Error if the held tickers cannot be resolved
func (h *PricesHandler) Import(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end, err := request.ParseDateRange(q.Get("start"), q.Get("end"))
	if err != nil {
		respondServiceError(w, err, "")
		return
	}

	var tickers []string
	for _, t := range q["ticker"] {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			tickers = append(tickers, t)
		}
	}

	var results []model.ImportResult
	if len(tickers) > 0 {
		results, err = h.importService.Import(r.Context(), tickers, start, end)
	} else {
		results, err = h.importService.ImportHeld(r.Context(), start, end)
	}
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToImportPrices.Error())
		return
	}

	resp := ImportResponse{Results: results}
	if resp.Results == nil {
		resp.Results = []model.ImportResult{}
	}
	for _, res := range results {
		switch res.Status {
		case model.OutcomeOK:
			resp.Imported++
		case model.OutcomeSkipped:
			resp.Skipped++
		case model.OutcomeFailed:
			resp.Failed++
		}
	}
	response.RespondJSON(w, http.StatusOK, resp)
}
