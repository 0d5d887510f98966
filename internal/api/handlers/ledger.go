package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ndewijer/fund-ledger/internal/api/request"
	"github.com/ndewijer/fund-ledger/internal/api/response"
	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/model"
	"github.com/ndewijer/fund-ledger/internal/service"
	"github.com/ndewijer/fund-ledger/internal/validation"
)

// LedgerHandler handles HTTP requests for ledger events.
type LedgerHandler struct {
	ledgerService *service.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler with the provided service dependency.
func NewLedgerHandler(ledgerService *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{
		ledgerService: ledgerService,
	}
}

// AppendEvent handles POST requests to record a ledger event.
//
// Endpoint: POST /api/ledger/event
// Request Body: request.AppendEventRequest
// Response: 201 Created with model.CashFlowEvent
// Error: 400 Bad Request if the body is malformed or fails validation
// Error: 500 Internal Server Error if the event cannot be stored
func (h *LedgerHandler) AppendEvent(w http.ResponseWriter, r *http.Request) {
	var req request.AppendEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	event, err := validation.ValidateAppendEvent(req)
	if err != nil {
		respondServiceError(w, err, "")
		return
	}

	stored, err := h.ledgerService.Append(r.Context(), event)
	if err != nil {
		respondServiceError(w, err, apperrors.ErrFailedToAppendEvent.Error())
		return
	}

	response.RespondJSON(w, http.StatusCreated, stored)
}

// Events handles GET requests to list ledger events, optionally filtered by
// date range, type and owner.
//
// Endpoint: GET /api/ledger/event?start=&end=&type=&owner=
// Response: 200 OK with array of model.CashFlowEvent
// Error: 400 Bad Request if a filter is malformed
func (h *LedgerHandler) Events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter model.LedgerFilter

	if s := q.Get("start"); s != "" {
		d, err := request.ParseDate("start", s)
		if err != nil {
			respondServiceError(w, err, "")
			return
		}
		filter.Start = d
	}
	if s := q.Get("end"); s != "" {
		d, err := request.ParseDate("end", s)
		if err != nil {
			respondServiceError(w, err, "")
			return
		}
		filter.End = d
	}
	for _, t := range q["type"] {
		typ := model.TransactionType(t)
		if !typ.Valid() {
			response.RespondError(w, http.StatusBadRequest, "invalid query parameter", "unknown type: "+t)
			return
		}
		filter.Types = append(filter.Types, typ)
	}
	filter.Owner = q.Get("owner")

	events, err := h.ledgerService.Events(r.Context(), filter)
	if err != nil {
		respondServiceError(w, err, "failed to retrieve ledger events")
		return
	}
	if events == nil {
		events = []model.CashFlowEvent{}
	}

	response.RespondJSON(w, http.StatusOK, events)
}
