package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/fund-ledger/internal/api/request"
	"github.com/ndewijer/fund-ledger/internal/model"
)

// ValidateAppendEvent validates a ledger event request and converts it to a
// model.CashFlowEvent.
//
// Rules:
//   - id: optional, must be a UUID when present
//   - type: one of deposit, withdrawal, buy, sell, dividend, fee
//   - date: YYYY-MM-DD
//   - amount: decimal, non-zero
//   - owner: required for deposit and withdrawal, rejected otherwise
//   - ticker, shares: required for buy and sell (shares non-zero), rejected otherwise
//
// Returns a validation Error with field-specific error messages if validation fails.
func ValidateAppendEvent(req request.AppendEventRequest) (model.CashFlowEvent, error) {
	errors := make(map[string]string)
	var event model.CashFlowEvent

	if req.ID != "" {
		if err := ValidateUUID(req.ID); err != nil {
			errors["id"] = err.Error()
		}
		event.ID = req.ID
	}

	event.Type = model.TransactionType(strings.ToLower(strings.TrimSpace(req.Type)))
	if event.Type == "" {
		errors["type"] = "type is required"
	} else if !event.Type.Valid() {
		errors["type"] = fmt.Sprintf("invalid type: %s", req.Type)
	}

	if strings.TrimSpace(req.Date) == "" {
		errors["date"] = "date is required"
	} else if d, err := time.Parse("2006-01-02", req.Date); err != nil {
		errors["date"] = "date must be YYYY-MM-DD"
	} else {
		event.Date = d
	}

	if amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount)); err != nil {
		errors["amount"] = "amount must be a decimal number"
	} else if amount.IsZero() {
		errors["amount"] = "amount must be non-zero"
	} else {
		event.Amount = amount
	}

	owner := strings.TrimSpace(req.Owner)
	switch event.Type {
	case model.TypeDeposit, model.TypeWithdrawal:
		if owner == "" {
			errors["owner"] = "owner is required for investor flows"
		}
		event.Owner = owner
	default:
		if owner != "" {
			errors["owner"] = "owner is only allowed on deposit and withdrawal"
		}
	}

	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if event.Type.IsSecurity() {
		if ticker == "" {
			errors["ticker"] = "ticker is required for buy and sell"
		}
		event.Ticker = ticker

		if shares, err := decimal.NewFromString(strings.TrimSpace(req.Shares)); err != nil {
			errors["shares"] = "shares must be a decimal number"
		} else if shares.IsZero() {
			errors["shares"] = "shares must be non-zero"
		} else {
			event.Shares = shares.Abs()
		}
	} else if event.Type.Valid() && (ticker != "" || strings.TrimSpace(req.Shares) != "") {
		errors["ticker"] = "ticker and shares are only allowed on buy and sell"
	}

	if len(errors) > 0 {
		return model.CashFlowEvent{}, &Error{Fields: errors}
	}
	return event, nil
}
