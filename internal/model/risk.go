package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Risk estimation grid.
var (
	RiskConfidences = []int{95, 99}
	RiskHorizons    = []int{1, 5, 10}
)

// RiskFigure holds VaR and Expected Shortfall for one confidence level and horizon,
// both as a fraction of portfolio value and as a settlement-currency amount.
type RiskFigure struct {
	Confidence int             `json:"confidence"`
	Horizon    int             `json:"horizon"`
	VaR        decimal.Decimal `json:"var"`
	VaRAmount  decimal.Decimal `json:"varAmount"`
	ES         decimal.Decimal `json:"expectedShortfall"`
	ESAmount   decimal.Decimal `json:"expectedShortfallAmount"`
}

// VarSnapshot is the persisted risk estimate keyed by its anchor date, the most
// recent settled snapshot date before the requested date.
type VarSnapshot struct {
	AnchorDate     time.Time       `json:"anchorDate"`
	ReferenceValue decimal.Decimal `json:"referenceValue"`
	Observations   int             `json:"observations"`
	Figures        []RiskFigure    `json:"figures"`
	CalculatedAt   time.Time       `json:"calculatedAt"`
}

// Figure returns the figure for the given confidence and horizon.
func (v VarSnapshot) Figure(confidence, horizon int) (RiskFigure, bool) {
	for _, f := range v.Figures {
		if f.Confidence == confidence && f.Horizon == horizon {
			return f, true
		}
	}
	return RiskFigure{}, false
}
