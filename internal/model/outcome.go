package model

import "time"

// OutcomeStatus tags the result of processing one date in a batch.
type OutcomeStatus string

const (
	OutcomeOK      OutcomeStatus = "ok"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

// DateResult is the recorded outcome for one date of a batch run. Snapshot is
// set only for OutcomeOK; Reason explains skips; Err is set for failures.
type DateResult struct {
	Date     time.Time          `json:"date"`
	Status   OutcomeStatus      `json:"status"`
	Reason   string             `json:"reason,omitempty"`
	Err      error              `json:"-"`
	Error    string             `json:"error,omitempty"`
	Snapshot *DailyFundSnapshot `json:"snapshot,omitempty"`
}

// RiskResult is the recorded outcome for one date of a parallel risk run.
type RiskResult struct {
	Date     time.Time     `json:"date"`
	Status   OutcomeStatus `json:"status"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Snapshot *VarSnapshot  `json:"snapshot,omitempty"`
}

// ImportResult is the recorded outcome of fetching prices for one ticker.
type ImportResult struct {
	Ticker string        `json:"ticker"`
	Status OutcomeStatus `json:"status"`
	Quotes int           `json:"quotes"`
	Err    error         `json:"-"`
	Error  string        `json:"error,omitempty"`
}
