package request

// AppendEventRequest is the body of POST /api/ledger/event. Amounts and share
// counts are decimal strings so no precision is lost in transit.
type AppendEventRequest struct {
	ID     string `json:"id,omitempty"`
	Type   string `json:"type"`
	Date   string `json:"date"`
	Amount string `json:"amount"`
	Owner  string `json:"owner,omitempty"`
	Ticker string `json:"ticker,omitempty"`
	Shares string `json:"shares,omitempty"`
}
