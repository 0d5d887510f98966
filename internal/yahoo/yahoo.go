// Package yahoo fetches daily closing prices from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/fund-ledger/internal/model"
)

// DefaultBaseURL is the public chart API endpoint.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// closePrecision is the number of decimal places kept from the API's float closes.
const closePrecision = 6

// FinanceClient provides methods for fetching daily closes from Yahoo Finance.
type FinanceClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewFinanceClient creates a client against baseURL. An empty baseURL uses DefaultBaseURL.
func NewFinanceClient(baseURL string) *FinanceClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &FinanceClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// DailyCloses returns one quote per trading day for symbol with start <= date <= end.
// Days the API reports without a close are omitted. Dates are UTC midnight.
func (c *FinanceClient) DailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]model.PriceQuote, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&period1=%d&period2=%d",
		c.baseURL,
		url.PathEscape(symbol),
		start.Unix(),
		end.AddDate(0, 0, 1).Unix(),
	)
	resp, err := c.query(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", symbol, err)
	}
	quotes, err := ParseCloses(symbol, resp)
	if err != nil {
		return nil, err
	}

	filtered := quotes[:0]
	for _, q := range quotes {
		if !q.Date.Before(start) && !q.Date.After(end) {
			filtered = append(filtered, q)
		}
	}
	return filtered, nil
}

// ParseCloses converts a chart response into quotes for ticker.
//
// The method performs validation to ensure:
//   - A result is present
//   - Timestamp data is present
//   - Close data is present with the same length as the timestamps
func ParseCloses(ticker string, r Response) ([]model.PriceQuote, error) {
	if len(r.Chart.Result) == 0 {
		return nil, fmt.Errorf("no results returned for symbol %s", ticker)
	}
	result := r.Chart.Result[0]

	if len(result.Timestamp) == 0 {
		return nil, fmt.Errorf("no price data returned for symbol %s", ticker)
	}
	if len(result.Indicators.Quote) == 0 || len(result.Indicators.Quote[0].Close) == 0 {
		return nil, fmt.Errorf("no close prices returned for symbol %s", ticker)
	}
	closes := result.Indicators.Quote[0].Close
	if len(closes) != len(result.Timestamp) {
		return nil, fmt.Errorf("mismatched data lengths for symbol %s", ticker)
	}

	quotes := make([]model.PriceQuote, 0, len(closes))
	for i, ts := range result.Timestamp {
		if closes[i] == nil {
			continue
		}
		t := time.Unix(ts, 0).UTC()
		quotes = append(quotes, model.PriceQuote{
			Ticker: ticker,
			Date:   time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC),
			Price:  decimal.NewFromFloat(*closes[i]).Round(closePrecision),
		})
	}
	return quotes, nil
}

// query executes a GET against the chart API and decodes the response.
func (c *FinanceClient) query(ctx context.Context, u string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Response{}, err
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, err
	}

	var response Response
	if err := json.Unmarshal(data, &response); err != nil {
		return Response{}, fmt.Errorf("unexpected response (status %d): %w", resp.StatusCode, err)
	}

	if response.Chart.Error != nil {
		return response, fmt.Errorf("yahoo error: %s: %s", response.Chart.Error.Code, response.Chart.Error.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return response, fmt.Errorf("yahoo returned status %d", resp.StatusCode)
	}

	return response, nil
}
