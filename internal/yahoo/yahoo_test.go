package yahoo_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/fund-ledger/internal/yahoo"
)

// 2025-01-02, 2025-01-03 and 2025-01-06 at 14:30 UTC.
const chartJSON = `{
  "chart": {
    "result": [{
      "meta": {"currency": "EUR", "symbol": "AAA", "exchangeName": "AMS"},
      "timestamp": [1735828200, 1735914600, 1736173800],
      "indicators": {"quote": [{"close": [101.25, null, 99.5]}]}
    }],
    "error": null
  }
}`

func TestFinanceClient_DailyCloses(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chartJSON))
	}))
	defer srv.Close()

	client := yahoo.NewFinanceClient(srv.URL)
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

	quotes, err := client.DailyCloses(context.Background(), "AAA", start, end)
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/AAA", gotPath)
	assert.Contains(t, gotQuery, "interval=1d")
	assert.Contains(t, gotQuery, "period1=1735776000")

	require.Len(t, quotes, 2, "null close is dropped")
	assert.Equal(t, "2025-01-02", quotes[0].Date.Format("2006-01-02"))
	assert.Equal(t, "101.25", quotes[0].Price.String())
	assert.Equal(t, "AAA", quotes[0].Ticker)
	assert.Equal(t, "2025-01-06", quotes[1].Date.Format("2006-01-02"))
	assert.Equal(t, "99.5", quotes[1].Price.String())
}

func TestFinanceClient_FiltersToRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(chartJSON))
	}))
	defer srv.Close()

	day := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	quotes, err := yahoo.NewFinanceClient(srv.URL).DailyCloses(context.Background(), "AAA", day, day)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "2025-01-02", quotes[0].Date.Format("2006-01-02"))
}

func TestFinanceClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	defer srv.Close()

	_, err := yahoo.NewFinanceClient(srv.URL).DailyCloses(context.Background(), "ZZZ", time.Now(), time.Now())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "symbol may be delisted"), err.Error())
}

func TestParseCloses_Validation(t *testing.T) {
	var empty yahoo.Response
	_, err := yahoo.ParseCloses("AAA", empty)
	assert.Error(t, err)
}
