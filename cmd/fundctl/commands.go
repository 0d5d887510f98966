package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"

	"github.com/ndewijer/fund-ledger/internal/app"
	"github.com/ndewijer/fund-ledger/internal/config"
	"github.com/ndewijer/fund-ledger/internal/database"
	"github.com/ndewijer/fund-ledger/internal/logging"
	"github.com/ndewijer/fund-ledger/internal/model"
	"github.com/ndewijer/fund-ledger/internal/service"
)

const dateLayout = "2006-01-02"

var commands = []subcommands.Command{
	&migrateCmd{env: defaultEnv()},
	&valueCmd{env: defaultEnv()},
	&computeCmd{env: defaultEnv()},
	&computeRangeCmd{env: defaultEnv()},
	&riskCmd{env: defaultEnv()},
	&pricesCmd{env: defaultEnv()},
}

// env is what every command needs: where to write and how to reach the fund.
type env struct {
	out  io.Writer
	errw io.Writer
	open func(ctx context.Context) (*app.App, error)
}

func defaultEnv() env {
	return env{out: os.Stdout, errw: os.Stderr, open: openFromConfig}
}

func openFromConfig(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	return app.Open(ctx, cfg, log)
}

func (e env) fail(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(e.errw, "Error: "+format+"\n", args...)
	return subcommands.ExitFailure
}

func (e env) usage(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(e.errw, "Error: "+format+"\n", args...)
	return subcommands.ExitUsageError
}

func (e env) printJSON(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseDate parses a -date style flag, defaulting to today (UTC) when empty.
func parseDate(name, value string) (time.Time, error) {
	if value == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	d, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("-%s must be YYYY-MM-DD: %q", name, value)
	}
	return d, nil
}

type migrateCmd struct {
	env
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply pending database migrations" }
func (*migrateCmd) Usage() string {
	return `fundctl migrate

  Applies every pending schema migration and prints the resulting version.
`
}
func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (c *migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := c.open(ctx)
	if err != nil {
		return c.fail("%v", err)
	}
	defer a.Close()

	v, _, err := database.SchemaVersion(ctx, a.DB)
	if err != nil {
		return c.fail("%v", err)
	}
	fmt.Fprintf(c.out, "schema at version %d\n", v)
	return subcommands.ExitSuccess
}

type valueCmd struct {
	env
	date string
}

func (*valueCmd) Name() string     { return "value" }
func (*valueCmd) Synopsis() string { return "print the fund valuation for a date" }
func (*valueCmd) Usage() string {
	return `fundctl value [-date YYYY-MM-DD]

  Prints cash, priced positions and skipped tickers as JSON. Nothing is stored.
`
}

func (c *valueCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "date", "", "valuation date (defaults to today)")
}

func (c *valueCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	date, err := parseDate("date", c.date)
	if err != nil {
		return c.usage("%v", err)
	}
	a, err := c.open(ctx)
	if err != nil {
		return c.fail("%v", err)
	}
	defer a.Close()

	v, err := a.Valuation.FundValue(ctx, date)
	if err != nil {
		return c.fail("%v", err)
	}
	if err := c.printJSON(v); err != nil {
		return c.fail("%v", err)
	}
	return subcommands.ExitSuccess
}

type computeCmd struct {
	env
	date string
}

func (*computeCmd) Name() string     { return "compute" }
func (*computeCmd) Synopsis() string { return "compute and store the daily snapshot for a date" }
func (*computeCmd) Usage() string {
	return `fundctl compute [-date YYYY-MM-DD]

  Computes NAV and investor units for the date and stores them, replacing any
  earlier result for the same date.
`
}

func (c *computeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "date", "", "snapshot date (defaults to today)")
}

func (c *computeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	date, err := parseDate("date", c.date)
	if err != nil {
		return c.usage("%v", err)
	}
	a, err := c.open(ctx)
	if err != nil {
		return c.fail("%v", err)
	}
	defer a.Close()

	snap, err := a.UnitAccounting.Compute(ctx, date)
	if err != nil {
		return c.fail("%v", err)
	}
	fmt.Fprintf(c.out, "%s  value %s  units %s  nav %s\n",
		snap.Date.Format(dateLayout), snap.TotalValue.StringFixed(2), snap.TotalUnits.String(), snap.NavPerUnit.String())
	return subcommands.ExitSuccess
}

type computeRangeCmd struct {
	env
	start   string
	end     string
	allDays bool
}

func (*computeRangeCmd) Name() string     { return "compute-range" }
func (*computeRangeCmd) Synopsis() string { return "compute daily snapshots for every date in a range" }
func (*computeRangeCmd) Usage() string {
	return `fundctl compute-range [-start YYYY-MM-DD] [-end YYYY-MM-DD] [-all-days]

  Computes each date from start through end in order. Weekends are skipped
  unless -all-days is set. Without -start the range begins at the first ledger
  event. A failing date is reported and the run continues; the exit status is
  non-zero when any date failed.
`
}

func (c *computeRangeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.start, "start", "", "first date (defaults to the first ledger event)")
	f.StringVar(&c.end, "end", "", "last date (defaults to today)")
	f.BoolVar(&c.allDays, "all-days", false, "compute Saturdays and Sundays too")
}

func (c *computeRangeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	end, err := parseDate("end", c.end)
	if err != nil {
		return c.usage("%v", err)
	}
	var start time.Time
	if c.start != "" {
		if start, err = parseDate("start", c.start); err != nil {
			return c.usage("%v", err)
		}
	}

	a, err := c.open(ctx)
	if err != nil {
		return c.fail("%v", err)
	}
	defer a.Close()

	opts := service.RangeOptions{SkipWeekends: !c.allDays}
	var results []model.DateResult
	if start.IsZero() {
		results, err = a.UnitAccounting.Backfill(ctx, end, opts)
	} else {
		results, err = a.UnitAccounting.ComputeRange(ctx, start, end, opts)
	}
	if err != nil {
		return c.fail("%v", err)
	}

	var ok, skipped, failed int
	for _, r := range results {
		switch r.Status {
		case model.OutcomeOK:
			ok++
			fmt.Fprintf(c.out, "%s  ok       nav %s\n", r.Date.Format(dateLayout), r.Snapshot.NavPerUnit.String())
		case model.OutcomeSkipped:
			skipped++
			fmt.Fprintf(c.out, "%s  skipped  %s\n", r.Date.Format(dateLayout), r.Reason)
		case model.OutcomeFailed:
			failed++
			fmt.Fprintf(c.out, "%s  failed   %s\n", r.Date.Format(dateLayout), r.Error)
		}
	}
	fmt.Fprintf(c.out, "%d computed, %d skipped, %d failed\n", ok, skipped, failed)

	if failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type riskCmd struct {
	env
	date string
}

func (*riskCmd) Name() string     { return "risk" }
func (*riskCmd) Synopsis() string { return "estimate Value-at-Risk and Expected Shortfall" }
func (*riskCmd) Usage() string {
	return `fundctl risk [-date YYYY-MM-DD]

  Estimates VaR and ES at 95% and 99% over 1, 5 and 10 day horizons, anchored
  on the latest snapshot before the date, and stores the result.
`
}

func (c *riskCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "date", "", "reference date (defaults to today)")
}

func (c *riskCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	date, err := parseDate("date", c.date)
	if err != nil {
		return c.usage("%v", err)
	}
	a, err := c.open(ctx)
	if err != nil {
		return c.fail("%v", err)
	}
	defer a.Close()

	v, err := a.Risk.ComputeRisk(ctx, date)
	if err != nil {
		return c.fail("%v", err)
	}

	fmt.Fprintf(c.out, "anchor %s  reference value %s  observations %d\n",
		v.AnchorDate.Format(dateLayout), v.ReferenceValue.StringFixed(2), v.Observations)
	for _, f := range v.Figures {
		fmt.Fprintf(c.out, "%d%% %2dd  VaR %s (%s)  ES %s (%s)\n",
			f.Confidence, f.Horizon, f.VaR.String(), f.VaRAmount.StringFixed(2), f.ES.String(), f.ESAmount.StringFixed(2))
	}
	return subcommands.ExitSuccess
}

type pricesCmd struct {
	env
	start   string
	end     string
	tickers string
}

func (*pricesCmd) Name() string     { return "prices" }
func (*pricesCmd) Synopsis() string { return "import closing prices from the quote source" }
func (*pricesCmd) Usage() string {
	return `fundctl prices [-start YYYY-MM-DD] [-end YYYY-MM-DD] [-ticker AAA,BBB]

  Fetches daily closes for the tickers and stores them, replacing any stored
  close for the same day. Without -ticker every ticker held on the end date is
  imported. Without -start the window covers the configured fetch days. The
  exit status is non-zero when any ticker failed.
`
}

func (c *pricesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.start, "start", "", "first date (defaults to end minus the configured fetch days)")
	f.StringVar(&c.end, "end", "", "last date (defaults to today)")
	f.StringVar(&c.tickers, "ticker", "", "comma-separated tickers (defaults to the held tickers)")
}

func (c *pricesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	end, err := parseDate("end", c.end)
	if err != nil {
		return c.usage("%v", err)
	}
	var start time.Time
	if c.start != "" {
		if start, err = parseDate("start", c.start); err != nil {
			return c.usage("%v", err)
		}
	}

	var tickers []string
	for _, t := range strings.Split(c.tickers, ",") {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			tickers = append(tickers, t)
		}
	}

	a, err := c.open(ctx)
	if err != nil {
		return c.fail("%v", err)
	}
	defer a.Close()

	if start.IsZero() {
		start = end.AddDate(0, 0, -a.Config.Prices.FetchDays)
	}

	var results []model.ImportResult
	if len(tickers) > 0 {
		results, err = a.Prices.Import(ctx, tickers, start, end)
	} else {
		results, err = a.Prices.ImportHeld(ctx, start, end)
	}
	if err != nil {
		return c.fail("%v", err)
	}

	var failed int
	for _, r := range results {
		switch r.Status {
		case model.OutcomeOK:
			fmt.Fprintf(c.out, "%-8s ok       %d closes\n", r.Ticker, r.Quotes)
		case model.OutcomeSkipped:
			fmt.Fprintf(c.out, "%-8s skipped  no closes in range\n", r.Ticker)
		case model.OutcomeFailed:
			failed++
			fmt.Fprintf(c.out, "%-8s failed   %s\n", r.Ticker, r.Error)
		}
	}
	fmt.Fprintf(c.out, "%d tickers, %d failed\n", len(results), failed)

	if failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
