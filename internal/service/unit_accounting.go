package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/logging"
	"github.com/ndewijer/fund-ledger/internal/model"
)

// Valuer values the fund on a date.
type Valuer interface {
	FundValue(ctx context.Context, date time.Time) (model.FundValuation, error)
}

// NavState is the accumulator threaded from one computed date to the next: the
// date's snapshot and the units each investor holds at its close.
type NavState struct {
	Snapshot model.DailyFundSnapshot
	Units    map[string]decimal.Decimal
}

// DayInput is everything a single date contributes to the fold.
type DayInput struct {
	Date        time.Time
	Valuation   model.FundValuation
	Deposits    []model.CashFlowEvent
	Withdrawals []model.CashFlowEvent
	// NetInflows is cumulative deposits minus withdrawals through Date.
	NetInflows   decimal.Decimal
	CalculatedAt time.Time
}

// Clamp records a redemption that asked for more units than the investor held.
type Clamp struct {
	Investor  string
	Requested decimal.Decimal
	Redeemed  decimal.Decimal
}

// StepResult is the output of one fold step.
type StepResult struct {
	State       NavState
	Users       []model.UserUnitSnapshot
	Composition []model.CompositionSnapshot
	Clamps      []Clamp
}

// Record returns the rows to persist for the step's date.
func (r StepResult) Record() model.DayRecord {
	return model.DayRecord{
		Snapshot:    r.State.Snapshot,
		Users:       r.Users,
		Composition: r.Composition,
	}
}

// SettlementNav is the NAV at which flows on the day after prior are converted
// to units: prior total value over prior total units, or 1 when there is no
// prior snapshot or it has no units outstanding.
func SettlementNav(prior *NavState) decimal.Decimal {
	if prior == nil || !prior.Snapshot.TotalUnits.IsPositive() {
		return one
	}
	return prior.Snapshot.TotalValue.DivRound(prior.Snapshot.TotalUnits, UnitPrecision)
}

// Step folds one day into the prior state. prior is nil on inception. It is a
// pure function: no I/O, no clock.
func Step(prior *NavState, day DayInput) StepResult {
	nav := SettlementNav(prior)

	units := make(map[string]decimal.Decimal)
	totalUnits := decimal.Zero
	if prior != nil {
		for investor, u := range prior.Units {
			units[investor] = u
		}
		totalUnits = prior.Snapshot.TotalUnits
	}

	for _, e := range day.Deposits {
		issued := e.Amount.Abs().DivRound(nav, UnitPrecision)
		units[e.Owner] = units[e.Owner].Add(issued)
		totalUnits = totalUnits.Add(issued)
	}

	var clamps []Clamp
	for _, e := range day.Withdrawals {
		requested := e.Amount.Abs().DivRound(nav, UnitPrecision)
		held := units[e.Owner]
		redeemed := requested
		if requested.GreaterThan(held) {
			redeemed = held
			clamps = append(clamps, Clamp{Investor: e.Owner, Requested: requested, Redeemed: redeemed})
		}
		units[e.Owner] = held.Sub(redeemed)
		totalUnits = totalUnits.Sub(redeemed)
	}

	v := day.Valuation
	snap := model.DailyFundSnapshot{
		Date:                day.Date,
		TotalValue:          v.TotalValue,
		TotalUnits:          totalUnits,
		SettlementNav:       nav,
		NavReturn:           decimal.Zero,
		Cash:                v.Cash,
		GainOrLoss:          v.TotalValue.Sub(day.NetInflows),
		NetInflows:          day.NetInflows,
		PortfolioTotalValue: v.PortfolioTotalValue,
		CalculatedAt:        day.CalculatedAt,
	}

	switch {
	case prior == nil:
		snap.NavPerUnit = one
	case totalUnits.IsPositive():
		snap.NavPerUnit = v.TotalValue.DivRound(totalUnits, UnitPrecision)
	default:
		snap.NavPerUnit = one
	}

	if prior != nil && prior.Snapshot.NavPerUnit.IsPositive() {
		snap.NavReturn = round8(snap.NavPerUnit.DivRound(prior.Snapshot.NavPerUnit, ratioPrecision).Sub(one))
	}

	investors := make([]string, 0, len(units))
	for investor := range units {
		investors = append(investors, investor)
	}
	sort.Strings(investors)

	users := make([]model.UserUnitSnapshot, 0, len(investors))
	for _, investor := range investors {
		held := units[investor]
		value := decimal.Zero
		if totalUnits.IsPositive() {
			value = held.Mul(v.TotalValue).DivRound(totalUnits, MoneyPrecision)
		}
		users = append(users, model.UserUnitSnapshot{
			Date:      day.Date,
			Investor:  investor,
			UnitsHeld: held,
			ValueHeld: value,
		})
	}

	return StepResult{
		State:       NavState{Snapshot: snap, Units: units},
		Users:       users,
		Composition: compositionRows(day.Date, v),
		Clamps:      clamps,
	}
}

func compositionRows(date time.Time, v model.FundValuation) []model.CompositionSnapshot {
	rows := make([]model.CompositionSnapshot, 0, len(v.Positions)+len(v.Skipped))
	for _, p := range v.Positions {
		rows = append(rows, model.CompositionSnapshot{
			Date:     date,
			Ticker:   p.Ticker,
			Quantity: p.Quantity,
			Price:    decimal.NewNullDecimal(p.Price),
			Value:    p.Value,
		})
	}
	for _, s := range v.Skipped {
		rows = append(rows, model.CompositionSnapshot{
			Date:     date,
			Ticker:   s.Ticker,
			Quantity: s.Quantity,
			Value:    decimal.Zero,
		})
	}
	return rows
}

// UnitAccountingService computes and persists daily fund snapshots. Each date
// depends on the closest earlier computed date, so dates form a sequential chain.
type UnitAccountingService struct {
	ledger TransactionLedger
	valuer Valuer
	store  SnapshotStore
	log    *zap.Logger
	locks  *dateLocks
	now    func() time.Time
}

// NewUnitAccountingService creates a new UnitAccountingService with the provided dependencies.
func NewUnitAccountingService(ledger TransactionLedger, valuer Valuer, store SnapshotStore, log *zap.Logger) *UnitAccountingService {
	return &UnitAccountingService{
		ledger: ledger,
		valuer: valuer,
		store:  store,
		log:    log,
		locks:  newDateLocks(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Compute computes and persists the snapshot for date, overwriting any earlier
// result for the same date. Concurrent calls for the same date serialize.
func (s *UnitAccountingService) Compute(ctx context.Context, date time.Time) (model.DailyFundSnapshot, error) {
	date = dateOnly(date)

	unlock := s.locks.lock(date)
	defer unlock()

	prior, err := s.loadPrior(ctx, date)
	if err != nil {
		return model.DailyFundSnapshot{}, err
	}

	next, err := s.computeDay(ctx, date, prior)
	if err != nil {
		return model.DailyFundSnapshot{}, err
	}
	return next.Snapshot, nil
}

// RangeOptions controls ComputeRange.
type RangeOptions struct {
	// SkipWeekends records Saturdays and Sundays as skipped instead of computing them.
	SkipWeekends bool
}

// ComputeRange computes every date from start through end in ascending order,
// carrying the accumulator in memory between dates. A failing or skipped date is
// recorded and does not stop the batch; when a snapshot is already stored for it,
// later dates chain from that snapshot, as Compute would.
func (s *UnitAccountingService) ComputeRange(ctx context.Context, start, end time.Time, opts RangeOptions) ([]model.DateResult, error) {
	start, end = dateOnly(start), dateOnly(end)
	if start.After(end) {
		return nil, fmt.Errorf("%w: start %s is after end %s",
			apperrors.ErrInvalidDateRange, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	prior, err := s.loadPrior(ctx, start)
	if err != nil {
		return nil, err
	}

	var results []model.DateResult
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		if opts.SkipWeekends && IsWeekend(d) {
			res := model.DateResult{Date: d, Status: model.OutcomeSkipped, Reason: "weekend"}
			// A stored weekend snapshot is still the closest prior for the next date.
			if err := s.adoptStored(ctx, d, &prior); err != nil {
				s.log.Error("failed to load stored weekend snapshot", logging.Date("date", d), zap.Error(err))
				res = model.DateResult{Date: d, Status: model.OutcomeFailed, Err: err, Error: err.Error()}
			}
			results = append(results, res)
			continue
		}

		next, err := s.computeLocked(ctx, d, prior)
		if err != nil {
			s.log.Error("snapshot computation failed", logging.Date("date", d), zap.Error(err))
			results = append(results, model.DateResult{Date: d, Status: model.OutcomeFailed, Err: err, Error: err.Error()})
			// An earlier run may have stored this date; it is then the closest prior.
			if err := s.adoptStored(ctx, d, &prior); err != nil {
				s.log.Error("failed to load stored snapshot", logging.Date("date", d), zap.Error(err))
			}
			continue
		}

		prior = &next
		snap := next.Snapshot
		results = append(results, model.DateResult{Date: d, Status: model.OutcomeOK, Snapshot: &snap})
	}

	return results, nil
}

// Backfill computes every date from the first ledger event through the given date.
func (s *UnitAccountingService) Backfill(ctx context.Context, through time.Time, opts RangeOptions) ([]model.DateResult, error) {
	oldest, ok, err := s.ledger.OldestDate(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToComputeSnapshot, err)
	}
	if !ok {
		return []model.DateResult{}, nil
	}
	return s.ComputeRange(ctx, oldest, through, opts)
}

func (s *UnitAccountingService) computeLocked(ctx context.Context, date time.Time, prior *NavState) (NavState, error) {
	unlock := s.locks.lock(date)
	defer unlock()
	return s.computeDay(ctx, date, prior)
}

// computeDay gathers the date's inputs, folds them into prior and persists the result.
func (s *UnitAccountingService) computeDay(ctx context.Context, date time.Time, prior *NavState) (NavState, error) {
	day, err := s.dayInput(ctx, date)
	if err != nil {
		return NavState{}, err
	}

	res := Step(prior, day)
	for _, c := range res.Clamps {
		s.log.Warn("redemption exceeds units held, clamped at zero",
			logging.Date("date", date),
			zap.String("investor", c.Investor),
			zap.String("requested", c.Requested.String()),
			zap.String("redeemed", c.Redeemed.String()),
			zap.NamedError("cause", apperrors.ErrNegativeUnitsAttempt),
		)
	}

	if err := s.keepCalculatedAt(ctx, &res); err != nil {
		return NavState{}, err
	}

	if err := s.store.SaveDay(ctx, res.Record()); err != nil {
		return NavState{}, err
	}

	s.log.Info("snapshot persisted",
		logging.Date("date", date),
		zap.String("totalValue", res.State.Snapshot.TotalValue.String()),
		zap.String("totalUnits", res.State.Snapshot.TotalUnits.String()),
		zap.String("navPerUnit", res.State.Snapshot.NavPerUnit.String()),
		zap.Int("investors", len(res.Users)),
		zap.Int("skippedTickers", len(day.Valuation.Skipped)),
	)

	return res.State, nil
}

func (s *UnitAccountingService) dayInput(ctx context.Context, date time.Time) (DayInput, error) {
	v, err := s.valuer.FundValue(ctx, date)
	if err != nil {
		return DayInput{}, err
	}

	deposits, err := s.ledger.EventsOn(ctx, date, model.TypeDeposit)
	if err != nil {
		return DayInput{}, fmt.Errorf("%w: deposits: %w", apperrors.ErrFailedToComputeSnapshot, err)
	}
	withdrawals, err := s.ledger.EventsOn(ctx, date, model.TypeWithdrawal)
	if err != nil {
		return DayInput{}, fmt.Errorf("%w: withdrawals: %w", apperrors.ErrFailedToComputeSnapshot, err)
	}

	depositTotal, err := s.ledger.SumAbs(ctx, model.TypeDeposit, date)
	if err != nil {
		return DayInput{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToComputeSnapshot, err)
	}
	withdrawalTotal, err := s.ledger.SumAbs(ctx, model.TypeWithdrawal, date)
	if err != nil {
		return DayInput{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToComputeSnapshot, err)
	}

	return DayInput{
		Date:         date,
		Valuation:    v,
		Deposits:     deposits,
		Withdrawals:  withdrawals,
		NetInflows:   depositTotal.Sub(withdrawalTotal),
		CalculatedAt: s.now(),
	}, nil
}

// loadPrior rebuilds the accumulator from the latest snapshot before date.
// Returns nil when date would be the first computed date.
func (s *UnitAccountingService) loadPrior(ctx context.Context, date time.Time) (*NavState, error) {
	snap, ok, err := s.store.LatestBefore(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveSnapshot, err)
	}
	if !ok {
		return nil, nil
	}
	return s.stateFor(ctx, snap)
}

// adoptStored replaces *prior with the snapshot stored for date, if any.
func (s *UnitAccountingService) adoptStored(ctx context.Context, date time.Time, prior **NavState) error {
	stored, ok, err := s.loadStored(ctx, date)
	if err != nil {
		return err
	}
	if ok {
		*prior = stored
	}
	return nil
}

// keepCalculatedAt carries over the stored computation time when the date is
// recomputed to the same figures, so an unchanged recompute rewrites an
// identical row.
func (s *UnitAccountingService) keepCalculatedAt(ctx context.Context, res *StepResult) error {
	date := res.State.Snapshot.Date
	stored, err := s.store.Get(ctx, date)
	if errors.Is(err, apperrors.ErrSnapshotNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveSnapshot, err)
	}
	if !sameFigures(stored, res.State.Snapshot) {
		return nil
	}
	users, err := s.store.UserSnapshots(ctx, date)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveSnapshot, err)
	}
	if !sameUsers(users, res.Users) {
		return nil
	}
	res.State.Snapshot.CalculatedAt = stored.CalculatedAt
	return nil
}

func sameFigures(a, b model.DailyFundSnapshot) bool {
	return a.TotalValue.Equal(b.TotalValue) &&
		a.TotalUnits.Equal(b.TotalUnits) &&
		a.NavPerUnit.Equal(b.NavPerUnit) &&
		a.SettlementNav.Equal(b.SettlementNav) &&
		a.NavReturn.Equal(b.NavReturn) &&
		a.Cash.Equal(b.Cash) &&
		a.GainOrLoss.Equal(b.GainOrLoss) &&
		a.NetInflows.Equal(b.NetInflows) &&
		a.PortfolioTotalValue.Equal(b.PortfolioTotalValue)
}

// sameUsers compares investor rows; both sides are ordered by investor.
func sameUsers(a, b []model.UserUnitSnapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Investor != b[i].Investor ||
			!a[i].UnitsHeld.Equal(b[i].UnitsHeld) ||
			!a[i].ValueHeld.Equal(b[i].ValueHeld) {
			return false
		}
	}
	return true
}

// loadStored rebuilds the accumulator from the snapshot stored for exactly date.
func (s *UnitAccountingService) loadStored(ctx context.Context, date time.Time) (*NavState, bool, error) {
	snap, err := s.store.Get(ctx, date)
	if errors.Is(err, apperrors.ErrSnapshotNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	st, err := s.stateFor(ctx, snap)
	if err != nil {
		return nil, false, err
	}
	return st, true, nil
}

func (s *UnitAccountingService) stateFor(ctx context.Context, snap model.DailyFundSnapshot) (*NavState, error) {
	users, err := s.store.UserSnapshots(ctx, snap.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveSnapshot, err)
	}
	units := make(map[string]decimal.Decimal, len(users))
	for _, u := range users {
		units[u.Investor] = u.UnitsHeld
	}
	return &NavState{Snapshot: snap, Units: units}, nil
}

// Snapshots returns stored snapshots between start and end inclusive.
func (s *UnitAccountingService) Snapshots(ctx context.Context, start, end time.Time) ([]model.DailyFundSnapshot, error) {
	start, end = dateOnly(start), dateOnly(end)
	if start.After(end) {
		return nil, apperrors.ErrInvalidDateRange
	}
	snaps, err := s.store.Range(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveSnapshot, err)
	}
	return snaps, nil
}

// Investors returns the investor rows stored for date. Returns
// apperrors.ErrSnapshotNotFound when the date has not been computed.
func (s *UnitAccountingService) Investors(ctx context.Context, date time.Time) ([]model.UserUnitSnapshot, error) {
	date = dateOnly(date)
	if _, err := s.store.Get(ctx, date); err != nil {
		if errors.Is(err, apperrors.ErrSnapshotNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveSnapshot, err)
	}
	users, err := s.store.UserSnapshots(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveSnapshot, err)
	}
	return users, nil
}
