// Package scheduler runs the daily fund computation on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ndewijer/fund-ledger/internal/logging"
)

// DailyFunc computes everything for one calendar date.
type DailyFunc func(ctx context.Context, date time.Time) error

// Scheduler invokes a DailyFunc for the current UTC date on each cron tick.
type Scheduler struct {
	cron *cron.Cron
	run  DailyFunc
	log  *zap.Logger
	now  func() time.Time
}

// New parses spec (standard five-field cron syntax, evaluated in UTC) and
// registers run. The scheduler is idle until Start.
func New(spec string, run DailyFunc, log *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		run:  run,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and returns a context that is done once a running
// job has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Next returns the next time the job will fire.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) tick() {
	now := s.now()
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	start := time.Now()
	if err := s.run(context.Background(), date); err != nil {
		s.log.Error("scheduled computation failed", logging.Date("date", date), zap.Error(err))
		return
	}
	s.log.Info("scheduled computation finished", logging.Date("date", date), zap.Duration("duration", time.Since(start)))
}
