// Package scheduler runs the daily feed pipeline on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/shelfwatch/shelfwatch/pkg/inventory"
)

// DailyRunner ingests the feed of one day.
type DailyRunner interface {
	RunDaily(ctx context.Context, date time.Time) (*inventory.IngestionReport, error)
}

// Scheduler triggers a DailyRunner on a cron schedule in UTC. A run that is
// still going when the next one is due causes that next run to be skipped.
type Scheduler struct {
	cron    *cron.Cron
	runner  DailyRunner
	log     logrus.FieldLogger
	entryID cron.EntryID

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// ParseSchedule validates a standard five-field cron expression or a
// descriptor such as @daily.
func ParseSchedule(schedule string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return sched, nil
}

// New creates a Scheduler for schedule.
func New(schedule string, runner DailyRunner, log logrus.FieldLogger) (*Scheduler, error) {
	sched, err := ParseSchedule(schedule)
	if err != nil {
		return nil, err
	}

	log = log.WithField("component", "scheduler")
	s := &Scheduler{
		runner: runner,
		log:    log,
		ctx:    context.Background(),
	}
	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log))),
	)
	s.entryID = s.cron.Schedule(sched, cron.FuncJob(s.run))
	return s, nil
}

// Start begins scheduling. Runs use a context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.log.WithField("next_run", s.Next()).Info("Scheduler started")
}

// Stop stops scheduling, cancels a running job and returns a context that
// is done once it has returned.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.log.Info("Stopping scheduler")
	return s.cron.Stop()
}

// Next returns the time of the next scheduled run.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}

func (s *Scheduler) run() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	date := inventory.Today()
	log := s.log.WithField("date", inventory.FormatDate(date))
	log.Info("Running scheduled ingestion")

	report, err := s.runner.RunDaily(ctx, date)
	if err != nil {
		log.WithError(err).Error("Scheduled ingestion failed")
		return
	}
	log.WithFields(logrus.Fields{
		"run_id":   report.RunID,
		"inserted": report.Inserted,
		"skipped":  report.Skipped,
	}).Info("Scheduled ingestion completed")
}
