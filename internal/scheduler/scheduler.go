package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/go-co-op/gocron"
	"golang.org/x/sync/errgroup"
)

// Refresher refreshes the latest observations of one dataset.
type Refresher interface {
	Refresh(ctx context.Context, datasetID string) error
}

// Dataset is a dataset to refresh and its refresh period. A zero Interval
// uses the scheduler default.
type Dataset struct {
	ID       string
	Interval time.Duration
}

// Options tune a Scheduler.
type Options struct {
	// DefaultInterval applies to datasets without their own period.
	DefaultInterval time.Duration
	// Timeout bounds a single dataset refresh.
	Timeout time.Duration
	// Concurrency caps parallel refreshes within one run (0 = unlimited).
	Concurrency int
	Logger      *slog.Logger
}

// Scheduler periodically refreshes the latest observations of the served datasets.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	groups    map[time.Duration][]string
	timeout   time.Duration
	limit     int
	logger    *slog.Logger
}

// New creates a new Scheduler. Datasets sharing a period are refreshed by
// the same job.
func New(datasets []Dataset, refresher Refresher, opts Options) *Scheduler {
	if opts.DefaultInterval < time.Minute {
		opts.DefaultInterval = time.Hour
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	groups := make(map[time.Duration][]string)
	for _, ds := range datasets {
		interval := ds.Interval
		if interval < time.Minute {
			interval = opts.DefaultInterval
		}
		groups[interval] = append(groups[interval], ds.ID)
	}

	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		refresher: refresher,
		groups:    groups,
		timeout:   opts.Timeout,
		limit:     opts.Concurrency,
		logger:    opts.Logger,
	}
}

// Start schedules one job per refresh period and starts the underlying
// scheduler. Every job runs once immediately.
func (s *Scheduler) Start() error {
	if len(s.groups) == 0 {
		s.logger.Info("scheduler: no datasets configured; nothing to schedule")
		return nil
	}

	intervals := make([]time.Duration, 0, len(s.groups))
	for interval := range s.groups {
		intervals = append(intervals, interval)
	}
	sort.Slice(intervals, func(i, j int) bool { return intervals[i] < intervals[j] })

	for _, interval := range intervals {
		ids := s.groups[interval]
		minutes := int(interval.Minutes())

		_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
			_ = s.RefreshAll(context.Background(), ids)
		})
		if err != nil {
			return err
		}
		s.logger.Info("scheduler: refresh job scheduled", "every", interval, "datasets", ids)
	}

	s.scheduler.StartAsync()
	return nil
}

// RefreshAll refreshes ids concurrently. A failing dataset does not cancel
// the others; the first failure is returned after all have finished.
func (s *Scheduler) RefreshAll(ctx context.Context, ids []string) error {
	s.logger.Debug("scheduler: running refresh job", "datasets", ids)

	var g errgroup.Group
	if s.limit > 0 {
		g.SetLimit(s.limit)
	}
	for _, id := range ids {
		id := id
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			if err := s.refresher.Refresh(ctx, id); err != nil {
				s.logger.Error("scheduler: refresh failed", "dataset", id, "error", err)
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	s.logger.Debug("scheduler: completed refresh job", "datasets", ids, "failed", err != nil)
	return err
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
