// Package schedule runs the periodic refresh jobs: NAV refresh daily,
// full refresh weekly.
package schedule

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Jobs are the refresh entry points the scheduler drives.
type Jobs interface {
	NAVRefresh(ctx context.Context) error
	FullRefresh(ctx context.Context) error
}

// Config holds the two cron expressions (standard 5-field syntax).
type Config struct {
	// NAVSpec schedules the fast NAV-only refresh. Default: daily 02:00.
	NAVSpec string
	// FullSpec schedules the full re-scrape. Default: Sunday 02:00.
	FullSpec string
}

func (c *Config) defaults() {
	if c.NAVSpec == "" {
		c.NAVSpec = "0 2 * * *"
	}
	if c.FullSpec == "" {
		c.FullSpec = "0 2 * * 0"
	}
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron   *cron.Cron
	jobs   Jobs
	logger *slog.Logger
	config Config
}

// New creates a Scheduler. Call Start to begin firing jobs.
func New(jobs Jobs, cfg Config, logger *slog.Logger) (*Scheduler, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		cron:   cron.New(),
		jobs:   jobs,
		logger: logger,
		config: cfg,
	}

	if _, err := s.cron.AddFunc(cfg.NAVSpec, func() { s.run("nav") }); err != nil {
		return nil, fmt.Errorf("schedule: nav spec %q: %w", cfg.NAVSpec, err)
	}
	if _, err := s.cron.AddFunc(cfg.FullSpec, func() { s.run("full") }); err != nil {
		return nil, fmt.Errorf("schedule: full spec %q: %w", cfg.FullSpec, err)
	}
	return s, nil
}

func (s *Scheduler) run(kind string) {
	ctx := context.Background()
	s.logger.Info("schedule: job fired", "job", kind)
	var err error
	if kind == "nav" {
		err = s.jobs.NAVRefresh(ctx)
	} else {
		err = s.jobs.FullRefresh(ctx)
	}
	if err != nil {
		s.logger.Error("schedule: job failed", "job", kind, "error", err)
	}
}

// Start launches the cron loop in its own goroutine. Non-blocking.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("schedule: started",
		"nav_spec", s.config.NAVSpec, "full_spec", s.config.FullSpec)
}

// Stop halts the cron loop. Running jobs finish; the returned context is
// done when they have.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce fires a single refresh immediately, outside the schedule.
func (s *Scheduler) RunOnce(ctx context.Context, navOnly bool) error {
	if navOnly {
		return s.jobs.NAVRefresh(ctx)
	}
	return s.jobs.FullRefresh(ctx)
}
