package scrape

import (
	"context"

	"github.com/fundveille/fundveille/scrape/internal/schedule"
)

// Scheduler re-exports the refresh scheduler for callers outside this
// package tree.
type (
	Scheduler      = schedule.Scheduler
	ScheduleConfig = schedule.Config
)

// refreshJobs adapts Service refresh methods to the scheduler contract.
type refreshJobs struct{ svc *Service }

func (j refreshJobs) NAVRefresh(ctx context.Context) error {
	_, err := j.svc.NAVRefresh(ctx)
	return err
}

func (j refreshJobs) FullRefresh(ctx context.Context) error {
	_, err := j.svc.FullRefresh(ctx)
	return err
}

// Scheduler builds a cron scheduler driving this service's refresh jobs.
func (s *Service) Scheduler(cfg ScheduleConfig) (*Scheduler, error) {
	return schedule.New(refreshJobs{svc: s}, cfg, s.logger)
}
