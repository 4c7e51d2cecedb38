package server

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/robfig/cron/v3"
)

// Scheduler returns a cron scheduler that runs the pipeline on the configured schedule.
// Runs never overlap: a tick that fires while the previous run is in progress is skipped.
// The caller starts and stops the scheduler.
func (s *Server) Scheduler(ctx context.Context) (*cron.Cron, error) {
	logger := cron.PrintfLogger(s.logger.Named("scheduler").StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true}))

	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := c.AddFunc(s.cfg.Schedule, func() {
		_ = s.run(ctx, triggerSchedule)
	}); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", s.cfg.Schedule, err)
	}

	return c, nil
}
