// Package scheduler runs the expiry sweeps on a cron schedule. The read paths
// already heal lapsed holds lazily; the schedule bounds how long an unread
// mentor calendar can carry them.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cimillas/mentor-booking/services/reservations/internal/app"
	"github.com/robfig/cron/v3"
)

const runTimeout = 30 * time.Second

type Scheduler struct {
	cron    *cron.Cron
	sweeper app.Sweeper
	logger  *slog.Logger
}

// New registers the sweep under spec, a standard five-field cron expression
// or a descriptor such as "@every 1m".
func New(spec string, sweeper app.Sweeper, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	s := &Scheduler{cron: c, sweeper: sweeper, logger: logger}

	if _, err := c.AddFunc(spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("parse reconcile schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for a running sweep, or until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce releases lapsed holds and auto-cancels stale requests for every
// mentor. Errors are logged; the next tick retries.
func (s *Scheduler) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	res, err := s.sweeper.ReleaseExpiredHolds(ctx, "")
	if err != nil {
		s.logger.ErrorContext(ctx, "scheduled hold sweep failed", "error", err)
	} else if res.Failed > 0 {
		s.logger.WarnContext(ctx, "scheduled hold sweep left slots held", "released", res.Released, "failed", res.Failed)
	}

	if _, err := s.sweeper.CancelStaleRequests(ctx, ""); err != nil {
		s.logger.ErrorContext(ctx, "scheduled stale request sweep failed", "error", err)
	}
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
