package training

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner is satisfied by *Trainer.
type Runner interface {
	Run(ctx context.Context) (*Report, error)
}

// Scheduler retrains on a standard 5-field cron expression
// (minute hour day-of-month month day-of-week), e.g. "0 3 * * 0", or a
// descriptor such as "@weekly".
type Scheduler struct {
	expr     string
	schedule cron.Schedule
	runner   Runner
	logger   *zap.Logger
	onDone   func(*Report, error)
	now      func() time.Time
}

// NewScheduler parses expr. onDone, if set, runs after every run.
func NewScheduler(expr string, runner Runner, logger *zap.Logger, onDone func(*Report, error)) (*Scheduler, error) {
	expr = strings.TrimSpace(expr)
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		expr:     expr,
		schedule: schedule,
		runner:   runner,
		logger:   logger,
		onDone:   onDone,
		now:      time.Now,
	}, nil
}

// Next returns the first activation after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Start blocks, running the trainer at every activation until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("retraining scheduled", zap.String("cron", s.expr))
	for {
		now := s.now()
		next := s.schedule.Next(now)
		wait := next.Sub(now)
		s.logger.Info("next retraining", zap.Time("at", next), zap.Duration("in", wait.Round(time.Second)))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.RunOnce(ctx)
	}
}

// RunOnce runs the trainer immediately.
func (s *Scheduler) RunOnce(ctx context.Context) (*Report, error) {
	report, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error("scheduled retraining failed", zap.Error(err))
	} else {
		s.logger.Info("scheduled retraining complete", zap.String("best", report.Best))
	}
	if s.onDone != nil {
		s.onDone(report, err)
	}
	return report, err
}
