package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"estatecrm/internal/log"
	"estatecrm/internal/services"
)

// Scheduler runs the servicing sweep on a cron schedule.
type Scheduler struct {
	spec      string
	processor *services.ServicingProcessor
	logger    *log.Logger
	now       func() time.Time
}

func NewScheduler(spec string, processor *services.ServicingProcessor, logger *log.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parse servicing schedule %q: %w", spec, err)
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Scheduler{
		spec:      spec,
		processor: processor,
		logger:    logger.WithComponent(log.ComponentServicing),
		now:       time.Now,
	}, nil
}

// RunOnce performs a single sweep.
func (s *Scheduler) RunOnce(ctx context.Context) (services.ServicingResult, error) {
	return s.processor.Run(ctx, s.now())
}

// Run blocks until ctx is done, sweeping on every tick. Overlapping ticks
// are skipped and a panicking sweep does not stop the scheduler.
func (s *Scheduler) Run(ctx context.Context) error {
	cl := cronLogger{s.logger}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := c.AddFunc(s.spec, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Servicing sweep failed", log.FieldError, err)
		}
	}); err != nil {
		return fmt.Errorf("schedule servicing sweep: %w", err)
	}

	c.Start()
	s.logger.InfoContext(ctx, "Servicing scheduler started", "schedule", s.spec)
	<-ctx.Done()

	// wait for a running sweep
	<-c.Stop().Done()
	s.logger.Info("Servicing scheduler stopped")
	return nil
}

// cronLogger adapts the structured logger to cron.Logger.
type cronLogger struct{ l *log.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, log.FieldError, err)...)
}
