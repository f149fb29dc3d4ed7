package worker

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"estatecrm/internal/amqp"
)

// Consumer delivers events until ctx is cancelled. *amqp.Client is one.
type Consumer interface {
	Consume(ctx context.Context, handler amqp.Handler) error
}

// Run supervises the event consumer and the scheduler. Either may be nil.
// The first one to fail stops the other; cancellation of ctx is a clean
// shutdown.
func Run(ctx context.Context, consumer Consumer, events *EventWorker, scheduler *Scheduler) error {
	g, ctx := errgroup.WithContext(ctx)
	if consumer != nil && events != nil {
		g.Go(func() error { return consumer.Consume(ctx, events.Handle) })
	}
	if scheduler != nil {
		g.Go(func() error { return scheduler.Run(ctx) })
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
