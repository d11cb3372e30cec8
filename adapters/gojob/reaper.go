package gojob

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-tenancy/core"
)

// ReapService is the slice of the tenancy service the reap worker drives.
type ReapService interface {
	ReapExpiredBookings(ctx context.Context, now time.Time) (int, error)
}

// ReapWorker consumes reap deliveries and sweeps stale pending bookings.
// Failed sweeps are nacked with a requeue delay so a transient store outage
// only postpones the sweep rather than dropping it.
type ReapWorker struct {
	service ReapService
	clock   core.Clock
	policy  RetryPolicy
	delay   time.Duration
}

func NewReapWorker(service ReapService, clock core.Clock, policy RetryPolicy, retryDelay time.Duration) *ReapWorker {
	if clock == nil {
		clock = core.SystemClock{}
	}
	if retryDelay <= 0 {
		retryDelay = 30 * time.Second
	}
	return &ReapWorker{service: service, clock: clock, policy: policy, delay: retryDelay}
}

// Process handles a single delivery. Unknown job ids are dead-lettered; a
// reap worker should never silently ack work that belongs to another worker.
func (w *ReapWorker) Process(ctx context.Context, delivery core.JobDelivery) error {
	if w == nil || w.service == nil {
		return fmt.Errorf("gojob: reap worker is not configured")
	}
	if delivery == nil {
		return fmt.Errorf("gojob: delivery is required")
	}
	msg := delivery.Message()
	if msg == nil || msg.JobID != JobIDReapBookings {
		jobID := ""
		if msg != nil {
			jobID = msg.JobID
		}
		return delivery.Nack(ctx, core.JobNackOptions{
			DeadLetter: true,
			Reason:     fmt.Sprintf("unexpected job id %q", jobID),
		})
	}

	if _, err := w.service.ReapExpiredBookings(ctx, w.clock.Now()); err != nil {
		nackErr := delivery.Nack(ctx, w.policy.NormalizeAttempt(core.JobNackOptions{
			Delay:   w.delay,
			Requeue: true,
			Reason:  err.Error(),
		}, 0))
		if nackErr != nil {
			return fmt.Errorf("gojob: nack reap delivery: %w", nackErr)
		}
		return err
	}
	return delivery.Ack(ctx)
}

// Run drains the dequeuer until the context is cancelled.
func (w *ReapWorker) Run(ctx context.Context, dequeuer core.JobDequeuer) error {
	if w == nil || dequeuer == nil {
		return fmt.Errorf("gojob: dequeuer is required")
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		delivery, err := dequeuer.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if err := w.Process(ctx, delivery); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
