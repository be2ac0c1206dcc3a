package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kirinyoku/slotbook/internal/domain"
)

const relayBatch = 100

type dueQueue interface {
	PopDue(ctx context.Context, now time.Time, limit int) ([]domain.Webhook, error)
	Requeue(ctx context.Context, w domain.Webhook, at time.Time) error
}

type publisher interface {
	Publish(ctx context.Context, w domain.Webhook) error
}

// Relay moves webhooks whose delivery time has come from the scheduling
// queue to the delivery channel.
type Relay struct {
	queue    dueQueue
	pub      publisher
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
}

func NewRelay(queue dueQueue, pub publisher, logger *slog.Logger, interval time.Duration) *Relay {
	return &Relay{
		queue:    queue,
		pub:      pub,
		logger:   logger,
		interval: interval,
		now:      time.Now,
	}
}

// Run ticks until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := r.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Warn("webhook relay failed", "error", err)
			}
		}
	}
}

// Tick publishes every due webhook and reports how many were published. A
// failed publish goes back to the queue one interval later.
func (r *Relay) Tick(ctx context.Context) (int, error) {
	retry := r.interval
	if retry <= 0 {
		retry = time.Second
	}

	published := 0
	for {
		now := r.now()
		due, err := r.queue.PopDue(ctx, now, relayBatch)
		if err != nil {
			return published, err
		}

		for _, w := range due {
			if err := r.pub.Publish(ctx, w); err != nil {
				log := r.logger.With(
					"booking_uid", w.Payload.UID,
					"trigger", w.Trigger,
				)
				log.Warn("webhook publish failed", "error", err)
				if err := r.queue.Requeue(context.WithoutCancel(ctx), w, now.Add(retry)); err != nil {
					log.Error("webhook lost", "error", err)
				}
				continue
			}
			published++
		}

		if len(due) < relayBatch {
			return published, nil
		}
	}
}
