package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/voyagen/fiootv/internal/cache"
	"github.com/voyagen/fiootv/internal/models"
)

// Deliverer sends a notification synchronously.
type Deliverer interface {
	Deliver(ctx context.Context, n models.Notification) error
}

// DefaultDeliveryTimeout bounds one notification's delivery.
const DefaultDeliveryTimeout = time.Minute

// Async delivers each notification on its own goroutine, detached from the
// request that produced it.
type Async struct {
	Deliverer Deliverer
	Timeout   time.Duration
	Log       zerolog.Logger
}

func (a *Async) Notify(ctx context.Context, n models.Notification) {
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	go func() {
		defer cancel()
		if err := a.Deliverer.Deliver(ctx, n); err != nil {
			a.Log.Error().Err(err).Str("kind", n.Kind).Msg("notification delivery failed")
		}
	}()
}

// Queued pushes notifications to a Redis list for RunWorker to deliver.
// When the push fails it falls back to Fallback, if set.
type Queued struct {
	Redis    *cache.Redis
	Queue    string
	Fallback interface {
		Notify(ctx context.Context, n models.Notification)
	}
	Log zerolog.Logger
}

func (q *Queued) Notify(ctx context.Context, n models.Notification) {
	err := cache.Enqueue(ctx, q.Redis, q.queue(), n)
	if err == nil {
		return
	}
	q.Log.Warn().Err(err).Str("kind", n.Kind).Msg("enqueue notification failed")
	if q.Fallback != nil {
		q.Fallback.Notify(ctx, n)
	}
}

func (q *Queued) queue() string {
	if q.Queue == "" {
		return cache.NotificationQueue
	}
	return q.Queue
}

// RunWorker delivers queued notifications until ctx is cancelled.
func RunWorker(ctx context.Context, r *cache.Redis, queue string, d Deliverer, log zerolog.Logger) {
	if queue == "" {
		queue = cache.NotificationQueue
	}
	log.Info().Str("queue", queue).Msg("notification worker started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("notification worker stopped")
			return
		default:
		}

		n, err := cache.Dequeue(ctx, r, queue, 5*time.Second)
		if err != nil {
			log.Error().Err(err).Msg("dequeue notification failed")
			sleepCtx(ctx, time.Second)
			continue
		}
		if n == nil {
			continue
		}

		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultDeliveryTimeout)
		if err := d.Deliver(dctx, *n); err != nil {
			log.Error().Err(err).Str("kind", n.Kind).Msg("notification delivery failed")
		} else {
			log.Debug().Str("kind", n.Kind).Msg("notification delivered")
		}
		cancel()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
