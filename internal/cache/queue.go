package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/voyagen/fiootv/internal/models"
)

// NotificationQueue is the list holding pending order and contact e-mails.
const NotificationQueue = "jobs:notifications"

// Enqueue pushes a notification onto the head of queue.
func Enqueue(ctx context.Context, r *Redis, queue string, n models.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("queue marshal: %w", err)
	}
	return r.client.LPush(ctx, Key(queue), data).Err()
}

// Dequeue blocks until a notification is available at the tail of queue or
// timeout elapses. A timeout or a cancelled ctx yields (nil, nil) so the
// caller can loop and check for shutdown.
func Dequeue(ctx context.Context, r *Redis, queue string, timeout time.Duration) (*models.Notification, error) {
	result, err := r.client.BRPop(ctx, timeout, Key(queue)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("queue dequeue: %w", err)
	}
	// [key, value]
	if len(result) < 2 {
		return nil, nil
	}
	var n models.Notification
	if err := json.Unmarshal([]byte(result[1]), &n); err != nil {
		return nil, fmt.Errorf("queue unmarshal: %w", err)
	}
	return &n, nil
}

// QueueLength returns the number of pending entries in queue.
func QueueLength(ctx context.Context, r *Redis, queue string) (int64, error) {
	n, err := r.client.LLen(ctx, Key(queue)).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return n, nil
}
