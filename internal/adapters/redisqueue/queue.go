package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/merchantpay/billing-service/internal/domain"
)

// DefaultQueueKey is the Redis list the notification worker consumes.
const DefaultQueueKey = "queue:whatsapp-outbound"

// Message is the queue payload exchanged between the generation pass and the
// delivery worker. It carries only what delivery needs; the job row in
// Postgres remains the system of record.
type Message struct {
	JobID       string `json:"job_id"`
	MerchantID  string `json:"merchant_id"`
	Destination string `json:"destination"`
	Text        string `json:"text"`
}

// Queue is a Redis-list backed notification queue. The producer side
// implements ports.NotificationDispatcher; the consumer side is used by the
// delivery worker.
type Queue struct {
	client *redis.Client
	key    string
}

// NewQueue creates a queue on the given Redis client
func NewQueue(client *redis.Client, key string) *Queue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &Queue{client: client, key: key}
}

// Enqueue pushes a notification job onto the delivery queue
func (q *Queue) Enqueue(ctx context.Context, job *domain.NotificationJob) error {
	msg := Message{
		JobID:       job.ID,
		MerchantID:  job.MerchantID,
		Destination: job.Destination,
		Text:        job.MessageText,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification message: %w", err)
	}

	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}

	return nil
}

// Dequeue blocks up to timeout waiting for the next message. Returns nil
// without error when the timeout elapses with an empty queue.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Message, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue notification: %w", err)
	}

	// BRPop returns [key, value]
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply length %d", len(res))
	}

	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		return nil, fmt.Errorf("unmarshal notification message: %w", err)
	}

	return &msg, nil
}

// Len reports the number of pending messages, for monitoring
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
