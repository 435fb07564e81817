package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"machtms/pkg/logger"
)

// RedisQueueConfig describes the Redis queue connection.
type RedisQueueConfig struct {
	Address   string
	Password  string
	DB        int
	Queue     string
	BlockWait time.Duration
}

// RedisQueue moves task ids through a Redis list. LPUSH on publish,
// BRPOP on consume, so ids come out in submission order.
type RedisQueue struct {
	client redis.UniversalClient
	queue  string
	wait   time.Duration
	log    *slog.Logger
}

// NewRedisQueue connects to Redis and verifies the connection.
func NewRedisQueue(cfg RedisQueueConfig) (*RedisQueue, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	queue := cfg.Queue
	if queue == "" {
		queue = "machtms:tasks"
	}
	wait := cfg.BlockWait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisQueue{
		client: client,
		queue:  queue,
		wait:   wait,
		log:    logger.Named("task.queue"),
	}, nil
}

// Publish pushes a task id onto the list.
func (q *RedisQueue) Publish(ctx context.Context, taskID string) error {
	if taskID == "" {
		return errors.New("task id cannot be empty")
	}
	if err := q.client.LPush(ctx, q.queue, taskID).Err(); err != nil {
		return fmt.Errorf("publish task to redis: %w", err)
	}
	return nil
}

// Consume runs workerCount blocking-pop loops until the context is
// cancelled. The first worker error stops the call.
func (q *RedisQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	errCh := make(chan error, workerCount)
	for i := 0; i < workerCount; i++ {
		go func() {
			errCh <- q.popLoop(ctx, handler)
		}()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (q *RedisQueue) popLoop(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		values, err := q.client.BRPop(ctx, q.wait, q.queue).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return err
			}
			if err == redis.Nil {
				continue
			}
			return fmt.Errorf("pop task from redis: %w", err)
		}
		if len(values) != 2 {
			continue
		}
		taskID := values[1]
		if handlerErr := handler(ctx, taskID); handlerErr != nil {
			// Delivery failed before the processor could record
			// anything, so put the id back.
			if pushErr := q.client.RPush(ctx, q.queue, taskID).Err(); pushErr != nil {
				q.log.Warn("task redelivery push failed",
					slog.String("task_id", taskID),
					slog.Any("error", pushErr))
			}
		}
	}
}

// Close closes the Redis connection.
func (q *RedisQueue) Close() error {
	if q == nil || q.client == nil {
		return nil
	}
	return q.client.Close()
}
