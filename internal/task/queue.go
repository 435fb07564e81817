package task

import (
	"context"
)

// Handler runs one delivered task id. Retry bookkeeping belongs to the
// processor, so a non-nil error means the delivery itself should be
// retried by the driver.
type Handler func(ctx context.Context, taskID string) error

// Producer enqueues task ids for asynchronous execution.
type Producer interface {
	Publish(ctx context.Context, taskID string) error
	Close() error
}

// Consumer delivers queued task ids to a handler until the context is
// cancelled.
type Consumer interface {
	Consume(ctx context.Context, workerCount int, handler Handler) error
	Close() error
}

// Queue is a driver that can do both ends, so the service and the
// processor can share one connection.
type Queue interface {
	Producer
	Consumer
}
