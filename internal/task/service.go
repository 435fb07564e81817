package task

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	xerrors "machtms/internal/errors"
	"machtms/pkg/logger"
)

// Service creates and queries tasks.
type Service struct {
	store      Store
	producer   Producer
	maxRetries int
}

// NewService builds the task service.
func NewService(store Store, producer Producer, maxRetries int) *Service {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Service{store: store, producer: producer, maxRetries: maxRetries}
}

// Submit creates a task and publishes it to the queue.
func (s *Service) Submit(ctx context.Context, orgID string, kind Kind, payload any) (*Task, error) {
	if s.store == nil || s.producer == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "task service is not initialized")
	}
	if kind == "" {
		return nil, xerrors.New(CodeTaskValidation, "task kind cannot be empty")
	}

	var raw json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, xerrors.Wrap(CodeTaskValidation, err, "encode task payload")
		}
		raw = encoded
	}

	task := &Task{
		ID:         uuid.NewString(),
		OrgID:      orgID,
		Kind:       kind,
		Payload:    raw,
		Status:     StatusPending,
		MaxRetries: s.maxRetries,
	}
	if err := s.store.Create(ctx, task); err != nil {
		return nil, err
	}
	if err := s.producer.Publish(ctx, task.ID); err != nil {
		logger.L().Error("failed to enqueue task", slog.Any("error", err), slog.String("task_id", task.ID))
		wrapped := xerrors.Wrap(CodeTaskPublish, err, "publish task to queue")
		_ = s.store.MarkFailed(ctx, task.ID, CodeTaskPublish, wrapped.Error(), true)
		return nil, wrapped
	}
	logger.Audit().Info("task enqueued",
		slog.String("task_id", task.ID),
		slog.String("kind", string(kind)),
		slog.String("org_id", orgID),
		slog.Int("max_retries", task.MaxRetries),
	)
	return task, nil
}

// Get returns the task state.
func (s *Service) Get(ctx context.Context, id string) (*Task, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "task store is not initialized")
	}
	return s.store.Get(ctx, id)
}

// List returns tasks matching the filter options.
func (s *Service) List(ctx context.Context, opts ...ListOption) ([]*Task, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "task store is not initialized")
	}
	options := buildListOptions(opts)
	return s.store.List(ctx, options)
}

// Stats returns aggregate counts for tasks matching the options.
func (s *Service) Stats(ctx context.Context, opts ...ListOption) (TaskStats, error) {
	if s.store == nil {
		return TaskStats{}, xerrors.New(xerrors.CodeInitializationFailure, "task store is not initialized")
	}
	options := buildListOptions(opts)
	return s.store.Stats(ctx, options)
}

// Retry re-publishes a failed task after resetting its attempt budget.
func (s *Service) Retry(ctx context.Context, id string) (*Task, error) {
	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status != StatusFailed {
		return nil, ErrTaskConflict
	}
	if err := s.store.MarkFailed(ctx, id, xerrors.Code(task.ErrorCode), task.LastError, false); err != nil {
		return nil, err
	}
	if err := s.producer.Publish(ctx, id); err != nil {
		return nil, xerrors.Wrap(CodeTaskPublish, err, "republish task")
	}
	return s.Get(ctx, id)
}

// Close releases the store and producer.
func (s *Service) Close() error {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			return err
		}
	}
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}

// WaitUntilCompleted polls the task until it reaches a terminal state.
func (s *Service) WaitUntilCompleted(ctx context.Context, id string, interval time.Duration) (*Task, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		task, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if task.Status == StatusSucceeded || task.Status == StatusFailed {
			return task, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
