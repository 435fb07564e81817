package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	xerrors "machtms/internal/errors"
)

func TestProcessorDispatchesByKind(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store := NewMemoryStore()
	queue := NewMemoryQueue(1024)
	service := NewService(store, queue, 3)

	var indexed, usages atomic.Int32
	processor := NewProcessor(store, queue, queue, WithWorkerCount(8))
	processor.Register(KindSearchIndex, func(_ context.Context, task *Task) (string, error) {
		var payload SearchIndexPayload
		if err := task.DecodePayload(&payload); err != nil {
			return "", err
		}
		indexed.Add(1)
		return "indexed " + payload.Entity, nil
	})
	processor.Register(KindAddressUsage, func(context.Context, *Task) (string, error) {
		usages.Add(1)
		return "recorded", nil
	})

	go func() {
		if err := processor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("processor exited: %v", err)
		}
	}()

	total := 100
	for i := 0; i < total; i++ {
		kind := KindSearchIndex
		var payload any = SearchIndexPayload{Entity: "load", ID: "load-1"}
		if i%2 == 1 {
			kind = KindAddressUsage
			payload = AddressUsagePayload{StopID: "stop-1", AddressID: "addr-1"}
		}
		if _, err := service.Submit(ctx, "org-1", kind, payload); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	deadline := time.After(5 * time.Second)
	for int(indexed.Load()+usages.Load()) < total {
		select {
		case <-deadline:
			t.Fatalf("tasks not processed in time: indexed=%d usages=%d", indexed.Load(), usages.Load())
		case <-time.After(25 * time.Millisecond):
		}
	}
	cancel()

	if indexed.Load() != 50 || usages.Load() != 50 {
		t.Fatalf("dispatch counts: indexed=%d usages=%d, want 50/50", indexed.Load(), usages.Load())
	}
}

func TestProcessorRetriesRetryableFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store := NewMemoryStore()
	queue := NewMemoryQueue(64)
	service := NewService(store, queue, 3)

	var attempts atomic.Int32
	processor := NewProcessor(store, queue, queue, WithWorkerCount(1))
	processor.Register(KindSearchIndex, func(context.Context, *Task) (string, error) {
		if attempts.Add(1) < 3 {
			return "", xerrors.New(xerrors.CodeExternalService, "index unavailable")
		}
		return "indexed", nil
	})

	go func() { _ = processor.Start(ctx) }()

	submitted, err := service.Submit(ctx, "org-1", KindSearchIndex, SearchIndexPayload{Entity: "load", ID: "load-1"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	final, err := service.WaitUntilCompleted(ctx, submitted.ID, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitUntilCompleted: %v", err)
	}
	if final.Status != StatusSucceeded {
		t.Fatalf("status = %s, want succeeded (last error %q)", final.Status, final.LastError)
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
}

func TestProcessorFailsTaskWithoutHandler(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store := NewMemoryStore()
	queue := NewMemoryQueue(8)
	service := NewService(store, queue, 3)
	processor := NewProcessor(store, queue, queue)

	go func() { _ = processor.Start(ctx) }()

	submitted, err := service.Submit(ctx, "org-1", Kind("unknown.kind"), nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	final, err := service.WaitUntilCompleted(ctx, submitted.ID, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitUntilCompleted: %v", err)
	}
	if final.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", final.Status)
	}
	if final.ErrorCode != string(CodeTaskNoHandler) {
		t.Fatalf("error code = %q, want %q", final.ErrorCode, CodeTaskNoHandler)
	}
}
