package task

import (
	"context"
	"testing"
)

func TestMemoryQueuePublishAfterClose(t *testing.T) {
	queue := NewMemoryQueue(4)
	if err := queue.Publish(context.Background(), "task-1"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := queue.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := queue.Publish(context.Background(), "task-2"); err == nil {
		t.Fatal("publish on a closed queue should fail")
	}
	if err := queue.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
