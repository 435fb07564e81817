package task

import (
	"context"
	"errors"
	"testing"
)

func newStoredTask(t *testing.T, store *MemoryStore, id, orgID string, kind Kind) *Task {
	t.Helper()
	task := &Task{ID: id, OrgID: orgID, Kind: kind, Status: StatusPending, MaxRetries: 3}
	if err := store.Create(context.Background(), task); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return task
}

func TestMemoryStoreClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	newStoredTask(t, store, "t1", "org-1", KindSearchIndex)

	claimed, err := store.Claim(ctx, "t1")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claimed.Status != StatusRunning || claimed.Attempts != 1 {
		t.Fatalf("claimed = %+v", claimed)
	}

	if _, err := store.Claim(ctx, "t1"); !errors.Is(err, ErrTaskConflict) {
		t.Fatalf("second claim error = %v, want conflict", err)
	}

	if err := store.MarkSucceeded(ctx, "t1", "done"); err != nil {
		t.Fatalf("MarkSucceeded: %v", err)
	}
	if _, err := store.Claim(ctx, "t1"); !errors.Is(err, ErrTaskCompleted) {
		t.Fatalf("claim after success error = %v, want completed", err)
	}
}

func TestMemoryStoreClaimExhaustsRetries(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	task := &Task{ID: "t1", Kind: KindSearchIndex, Status: StatusPending, MaxRetries: 2}
	if err := store.Create(ctx, task); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := store.Claim(ctx, "t1"); err != nil {
			t.Fatalf("Claim %d: %v", i+1, err)
		}
		if err := store.MarkFailed(ctx, "t1", CodeTaskProcessing, "boom", false); err != nil {
			t.Fatalf("MarkFailed: %v", err)
		}
	}

	if _, err := store.Claim(ctx, "t1"); !errors.Is(err, ErrTaskExhausted) {
		t.Fatalf("claim error = %v, want exhausted", err)
	}
}

func TestMemoryStoreListFilters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	newStoredTask(t, store, "a", "org-1", KindSearchIndex)
	newStoredTask(t, store, "b", "org-1", KindAddressUsage)
	newStoredTask(t, store, "c", "org-2", KindSearchIndex)

	byOrg, err := store.List(ctx, ListOptions{OrgID: "org-1", Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(byOrg) != 2 {
		t.Fatalf("org filter returned %d tasks, want 2", len(byOrg))
	}

	byKind, err := store.List(ctx, ListOptions{Kinds: []Kind{KindAddressUsage}, Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(byKind) != 1 || byKind[0].ID != "b" {
		t.Fatalf("kind filter returned %+v", byKind)
	}
}

func TestMemoryStoreStats(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	newStoredTask(t, store, "a", "org-1", KindSearchIndex)
	newStoredTask(t, store, "b", "org-1", KindSearchIndex)

	if _, err := store.Claim(ctx, "a"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := store.MarkSucceeded(ctx, "a", "done"); err != nil {
		t.Fatalf("MarkSucceeded: %v", err)
	}

	stats, err := store.Stats(ctx, ListOptions{OrgID: "org-1"})
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 2 || stats.Succeeded != 1 || stats.Pending != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}
