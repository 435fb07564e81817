package task

import (
	"context"
	"log/slog"

	"machtms/internal/tms"
	"machtms/pkg/logger"
)

// Notifier turns domain change events into queued background tasks.
// Enqueue failures are logged, never surfaced: a mutation must not
// fail because the index or usage bookkeeping lagged.
type Notifier struct {
	tasks *Service
	log   *slog.Logger
}

// NewNotifier builds a Notifier on top of the task service.
func NewNotifier(tasks *Service) *Notifier {
	return &Notifier{tasks: tasks, log: logger.Named("task.notifier")}
}

// LoadChanged schedules a search index upsert for the load.
func (n *Notifier) LoadChanged(ctx context.Context, orgID, loadID string) {
	n.submit(ctx, orgID, KindSearchIndex, SearchIndexPayload{Entity: "load", ID: loadID})
}

// LoadDeleted schedules a search index delete for the load.
func (n *Notifier) LoadDeleted(ctx context.Context, orgID, loadID string) {
	n.submit(ctx, orgID, KindSearchDelete, SearchIndexPayload{Entity: "load", ID: loadID})
}

// DirectoryChanged schedules a search index upsert for a directory entity.
func (n *Notifier) DirectoryChanged(ctx context.Context, orgID, kind, id string) {
	n.submit(ctx, orgID, KindSearchIndex, SearchIndexPayload{Entity: kind, ID: id})
}

// DirectoryDeleted schedules a search index delete for a directory entity.
func (n *Notifier) DirectoryDeleted(ctx context.Context, orgID, kind, id string) {
	n.submit(ctx, orgID, KindSearchDelete, SearchIndexPayload{Entity: kind, ID: id})
}

// AddressUsed schedules usage bookkeeping for a stop's address.
func (n *Notifier) AddressUsed(ctx context.Context, orgID, stopID, addressID string) {
	n.submit(ctx, orgID, KindAddressUsage, AddressUsagePayload{StopID: stopID, AddressID: addressID})
}

func (n *Notifier) submit(ctx context.Context, orgID string, kind Kind, payload any) {
	if n == nil || n.tasks == nil {
		return
	}
	if _, err := n.tasks.Submit(ctx, orgID, kind, payload); err != nil {
		n.log.Error("failed to enqueue background task",
			slog.Any("error", err),
			slog.String("kind", string(kind)),
			slog.String("org_id", orgID),
		)
	}
}

var _ tms.Notifier = (*Notifier)(nil)
