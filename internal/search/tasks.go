package search

import (
	"context"

	"machtms/internal/task"
)

// HandleIndexTask is the search.index task handler.
func (s *Service) HandleIndexTask(ctx context.Context, t *task.Task) (string, error) {
	var payload task.SearchIndexPayload
	if err := t.DecodePayload(&payload); err != nil {
		return "", err
	}
	if err := s.IndexEntity(ctx, t.OrgID, payload.Entity, payload.ID); err != nil {
		return "", err
	}
	return "indexed " + payload.Entity + " " + payload.ID, nil
}

// HandleDeleteTask is the search.delete task handler.
func (s *Service) HandleDeleteTask(ctx context.Context, t *task.Task) (string, error) {
	var payload task.SearchIndexPayload
	if err := t.DecodePayload(&payload); err != nil {
		return "", err
	}
	if err := s.DeleteEntity(ctx, t.OrgID, payload.Entity, payload.ID); err != nil {
		return "", err
	}
	return "removed " + payload.Entity + " " + payload.ID, nil
}
