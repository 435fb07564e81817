package documents

import (
	"context"
	"sort"
	"sync"

	apperrors "machtms/internal/errors"
)

// MemoryStore is the in-memory Store used by tests and the default
// dev config.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]SessionUploadLog
	logs     map[string]UploadLog
	directs  map[string]DirectUpload
	docs     map[string]PostShipmentDocument
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]SessionUploadLog),
		logs:     make(map[string]UploadLog),
		directs:  make(map[string]DirectUpload),
		docs:     make(map[string]PostShipmentDocument),
	}
}

func (m *MemoryStore) CreateSession(_ context.Context, session *SessionUploadLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = *session
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, orgID, id string) (*SessionUploadLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok || session.OrgID != orgID {
		return nil, apperrors.New(apperrors.CodeNotFound, "upload session "+id+" not found")
	}
	out := session
	return &out, nil
}

func (m *MemoryStore) UpdateSession(_ context.Context, session *SessionUploadLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.sessions[session.ID]
	if !ok || existing.OrgID != session.OrgID {
		return apperrors.New(apperrors.CodeNotFound, "upload session "+session.ID+" not found")
	}
	m.sessions[session.ID] = *session
	return nil
}

func (m *MemoryStore) CreateUploadLog(_ context.Context, log *UploadLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[log.ID] = *log
	return nil
}

func (m *MemoryStore) UpdateUploadLog(_ context.Context, log *UploadLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.logs[log.ID]
	if !ok || existing.OrgID != log.OrgID {
		return apperrors.New(apperrors.CodeNotFound, "upload log "+log.ID+" not found")
	}
	m.logs[log.ID] = *log
	return nil
}

func (m *MemoryStore) ListUploadLogs(_ context.Context, orgID, sessionID string) ([]*UploadLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*UploadLog
	for _, log := range m.logs {
		if log.OrgID == orgID && log.SessionID == sessionID {
			copied := log
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) CreateDirectUpload(_ context.Context, upload *DirectUpload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.directs[upload.ID] = *upload
	return nil
}

func (m *MemoryStore) ListDirectUploads(_ context.Context, orgID, loadID string) ([]*DirectUpload, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*DirectUpload
	for _, upload := range m.directs {
		if upload.OrgID == orgID && upload.LoadID == loadID {
			copied := upload
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) CreatePostShipmentDocument(_ context.Context, doc *PostShipmentDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = *doc
	return nil
}

func (m *MemoryStore) ListPostShipmentDocuments(_ context.Context, orgID, loadID string) ([]*PostShipmentDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*PostShipmentDocument
	for _, doc := range m.docs {
		if doc.OrgID == orgID && doc.LoadID == loadID {
			copied := doc
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
