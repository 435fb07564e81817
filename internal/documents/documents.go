// Package documents implements the post-shipment document pipeline:
// upload sessions, S3-backed object storage, and the background merge
// that turns a session's uploads into category PDFs attached to the
// load.
package documents

import (
	"context"
	"time"
)

// Category classifies a shipment document.
type Category string

const (
	CategoryRateConfirmation        Category = "RC"
	CategoryCarrierRateConfirmation Category = "CRC"
	CategoryInvoice                 Category = "INVOICE"
	CategoryProofOfDelivery         Category = "POD"
	CategoryLumper                  Category = "LUMPER"
	CategoryReceipt                 Category = "RECEIPT"
	CategoryOther                   Category = "OTHER"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryRateConfirmation, CategoryCarrierRateConfirmation,
		CategoryInvoice, CategoryProofOfDelivery, CategoryLumper,
		CategoryReceipt, CategoryOther:
		return true
	}
	return false
}

// SessionStatus tracks an upload session, and UploadStatus each file
// within it.
type (
	SessionStatus string
	UploadStatus  string
)

const (
	StatusIdle       = "idle"
	StatusProcessing = "processing"
	StatusSuccess    = "success"
	StatusError      = "error"
)

// SessionUploadLog groups the files a user uploads for one load before
// the merge runs. Sessions expire if not finalized in time.
type SessionUploadLog struct {
	ID        string        `json:"id"`
	OrgID     string        `json:"organization_id"`
	LoadID    string        `json:"load_id"`
	Status    SessionStatus `json:"status"`
	Detail    string        `json:"detail,omitempty"`
	MergedKey string        `json:"merged_key,omitempty"`
	ExpiresAt time.Time     `json:"expires_at"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Expired reports whether the session can no longer accept uploads.
func (s SessionUploadLog) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// UploadLog is one file registered within a session.
type UploadLog struct {
	ID          string       `json:"id"`
	OrgID       string       `json:"organization_id"`
	SessionID   string       `json:"session_id"`
	ObjectKey   string       `json:"object_key"`
	FileName    string       `json:"file_name"`
	ContentType string       `json:"content_type"`
	Category    Category     `json:"category"`
	Status      UploadStatus `json:"status"`
	Detail      string       `json:"detail,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// DirectUpload is a file attached straight to a load, outside any
// session.
type DirectUpload struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"organization_id"`
	LoadID    string    `json:"load_id"`
	ObjectKey string    `json:"object_key"`
	FileName  string    `json:"file_name"`
	Category  Category  `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// PostShipmentDocument is a finished PDF in the post-shipment bucket.
type PostShipmentDocument struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"organization_id"`
	LoadID    string    `json:"load_id"`
	Category  Category  `json:"category"`
	ObjectKey string    `json:"object_key"`
	FileName  string    `json:"file_name"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists the document pipeline records.
type Store interface {
	CreateSession(ctx context.Context, session *SessionUploadLog) error
	GetSession(ctx context.Context, orgID, id string) (*SessionUploadLog, error)
	UpdateSession(ctx context.Context, session *SessionUploadLog) error

	CreateUploadLog(ctx context.Context, log *UploadLog) error
	UpdateUploadLog(ctx context.Context, log *UploadLog) error
	ListUploadLogs(ctx context.Context, orgID, sessionID string) ([]*UploadLog, error)

	CreateDirectUpload(ctx context.Context, upload *DirectUpload) error
	ListDirectUploads(ctx context.Context, orgID, loadID string) ([]*DirectUpload, error)

	CreatePostShipmentDocument(ctx context.Context, doc *PostShipmentDocument) error
	ListPostShipmentDocuments(ctx context.Context, orgID, loadID string) ([]*PostShipmentDocument, error)

	Close() error
}
