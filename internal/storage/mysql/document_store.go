package mysql

import (
	"context"
	"database/sql"
	stdErrors "errors"

	"machtms/internal/documents"
)

// DocumentStore persists the document pipeline tables.
type DocumentStore struct {
	db *sql.DB
}

// NewDocumentStore wraps an existing database handle.
func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

const sessionColumns = `id, org_id, load_id, status, detail, merged_key, expires_at, created_at, updated_at`

func scanSession(scan func(...any) error) (*documents.SessionUploadLog, error) {
	var session documents.SessionUploadLog
	var detail sql.NullString
	var expiresAt sql.NullTime
	if err := scan(
		&session.ID, &session.OrgID, &session.LoadID, &session.Status,
		&detail, &session.MergedKey, &expiresAt,
		&session.CreatedAt, &session.UpdatedAt,
	); err != nil {
		return nil, err
	}
	session.Detail = detail.String
	if expiresAt.Valid {
		session.ExpiresAt = expiresAt.Time
	}
	return &session, nil
}

// CreateSession inserts an upload session row.
func (s *DocumentStore) CreateSession(ctx context.Context, session *documents.SessionUploadLog) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_upload_logs (`+sessionColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.OrgID, session.LoadID, session.Status,
		session.Detail, session.MergedKey, session.ExpiresAt,
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return storageErr(err, "insert upload session")
	}
	return nil
}

// GetSession returns the session row.
func (s *DocumentStore) GetSession(ctx context.Context, orgID, id string) (*documents.SessionUploadLog, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM session_upload_logs WHERE org_id = ? AND id = ?`, orgID, id)
	session, err := scanSession(row.Scan)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, notFound("upload session", id)
		}
		return nil, storageErr(err, "query upload session")
	}
	return session, nil
}

// UpdateSession rewrites the mutable session fields.
func (s *DocumentStore) UpdateSession(ctx context.Context, session *documents.SessionUploadLog) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE session_upload_logs SET status = ?, detail = ?, merged_key = ?, updated_at = ?
        WHERE org_id = ? AND id = ?`,
		session.Status, session.Detail, session.MergedKey, session.UpdatedAt,
		session.OrgID, session.ID,
	)
	if err != nil {
		return storageErr(err, "update upload session")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return notFound("upload session", session.ID)
	}
	return nil
}

const uploadLogColumns = `id, org_id, session_id, object_key, file_name, content_type, category, status, detail, created_at, updated_at`

func scanUploadLog(scan func(...any) error) (*documents.UploadLog, error) {
	var log documents.UploadLog
	var detail sql.NullString
	if err := scan(
		&log.ID, &log.OrgID, &log.SessionID, &log.ObjectKey, &log.FileName,
		&log.ContentType, &log.Category, &log.Status, &detail,
		&log.CreatedAt, &log.UpdatedAt,
	); err != nil {
		return nil, err
	}
	log.Detail = detail.String
	return &log, nil
}

// CreateUploadLog inserts a per-file upload row.
func (s *DocumentStore) CreateUploadLog(ctx context.Context, log *documents.UploadLog) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO upload_logs (`+uploadLogColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.OrgID, log.SessionID, log.ObjectKey, log.FileName,
		log.ContentType, log.Category, log.Status, log.Detail,
		log.CreatedAt, log.UpdatedAt,
	)
	if err != nil {
		return storageErr(err, "insert upload log")
	}
	return nil
}

// UpdateUploadLog rewrites the mutable upload log fields.
func (s *DocumentStore) UpdateUploadLog(ctx context.Context, log *documents.UploadLog) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE upload_logs SET status = ?, detail = ?, updated_at = ?
        WHERE org_id = ? AND id = ?`,
		log.Status, log.Detail, log.UpdatedAt, log.OrgID, log.ID,
	)
	if err != nil {
		return storageErr(err, "update upload log")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return notFound("upload log", log.ID)
	}
	return nil
}

// ListUploadLogs returns a session's upload rows, oldest first.
func (s *DocumentStore) ListUploadLogs(ctx context.Context, orgID, sessionID string) ([]*documents.UploadLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+uploadLogColumns+` FROM upload_logs
        WHERE org_id = ? AND session_id = ? ORDER BY created_at ASC`,
		orgID, sessionID,
	)
	if err != nil {
		return nil, storageErr(err, "query upload logs")
	}
	defer rows.Close()

	var logs []*documents.UploadLog
	for rows.Next() {
		log, err := scanUploadLog(rows.Scan)
		if err != nil {
			return nil, storageErr(err, "scan upload log row")
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// CreateDirectUpload inserts a direct upload row.
func (s *DocumentStore) CreateDirectUpload(ctx context.Context, upload *documents.DirectUpload) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO direct_uploads (id, org_id, load_id, object_key, file_name, category, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		upload.ID, upload.OrgID, upload.LoadID, upload.ObjectKey,
		upload.FileName, upload.Category, upload.CreatedAt,
	)
	if err != nil {
		return storageErr(err, "insert direct upload")
	}
	return nil
}

// ListDirectUploads returns a load's direct uploads, oldest first.
func (s *DocumentStore) ListDirectUploads(ctx context.Context, orgID, loadID string) ([]*documents.DirectUpload, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, org_id, load_id, object_key, file_name, category, created_at
        FROM direct_uploads WHERE org_id = ? AND load_id = ? ORDER BY created_at ASC`,
		orgID, loadID,
	)
	if err != nil {
		return nil, storageErr(err, "query direct uploads")
	}
	defer rows.Close()

	var uploads []*documents.DirectUpload
	for rows.Next() {
		var upload documents.DirectUpload
		if err := rows.Scan(
			&upload.ID, &upload.OrgID, &upload.LoadID, &upload.ObjectKey,
			&upload.FileName, &upload.Category, &upload.CreatedAt,
		); err != nil {
			return nil, storageErr(err, "scan direct upload row")
		}
		uploads = append(uploads, &upload)
	}
	return uploads, rows.Err()
}

// CreatePostShipmentDocument inserts a finished document row.
func (s *DocumentStore) CreatePostShipmentDocument(ctx context.Context, doc *documents.PostShipmentDocument) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO post_shipment_documents (id, org_id, load_id, category, object_key, file_name, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.OrgID, doc.LoadID, doc.Category,
		doc.ObjectKey, doc.FileName, doc.CreatedAt,
	)
	if err != nil {
		return storageErr(err, "insert post shipment document")
	}
	return nil
}

// ListPostShipmentDocuments returns a load's finished documents,
// oldest first.
func (s *DocumentStore) ListPostShipmentDocuments(ctx context.Context, orgID, loadID string) ([]*documents.PostShipmentDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, org_id, load_id, category, object_key, file_name, created_at
        FROM post_shipment_documents WHERE org_id = ? AND load_id = ? ORDER BY created_at ASC`,
		orgID, loadID,
	)
	if err != nil {
		return nil, storageErr(err, "query post shipment documents")
	}
	defer rows.Close()

	var docs []*documents.PostShipmentDocument
	for rows.Next() {
		var doc documents.PostShipmentDocument
		if err := rows.Scan(
			&doc.ID, &doc.OrgID, &doc.LoadID, &doc.Category,
			&doc.ObjectKey, &doc.FileName, &doc.CreatedAt,
		); err != nil {
			return nil, storageErr(err, "scan post shipment document row")
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// Close is a no-op; the shared database handle is owned by the daemon.
func (s *DocumentStore) Close() error { return nil }

var _ documents.Store = (*DocumentStore)(nil)
