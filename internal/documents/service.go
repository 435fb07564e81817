package documents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "machtms/internal/errors"
	"machtms/internal/task"
	"machtms/internal/tms"
	"machtms/pkg/logger"
)

// sessionTTL is how long an open session accepts uploads before it
// must be finalized.
const sessionTTL = 5 * time.Minute

// LoadReader is the slice of the domain service the pipeline needs.
type LoadReader interface {
	GetLoad(ctx context.Context, orgID, id string) (*tms.LoadDetail, error)
}

// TaskSubmitter enqueues background work.
type TaskSubmitter interface {
	Submit(ctx context.Context, orgID string, kind task.Kind, payload any) (*task.Task, error)
}

// Config names the buckets the pipeline uses.
type Config struct {
	UploadBucket       string
	PostShipmentBucket string
}

// Service runs the upload session flow and the merge task.
type Service struct {
	store   Store
	objects ObjectStore
	loads   LoadReader
	tasks   TaskSubmitter
	cfg     Config
	log     *slog.Logger
	now     func() time.Time
	newID   func() string
}

// NewService wires the pipeline. tasks may be nil in tests that call
// the merge directly.
func NewService(store Store, objects ObjectStore, loads LoadReader, tasks TaskSubmitter, cfg Config) *Service {
	return &Service{
		store:   store,
		objects: objects,
		loads:   loads,
		tasks:   tasks,
		cfg:     cfg,
		log:     logger.Named("documents"),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// OpenSession starts an upload session for a load.
func (s *Service) OpenSession(ctx context.Context, orgID, loadID string) (*SessionUploadLog, error) {
	if _, err := s.loads.GetLoad(ctx, orgID, loadID); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	session := &SessionUploadLog{
		ID:        s.newID(),
		OrgID:     orgID,
		LoadID:    loadID,
		Status:    StatusIdle,
		ExpiresAt: now.Add(sessionTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// RegisterUpload records a file the client has put into the upload
// bucket under the given object key.
func (s *Service) RegisterUpload(ctx context.Context, orgID, sessionID, objectKey, fileName, contentType string, category Category) (*UploadLog, error) {
	if objectKey == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "object key is required")
	}
	if !category.Valid() {
		return nil, apperrors.New(apperrors.CodeValidation,
			"unknown document category "+string(category))
	}
	session, err := s.store.GetSession(ctx, orgID, sessionID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if session.Expired(now) {
		return nil, apperrors.New(apperrors.CodeConflict, "upload session has expired")
	}
	if session.Status != StatusIdle {
		return nil, apperrors.New(apperrors.CodeConflict, "upload session is already finalized")
	}

	log := &UploadLog{
		ID:          s.newID(),
		OrgID:       orgID,
		SessionID:   session.ID,
		ObjectKey:   objectKey,
		FileName:    fileName,
		ContentType: contentType,
		Category:    category,
		Status:      StatusIdle,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateUploadLog(ctx, log); err != nil {
		return nil, err
	}
	return log, nil
}

// RegisterDirectUpload attaches an already-uploaded object straight to
// a load, bypassing the session flow.
func (s *Service) RegisterDirectUpload(ctx context.Context, orgID, loadID, objectKey, fileName string, category Category) (*DirectUpload, error) {
	if objectKey == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "object key is required")
	}
	if !category.Valid() {
		return nil, apperrors.New(apperrors.CodeValidation,
			"unknown document category "+string(category))
	}
	if _, err := s.loads.GetLoad(ctx, orgID, loadID); err != nil {
		return nil, err
	}
	upload := &DirectUpload{
		ID:        s.newID(),
		OrgID:     orgID,
		LoadID:    loadID,
		ObjectKey: objectKey,
		FileName:  fileName,
		Category:  category,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateDirectUpload(ctx, upload); err != nil {
		return nil, err
	}
	return upload, nil
}

// FinalizeSession closes the session and enqueues the merge.
func (s *Service) FinalizeSession(ctx context.Context, orgID, sessionID string) (*task.Task, error) {
	session, err := s.store.GetSession(ctx, orgID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != StatusIdle {
		return nil, apperrors.New(apperrors.CodeConflict, "upload session is already finalized")
	}
	logs, err := s.store.ListUploadLogs(ctx, orgID, sessionID)
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "upload session has no files")
	}

	session.Status = StatusProcessing
	session.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateSession(ctx, session); err != nil {
		return nil, err
	}
	if s.tasks == nil {
		return nil, apperrors.New(apperrors.CodeInitializationFailure,
			"document pipeline has no task queue")
	}
	return s.tasks.Submit(ctx, orgID, task.KindDocumentMerge, task.DocumentMergePayload{
		SessionID: session.ID,
		LoadID:    session.LoadID,
	})
}

// SessionStatus returns the session with its per-file logs.
func (s *Service) SessionStatus(ctx context.Context, orgID, sessionID string) (*SessionUploadLog, []*UploadLog, error) {
	session, err := s.store.GetSession(ctx, orgID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	logs, err := s.store.ListUploadLogs(ctx, orgID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return session, logs, nil
}

// ListLoadDocuments returns the finished documents for a load.
func (s *Service) ListLoadDocuments(ctx context.Context, orgID, loadID string) ([]*PostShipmentDocument, error) {
	return s.store.ListPostShipmentDocuments(ctx, orgID, loadID)
}

// HandleMergeTask is the document.merge task handler.
func (s *Service) HandleMergeTask(ctx context.Context, t *task.Task) (string, error) {
	var payload task.DocumentMergePayload
	if err := t.DecodePayload(&payload); err != nil {
		return "", err
	}
	return s.MergeSession(ctx, t.OrgID, payload.SessionID)
}

// MergeSession downloads the session's uploads, merges the POD
// category into one PDF, passes the other categories through one by
// one, uploads the results, and records PostShipmentDocument rows.
// Per-file failures mark that upload's log and continue.
func (s *Service) MergeSession(ctx context.Context, orgID, sessionID string) (string, error) {
	session, err := s.store.GetSession(ctx, orgID, sessionID)
	if err != nil {
		return "", err
	}
	load, err := s.loads.GetLoad(ctx, orgID, session.LoadID)
	if err != nil {
		return "", err
	}
	logs, err := s.store.ListUploadLogs(ctx, orgID, sessionID)
	if err != nil {
		return "", err
	}

	customerName := ""
	if load.Customer != nil {
		customerName = load.Customer.Name
	}

	// Download and normalize every upload, grouped by category.
	grouped := make(map[Category][]*pendingDocument)
	failed := 0
	for _, log := range logs {
		s.setUploadStatus(ctx, log, StatusProcessing, "")
		data, err := s.objects.Get(ctx, s.cfg.UploadBucket, log.ObjectKey)
		if err == nil {
			data, err = normalizeToPDF(data, log.ContentType)
		}
		if err != nil {
			s.setUploadStatus(ctx, log, StatusError, err.Error())
			failed++
			continue
		}
		grouped[log.Category] = append(grouped[log.Category], &pendingDocument{data: data, log: log})
	}

	stored := 0
	var mergedKey string
	for category, pending := range grouped {
		if category == CategoryProofOfDelivery {
			key, err := s.storeMerged(ctx, load, customerName, category, pending)
			if err != nil {
				for _, doc := range pending {
					s.setUploadStatus(ctx, doc.log, StatusError, err.Error())
					failed++
				}
				continue
			}
			mergedKey = key
			stored++
			continue
		}
		for _, doc := range pending {
			if _, err := s.storeMerged(ctx, load, customerName, category, []*pendingDocument{doc}); err != nil {
				s.setUploadStatus(ctx, doc.log, StatusError, err.Error())
				failed++
				continue
			}
			stored++
		}
	}

	session.MergedKey = mergedKey
	session.UpdatedAt = s.now().UTC()
	if stored == 0 {
		session.Status = StatusError
		session.Detail = "no uploads could be processed"
	} else {
		session.Status = StatusSuccess
		session.Detail = ""
	}
	if err := s.store.UpdateSession(ctx, session); err != nil {
		return "", err
	}
	if stored == 0 {
		return "", apperrors.New(apperrors.CodeExecutorFailure,
			"no uploads could be processed for session "+sessionID)
	}

	s.log.Info("upload session merged",
		"org_id", orgID,
		"session_id", sessionID,
		"load_id", session.LoadID,
		"stored", stored,
		"failed", failed,
	)
	return fmt.Sprintf("stored %d documents (%d failed)", stored, failed), nil
}

type pendingDocument struct {
	data []byte
	log  *UploadLog
}

// storeMerged merges the pending payloads, uploads the result to the
// post-shipment bucket, and records the document row. Upload logs are
// marked success on the way out.
func (s *Service) storeMerged(ctx context.Context, load *tms.LoadDetail, customerName string, category Category, pending []*pendingDocument) (string, error) {
	payloads := make([][]byte, len(pending))
	for i, doc := range pending {
		payloads[i] = doc.data
	}
	merged, err := MergePDFs(payloads)
	if err != nil {
		return "", err
	}

	filename, objectKey := ObjectKeyPair(customerName, load.InvoiceID, load.ReferenceNumber, category)
	if err := s.objects.Put(ctx, s.cfg.PostShipmentBucket, objectKey, merged, "application/pdf"); err != nil {
		return "", err
	}
	doc := &PostShipmentDocument{
		ID:        s.newID(),
		OrgID:     load.OrgID,
		LoadID:    load.ID,
		Category:  category,
		ObjectKey: objectKey,
		FileName:  filename,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreatePostShipmentDocument(ctx, doc); err != nil {
		return "", err
	}
	for _, item := range pending {
		s.setUploadStatus(ctx, item.log, StatusSuccess, "")
	}
	return objectKey, nil
}

func (s *Service) setUploadStatus(ctx context.Context, log *UploadLog, status UploadStatus, detail string) {
	log.Status = status
	log.Detail = detail
	log.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateUploadLog(ctx, log); err != nil {
		s.log.Error("failed to update upload log",
			"upload_log_id", log.ID, "error", err)
	}
}
