package task

import (
	"encoding/json"

	xerrors "machtms/internal/errors"
)

// Status tracks a task through its lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// IsValidStatus reports whether the status is a supported value.
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}

// Kind identifies the handler a task is dispatched to.
type Kind string

const (
	// KindDocumentMerge merges an upload session's documents into
	// category PDFs and stores them on the load.
	KindDocumentMerge Kind = "document.merge"
	// KindInvoiceEmail renders and sends the invoice email for a load.
	KindInvoiceEmail Kind = "billing.invoice_email"
	// KindSearchIndex upserts an entity into the search index.
	KindSearchIndex Kind = "search.index"
	// KindSearchDelete removes an entity from the search index.
	KindSearchDelete Kind = "search.delete"
	// KindAddressUsage records address usage rows for a stop.
	KindAddressUsage Kind = "address.usage"
)

// Task is one unit of queued background work. Payload is an opaque
// JSON document interpreted by the handler registered for the kind.
type Task struct {
	ID         string          `json:"id"`
	OrgID      string          `json:"organization_id"`
	Kind       Kind            `json:"kind"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Status     Status          `json:"status"`
	Attempts   int             `json:"attempts"`
	MaxRetries int             `json:"max_retries"`
	LastError  string          `json:"last_error,omitempty"`
	ErrorCode  string          `json:"error_code,omitempty"`
	Result     string          `json:"result,omitempty"`
	CreatedAt  int64           `json:"created_at"`
	UpdatedAt  int64           `json:"updated_at"`
}

// DecodePayload unmarshals the task payload into out.
func (t *Task) DecodePayload(out any) error {
	if len(t.Payload) == 0 {
		return xerrors.New(CodeTaskValidation, "task payload is empty")
	}
	if err := json.Unmarshal(t.Payload, out); err != nil {
		return xerrors.Wrap(CodeTaskValidation, err, "decode task payload")
	}
	return nil
}

var (
	// ErrTaskNotFound means the task does not exist.
	ErrTaskNotFound = xerrors.New(CodeTaskNotFound, "task not found")
	// ErrTaskConflict means the task cannot take the requested action
	// in its current state.
	ErrTaskConflict = xerrors.New(CodeTaskConflict, "task conflict", xerrors.WithSeverity(xerrors.SeverityWarning))
	// ErrTaskCompleted means the task already finished successfully.
	ErrTaskCompleted = xerrors.New(CodeTaskCompleted, "task already completed", xerrors.WithSeverity(xerrors.SeverityInfo))
	// ErrTaskExhausted means the task ran out of retries.
	ErrTaskExhausted = xerrors.New(CodeTaskExhausted, "task retries exhausted", xerrors.WithSeverity(xerrors.SeverityCritical))
)

const (
	CodeTaskNotFound   xerrors.Code = "TASK_NOT_FOUND"
	CodeTaskConflict   xerrors.Code = "TASK_CONFLICT"
	CodeTaskCompleted  xerrors.Code = "TASK_COMPLETED"
	CodeTaskExhausted  xerrors.Code = "TASK_RETRIES_EXHAUSTED"
	CodeTaskValidation xerrors.Code = "TASK_VALIDATION_FAILED"
	CodeTaskPublish    xerrors.Code = "TASK_PUBLISH_FAILED"
	CodeTaskProcessing xerrors.Code = "TASK_PROCESSING_FAILED"
	CodeTaskCompensate xerrors.Code = "TASK_COMPENSATION_FAILED"
	CodeTaskNoHandler  xerrors.Code = "TASK_NO_HANDLER"
)

func init() {
	xerrors.Register(CodeTaskNotFound, xerrors.Attributes{
		Message: "task not found", Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeTaskConflict, xerrors.Attributes{
		Message: "task conflict", Severity: xerrors.SeverityWarning,
	})
	xerrors.Register(CodeTaskCompleted, xerrors.Attributes{
		Message: "task already completed", Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeTaskExhausted, xerrors.Attributes{
		Message: "task retries exhausted", Severity: xerrors.SeverityCritical, Alert: true,
	})
	xerrors.Register(CodeTaskValidation, xerrors.Attributes{
		Message: "task validation failed", Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeTaskPublish, xerrors.Attributes{
		Message: "failed to publish task", Severity: xerrors.SeverityCritical, Retryable: true, Alert: true,
	})
	xerrors.Register(CodeTaskProcessing, xerrors.Attributes{
		Message: "task execution failed", Severity: xerrors.SeverityWarning, Retryable: true, Alert: true,
	})
	xerrors.Register(CodeTaskCompensate, xerrors.Attributes{
		Message: "task compensation failed", Severity: xerrors.SeverityCritical, Alert: true,
	})
	xerrors.Register(CodeTaskNoHandler, xerrors.Attributes{
		Message: "no handler registered for task kind", Severity: xerrors.SeverityCritical, Alert: true,
	})
}
