// Package types defines the core domain model shared across the pipeline.
package types

import "time"

// DocumentStatus is the lifecycle state of a document.
// Transitions are monotonic; a document never moves backward except by
// starting a new processing cycle.
type DocumentStatus string

const (
	// StatusUploaded is the initial state after intake, before scoring.
	StatusUploaded DocumentStatus = "uploaded"

	// StatusProcessing marks a document currently running through the
	// pipeline stages.
	StatusProcessing DocumentStatus = "processing"

	// StatusPendingReview means a human must approve before upload.
	StatusPendingReview DocumentStatus = "pending_review"

	// StatusApproved means the document cleared review (human or
	// automatic) and is eligible for upload.
	StatusApproved DocumentStatus = "approved"

	// StatusCompleted means the destination accepted the upload.
	StatusCompleted DocumentStatus = "completed"

	// StatusFailed means the upload attempt failed. A human must
	// re-approve to retry; the pipeline never retries on its own.
	StatusFailed DocumentStatus = "failed"

	// StatusExtractionFailed is terminal: every engine in the fallback
	// chain produced output below the validity floor. The raw file stays
	// available for manual re-submission.
	StatusExtractionFailed DocumentStatus = "extraction_failed"
)

// Valid reports whether s is a known lifecycle state.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusPendingReview, StatusApproved,
		StatusCompleted, StatusFailed, StatusExtractionFailed:
		return true
	}
	return false
}

// Terminal reports whether no further automatic transition can occur.
func (s DocumentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusExtractionFailed
}

// ReservedLineItemsField is the field name under which whole-array
// line item replacements are recorded in the correction ledger.
const ReservedLineItemsField = "line_items"

// Document is the unit of work flowing through the pipeline.
// Owned by exactly one tenant; mutated by the pipeline and by reviewers,
// never deleted by the pipeline itself.
type Document struct {
	ID                string         `json:"_docID,omitempty"`
	TenantID          string         `json:"tenant_id"`
	BatchID           string         `json:"batch_id,omitempty"`
	FileName          string         `json:"file_name"`
	SourcePath        string         `json:"source_path"`
	ContentType       string         `json:"content_type,omitempty"`
	PageCount         int            `json:"page_count"`
	Status            DocumentStatus `json:"status"`
	FailureReason     string         `json:"failure_reason,omitempty"`
	DocType           string         `json:"doc_type,omitempty"`
	OverallConfidence float64        `json:"overall_confidence"`
	Engine            string         `json:"engine,omitempty"`
	AICorrected       bool           `json:"ai_corrected"`
	AuditSampled      bool           `json:"audit_sampled"`
	RemoteID          string         `json:"remote_id,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
}

// PipelineEvent is one recorded status transition. Events are written
// asynchronously and best-effort; the document row stays authoritative.
type PipelineEvent struct {
	ID         string         `json:"_docID,omitempty"`
	DocumentID string         `json:"document_id"`
	TenantID   string         `json:"tenant_id"`
	Status     DocumentStatus `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ExtractedField is one semantic field produced by an extraction pass.
// Immutable once written: corrections live in the ledger alongside it so
// the original model output survives for audit.
type ExtractedField struct {
	ID         string  `json:"_docID,omitempty"`
	DocumentID string  `json:"document_id"`
	Name       string  `json:"name"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// CorrectionMethod records how a reviewer produced a corrected value.
type CorrectionMethod string

const (
	CorrectionManual          CorrectionMethod = "manual"
	CorrectionHighlightedCopy CorrectionMethod = "highlighted-copy"
)

// Correction is one append-only ledger entry. The current value for a
// field is the most recent entry by server receipt time; history is never
// rewritten.
type Correction struct {
	ID                 string           `json:"_docID,omitempty"`
	DocumentID         string           `json:"document_id"`
	TenantID           string           `json:"tenant_id"`
	FieldName          string           `json:"field_name"`
	OriginalValue      string           `json:"original_value"`
	CorrectedValue     string           `json:"corrected_value"`
	OriginalConfidence float64          `json:"original_confidence"`
	Method             CorrectionMethod `json:"method"`
	Author             string           `json:"author"`
	ReceivedAt         time.Time        `json:"received_at"`
}

// LineItem is one row of a repeating table on the document. Rows are
// edited as a whole-array replacement recorded under
// ReservedLineItemsField; there is no per-cell correction granularity.
type LineItem struct {
	DocumentID string            `json:"document_id"`
	Position   int               `json:"position"`
	Columns    map[string]string `json:"columns"`
}
