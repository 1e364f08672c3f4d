package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Dweliw01/DocuFlow-sub000/internal/score"
	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

// Sentinel errors for the review package.
var (
	// ErrInvalidState is returned when an operation is not legal for the
	// document's current status.
	ErrInvalidState = errors.New("invalid document state")

	// ErrBadLineItems is returned when a line items correction does not
	// carry a valid JSON array of rows.
	ErrBadLineItems = errors.New("invalid line items payload")
)

// Store is the persistence surface the review service needs.
// *store.Repo satisfies it.
type Store interface {
	GetDocument(ctx context.Context, tenantID, docID string) (*types.Document, error)
	UpdateDocument(ctx context.Context, docID string, input map[string]any) error
	FieldsForDocument(ctx context.Context, tenantID, docID string) ([]types.ExtractedField, error)
	AppendCorrection(ctx context.Context, c types.Correction) (string, error)
	CorrectionsForDocument(ctx context.Context, tenantID, docID string) ([]types.Correction, error)
	LineItemsForDocument(ctx context.Context, tenantID, docID string) ([]types.LineItem, error)
	ReplaceLineItems(ctx context.Context, tenantID, docID string, items []types.LineItem) error
}

// Uploader pushes one approved document to the destination. Exactly one
// attempt per approval; retries are a human re-approval.
type Uploader interface {
	Upload(ctx context.Context, doc *types.Document, values map[string]string, lineItems []types.LineItem) (remoteID string, err error)
}

// Service owns the review-side mutations: submit correction and
// approve/re-approve. Mutations to one document serialize on a
// per-document lock; different documents proceed concurrently.
type Service struct {
	store    Store
	uploader Uploader
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates the review service.
func NewService(st Store, uploader Uploader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    st,
		uploader: uploader,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (s *Service) docLock(docID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[docID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[docID] = lock
	}
	return lock
}

// CorrectionRequest is one reviewer edit to one field.
type CorrectionRequest struct {
	TenantID   string
	DocumentID string
	FieldName  string
	Value      string
	Method     types.CorrectionMethod
	Author     string
}

// CorrectionResult reports the ledger outcome of a submission.
type CorrectionResult struct {
	Applied           bool // false when the resubmission matched the current value
	OverallConfidence float64
}

// SubmitCorrection appends one entry to the correction ledger and
// recomputes overall confidence. Resubmitting the current value is a
// no-op so retried requests never duplicate active entries. Receipt
// time is stamped by the store, never taken from the client.
func (s *Service) SubmitCorrection(ctx context.Context, req CorrectionRequest) (*CorrectionResult, error) {
	lock := s.docLock(req.DocumentID)
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.store.GetDocument(ctx, req.TenantID, req.DocumentID)
	if err != nil {
		return nil, err
	}
	switch doc.Status {
	case types.StatusPendingReview, types.StatusFailed:
	default:
		return nil, fmt.Errorf("%w: cannot correct document in status %s", ErrInvalidState, doc.Status)
	}

	if req.FieldName == types.ReservedLineItemsField {
		return s.submitLineItems(ctx, doc, req)
	}

	fields, err := s.store.FieldsForDocument(ctx, req.TenantID, req.DocumentID)
	if err != nil {
		return nil, err
	}
	corrections, err := s.store.CorrectionsForDocument(ctx, req.TenantID, req.DocumentID)
	if err != nil {
		return nil, err
	}

	// Idempotence: identical resubmission leaves the ledger unchanged.
	current := CurrentValues(fields, corrections)
	if existing, ok := current[req.FieldName]; ok && existing == req.Value {
		if _, hasEntry := CurrentValue(corrections, req.FieldName); hasEntry {
			return &CorrectionResult{Applied: false, OverallConfidence: doc.OverallConfidence}, nil
		}
	}

	original, originalConfidence := originalField(fields, req.FieldName)
	entry := types.Correction{
		DocumentID:         req.DocumentID,
		TenantID:           req.TenantID,
		FieldName:          req.FieldName,
		OriginalValue:      original,
		CorrectedValue:     req.Value,
		OriginalConfidence: originalConfidence,
		Method:             req.Method,
		Author:             req.Author,
		ReceivedAt:         time.Now().UTC(),
	}
	if _, err := s.store.AppendCorrection(ctx, entry); err != nil {
		return nil, err
	}
	corrections = append(corrections, entry)

	overall := s.rescore(ctx, doc, fields, corrections)
	return &CorrectionResult{Applied: true, OverallConfidence: overall}, nil
}

// submitLineItems records a whole-array replacement under the reserved
// field name. There is no per-cell granularity.
func (s *Service) submitLineItems(ctx context.Context, doc *types.Document, req CorrectionRequest) (*CorrectionResult, error) {
	var rows []map[string]string
	if err := json.Unmarshal([]byte(req.Value), &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadLineItems, err)
	}

	existing, err := s.store.LineItemsForDocument(ctx, req.TenantID, req.DocumentID)
	if err != nil {
		return nil, err
	}
	originalJSON, _ := json.Marshal(lineItemRows(existing))

	items := make([]types.LineItem, 0, len(rows))
	for i, cols := range rows {
		items = append(items, types.LineItem{
			DocumentID: req.DocumentID,
			Position:   i,
			Columns:    cols,
		})
	}
	if err := s.store.ReplaceLineItems(ctx, req.TenantID, req.DocumentID, items); err != nil {
		return nil, err
	}

	entry := types.Correction{
		DocumentID:     req.DocumentID,
		TenantID:       req.TenantID,
		FieldName:      types.ReservedLineItemsField,
		OriginalValue:  string(originalJSON),
		CorrectedValue: req.Value,
		Method:         req.Method,
		Author:         req.Author,
		ReceivedAt:     time.Now().UTC(),
	}
	if _, err := s.store.AppendCorrection(ctx, entry); err != nil {
		return nil, err
	}

	// Line items are excluded from scoring, so confidence is unchanged.
	return &CorrectionResult{Applied: true, OverallConfidence: doc.OverallConfidence}, nil
}

// rescore recomputes and persists overall confidence after a ledger
// change. Corrected fields count as human-verified.
func (s *Service) rescore(ctx context.Context, doc *types.Document, fields []types.ExtractedField, corrections []types.Correction) float64 {
	overall := score.Overall(fields, CorrectedFields(corrections))
	if err := s.store.UpdateDocument(ctx, doc.ID, map[string]any{
		"overall_confidence": overall,
	}); err != nil {
		s.logger.Error("failed to persist rescored confidence",
			"document", doc.ID,
			"error", err)
	}
	return overall
}

// Approve moves a document to approved and makes exactly one upload
// attempt. Success completes the document; any failure records the
// reason and lands in failed, where a human may correct and re-approve.
// Re-approval re-attempts the upload without re-running extraction.
func (s *Service) Approve(ctx context.Context, tenantID, docID string) (*types.Document, error) {
	lock := s.docLock(docID)
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.store.GetDocument(ctx, tenantID, docID)
	if err != nil {
		return nil, err
	}
	switch doc.Status {
	case types.StatusPendingReview, types.StatusApproved, types.StatusFailed:
	default:
		return nil, fmt.Errorf("%w: cannot approve document in status %s", ErrInvalidState, doc.Status)
	}

	if err := s.store.UpdateDocument(ctx, docID, map[string]any{
		"status":         string(types.StatusApproved),
		"failure_reason": "",
	}); err != nil {
		return nil, err
	}
	doc.Status = types.StatusApproved

	fields, err := s.store.FieldsForDocument(ctx, tenantID, docID)
	if err != nil {
		return nil, err
	}
	corrections, err := s.store.CorrectionsForDocument(ctx, tenantID, docID)
	if err != nil {
		return nil, err
	}
	lineItems, err := s.store.LineItemsForDocument(ctx, tenantID, docID)
	if err != nil {
		return nil, err
	}

	values := CurrentValues(fields, corrections)
	remoteID, uploadErr := s.uploader.Upload(ctx, doc, values, lineItems)
	if uploadErr != nil {
		s.logger.Warn("upload failed",
			"document", docID,
			"error", uploadErr)
		if err := s.store.UpdateDocument(ctx, docID, map[string]any{
			"status":         string(types.StatusFailed),
			"failure_reason": uploadErr.Error(),
		}); err != nil {
			return nil, err
		}
		doc.Status = types.StatusFailed
		doc.FailureReason = uploadErr.Error()
		return doc, nil
	}

	now := time.Now().UTC()
	if err := s.store.UpdateDocument(ctx, docID, map[string]any{
		"status":       string(types.StatusCompleted),
		"remote_id":    remoteID,
		"completed_at": now.Format(time.RFC3339Nano),
	}); err != nil {
		return nil, err
	}
	doc.Status = types.StatusCompleted
	doc.RemoteID = remoteID
	doc.CompletedAt = &now
	return doc, nil
}

func originalField(fields []types.ExtractedField, name string) (string, float64) {
	for _, f := range fields {
		if f.Name == name {
			return f.Value, f.Confidence
		}
	}
	return "", 0
}

func lineItemRows(items []types.LineItem) []map[string]string {
	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, item.Columns)
	}
	return rows
}
