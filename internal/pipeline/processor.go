// Package pipeline runs documents through the processing stages and
// fans batches out over a bounded worker pool. Within one document the
// stages are strictly sequential; across documents there is no ordering
// guarantee.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/Dweliw01/DocuFlow-sub000/internal/analyzer"
	"github.com/Dweliw01/DocuFlow-sub000/internal/extract"
	"github.com/Dweliw01/DocuFlow-sub000/internal/review"
	"github.com/Dweliw01/DocuFlow-sub000/internal/router"
	"github.com/Dweliw01/DocuFlow-sub000/internal/score"
	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

// Store is the persistence surface the processor needs. *store.Repo
// satisfies it.
type Store interface {
	GetDocument(ctx context.Context, tenantID, docID string) (*types.Document, error)
	UpdateDocument(ctx context.Context, docID string, input map[string]any) error
	SetDocumentStatus(ctx context.Context, docID string, status types.DocumentStatus, reason string) error
	GetPolicy(ctx context.Context, tenantID string) (types.RoutingPolicy, error)
	SaveExtractedFields(ctx context.Context, tenantID, docID string, fields []types.ExtractedField) error
	ReplaceLineItems(ctx context.Context, tenantID, docID string, items []types.LineItem) error
	GetBatch(ctx context.Context, tenantID, batchID string) (*types.Batch, error)
}

// Approver triggers the upload flow for auto-approved documents.
// *review.Service satisfies it.
type Approver interface {
	Approve(ctx context.Context, tenantID, docID string) (*types.Document, error)
}

// EnabledEngines reports which engine kinds are currently registered.
type EnabledEngines interface {
	Enabled() []types.EngineKind
}

// EventRecorder receives fire-and-forget status transition events.
// *store.EventLog satisfies it.
type EventRecorder interface {
	Record(tenantID, docID string, status types.DocumentStatus, reason string)
}

// Processor runs one document through the full stage sequence:
// analyze, route, OCR with fallbacks, correction, extraction, scoring,
// state transition. Every stage failure is converted into a document
// status plus reason; one bad document never aborts its siblings.
type Processor struct {
	store     Store
	runner    *router.Runner
	engines   EnabledEngines
	extractor extract.Extractor
	approver  Approver
	logger    *slog.Logger
	loadFile  func(string) ([]byte, error)

	// Events optionally records every status transition as an audit
	// trail. Nil disables event recording.
	Events EventRecorder
}

// NewProcessor wires the stage dependencies. approver may be nil to
// leave auto-approved documents in approved without uploading.
func NewProcessor(st Store, runner *router.Runner, eng EnabledEngines, ex extract.Extractor, approver Approver, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:     st,
		runner:    runner,
		engines:   eng,
		extractor: ex,
		approver:  approver,
		logger:    logger,
		loadFile:  os.ReadFile,
	}
}

// Process runs the stage sequence for one document. A nil return means
// the document reached a persisted outcome, which may be a failure
// status; a non-nil error means the store itself was unreachable.
func (p *Processor) Process(ctx context.Context, tenantID, docID string) error {
	doc, err := p.store.GetDocument(ctx, tenantID, docID)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}
	if doc.Status != types.StatusUploaded {
		p.logger.Info("skipping document not in uploaded state",
			"document", docID, "status", doc.Status)
		return nil
	}

	policy, err := p.store.GetPolicy(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to load policy: %w", err)
	}

	if err := p.store.SetDocumentStatus(ctx, docID, types.StatusProcessing, ""); err != nil {
		return err
	}
	p.record(tenantID, docID, types.StatusProcessing, "")

	image, err := p.loadFile(doc.SourcePath)
	if err != nil {
		return p.fail(ctx, tenantID, docID, types.StatusExtractionFailed,
			fmt.Sprintf("source file unreadable: %v", err))
	}

	// Stage: analyze. Deterministic, no retries.
	analysis, err := analyzer.AnalyzeBytes(image)
	if err != nil {
		return p.fail(ctx, tenantID, docID, types.StatusExtractionFailed,
			fmt.Sprintf("image analysis failed: %v", err))
	}

	// Stage: route.
	route, err := router.Decide(analysis, policy.Tier, p.engines.Enabled())
	if err != nil {
		return p.fail(ctx, tenantID, docID, types.StatusExtractionFailed,
			fmt.Sprintf("no engine available: %v", err))
	}

	// Stage: OCR with fallback chain, plus AI correction when triggered.
	outcome, err := p.runner.Run(ctx, route, policy.Tier, image)
	if err != nil {
		if errors.Is(err, router.ErrExtractionFailed) {
			return p.fail(ctx, tenantID, docID, types.StatusExtractionFailed, err.Error())
		}
		return p.fail(ctx, tenantID, docID, types.StatusExtractionFailed,
			fmt.Sprintf("ocr failed: %v", err))
	}

	// Stage: classify and extract fields.
	result, err := p.extractor.ClassifyAndExtract(ctx, outcome.Text)
	if err != nil {
		return p.fail(ctx, tenantID, docID, types.StatusExtractionFailed,
			fmt.Sprintf("field extraction failed: %v", err))
	}

	// Stage: score.
	names := make([]string, 0, len(result.Fields))
	for name := range result.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	fields := make([]types.ExtractedField, 0, len(names))
	for _, name := range names {
		fields = append(fields, types.ExtractedField{
			DocumentID: docID,
			Name:       name,
			Value:      result.Fields[name],
			Confidence: score.FieldConfidence(name, result.Fields[name]),
		})
	}
	if err := p.store.SaveExtractedFields(ctx, tenantID, docID, fields); err != nil {
		return fmt.Errorf("failed to persist fields: %w", err)
	}

	if len(result.LineItems) > 0 {
		items := make([]types.LineItem, 0, len(result.LineItems))
		for i, cols := range result.LineItems {
			items = append(items, types.LineItem{
				DocumentID: docID,
				Position:   i,
				Columns:    cols,
			})
		}
		if err := p.store.ReplaceLineItems(ctx, tenantID, docID, items); err != nil {
			return fmt.Errorf("failed to persist line items: %w", err)
		}
	}

	overall := score.Overall(fields, nil)

	// Stage: state transition.
	next := review.Decide(policy, overall)
	audited := false
	if next == types.StatusApproved && review.AuditSample(docID, policy.AuditRate) {
		audited = true
	}

	if err := p.store.UpdateDocument(ctx, docID, map[string]any{
		"status":             string(next),
		"doc_type":           result.DocType,
		"overall_confidence": overall,
		"engine":             outcome.Engine,
		"ai_corrected":       outcome.AICorrected,
		"audit_sampled":      audited,
	}); err != nil {
		return fmt.Errorf("failed to persist outcome: %w", err)
	}
	p.record(tenantID, docID, next, "")

	p.logger.Info("document processed",
		"document", docID,
		"doc_type", result.DocType,
		"engine", outcome.Engine,
		"attempts", outcome.Attempts,
		"confidence", overall,
		"status", next)

	if next == types.StatusApproved && p.approver != nil {
		if _, err := p.approver.Approve(ctx, tenantID, docID); err != nil {
			return fmt.Errorf("auto-approval upload failed: %w", err)
		}
	}
	return nil
}

// fail records a terminal stage failure. The document stays queryable
// with its reason and original file for manual re-submission.
func (p *Processor) fail(ctx context.Context, tenantID, docID string, status types.DocumentStatus, reason string) error {
	p.logger.Warn("document stage failed",
		"document", docID,
		"status", status,
		"reason", reason)
	if err := p.store.SetDocumentStatus(ctx, docID, status, reason); err != nil {
		return fmt.Errorf("failed to persist failure: %w", err)
	}
	p.record(tenantID, docID, status, reason)
	return nil
}

func (p *Processor) record(tenantID, docID string, status types.DocumentStatus, reason string) {
	if p.Events != nil {
		p.Events.Record(tenantID, docID, status, reason)
	}
}
