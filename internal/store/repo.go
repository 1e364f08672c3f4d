package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

// timeLayout is the wire format for timestamps in the store.
const timeLayout = time.RFC3339Nano

// Repo is the typed persistence layer over the raw GraphQL client.
// Every read is filtered by tenant id; cross-tenant access is not
// expressible through this API.
type Repo struct {
	client *Client
}

// NewRepo creates a repository over the given client.
func NewRepo(client *Client) *Repo {
	return &Repo{client: client}
}

// Client exposes the underlying client for health checks.
func (r *Repo) Client() *Client {
	return r.client
}

// --- Documents ---

var documentFields = []string{
	"_docID", "tenant_id", "batch_id", "file_name", "source_path",
	"content_type", "page_count", "status", "failure_reason", "doc_type",
	"overall_confidence", "engine", "ai_corrected", "audit_sampled",
	"remote_id", "created_at", "updated_at", "completed_at",
}

// CreateDocument persists a new document and returns its id.
func (r *Repo) CreateDocument(ctx context.Context, doc types.Document) (string, error) {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	input := map[string]any{
		"tenant_id":          doc.TenantID,
		"batch_id":           doc.BatchID,
		"file_name":          doc.FileName,
		"source_path":        doc.SourcePath,
		"content_type":       doc.ContentType,
		"page_count":         doc.PageCount,
		"status":             string(doc.Status),
		"failure_reason":     doc.FailureReason,
		"doc_type":           doc.DocType,
		"overall_confidence": doc.OverallConfidence,
		"engine":             doc.Engine,
		"ai_corrected":       doc.AICorrected,
		"audit_sampled":      doc.AuditSampled,
		"remote_id":          doc.RemoteID,
		"created_at":         doc.CreatedAt.Format(timeLayout),
		"updated_at":         doc.UpdatedAt.Format(timeLayout),
	}
	return r.client.Create(ctx, CollectionDocument, input)
}

// GetDocument fetches one document scoped to a tenant.
func (r *Repo) GetDocument(ctx context.Context, tenantID, docID string) (*types.Document, error) {
	if _, err := SafeID(docID); err != nil {
		return nil, err
	}

	resp, err := NewQuery(CollectionDocument).
		Filter("_docID", docID).
		Filter("tenant_id", tenantID).
		Fields(documentFields...).
		Execute(ctx, r.client)
	if err != nil {
		return nil, err
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("query error: %s", errMsg)
	}

	docs := resp.Collection(CollectionDocument)
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	doc := decodeDocument(docs[0])
	return &doc, nil
}

// ListDocuments returns a tenant's documents, optionally filtered by
// status and batch, newest first.
func (r *Repo) ListDocuments(ctx context.Context, tenantID string, status types.DocumentStatus, batchID string, limit, offset int) ([]types.Document, error) {
	q := NewQuery(CollectionDocument).
		Filter("tenant_id", tenantID).
		Fields(documentFields...).
		OrderBy("created_at", "DESC")
	if status != "" {
		q.Filter("status", string(status))
	}
	if batchID != "" {
		q.Filter("batch_id", batchID)
	}
	if limit > 0 {
		q.Limit(limit)
	}
	if offset > 0 {
		q.Offset(offset)
	}

	resp, err := q.Execute(ctx, r.client)
	if err != nil {
		return nil, err
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("query error: %s", errMsg)
	}

	raw := resp.Collection(CollectionDocument)
	docs := make([]types.Document, 0, len(raw))
	for _, d := range raw {
		docs = append(docs, decodeDocument(d))
	}
	return docs, nil
}

// UpdateDocument applies a partial update and refreshes updated_at.
func (r *Repo) UpdateDocument(ctx context.Context, docID string, input map[string]any) error {
	if _, err := SafeID(docID); err != nil {
		return err
	}
	input["updated_at"] = time.Now().UTC().Format(timeLayout)
	return r.client.Update(ctx, CollectionDocument, docID, input)
}

// SetDocumentStatus records a status transition with an optional
// human-readable reason.
func (r *Repo) SetDocumentStatus(ctx context.Context, docID string, status types.DocumentStatus, reason string) error {
	input := map[string]any{
		"status":         string(status),
		"failure_reason": reason,
	}
	return r.UpdateDocument(ctx, docID, input)
}

func decodeDocument(m map[string]any) types.Document {
	doc := types.Document{
		ID:                getString(m, "_docID"),
		TenantID:          getString(m, "tenant_id"),
		BatchID:           getString(m, "batch_id"),
		FileName:          getString(m, "file_name"),
		SourcePath:        getString(m, "source_path"),
		ContentType:       getString(m, "content_type"),
		PageCount:         int(getFloat(m, "page_count")),
		Status:            types.DocumentStatus(getString(m, "status")),
		FailureReason:     getString(m, "failure_reason"),
		DocType:           getString(m, "doc_type"),
		OverallConfidence: getFloat(m, "overall_confidence"),
		Engine:            getString(m, "engine"),
		AICorrected:       getBool(m, "ai_corrected"),
		AuditSampled:      getBool(m, "audit_sampled"),
		RemoteID:          getString(m, "remote_id"),
		CreatedAt:         getTime(m, "created_at"),
		UpdatedAt:         getTime(m, "updated_at"),
	}
	if t := getTime(m, "completed_at"); !t.IsZero() {
		doc.CompletedAt = &t
	}
	return doc
}

// --- Extracted fields ---

var extractedFieldFields = []string{
	"_docID", "document_id", "name", "value", "confidence",
}

// SaveExtractedFields persists an extraction pass in one batch. Fields
// are immutable once written.
func (r *Repo) SaveExtractedFields(ctx context.Context, tenantID, docID string, fields []types.ExtractedField) error {
	if len(fields) == 0 {
		return nil
	}
	now := time.Now().UTC().Format(timeLayout)
	inputs := make([]map[string]any, 0, len(fields))
	for _, f := range fields {
		inputs = append(inputs, map[string]any{
			"document_id": docID,
			"tenant_id":   tenantID,
			"name":        f.Name,
			"value":       f.Value,
			"confidence":  f.Confidence,
			"created_at":  now,
		})
	}
	_, err := r.client.CreateMany(ctx, CollectionExtractedField, inputs)
	return err
}

// FieldsForDocument returns the original extraction output for one
// document.
func (r *Repo) FieldsForDocument(ctx context.Context, tenantID, docID string) ([]types.ExtractedField, error) {
	if _, err := SafeID(docID); err != nil {
		return nil, err
	}
	resp, err := NewQuery(CollectionExtractedField).
		Filter("document_id", docID).
		Filter("tenant_id", tenantID).
		Fields(extractedFieldFields...).
		Execute(ctx, r.client)
	if err != nil {
		return nil, err
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("query error: %s", errMsg)
	}

	raw := resp.Collection(CollectionExtractedField)
	fields := make([]types.ExtractedField, 0, len(raw))
	for _, m := range raw {
		fields = append(fields, types.ExtractedField{
			ID:         getString(m, "_docID"),
			DocumentID: getString(m, "document_id"),
			Name:       getString(m, "name"),
			Value:      getString(m, "value"),
			Confidence: getFloat(m, "confidence"),
		})
	}
	return fields, nil
}

// --- Corrections ---

var correctionFields = []string{
	"_docID", "document_id", "field_name", "original_value",
	"corrected_value", "original_confidence", "method", "author",
	"received_at",
}

// AppendCorrection adds one entry to the append-only ledger. ReceivedAt
// is stamped server-side here, never trusted from the caller.
func (r *Repo) AppendCorrection(ctx context.Context, c types.Correction) (string, error) {
	if _, err := SafeID(c.DocumentID); err != nil {
		return "", err
	}
	if c.ReceivedAt.IsZero() {
		c.ReceivedAt = time.Now().UTC()
	}
	input := map[string]any{
		"document_id":         c.DocumentID,
		"tenant_id":           c.TenantID,
		"field_name":          c.FieldName,
		"original_value":      c.OriginalValue,
		"corrected_value":     c.CorrectedValue,
		"original_confidence": c.OriginalConfidence,
		"method":              string(c.Method),
		"author":              c.Author,
		"received_at":         c.ReceivedAt.Format(timeLayout),
	}
	return r.client.Create(ctx, CollectionCorrection, input)
}

// CorrectionsForDocument returns the full ledger for one document in
// receipt order, oldest first.
func (r *Repo) CorrectionsForDocument(ctx context.Context, tenantID, docID string) ([]types.Correction, error) {
	if _, err := SafeID(docID); err != nil {
		return nil, err
	}
	resp, err := NewQuery(CollectionCorrection).
		Filter("document_id", docID).
		Filter("tenant_id", tenantID).
		Fields(correctionFields...).
		OrderBy("received_at", "ASC").
		Execute(ctx, r.client)
	if err != nil {
		return nil, err
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("query error: %s", errMsg)
	}

	raw := resp.Collection(CollectionCorrection)
	corrections := make([]types.Correction, 0, len(raw))
	for _, m := range raw {
		corrections = append(corrections, types.Correction{
			ID:                 getString(m, "_docID"),
			DocumentID:         getString(m, "document_id"),
			TenantID:           tenantID,
			FieldName:          getString(m, "field_name"),
			OriginalValue:      getString(m, "original_value"),
			CorrectedValue:     getString(m, "corrected_value"),
			OriginalConfidence: getFloat(m, "original_confidence"),
			Method:             types.CorrectionMethod(getString(m, "method")),
			Author:             getString(m, "author"),
			ReceivedAt:         getTime(m, "received_at"),
		})
	}
	return corrections, nil
}

// --- Line items ---

// ReplaceLineItems swaps a document's line item rows for a new array.
func (r *Repo) ReplaceLineItems(ctx context.Context, tenantID, docID string, items []types.LineItem) error {
	if _, err := SafeID(docID); err != nil {
		return err
	}

	existing, err := NewQuery(CollectionLineItem).
		Filter("document_id", docID).
		Execute(ctx, r.client)
	if err != nil {
		return err
	}
	for _, m := range existing.Collection(CollectionLineItem) {
		if id := getString(m, "_docID"); id != "" {
			if err := r.client.Delete(ctx, CollectionLineItem, id); err != nil {
				return err
			}
		}
	}

	if len(items) == 0 {
		return nil
	}
	inputs := make([]map[string]any, 0, len(items))
	for _, item := range items {
		colsJSON, err := json.Marshal(item.Columns)
		if err != nil {
			return fmt.Errorf("failed to marshal line item columns: %w", err)
		}
		inputs = append(inputs, map[string]any{
			"document_id":  docID,
			"tenant_id":    tenantID,
			"position":     item.Position,
			"columns_json": string(colsJSON),
		})
	}
	_, err = r.client.CreateMany(ctx, CollectionLineItem, inputs)
	return err
}

// LineItemsForDocument returns line item rows in position order.
func (r *Repo) LineItemsForDocument(ctx context.Context, tenantID, docID string) ([]types.LineItem, error) {
	if _, err := SafeID(docID); err != nil {
		return nil, err
	}
	resp, err := NewQuery(CollectionLineItem).
		Filter("document_id", docID).
		Filter("tenant_id", tenantID).
		Fields("_docID", "document_id", "position", "columns_json").
		OrderBy("position", "ASC").
		Execute(ctx, r.client)
	if err != nil {
		return nil, err
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("query error: %s", errMsg)
	}

	raw := resp.Collection(CollectionLineItem)
	items := make([]types.LineItem, 0, len(raw))
	for _, m := range raw {
		var cols map[string]string
		if s := getString(m, "columns_json"); s != "" {
			if err := json.Unmarshal([]byte(s), &cols); err != nil {
				return nil, fmt.Errorf("failed to decode line item columns: %w", err)
			}
		}
		items = append(items, types.LineItem{
			DocumentID: getString(m, "document_id"),
			Position:   int(getFloat(m, "position")),
			Columns:    cols,
		})
	}
	return items, nil
}

// --- Routing policies ---

// SavePolicy upserts a tenant's routing policy.
func (r *Repo) SavePolicy(ctx context.Context, p types.RoutingPolicy) error {
	input := map[string]any{
		"tenant_id":            p.TenantID,
		"review_mode":          string(p.ReviewMode),
		"confidence_threshold": p.ConfidenceThreshold,
		"tier":                 string(p.Tier),
		"audit_rate":           p.AuditRate,
		"updated_at":           time.Now().UTC().Format(timeLayout),
	}
	filter := map[string]any{
		"tenant_id": map[string]any{"_eq": p.TenantID},
	}
	_, err := r.client.Upsert(ctx, CollectionRoutingPolicy, filter, input, input)
	return err
}

// GetPolicy returns a tenant's policy, or the default when none is
// stored.
func (r *Repo) GetPolicy(ctx context.Context, tenantID string) (types.RoutingPolicy, error) {
	resp, err := NewQuery(CollectionRoutingPolicy).
		Filter("tenant_id", tenantID).
		Fields("tenant_id", "review_mode", "confidence_threshold", "tier", "audit_rate").
		Limit(1).
		Execute(ctx, r.client)
	if err != nil {
		return types.RoutingPolicy{}, err
	}
	if errMsg := resp.Error(); errMsg != "" {
		return types.RoutingPolicy{}, fmt.Errorf("query error: %s", errMsg)
	}

	raw := resp.Collection(CollectionRoutingPolicy)
	if len(raw) == 0 {
		return types.DefaultPolicy(tenantID), nil
	}
	m := raw[0]
	return types.RoutingPolicy{
		TenantID:            tenantID,
		ReviewMode:          types.ReviewMode(getString(m, "review_mode")),
		ConfidenceThreshold: getFloat(m, "confidence_threshold"),
		Tier:                types.Tier(getString(m, "tier")),
		AuditRate:           getFloat(m, "audit_rate"),
	}, nil
}

// --- Field mappings ---

// SaveMapping upserts a tenant's stored field mapping for a connector.
func (r *Repo) SaveMapping(ctx context.Context, m types.FieldMapping) error {
	fieldsJSON, err := json.Marshal(m.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping fields: %w", err)
	}
	colsJSON, err := json.Marshal(m.TableCols)
	if err != nil {
		return fmt.Errorf("failed to marshal table cols: %w", err)
	}
	input := map[string]any{
		"tenant_id":       m.TenantID,
		"connector":       m.Connector,
		"fields_json":     string(fieldsJSON),
		"table_cols_json": string(colsJSON),
		"updated_at":      time.Now().UTC().Format(timeLayout),
	}
	filter := map[string]any{
		"tenant_id": map[string]any{"_eq": m.TenantID},
		"connector": map[string]any{"_eq": m.Connector},
	}
	_, err = r.client.Upsert(ctx, CollectionFieldMapping, filter, input, input)
	return err
}

// GetMapping returns a tenant's stored mapping for a connector, or
// ErrNotFound when none exists (the caller falls back to automatic
// matching).
func (r *Repo) GetMapping(ctx context.Context, tenantID, connector string) (types.FieldMapping, error) {
	resp, err := NewQuery(CollectionFieldMapping).
		Filter("tenant_id", tenantID).
		Filter("connector", connector).
		Fields("tenant_id", "connector", "fields_json", "table_cols_json").
		Limit(1).
		Execute(ctx, r.client)
	if err != nil {
		return types.FieldMapping{}, err
	}
	if errMsg := resp.Error(); errMsg != "" {
		return types.FieldMapping{}, fmt.Errorf("query error: %s", errMsg)
	}

	raw := resp.Collection(CollectionFieldMapping)
	if len(raw) == 0 {
		return types.FieldMapping{}, ErrNotFound
	}
	m := raw[0]

	result := types.FieldMapping{
		TenantID:  tenantID,
		Connector: connector,
	}
	if s := getString(m, "fields_json"); s != "" {
		if err := json.Unmarshal([]byte(s), &result.Fields); err != nil {
			return types.FieldMapping{}, fmt.Errorf("failed to decode mapping fields: %w", err)
		}
	}
	if s := getString(m, "table_cols_json"); s != "" {
		if err := json.Unmarshal([]byte(s), &result.TableCols); err != nil {
			return types.FieldMapping{}, fmt.Errorf("failed to decode table cols: %w", err)
		}
	}
	return result, nil
}

// --- Batches ---

// CreateBatch persists a new batch record.
func (r *Repo) CreateBatch(ctx context.Context, b types.Batch) (string, error) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	input := map[string]any{
		"tenant_id":    b.TenantID,
		"submitted_by": b.SubmittedBy,
		"total_docs":   b.TotalDocs,
		"cancelled":    b.Cancelled,
		"created_at":   b.CreatedAt.Format(timeLayout),
	}
	return r.client.Create(ctx, CollectionBatch, input)
}

// GetBatch fetches one batch scoped to a tenant.
func (r *Repo) GetBatch(ctx context.Context, tenantID, batchID string) (*types.Batch, error) {
	if _, err := SafeID(batchID); err != nil {
		return nil, err
	}
	resp, err := NewQuery(CollectionBatch).
		Filter("_docID", batchID).
		Filter("tenant_id", tenantID).
		Fields("_docID", "tenant_id", "submitted_by", "total_docs", "cancelled", "created_at").
		Execute(ctx, r.client)
	if err != nil {
		return nil, err
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("query error: %s", errMsg)
	}

	raw := resp.Collection(CollectionBatch)
	if len(raw) == 0 {
		return nil, ErrNotFound
	}
	m := raw[0]
	return &types.Batch{
		ID:          getString(m, "_docID"),
		TenantID:    getString(m, "tenant_id"),
		SubmittedBy: getString(m, "submitted_by"),
		TotalDocs:   int(getFloat(m, "total_docs")),
		Cancelled:   getBool(m, "cancelled"),
		CreatedAt:   getTime(m, "created_at"),
	}, nil
}

// UpdateBatch applies a partial update to a batch record.
func (r *Repo) UpdateBatch(ctx context.Context, batchID string, input map[string]any) error {
	if _, err := SafeID(batchID); err != nil {
		return err
	}
	return r.client.Update(ctx, CollectionBatch, batchID, input)
}

// CancelBatch marks a batch cancelled. Documents already mid-pipeline
// run to completion; only dispatch of queued documents stops.
func (r *Repo) CancelBatch(ctx context.Context, tenantID, batchID string) error {
	if _, err := r.GetBatch(ctx, tenantID, batchID); err != nil {
		return err
	}
	return r.client.Update(ctx, CollectionBatch, batchID, map[string]any{
		"cancelled": true,
	})
}

// BatchProgress derives batch progress from persisted document rows.
func (r *Repo) BatchProgress(ctx context.Context, tenantID, batchID string) (*types.BatchProgress, error) {
	batch, err := r.GetBatch(ctx, tenantID, batchID)
	if err != nil {
		return nil, err
	}

	docs, err := r.ListDocuments(ctx, tenantID, "", batchID, 0, 0)
	if err != nil {
		return nil, err
	}

	progress := &types.BatchProgress{
		BatchID:   batchID,
		Total:     len(docs),
		ByStatus:  make(map[string]int),
		Cancelled: batch.Cancelled,
	}
	for _, d := range docs {
		progress.ByStatus[string(d.Status)]++
	}
	return progress, nil
}

// --- Decoding helpers ---

// Collection extracts a collection's result rows from a response.
func (r *GQLResponse) Collection(name string) []map[string]any {
	raw, ok := r.Data[name].([]any)
	if !ok {
		return nil
	}
	rows := make([]map[string]any, 0, len(raw))
	for _, entry := range raw {
		if m, ok := entry.(map[string]any); ok {
			rows = append(rows, m)
		}
	}
	return rows
}

func getString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func getFloat(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func getBool(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func getTime(m map[string]any, key string) time.Time {
	s := getString(m, key)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
