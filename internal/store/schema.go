package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Collection names.
const (
	CollectionDocument       = "Document"
	CollectionExtractedField = "ExtractedField"
	CollectionCorrection     = "Correction"
	CollectionLineItem       = "LineItem"
	CollectionRoutingPolicy  = "RoutingPolicy"
	CollectionFieldMapping   = "FieldMapping"
	CollectionBatch          = "Batch"
	CollectionPipelineEvent  = "PipelineEvent"
)

// Schema represents one DefraDB collection schema.
type Schema struct {
	Name  string
	SDL   string
	Order int // Initialization order (lower = first)
}

// registry holds all schemas in dependency order. Parent collections
// must exist before children reference them.
var registry = []Schema{
	{Name: CollectionBatch, Order: 1, SDL: batchSDL},
	{Name: CollectionRoutingPolicy, Order: 2, SDL: routingPolicySDL},
	{Name: CollectionFieldMapping, Order: 3, SDL: fieldMappingSDL},
	{Name: CollectionDocument, Order: 4, SDL: documentSDL},
	{Name: CollectionExtractedField, Order: 5, SDL: extractedFieldSDL},
	{Name: CollectionCorrection, Order: 6, SDL: correctionSDL},
	{Name: CollectionLineItem, Order: 7, SDL: lineItemSDL},
	{Name: CollectionPipelineEvent, Order: 8, SDL: pipelineEventSDL},
}

const batchSDL = `type Batch {
	tenant_id: String @index
	submitted_by: String
	total_docs: Int
	cancelled: Boolean
	created_at: String
}`

const routingPolicySDL = `type RoutingPolicy {
	tenant_id: String @index(unique: true)
	review_mode: String
	confidence_threshold: Float
	tier: String
	audit_rate: Float
	updated_at: String
}`

const fieldMappingSDL = `type FieldMapping {
	tenant_id: String @index
	connector: String
	fields_json: String
	table_cols_json: String
	updated_at: String
}`

const documentSDL = `type Document {
	tenant_id: String @index
	batch_id: String @index
	file_name: String
	source_path: String
	content_type: String
	page_count: Int
	status: String @index
	failure_reason: String
	doc_type: String
	overall_confidence: Float
	engine: String
	ai_corrected: Boolean
	audit_sampled: Boolean
	remote_id: String
	created_at: String
	updated_at: String
	completed_at: String
}`

const extractedFieldSDL = `type ExtractedField {
	document_id: String @index
	tenant_id: String @index
	name: String
	value: String
	confidence: Float
	created_at: String
}`

const correctionSDL = `type Correction {
	document_id: String @index
	tenant_id: String @index
	field_name: String
	original_value: String
	corrected_value: String
	original_confidence: Float
	method: String
	author: String
	received_at: String
}`

const lineItemSDL = `type LineItem {
	document_id: String @index
	tenant_id: String
	position: Int
	columns_json: String
}`

const pipelineEventSDL = `type PipelineEvent {
	document_id: String @index
	tenant_id: String
	status: String
	reason: String
	created_at: String
}`

// AllSchemas returns all schemas in dependency order.
func AllSchemas() []Schema {
	schemas := make([]Schema, len(registry))
	copy(schemas, registry)
	return schemas
}

// InitializeSchemas applies all collection schemas to DefraDB. Safe to
// call multiple times; existing collections are skipped.
func InitializeSchemas(ctx context.Context, client *Client, logger *slog.Logger) error {
	for _, s := range AllSchemas() {
		if err := applySchema(ctx, client, s, logger); err != nil {
			return err
		}
	}
	return nil
}

func applySchema(ctx context.Context, client *Client, s Schema, logger *slog.Logger) error {
	err := client.AddSchema(ctx, s.SDL)
	if err != nil {
		if isAlreadyExistsError(err) {
			logger.Info("schema already exists", "name", s.Name)
			return nil
		}
		return fmt.Errorf("failed to add schema %s: %w", s.Name, err)
	}

	logger.Info("schema added", "name", s.Name)
	return nil
}

// isAlreadyExistsError checks if the error indicates the collection
// already exists. DefraDB is reached over HTTP, so errors can only be
// recognized by message text.
func isAlreadyExistsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "collection already exists") ||
		strings.Contains(msg, "already exists")
}
