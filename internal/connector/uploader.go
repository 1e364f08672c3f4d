package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Dweliw01/DocuFlow-sub000/internal/mapper"
	"github.com/Dweliw01/DocuFlow-sub000/internal/store"
	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

// MappingStore looks up a tenant's stored field mapping override.
type MappingStore interface {
	GetMapping(ctx context.Context, tenantID, connector string) (types.FieldMapping, error)
}

// UploadService drives one upload attempt end to end: fetch the live
// destination schema, map and coerce the document's current values, and
// push the payload. It implements the review side's Uploader contract.
type UploadService struct {
	conn     Connector
	mappings MappingStore
	targetID string
	logger   *slog.Logger
	readFile func(string) ([]byte, error)
}

// NewUploadService creates the upload orchestrator.
func NewUploadService(conn Connector, mappings MappingStore, targetID string, logger *slog.Logger) *UploadService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadService{
		conn:     conn,
		mappings: mappings,
		targetID: targetID,
		logger:   logger,
		readFile: os.ReadFile,
	}
}

// Upload pushes one approved document to the destination. Idempotent
// per document: a document whose remote id is already known is never
// re-sent, so retried approvals cannot create duplicate remote records.
func (s *UploadService) Upload(ctx context.Context, doc *types.Document, values map[string]string, lineItems []types.LineItem) (string, error) {
	if doc.RemoteID != "" {
		s.logger.Info("document already uploaded, skipping",
			"document", doc.ID,
			"remote_id", doc.RemoteID)
		return doc.RemoteID, nil
	}

	schema, err := s.conn.ListSchema(ctx, s.targetID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch destination schema: %w", err)
	}

	var storedFields map[string]string
	var tableCols []string
	if s.mappings != nil {
		stored, err := s.mappings.GetMapping(ctx, doc.TenantID, s.conn.Name())
		switch {
		case err == nil:
			storedFields = stored.Fields
			tableCols = stored.TableCols
		case errors.Is(err, store.ErrNotFound):
			// Fall back to automatic name matching.
		default:
			return "", fmt.Errorf("failed to load field mapping: %w", err)
		}
	}

	rows := make([]map[string]string, 0, len(lineItems))
	for _, item := range lineItems {
		rows = append(rows, item.Columns)
	}

	payload := mapper.Build(schema, storedFields, values, rows, tableCols)
	if len(payload.MissingRequired) > 0 {
		// Upload still proceeds; the destination's rejection becomes a
		// normal failed transition with the reason preserved.
		s.logger.Warn("uploading with missing required fields",
			"document", doc.ID,
			"missing", payload.MissingRequired)
	}

	binary, err := s.readFile(doc.SourcePath)
	if err != nil {
		return "", fmt.Errorf("failed to read source file: %w", err)
	}

	result, err := s.conn.Upload(ctx, UploadRequest{
		Document:        doc,
		Values:          payload.Values,
		MissingRequired: payload.MissingRequired,
		Binary:          binary,
		FileName:        doc.FileName,
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("document uploaded",
		"document", doc.ID,
		"remote_id", result.RemoteID,
		"connector", s.conn.Name())
	return result.RemoteID, nil
}
