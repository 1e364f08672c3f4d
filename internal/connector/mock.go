package connector

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

// MockConnector is a configurable in-memory connector for tests.
type MockConnector struct {
	ConnectorName string
	Schema        types.DestinationSchema
	RemoteID      string
	UploadErr     error
	SchemaErr     error

	uploadCount int64
	schemaCount int64
	lastRequest atomic.Value // UploadRequest
}

// Name returns the connector identifier.
func (m *MockConnector) Name() string {
	if m.ConnectorName == "" {
		return "mock"
	}
	return m.ConnectorName
}

// ListSchema returns the canned schema.
func (m *MockConnector) ListSchema(ctx context.Context, targetID string) (types.DestinationSchema, error) {
	atomic.AddInt64(&m.schemaCount, 1)
	if m.SchemaErr != nil {
		return types.DestinationSchema{}, m.SchemaErr
	}
	return m.Schema, nil
}

// Upload records the request and returns the canned outcome.
func (m *MockConnector) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	atomic.AddInt64(&m.uploadCount, 1)
	m.lastRequest.Store(req)
	if m.UploadErr != nil {
		return UploadResult{}, m.UploadErr
	}
	remoteID := m.RemoteID
	if remoteID == "" {
		remoteID = "mock-remote-1"
	}
	return UploadResult{RemoteID: remoteID, Timestamp: time.Now().UTC()}, nil
}

// UploadCount returns how many uploads were attempted.
func (m *MockConnector) UploadCount() int64 {
	return atomic.LoadInt64(&m.uploadCount)
}

// SchemaCount returns how many schema fetches were made.
func (m *MockConnector) SchemaCount() int64 {
	return atomic.LoadInt64(&m.schemaCount)
}

// LastRequest returns the most recent upload request, if any.
func (m *MockConnector) LastRequest() (UploadRequest, bool) {
	v := m.lastRequest.Load()
	if v == nil {
		return UploadRequest{}, false
	}
	return v.(UploadRequest), true
}
