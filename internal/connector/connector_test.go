package connector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Dweliw01/DocuFlow-sub000/internal/store"
	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

func TestHTTPConnector_ListSchema(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/targets/dms-main/schema" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer key-1" {
			t.Errorf("unexpected auth header: %s", auth)
		}
		json.NewEncoder(w).Encode(schemaResponse{
			TargetID: "dms-main",
			Fields: []types.FieldDescriptor{
				{Name: "VENDOR_NAME", Type: types.FieldText, Required: true},
				{Name: "AMOUNT", Type: types.FieldDecimal, Required: true},
			},
		})
	}))
	defer server.Close()

	conn := NewHTTP(HTTPConfig{BaseURL: server.URL, APIKey: "key-1", TargetID: "dms-main"})
	schema, err := conn.ListSchema(context.Background(), "")
	if err != nil {
		t.Fatalf("ListSchema() error = %v", err)
	}

	if len(schema.Fields) != 2 {
		t.Fatalf("fields = %d, want 2", len(schema.Fields))
	}
	// Declaration order must survive the round trip.
	if schema.Fields[0].Name != "VENDOR_NAME" {
		t.Errorf("first field = %s, want VENDOR_NAME", schema.Fields[0].Name)
	}
}

func TestHTTPConnector_Upload(t *testing.T) {
	var got uploadPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/targets/dms-main/documents" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(uploadResponse{RemoteID: "remote-9"})
	}))
	defer server.Close()

	conn := NewHTTP(HTTPConfig{BaseURL: server.URL, TargetID: "dms-main"})
	result, err := conn.Upload(context.Background(), UploadRequest{
		Document: &types.Document{ID: "doc-1"},
		Values:   map[string]any{"VENDOR_NAME": "Acme", "AMOUNT": 120.0},
		FileName: "invoice.pdf",
		Binary:   []byte("pdfbytes"),
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if result.RemoteID != "remote-9" {
		t.Errorf("remote id = %q, want remote-9", result.RemoteID)
	}
	if result.Timestamp.IsZero() {
		t.Error("expected a timestamp")
	}
	if got.Fields["VENDOR_NAME"] != "Acme" {
		t.Errorf("payload fields = %v", got.Fields)
	}
	if got.Binary == "" {
		t.Error("expected base64 binary in payload")
	}
}

func TestHTTPConnector_UploadRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(uploadResponse{Error: "AMOUNT must be a decimal"})
	}))
	defer server.Close()

	conn := NewHTTP(HTTPConfig{BaseURL: server.URL, TargetID: "dms-main"})
	_, err := conn.Upload(context.Background(), UploadRequest{
		Document: &types.Document{ID: "doc-1"},
	})

	if !errors.Is(err, ErrRejected) {
		t.Fatalf("error = %v, want ErrRejected", err)
	}
	if !strings.Contains(err.Error(), "AMOUNT must be a decimal") {
		t.Errorf("reason not preserved: %v", err)
	}
}

func TestHTTPConnector_NotConfigured(t *testing.T) {
	conn := NewHTTP(HTTPConfig{})
	if _, err := conn.ListSchema(context.Background(), "x"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("error = %v, want ErrNotConfigured", err)
	}
	if _, err := conn.Upload(context.Background(), UploadRequest{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("error = %v, want ErrNotConfigured", err)
	}
}

type fakeMappings struct {
	mapping types.FieldMapping
	err     error
}

func (f *fakeMappings) GetMapping(ctx context.Context, tenantID, connector string) (types.FieldMapping, error) {
	if f.err != nil {
		return types.FieldMapping{}, f.err
	}
	return f.mapping, nil
}

func invoiceSchema() types.DestinationSchema {
	return types.DestinationSchema{
		TargetID: "dms-main",
		Fields: []types.FieldDescriptor{
			{Name: "VENDOR_NAME", Type: types.FieldText, Required: true},
			{Name: "AMOUNT", Type: types.FieldDecimal, Required: true},
		},
	}
}

func newTestUploadService(t *testing.T, mock *MockConnector, mappings MappingStore) *UploadService {
	t.Helper()
	svc := NewUploadService(mock, mappings, "dms-main", nil)
	svc.readFile = func(string) ([]byte, error) { return []byte("pdfbytes"), nil }
	return svc
}

func TestUploadService_MapsAndUploads(t *testing.T) {
	mock := &MockConnector{Schema: invoiceSchema(), RemoteID: "remote-1"}
	svc := newTestUploadService(t, mock, &fakeMappings{err: store.ErrNotFound})

	doc := &types.Document{ID: "doc-1", TenantID: "t1", SourcePath: "/tmp/invoice.pdf", FileName: "invoice.pdf"}
	remoteID, err := svc.Upload(context.Background(), doc, map[string]string{
		"vendor": "Acme Corp",
		"amount": "$120.00",
	}, nil)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if remoteID != "remote-1" {
		t.Errorf("remote id = %q, want remote-1", remoteID)
	}
	req, ok := mock.LastRequest()
	if !ok {
		t.Fatal("expected upload request")
	}
	if req.Values["VENDOR_NAME"] != "Acme Corp" {
		t.Errorf("VENDOR_NAME = %v", req.Values["VENDOR_NAME"])
	}
	if req.Values["AMOUNT"] != 120.0 {
		t.Errorf("AMOUNT = %v, want coerced 120.0", req.Values["AMOUNT"])
	}
	if len(req.MissingRequired) != 0 {
		t.Errorf("missing_required = %v, want empty", req.MissingRequired)
	}
}

func TestUploadService_IdempotentOnKnownRemoteID(t *testing.T) {
	mock := &MockConnector{Schema: invoiceSchema()}
	svc := newTestUploadService(t, mock, nil)

	doc := &types.Document{ID: "doc-1", TenantID: "t1", RemoteID: "remote-already"}
	remoteID, err := svc.Upload(context.Background(), doc, nil, nil)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if remoteID != "remote-already" {
		t.Errorf("remote id = %q, want existing id", remoteID)
	}
	if mock.UploadCount() != 0 {
		t.Errorf("upload calls = %d, want 0 (no duplicate remote record)", mock.UploadCount())
	}
}

func TestUploadService_StoredMappingOverride(t *testing.T) {
	mock := &MockConnector{Schema: invoiceSchema(), RemoteID: "remote-2"}
	mappings := &fakeMappings{mapping: types.FieldMapping{
		TenantID:  "t1",
		Connector: "mock",
		Fields:    map[string]string{"supplier": "VENDOR_NAME", "total": "AMOUNT"},
	}}
	svc := newTestUploadService(t, mock, mappings)

	doc := &types.Document{ID: "doc-1", TenantID: "t1", SourcePath: "/tmp/x.pdf"}
	_, err := svc.Upload(context.Background(), doc, map[string]string{
		"supplier": "Beta LLC",
		"total":    "7.00",
	}, nil)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	req, _ := mock.LastRequest()
	if req.Values["VENDOR_NAME"] != "Beta LLC" {
		t.Errorf("VENDOR_NAME = %v, want stored mapping applied", req.Values["VENDOR_NAME"])
	}
}

func TestUploadService_MissingRequiredStillUploads(t *testing.T) {
	mock := &MockConnector{Schema: invoiceSchema(), RemoteID: "remote-3"}
	svc := newTestUploadService(t, mock, nil)

	doc := &types.Document{ID: "doc-1", TenantID: "t1", SourcePath: "/tmp/x.pdf"}
	_, err := svc.Upload(context.Background(), doc, map[string]string{
		"vendor": "Acme",
	}, nil)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	req, _ := mock.LastRequest()
	if len(req.MissingRequired) != 1 || req.MissingRequired[0] != "AMOUNT" {
		t.Errorf("missing_required = %v, want [AMOUNT]", req.MissingRequired)
	}
	if mock.UploadCount() != 1 {
		t.Errorf("upload calls = %d, want 1", mock.UploadCount())
	}
}

func TestUploadService_RejectionPropagates(t *testing.T) {
	mock := &MockConnector{Schema: invoiceSchema(), UploadErr: ErrRejected}
	svc := newTestUploadService(t, mock, nil)

	doc := &types.Document{ID: "doc-1", TenantID: "t1", SourcePath: "/tmp/x.pdf"}
	if _, err := svc.Upload(context.Background(), doc, nil, nil); !errors.Is(err, ErrRejected) {
		t.Errorf("error = %v, want ErrRejected", err)
	}
	if mock.UploadCount() != 1 {
		t.Errorf("upload calls = %d, want exactly 1 attempt", mock.UploadCount())
	}
}
