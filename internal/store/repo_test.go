package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

// gqlServer routes canned responses by substring match on the query.
func gqlServer(t *testing.T, responses map[string]string) (*httptest.Server, *[]GQLRequest) {
	t.Helper()
	var requests []GQLRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GQLRequest
		json.NewDecoder(r.Body).Decode(&req)
		requests = append(requests, req)

		w.Header().Set("Content-Type", "application/json")
		for substr, body := range responses {
			if strings.Contains(req.Query, substr) {
				w.Write([]byte(body))
				return
			}
		}
		w.Write([]byte(`{"data": {}}`))
	}))
	return server, &requests
}

func TestRepo_CreateDocument(t *testing.T) {
	server, requests := gqlServer(t, map[string]string{
		"create_Document": `{"data": {"create_Document": [{"_docID": "bae-doc-1"}]}}`,
	})
	defer server.Close()

	repo := NewRepo(NewClient(server.URL))
	docID, err := repo.CreateDocument(context.Background(), types.Document{
		TenantID: "t1",
		FileName: "invoice.pdf",
		Status:   types.StatusUploaded,
	})
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	if docID != "bae-doc-1" {
		t.Errorf("docID = %q, want bae-doc-1", docID)
	}

	query := (*requests)[0].Query
	if !strings.Contains(query, `tenant_id: "t1"`) {
		t.Errorf("query missing tenant id: %s", query)
	}
	if !strings.Contains(query, `status: "uploaded"`) {
		t.Errorf("query missing status: %s", query)
	}
}

func TestRepo_GetDocument(t *testing.T) {
	server, requests := gqlServer(t, map[string]string{
		"Document": `{"data": {"Document": [{
			"_docID": "bae-doc-1",
			"tenant_id": "t1",
			"file_name": "invoice.pdf",
			"status": "pending_review",
			"overall_confidence": 0.82,
			"ai_corrected": true,
			"created_at": "2026-08-01T10:00:00Z"
		}]}}`,
	})
	defer server.Close()

	repo := NewRepo(NewClient(server.URL))
	doc, err := repo.GetDocument(context.Background(), "t1", "bae-doc-1")
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}

	if doc.Status != types.StatusPendingReview {
		t.Errorf("status = %s, want pending_review", doc.Status)
	}
	if doc.OverallConfidence != 0.82 {
		t.Errorf("confidence = %v, want 0.82", doc.OverallConfidence)
	}
	if !doc.AICorrected {
		t.Error("expected ai_corrected true")
	}
	if doc.CreatedAt.IsZero() {
		t.Error("expected parsed created_at")
	}

	// Tenant filter must always be present.
	vars := (*requests)[0].Variables
	found := false
	for _, v := range vars {
		if v == "t1" {
			found = true
		}
	}
	if !found {
		t.Errorf("tenant id not in query variables: %v", vars)
	}
}

func TestRepo_GetDocument_NotFound(t *testing.T) {
	server, _ := gqlServer(t, map[string]string{
		"Document": `{"data": {"Document": []}}`,
	})
	defer server.Close()

	repo := NewRepo(NewClient(server.URL))
	_, err := repo.GetDocument(context.Background(), "t1", "bae-missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestRepo_GetDocument_RejectsUnsafeID(t *testing.T) {
	repo := NewRepo(NewClient("http://127.0.0.1:0"))
	if _, err := repo.GetDocument(context.Background(), "t1", `x") { }`); err == nil {
		t.Error("expected error for unsafe id")
	}
}

func TestRepo_AppendCorrection_StampsReceiptTime(t *testing.T) {
	server, requests := gqlServer(t, map[string]string{
		"create_Correction": `{"data": {"create_Correction": [{"_docID": "bae-corr-1"}]}}`,
	})
	defer server.Close()

	repo := NewRepo(NewClient(server.URL))
	before := time.Now().UTC()
	_, err := repo.AppendCorrection(context.Background(), types.Correction{
		DocumentID:     "bae-doc-1",
		TenantID:       "t1",
		FieldName:      "amount",
		CorrectedValue: "$99.00",
		Method:         types.CorrectionManual,
		Author:         "reviewer@example.com",
	})
	if err != nil {
		t.Fatalf("AppendCorrection() error = %v", err)
	}

	query := (*requests)[0].Query
	if !strings.Contains(query, "received_at") {
		t.Errorf("query missing received_at: %s", query)
	}
	// The stamp must be server-side and recent, not a zero value.
	idx := strings.Index(query, `received_at: "`)
	rest := query[idx+len(`received_at: "`):]
	stamp := rest[:strings.Index(rest, `"`)]
	parsed, err := time.Parse(timeLayout, stamp)
	if err != nil {
		t.Fatalf("unparseable received_at %q: %v", stamp, err)
	}
	if parsed.Before(before.Add(-time.Second)) {
		t.Errorf("received_at %v predates call", parsed)
	}
}

func TestRepo_GetPolicy_DefaultWhenMissing(t *testing.T) {
	server, _ := gqlServer(t, map[string]string{
		"RoutingPolicy": `{"data": {"RoutingPolicy": []}}`,
	})
	defer server.Close()

	repo := NewRepo(NewClient(server.URL))
	policy, err := repo.GetPolicy(context.Background(), "t1")
	if err != nil {
		t.Fatalf("GetPolicy() error = %v", err)
	}

	if policy.ReviewMode != types.ReviewSmart {
		t.Errorf("review mode = %s, want smart", policy.ReviewMode)
	}
	if policy.ConfidenceThreshold != 0.85 {
		t.Errorf("threshold = %v, want 0.85", policy.ConfidenceThreshold)
	}
	if policy.Tier != types.TierStandard {
		t.Errorf("tier = %s, want standard", policy.Tier)
	}
}

func TestRepo_GetPolicy_Stored(t *testing.T) {
	server, _ := gqlServer(t, map[string]string{
		"RoutingPolicy": `{"data": {"RoutingPolicy": [{
			"tenant_id": "t1",
			"review_mode": "auto_upload",
			"confidence_threshold": 0.9,
			"tier": "premium",
			"audit_rate": 0.1
		}]}}`,
	})
	defer server.Close()

	repo := NewRepo(NewClient(server.URL))
	policy, err := repo.GetPolicy(context.Background(), "t1")
	if err != nil {
		t.Fatalf("GetPolicy() error = %v", err)
	}

	if policy.ReviewMode != types.ReviewAutoUpload {
		t.Errorf("review mode = %s, want auto_upload", policy.ReviewMode)
	}
	if policy.Tier != types.TierPremium {
		t.Errorf("tier = %s, want premium", policy.Tier)
	}
	if policy.AuditRate != 0.1 {
		t.Errorf("audit rate = %v, want 0.1", policy.AuditRate)
	}
}

func TestRepo_GetMapping_NotFound(t *testing.T) {
	server, _ := gqlServer(t, map[string]string{
		"FieldMapping": `{"data": {"FieldMapping": []}}`,
	})
	defer server.Close()

	repo := NewRepo(NewClient(server.URL))
	_, err := repo.GetMapping(context.Background(), "t1", "dms")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestRepo_GetMapping_DecodesJSON(t *testing.T) {
	server, _ := gqlServer(t, map[string]string{
		"FieldMapping": `{"data": {"FieldMapping": [{
			"tenant_id": "t1",
			"connector": "dms",
			"fields_json": "{\"vendor\":\"VENDOR_NAME\"}",
			"table_cols_json": "[\"description\",\"qty\"]"
		}]}}`,
	})
	defer server.Close()

	repo := NewRepo(NewClient(server.URL))
	m, err := repo.GetMapping(context.Background(), "t1", "dms")
	if err != nil {
		t.Fatalf("GetMapping() error = %v", err)
	}
	if m.Fields["vendor"] != "VENDOR_NAME" {
		t.Errorf("fields = %v", m.Fields)
	}
	if len(m.TableCols) != 2 {
		t.Errorf("table cols = %v", m.TableCols)
	}
}

func TestRepo_BatchProgress(t *testing.T) {
	server, _ := gqlServer(t, map[string]string{
		"Batch": `{"data": {"Batch": [{
			"_docID": "bae-batch-1",
			"tenant_id": "t1",
			"total_docs": 3,
			"cancelled": false,
			"created_at": "2026-08-01T10:00:00Z"
		}]}}`,
		"Document": `{"data": {"Document": [
			{"_docID": "d1", "status": "completed"},
			{"_docID": "d2", "status": "completed"},
			{"_docID": "d3", "status": "pending_review"}
		]}}`,
	})
	defer server.Close()

	repo := NewRepo(NewClient(server.URL))
	progress, err := repo.BatchProgress(context.Background(), "t1", "bae-batch-1")
	if err != nil {
		t.Fatalf("BatchProgress() error = %v", err)
	}

	if progress.Total != 3 {
		t.Errorf("total = %d, want 3", progress.Total)
	}
	if progress.ByStatus["completed"] != 2 {
		t.Errorf("completed = %d, want 2", progress.ByStatus["completed"])
	}
	if progress.ByStatus["pending_review"] != 1 {
		t.Errorf("pending_review = %d, want 1", progress.ByStatus["pending_review"])
	}
}
