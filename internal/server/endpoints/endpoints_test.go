package endpoints

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Dweliw01/DocuFlow-sub000/internal/review"
	"github.com/Dweliw01/DocuFlow-sub000/internal/store"
	"github.com/Dweliw01/DocuFlow-sub000/internal/svcctx"
	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

// gqlServer routes canned responses by substring match on the query.
func gqlServer(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req store.GQLRequest
		json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "application/json")
		for substr, body := range responses {
			if strings.Contains(req.Query, substr) {
				w.Write([]byte(body))
				return
			}
		}
		w.Write([]byte(`{"data": {}}`))
	}))
	t.Cleanup(server.Close)
	return server
}

// request builds a request with the services attached, the way the
// server's context middleware does.
func request(method, target string, body *strings.Reader, services *svcctx.Services) *http.Request {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, body)
	}
	if services != nil {
		req = req.WithContext(svcctx.WithServices(req.Context(), services))
	}
	return req
}

func servicesWith(t *testing.T, responses map[string]string) *svcctx.Services {
	t.Helper()
	server := gqlServer(t, responses)
	repo := store.NewRepo(store.NewClient(server.URL))
	return &svcctx.Services{
		Repo:   repo,
		Review: review.NewService(repo, nil, nil),
	}
}

func TestTenantFrom(t *testing.T) {
	tests := []struct {
		name   string
		header string
		query  string
		want   string
	}{
		{"header wins", "acme", "other", "acme"},
		{"query fallback", "", "other", "other"},
		{"default", "", "", "default"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/api/documents"
			if tt.query != "" {
				target += "?tenant=" + tt.query
			}
			req := httptest.NewRequest("GET", target, nil)
			if tt.header != "" {
				req.Header.Set("X-Tenant-ID", tt.header)
			}
			if got := tenantFrom(req); got != tt.want {
				t.Errorf("tenantFrom() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHealthEndpoint(t *testing.T) {
	e := &HealthEndpoint{}
	_, _, handler := e.Route()

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp HealthResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Status != "ok" {
		t.Errorf("Status = %q, want ok", resp.Status)
	}
}

func TestReadyEndpoint_NotInitialized(t *testing.T) {
	e := &ReadyEndpoint{}
	_, _, handler := e.Route()

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	var resp HealthResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Store != "not_initialized" {
		t.Errorf("Store = %q, want not_initialized", resp.Store)
	}
}

func TestStatusEndpoint_NotInitialized(t *testing.T) {
	e := &StatusEndpoint{}
	_, _, handler := e.Route()

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp StatusResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Store.Container != "not_initialized" {
		t.Errorf("Container = %q, want not_initialized", resp.Store.Container)
	}
	if resp.Server != "running" {
		t.Errorf("Server = %q, want running", resp.Server)
	}
}

func TestListDocuments(t *testing.T) {
	services := servicesWith(t, map[string]string{
		"Document": `{"data": {"Document": [
			{"_docID": "doc-1", "tenant_id": "t1", "file_name": "a.pdf", "status": "pending_review", "overall_confidence": 0.72},
			{"_docID": "doc-2", "tenant_id": "t1", "file_name": "b.pdf", "status": "completed", "overall_confidence": 0.95}
		]}}`,
	})

	e := &ListDocumentsEndpoint{}
	_, _, handler := e.Route()

	rec := httptest.NewRecorder()
	handler(rec, request("GET", "/api/documents?tenant=t1", nil, services))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp ListDocumentsResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if len(resp.Documents) != 2 {
		t.Fatalf("documents = %d, want 2", len(resp.Documents))
	}
	if resp.Documents[0].Status != types.StatusPendingReview {
		t.Errorf("status = %q, want pending_review", resp.Documents[0].Status)
	}
}

func TestListDocuments_BadStatus(t *testing.T) {
	services := servicesWith(t, nil)

	e := &ListDocumentsEndpoint{}
	_, _, handler := e.Route()

	rec := httptest.NewRecorder()
	handler(rec, request("GET", "/api/documents?status=bogus", nil, services))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestListDocuments_NoServices(t *testing.T) {
	e := &ListDocumentsEndpoint{}
	_, _, handler := e.Route()

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/api/documents", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestGetPolicy_DefaultWhenUnset(t *testing.T) {
	services := servicesWith(t, map[string]string{
		"RoutingPolicy": `{"data": {"RoutingPolicy": []}}`,
	})

	e := &GetPolicyEndpoint{}
	_, _, handler := e.Route()

	rec := httptest.NewRecorder()
	handler(rec, request("GET", "/api/policy?tenant=t1", nil, services))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp PolicyResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Policy.ReviewMode != types.ReviewSmart {
		t.Errorf("ReviewMode = %q, want smart", resp.Policy.ReviewMode)
	}
	if resp.Policy.ConfidenceThreshold != 0.85 {
		t.Errorf("ConfidenceThreshold = %v, want 0.85", resp.Policy.ConfidenceThreshold)
	}
}

func TestUpdatePolicy_Validation(t *testing.T) {
	services := servicesWith(t, nil)

	e := &UpdatePolicyEndpoint{}
	_, _, handler := e.Route()

	tests := []struct {
		name string
		body string
	}{
		{"bad mode", `{"review_mode": "sometimes", "tier": "standard", "confidence_threshold": 0.8}`},
		{"bad tier", `{"review_mode": "smart", "tier": "platinum", "confidence_threshold": 0.8}`},
		{"threshold out of range", `{"review_mode": "smart", "tier": "standard", "confidence_threshold": 1.5}`},
		{"audit rate out of range", `{"review_mode": "smart", "tier": "standard", "confidence_threshold": 0.8, "audit_rate": 2}`},
		{"not json", `nope`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler(rec, request("PUT", "/api/policy", strings.NewReader(tt.body), services))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestUpdatePolicy_Persists(t *testing.T) {
	services := servicesWith(t, map[string]string{
		"upsert_RoutingPolicy": `{"data": {"upsert_RoutingPolicy": [{"_docID": "bae-p1"}]}}`,
	})

	e := &UpdatePolicyEndpoint{}
	_, _, handler := e.Route()

	body := `{"review_mode": "review_all", "tier": "premium", "confidence_threshold": 0.9}`
	rec := httptest.NewRecorder()
	handler(rec, request("PUT", "/api/policy?tenant=t1", strings.NewReader(body), services))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp PolicyResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Policy.ReviewMode != types.ReviewAll {
		t.Errorf("ReviewMode = %q, want review_all", resp.Policy.ReviewMode)
	}
	if resp.Policy.TenantID != "t1" {
		t.Errorf("TenantID = %q, want t1", resp.Policy.TenantID)
	}
}

func TestSubmitCorrection_Validation(t *testing.T) {
	services := servicesWith(t, nil)

	e := &SubmitCorrectionEndpoint{}
	_, _, handler := e.Route()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing field name", `{"value": "x"}`, http.StatusBadRequest},
		{"unknown method", `{"field_name": "amount", "value": "x", "method": "telepathy"}`, http.StatusBadRequest},
		{"not json", `nope`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := request("POST", "/api/documents/doc-1/corrections", strings.NewReader(tt.body), services)
			req.SetPathValue("id", "doc-1")
			rec := httptest.NewRecorder()
			handler(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestSubmitCorrection_InvalidState(t *testing.T) {
	// Completed documents no longer accept corrections.
	services := servicesWith(t, map[string]string{
		"Document": `{"data": {"Document": [{"_docID": "doc-1", "tenant_id": "t1", "status": "completed"}]}}`,
	})

	e := &SubmitCorrectionEndpoint{}
	_, _, handler := e.Route()

	body := `{"field_name": "amount", "value": "$10.00"}`
	req := request("POST", "/api/documents/doc-1/corrections?tenant=t1", strings.NewReader(body), services)
	req.SetPathValue("id", "doc-1")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d, body = %s", rec.Code, http.StatusConflict, rec.Body.String())
	}
}

func TestCancelBatch_NotFound(t *testing.T) {
	services := servicesWith(t, map[string]string{
		"Batch": `{"data": {"Batch": []}}`,
	})

	e := &CancelBatchEndpoint{}
	_, _, handler := e.Route()

	req := request("POST", "/api/batches/b-missing/cancel", nil, services)
	req.SetPathValue("id", "b-missing")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestFieldViews_AppliesLedger(t *testing.T) {
	fields := []types.ExtractedField{
		{Name: "amount", Value: "$12O.00", Confidence: 0.5},
		{Name: "vendor", Value: "Acme Corp", Confidence: 0.75},
	}
	corrections := []types.Correction{
		{FieldName: "amount", CorrectedValue: "$120.00"},
	}

	views := fieldViews(fields, corrections)
	if len(views) != 2 {
		t.Fatalf("views = %d, want 2", len(views))
	}
	if !views[0].Corrected || views[0].Value != "$120.00" || views[0].Confidence != 1.0 {
		t.Errorf("corrected view = %+v", views[0])
	}
	if views[0].OriginalValue != "$12O.00" {
		t.Errorf("OriginalValue = %q", views[0].OriginalValue)
	}
	if views[1].Corrected {
		t.Errorf("vendor unexpectedly marked corrected")
	}
}

func TestAllEndpointsHaveRoutes(t *testing.T) {
	seen := make(map[string]bool)
	for _, ep := range All(Config{}) {
		method, path, handler := ep.Route()
		if method == "" || path == "" || handler == nil {
			t.Errorf("endpoint %T has incomplete route", ep)
		}
		key := method + " " + path
		if seen[key] {
			t.Errorf("duplicate route %s", key)
		}
		seen[key] = true

		if cmd := ep.Command(func() string { return "http://localhost:8080" }); cmd == nil {
			t.Errorf("endpoint %T has no command", ep)
		}
	}
}
