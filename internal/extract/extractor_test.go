package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func extractionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"id": "test-id",
			"choices": []map[string]any{
				{
					"message":       map[string]any{"role": "assistant", "content": content},
					"finish_reason": "stop",
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestExtractor(t *testing.T, serverURL string) *LLMExtractor {
	t.Helper()
	e, err := New(Config{APIKey: "test-key", BaseURL: serverURL})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return e
}

func TestClassifyAndExtract(t *testing.T) {
	content := `{"doc_type": "invoice", "fields": {"vendor": "Acme Corp", "amount": "$120.00", "document_number": "INV-01"}, "line_items": [{"description": "Widget", "qty": "2", "price": "$60.00"}]}`
	server := extractionServer(t, content)
	defer server.Close()

	e := newTestExtractor(t, server.URL)
	result, err := e.ClassifyAndExtract(context.Background(), "INVOICE INV-01 Acme Corp $120.00")
	if err != nil {
		t.Fatalf("ClassifyAndExtract() error: %v", err)
	}

	if result.DocType != "invoice" {
		t.Errorf("doc_type = %q, want invoice", result.DocType)
	}
	if result.Fields["vendor"] != "Acme Corp" {
		t.Errorf("vendor = %q, want Acme Corp", result.Fields["vendor"])
	}
	if len(result.LineItems) != 1 {
		t.Fatalf("line items = %d, want 1", len(result.LineItems))
	}
	if result.LineItems[0]["qty"] != "2" {
		t.Errorf("qty = %q, want 2", result.LineItems[0]["qty"])
	}
}

func TestClassifyAndExtractStripsCodeFences(t *testing.T) {
	content := "```json\n{\"doc_type\": \"receipt\", \"fields\": {\"amount\": \"9.99\"}}\n```"
	server := extractionServer(t, content)
	defer server.Close()

	e := newTestExtractor(t, server.URL)
	result, err := e.ClassifyAndExtract(context.Background(), "receipt text")
	if err != nil {
		t.Fatalf("ClassifyAndExtract() error: %v", err)
	}
	if result.DocType != "receipt" {
		t.Errorf("doc_type = %q, want receipt", result.DocType)
	}
}

func TestClassifyAndExtractRejectsInvalidShape(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing doc_type", `{"fields": {"vendor": "Acme"}}`},
		{"non-string field value", `{"doc_type": "invoice", "fields": {"amount": 120}}`},
		{"not json at all", "the document appears to be an invoice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := extractionServer(t, tt.content)
			defer server.Close()

			e := newTestExtractor(t, server.URL)
			if _, err := e.ClassifyAndExtract(context.Background(), "text"); err == nil {
				t.Error("expected error for invalid output shape")
			}
		})
	}
}

func TestClassifyAndExtractEmptyText(t *testing.T) {
	e := newTestExtractor(t, "http://127.0.0.1:0")
	if _, err := e.ClassifyAndExtract(context.Background(), "  "); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestParseStructuredJSONRecovery(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"plain object", `{"a": 1}`, false},
		{"fenced object", "```json\n{\"a\": 1}\n```", false},
		{"prose wrapped", `Here is the result: {"a": 1} as requested.`, false},
		{"empty", "", true},
		{"no json", "nothing here", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseStructuredJSON(tt.content)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseStructuredJSON(%q) error = %v, wantErr %v", tt.content, err, tt.wantErr)
			}
		})
	}
}
