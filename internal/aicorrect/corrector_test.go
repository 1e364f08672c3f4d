package aicorrect

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// chatServer returns an httptest server that answers every chat
// completion with the given content.
func chatServer(t *testing.T, content string) *httptest.Server {
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

func TestCorrectRepairsText(t *testing.T) {
	original := "INV0ICE #l23\nAcme C0rp\nT0tal: $l20.00"
	repaired := "INVOICE #123\nAcme Corp\nTotal: $120.00"

	server := chatServer(t, repaired)
	defer server.Close()

	c := New(Config{APIKey: "test-key", BaseURL: server.URL})
	got, err := c.Correct(context.Background(), original, "invoice", 0.55)
	if err != nil {
		t.Fatalf("Correct() error: %v", err)
	}
	if got != repaired {
		t.Errorf("Correct() = %q, want %q", got, repaired)
	}
}

func TestCorrectRejectsLineCountChange(t *testing.T) {
	original := "line one\nline two\nline three"

	// Model collapsed the text into one line: invented structure.
	server := chatServer(t, "line one line two line three")
	defer server.Close()

	c := New(Config{APIKey: "test-key", BaseURL: server.URL})
	got, err := c.Correct(context.Background(), original, "", 0.5)
	if err != nil {
		t.Fatalf("Correct() error: %v", err)
	}
	if got != original {
		t.Errorf("Correct() = %q, want original preserved", got)
	}
}

func TestCorrectRejectsLengthDrift(t *testing.T) {
	original := "short line"

	server := chatServer(t, "short line plus a whole paragraph of invented content that was never in the scan")
	defer server.Close()

	c := New(Config{APIKey: "test-key", BaseURL: server.URL})
	got, err := c.Correct(context.Background(), original, "", 0.5)
	if err != nil {
		t.Fatalf("Correct() error: %v", err)
	}
	if got != original {
		t.Errorf("Correct() = %q, want original preserved", got)
	}
}

func TestCorrectEmptyInputPassesThrough(t *testing.T) {
	c := New(Config{APIKey: "test-key", BaseURL: "http://127.0.0.1:0"})
	got, err := c.Correct(context.Background(), "   ", "", 0.5)
	if err != nil {
		t.Fatalf("Correct() error: %v", err)
	}
	if got != "   " {
		t.Errorf("Correct() = %q, want input unchanged", got)
	}
}
