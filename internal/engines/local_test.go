package engines

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLocalEngine_Extract(t *testing.T) {
	t.Run("successful extraction", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/ocr" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if r.Method != "POST" {
				t.Errorf("unexpected method: %s", r.Method)
			}

			var req localOCRRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
			if req.Image == "" {
				t.Error("expected base64 image in request")
			}
			if req.Language != "eng" {
				t.Errorf("unexpected language: %s", req.Language)
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(localOCRResponse{
				Text:       "INVOICE #123\nAcme Corp\nTotal: $120.00",
				Confidence: 87.5,
			})
		}))
		defer server.Close()

		engine := NewLocalEngine(LocalConfig{BaseURL: server.URL})

		result, err := engine.Extract(context.Background(), []byte("fake-image"))
		if err != nil {
			t.Fatalf("Extract() error: %v", err)
		}
		if result.Text != "INVOICE #123\nAcme Corp\nTotal: $120.00" {
			t.Errorf("unexpected text: %q", result.Text)
		}
		if result.Confidence != 0.875 {
			t.Errorf("confidence = %v, want 0.875", result.Confidence)
		}
		if result.Engine != LocalEngineName {
			t.Errorf("engine = %q, want %q", result.Engine, LocalEngineName)
		}
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "internal error", http.StatusInternalServerError)
		}))
		defer server.Close()

		engine := NewLocalEngine(LocalConfig{BaseURL: server.URL})
		if _, err := engine.Extract(context.Background(), []byte("img")); err == nil {
			t.Error("expected error for 500 response")
		}
	})

	t.Run("zero confidence falls back to validity score", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(localOCRResponse{
				Text: "Invoice from Acme Corp dated March 15, 2024 for $120.00",
			})
		}))
		defer server.Close()

		engine := NewLocalEngine(LocalConfig{BaseURL: server.URL})
		result, err := engine.Extract(context.Background(), []byte("img"))
		if err != nil {
			t.Fatalf("Extract() error: %v", err)
		}
		if result.Confidence <= 0 {
			t.Errorf("confidence = %v, want validity-derived > 0", result.Confidence)
		}
	})
}

func TestPremiumEngine_Extract(t *testing.T) {
	t.Run("successful extraction", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/ocr" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
				t.Errorf("unexpected authorization: %s", auth)
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"model": PremiumEngineModel,
				"pages": []map[string]any{
					{"index": 0, "markdown": "# INVOICE\n\nAcme Corp, total $120.00 due 2024-03-15"},
				},
			})
		}))
		defer server.Close()

		engine := NewPremiumEngine(PremiumConfig{APIKey: "test-key", BaseURL: server.URL})

		result, err := engine.Extract(context.Background(), []byte("fake-image"))
		if err != nil {
			t.Fatalf("Extract() error: %v", err)
		}
		if result.Text == "" {
			t.Error("expected non-empty text")
		}
		if result.Confidence <= 0.5 {
			t.Errorf("confidence = %v, want > 0.5 for clean text", result.Confidence)
		}
	})

	t.Run("missing api key", func(t *testing.T) {
		engine := NewPremiumEngine(PremiumConfig{})
		if _, err := engine.Extract(context.Background(), []byte("img")); err == nil {
			t.Error("expected ErrNotConfigured without API key")
		}
	})

	t.Run("no pages", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"pages": []any{}})
		}))
		defer server.Close()

		engine := NewPremiumEngine(PremiumConfig{APIKey: "k", BaseURL: server.URL})
		if _, err := engine.Extract(context.Background(), []byte("img")); err == nil {
			t.Error("expected error for empty pages")
		}
	})
}

func TestMockEngineCounting(t *testing.T) {
	mock := NewMockEngine()
	mock.FailAfter = 2

	for i := 0; i < 2; i++ {
		if _, err := mock.Extract(context.Background(), nil); err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}
	if _, err := mock.Extract(context.Background(), nil); err == nil {
		t.Error("expected failure after FailAfter requests")
	}
	if mock.CallCount() != 3 {
		t.Errorf("CallCount() = %d, want 3", mock.CallCount())
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	mock := NewMockEngine()
	r.Register(mock)

	got, err := r.Get(mock.Kind())
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Name() != mock.Name() {
		t.Errorf("Get() = %q, want %q", got.Name(), mock.Name())
	}
	if !r.Has(mock.Kind()) {
		t.Error("Has() = false after Register")
	}
	if r.Limiter(mock.Kind()) == nil {
		t.Error("Limiter() = nil after Register")
	}

	r.Unregister(mock.Kind())
	if r.Has(mock.Kind()) {
		t.Error("Has() = true after Unregister")
	}
	if len(r.Enabled()) != 0 {
		t.Errorf("Enabled() = %v, want empty", r.Enabled())
	}
}
