package engines

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

const (
	PremiumEngineName    = "mistral-ocr"
	PremiumEngineBaseURL = "https://api.mistral.ai/v1"
	PremiumEngineModel   = "mistral-ocr-latest"

	premiumDefaultRPM = 360
)

// PremiumConfig holds configuration for the premium cloud OCR client.
type PremiumConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	Timeout   time.Duration
	RateLimit int // Requests per minute
}

// PremiumEngine is the premium cloud engine, backed by the Mistral OCR
// API.
type PremiumEngine struct {
	apiKey    string
	baseURL   string
	model     string
	rateLimit int
	client    *http.Client
}

// NewPremiumEngine creates a new Mistral OCR client.
func NewPremiumEngine(cfg PremiumConfig) *PremiumEngine {
	if cfg.BaseURL == "" {
		cfg.BaseURL = PremiumEngineBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = PremiumEngineModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = premiumDefaultRPM
	}

	return &PremiumEngine{
		apiKey:    cfg.APIKey,
		baseURL:   cfg.BaseURL,
		model:     cfg.Model,
		rateLimit: cfg.RateLimit,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name returns the adapter identifier.
func (e *PremiumEngine) Name() string { return PremiumEngineName }

// Kind returns the engine variant.
func (e *PremiumEngine) Kind() types.EngineKind { return types.EnginePremium }

// RequestsPerMinute returns the rate limit for the Mistral OCR API.
func (e *PremiumEngine) RequestsPerMinute() int { return e.rateLimit }

type mistralOCRRequest struct {
	Model    string          `json:"model"`
	Document mistralDocument `json:"document"`
}

type mistralDocument struct {
	Type     string           `json:"type"`
	ImageURL *mistralImageURL `json:"image_url,omitempty"`
}

type mistralImageURL struct {
	URL string `json:"url"`
}

type mistralOCRResponse struct {
	Model string            `json:"model"`
	Pages []mistralOCRPage  `json:"pages"`
	Usage *mistralOCRUsage  `json:"usage_info,omitempty"`
}

type mistralOCRPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

type mistralOCRUsage struct {
	PagesProcessed int `json:"pages_processed"`
}

// Extract runs OCR on one page image via the Mistral OCR API.
// Mistral reports no confidence of its own, so the provider confidence is
// a validity score over the returned text.
func (e *PremiumEngine) Extract(ctx context.Context, image []byte) (*Result, error) {
	if e.apiKey == "" {
		return nil, fmt.Errorf("%w: %s requires an API key", ErrNotConfigured, PremiumEngineName)
	}
	start := time.Now()

	imageBase64 := base64.StdEncoding.EncodeToString(image)
	reqBody := mistralOCRRequest{
		Model: e.model,
		Document: mistralDocument{
			Type: "image_url",
			ImageURL: &mistralImageURL{
				URL: "data:image/png;base64," + imageBase64,
			},
		},
	}

	resp, err := e.doRequest(ctx, "/ocr", reqBody)
	if err != nil {
		return nil, err
	}
	if len(resp.Pages) == 0 {
		return nil, fmt.Errorf("%w: no pages in OCR response", ErrEmptyOutput)
	}

	var sb strings.Builder
	for i, page := range resp.Pages {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(page.Markdown)
	}
	text := sb.String()

	return &Result{
		Text:          text,
		Confidence:    ValidityScore(text),
		Engine:        PremiumEngineName,
		ExecutionTime: time.Since(start),
	}, nil
}

func (e *PremiumEngine) doRequest(ctx context.Context, path string, body any) (*mistralOCRResponse, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mistral ocr request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mistral ocr error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var ocrResp mistralOCRResponse
	if err := json.Unmarshal(respBody, &ocrResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &ocrResp, nil
}
