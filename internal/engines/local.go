package engines

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

const (
	LocalEngineName       = "tesseract-local"
	LocalEngineDefaultURL = "http://127.0.0.1:8884"

	// Self-hosted service, effectively unmetered.
	localDefaultRPM = 600
)

// LocalConfig holds configuration for the local OCR service client.
type LocalConfig struct {
	BaseURL   string
	Language  string
	Timeout   time.Duration
	RateLimit int // Requests per minute
}

// LocalEngine is the local/free engine: a self-hosted Tesseract OCR
// service reached over HTTP.
type LocalEngine struct {
	baseURL   string
	language  string
	rateLimit int
	client    *http.Client
}

// NewLocalEngine creates a client for the local OCR service.
func NewLocalEngine(cfg LocalConfig) *LocalEngine {
	if cfg.BaseURL == "" {
		cfg.BaseURL = LocalEngineDefaultURL
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = localDefaultRPM
	}

	return &LocalEngine{
		baseURL:   cfg.BaseURL,
		language:  cfg.Language,
		rateLimit: cfg.RateLimit,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name returns the adapter identifier.
func (e *LocalEngine) Name() string { return LocalEngineName }

// Kind returns the engine variant.
func (e *LocalEngine) Kind() types.EngineKind { return types.EngineLocal }

// RequestsPerMinute returns the rate limit for the local service.
func (e *LocalEngine) RequestsPerMinute() int { return e.rateLimit }

type localOCRRequest struct {
	Image    string `json:"image"` // base64
	Language string `json:"language,omitempty"`
}

type localOCRResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // 0-100 from tesseract
	Error      string  `json:"error,omitempty"`
}

// Extract runs OCR via the local service.
func (e *LocalEngine) Extract(ctx context.Context, image []byte) (*Result, error) {
	start := time.Now()

	reqBody := localOCRRequest{
		Image:    base64.StdEncoding.EncodeToString(image),
		Language: e.language,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/ocr", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("local ocr request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("local ocr error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var ocrResp localOCRResponse
	if err := json.Unmarshal(respBody, &ocrResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if ocrResp.Error != "" {
		return nil, fmt.Errorf("local ocr failed: %s", ocrResp.Error)
	}

	// Tesseract reports mean word confidence on a 0-100 scale.
	conf := ocrResp.Confidence / 100.0
	if conf <= 0 {
		conf = ValidityScore(ocrResp.Text)
	}
	if conf > 1 {
		conf = 1
	}

	return &Result{
		Text:          ocrResp.Text,
		Confidence:    conf,
		Engine:        LocalEngineName,
		ExecutionTime: time.Since(start),
	}, nil
}
