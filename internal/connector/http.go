package connector

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

// HTTPConnector talks to a REST document repository:
//
//	GET  {base}/targets/{target}/schema          -> ordered field descriptors
//	POST {base}/targets/{target}/documents       -> {remote_id, timestamp}
type HTTPConnector struct {
	name       string
	baseURL    string
	apiKey     string
	targetID   string
	httpClient *http.Client
}

// HTTPConfig configures the REST connector.
type HTTPConfig struct {
	Name     string
	BaseURL  string
	APIKey   string
	TargetID string
	Timeout  time.Duration
}

// NewHTTP creates a REST repository connector.
func NewHTTP(cfg HTTPConfig) *HTTPConnector {
	if cfg.Name == "" {
		cfg.Name = "http-repository"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &HTTPConnector{
		name:     cfg.Name,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		targetID: cfg.TargetID,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name returns the connector identifier used in stored mappings.
func (c *HTTPConnector) Name() string {
	return c.name
}

// DefaultTarget returns the configured target repository id.
func (c *HTTPConnector) DefaultTarget() string {
	return c.targetID
}

type schemaResponse struct {
	TargetID string                  `json:"target_id"`
	Fields   []types.FieldDescriptor `json:"fields"`
}

// ListSchema fetches the destination schema. Always live; declaration
// order in the response is preserved for mapping tie-breaks.
func (c *HTTPConnector) ListSchema(ctx context.Context, targetID string) (types.DestinationSchema, error) {
	if c.baseURL == "" {
		return types.DestinationSchema{}, ErrNotConfigured
	}
	if targetID == "" {
		targetID = c.targetID
	}

	url := fmt.Sprintf("%s/targets/%s/schema", c.baseURL, targetID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return types.DestinationSchema{}, err
	}
	c.auth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.DestinationSchema{}, fmt.Errorf("schema request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return types.DestinationSchema{}, fmt.Errorf("schema request failed (status %d): %s", resp.StatusCode, string(body))
	}

	var decoded schemaResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return types.DestinationSchema{}, fmt.Errorf("failed to decode schema: %w", err)
	}

	return types.DestinationSchema{
		TargetID: decoded.TargetID,
		Fields:   decoded.Fields,
	}, nil
}

type uploadPayload struct {
	DocumentID      string         `json:"document_id"`
	FileName        string         `json:"file_name"`
	Fields          map[string]any `json:"fields"`
	MissingRequired []string       `json:"missing_required,omitempty"`
	Binary          string         `json:"binary,omitempty"` // base64
}

type uploadResponse struct {
	RemoteID  string    `json:"remote_id"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

// Upload pushes one document. Exactly one attempt; a 4xx response
// surfaces as ErrRejected with the destination's reason preserved.
func (c *HTTPConnector) Upload(ctx context.Context, upReq UploadRequest) (UploadResult, error) {
	if c.baseURL == "" {
		return UploadResult{}, ErrNotConfigured
	}

	payload := uploadPayload{
		DocumentID:      upReq.Document.ID,
		FileName:        upReq.FileName,
		Fields:          upReq.Values,
		MissingRequired: upReq.MissingRequired,
	}
	if len(upReq.Binary) > 0 {
		payload.Binary = base64.StdEncoding.EncodeToString(upReq.Binary)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/targets/%s/documents", c.baseURL, c.targetID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.auth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to read response: %w", err)
	}

	var decoded uploadResponse
	if len(respBody) > 0 {
		_ = json.Unmarshal(respBody, &decoded)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if decoded.RemoteID == "" {
			return UploadResult{}, fmt.Errorf("destination returned no remote id")
		}
		if decoded.Timestamp.IsZero() {
			decoded.Timestamp = time.Now().UTC()
		}
		return UploadResult{RemoteID: decoded.RemoteID, Timestamp: decoded.Timestamp}, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		reason := decoded.Error
		if reason == "" {
			reason = strings.TrimSpace(string(respBody))
		}
		return UploadResult{}, fmt.Errorf("%w: %s", ErrRejected, reason)
	default:
		return UploadResult{}, fmt.Errorf("upload failed (status %d): %s", resp.StatusCode, string(respBody))
	}
}

func (c *HTTPConnector) auth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
