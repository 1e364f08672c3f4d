// Package aicorrect repairs low-confidence OCR text with a narrow,
// format-preserving language model prompt.
//
// The corrector fixes character-level OCR damage only. It never invents
// content: output that changes the line structure or drifts too far in
// length is discarded in favor of the raw OCR text.
package aicorrect

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultModel = "gpt-4o-mini"

	// maxLengthDrift bounds how far corrected text may drift from the
	// original length before it is rejected as invented content.
	maxLengthDrift = 0.25

	systemPrompt = `You repair OCR output from scanned business documents. Fix obvious character recognition errors (0/O, 1/l/I, 5/S, rn/m) and broken words. Preserve every line break exactly. Do not add, remove, reorder, or summarize content. Do not add commentary. Output only the repaired text.`
)

// Config holds configuration for the corrector.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string // Optional (tests)
	Timeout    time.Duration
	HTTPClient *http.Client // Optional (tests)
	Logger     *slog.Logger
}

// Corrector calls the language model for format-preserving text repair.
type Corrector struct {
	model  string
	client openai.Client
	logger *slog.Logger
}

// New creates a corrector using the OpenAI SDK.
func New(cfg Config) *Corrector {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Corrector{
		model:  cfg.Model,
		client: openai.NewClient(opts...),
		logger: cfg.Logger,
	}
}

// Correct asks the model to repair text, then verifies the repaired text
// still has the same shape. If verification fails the original text is
// returned unchanged.
func (c *Corrector) Correct(ctx context.Context, text, docType string, confidence float64) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	user := text
	if docType != "" {
		user = fmt.Sprintf("Document type: %s\n\n%s", docType, text)
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("correction request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in correction response")
	}

	corrected := strings.TrimRight(resp.Choices[0].Message.Content, "\n")
	original := strings.TrimRight(text, "\n")

	if !preservesShape(original, corrected) {
		c.logger.Warn("ai correction rejected, shape not preserved",
			"original_lines", lineCount(original),
			"corrected_lines", lineCount(corrected),
			"original_len", len(original),
			"corrected_len", len(corrected))
		return text, nil
	}
	return corrected, nil
}

// preservesShape checks the format-preservation contract: identical line
// count and a length within maxLengthDrift of the original.
func preservesShape(original, corrected string) bool {
	if corrected == "" {
		return false
	}
	if lineCount(original) != lineCount(corrected) {
		return false
	}
	lo := float64(len(original))
	lc := float64(len(corrected))
	return lc >= lo*(1-maxLengthDrift) && lc <= lo*(1+maxLengthDrift)
}

func lineCount(s string) int {
	return strings.Count(s, "\n") + 1
}
