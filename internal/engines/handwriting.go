package engines

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

const (
	HandwritingEngineName         = "vision-handwriting"
	handwritingDefaultModel       = "gpt-4o"
	handwritingDefaultRPM         = 60
	handwritingTranscriptionInstr = `Transcribe all text in this scanned document image exactly as written, including handwritten content. Preserve line breaks. Output only the transcription with no commentary. If a word is illegible, write [illegible].`
)

// HandwritingConfig holds configuration for the handwriting engine.
type HandwritingConfig struct {
	APIKey     string
	Model      string
	BaseURL    string // Optional (tests)
	Timeout    time.Duration
	RateLimit  int // Requests per minute
	HTTPClient *http.Client
}

// HandwritingEngine is the handwriting-capable engine: a vision language
// model asked for a verbatim transcription. Reserved for tenants whose
// tier includes it.
type HandwritingEngine struct {
	model     string
	rateLimit int
	client    openai.Client
	hasKey    bool
}

// NewHandwritingEngine creates a new vision transcription engine using
// the OpenAI SDK.
func NewHandwritingEngine(cfg HandwritingConfig) *HandwritingEngine {
	if cfg.Model == "" {
		cfg.Model = handwritingDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = handwritingDefaultRPM
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

	return &HandwritingEngine{
		model:     cfg.Model,
		rateLimit: cfg.RateLimit,
		client:    openai.NewClient(opts...),
		hasKey:    cfg.APIKey != "",
	}
}

// Name returns the adapter identifier.
func (e *HandwritingEngine) Name() string { return HandwritingEngineName }

// Kind returns the engine variant.
func (e *HandwritingEngine) Kind() types.EngineKind { return types.EngineHandwriting }

// RequestsPerMinute returns the rate limit for the vision model.
func (e *HandwritingEngine) RequestsPerMinute() int { return e.rateLimit }

// Extract transcribes one page image through the vision model.
func (e *HandwritingEngine) Extract(ctx context.Context, image []byte) (*Result, error) {
	if !e.hasKey {
		return nil, fmt.Errorf("%w: %s requires an API key", ErrNotConfigured, HandwritingEngineName)
	}
	start := time.Now()

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)

	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(handwritingTranscriptionInstr),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL,
				}),
			}),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return nil, fmt.Errorf("vision transcription failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", ErrEmptyOutput)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)

	// The model reports no confidence; penalize the validity score for
	// every word the model itself could not read.
	conf := ValidityScore(text)
	if n := strings.Count(strings.ToLower(text), "[illegible]"); n > 0 {
		conf *= 1.0 - float64(n)*0.05
		if conf < 0 {
			conf = 0
		}
	}

	return &Result{
		Text:          text,
		Confidence:    conf,
		Engine:        HandwritingEngineName,
		ExecutionTime: time.Since(start),
	}, nil
}
