// Package extract classifies document text and pulls a sparse semantic
// field map from it using a language model with structured output.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

const (
	defaultModel = "gpt-4o-mini"

	systemPrompt = `You classify scanned business documents and extract their fields. Given OCR text, respond with JSON only:
{"doc_type": "<invoice|receipt|purchase_order|statement|contract|other>",
 "fields": {"<field_name>": "<value>", ...},
 "line_items": [{"<column>": "<value>", ...}, ...]}
Use lowercase snake_case field names (vendor, amount, date, invoice_number, email, due_date, tax, subtotal). Only include fields actually present in the text. Values are strings exactly as printed. Omit line_items when the document has no table.`
)

// schemaJSON validates the model's structured output before it is trusted.
const schemaJSON = `{
	"type": "object",
	"properties": {
		"doc_type": {"type": "string", "minLength": 1},
		"fields": {
			"type": "object",
			"additionalProperties": {"type": "string"}
		},
		"line_items": {
			"type": "array",
			"items": {
				"type": "object",
				"additionalProperties": {"type": "string"}
			}
		}
	},
	"required": ["doc_type", "fields"]
}`

// Result is one extraction pass over a document's text.
type Result struct {
	DocType   string              `json:"doc_type"`
	Fields    map[string]string   `json:"fields"`
	LineItems []map[string]string `json:"line_items,omitempty"`
}

// Extractor is the contract the pipeline depends on.
type Extractor interface {
	// ClassifyAndExtract turns corrected OCR text into a document type
	// and a sparse field map.
	ClassifyAndExtract(ctx context.Context, text string) (*Result, error)
}

// Config holds configuration for the LLM extractor.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string // Optional (tests)
	Timeout    time.Duration
	HTTPClient *http.Client // Optional (tests)
	Logger     *slog.Logger
}

// LLMExtractor implements Extractor using the OpenAI SDK with local
// schema validation of the structured output.
type LLMExtractor struct {
	model  string
	client openai.Client
	schema *jsonschema.Schema
	logger *slog.Logger
}

// New creates an LLM-backed extractor.
func New(cfg Config) (*LLMExtractor, error) {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	schema, err := jsonschema.CompileString("extraction.json", schemaJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to compile extraction schema: %w", err)
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

	return &LLMExtractor{
		model:  cfg.Model,
		client: openai.NewClient(opts...),
		schema: schema,
		logger: cfg.Logger,
	}, nil
}

// ClassifyAndExtract runs one extraction pass.
func (e *LLMExtractor) ClassifyAndExtract(ctx context.Context, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text to extract from")
	}

	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(text),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in extraction response")
	}

	return e.parseResult(resp.Choices[0].Message.Content)
}

// parseResult recovers, validates, and decodes the model's JSON output.
func (e *LLMExtractor) parseResult(content string) (*Result, error) {
	raw, err := parseStructuredJSON(content)
	if err != nil {
		return nil, fmt.Errorf("extraction output is not JSON: %w", err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("failed to decode extraction output: %w", err)
	}
	if err := e.schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("extraction output failed schema validation: %w", err)
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode extraction result: %w", err)
	}
	if result.Fields == nil {
		result.Fields = make(map[string]string)
	}

	// The line items array travels under its reserved name; keep the
	// scalar field map free of it.
	delete(result.Fields, types.ReservedLineItemsField)

	return &result, nil
}
