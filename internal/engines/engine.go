// Package engines provides the uniform adapter interface over every OCR
// backend, plus the registry the router selects from.
//
// Each engine is an opaque remote call: image in, raw text and a provider
// confidence out. Retry and fallback policy live in the router, not here.
package engines

import (
	"context"
	"errors"
	"time"

	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

// Sentinel errors for the engines package.
var (
	// ErrNotConfigured is returned when an engine is selected but its
	// backend is missing required configuration (endpoint, API key).
	ErrNotConfigured = errors.New("engine not configured")

	// ErrEmptyOutput is returned when the backend answered but produced
	// no usable text at all.
	ErrEmptyOutput = errors.New("engine returned empty output")
)

// Result is the output of one extraction call.
type Result struct {
	Text string

	// Confidence is the provider's own estimate in [0,1]. Backends that
	// report nothing get a validity score computed from the text shape.
	Confidence float64

	Engine        string
	ExecutionTime time.Duration
}

// Engine is the uniform contract every OCR backend adapter implements.
type Engine interface {
	// Name returns the adapter identifier (e.g. "tesseract-local").
	Name() string

	// Kind returns which of the closed engine variants this adapter is.
	Kind() types.EngineKind

	// Extract runs OCR on one page image. The call must respect ctx
	// cancellation; the router bounds it with a per-stage timeout.
	Extract(ctx context.Context, image []byte) (*Result, error)

	// RequestsPerMinute is the rate limit budget for this backend.
	RequestsPerMinute() int
}
