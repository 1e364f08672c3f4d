package engines

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

const MockEngineName = "mock"

// MockEngine is an Engine for testing.
type MockEngine struct {
	// Configurable behavior
	EngineName string
	EngineKind types.EngineKind
	Latency    time.Duration
	ShouldFail bool
	FailAfter  int // Fail after N requests (0 = never)
	Text       string
	Confidence float64
	RPM        int

	// State
	requestCount atomic.Int64
}

// NewMockEngine creates a mock engine with sensible defaults.
func NewMockEngine() *MockEngine {
	return &MockEngine{
		EngineName: MockEngineName,
		EngineKind: types.EngineLocal,
		Text:       "mock extracted text with enough characters to pass validity",
		Confidence: 0.9,
		RPM:        600,
	}
}

// Name returns the configured engine name.
func (e *MockEngine) Name() string {
	if e.EngineName == "" {
		return MockEngineName
	}
	return e.EngineName
}

// Kind returns the configured engine variant.
func (e *MockEngine) Kind() types.EngineKind { return e.EngineKind }

// RequestsPerMinute returns the configured rate limit.
func (e *MockEngine) RequestsPerMinute() int {
	if e.RPM <= 0 {
		return 600
	}
	return e.RPM
}

// CallCount returns how many Extract calls the mock has served.
func (e *MockEngine) CallCount() int64 {
	return e.requestCount.Load()
}

// Extract returns the configured canned result.
func (e *MockEngine) Extract(ctx context.Context, image []byte) (*Result, error) {
	count := e.requestCount.Add(1)

	if e.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.Latency):
		}
	}

	if e.ShouldFail || (e.FailAfter > 0 && count > int64(e.FailAfter)) {
		return nil, fmt.Errorf("mock engine %s failure (request %d)", e.Name(), count)
	}

	return &Result{
		Text:       e.Text,
		Confidence: e.Confidence,
		Engine:     e.Name(),
	}, nil
}
