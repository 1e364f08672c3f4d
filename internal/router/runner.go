package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dweliw01/DocuFlow-sub000/internal/engines"
	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

// ErrExtractionFailed is the terminal error after the whole fallback
// chain is exhausted. It is never auto-retried; the document keeps its
// raw file for manual re-submission.
var ErrExtractionFailed = errors.New("extraction failed")

// Corrector repairs low-confidence OCR text. It must preserve line breaks
// and approximate length and must not invent content; the runner applies
// it at most once per document.
type Corrector interface {
	Correct(ctx context.Context, text, docType string, confidence float64) (string, error)
}

// Config tunes the runner's thresholds.
type Config struct {
	// ValidityFloor is the confidence below which output is rejected and
	// the next fallback is tried (default 0.30).
	ValidityFloor float64

	// CorrectionThreshold: output above the floor but below this routes
	// once through the AI correction layer, tier permitting (default 0.75).
	CorrectionThreshold float64

	// CallTimeout bounds each individual engine call (default 2m).
	CallTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.ValidityFloor <= 0 {
		c.ValidityFloor = 0.30
	}
	if c.CorrectionThreshold <= 0 {
		c.CorrectionThreshold = 0.75
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 2 * time.Minute
	}
}

// Outcome is the result of running a route to completion.
type Outcome struct {
	Text        string
	Confidence  float64
	Engine      string
	Kind        types.EngineKind
	Attempts    int
	AICorrected bool
}

// Runner executes routing decisions against the engine registry.
type Runner struct {
	registry  *engines.Registry
	corrector Corrector // may be nil
	cfg       Config
	logger    *slog.Logger
}

// NewRunner creates a fallback chain runner. corrector may be nil to
// disable the AI correction layer entirely.
func NewRunner(registry *engines.Registry, corrector Corrector, cfg Config, logger *slog.Logger) *Runner {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		registry:  registry,
		corrector: corrector,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run tries each engine in the route in order until one produces output
// above the validity floor. A transient engine failure (error or timeout)
// advances the chain the same way invalid output does. Exhausting the
// chain is terminal: ErrExtractionFailed, no further retries.
func (r *Runner) Run(ctx context.Context, route Route, tier types.Tier, image []byte) (*Outcome, error) {
	var lastErr error
	attempts := 0

	for _, kind := range route.Chain() {
		engine, err := r.registry.Get(kind)
		if err != nil {
			lastErr = err
			continue
		}

		attempts++
		result, err := r.extractOnce(ctx, engine, kind, image)
		if err != nil {
			r.logger.Warn("engine call failed, trying next fallback",
				"engine", engine.Name(), "attempt", attempts, "error", err)
			lastErr = err
			continue
		}

		if engines.BelowValidityFloor(result.Text, result.Confidence, r.cfg.ValidityFloor) {
			r.logger.Warn("engine output below validity floor, trying next fallback",
				"engine", engine.Name(), "attempt", attempts, "confidence", result.Confidence)
			lastErr = fmt.Errorf("output from %s below validity floor", engine.Name())
			continue
		}

		out := &Outcome{
			Text:       result.Text,
			Confidence: result.Confidence,
			Engine:     result.Engine,
			Kind:       kind,
			Attempts:   attempts,
		}
		r.maybeCorrect(ctx, out, tier)
		return out, nil
	}

	if lastErr == nil {
		lastErr = ErrNoEngineAvailable
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrExtractionFailed, attempts, lastErr)
}

// extractOnce runs a single engine call bounded by the per-call timeout,
// waiting on the engine's rate limiter first.
func (r *Runner) extractOnce(ctx context.Context, engine engines.Engine, kind types.EngineKind, image []byte) (*engines.Result, error) {
	if limiter := r.registry.Limiter(kind); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()
	return engine.Extract(callCtx, image)
}

// maybeCorrect routes output above the floor but below the correction
// threshold through the AI correction layer, at most once, tier
// permitting. A correction failure is not fatal; the uncorrected text
// stands.
func (r *Runner) maybeCorrect(ctx context.Context, out *Outcome, tier types.Tier) {
	if r.corrector == nil || !tier.AllowsAICorrection() {
		return
	}
	if out.Confidence >= r.cfg.CorrectionThreshold {
		return
	}

	corrected, err := r.corrector.Correct(ctx, out.Text, "", out.Confidence)
	if err != nil {
		r.logger.Warn("ai correction failed, keeping raw OCR text", "engine", out.Engine, "error", err)
		return
	}
	if corrected == out.Text {
		return
	}

	out.Text = corrected
	out.AICorrected = true
}
