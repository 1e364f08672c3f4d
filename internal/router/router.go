// Package router selects OCR engines and drives the fallback chain.
//
// The routing decision is a pure function over analyzer output, tenant
// tier, and the enabled engine set, so it is testable without any network
// mocks. Chain execution, timeouts, and the AI-correction trigger live in
// the runner.
package router

import (
	"errors"
	"slices"

	"github.com/Dweliw01/DocuFlow-sub000/internal/analyzer"
	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

// ErrNoEngineAvailable is returned when no enabled engine can serve the
// document at all.
var ErrNoEngineAvailable = errors.New("no OCR engine available")

// Route is a routing decision: the primary engine plus the ordered
// fallback chain tried after it.
type Route struct {
	Primary   types.EngineKind
	Fallbacks []types.EngineKind
}

// Chain returns the full ordered engine list, primary first.
func (r Route) Chain() []types.EngineKind {
	out := make([]types.EngineKind, 0, 1+len(r.Fallbacks))
	out = append(out, r.Primary)
	out = append(out, r.Fallbacks...)
	return out
}

// Decide picks the primary engine and fallback order. First match wins:
//
//  1. Page has handwriting and the tier includes the handwriting engine.
//  2. Page quality is low, or the tier defaults to premium.
//  3. Otherwise the local/free engine.
//
// Fallbacks are the remaining permitted engines in preference order
// premium, local, handwriting.
func Decide(a analyzer.Analysis, tier types.Tier, enabled []types.EngineKind) (Route, error) {
	permitted := func(k types.EngineKind) bool {
		if !slices.Contains(enabled, k) {
			return false
		}
		if k == types.EngineHandwriting && !tier.AllowsHandwriting() {
			return false
		}
		return true
	}

	var primary types.EngineKind
	switch {
	case a.HasHandwriting && permitted(types.EngineHandwriting):
		primary = types.EngineHandwriting
	case (a.Quality == types.QualityLow || tier.DefaultsToPremium()) && permitted(types.EnginePremium):
		primary = types.EnginePremium
	case permitted(types.EngineLocal):
		primary = types.EngineLocal
	case permitted(types.EnginePremium):
		primary = types.EnginePremium
	default:
		return Route{}, ErrNoEngineAvailable
	}

	var fallbacks []types.EngineKind
	for _, k := range []types.EngineKind{types.EnginePremium, types.EngineLocal, types.EngineHandwriting} {
		if k != primary && permitted(k) {
			fallbacks = append(fallbacks, k)
		}
	}

	return Route{Primary: primary, Fallbacks: fallbacks}, nil
}
