package engines

import (
	"strings"
	"unicode"
)

const (
	// minContentLen is the character count below which output counts as
	// near-empty.
	minContentLen = 20

	// minAlnumRatio is the minimum fraction of alphanumeric characters
	// before output counts as garbage.
	minAlnumRatio = 0.45

	// maxReplacementRatio bounds the fraction of U+FFFD replacement
	// characters tolerated before the text is considered corrupted.
	maxReplacementRatio = 0.05
)

// ValidityScore rates OCR output shape in [0,1] without understanding its
// content. Empty or near-empty text, mostly non-alphanumeric noise, and
// encoding corruption all push the score toward zero. Used both as the
// fallback confidence for backends that report none and by the router's
// validity floor.
func ValidityScore(text string) float64 {
	t := strings.TrimSpace(text)
	if t == "" {
		return 0
	}

	var alnum, space, replacement, total int
	for _, r := range t {
		total++
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			alnum++
		case unicode.IsSpace(r):
			space++
		case r == '�':
			replacement++
		}
	}

	score := 1.0

	if total < minContentLen {
		score *= float64(total) / float64(minContentLen)
	}

	// Ratio of alphanumeric to visible characters.
	visible := total - space
	if visible > 0 {
		ratio := float64(alnum) / float64(visible)
		if ratio < minAlnumRatio {
			score *= ratio / minAlnumRatio
		}
	}

	if total > 0 && float64(replacement)/float64(total) > maxReplacementRatio {
		score *= 0.25
	}

	if score > 1 {
		score = 1
	}
	return score
}

// BelowValidityFloor reports whether OCR output fails the router's
// acceptance check: empty, near-empty, or mostly non-alphanumeric.
func BelowValidityFloor(text string, confidence, floor float64) bool {
	if confidence < floor {
		return true
	}
	return ValidityScore(text) < floor
}
