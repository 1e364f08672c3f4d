// Package review implements the post-scoring state machine and the
// append-only correction ledger. Status transitions are monotonic; a
// document never moves backward except by starting a new processing
// cycle.
package review

import (
	"hash/fnv"

	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

// Decide returns the state a freshly scored document enters, applying
// the tenant's review mode:
//
//   - review_all: always pending_review.
//   - auto_upload: always approved.
//   - smart: approved iff overall confidence meets the threshold.
//
// Unknown modes fall back to pending_review so a misconfigured tenant
// never skips review.
func Decide(policy types.RoutingPolicy, confidence float64) types.DocumentStatus {
	switch policy.ReviewMode {
	case types.ReviewAll:
		return types.StatusPendingReview
	case types.ReviewAutoUpload:
		return types.StatusApproved
	case types.ReviewSmart:
		if confidence >= policy.ConfidenceThreshold {
			return types.StatusApproved
		}
		return types.StatusPendingReview
	default:
		return types.StatusPendingReview
	}
}

// AuditSample reports whether an auto-approved document should be
// flagged for after-the-fact audit. The decision is a deterministic
// hash of the document id so re-processing the same document gives the
// same answer. A zero rate disables sampling.
func AuditSample(docID string, rate float64) bool {
	if rate <= 0 {
		return false
	}
	if rate >= 1 {
		return true
	}
	h := fnv.New32a()
	h.Write([]byte(docID))
	bucket := float64(h.Sum32()%10000) / 10000.0
	return bucket < rate
}
