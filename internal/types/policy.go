package types

// ReviewMode is the per-tenant policy for human review before upload.
type ReviewMode string

const (
	// ReviewAll sends every document to human review.
	ReviewAll ReviewMode = "review_all"

	// ReviewSmart auto-approves documents whose overall confidence meets
	// the tenant threshold and queues the rest for review.
	ReviewSmart ReviewMode = "smart"

	// ReviewAutoUpload approves every document without review.
	ReviewAutoUpload ReviewMode = "auto_upload"
)

// Valid reports whether m is a known review mode.
func (m ReviewMode) Valid() bool {
	switch m {
	case ReviewAll, ReviewSmart, ReviewAutoUpload:
		return true
	}
	return false
}

// RoutingPolicy holds per-tenant pipeline policy.
type RoutingPolicy struct {
	TenantID            string     `json:"tenant_id"`
	ReviewMode          ReviewMode `json:"review_mode"`
	ConfidenceThreshold float64    `json:"confidence_threshold"` // [0,1]
	Tier                Tier       `json:"tier"`

	// AuditRate optionally flags a deterministic fraction of
	// auto-approved documents for after-the-fact audit without blocking
	// them. Zero disables sampling.
	AuditRate float64 `json:"audit_rate,omitempty"`
}

// DefaultPolicy is used when a tenant has not configured one.
func DefaultPolicy(tenantID string) RoutingPolicy {
	return RoutingPolicy{
		TenantID:            tenantID,
		ReviewMode:          ReviewSmart,
		ConfidenceThreshold: 0.85,
		Tier:                TierStandard,
	}
}

// Tier is the tenant subscription tier, which gates engine selection.
type Tier string

const (
	TierFree     Tier = "free"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// AllowsHandwriting reports whether the tier includes the
// handwriting-capable engine.
func (t Tier) AllowsHandwriting() bool {
	return t == TierPremium
}

// DefaultsToPremium reports whether the tier routes to the premium cloud
// engine even for readable pages.
func (t Tier) DefaultsToPremium() bool {
	return t == TierPremium
}

// AllowsAICorrection reports whether low-confidence OCR text may be
// routed through the AI correction layer.
func (t Tier) AllowsAICorrection() bool {
	return t == TierStandard || t == TierPremium
}
