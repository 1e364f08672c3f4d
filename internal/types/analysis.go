package types

// Quality is the analyzer's classification of a page image.
type Quality string

const (
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"
)

// EngineKind identifies one of the closed set of OCR engine variants.
type EngineKind string

const (
	// EngineLocal is the local/free engine.
	EngineLocal EngineKind = "local"

	// EnginePremium is the premium cloud engine.
	EnginePremium EngineKind = "premium"

	// EngineHandwriting is the handwriting-capable engine.
	EngineHandwriting EngineKind = "handwriting"
)
