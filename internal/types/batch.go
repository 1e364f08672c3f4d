package types

import "time"

// Batch groups documents submitted together. Progress is always derived
// by re-reading per-document status, never from in-memory counters.
type Batch struct {
	ID          string    `json:"_docID,omitempty"`
	TenantID    string    `json:"tenant_id"`
	SubmittedBy string    `json:"submitted_by,omitempty"`
	TotalDocs   int       `json:"total_docs"`
	Cancelled   bool      `json:"cancelled"`
	CreatedAt   time.Time `json:"created_at"`
}

// BatchProgress is a point-in-time summary computed from document rows.
type BatchProgress struct {
	BatchID   string         `json:"batch_id"`
	Total     int            `json:"total"`
	ByStatus  map[string]int `json:"by_status"`
	Cancelled bool           `json:"cancelled"`
}
