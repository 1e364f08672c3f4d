// Package connector pushes completed documents to external destination
// repositories behind one uniform contract.
package connector

import (
	"context"
	"errors"
	"time"

	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

// Sentinel errors for the connector package.
var (
	// ErrRejected is returned when the destination refuses the payload
	// (bad type, missing required field). The caller surfaces it as a
	// normal failed transition, not a distinct error class.
	ErrRejected = errors.New("destination rejected upload")

	// ErrNotConfigured is returned when the connector has no usable
	// destination settings.
	ErrNotConfigured = errors.New("connector not configured")
)

// UploadRequest carries everything one upload attempt needs.
type UploadRequest struct {
	Document        *types.Document
	Values          map[string]any // Coerced, keyed by destination field name
	MissingRequired []string
	Binary          []byte // Original file bytes
	FileName        string
}

// UploadResult is the destination's acknowledgement.
type UploadResult struct {
	RemoteID  string
	Timestamp time.Time
}

// Connector is the uniform contract to one destination repository.
// ListSchema is fetched live per session and never cached across
// sessions; Upload makes exactly one attempt with no internal retry.
type Connector interface {
	Name() string
	ListSchema(ctx context.Context, targetID string) (types.DestinationSchema, error)
	Upload(ctx context.Context, req UploadRequest) (UploadResult, error)
}
