package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

// EventLog records pipeline status transitions through the write sink.
// Events are an audit trail nobody waits on, so they go fire-and-forget;
// a dropped event never blocks or fails document processing.
type EventLog struct {
	sink *Sink
}

// NewEventLog creates an event log backed by the sink.
func NewEventLog(sink *Sink) *EventLog {
	return &EventLog{sink: sink}
}

// Record enqueues one transition event.
func (l *EventLog) Record(tenantID, docID string, status types.DocumentStatus, reason string) {
	l.sink.Send(WriteOp{
		Collection: CollectionPipelineEvent,
		Op:         OpCreate,
		Document: map[string]any{
			"document_id": docID,
			"tenant_id":   tenantID,
			"status":      string(status),
			"reason":      reason,
			"created_at":  time.Now().UTC().Format(timeLayout),
		},
	})
}

// EventsForDocument reads back the recorded transitions for one
// document, oldest first.
func (r *Repo) EventsForDocument(ctx context.Context, tenantID, docID string) ([]types.PipelineEvent, error) {
	if _, err := SafeID(docID); err != nil {
		return nil, err
	}
	resp, err := NewQuery(CollectionPipelineEvent).
		Filter("document_id", docID).
		Filter("tenant_id", tenantID).
		Fields("_docID", "document_id", "status", "reason", "created_at").
		OrderBy("created_at", "ASC").
		Execute(ctx, r.client)
	if err != nil {
		return nil, err
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("query error: %s", errMsg)
	}

	raw := resp.Collection(CollectionPipelineEvent)
	events := make([]types.PipelineEvent, 0, len(raw))
	for _, m := range raw {
		events = append(events, types.PipelineEvent{
			ID:         getString(m, "_docID"),
			DocumentID: getString(m, "document_id"),
			TenantID:   tenantID,
			Status:     types.DocumentStatus(getString(m, "status")),
			Reason:     getString(m, "reason"),
			CreatedAt:  getTime(m, "created_at"),
		})
	}
	return events, nil
}
