package review

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name       string
		mode       types.ReviewMode
		threshold  float64
		confidence float64
		want       types.DocumentStatus
	}{
		{"review_all high confidence", types.ReviewAll, 0.85, 0.99, types.StatusPendingReview},
		{"auto_upload low confidence", types.ReviewAutoUpload, 0.85, 0.10, types.StatusApproved},
		{"smart above threshold", types.ReviewSmart, 0.85, 0.90, types.StatusApproved},
		{"smart at threshold", types.ReviewSmart, 0.85, 0.85, types.StatusApproved},
		{"smart below threshold", types.ReviewSmart, 0.85, 0.84, types.StatusPendingReview},
		{"unknown mode defaults to review", types.ReviewMode("bogus"), 0.85, 0.99, types.StatusPendingReview},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := types.RoutingPolicy{ReviewMode: tt.mode, ConfidenceThreshold: tt.threshold}
			if got := Decide(policy, tt.confidence); got != tt.want {
				t.Errorf("Decide() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAuditSample(t *testing.T) {
	if AuditSample("doc-1", 0) {
		t.Error("zero rate must never sample")
	}
	if !AuditSample("doc-1", 1.0) {
		t.Error("full rate must always sample")
	}

	// Deterministic per document id.
	first := AuditSample("doc-42", 0.3)
	for i := 0; i < 10; i++ {
		if AuditSample("doc-42", 0.3) != first {
			t.Fatal("sampling decision must be deterministic")
		}
	}
}

func TestCurrentValuesLastWriteWins(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	fields := []types.ExtractedField{
		{Name: "amount", Value: "$100.00"},
		{Name: "vendor", Value: "Acme"},
	}
	corrections := []types.Correction{
		{FieldName: "amount", CorrectedValue: "$120.00", ReceivedAt: base},
		{FieldName: "amount", CorrectedValue: "$125.00", ReceivedAt: base.Add(time.Second)},
	}

	values := CurrentValues(fields, corrections)
	if values["amount"] != "$125.00" {
		t.Errorf("amount = %q, want latest correction", values["amount"])
	}
	if values["vendor"] != "Acme" {
		t.Errorf("vendor = %q, want original", values["vendor"])
	}
}

// fakeStore is an in-memory Store for service tests.
type fakeStore struct {
	doc         *types.Document
	fields      []types.ExtractedField
	corrections []types.Correction
	lineItems   []types.LineItem
	updates     []map[string]any
}

func (f *fakeStore) GetDocument(ctx context.Context, tenantID, docID string) (*types.Document, error) {
	if f.doc == nil || f.doc.ID != docID || f.doc.TenantID != tenantID {
		return nil, errors.New("not found")
	}
	copy := *f.doc
	return &copy, nil
}

func (f *fakeStore) UpdateDocument(ctx context.Context, docID string, input map[string]any) error {
	f.updates = append(f.updates, input)
	if s, ok := input["status"].(string); ok {
		f.doc.Status = types.DocumentStatus(s)
	}
	if r, ok := input["failure_reason"].(string); ok {
		f.doc.FailureReason = r
	}
	if r, ok := input["remote_id"].(string); ok {
		f.doc.RemoteID = r
	}
	if c, ok := input["overall_confidence"].(float64); ok {
		f.doc.OverallConfidence = c
	}
	return nil
}

func (f *fakeStore) FieldsForDocument(ctx context.Context, tenantID, docID string) ([]types.ExtractedField, error) {
	return f.fields, nil
}

func (f *fakeStore) AppendCorrection(ctx context.Context, c types.Correction) (string, error) {
	f.corrections = append(f.corrections, c)
	return fmt.Sprintf("corr-%d", len(f.corrections)), nil
}

func (f *fakeStore) CorrectionsForDocument(ctx context.Context, tenantID, docID string) ([]types.Correction, error) {
	return f.corrections, nil
}

func (f *fakeStore) LineItemsForDocument(ctx context.Context, tenantID, docID string) ([]types.LineItem, error) {
	return f.lineItems, nil
}

func (f *fakeStore) ReplaceLineItems(ctx context.Context, tenantID, docID string, items []types.LineItem) error {
	f.lineItems = items
	return nil
}

// fakeUploader records calls and returns a configurable outcome.
type fakeUploader struct {
	remoteID string
	err      error
	calls    int
	values   map[string]string
}

func (f *fakeUploader) Upload(ctx context.Context, doc *types.Document, values map[string]string, lineItems []types.LineItem) (string, error) {
	f.calls++
	f.values = values
	if f.err != nil {
		return "", f.err
	}
	return f.remoteID, nil
}

func pendingDoc() *types.Document {
	return &types.Document{
		ID:                "doc-1",
		TenantID:          "t1",
		Status:            types.StatusPendingReview,
		OverallConfidence: 0.74,
	}
}

func TestSubmitCorrectionAppendsAndRescores(t *testing.T) {
	st := &fakeStore{
		doc: pendingDoc(),
		fields: []types.ExtractedField{
			{DocumentID: "doc-1", Name: "amount", Value: "", Confidence: 0.30},
			{DocumentID: "doc-1", Name: "vendor", Value: "Acme", Confidence: 0.75},
		},
	}
	svc := NewService(st, &fakeUploader{}, nil)

	result, err := svc.SubmitCorrection(context.Background(), CorrectionRequest{
		TenantID:   "t1",
		DocumentID: "doc-1",
		FieldName:  "amount",
		Value:      "$120.00",
		Method:     types.CorrectionManual,
		Author:     "reviewer@example.com",
	})
	if err != nil {
		t.Fatalf("SubmitCorrection() error = %v", err)
	}

	if !result.Applied {
		t.Error("expected correction to apply")
	}
	if len(st.corrections) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(st.corrections))
	}
	entry := st.corrections[0]
	if entry.OriginalValue != "" || entry.OriginalConfidence != 0.30 {
		t.Errorf("original = (%q, %v), want preserved extraction output", entry.OriginalValue, entry.OriginalConfidence)
	}

	// amount weight 2.0 now scores 1.0, vendor weight 1.5 stays 0.75:
	// (2.0 + 1.125) / 3.5 = 0.89.
	if result.OverallConfidence != 0.89 {
		t.Errorf("overall = %v, want 0.89", result.OverallConfidence)
	}
}

func TestSubmitCorrectionIdempotentResubmit(t *testing.T) {
	st := &fakeStore{
		doc: pendingDoc(),
		fields: []types.ExtractedField{
			{DocumentID: "doc-1", Name: "amount", Value: "$100.00", Confidence: 0.95},
		},
	}
	svc := NewService(st, &fakeUploader{}, nil)

	req := CorrectionRequest{
		TenantID:   "t1",
		DocumentID: "doc-1",
		FieldName:  "amount",
		Value:      "$120.00",
		Method:     types.CorrectionManual,
	}

	first, err := svc.SubmitCorrection(context.Background(), req)
	if err != nil {
		t.Fatalf("first submit error = %v", err)
	}
	second, err := svc.SubmitCorrection(context.Background(), req)
	if err != nil {
		t.Fatalf("second submit error = %v", err)
	}

	if !first.Applied || second.Applied {
		t.Errorf("applied = (%v, %v), want (true, false)", first.Applied, second.Applied)
	}
	if len(st.corrections) != 1 {
		t.Errorf("ledger entries = %d, want 1 (no duplicate active entry)", len(st.corrections))
	}
}

func TestSubmitCorrectionDifferentValueAppends(t *testing.T) {
	st := &fakeStore{
		doc: pendingDoc(),
		fields: []types.ExtractedField{
			{DocumentID: "doc-1", Name: "amount", Value: "$100.00", Confidence: 0.95},
		},
	}
	svc := NewService(st, &fakeUploader{}, nil)

	for _, v := range []string{"$120.00", "$125.00"} {
		if _, err := svc.SubmitCorrection(context.Background(), CorrectionRequest{
			TenantID: "t1", DocumentID: "doc-1", FieldName: "amount", Value: v,
			Method: types.CorrectionManual,
		}); err != nil {
			t.Fatalf("submit %s error = %v", v, err)
		}
	}

	if len(st.corrections) != 2 {
		t.Fatalf("ledger entries = %d, want full history retained", len(st.corrections))
	}
	value, ok := CurrentValue(st.corrections, "amount")
	if !ok || value != "$125.00" {
		t.Errorf("current value = %q, want $125.00", value)
	}
}

func TestSubmitCorrectionRejectsCompletedDocument(t *testing.T) {
	doc := pendingDoc()
	doc.Status = types.StatusCompleted
	st := &fakeStore{doc: doc}
	svc := NewService(st, &fakeUploader{}, nil)

	_, err := svc.SubmitCorrection(context.Background(), CorrectionRequest{
		TenantID: "t1", DocumentID: "doc-1", FieldName: "amount", Value: "$1.00",
	})
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("error = %v, want ErrInvalidState", err)
	}
}

func TestSubmitLineItemsReplacesWholeArray(t *testing.T) {
	st := &fakeStore{
		doc: pendingDoc(),
		lineItems: []types.LineItem{
			{DocumentID: "doc-1", Position: 0, Columns: map[string]string{"description": "Old"}},
		},
	}
	svc := NewService(st, &fakeUploader{}, nil)

	_, err := svc.SubmitCorrection(context.Background(), CorrectionRequest{
		TenantID:   "t1",
		DocumentID: "doc-1",
		FieldName:  types.ReservedLineItemsField,
		Value:      `[{"description":"Widget","qty":"2"},{"description":"Gadget","qty":"1"}]`,
		Method:     types.CorrectionManual,
	})
	if err != nil {
		t.Fatalf("SubmitCorrection() error = %v", err)
	}

	if len(st.lineItems) != 2 {
		t.Errorf("line items = %d, want whole-array replacement", len(st.lineItems))
	}
	if len(st.corrections) != 1 || st.corrections[0].FieldName != types.ReservedLineItemsField {
		t.Errorf("expected one ledger entry under the reserved field name")
	}
}

func TestSubmitLineItemsRejectsBadJSON(t *testing.T) {
	st := &fakeStore{doc: pendingDoc()}
	svc := NewService(st, &fakeUploader{}, nil)

	_, err := svc.SubmitCorrection(context.Background(), CorrectionRequest{
		TenantID: "t1", DocumentID: "doc-1",
		FieldName: types.ReservedLineItemsField,
		Value:     "not an array",
	})
	if !errors.Is(err, ErrBadLineItems) {
		t.Errorf("error = %v, want ErrBadLineItems", err)
	}
}

func TestApproveUploadsAndCompletes(t *testing.T) {
	st := &fakeStore{
		doc: pendingDoc(),
		fields: []types.ExtractedField{
			{DocumentID: "doc-1", Name: "vendor", Value: "Acme", Confidence: 0.75},
		},
	}
	up := &fakeUploader{remoteID: "remote-77"}
	svc := NewService(st, up, nil)

	doc, err := svc.Approve(context.Background(), "t1", "doc-1")
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}

	if doc.Status != types.StatusCompleted {
		t.Errorf("status = %s, want completed", doc.Status)
	}
	if doc.RemoteID != "remote-77" {
		t.Errorf("remote id = %q, want remote-77", doc.RemoteID)
	}
	if up.calls != 1 {
		t.Errorf("upload calls = %d, want exactly 1", up.calls)
	}
}

func TestApproveRoundTripZeroCorrections(t *testing.T) {
	fields := []types.ExtractedField{
		{DocumentID: "doc-1", Name: "vendor", Value: "Acme Corp", Confidence: 0.75},
		{DocumentID: "doc-1", Name: "amount", Value: "$120.00", Confidence: 0.95},
	}
	st := &fakeStore{doc: pendingDoc(), fields: fields}
	up := &fakeUploader{remoteID: "r1"}
	svc := NewService(st, up, nil)

	if _, err := svc.Approve(context.Background(), "t1", "doc-1"); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}

	want := map[string]string{"vendor": "Acme Corp", "amount": "$120.00"}
	if !reflect.DeepEqual(up.values, want) {
		t.Errorf("uploaded values = %v, want byte-identical originals %v", up.values, want)
	}
}

func TestApproveFailureRecordsReason(t *testing.T) {
	st := &fakeStore{doc: pendingDoc()}
	up := &fakeUploader{err: errors.New("destination rejected field AMOUNT")}
	svc := NewService(st, up, nil)

	doc, err := svc.Approve(context.Background(), "t1", "doc-1")
	if err != nil {
		t.Fatalf("Approve() error = %v (upload failure is a transition, not an error)", err)
	}

	if doc.Status != types.StatusFailed {
		t.Errorf("status = %s, want failed", doc.Status)
	}
	if doc.FailureReason != "destination rejected field AMOUNT" {
		t.Errorf("reason = %q, want preserved", doc.FailureReason)
	}
}

func TestReApproveAfterFailureRetriesUpload(t *testing.T) {
	doc := pendingDoc()
	doc.Status = types.StatusFailed
	doc.FailureReason = "destination rejected"
	st := &fakeStore{doc: doc}
	up := &fakeUploader{remoteID: "r2"}
	svc := NewService(st, up, nil)

	got, err := svc.Approve(context.Background(), "t1", "doc-1")
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}

	if got.Status != types.StatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if up.calls != 1 {
		t.Errorf("upload calls = %d, want 1", up.calls)
	}
}

func TestApproveRejectsUploadedDocument(t *testing.T) {
	doc := pendingDoc()
	doc.Status = types.StatusUploaded
	st := &fakeStore{doc: doc}
	svc := NewService(st, &fakeUploader{}, nil)

	if _, err := svc.Approve(context.Background(), "t1", "doc-1"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("error = %v, want ErrInvalidState", err)
	}
}
