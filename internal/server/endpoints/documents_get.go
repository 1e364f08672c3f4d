package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/Dweliw01/DocuFlow-sub000/internal/api"
	"github.com/Dweliw01/DocuFlow-sub000/internal/review"
	"github.com/Dweliw01/DocuFlow-sub000/internal/svcctx"
	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

// FieldView is one extracted field with the ledger's current value
// applied on top of the original model output.
type FieldView struct {
	Name               string  `json:"name"`
	Value              string  `json:"value"`
	Confidence         float64 `json:"confidence"`
	Corrected          bool    `json:"corrected"`
	OriginalValue      string  `json:"original_value,omitempty"`
	OriginalConfidence float64 `json:"original_confidence,omitempty"`
}

// DocumentResponse is the full review-side view of one document.
type DocumentResponse struct {
	Document    types.Document        `json:"document"`
	Fields      []FieldView           `json:"fields"`
	LineItems   []types.LineItem      `json:"line_items,omitempty"`
	Corrections []types.Correction    `json:"corrections,omitempty"`
	Events      []types.PipelineEvent `json:"events,omitempty"`
}

// GetDocumentEndpoint handles GET /api/documents/{id}.
type GetDocumentEndpoint struct{}

func (e *GetDocumentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/documents/{id}", e.handler
}

func (e *GetDocumentEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get a document
//	@Description	Get one document with its extracted fields, line items and correction history
//	@Tags			documents
//	@Produce		json
//	@Param			id	path		string	true	"Document ID"
//	@Success		200	{object}	DocumentResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/documents/{id} [get]
func (e *GetDocumentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	repo := svcctx.RepoFrom(r.Context())
	if repo == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	tenantID := tenantFrom(r)
	docID := r.PathValue("id")

	doc, err := repo.GetDocument(r.Context(), tenantID, docID)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("document %s not found", docID))
		return
	}

	fields, err := repo.FieldsForDocument(r.Context(), tenantID, docID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	corrections, err := repo.CorrectionsForDocument(r.Context(), tenantID, docID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	lineItems, err := repo.LineItemsForDocument(r.Context(), tenantID, docID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Events are best-effort audit data; a read failure does not block
	// the document view.
	events, _ := repo.EventsForDocument(r.Context(), tenantID, docID)

	resp := DocumentResponse{
		Document:    *doc,
		Fields:      fieldViews(fields, corrections),
		LineItems:   lineItems,
		Corrections: corrections,
		Events:      events,
	}
	writeJSON(w, http.StatusOK, resp)
}

// fieldViews overlays the latest ledger entry per field onto the original
// extraction output.
func fieldViews(fields []types.ExtractedField, corrections []types.Correction) []FieldView {
	views := make([]FieldView, 0, len(fields))
	for _, f := range fields {
		view := FieldView{
			Name:       f.Name,
			Value:      f.Value,
			Confidence: f.Confidence,
		}
		if corrected, ok := review.CurrentValue(corrections, f.Name); ok {
			view.Value = corrected
			view.Confidence = 1.0
			view.Corrected = true
			view.OriginalValue = f.Value
			view.OriginalConfidence = f.Confidence
		}
		views = append(views, view)
	}
	return views
}

func (e *GetDocumentEndpoint) Command(getServerURL func() string) *cobra.Command {
	var tenant string
	cmd := &cobra.Command{
		Use:   "get <document-id>",
		Short: "Get document details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp DocumentResponse
			path := fmt.Sprintf("/api/documents/%s?tenant=%s", args[0], tenant)
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "default", "Tenant identifier")
	return cmd
}
