package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/Dweliw01/DocuFlow-sub000/internal/api"
	"github.com/Dweliw01/DocuFlow-sub000/internal/review"
	"github.com/Dweliw01/DocuFlow-sub000/internal/svcctx"
	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

// SubmitCorrectionRequest is the request body for a reviewer edit.
type SubmitCorrectionRequest struct {
	FieldName string `json:"field_name"`
	Value     string `json:"value"`
	Method    string `json:"method,omitempty"`
	Author    string `json:"author,omitempty"`
}

// SubmitCorrectionResponse reports the ledger outcome.
type SubmitCorrectionResponse struct {
	Applied           bool    `json:"applied"`
	OverallConfidence float64 `json:"overall_confidence"`
}

// SubmitCorrectionEndpoint handles POST /api/documents/{id}/corrections.
type SubmitCorrectionEndpoint struct{}

func (e *SubmitCorrectionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/documents/{id}/corrections", e.handler
}

func (e *SubmitCorrectionEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Submit a correction
//	@Description	Append one reviewer edit to the document's correction ledger
//	@Tags			corrections
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Document ID"
//	@Param			request	body		SubmitCorrectionRequest	true	"Correction"
//	@Success		200	{object}	SubmitCorrectionResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/documents/{id}/corrections [post]
func (e *SubmitCorrectionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := svcctx.ReviewFrom(r.Context())
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "review service not initialized")
		return
	}

	var req SubmitCorrectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FieldName == "" {
		writeError(w, http.StatusBadRequest, "field_name is required")
		return
	}

	method := types.CorrectionMethod(req.Method)
	if method == "" {
		method = types.CorrectionManual
	}
	if method != types.CorrectionManual && method != types.CorrectionHighlightedCopy {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown correction method: %s", req.Method))
		return
	}

	result, err := svc.SubmitCorrection(r.Context(), review.CorrectionRequest{
		TenantID:   tenantFrom(r),
		DocumentID: r.PathValue("id"),
		FieldName:  req.FieldName,
		Value:      req.Value,
		Method:     method,
		Author:     req.Author,
	})
	if err != nil {
		switch {
		case errors.Is(err, review.ErrInvalidState):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, review.ErrBadLineItems):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, SubmitCorrectionResponse{
		Applied:           result.Applied,
		OverallConfidence: result.OverallConfidence,
	})
}

func (e *SubmitCorrectionEndpoint) Command(getServerURL func() string) *cobra.Command {
	var tenant, method, author string
	cmd := &cobra.Command{
		Use:   "correct <document-id> <field> <value>",
		Short: "Submit a field correction",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			req := SubmitCorrectionRequest{
				FieldName: args[1],
				Value:     args[2],
				Method:    method,
				Author:    author,
			}
			var resp SubmitCorrectionResponse
			path := fmt.Sprintf("/api/documents/%s/corrections?tenant=%s", args[0], tenant)
			if err := client.Post(cmd.Context(), path, req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "default", "Tenant identifier")
	cmd.Flags().StringVar(&method, "method", string(types.CorrectionManual), "Correction method (manual or highlighted-copy)")
	cmd.Flags().StringVar(&author, "author", "", "Reviewer identity")
	return cmd
}

// ListCorrectionsResponse is the document's full correction history.
type ListCorrectionsResponse struct {
	Corrections []types.Correction `json:"corrections"`
}

// ListCorrectionsEndpoint handles GET /api/documents/{id}/corrections.
type ListCorrectionsEndpoint struct{}

func (e *ListCorrectionsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/documents/{id}/corrections", e.handler
}

func (e *ListCorrectionsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List corrections
//	@Description	Get the append-only correction ledger for a document
//	@Tags			corrections
//	@Produce		json
//	@Param			id	path		string	true	"Document ID"
//	@Success		200	{object}	ListCorrectionsResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/documents/{id}/corrections [get]
func (e *ListCorrectionsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	repo := svcctx.RepoFrom(r.Context())
	if repo == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	corrections, err := repo.CorrectionsForDocument(r.Context(), tenantFrom(r), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if corrections == nil {
		corrections = []types.Correction{}
	}

	writeJSON(w, http.StatusOK, ListCorrectionsResponse{Corrections: corrections})
}

func (e *ListCorrectionsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var tenant string
	cmd := &cobra.Command{
		Use:   "corrections <document-id>",
		Short: "List a document's correction history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListCorrectionsResponse
			path := fmt.Sprintf("/api/documents/%s/corrections?tenant=%s", args[0], tenant)
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "default", "Tenant identifier")
	return cmd
}
