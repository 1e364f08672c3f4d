package endpoints

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/Dweliw01/DocuFlow-sub000/internal/api"
	"github.com/Dweliw01/DocuFlow-sub000/internal/review"
	"github.com/Dweliw01/DocuFlow-sub000/internal/svcctx"
	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

// ApproveResponse reports the document after an approval attempt. A
// failed upload leaves the document in the failed state with the reason
// attached; it is not an HTTP error.
type ApproveResponse struct {
	Document types.Document `json:"document"`
}

// ApproveEndpoint handles POST /api/documents/{id}/approve.
type ApproveEndpoint struct{}

func (e *ApproveEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/documents/{id}/approve", e.handler
}

func (e *ApproveEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Approve a document
//	@Description	Approve a pending or failed document and push it to the destination
//	@Tags			documents
//	@Produce		json
//	@Param			id	path		string	true	"Document ID"
//	@Success		200	{object}	ApproveResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/documents/{id}/approve [post]
func (e *ApproveEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := svcctx.ReviewFrom(r.Context())
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "review service not initialized")
		return
	}

	doc, err := svc.Approve(r.Context(), tenantFrom(r), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, review.ErrInvalidState) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ApproveResponse{Document: *doc})
}

func (e *ApproveEndpoint) Command(getServerURL func() string) *cobra.Command {
	var tenant string
	cmd := &cobra.Command{
		Use:   "approve <document-id>",
		Short: "Approve a document and upload it to the destination",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ApproveResponse
			path := fmt.Sprintf("/api/documents/%s/approve?tenant=%s", args[0], tenant)
			if err := client.Post(cmd.Context(), path, nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "default", "Tenant identifier")
	return cmd
}
