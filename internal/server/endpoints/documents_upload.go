package endpoints

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Dweliw01/DocuFlow-sub000/internal/api"
	"github.com/Dweliw01/DocuFlow-sub000/internal/ingest"
	"github.com/Dweliw01/DocuFlow-sub000/internal/pipeline"
	"github.com/Dweliw01/DocuFlow-sub000/internal/svcctx"
)

// UploadResponse reports one accepted document.
type UploadResponse struct {
	DocumentID string `json:"document_id"`
	PageCount  int    `json:"page_count"`
	Queued     bool   `json:"queued"`
}

// UploadDocumentEndpoint handles POST /api/documents/upload with a
// multipart file upload.
type UploadDocumentEndpoint struct{}

var _ api.Endpoint = (*UploadDocumentEndpoint)(nil)

func (e *UploadDocumentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/documents/upload", e.handler
}

func (e *UploadDocumentEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Upload a document
//	@Description	Upload one scanned document (PDF or image) for processing
//	@Tags			documents
//	@Accept			mpfd
//	@Produce		json
//	@Param			file		formData	file	true	"Document file (PDF, PNG, JPEG or TIFF)"
//	@Param			submitted_by	formData	string	false	"Uploader identity"
//	@Success		202	{object}	UploadResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/documents/upload [post]
func (e *UploadDocumentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	const maxMemory = 100 << 20 // 100MB
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read upload: %v", err))
		return
	}

	repo := svcctx.RepoFrom(r.Context())
	homeDir := svcctx.HomeFrom(r.Context())
	pool := svcctx.PoolFrom(r.Context())
	if repo == nil || homeDir == nil || pool == nil {
		writeError(w, http.StatusServiceUnavailable, "services not initialized")
		return
	}

	tenantID := tenantFrom(r)
	res, err := ingest.Ingest(r.Context(), repo, homeDir, ingest.Request{
		TenantID:    tenantID,
		SubmittedBy: r.FormValue("submitted_by"),
		FileName:    header.Filename,
		Content:     content,
		Logger:      svcctx.LoggerFrom(r.Context()),
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := UploadResponse{DocumentID: res.DocumentID, PageCount: res.PageCount, Queued: true}
	if err := pool.Submit(pipeline.Task{TenantID: tenantID, DocumentID: res.DocumentID}); err != nil {
		// The document is stored in the uploaded state; it can be
		// resubmitted once the queue drains.
		resp.Queued = false
	}

	writeJSON(w, http.StatusAccepted, resp)
}

func (e *UploadDocumentEndpoint) Command(getServerURL func() string) *cobra.Command {
	var tenant string
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a document for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			body, contentType, err := multipartBody("file", filepath.Base(path), content, nil)
			if err != nil {
				return err
			}

			url := getServerURL() + "/api/documents/upload?tenant=" + tenant
			req, err := http.NewRequestWithContext(cmd.Context(), "POST", url, body)
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", contentType)

			httpResp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer httpResp.Body.Close()

			if httpResp.StatusCode >= 400 {
				data, _ := io.ReadAll(httpResp.Body)
				return fmt.Errorf("upload failed (%d): %s", httpResp.StatusCode, strings.TrimSpace(string(data)))
			}

			var resp UploadResponse
			if err := decodeJSON(httpResp.Body, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "default", "Tenant identifier")
	return cmd
}
