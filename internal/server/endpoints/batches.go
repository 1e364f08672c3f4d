package endpoints

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Dweliw01/DocuFlow-sub000/internal/api"
	"github.com/Dweliw01/DocuFlow-sub000/internal/ingest"
	"github.com/Dweliw01/DocuFlow-sub000/internal/svcctx"
	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

// SubmitBatchResponse reports the accepted batch and its documents.
type SubmitBatchResponse struct {
	BatchID     string   `json:"batch_id"`
	DocumentIDs []string `json:"document_ids"`
	Queued      int      `json:"queued"`
	Rejected    []string `json:"rejected,omitempty"`
}

// SubmitBatchEndpoint handles POST /api/batches with a multipart upload
// of several documents.
type SubmitBatchEndpoint struct{}

func (e *SubmitBatchEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/batches", e.handler
}

func (e *SubmitBatchEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Submit a batch
//	@Description	Upload several documents as one batch and queue them for processing
//	@Tags			batches
//	@Accept			mpfd
//	@Produce		json
//	@Param			files		formData	file	true	"Document files"
//	@Param			submitted_by	formData	string	false	"Uploader identity"
//	@Success		202	{object}	SubmitBatchResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/batches [post]
func (e *SubmitBatchEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	const maxMemory = 500 << 20 // 500MB
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	repo := svcctx.RepoFrom(r.Context())
	homeDir := svcctx.HomeFrom(r.Context())
	pool := svcctx.PoolFrom(r.Context())
	if repo == nil || homeDir == nil || pool == nil {
		writeError(w, http.StatusServiceUnavailable, "services not initialized")
		return
	}
	logger := svcctx.LoggerFrom(r.Context())

	tenantID := tenantFrom(r)
	submittedBy := r.FormValue("submitted_by")

	batchID, err := repo.CreateBatch(r.Context(), types.Batch{
		TenantID:    tenantID,
		SubmittedBy: submittedBy,
		TotalDocs:   len(files),
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Intake failures do not abort the batch; the rest of the files
	// proceed and the rejects are reported back.
	var docIDs, rejected []string
	for _, fh := range files {
		src, err := fh.Open()
		if err != nil {
			rejected = append(rejected, fmt.Sprintf("%s: %v", fh.Filename, err))
			continue
		}
		content, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			rejected = append(rejected, fmt.Sprintf("%s: %v", fh.Filename, err))
			continue
		}

		res, err := ingest.Ingest(r.Context(), repo, homeDir, ingest.Request{
			TenantID:    tenantID,
			BatchID:     batchID,
			SubmittedBy: submittedBy,
			FileName:    fh.Filename,
			Content:     content,
			Logger:      logger,
		})
		if err != nil {
			rejected = append(rejected, fmt.Sprintf("%s: %v", fh.Filename, err))
			continue
		}
		docIDs = append(docIDs, res.DocumentID)
	}

	if len(rejected) > 0 && len(rejected) < len(files) {
		// Keep derived progress totals honest for partially rejected
		// batches.
		if err := repo.UpdateBatch(r.Context(), batchID, map[string]any{
			"total_docs": len(docIDs),
		}); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if len(docIDs) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("no ingestable files: %s", strings.Join(rejected, "; ")))
		return
	}

	queued, err := pool.SubmitBatch(tenantID, batchID, docIDs)
	if err != nil && logger != nil {
		logger.Warn("batch partially queued", "batch", batchID, "queued", queued, "error", err)
	}

	writeJSON(w, http.StatusAccepted, SubmitBatchResponse{
		BatchID:     batchID,
		DocumentIDs: docIDs,
		Queued:      queued,
		Rejected:    rejected,
	})
}

func (e *SubmitBatchEndpoint) Command(getServerURL func() string) *cobra.Command {
	var tenant string
	cmd := &cobra.Command{
		Use:   "submit <file>...",
		Short: "Upload several documents as one batch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := make(map[string][]byte, len(args))
			for _, path := range args {
				content, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				files[filepath.Base(path)] = content
			}

			body, contentType, err := multipartFiles("files", files)
			if err != nil {
				return err
			}

			url := getServerURL() + "/api/batches?tenant=" + tenant
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
				return fmt.Errorf("batch submit failed (%d): %s", httpResp.StatusCode, strings.TrimSpace(string(data)))
			}

			var resp SubmitBatchResponse
			if err := decodeJSON(httpResp.Body, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "default", "Tenant identifier")
	return cmd
}

// BatchProgressResponse wraps a point-in-time batch summary.
type BatchProgressResponse struct {
	Progress types.BatchProgress `json:"progress"`
}

// BatchProgressEndpoint handles GET /api/batches/{id}.
type BatchProgressEndpoint struct{}

func (e *BatchProgressEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/batches/{id}", e.handler
}

func (e *BatchProgressEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get batch progress
//	@Description	Get per-status document counts for a batch, derived from current document rows
//	@Tags			batches
//	@Produce		json
//	@Param			id	path		string	true	"Batch ID"
//	@Success		200	{object}	BatchProgressResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/batches/{id} [get]
func (e *BatchProgressEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	repo := svcctx.RepoFrom(r.Context())
	if repo == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	progress, err := repo.BatchProgress(r.Context(), tenantFrom(r), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, BatchProgressResponse{Progress: *progress})
}

func (e *BatchProgressEndpoint) Command(getServerURL func() string) *cobra.Command {
	var tenant string
	cmd := &cobra.Command{
		Use:   "progress <batch-id>",
		Short: "Get batch progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp BatchProgressResponse
			path := fmt.Sprintf("/api/batches/%s?tenant=%s", args[0], tenant)
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "default", "Tenant identifier")
	return cmd
}

// CancelBatchResponse acknowledges a cancellation.
type CancelBatchResponse struct {
	BatchID   string `json:"batch_id"`
	Cancelled bool   `json:"cancelled"`
}

// CancelBatchEndpoint handles POST /api/batches/{id}/cancel.
type CancelBatchEndpoint struct{}

func (e *CancelBatchEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/batches/{id}/cancel", e.handler
}

func (e *CancelBatchEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Cancel a batch
//	@Description	Stop queued documents in the batch from starting; in-flight documents finish
//	@Tags			batches
//	@Produce		json
//	@Param			id	path		string	true	"Batch ID"
//	@Success		200	{object}	CancelBatchResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/batches/{id}/cancel [post]
func (e *CancelBatchEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	repo := svcctx.RepoFrom(r.Context())
	if repo == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	batchID := r.PathValue("id")
	if err := repo.CancelBatch(r.Context(), tenantFrom(r), batchID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, CancelBatchResponse{BatchID: batchID, Cancelled: true})
}

func (e *CancelBatchEndpoint) Command(getServerURL func() string) *cobra.Command {
	var tenant string
	cmd := &cobra.Command{
		Use:   "cancel <batch-id>",
		Short: "Cancel a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp CancelBatchResponse
			path := fmt.Sprintf("/api/batches/%s/cancel?tenant=%s", args[0], tenant)
			if err := client.Post(cmd.Context(), path, nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "default", "Tenant identifier")
	return cmd
}
