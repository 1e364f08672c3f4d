package endpoints

import (
	"encoding/json"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/Dweliw01/DocuFlow-sub000/internal/api"
	"github.com/Dweliw01/DocuFlow-sub000/internal/mapper"
	"github.com/Dweliw01/DocuFlow-sub000/internal/svcctx"
	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

// MappingResponse wraps one tenant+connector field mapping.
type MappingResponse struct {
	Mapping types.FieldMapping `json:"mapping"`
}

// UpdateMappingRequest is the request body for storing a mapping
// override.
type UpdateMappingRequest struct {
	Fields    map[string]string `json:"fields"`
	TableCols []string          `json:"table_cols,omitempty"`
}

// GetMappingEndpoint handles GET /api/mapping.
type GetMappingEndpoint struct{}

func (e *GetMappingEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/mapping", e.handler
}

func (e *GetMappingEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get field mapping
//	@Description	Get the tenant's stored field mapping for the active connector
//	@Tags			mapping
//	@Produce		json
//	@Success		200	{object}	MappingResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/mapping [get]
func (e *GetMappingEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	repo := svcctx.RepoFrom(r.Context())
	conn := svcctx.ConnectorFrom(r.Context())
	if repo == nil || conn == nil {
		writeError(w, http.StatusServiceUnavailable, "services not initialized")
		return
	}

	mapping, err := repo.GetMapping(r.Context(), tenantFrom(r), conn.Name())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, MappingResponse{Mapping: mapping})
}

func (e *GetMappingEndpoint) Command(getServerURL func() string) *cobra.Command {
	var tenant string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Get the stored field mapping",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp MappingResponse
			if err := client.Get(cmd.Context(), "/api/mapping?tenant="+tenant, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "default", "Tenant identifier")
	return cmd
}

// UpdateMappingEndpoint handles PUT /api/mapping.
type UpdateMappingEndpoint struct{}

func (e *UpdateMappingEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/api/mapping", e.handler
}

func (e *UpdateMappingEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Update field mapping
//	@Description	Store the tenant's extraction-to-destination field mapping override
//	@Tags			mapping
//	@Accept			json
//	@Produce		json
//	@Param			request	body		UpdateMappingRequest	true	"Mapping"
//	@Success		200	{object}	MappingResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/mapping [put]
func (e *UpdateMappingEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	repo := svcctx.RepoFrom(r.Context())
	conn := svcctx.ConnectorFrom(r.Context())
	if repo == nil || conn == nil {
		writeError(w, http.StatusServiceUnavailable, "services not initialized")
		return
	}

	var req UpdateMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Fields) == 0 {
		writeError(w, http.StatusBadRequest, "fields is required")
		return
	}

	mapping := types.FieldMapping{
		TenantID:  tenantFrom(r),
		Connector: conn.Name(),
		Fields:    req.Fields,
		TableCols: req.TableCols,
	}
	if err := repo.SaveMapping(r.Context(), mapping); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, MappingResponse{Mapping: mapping})
}

func (e *UpdateMappingEndpoint) Command(getServerURL func() string) *cobra.Command {
	var tenant, fieldsJSON string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store a field mapping override",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req UpdateMappingRequest
			if err := json.Unmarshal([]byte(fieldsJSON), &req.Fields); err != nil {
				return err
			}
			client := api.NewClient(getServerURL())
			var resp MappingResponse
			if err := client.Put(cmd.Context(), "/api/mapping?tenant="+tenant, req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "default", "Tenant identifier")
	cmd.Flags().StringVar(&fieldsJSON, "fields", "{}", `Mapping as JSON, e.g. '{"amount":"total_amount"}'`)
	return cmd
}

// SuggestMappingResponse carries the destination schema plus the
// automatic name-match suggestions for review in a mapping UI.
type SuggestMappingResponse struct {
	Schema    types.DestinationSchema `json:"schema"`
	Suggested map[string]string       `json:"suggested"`
}

// SuggestMappingEndpoint handles GET /api/mapping/suggest.
type SuggestMappingEndpoint struct{}

func (e *SuggestMappingEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/mapping/suggest", e.handler
}

func (e *SuggestMappingEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Suggest a field mapping
//	@Description	Fetch the live destination schema and auto-match a document's field names against it
//	@Tags			mapping
//	@Produce		json
//	@Param			document_id	query	string	true	"Document whose extracted field names seed the match"
//	@Param			target		query	string	false	"Destination target ID"
//	@Success		200	{object}	SuggestMappingResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/mapping/suggest [get]
func (e *SuggestMappingEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	repo := svcctx.RepoFrom(r.Context())
	conn := svcctx.ConnectorFrom(r.Context())
	if repo == nil || conn == nil {
		writeError(w, http.StatusServiceUnavailable, "services not initialized")
		return
	}

	docID := r.URL.Query().Get("document_id")
	if docID == "" {
		writeError(w, http.StatusBadRequest, "document_id is required")
		return
	}

	fields, err := repo.FieldsForDocument(r.Context(), tenantFrom(r), docID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sources := make([]string, 0, len(fields))
	for _, f := range fields {
		sources = append(sources, f.Name)
	}

	schema, err := conn.ListSchema(r.Context(), r.URL.Query().Get("target"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SuggestMappingResponse{
		Schema:    schema,
		Suggested: mapper.Match(schema, sources),
	})
}

func (e *SuggestMappingEndpoint) Command(getServerURL func() string) *cobra.Command {
	var tenant, docID string
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Auto-match a document's fields against the destination schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SuggestMappingResponse
			path := "/api/mapping/suggest?tenant=" + tenant + "&document_id=" + docID
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "default", "Tenant identifier")
	cmd.Flags().StringVar(&docID, "document", "", "Document ID")
	return cmd
}
