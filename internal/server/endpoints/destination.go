package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/Dweliw01/DocuFlow-sub000/internal/api"
	"github.com/Dweliw01/DocuFlow-sub000/internal/svcctx"
	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

// DestinationSchemaResponse wraps the live destination schema.
type DestinationSchemaResponse struct {
	Connector string                  `json:"connector"`
	Schema    types.DestinationSchema `json:"schema"`
}

// DestinationSchemaEndpoint handles GET /api/destination/schema.
type DestinationSchemaEndpoint struct{}

func (e *DestinationSchemaEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/destination/schema", e.handler
}

func (e *DestinationSchemaEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get destination schema
//	@Description	Fetch the destination repository's live field schema
//	@Tags			destination
//	@Produce		json
//	@Param			target	query	string	false	"Destination target ID"
//	@Success		200	{object}	DestinationSchemaResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/destination/schema [get]
func (e *DestinationSchemaEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	conn := svcctx.ConnectorFrom(r.Context())
	if conn == nil {
		writeError(w, http.StatusServiceUnavailable, "connector not initialized")
		return
	}

	schema, err := conn.ListSchema(r.Context(), r.URL.Query().Get("target"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, DestinationSchemaResponse{
		Connector: conn.Name(),
		Schema:    schema,
	})
}

func (e *DestinationSchemaEndpoint) Command(getServerURL func() string) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Fetch the destination repository schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp DestinationSchemaResponse
			path := "/api/destination/schema"
			if target != "" {
				path += "?target=" + target
			}
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "Destination target ID")
	return cmd
}
