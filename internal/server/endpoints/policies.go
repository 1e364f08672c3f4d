package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/Dweliw01/DocuFlow-sub000/internal/api"
	"github.com/Dweliw01/DocuFlow-sub000/internal/svcctx"
	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

// PolicyResponse wraps one tenant's routing policy.
type PolicyResponse struct {
	Policy types.RoutingPolicy `json:"policy"`
}

// UpdatePolicyRequest is the request body for setting a tenant policy.
type UpdatePolicyRequest struct {
	ReviewMode          string  `json:"review_mode"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	Tier                string  `json:"tier"`
	AuditRate           float64 `json:"audit_rate,omitempty"`
}

// GetPolicyEndpoint handles GET /api/policy.
type GetPolicyEndpoint struct{}

func (e *GetPolicyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/policy", e.handler
}

func (e *GetPolicyEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get routing policy
//	@Description	Get the tenant's routing policy, falling back to defaults when unset
//	@Tags			policy
//	@Produce		json
//	@Success		200	{object}	PolicyResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/policy [get]
func (e *GetPolicyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	repo := svcctx.RepoFrom(r.Context())
	if repo == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	policy, err := repo.GetPolicy(r.Context(), tenantFrom(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, PolicyResponse{Policy: policy})
}

func (e *GetPolicyEndpoint) Command(getServerURL func() string) *cobra.Command {
	var tenant string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Get the tenant routing policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp PolicyResponse
			if err := client.Get(cmd.Context(), "/api/policy?tenant="+tenant, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "default", "Tenant identifier")
	return cmd
}

// UpdatePolicyEndpoint handles PUT /api/policy.
type UpdatePolicyEndpoint struct{}

func (e *UpdatePolicyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/api/policy", e.handler
}

func (e *UpdatePolicyEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Update routing policy
//	@Description	Set the tenant's review mode, confidence threshold, tier and audit rate
//	@Tags			policy
//	@Accept			json
//	@Produce		json
//	@Param			request	body		UpdatePolicyRequest	true	"Policy"
//	@Success		200	{object}	PolicyResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/policy [put]
func (e *UpdatePolicyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	repo := svcctx.RepoFrom(r.Context())
	if repo == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	var req UpdatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	policy := types.RoutingPolicy{
		TenantID:            tenantFrom(r),
		ReviewMode:          types.ReviewMode(req.ReviewMode),
		ConfidenceThreshold: req.ConfidenceThreshold,
		Tier:                types.Tier(req.Tier),
		AuditRate:           req.AuditRate,
	}
	if !policy.ReviewMode.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown review mode: %s", req.ReviewMode))
		return
	}
	switch policy.Tier {
	case types.TierFree, types.TierStandard, types.TierPremium:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown tier: %s", req.Tier))
		return
	}
	if policy.ConfidenceThreshold < 0 || policy.ConfidenceThreshold > 1 {
		writeError(w, http.StatusBadRequest, "confidence_threshold must be in [0,1]")
		return
	}
	if policy.AuditRate < 0 || policy.AuditRate > 1 {
		writeError(w, http.StatusBadRequest, "audit_rate must be in [0,1]")
		return
	}

	if err := repo.SavePolicy(r.Context(), policy); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, PolicyResponse{Policy: policy})
}

func (e *UpdatePolicyEndpoint) Command(getServerURL func() string) *cobra.Command {
	var tenant, mode, tier string
	var threshold, auditRate float64
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update the tenant routing policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			req := UpdatePolicyRequest{
				ReviewMode:          mode,
				ConfidenceThreshold: threshold,
				Tier:                tier,
				AuditRate:           auditRate,
			}
			var resp PolicyResponse
			if err := client.Put(cmd.Context(), "/api/policy?tenant="+tenant, req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "default", "Tenant identifier")
	cmd.Flags().StringVar(&mode, "mode", string(types.ReviewSmart), "Review mode (review_all, smart, auto_upload)")
	cmd.Flags().StringVar(&tier, "tier", string(types.TierStandard), "Tenant tier (free, standard, premium)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.85, "Auto-approval confidence threshold")
	cmd.Flags().Float64Var(&auditRate, "audit-rate", 0, "Fraction of auto-approved documents flagged for audit")
	return cmd
}
