// Package handlers exposes the payer integration REST surface.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clearwell-health/therabill/internal/eligibility"
	"github.com/clearwell-health/therabill/internal/tenancy"
	"github.com/clearwell-health/therabill/pkg/logging"
)

// EligibilityHandler serves payer capability endpoints.
type EligibilityHandler struct {
	service *eligibility.Service
	logger  *logging.Logger
}

func NewEligibilityHandler(service *eligibility.Service, logger *logging.Logger) *EligibilityHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &EligibilityHandler{service: service, logger: logger.Component("http.eligibility")}
}

// VerificationRequest is the request body for capability endpoints.
type VerificationRequest struct {
	MemberID     string `json:"member_id"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	DateOfBirth  string `json:"date_of_birth,omitempty"` // YYYY-MM-DD
	ProviderNPI  string `json:"provider_npi,omitempty"`
	ProviderOrg  string `json:"provider_org,omitempty"`
	TaxID        string `json:"tax_id,omitempty"`
	ServiceStart string `json:"service_start,omitempty"` // YYYY-MM-DD, claims history window
	ServiceEnd   string `json:"service_end,omitempty"`
}

func (h *EligibilityHandler) parseRequest(w http.ResponseWriter, r *http.Request) (eligibility.Request, bool) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing org context", http.StatusBadRequest)
		return eligibility.Request{}, false
	}

	var body VerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return eligibility.Request{}, false
	}
	if strings.TrimSpace(body.MemberID) == "" {
		http.Error(w, "member_id is required", http.StatusBadRequest)
		return eligibility.Request{}, false
	}

	req := eligibility.Request{
		OrgID:       orgID,
		PayerCode:   chi.URLParam(r, "payerCode"),
		MemberID:    strings.TrimSpace(body.MemberID),
		FirstName:   body.FirstName,
		LastName:    body.LastName,
		DateOfBirth: body.DateOfBirth,
		ProviderNPI: body.ProviderNPI,
		ProviderOrg: body.ProviderOrg,
		TaxID:       body.TaxID,
	}

	if body.ServiceStart != "" {
		start, err := time.Parse("2006-01-02", body.ServiceStart)
		if err != nil {
			http.Error(w, "service_start must be YYYY-MM-DD", http.StatusBadRequest)
			return eligibility.Request{}, false
		}
		req.ServiceStart = start
	}
	if body.ServiceEnd != "" {
		end, err := time.Parse("2006-01-02", body.ServiceEnd)
		if err != nil {
			http.Error(w, "service_end must be YYYY-MM-DD", http.StatusBadRequest)
			return eligibility.Request{}, false
		}
		req.ServiceEnd = end
	}

	return req, true
}

// CheckEligibility handles POST /api/payers/{payerCode}/eligibility.
func (h *EligibilityHandler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}
	writeEnvelope(w, h.service.CheckEligibility(r.Context(), req))
}

// GetBenefits handles POST /api/payers/{payerCode}/benefits.
func (h *EligibilityHandler) GetBenefits(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}
	writeEnvelope(w, h.service.GetBenefits(r.Context(), req))
}

// GetClaimsHistory handles POST /api/payers/{payerCode}/claims-history.
func (h *EligibilityHandler) GetClaimsHistory(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}
	writeEnvelope(w, h.service.GetClaimsHistory(r.Context(), req))
}

// CheckPriorAuth handles POST /api/payers/{payerCode}/prior-auth.
func (h *EligibilityHandler) CheckPriorAuth(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}
	writeEnvelope(w, h.service.CheckPriorAuth(r.Context(), req))
}

// InvalidateCache handles DELETE /api/payers/{payerCode}/eligibility/{memberID}/cache.
func (h *EligibilityHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing org context", http.StatusBadRequest)
		return
	}
	payerCode := chi.URLParam(r, "payerCode")
	memberID := chi.URLParam(r, "memberID")

	if err := h.service.InvalidateCache(r.Context(), orgID, payerCode, memberID); err != nil {
		h.logger.Error("cache invalidation failed", "payer", payerCode, "error", err)
		http.Error(w, "cache invalidation failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListPayers handles GET /api/payers.
func (h *EligibilityHandler) ListPayers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"payers": h.service.ListPayers()})
}

// PayerHealth handles GET /api/payers/{payerCode}/health.
func (h *EligibilityHandler) PayerHealth(w http.ResponseWriter, r *http.Request) {
	payerCode := chi.URLParam(r, "payerCode")
	status, err := h.service.HealthCheck(r.Context(), payerCode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// writeEnvelope serializes a capability response envelope. The HTTP status
// is 200 even for payer-level failures: the envelope's success flag and
// error code carry the outcome, and transport-level 4xx/5xx are reserved
// for problems with the API call itself.
func writeEnvelope[T any](w http.ResponseWriter, resp T) {
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
