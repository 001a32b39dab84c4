package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/clearwell-health/therabill/internal/credentials"
	"github.com/clearwell-health/therabill/internal/payer"
	"github.com/clearwell-health/therabill/pkg/logging"
)

// CredentialsAdminHandler provides privileged endpoints for managing payer
// credentials. Secrets go in encrypted and never come back out: reads only
// list which payers have credentials.
type CredentialsAdminHandler struct {
	store   *credentials.Store
	manager *credentials.Manager
	logger  *logging.Logger
}

func NewCredentialsAdminHandler(store *credentials.Store, manager *credentials.Manager, logger *logging.Logger) *CredentialsAdminHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &CredentialsAdminHandler{
		store:   store,
		manager: manager,
		logger:  logger.Component("http.credentials"),
	}
}

// UpsertRequest is the request body for storing a payer credential.
type UpsertRequest struct {
	Type         payer.CredentialType `json:"type"`
	ClientID     string               `json:"client_id,omitempty"`
	ClientSecret string               `json:"client_secret,omitempty"`
	APIKey       string               `json:"api_key,omitempty"`
}

// Upsert handles PUT /admin/orgs/{orgID}/payers/{payerCode}/credentials.
func (h *CredentialsAdminHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	orgID := strings.TrimSpace(chi.URLParam(r, "orgID"))
	payerCode := strings.TrimSpace(chi.URLParam(r, "payerCode"))
	if orgID == "" || payerCode == "" {
		http.Error(w, "missing orgID or payerCode", http.StatusBadRequest)
		return
	}

	var body UpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cred := payer.Credential{
		Type:         body.Type,
		ClientID:     body.ClientID,
		ClientSecret: body.ClientSecret,
		APIKey:       body.APIKey,
	}
	switch cred.Type {
	case payer.CredentialOAuthClient:
		if cred.ClientID == "" || cred.ClientSecret == "" {
			http.Error(w, "client_id and client_secret are required", http.StatusBadRequest)
			return
		}
	case payer.CredentialAPIKey:
		if cred.APIKey == "" {
			http.Error(w, "api_key is required", http.StatusBadRequest)
			return
		}
	default:
		http.Error(w, "unknown credential type", http.StatusBadRequest)
		return
	}

	sealed, err := h.manager.Encrypt(cred)
	if err != nil {
		h.logger.Error("credential encryption failed", "payer", payerCode, "error", err)
		http.Error(w, "encryption failed", http.StatusInternalServerError)
		return
	}

	id, err := h.store.Upsert(r.Context(), orgID, payerCode, sealed)
	if err != nil {
		h.logger.Error("credential upsert failed", "payer", payerCode, "error", err)
		http.Error(w, "failed to store credential", http.StatusInternalServerError)
		return
	}

	h.logger.Info("payer credential stored", "org_id", orgID, "payer", payerCode)
	writeJSON(w, http.StatusOK, map[string]string{"id": id.String(), "payer_code": payerCode})
}

// Delete handles DELETE /admin/orgs/{orgID}/payers/{payerCode}/credentials.
func (h *CredentialsAdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	orgID := strings.TrimSpace(chi.URLParam(r, "orgID"))
	payerCode := strings.TrimSpace(chi.URLParam(r, "payerCode"))
	if orgID == "" || payerCode == "" {
		http.Error(w, "missing orgID or payerCode", http.StatusBadRequest)
		return
	}

	deleted, err := h.store.Delete(r.Context(), orgID, payerCode)
	if err != nil {
		h.logger.Error("credential delete failed", "payer", payerCode, "error", err)
		http.Error(w, "failed to delete credential", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "no credential for payer", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /admin/orgs/{orgID}/payers/credentials.
func (h *CredentialsAdminHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID := strings.TrimSpace(chi.URLParam(r, "orgID"))
	if orgID == "" {
		http.Error(w, "missing orgID", http.StatusBadRequest)
		return
	}

	codes, err := h.store.ListPayers(r.Context(), orgID)
	if err != nil && !errors.Is(err, credentials.ErrNotFound) {
		h.logger.Error("credential list failed", "org_id", orgID, "error", err)
		http.Error(w, "failed to list credentials", http.StatusInternalServerError)
		return
	}
	if codes == nil {
		codes = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"org_id": orgID, "payer_codes": codes})
}
