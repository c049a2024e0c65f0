// Package admin exposes the policy administration surface. Replacement is
// wholesale: a posted document fully supersedes the active policy, no
// partial or merge updates.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/teasru/Secure-LLM-Gateway/internal/auth"
	"github.com/teasru/Secure-LLM-Gateway/internal/gateway"
	"github.com/teasru/Secure-LLM-Gateway/internal/models"
	"github.com/teasru/Secure-LLM-Gateway/internal/policy"
)

// AuditReader lists recent audit records; nil when persistence is disabled.
type AuditReader interface {
	RecentRecords(ctx context.Context, limit int) ([]models.AuditRecord, error)
}

type AdminHandler struct {
	policies *policy.Store
	events   *gateway.Events
	auditLog AuditReader
}

func NewAdminHandler(policies *policy.Store, events *gateway.Events, auditLog AuditReader) *AdminHandler {
	return &AdminHandler{policies: policies, events: events, auditLog: auditLog}
}

// RegisterRoutes mounts the admin endpoints on a router already rooted at
// the /admin prefix.
func (h *AdminHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/policy", h.GetPolicy).Methods("GET")
	router.HandleFunc("/policy", h.UpdatePolicy).Methods("POST")
	router.HandleFunc("/audit", h.RecentAudit).Methods("GET")
}

func (h *AdminHandler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.policies.Load().Document())
}

func (h *AdminHandler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var doc policy.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, "Invalid policy document", http.StatusBadRequest)
		return
	}

	p, err := policy.Compile(doc)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.policies.Replace(r.Context(), p)

	identity, _ := auth.IdentityFromContext(r.Context())
	h.events.PolicyUpdated(r.Context(), identity, uuid.NewString(),
		len(doc.BlockedKeywords), len(doc.BlockedPatterns))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "Policy updated"})
}

func (h *AdminHandler) RecentAudit(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	if h.auditLog == nil {
		http.Error(w, "Audit persistence is disabled", http.StatusServiceUnavailable)
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	records, err := h.auditLog.RecentRecords(r.Context(), limit)
	if err != nil {
		http.Error(w, "Failed to list audit records", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

func (h *AdminHandler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return false
	}
	if identity.Role != models.RoleAdmin {
		http.Error(w, "Insufficient permissions", http.StatusForbidden)
		return false
	}
	return true
}
