package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/jmtrigo/riskmap/internal/core/ports"
)

// AuditHandler exposes the audit trail.
type AuditHandler struct {
	Service ports.AuditService
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(service ports.AuditService) *AuditHandler {
	return &AuditHandler{Service: service}
}

// HandleGetLogs returns the most recent audit entries.
func (h *AuditHandler) HandleGetLogs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	logs, err := h.Service.GetLogs(r.Context(), limit)
	if err != nil {
		log.Printf("Failed to fetch audit logs: %v", err)
		http.Error(w, "Failed to fetch logs", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": logs})
}
