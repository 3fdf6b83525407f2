package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/jmtrigo/riskmap/internal/core/domain"
	"github.com/jmtrigo/riskmap/internal/core/ports"
)

// FindingHandler serves the finding query and edit endpoints.
type FindingHandler struct {
	Storage ports.Storage
	Audit   ports.AuditService
}

// NewFindingHandler creates a new FindingHandler.
func NewFindingHandler(storage ports.Storage, audit ports.AuditService) *FindingHandler {
	return &FindingHandler{Storage: storage, Audit: audit}
}

// HandleList returns the project's findings filtered by query parameters.
func (h *FindingHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := filter.Validate(); err != nil {
		writeError(w, err)
		return
	}

	findings, err := h.Storage.ListFindings(r.Context(), mux.Vars(r)["id"], *filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"findings": findings, "count": len(findings)})
}

func (h *FindingHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	finding, err := h.Storage.GetFinding(r.Context(), vars["id"], vars["findingID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, finding)
}

// findingUpdate is the PATCH body. Absent fields keep their current value;
// a severity change clears the unified risk until the next run rescoring it.
type findingUpdate struct {
	Status         *domain.FindingStatus  `json:"status,omitempty"`
	Mitigations    *[]string              `json:"mitigations,omitempty"`
	Description    *string                `json:"description,omitempty"`
	NativeSeverity *domain.NativeSeverity `json:"native_severity,omitempty"`
}

// HandleUpdate edits a finding in place (last writer wins) and records the
// change in the audit trail. Edits are rejected while a synthesis run is in
// progress: the run persists its normalized snapshot over the full finding
// rows, so a concurrent edit would be silently lost.
func (h *FindingHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	projectID, findingID := vars["id"], vars["findingID"]

	var update findingUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}

	project, err := h.Storage.GetProject(r.Context(), projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	if project.State == domain.StateRunning {
		writeError(w, domain.ErrProjectRunning)
		return
	}

	finding, err := h.Storage.GetFinding(r.Context(), projectID, findingID)
	if err != nil {
		writeError(w, err)
		return
	}

	changes := ""
	if update.Status != nil {
		if !update.Status.IsValid() {
			writeError(w, domain.ErrInvalidStatus)
			return
		}
		finding.Status = *update.Status
		changes += fmt.Sprintf("status=%s ", *update.Status)
	}
	if update.Mitigations != nil {
		finding.Mitigations = *update.Mitigations
		changes += fmt.Sprintf("mitigations=%d ", len(*update.Mitigations))
	}
	if update.Description != nil {
		finding.Description = *update.Description
		changes += "description "
	}
	if update.NativeSeverity != nil {
		finding.SetNativeSeverity(*update.NativeSeverity)
		changes += "severity "
	}

	if changes == "" {
		http.Error(w, "Empty update", http.StatusBadRequest)
		return
	}

	if err := h.Storage.SaveFinding(r.Context(), *finding); err != nil {
		writeError(w, err)
		return
	}

	if h.Audit != nil {
		h.Audit.Log(r.Context(), domain.ActionFindingUpdate, projectID, findingID, changes)
	}

	writeJSON(w, http.StatusOK, finding)
}

// filterFromQuery decodes FindingFilter fields from URL query parameters.
func filterFromQuery(r *http.Request) (*domain.FindingFilter, error) {
	q := r.URL.Query()
	filter := domain.NewFindingFilter()

	filter.Framework = domain.Framework(q.Get("framework"))
	filter.Category = q.Get("category")
	filter.SubjectRef = q.Get("subject")
	filter.Status = domain.FindingStatus(q.Get("status"))
	filter.Search = q.Get("search")

	if v := q.Get("min_risk"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid min_risk %q", v)
		}
		filter.MinRisk = &n
	}
	if v := q.Get("max_risk"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid max_risk %q", v)
		}
		filter.MaxRisk = &n
	}
	if v := q.Get("scored"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid scored %q", v)
		}
		filter.Scored = &b
	}
	if v := q.Get("imported_after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("invalid imported_after %q", v)
		}
		filter.ImportedAfter = t
	}
	if v := q.Get("imported_before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("invalid imported_before %q", v)
		}
		filter.ImportedBefore = t
	}

	return filter, nil
}
