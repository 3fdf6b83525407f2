package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/jmtrigo/riskmap/internal/core/domain"
	"github.com/jmtrigo/riskmap/internal/core/ports"
)

// ProjectHandler manages project lifecycle endpoints.
type ProjectHandler struct {
	Storage ports.Storage
	Audit   ports.AuditService
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(storage ports.Storage, audit ports.AuditService) *ProjectHandler {
	return &ProjectHandler{Storage: storage, Audit: audit}
}

func (h *ProjectHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}

	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	project, err := domain.NewProject(req.ID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.Storage.GetProject(r.Context(), project.ID); err == nil {
		http.Error(w, "Project already exists", http.StatusConflict)
		return
	}

	if err := h.Storage.SaveProject(r.Context(), *project); err != nil {
		writeError(w, err)
		return
	}

	if h.Audit != nil {
		h.Audit.Log(r.Context(), domain.ActionProjectOp, project.ID, project.ID, "project created: "+project.Name)
	}

	writeJSON(w, http.StatusCreated, project)
}

func (h *ProjectHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Storage.ListProjects(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"projects": projects})
}

func (h *ProjectHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	project, err := h.Storage.GetProject(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// HandleArchive retires a project. Archived projects stay queryable but
// reject further imports and runs.
func (h *ProjectHandler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.Storage.ArchiveProject(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	if h.Audit != nil {
		h.Audit.Log(r.Context(), domain.ActionProjectOp, id, id, "project archived")
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}
