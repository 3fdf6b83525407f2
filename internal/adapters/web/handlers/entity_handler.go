package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jmtrigo/riskmap/internal/core/domain"
	"github.com/jmtrigo/riskmap/internal/core/ports"
)

// EntityHandler serves entity queries and correlation edge review.
type EntityHandler struct {
	Storage ports.Storage
	Audit   ports.AuditService
}

// NewEntityHandler creates a new EntityHandler.
func NewEntityHandler(storage ports.Storage, audit ports.AuditService) *EntityHandler {
	return &EntityHandler{Storage: storage, Audit: audit}
}

func (h *EntityHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	entities, err := h.Storage.ListEntities(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entities": entities, "count": len(entities)})
}

func (h *EntityHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	entity, err := h.Storage.GetEntity(r.Context(), vars["id"], vars["entityID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

// HandleListEdges returns every proposed correlation for the project.
func (h *EntityHandler) HandleListEdges(w http.ResponseWriter, r *http.Request) {
	edges, err := h.Storage.ListEdges(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"edges": edges, "count": len(edges)})
}

type edgeValidationRequest struct {
	FromID     string                `json:"from_id"`
	ToID       string                `json:"to_id"`
	Kind       domain.EdgeKind       `json:"kind"`
	Validation domain.EdgeValidation `json:"validation"`
}

// HandleValidateEdge records an expert's verdict on a proposed correlation.
// Validation state is the only mutable part of an edge.
func (h *EntityHandler) HandleValidateEdge(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]

	var req edgeValidationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}

	switch req.Validation {
	case domain.ValidationExpert, domain.ValidationDisputed, domain.ValidationAuto:
	default:
		http.Error(w, "Invalid validation state", http.StatusBadRequest)
		return
	}

	// Undirected kinds are stored in canonical order.
	if !req.Kind.Directed() && req.ToID < req.FromID {
		req.FromID, req.ToID = req.ToID, req.FromID
	}

	edges, err := h.Storage.ListEdges(r.Context(), projectID)
	if err != nil {
		writeError(w, err)
		return
	}

	var target *domain.CorrelationEdge
	for i := range edges {
		if edges[i].FromID == req.FromID && edges[i].ToID == req.ToID && edges[i].Kind == req.Kind {
			target = &edges[i]
			break
		}
	}
	if target == nil {
		http.Error(w, "Edge not found", http.StatusNotFound)
		return
	}

	target.Validation = req.Validation
	if err := h.Storage.SaveEdges(r.Context(), projectID, []domain.CorrelationEdge{*target}); err != nil {
		writeError(w, err)
		return
	}

	if h.Audit != nil {
		h.Audit.Log(r.Context(), domain.ActionEntityUpdate, projectID,
			target.Key(), "edge validation set to "+string(req.Validation))
	}

	writeJSON(w, http.StatusOK, target)
}
