package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jmtrigo/riskmap/internal/core/domain"
	"github.com/jmtrigo/riskmap/internal/core/ports"
	"github.com/jmtrigo/riskmap/internal/core/services/aggregation"
)

// SynthesisHandler exposes the synthesis command and its query surface.
type SynthesisHandler struct {
	Service ports.SynthesisService
	Storage ports.Storage
	Audit   ports.AuditService
}

// NewSynthesisHandler creates a new SynthesisHandler.
func NewSynthesisHandler(service ports.SynthesisService, storage ports.Storage, audit ports.AuditService) *SynthesisHandler {
	return &SynthesisHandler{Service: service, Storage: storage, Audit: audit}
}

// HandleStart launches a synthesis run. Starting while a run is already in
// progress returns the in-flight run instead of a second one.
func (h *SynthesisHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]

	var req struct {
		Frameworks []domain.Framework `json:"frameworks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}
	for _, fw := range req.Frameworks {
		if !fw.IsValid() {
			writeError(w, domain.ErrInvalidFramework)
			return
		}
	}

	runID, err := h.Service.StartSynthesis(r.Context(), projectID, req.Frameworks)
	if err != nil {
		writeError(w, err)
		return
	}

	if h.Audit != nil {
		h.Audit.Log(r.Context(), domain.ActionSynthesisStarted, projectID, runID, "synthesis run started")
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

// HandleGetResult returns one snapshot: the latest when the path says so, or
// the addressed version.
func (h *SynthesisHandler) HandleGetResult(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	resultID := vars["resultID"]
	if resultID == "latest" {
		resultID = ""
	}

	result, err := h.Service.GetSynthesisResult(r.Context(), vars["id"], resultID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// resultSummary is the listing shape: scalar fields only, no snapshot body.
type resultSummary struct {
	ID              string             `json:"id"`
	Version         int                `json:"version"`
	ComputedAt      string             `json:"computed_at"`
	Frameworks      []domain.Framework `json:"frameworks_included"`
	ConfidenceLevel float64            `json:"confidence_level"`
	FindingCount    int                `json:"finding_count"`
	GapCount        int                `json:"gap_count"`
	ExcludedCount   int                `json:"excluded_count"`
}

// HandleListVersions lists every stored snapshot of the project, oldest first.
func (h *SynthesisHandler) HandleListVersions(w http.ResponseWriter, r *http.Request) {
	results, err := h.Storage.ListResults(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	summaries := make([]resultSummary, len(results))
	for i, res := range results {
		summaries[i] = resultSummary{
			ID:              res.ID,
			Version:         res.Version,
			ComputedAt:      res.ComputedAt.Format("2006-01-02T15:04:05Z07:00"),
			Frameworks:      res.FrameworksIncluded,
			ConfidenceLevel: res.ConfidenceLevel,
			FindingCount:    len(res.Findings),
			GapCount:        len(res.Gaps),
			ExcludedCount:   len(res.ExcludedFindings),
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": summaries})
}

// HandleHeatMap computes a grouped risk grid over the latest snapshot.
// Row and column default to framework × category.
func (h *SynthesisHandler) HandleHeatMap(w http.ResponseWriter, r *http.Request) {
	row := r.URL.Query().Get("row")
	col := r.URL.Query().Get("col")
	if row == "" {
		row = domain.KeyFramework
	}
	if col == "" {
		col = domain.KeyCategory
	}

	cells, err := h.Service.GetHeatMap(r.Context(), mux.Vars(r)["id"], row, col)
	if err != nil {
		if errors.Is(err, aggregation.ErrUnknownKey) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"row": row, "col": col, "cells": cells})
}

func (h *SynthesisHandler) HandleGaps(w http.ResponseWriter, r *http.Request) {
	gapList, err := h.Service.GetGaps(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"gaps": gapList, "count": len(gapList)})
}

func (h *SynthesisHandler) HandleRedundancies(w http.ResponseWriter, r *http.Request) {
	groups, err := h.Service.GetRedundancies(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"redundancies": groups, "count": len(groups)})
}
