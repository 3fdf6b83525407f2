package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/jmtrigo/riskmap/internal/core/domain"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("JSON encode error: %v", err)
	}
}

// writeError maps domain errors onto HTTP status codes. Unknown errors are
// logged and returned as opaque 500s.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrProjectNotFound),
		errors.Is(err, domain.ErrFindingNotFound),
		errors.Is(err, domain.ErrEntityNotFound),
		errors.Is(err, domain.ErrResultNotFound),
		errors.Is(err, domain.ErrNoCompletedRun):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrProjectArchived),
		errors.Is(err, domain.ErrProjectRunning),
		errors.Is(err, domain.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrEmptyProjectName),
		errors.Is(err, domain.ErrInvalidRiskRange),
		errors.Is(err, domain.ErrInvalidTimeRange),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidFramework),
		errors.Is(err, domain.ErrInvalidEdgeKind):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("Internal error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
