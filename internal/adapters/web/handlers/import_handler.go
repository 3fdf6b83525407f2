package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jmtrigo/riskmap/internal/core/services/importing"
)

// maxImportBytes caps the request body for file imports.
const maxImportBytes = 16 << 20 // 16 MiB

// ImportHandler accepts framework exports and feeds them to the import
// service.
type ImportHandler struct {
	Service *importing.Service
}

// NewImportHandler creates a new ImportHandler.
func NewImportHandler(service *importing.Service) *ImportHandler {
	return &ImportHandler{Service: service}
}

// HandleImport ingests one uploaded file. The format query parameter selects
// an adapter explicitly; without it, adapters are auto-detected. A partial
// import (some records skipped) is still a success: the summary carries the
// validation report.
func (h *ImportHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]
	format := r.URL.Query().Get("format")
	sourceFile := r.URL.Query().Get("filename")

	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes+1))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	if len(data) > maxImportBytes {
		http.Error(w, "Import file too large", http.StatusRequestEntityTooLarge)
		return
	}
	if len(data) == 0 {
		http.Error(w, "Empty import body", http.StatusBadRequest)
		return
	}

	summary, err := h.Service.Import(r.Context(), projectID, format, sourceFile, data)
	if err != nil {
		if errors.Is(err, importing.ErrUnknownFormat) {
			http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
			return
		}
		writeError(w, err)
		return
	}

	// Queued means a synthesis run is in flight; the import applies when it
	// finishes.
	status := http.StatusOK
	if summary.Queued {
		status = http.StatusAccepted
	}
	writeJSON(w, status, summary)
}

// HandleFormats lists the registered adapter formats.
func (h *ImportHandler) HandleFormats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"formats": h.Service.Formats()})
}
