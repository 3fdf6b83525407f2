package handlers

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jmtrigo/riskmap/internal/adapters/reporting"
	"github.com/jmtrigo/riskmap/internal/adapters/web/middleware"
	"github.com/jmtrigo/riskmap/internal/core/domain"
	"github.com/jmtrigo/riskmap/internal/core/ports"
	"github.com/jmtrigo/riskmap/internal/core/services/export"
)

// ExportHandler serves project exports in JSON, CSV and PDF.
type ExportHandler struct {
	Storage     ports.Storage
	Synthesis   ports.SynthesisService
	PDFExporter *reporting.PDFExporter
	Audit       ports.AuditService
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(storage ports.Storage, synthesis ports.SynthesisService, pdfExporter *reporting.PDFExporter, audit ports.AuditService) *ExportHandler {
	return &ExportHandler{
		Storage:     storage,
		Synthesis:   synthesis,
		PDFExporter: pdfExporter,
		Audit:       audit,
	}
}

// HandleExport exports project data. type selects the payload (findings,
// result, gaps); format selects the encoding. JSON finding exports round-trip
// through the generic import adapter.
func (h *ExportHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	dataType := r.URL.Query().Get("type")
	if dataType == "" {
		dataType = "findings"
	}

	var err error
	switch {
	case dataType == "findings" && format == "json":
		err = h.exportFindingsJSON(w, r, projectID)
	case dataType == "findings" && format == "csv":
		err = h.exportFindingsCSV(w, r, projectID)
	case dataType == "result" && format == "json":
		err = h.exportResultJSON(w, r, projectID)
	case dataType == "result" && format == "pdf":
		err = h.exportResultPDF(w, r, projectID)
	case dataType == "gaps" && format == "csv":
		err = h.exportGapsCSV(w, r, projectID)
	default:
		http.Error(w, fmt.Sprintf("unsupported export %s/%s", dataType, format), http.StatusBadRequest)
		return
	}

	if err != nil {
		writeError(w, err)
		return
	}

	if h.Audit != nil {
		h.Audit.Log(r.Context(), domain.ActionExport, projectID, dataType, "format="+format)
	}
}

func (h *ExportHandler) exportFindingsJSON(w http.ResponseWriter, r *http.Request, projectID string) error {
	findings, err := h.Storage.ListFindings(r.Context(), projectID, domain.FindingFilter{})
	if err != nil {
		return err
	}
	entities, err := h.Storage.ListEntities(r.Context(), projectID)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=riskmap_findings.json")
	if err := export.ExportFindingsJSON(w, findings, entities); err != nil {
		log.Printf("JSON export error: %v", err)
	}
	return nil
}

func (h *ExportHandler) exportFindingsCSV(w http.ResponseWriter, r *http.Request, projectID string) error {
	findings, err := h.Storage.ListFindings(r.Context(), projectID, domain.FindingFilter{})
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=riskmap_findings.csv")
	if err := export.ExportFindingsCSV(w, findings); err != nil {
		log.Printf("CSV export error: %v", err)
	}
	return nil
}

func (h *ExportHandler) exportResultJSON(w http.ResponseWriter, r *http.Request, projectID string) error {
	result, err := h.Synthesis.GetSynthesisResult(r.Context(), projectID, r.URL.Query().Get("result"))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=riskmap_result.json")
	if err := export.ExportResultJSON(w, *result); err != nil {
		log.Printf("JSON export error: %v", err)
	}
	return nil
}

func (h *ExportHandler) exportResultPDF(w http.ResponseWriter, r *http.Request, projectID string) error {
	result, err := h.Synthesis.GetSynthesisResult(r.Context(), projectID, r.URL.Query().Get("result"))
	if err != nil {
		return err
	}
	project, err := h.Storage.GetProject(r.Context(), projectID)
	if err != nil {
		return err
	}

	generatedBy := "riskmap"
	if user, ok := middleware.UserFromRequest(r); ok {
		generatedBy = user.Username
	}

	report := domain.ReportData{
		GeneratedAt: time.Now().UTC(),
		GeneratedBy: generatedBy,
		ProjectName: project.Name,
		Result:      *result,
		Stats:       domain.BuildReportStats(*result),
	}

	pdfData, err := h.PDFExporter.ExportSynthesisReport(report)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=riskmap_report.pdf")
	w.Write(pdfData)
	return nil
}

func (h *ExportHandler) exportGapsCSV(w http.ResponseWriter, r *http.Request, projectID string) error {
	gapList, err := h.Synthesis.GetGaps(r.Context(), projectID)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=riskmap_gaps.csv")
	if err := export.ExportGapsCSV(w, gapList); err != nil {
		log.Printf("CSV export error: %v", err)
	}
	return nil
}
