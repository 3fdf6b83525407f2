package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmtrigo/riskmap/internal/adapters/web/middleware"
)

// SetupRoutes wires the full HTTP surface. Everything under /api except
// login is session-protected; mutations additionally require the analyst or
// admin role.
func SetupRoutes(s *Server) http.Handler {
	r := mux.NewRouter()

	// 5 login attempts per minute per host, on top of the per-account
	// limiter inside the auth service.
	loginLimiter := middleware.NewRateLimiter(5, 1*time.Minute)
	r.Handle("/api/login",
		middleware.RateLimitMiddleware(loginLimiter)(http.HandlerFunc(s.AuthHandler.HandleLogin))).
		Methods(http.MethodPost)
	r.HandleFunc("/api/logout", s.AuthHandler.HandleLogout).Methods(http.MethodPost)

	// Protected API
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware(s.AuthService))

	edit := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireEditor(h)
	}

	api.HandleFunc("/me", s.AuthHandler.HandleMe).Methods(http.MethodGet)
	api.HandleFunc("/formats", s.ImportHandler.HandleFormats).Methods(http.MethodGet)

	// Projects
	api.Handle("/projects", edit(s.ProjectHandler.HandleCreate)).Methods(http.MethodPost)
	api.HandleFunc("/projects", s.ProjectHandler.HandleList).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}", s.ProjectHandler.HandleGet).Methods(http.MethodGet)
	api.Handle("/projects/{id}", edit(s.ProjectHandler.HandleArchive)).Methods(http.MethodDelete)

	// Imports
	api.Handle("/projects/{id}/import", edit(s.ImportHandler.HandleImport)).Methods(http.MethodPost)

	// Findings
	api.HandleFunc("/projects/{id}/findings", s.FindingHandler.HandleList).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}/findings/{findingID}", s.FindingHandler.HandleGet).Methods(http.MethodGet)
	api.Handle("/projects/{id}/findings/{findingID}", edit(s.FindingHandler.HandleUpdate)).Methods(http.MethodPatch)

	// Entities and correlation review
	api.HandleFunc("/projects/{id}/entities", s.EntityHandler.HandleList).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}/entities/{entityID}", s.EntityHandler.HandleGet).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}/edges", s.EntityHandler.HandleListEdges).Methods(http.MethodGet)
	api.Handle("/projects/{id}/edges/validation", edit(s.EntityHandler.HandleValidateEdge)).Methods(http.MethodPost)

	// Synthesis
	api.Handle("/projects/{id}/synthesis", edit(s.SynthesisHandler.HandleStart)).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}/synthesis", s.SynthesisHandler.HandleListVersions).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}/synthesis/{resultID}", s.SynthesisHandler.HandleGetResult).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}/heatmap", s.SynthesisHandler.HandleHeatMap).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}/gaps", s.SynthesisHandler.HandleGaps).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}/redundancies", s.SynthesisHandler.HandleRedundancies).Methods(http.MethodGet)

	// Exports
	api.HandleFunc("/projects/{id}/export", s.ExportHandler.HandleExport).Methods(http.MethodGet)

	// Audit trail
	api.HandleFunc("/audit-logs", s.AuditHandler.HandleGetLogs).Methods(http.MethodGet)

	// Run progress push channel (protected)
	protect := middleware.AuthMiddleware(s.AuthService)
	r.Handle("/ws", protect(http.HandlerFunc(s.WSManager.HandleWebSocket)))

	// Metrics endpoint (protected - requires authentication)
	r.Handle("/metrics", protect(promhttp.Handler()))

	return r
}
