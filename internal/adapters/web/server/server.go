package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jmtrigo/riskmap/internal/adapters/reporting"
	"github.com/jmtrigo/riskmap/internal/adapters/web/handlers"
	"github.com/jmtrigo/riskmap/internal/adapters/web/websocket"
	"github.com/jmtrigo/riskmap/internal/core/ports"
	"github.com/jmtrigo/riskmap/internal/core/services/importing"
)

// Server handles HTTP and WebSocket connections.
type Server struct {
	Addr        string
	AuthService ports.AuthService
	WSManager   *websocket.Manager

	AuthHandler      *handlers.AuthHandler
	ProjectHandler   *handlers.ProjectHandler
	ImportHandler    *handlers.ImportHandler
	FindingHandler   *handlers.FindingHandler
	EntityHandler    *handlers.EntityHandler
	SynthesisHandler *handlers.SynthesisHandler
	ExportHandler    *handlers.ExportHandler
	AuditHandler     *handlers.AuditHandler

	srv *http.Server
}

// NewServer creates a new web server over the assembled services.
func NewServer(
	addr string,
	storage ports.Storage,
	authService ports.AuthService,
	auditService ports.AuditService,
	synthesisService ports.SynthesisService,
	importService *importing.Service,
	pdfExporter *reporting.PDFExporter,
	wsManager *websocket.Manager,
) *Server {
	if wsManager == nil {
		wsManager = websocket.NewManager()
	}

	return &Server{
		Addr:        addr,
		AuthService: authService,
		WSManager:   wsManager,

		AuthHandler:      handlers.NewAuthHandler(authService, auditService),
		ProjectHandler:   handlers.NewProjectHandler(storage, auditService),
		ImportHandler:    handlers.NewImportHandler(importService),
		FindingHandler:   handlers.NewFindingHandler(storage, auditService),
		EntityHandler:    handlers.NewEntityHandler(storage, auditService),
		SynthesisHandler: handlers.NewSynthesisHandler(synthesisService, storage, auditService),
		ExportHandler:    handlers.NewExportHandler(storage, synthesisService, pdfExporter, auditService),
		AuditHandler:     handlers.NewAuditHandler(auditService),
	}
}

// Run starts the server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	handler := SetupRoutes(s)

	// Instrument with OpenTelemetry
	instrumentedHandler := otelhttp.NewHandler(handler, "riskmap-server")

	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           instrumentedHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful Shutdown implementation
	go func() {
		<-ctx.Done()
		log.Println("Web Server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Web Server shutdown error: %v", err)
		}
	}()

	log.Printf("Web server listening on %s", s.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
