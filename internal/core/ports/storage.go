package ports

import (
	"context"

	"github.com/jmtrigo/riskmap/internal/core/domain"
)

// Storage defines the behavior for data persistence. Findings and entities
// are mutable (last-writer-wins); correlation edges and synthesis results
// are append-only.
type Storage interface {
	ProjectRepository
	FindingRepository
	EntityRepository
	EdgeRepository
	ResultRepository

	// Close closes the storage connection.
	Close() error
}

// ProjectRepository persists project lifecycle state.
type ProjectRepository interface {
	SaveProject(ctx context.Context, p domain.Project) error
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	ListProjects(ctx context.Context) ([]domain.Project, error)
	ArchiveProject(ctx context.Context, id string) error
}

// FindingRepository persists findings scoped to a project.
type FindingRepository interface {
	SaveFinding(ctx context.Context, f domain.Finding) error
	SaveFindingsBatch(ctx context.Context, findings []domain.Finding) error
	GetFinding(ctx context.Context, projectID, id string) (*domain.Finding, error)
	ListFindings(ctx context.Context, projectID string, filter domain.FindingFilter) ([]domain.Finding, error)
}

// EntityRepository persists entities scoped to a project.
type EntityRepository interface {
	SaveEntity(ctx context.Context, e domain.Entity) error
	SaveEntitiesBatch(ctx context.Context, entities []domain.Entity) error
	GetEntity(ctx context.Context, projectID, id string) (*domain.Entity, error)
	ListEntities(ctx context.Context, projectID string) ([]domain.Entity, error)
}

// EdgeRepository persists correlation edges. Append-only: saving an edge
// whose (from,to,kind) key exists updates validation state only.
type EdgeRepository interface {
	SaveEdges(ctx context.Context, projectID string, edges []domain.CorrelationEdge) error
	ListEdges(ctx context.Context, projectID string) ([]domain.CorrelationEdge, error)
}

// ResultRepository persists synthesis results. Append-only: a result row is
// never updated after creation.
type ResultRepository interface {
	SaveResult(ctx context.Context, r domain.SynthesisResult) error
	GetResult(ctx context.Context, projectID, resultID string) (*domain.SynthesisResult, error)
	GetLatestResult(ctx context.Context, projectID string) (*domain.SynthesisResult, error)
	ListResults(ctx context.Context, projectID string) ([]domain.SynthesisResult, error)
}
