package storage

import (
	"context"
	"errors"

	"github.com/jmtrigo/riskmap/internal/core/domain"
	"github.com/jmtrigo/riskmap/internal/core/ports"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// SQLiteAdapter implements ports.Storage using GORM and SQLite.
type SQLiteAdapter struct {
	db *gorm.DB
}

// Ensure interface compliance
var _ ports.Storage = (*SQLiteAdapter)(nil)

// NewSQLiteAdapter initializes the database and migrates schema.
func NewSQLiteAdapter(path string) (*SQLiteAdapter, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// DB spans ride the same trace as the HTTP handler.
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	// Auto Migrate
	if err := db.AutoMigrate(
		&ProjectModel{}, &FindingModel{}, &EntityModel{},
		&EdgeModel{}, &ResultModel{},
		&UserModel{}, &domain.AuditLog{},
	); err != nil {
		return nil, err
	}

	// Create Indices for Performance
	db.Exec("CREATE INDEX IF NOT EXISTS idx_findings_imported_at ON finding_models(imported_at)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_findings_unified_risk ON finding_models(unified_risk)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_results_project_version ON result_models(project_id, version)")

	return &SQLiteAdapter{db: db}, nil
}

// --- Projects ---

func (a *SQLiteAdapter) SaveProject(ctx context.Context, p domain.Project) error {
	model := projectToModel(p)
	return a.db.WithContext(ctx).Save(&model).Error
}

func (a *SQLiteAdapter) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	var model ProjectModel
	if err := a.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, err
	}
	return projectToDomain(model), nil
}

func (a *SQLiteAdapter) ListProjects(ctx context.Context) ([]domain.Project, error) {
	var models []ProjectModel
	if err := a.db.WithContext(ctx).Order("created_at").Find(&models).Error; err != nil {
		return nil, err
	}
	projects := make([]domain.Project, len(models))
	for i, m := range models {
		projects[i] = *projectToDomain(m)
	}
	return projects, nil
}

func (a *SQLiteAdapter) ArchiveProject(ctx context.Context, id string) error {
	result := a.db.WithContext(ctx).Model(&ProjectModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"archived_at": gorm.Expr("CURRENT_TIMESTAMP"),
			"updated_at":  gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrProjectNotFound
	}
	return nil
}

// --- Findings ---

// SaveFinding upserts one finding: last writer wins on the (project, id) key.
func (a *SQLiteAdapter) SaveFinding(ctx context.Context, f domain.Finding) error {
	model := findingToModel(f)
	return a.db.WithContext(ctx).Save(&model).Error
}

// SaveFindingsBatch saves multiple findings in a single transaction.
func (a *SQLiteAdapter) SaveFindingsBatch(ctx context.Context, findings []domain.Finding) error {
	if len(findings) == 0 {
		return nil
	}

	models := make([]FindingModel, len(findings))
	for i, f := range findings {
		models[i] = findingToModel(f)
	}

	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			UpdateAll: true,
		}).CreateInBatches(models, 100).Error
	})
}

func (a *SQLiteAdapter) GetFinding(ctx context.Context, projectID, id string) (*domain.Finding, error) {
	var model FindingModel
	if err := a.db.WithContext(ctx).First(&model, "project_id = ? AND id = ?", projectID, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrFindingNotFound
		}
		return nil, err
	}
	return findingToDomain(model)
}

// ListFindings filters on indexed scalar columns in SQL and finishes with the
// in-memory Matches predicate so SQL and memory stores agree exactly.
func (a *SQLiteAdapter) ListFindings(ctx context.Context, projectID string, filter domain.FindingFilter) ([]domain.Finding, error) {
	query := a.db.WithContext(ctx).Where("project_id = ?", projectID)

	if filter.Framework != "" {
		query = query.Where("source_framework = ?", filter.Framework)
	}
	if filter.SubjectRef != "" {
		query = query.Where("subject_ref = ?", filter.SubjectRef)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if !filter.ImportedAfter.IsZero() {
		query = query.Where("imported_at >= ?", filter.ImportedAfter)
	}
	if !filter.ImportedBefore.IsZero() {
		query = query.Where("imported_at <= ?", filter.ImportedBefore)
	}

	var models []FindingModel
	if err := query.Order("id").Find(&models).Error; err != nil {
		return nil, err
	}

	findings := make([]domain.Finding, 0, len(models))
	for _, m := range models {
		f, err := findingToDomain(m)
		if err != nil {
			return nil, err
		}
		if filter.Matches(f) {
			findings = append(findings, *f)
		}
	}
	return findings, nil
}

// --- Entities ---

func (a *SQLiteAdapter) SaveEntity(ctx context.Context, e domain.Entity) error {
	model := entityToModel(e)
	return a.db.WithContext(ctx).Save(&model).Error
}

func (a *SQLiteAdapter) SaveEntitiesBatch(ctx context.Context, entities []domain.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	models := make([]EntityModel, len(entities))
	for i, e := range entities {
		models[i] = entityToModel(e)
	}

	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			UpdateAll: true,
		}).CreateInBatches(models, 100).Error
	})
}

func (a *SQLiteAdapter) GetEntity(ctx context.Context, projectID, id string) (*domain.Entity, error) {
	var model EntityModel
	if err := a.db.WithContext(ctx).First(&model, "project_id = ? AND id = ?", projectID, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrEntityNotFound
		}
		return nil, err
	}
	return entityToDomain(model)
}

func (a *SQLiteAdapter) ListEntities(ctx context.Context, projectID string) ([]domain.Entity, error) {
	var models []EntityModel
	if err := a.db.WithContext(ctx).Where("project_id = ?", projectID).Order("id").Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]domain.Entity, 0, len(models))
	for _, m := range models {
		e, err := entityToDomain(m)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *e)
	}
	return entities, nil
}

// --- Edges ---

// SaveEdges is append-only on the (project, from, to, kind) key: an existing
// row only ever has its validation state refreshed, and an incoming "auto"
// never overwrites a recorded expert verdict (engine re-runs re-propose
// every edge as auto).
func (a *SQLiteAdapter) SaveEdges(ctx context.Context, projectID string, edges []domain.CorrelationEdge) error {
	if len(edges) == 0 {
		return nil
	}

	models := make([]EdgeModel, len(edges))
	for i, e := range edges {
		models[i] = edgeToModel(projectID, e)
	}

	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "project_id"}, {Name: "from_id"}, {Name: "to_id"}, {Name: "kind"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"validation": gorm.Expr(
					"CASE WHEN excluded.validation = ? THEN edge_models.validation ELSE excluded.validation END",
					string(domain.ValidationAuto)),
			}),
		}).CreateInBatches(models, 100).Error
	})
}

func (a *SQLiteAdapter) ListEdges(ctx context.Context, projectID string) ([]domain.CorrelationEdge, error) {
	var models []EdgeModel
	if err := a.db.WithContext(ctx).Where("project_id = ?", projectID).
		Order("from_id, to_id, kind").Find(&models).Error; err != nil {
		return nil, err
	}
	edges := make([]domain.CorrelationEdge, len(models))
	for i, m := range models {
		edges[i] = edgeToDomain(m)
	}
	return edges, nil
}

// --- Results ---

// SaveResult inserts a new immutable snapshot. Create, never Save: updating
// an existing result row is a bug, and the primary key makes it an error.
func (a *SQLiteAdapter) SaveResult(ctx context.Context, r domain.SynthesisResult) error {
	model, err := resultToModel(r)
	if err != nil {
		return err
	}
	return a.db.WithContext(ctx).Create(&model).Error
}

func (a *SQLiteAdapter) GetResult(ctx context.Context, projectID, resultID string) (*domain.SynthesisResult, error) {
	var model ResultModel
	if err := a.db.WithContext(ctx).First(&model, "project_id = ? AND id = ?", projectID, resultID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrResultNotFound
		}
		return nil, err
	}
	return resultToDomain(model)
}

func (a *SQLiteAdapter) GetLatestResult(ctx context.Context, projectID string) (*domain.SynthesisResult, error) {
	var model ResultModel
	if err := a.db.WithContext(ctx).Where("project_id = ?", projectID).
		Order("version desc").First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrResultNotFound
		}
		return nil, err
	}
	return resultToDomain(model)
}

func (a *SQLiteAdapter) ListResults(ctx context.Context, projectID string) ([]domain.SynthesisResult, error) {
	var models []ResultModel
	if err := a.db.WithContext(ctx).Where("project_id = ?", projectID).
		Order("version").Find(&models).Error; err != nil {
		return nil, err
	}
	results := make([]domain.SynthesisResult, 0, len(models))
	for _, m := range models {
		r, err := resultToDomain(m)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	return results, nil
}

func (a *SQLiteAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
