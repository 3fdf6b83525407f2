package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmtrigo/riskmap/internal/core/domain"
)

// ProjectModel is the GORM model for projects.
type ProjectModel struct {
	ID            string `gorm:"primaryKey"`
	Name          string
	State         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ArchivedAt    *time.Time
	LatestVersion int
}

// FindingModel is the GORM model for findings. Slice and map fields are
// JSON-encoded; queries filter on the scalar columns only.
type FindingModel struct {
	ProjectID       string `gorm:"primaryKey"`
	ID              string `gorm:"primaryKey"`
	SourceFramework string `gorm:"index"`
	SubjectRef      string `gorm:"index"`
	Category        string
	Description     string
	Scale           string
	Ordinal         string
	Likelihood      int
	Impact          int
	Components      string // JSON encoded []int
	ScaleMax        int
	CVSS            float64
	UnifiedRisk     *int
	Mitigations     string // JSON encoded []string
	Status          string `gorm:"index"`
	SourceFile      string
	Adapter         string
	ImportedAt      time.Time
}

// EntityModel is the GORM model for entities.
type EntityModel struct {
	ProjectID  string `gorm:"primaryKey"`
	ID         string `gorm:"primaryKey"`
	Kind       string `gorm:"index"`
	Name       string
	Attributes string // JSON encoded map[string]string
	CrossRefs  string // JSON encoded []string
}

// EdgeModel is the GORM model for correlation edges. The (project, from, to,
// kind) key is unique; rows are append-only apart from validation updates.
type EdgeModel struct {
	RowID      uint   `gorm:"primaryKey;autoIncrement"`
	ProjectID  string `gorm:"uniqueIndex:idx_edge_key"`
	FromID     string `gorm:"uniqueIndex:idx_edge_key"`
	ToID       string `gorm:"uniqueIndex:idx_edge_key"`
	Kind       string `gorm:"uniqueIndex:idx_edge_key"`
	Strength   float64
	Confidence float64
	Rationale  string
	Validation string
}

// ResultModel is the GORM model for synthesis results. The full snapshot is
// stored as one JSON document; scalar columns exist for listing and ordering.
type ResultModel struct {
	ID         string `gorm:"primaryKey"`
	ProjectID  string `gorm:"index"`
	Version    int    `gorm:"index"`
	ComputedAt time.Time
	Confidence float64
	Snapshot   string // JSON encoded domain.SynthesisResult
}

func findingToModel(f domain.Finding) FindingModel {
	components, _ := json.Marshal(f.NativeSeverity.Components)
	mitigations, _ := json.Marshal(f.Mitigations)
	if f.NativeSeverity.Components == nil {
		components = nil
	}
	if f.Mitigations == nil {
		mitigations = nil
	}

	return FindingModel{
		ProjectID:       f.ProjectID,
		ID:              f.ID,
		SourceFramework: string(f.SourceFramework),
		SubjectRef:      f.SubjectRef,
		Category:        f.Category,
		Description:     f.Description,
		Scale:           string(f.NativeSeverity.Scale),
		Ordinal:         f.NativeSeverity.Ordinal,
		Likelihood:      f.NativeSeverity.Likelihood,
		Impact:          f.NativeSeverity.Impact,
		Components:      string(components),
		ScaleMax:        f.NativeSeverity.ScaleMax,
		CVSS:            f.NativeSeverity.CVSS,
		UnifiedRisk:     f.UnifiedRisk,
		Mitigations:     string(mitigations),
		Status:          string(f.Status),
		SourceFile:      f.Import.SourceFile,
		Adapter:         f.Import.Adapter,
		ImportedAt:      f.Import.ImportedAt,
	}
}

func findingToDomain(m FindingModel) (*domain.Finding, error) {
	var components []int
	if m.Components != "" {
		if err := json.Unmarshal([]byte(m.Components), &components); err != nil {
			return nil, fmt.Errorf("decoding components of finding %s: %w", m.ID, err)
		}
	}
	var mitigations []string
	if m.Mitigations != "" {
		if err := json.Unmarshal([]byte(m.Mitigations), &mitigations); err != nil {
			return nil, fmt.Errorf("decoding mitigations of finding %s: %w", m.ID, err)
		}
	}

	return &domain.Finding{
		ID:              m.ID,
		ProjectID:       m.ProjectID,
		SourceFramework: domain.Framework(m.SourceFramework),
		SubjectRef:      m.SubjectRef,
		Category:        m.Category,
		Description:     m.Description,
		NativeSeverity: domain.NativeSeverity{
			Scale:      domain.SeverityScale(m.Scale),
			Ordinal:    m.Ordinal,
			Likelihood: m.Likelihood,
			Impact:     m.Impact,
			Components: components,
			ScaleMax:   m.ScaleMax,
			CVSS:       m.CVSS,
		},
		UnifiedRisk: m.UnifiedRisk,
		Mitigations: mitigations,
		Status:      domain.FindingStatus(m.Status),
		Import: domain.ImportMetadata{
			SourceFile: m.SourceFile,
			Adapter:    m.Adapter,
			ImportedAt: m.ImportedAt,
		},
	}, nil
}

func entityToModel(e domain.Entity) EntityModel {
	attrs := ""
	if e.Attributes != nil {
		b, _ := json.Marshal(e.Attributes)
		attrs = string(b)
	}
	refs := ""
	if e.CrossRefs != nil {
		b, _ := json.Marshal(e.CrossRefs)
		refs = string(b)
	}
	return EntityModel{
		ProjectID:  e.ProjectID,
		ID:         e.ID,
		Kind:       string(e.Kind),
		Name:       e.Name,
		Attributes: attrs,
		CrossRefs:  refs,
	}
}

func entityToDomain(m EntityModel) (*domain.Entity, error) {
	var attrs map[string]string
	if m.Attributes != "" {
		if err := json.Unmarshal([]byte(m.Attributes), &attrs); err != nil {
			return nil, fmt.Errorf("decoding attributes of entity %s: %w", m.ID, err)
		}
	}
	var refs []string
	if m.CrossRefs != "" {
		if err := json.Unmarshal([]byte(m.CrossRefs), &refs); err != nil {
			return nil, fmt.Errorf("decoding cross refs of entity %s: %w", m.ID, err)
		}
	}
	return &domain.Entity{
		ID:         m.ID,
		ProjectID:  m.ProjectID,
		Kind:       domain.EntityKind(m.Kind),
		Name:       m.Name,
		Attributes: attrs,
		CrossRefs:  refs,
	}, nil
}

func edgeToModel(projectID string, e domain.CorrelationEdge) EdgeModel {
	return EdgeModel{
		ProjectID:  projectID,
		FromID:     e.FromID,
		ToID:       e.ToID,
		Kind:       string(e.Kind),
		Strength:   e.Strength,
		Confidence: e.Confidence,
		Rationale:  e.Rationale,
		Validation: string(e.Validation),
	}
}

func edgeToDomain(m EdgeModel) domain.CorrelationEdge {
	return domain.CorrelationEdge{
		FromID:     m.FromID,
		ToID:       m.ToID,
		Kind:       domain.EdgeKind(m.Kind),
		Strength:   m.Strength,
		Confidence: m.Confidence,
		Rationale:  m.Rationale,
		Validation: domain.EdgeValidation(m.Validation),
	}
}

func projectToModel(p domain.Project) ProjectModel {
	return ProjectModel{
		ID:            p.ID,
		Name:          p.Name,
		State:         string(p.State),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		ArchivedAt:    p.ArchivedAt,
		LatestVersion: p.LatestVersion,
	}
}

func projectToDomain(m ProjectModel) *domain.Project {
	return &domain.Project{
		ID:            m.ID,
		Name:          m.Name,
		State:         domain.ProjectState(m.State),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		ArchivedAt:    m.ArchivedAt,
		LatestVersion: m.LatestVersion,
	}
}

func resultToModel(r domain.SynthesisResult) (ResultModel, error) {
	snapshot, err := json.Marshal(r)
	if err != nil {
		return ResultModel{}, fmt.Errorf("encoding result %s: %w", r.ID, err)
	}
	return ResultModel{
		ID:         r.ID,
		ProjectID:  r.ProjectID,
		Version:    r.Version,
		ComputedAt: r.ComputedAt,
		Confidence: r.ConfidenceLevel,
		Snapshot:   string(snapshot),
	}, nil
}

func resultToDomain(m ResultModel) (*domain.SynthesisResult, error) {
	var r domain.SynthesisResult
	if err := json.Unmarshal([]byte(m.Snapshot), &r); err != nil {
		return nil, fmt.Errorf("decoding result %s: %w", m.ID, err)
	}
	return &r, nil
}
