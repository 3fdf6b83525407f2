package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jmtrigo/riskmap/internal/core/domain"
	"github.com/jmtrigo/riskmap/internal/core/ports"
)

// MemoryStore is an in-memory ports.Storage used by tests and the demo mode.
// It honors the same semantics as the SQLite store: findings and entities are
// last-writer-wins, edges and results are append-only.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]domain.Project
	findings map[string]map[string]domain.Finding // projectID -> findingID
	entities map[string]map[string]domain.Entity
	edges    map[string]map[string]domain.CorrelationEdge // projectID -> edge key
	results  map[string][]domain.SynthesisResult
}

var _ ports.Storage = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects: make(map[string]domain.Project),
		findings: make(map[string]map[string]domain.Finding),
		entities: make(map[string]map[string]domain.Entity),
		edges:    make(map[string]map[string]domain.CorrelationEdge),
		results:  make(map[string][]domain.SynthesisResult),
	}
}

func (m *MemoryStore) SaveProject(_ context.Context, p domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
	return nil
}

func (m *MemoryStore) GetProject(_ context.Context, id string) (*domain.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	return &p, nil
}

func (m *MemoryStore) ListProjects(_ context.Context) ([]domain.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) ArchiveProject(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return domain.ErrProjectNotFound
	}
	now := time.Now().UTC()
	p.ArchivedAt = &now
	p.UpdatedAt = now
	m.projects[id] = p
	return nil
}

func (m *MemoryStore) SaveFinding(_ context.Context, f domain.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findings[f.ProjectID] == nil {
		m.findings[f.ProjectID] = make(map[string]domain.Finding)
	}
	m.findings[f.ProjectID][f.ID] = f
	return nil
}

func (m *MemoryStore) SaveFindingsBatch(ctx context.Context, findings []domain.Finding) error {
	for _, f := range findings {
		if err := m.SaveFinding(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStore) GetFinding(_ context.Context, projectID, id string) (*domain.Finding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.findings[projectID][id]
	if !ok {
		return nil, domain.ErrFindingNotFound
	}
	return &f, nil
}

func (m *MemoryStore) ListFindings(_ context.Context, projectID string, filter domain.FindingFilter) ([]domain.Finding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Finding
	for _, f := range m.findings[projectID] {
		f := f
		if filter.Matches(&f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) SaveEntity(_ context.Context, e domain.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entities[e.ProjectID] == nil {
		m.entities[e.ProjectID] = make(map[string]domain.Entity)
	}
	m.entities[e.ProjectID][e.ID] = e
	return nil
}

func (m *MemoryStore) SaveEntitiesBatch(ctx context.Context, entities []domain.Entity) error {
	for _, e := range entities {
		if err := m.SaveEntity(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStore) GetEntity(_ context.Context, projectID, id string) (*domain.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[projectID][id]
	if !ok {
		return nil, domain.ErrEntityNotFound
	}
	return &e, nil
}

func (m *MemoryStore) ListEntities(_ context.Context, projectID string) ([]domain.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Entity
	for _, e := range m.entities[projectID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveEdges is append-only: an existing (from,to,kind) row only ever has its
// validation state refreshed, never its strength or rationale. An incoming
// "auto" never overwrites a recorded expert verdict, so engine re-runs keep
// review state intact.
func (m *MemoryStore) SaveEdges(_ context.Context, projectID string, edges []domain.CorrelationEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.edges[projectID] == nil {
		m.edges[projectID] = make(map[string]domain.CorrelationEdge)
	}
	for _, e := range edges {
		if existing, ok := m.edges[projectID][e.Key()]; ok {
			if e.Validation != domain.ValidationAuto {
				existing.Validation = e.Validation
			}
			m.edges[projectID][e.Key()] = existing
			continue
		}
		m.edges[projectID][e.Key()] = e
	}
	return nil
}

func (m *MemoryStore) ListEdges(_ context.Context, projectID string) ([]domain.CorrelationEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.CorrelationEdge
	for _, e := range m.edges[projectID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

func (m *MemoryStore) SaveResult(_ context.Context, r domain.SynthesisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[r.ProjectID] = append(m.results[r.ProjectID], r)
	return nil
}

func (m *MemoryStore) GetResult(_ context.Context, projectID, resultID string) (*domain.SynthesisResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.results[projectID] {
		if r.ID == resultID {
			return &r, nil
		}
	}
	return nil, domain.ErrResultNotFound
}

func (m *MemoryStore) GetLatestResult(_ context.Context, projectID string) (*domain.SynthesisResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.results[projectID]
	if len(list) == 0 {
		return nil, domain.ErrResultNotFound
	}
	latest := list[0]
	for _, r := range list[1:] {
		if r.Version > latest.Version {
			latest = r
		}
	}
	return &latest, nil
}

func (m *MemoryStore) ListResults(_ context.Context, projectID string) ([]domain.SynthesisResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.SynthesisResult, len(m.results[projectID]))
	copy(out, m.results[projectID])
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
