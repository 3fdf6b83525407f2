package domain

import (
	"errors"
	"time"
)

// Project lifecycle errors.
var (
	ErrEmptyProjectName   = errors.New("project name cannot be empty")
	ErrProjectArchived    = errors.New("project is archived")
	ErrInvalidTransition  = errors.New("invalid project state transition")
	ErrProjectRunning     = errors.New("project has a synthesis run in progress")
	ErrProjectNotFound    = errors.New("project not found")
	ErrResultNotFound     = errors.New("synthesis result not found")
	ErrNoCompletedRun     = errors.New("project has no completed synthesis run")
)

// Project scopes an analysis: findings, entities, edges and results all hang
// off one project. The engine holds no process-wide mutable state; a project
// is created, synthesized any number of times, and eventually archived.
type Project struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	State      ProjectState `json:"state"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
	ArchivedAt *time.Time   `json:"archived_at,omitempty"`
	// LatestVersion is the version number of the newest SynthesisResult.
	LatestVersion int `json:"latest_version"`
}

// NewProject is the designated factory for valid projects.
func NewProject(id, name string) (*Project, error) {
	if name == "" {
		return nil, ErrEmptyProjectName
	}
	now := time.Now().UTC()
	return &Project{
		ID:        id,
		Name:      name,
		State:     StateDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsArchived reports whether the project has been archived.
func (p *Project) IsArchived() bool {
	return p.ArchivedAt != nil
}

// Transition moves the project to a new state, enforcing the state machine:
// Draft → Running → Completed|Failed, and any terminal state → Draft on a
// new import, Completed|Failed → Running on a new run.
func (p *Project) Transition(next ProjectState) error {
	if p.IsArchived() {
		return ErrProjectArchived
	}

	valid := false
	switch p.State {
	case StateDraft:
		valid = next == StateRunning
	case StateRunning:
		valid = next == StateCompleted || next == StateFailed
	case StateCompleted, StateFailed:
		valid = next == StateDraft || next == StateRunning
	}
	if !valid {
		return ErrInvalidTransition
	}

	p.State = next
	p.UpdatedAt = time.Now().UTC()
	return nil
}
