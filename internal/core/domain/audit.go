package domain

import (
	"errors"
	"time"
)

// AuditAction represents a type-safe action identifier for the audit log.
type AuditAction string

// System Audit Actions
const (
	ActionLogin             AuditAction = "LOGIN"
	ActionLogout            AuditAction = "LOGOUT"
	ActionImport            AuditAction = "IMPORT"
	ActionFindingUpdate     AuditAction = "FINDING_UPDATE"
	ActionEntityUpdate      AuditAction = "ENTITY_UPDATE"
	ActionSynthesisStarted  AuditAction = "SYNTHESIS_STARTED"
	ActionSynthesisComplete AuditAction = "SYNTHESIS_COMPLETED"
	ActionSynthesisFailed   AuditAction = "SYNTHESIS_FAILED"
	ActionExport            AuditAction = "EXPORT"
	ActionProjectOp         AuditAction = "PROJECT_OP"
	ActionInfo              AuditAction = "INFO"
)

// Domain Errors
var (
	ErrInvalidAction = errors.New("invalid audit action")
	ErrMissingUser   = errors.New("user identification is required for auditing")
)

// AuditLog represents a record of a critical system action. Findings and
// entities are edited last-writer-wins, so the audit trail is the only way
// to reconstruct who changed what.
type AuditLog struct {
	ID        uint        `json:"id"`
	UserID    string      `json:"user_id"`
	Username  string      `json:"username"` // Denormalized for display/reporting
	Action    AuditAction `json:"action"`
	ProjectID string      `json:"project_id,omitempty"`
	Target    string      `json:"target"` // The resource affected (finding ID, entity ID, run ID)
	Details   string      `json:"details"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewAuditLog is the designated factory for creating valid AuditLog entities.
func NewAuditLog(userID, username string, action AuditAction, projectID, target, details string) (*AuditLog, error) {
	if userID == "" && username == "" {
		return nil, ErrMissingUser
	}

	if !isValidAction(action) {
		return nil, ErrInvalidAction
	}

	return &AuditLog{
		UserID:    userID,
		Username:  username,
		Action:    action,
		ProjectID: projectID,
		Target:    target,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}, nil
}

// isValidAction encapsulates the validation logic for audit actions.
func isValidAction(action AuditAction) bool {
	switch action {
	case ActionLogin, ActionLogout, ActionImport, ActionFindingUpdate,
		ActionEntityUpdate, ActionSynthesisStarted, ActionSynthesisComplete,
		ActionSynthesisFailed, ActionExport, ActionProjectOp, ActionInfo:
		return true
	}
	return false
}
