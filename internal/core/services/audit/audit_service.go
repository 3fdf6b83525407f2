package audit

import (
	"context"

	"github.com/jmtrigo/riskmap/internal/core/domain"
	"github.com/jmtrigo/riskmap/internal/core/ports"
	// Services shouldn't depend on web middleware, so the acting user travels
	// in the request context; handlers put it there via WithUser.
)

type userKey struct{}

// WithUser attaches the acting user to the context for audit attribution.
func WithUser(ctx context.Context, user domain.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFrom extracts the acting user, if any.
func UserFrom(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(userKey{}).(domain.User)
	return u, ok
}

type AuditService struct {
	repo ports.AuditRepository
}

func NewAuditService(repo ports.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

func (s *AuditService) Log(ctx context.Context, action domain.AuditAction, projectID, target, details string) error {
	// Background jobs (the orchestrator, queued imports) run without a user.
	userID := "system"
	username := "system"
	if u, ok := UserFrom(ctx); ok {
		userID = u.ID
		username = u.Username
	}

	// Use Domain Factory to ensure business rules
	entry, err := domain.NewAuditLog(userID, username, action, projectID, target, details)
	if err != nil {
		return err
	}

	return s.repo.SaveAuditLog(ctx, *entry)
}

func (s *AuditService) GetLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	return s.repo.ListAuditLogs(ctx, limit)
}
