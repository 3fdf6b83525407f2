package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jmtrigo/riskmap/internal/core/domain"
	"github.com/jmtrigo/riskmap/internal/core/ports"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = domain.ErrUserNotFound
	ErrTokenExpired       = errors.New("token expired")
	ErrTooManyAttempts    = errors.New("too many failed login attempts")
	ErrInvalidSession     = errors.New("invalid session")
)

const (
	sessionTTL = 24 * time.Hour

	// Failed attempts per account before lockout, and how long the
	// lockout window lasts. Window-based, so a locked account recovers
	// without operator intervention.
	maxLoginAttempts = 5
	lockoutWindow    = 15 * time.Minute

	minPasswordLen = 8
)

// session is one active login. Username is denormalized so audit events can
// be attributed without a repo round-trip.
type session struct {
	UserID    string
	Username  string
	Role      domain.Role
	ExpiresAt time.Time
}

type attemptWindow struct {
	count int
	since time.Time
}

// AuthService implements ports.AuthService: bcrypt credential checks,
// in-memory session tokens and per-account lockout. Sessions do not survive
// a restart; analysts re-authenticate, which is acceptable for a review
// tool and keeps tokens out of the database.
type AuthService struct {
	repo     ports.UserRepository
	mu       sync.RWMutex
	sessions map[string]session
	attempts map[string]attemptWindow
}

// NewAuthService creates a new authentication service instance.
func NewAuthService(repo ports.UserRepository) *AuthService {
	return &AuthService{
		repo:     repo,
		sessions: make(map[string]session),
		attempts: make(map[string]attemptWindow),
	}
}

// Login validates credentials and returns a session token. Unknown user and
// wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, creds domain.Credentials) (string, error) {
	if err := s.checkLockout(creds.Username); err != nil {
		return "", err
	}

	user, err := s.repo.GetByUsername(ctx, creds.Username)
	if err != nil {
		// Burn a comparison anyway so a missing account costs the same
		// as a wrong password.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(creds.Password))
		s.recordFailure(creds.Username)
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		s.recordFailure(creds.Username)
		return "", ErrInvalidCredentials
	}

	s.clearFailures(creds.Username)

	user.UpdateLastLogin()
	// Last-login is bookkeeping; a failed write must not block login.
	_ = s.repo.Save(ctx, *user)

	return s.createSession(user), nil
}

// ValidateToken verifies a session token and returns the associated user.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*domain.User, error) {
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrInvalidSession
	}

	if time.Now().After(sess.ExpiresAt) {
		s.Logout(ctx, token)
		return nil, ErrTokenExpired
	}

	user, err := s.repo.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}

	return user, nil
}

// Logout invalidates a session token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}

// CreateUser provisions a new user with a hashed password. The role must be
// one of admin/analyst/viewer and the password must meet the minimum length.
func (s *AuthService) CreateUser(ctx context.Context, user domain.User, password string) error {
	if err := user.Validate(); err != nil {
		return err
	}
	if len(password) < minPasswordLen {
		return domain.ErrInvalidPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user.PasswordHash = string(hash)
	user.CreatedAt = time.Now().UTC()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	return s.repo.Save(ctx, user)
}

// dummyHash is a bcrypt digest of an unguessable value, compared against
// when the account does not exist.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte(uuid.New().String()), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}()

func (s *AuthService) checkLockout(username string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.attempts[username]
	if !ok {
		return nil
	}
	if time.Since(w.since) > lockoutWindow {
		return nil // window expired, next failure restarts it
	}
	if w.count >= maxLoginAttempts {
		return ErrTooManyAttempts
	}
	return nil
}

func (s *AuthService) recordFailure(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.attempts[username]
	if w.count == 0 || time.Since(w.since) > lockoutWindow {
		w = attemptWindow{since: time.Now()}
	}
	w.count++
	s.attempts[username] = w
}

func (s *AuthService) clearFailures(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, username)
}

func (s *AuthService) createSession(user *domain.User) string {
	token := uuid.New().String()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[token] = session{
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		ExpiresAt: time.Now().Add(sessionTTL),
	}

	return token
}
