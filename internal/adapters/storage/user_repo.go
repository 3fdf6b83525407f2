package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jmtrigo/riskmap/internal/core/domain"
	"github.com/jmtrigo/riskmap/internal/core/ports"
)

// Ensure interface compliance
var _ ports.UserRepository = (*SQLiteAdapter)(nil)

// UserModel is the GORM model for user accounts. Usernames are stored
// lowercased so "Analyst1" and "analyst1" are the same account.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex"`
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	LastLogin    time.Time
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Username:     strings.ToLower(u.Username),
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		LastLogin:    u.LastLogin,
	}
}

func userToDomain(m UserModel) *domain.User {
	return &domain.User{
		ID:           m.ID,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		Role:         domain.Role(m.Role),
		CreatedAt:    m.CreatedAt,
		LastLogin:    m.LastLogin,
	}
}

// Save creates or updates a user (last writer wins on the ID).
func (a *SQLiteAdapter) Save(ctx context.Context, user domain.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	model := userToModel(user)
	return a.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&model).Error
}

// GetByUsername retrieves a user by their username, case-insensitively.
func (a *SQLiteAdapter) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var model UserModel
	err := a.db.WithContext(ctx).
		Where("username = ?", strings.ToLower(username)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return userToDomain(model), nil
}

// GetByID retrieves a user by their ID.
func (a *SQLiteAdapter) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var model UserModel
	if err := a.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return userToDomain(model), nil
}

// List returns all users ordered by username.
func (a *SQLiteAdapter) List(ctx context.Context) ([]domain.User, error) {
	var models []UserModel
	if err := a.db.WithContext(ctx).Order("username").Find(&models).Error; err != nil {
		return nil, err
	}
	users := make([]domain.User, len(models))
	for i, m := range models {
		users[i] = *userToDomain(m)
	}
	return users, nil
}
