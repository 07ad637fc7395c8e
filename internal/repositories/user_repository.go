package repositories

import (
	"errors"

	"cora/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository defines the user lookups needed by login, ownership checks
// and seeding.
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	IncrementTokenVersion(userID uint) error
}
