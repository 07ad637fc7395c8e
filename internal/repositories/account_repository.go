package repositories

import (
	"errors"

	"cora/internal/models"
)

var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrMutationNotFound = errors.New("mutation record not found")
	ErrDuplicateKey     = errors.New("duplicate idempotency key")
)

// AccountRepository defines database operations on accounts and their
// idempotency records. GetForUpdate takes a row lock and is only meaningful
// inside ExecuteInTransaction; that lock is what gives the ledger its
// single-writer discipline per account.
type AccountRepository interface {
	Create(account *models.Account) error
	GetByID(id uint) (*models.Account, error)
	GetByUserID(userID uint) ([]*models.Account, error)
	GetForUpdate(id uint) (*models.Account, error)
	Update(account *models.Account) error

	GetMutationRecord(key string) (*models.MutationRecord, error)
	CreateMutationRecord(rec *models.MutationRecord) error

	ExecuteInTransaction(fn func(AccountRepository) error) error
}
