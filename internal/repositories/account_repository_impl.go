package repositories

import (
	"fmt"
	"strings"

	"cora/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(account *models.Account) error {
	if err := r.db.Create(account).Error; err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *accountRepository) GetByID(id uint) (*models.Account, error) {
	var account models.Account
	if err := r.db.First(&account, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

func (r *accountRepository) GetByUserID(userID uint) ([]*models.Account, error) {
	var accounts []*models.Account
	if err := r.db.Where("user_id = ?", userID).Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// GetForUpdate loads the account under SELECT ... FOR UPDATE. Concurrent
// mutations on the same account serialize here; different accounts proceed
// fully concurrently.
func (r *accountRepository) GetForUpdate(id uint) (*models.Account, error) {
	var account models.Account
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&account, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	return &account, nil
}

func (r *accountRepository) Update(account *models.Account) error {
	if err := r.db.Save(account).Error; err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return nil
}

func (r *accountRepository) GetMutationRecord(key string) (*models.MutationRecord, error) {
	var rec models.MutationRecord
	if err := r.db.Where("key = ?", key).First(&rec).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrMutationNotFound
		}
		return nil, fmt.Errorf("failed to get mutation record: %w", err)
	}
	return &rec, nil
}

func (r *accountRepository) CreateMutationRecord(rec *models.MutationRecord) error {
	if err := r.db.Create(rec).Error; err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to create mutation record: %w", err)
	}
	return nil
}

func (r *accountRepository) ExecuteInTransaction(fn func(AccountRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&accountRepository{db: tx})
	})
}
