package repositories

import (
	"fmt"

	"cora/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(tx *models.Transaction) error {
	if err := r.db.Create(tx).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *transactionRepository) GetByTransferID(transferID string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := r.db.Where("transfer_id = ?", transferID).First(&tx).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &tx, nil
}

func (r *transactionRepository) GetForUpdateByTransferID(transferID string) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("transfer_id = ?", transferID).First(&tx).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to lock transaction: %w", err)
	}
	return &tx, nil
}

func (r *transactionRepository) Update(tx *models.Transaction) error {
	if err := r.db.Save(tx).Error; err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return nil
}

func (r *transactionRepository) ExecuteInTransaction(fn func(TransactionRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&transactionRepository{db: tx})
	})
}
