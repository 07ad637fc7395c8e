package repositories

import (
	"errors"

	"cora/internal/models"
)

var ErrTransactionNotFound = errors.New("transaction not found")

// TransactionRepository persists the transfer saga's durable record.
// GetForUpdateByTransferID takes a row lock so that concurrent deliveries of
// confirmations for the same transfer serialize their read-modify-write.
type TransactionRepository interface {
	Create(tx *models.Transaction) error
	GetByTransferID(transferID string) (*models.Transaction, error)
	GetForUpdateByTransferID(transferID string) (*models.Transaction, error)
	Update(tx *models.Transaction) error

	ExecuteInTransaction(fn func(TransactionRepository) error) error
}
