package models

import (
	"time"
)

// Mutation error codes recorded for permanently rejected mutations.
const (
	ErrCodeAccountNotFound   = "account_not_found"
	ErrCodeInsufficientFunds = "insufficient_funds"
	ErrCodeAccountLocked     = "account_locked"
)

// MutationRecord is the durable idempotency marker for one applied balance
// mutation. It is inserted in the same database transaction as the balance
// write, so a key either exists together with its recorded outcome or the
// mutation never happened. Redelivered commands replay the stored outcome.
type MutationRecord struct {
	ID          uint   `gorm:"primarykey"`
	Key         string `gorm:"uniqueIndex;not null"`
	TransferID  string `gorm:"index"`
	AccountID   uint
	Kind        string
	AmountCents int64
	Success     bool
	ErrorCode   string `gorm:"default:''"`
	CreatedAt   time.Time
}
