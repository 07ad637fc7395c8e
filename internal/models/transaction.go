package models

import (
	"time"
)

// Transfer statuses. The allowed transitions between them live in the
// transfer service's state machine.
const (
	StatusPending    = "pending"
	StatusFraudCheck = "fraud_check"
	StatusDeclined   = "declined"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Leg states tracked per mutation while confirmations arrive.
const (
	LegOutstanding = ""
	LegConfirmed   = "confirmed"
	LegFailed      = "failed"
)

// Transaction is the durable record of one funds transfer. It is created by
// the orchestrator when a transfer request passes validation and mutated only
// by the orchestrator as the saga progresses. Rows are never deleted.
type Transaction struct {
	ID                uint   `gorm:"primarykey"`
	TransferID        string `gorm:"uniqueIndex;not null"` // public id, used for polling and idempotency keys
	SenderAccountID   uint   `gorm:"not null"`
	ReceiverAccountID uint   `gorm:"not null"`
	AmountCents       int64  `gorm:"not null"` // fixed-point minor units, never floats
	Currency          string `gorm:"default:'USD'"`
	Status            string `gorm:"not null;default:'pending'"`
	FraudNote         string
	WithdrawalState   string `gorm:"default:''"`
	DepositState      string `gorm:"default:''"`
	CompensationState string `gorm:"default:''"` // set once a reversal command is dispatched
	Description       string
	Metadata          JSON `gorm:"type:jsonb"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsTerminal reports whether no further status transition can occur.
func (t *Transaction) IsTerminal() bool {
	switch t.Status {
	case StatusDeclined, StatusCompleted, StatusFailed:
		return true
	}
	return false
}
