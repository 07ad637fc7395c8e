package models

import (
	"time"
)

// Account statuses
const (
	AccountActive = "active"
	AccountLocked = "locked"
	AccountClosed = "closed"
)

// Account holds a user balance. Balances are owned and mutated exclusively by
// the ledger service; the orchestrator only dispatches commands against them.
type Account struct {
	ID           uint   `gorm:"primarykey"`
	UserID       uint   `gorm:"index;not null"`
	BalanceCents int64  `gorm:"not null;default:0"`
	Currency     string `gorm:"default:'USD'"`
	Status       string `gorm:"default:'active'"`
	StatusReason string `gorm:"default:''"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
