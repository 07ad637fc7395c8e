package ledger

import "errors"

// Service errors
var (
	ErrInvalidAmount     = errors.New("invalid mutation amount")
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountLocked     = errors.New("account is locked")
)
