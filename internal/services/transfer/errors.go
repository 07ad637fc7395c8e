package transfer

import "errors"

// Service errors
var (
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrSameAccount         = errors.New("cannot transfer to the same account")
	ErrNotAccountOwner     = errors.New("caller does not own the source account")
	ErrSourceNotFound      = errors.New("source account not found")
	ErrTransferNotFound    = errors.New("transfer not found")
	ErrServiceUnavailable  = errors.New("fraud gateway unavailable")
	ErrAccountLookupFailed = errors.New("account lookup unavailable")
)
