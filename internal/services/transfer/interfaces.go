package transfer

import (
	"context"

	"cora/internal/messaging"
	"cora/internal/models"
	"cora/internal/services/fraud"
)

// AccountLookup is the best-effort account/ownership collaborator used by
// request validation. Lookup failure is not necessarily fatal; see
// Config.OwnershipStrict.
type AccountLookup interface {
	GetAccount(ctx context.Context, id uint) (*models.Account, error)
}

// CreateRequest is a validated-principal transfer request.
type CreateRequest struct {
	UserID            uint
	SenderAccountID   uint
	ReceiverAccountID uint
	AmountCents       int64
	Currency          string
	Description       string
}

// Service coordinates the funds-transfer saga.
type Service interface {
	CreateTransfer(ctx context.Context, req CreateRequest) (*models.Transaction, error)
	GetTransferStatus(ctx context.Context, transferID string) (*models.Transaction, error)
	HandleFraudVerdict(ctx context.Context, transferID string, verdict fraud.Verdict) error
	HandleMutationConfirmation(ctx context.Context, conf *messaging.MutationConfirmation) error
}

// Config holds orchestrator policy knobs.
type Config struct {
	// OwnershipStrict rejects transfer creation when the account lookup
	// dependency is unavailable. When false the transfer is queued anyway
	// and the ledger's own account checks backstop it.
	OwnershipStrict bool
	DefaultCurrency string
}
