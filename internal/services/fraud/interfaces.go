package fraud

import (
	"context"

	"cora/internal/models"
)

// Verdict is the outcome of a fraud check.
type Verdict string

const (
	VerdictApproved Verdict = "approved"
	VerdictDeclined Verdict = "declined"
	// VerdictPending is returned by asynchronous gateways; the real verdict
	// arrives later through the orchestrator's HandleFraudVerdict.
	VerdictPending Verdict = "pending"
)

// Policy decides a verdict for one transaction. Implementations must be
// deterministic for a given transaction so redelivered checks replay to the
// same outcome.
type Policy interface {
	Decide(tx *models.Transaction) Verdict
}

// Gateway is the fraud-screening collaborator of the orchestrator.
// IsAvailable is a liveness probe consulted before any transfer is accepted;
// callers fail closed when it reports false.
type Gateway interface {
	IsAvailable(ctx context.Context) bool
	Check(ctx context.Context, tx *models.Transaction) (Verdict, error)
}
