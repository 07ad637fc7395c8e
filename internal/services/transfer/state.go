package transfer

import (
	"fmt"

	"cora/internal/models"
)

// InvalidTransitionError reports an attempted backward or unknown transition.
type InvalidTransitionError struct {
	From       string
	To         string
	TransferID string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s for transfer %s", e.From, e.To, e.TransferID)
}

// allowedTransitions defines the monotonic status machine:
// pending → fraud_check → {declined | processing} → {completed | failed}.
func allowedTransitions() map[string][]string {
	return map[string][]string{
		models.StatusPending:    {models.StatusFraudCheck},
		models.StatusFraudCheck: {models.StatusDeclined, models.StatusProcessing},
		models.StatusProcessing: {models.StatusCompleted, models.StatusFailed},
		models.StatusDeclined:   {},
		models.StatusCompleted:  {},
		models.StatusFailed:     {},
	}
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to string) bool {
	for _, next := range allowedTransitions()[from] {
		if next == to {
			return true
		}
	}
	return false
}

// transition mutates the transaction's status or fails without touching it.
func transition(tx *models.Transaction, to string) error {
	if !CanTransition(tx.Status, to) {
		return &InvalidTransitionError{From: tx.Status, To: to, TransferID: tx.TransferID}
	}
	tx.Status = to
	return nil
}
