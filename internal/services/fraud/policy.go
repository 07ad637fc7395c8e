package fraud

import (
	"cora/internal/models"
)

// DefaultThresholdCents declines any transfer above 1000 currency units.
const DefaultThresholdCents = 1000 * 100

// ThresholdPolicy declines transfers whose amount exceeds a fixed limit.
type ThresholdPolicy struct {
	LimitCents int64
}

func NewThresholdPolicy(limitCents int64) *ThresholdPolicy {
	if limitCents <= 0 {
		limitCents = DefaultThresholdCents
	}
	return &ThresholdPolicy{LimitCents: limitCents}
}

func (p *ThresholdPolicy) Decide(tx *models.Transaction) Verdict {
	if tx.AmountCents > p.LimitCents {
		return VerdictDeclined
	}
	return VerdictApproved
}
