package fraud

import (
	"context"
	"fmt"
	"log"

	"cora/internal/events"
	"cora/internal/idempotency"
	"cora/internal/metrics"
	"cora/internal/models"
)

// Service is the default, synchronous gateway. Screening is idempotent: each
// transfer id is checked at most once effectively; duplicates are counted and
// replay the deterministic policy instead of re-screening.
type Service struct {
	policy    Policy
	store     idempotency.Store
	publisher *events.Publisher
	metrics   metrics.Recorder
	probe     func(context.Context) error
}

type Config struct {
	Policy    Policy
	Store     idempotency.Store
	Publisher *events.Publisher
	Metrics   metrics.Recorder
	// Probe reports gateway liveness. Nil means always available.
	Probe func(context.Context) error
}

func NewService(cfg Config) *Service {
	if cfg.Policy == nil {
		panic("policy is required")
	}
	if cfg.Store == nil {
		panic("idempotency store is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop{}
	}
	return &Service{
		policy:    cfg.Policy,
		store:     cfg.Store,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		probe:     cfg.Probe,
	}
}

func (s *Service) IsAvailable(ctx context.Context) bool {
	if s.probe == nil {
		return true
	}
	if err := s.probe(ctx); err != nil {
		log.Printf("fraud gateway probe failed: %v", err)
		return false
	}
	return true
}

func (s *Service) Check(ctx context.Context, tx *models.Transaction) (Verdict, error) {
	first, err := s.store.MarkIfFirst(ctx, tx.TransferID, idempotency.DefaultTTL)
	if err != nil {
		s.metrics.RecordError("fraud_check")
		return VerdictPending, fmt.Errorf("fraud screening failed: %w", err)
	}

	verdict := s.policy.Decide(tx)
	if !first {
		// Redelivered check. The policy is deterministic, so re-deciding
		// reproduces the recorded outcome without publishing again.
		log.Printf("duplicate fraud check for transfer %s, skipping", tx.TransferID)
		s.metrics.RecordDuplicateMutation("fraud_check")
		return verdict, nil
	}

	s.metrics.RecordVerdict(string(verdict))
	log.Printf("transfer %s: amount=%d verdict=%s", tx.TransferID, tx.AmountCents, verdict)

	if s.publisher != nil {
		if err := s.publisher.PublishFraudCheck(ctx, tx.TransferID, string(verdict), tx.AmountCents); err != nil {
			log.Printf("failed to publish fraud event for %s: %v", tx.TransferID, err)
		}
	}
	return verdict, nil
}
