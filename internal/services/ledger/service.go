// Package ledger owns account balances. Mutations arrive as commands from
// the orchestrator and are applied exactly once per idempotency key, with the
// balance write and the idempotency record committed as a single unit of
// work.
package ledger

import (
	"context"
	"fmt"
	"log"
	"time"

	"cora/internal/messaging"
	"cora/internal/metrics"
	"cora/internal/models"
	"cora/internal/repositories"
)

// Cache invalidates stale account reads after a mutation. Optional.
type Cache interface {
	Invalidate(ctx context.Context, accountID uint) error
}

type Service struct {
	accounts repositories.AccountRepository
	cache    Cache
	metrics  metrics.Recorder
}

func NewService(accounts repositories.AccountRepository, cache Cache, recorder metrics.Recorder) *Service {
	if accounts == nil {
		panic("account repository is required")
	}
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &Service{accounts: accounts, cache: cache, metrics: recorder}
}

// ApplyMutation applies one balance mutation idempotently.
//
// A non-nil error means a transient infrastructure failure: nothing was
// committed and the command must be redelivered. A nil error always carries a
// confirmation; Success=false confirmations are permanent business rejections
// that must not be retried.
func (s *Service) ApplyMutation(ctx context.Context, cmd *messaging.BalanceMutationCommand) (*messaging.MutationConfirmation, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mutation command: %w", err)
	}

	start := time.Now()
	var conf *messaging.MutationConfirmation
	var duplicate bool

	err := s.accounts.ExecuteInTransaction(func(tx repositories.AccountRepository) error {
		rec, err := tx.GetMutationRecord(cmd.Key)
		if err == nil {
			// Already applied: replay the recorded outcome, touch nothing.
			conf = confirmationFromRecord(cmd, rec)
			duplicate = true
			return nil
		}
		if err != repositories.ErrMutationNotFound {
			return err
		}

		account, err := tx.GetForUpdate(cmd.AccountID)
		if err == repositories.ErrAccountNotFound {
			conf = s.reject(cmd, models.ErrCodeAccountNotFound)
			return recordOutcome(tx, cmd, false, models.ErrCodeAccountNotFound)
		}
		if err != nil {
			return err
		}

		if account.Status != models.AccountActive {
			conf = s.reject(cmd, models.ErrCodeAccountLocked)
			return recordOutcome(tx, cmd, false, models.ErrCodeAccountLocked)
		}

		newBalance := account.BalanceCents
		if cmd.Kind == messaging.KindDeposit {
			newBalance += cmd.AmountCents
		} else {
			newBalance -= cmd.AmountCents
		}
		if newBalance < 0 {
			conf = s.reject(cmd, models.ErrCodeInsufficientFunds)
			return recordOutcome(tx, cmd, false, models.ErrCodeInsufficientFunds)
		}

		account.BalanceCents = newBalance
		if err := tx.Update(account); err != nil {
			return err
		}
		if err := recordOutcome(tx, cmd, true, ""); err != nil {
			return err
		}

		conf = &messaging.MutationConfirmation{
			SchemaVersion: messaging.SchemaVersion,
			TransferID:    cmd.TransferID,
			Key:           cmd.Key,
			Kind:          cmd.Kind,
			Success:       true,
			Timestamp:     time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		s.metrics.RecordError("apply_mutation")
		return nil, fmt.Errorf("failed to apply mutation %s: %w", cmd.Key, err)
	}

	s.metrics.RecordApplyDuration(time.Since(start))
	if duplicate {
		log.Printf("duplicate mutation %s, replaying recorded outcome", cmd.Key)
		s.metrics.RecordDuplicateMutation(cmd.Kind)
	} else if conf.Success {
		s.metrics.RecordMutationApplied(cmd.Kind)
		if s.cache != nil {
			if cerr := s.cache.Invalidate(ctx, cmd.AccountID); cerr != nil {
				log.Printf("failed to invalidate account cache %d: %v", cmd.AccountID, cerr)
			}
		}
	}
	return conf, nil
}

// GetBalance serves direct balance queries.
func (s *Service) GetBalance(ctx context.Context, accountID uint) (int64, error) {
	account, err := s.accounts.GetByID(accountID)
	if err != nil {
		if err == repositories.ErrAccountNotFound {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("failed to get account: %w", err)
	}
	return account.BalanceCents, nil
}

// Deposit applies a user-initiated deposit through the same idempotent
// mutation machinery the saga uses.
func (s *Service) Deposit(ctx context.Context, accountID uint, amountCents int64, key string) error {
	if amountCents <= 0 {
		return ErrInvalidAmount
	}
	conf, err := s.ApplyMutation(ctx, &messaging.BalanceMutationCommand{
		SchemaVersion: messaging.SchemaVersion,
		Key:           key,
		TransferID:    key,
		AccountID:     accountID,
		AmountCents:   amountCents,
		Kind:          messaging.KindDeposit,
		IssuedAt:      time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if !conf.Success {
		return errorForCode(conf.ErrorCode)
	}
	return nil
}

func (s *Service) reject(cmd *messaging.BalanceMutationCommand, code string) *messaging.MutationConfirmation {
	s.metrics.RecordPermanentFailure(code)
	return &messaging.MutationConfirmation{
		SchemaVersion: messaging.SchemaVersion,
		TransferID:    cmd.TransferID,
		Key:           cmd.Key,
		Kind:          cmd.Kind,
		Success:       false,
		ErrorCode:     code,
		Permanent:     true,
		Timestamp:     time.Now().UTC(),
	}
}

func recordOutcome(tx repositories.AccountRepository, cmd *messaging.BalanceMutationCommand, success bool, code string) error {
	return tx.CreateMutationRecord(&models.MutationRecord{
		Key:         cmd.Key,
		TransferID:  cmd.TransferID,
		AccountID:   cmd.AccountID,
		Kind:        cmd.Kind,
		AmountCents: cmd.AmountCents,
		Success:     success,
		ErrorCode:   code,
	})
}

func confirmationFromRecord(cmd *messaging.BalanceMutationCommand, rec *models.MutationRecord) *messaging.MutationConfirmation {
	return &messaging.MutationConfirmation{
		SchemaVersion: messaging.SchemaVersion,
		TransferID:    rec.TransferID,
		Key:           rec.Key,
		Kind:          rec.Kind,
		Success:       rec.Success,
		ErrorCode:     rec.ErrorCode,
		Permanent:     !rec.Success,
		Timestamp:     time.Now().UTC(),
	}
}

func errorForCode(code string) error {
	switch code {
	case models.ErrCodeAccountNotFound:
		return ErrAccountNotFound
	case models.ErrCodeInsufficientFunds:
		return ErrInsufficientFunds
	case models.ErrCodeAccountLocked:
		return ErrAccountLocked
	default:
		return fmt.Errorf("mutation rejected: %s", code)
	}
}
