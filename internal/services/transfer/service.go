// Package transfer implements the funds-transfer saga coordinator. It
// validates requests, obtains a fraud verdict, dispatches the two balance
// mutations and reconciles the terminal status from asynchronous
// confirmations.
package transfer

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"cora/internal/events"
	"cora/internal/messaging"
	"cora/internal/metrics"
	"cora/internal/models"
	"cora/internal/repositories"
	"cora/internal/services/fraud"
)

type service struct {
	transactions repositories.TransactionRepository
	accounts     AccountLookup
	gateway      fraud.Gateway
	channel      messaging.Channel
	publisher    *events.Publisher
	metrics      metrics.Recorder
	config       Config
}

func NewService(
	transactions repositories.TransactionRepository,
	accounts AccountLookup,
	gateway fraud.Gateway,
	channel messaging.Channel,
	publisher *events.Publisher,
	recorder metrics.Recorder,
	config Config,
) Service {
	if transactions == nil {
		panic("transaction repository is required")
	}
	if gateway == nil {
		panic("fraud gateway is required")
	}
	if channel == nil {
		panic("message channel is required")
	}
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	if config.DefaultCurrency == "" {
		config.DefaultCurrency = "USD"
	}
	return &service{
		transactions: transactions,
		accounts:     accounts,
		gateway:      gateway,
		channel:      channel,
		publisher:    publisher,
		metrics:      recorder,
		config:       config,
	}
}

func (s *service) CreateTransfer(ctx context.Context, req CreateRequest) (*models.Transaction, error) {
	if req.AmountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.SenderAccountID == req.ReceiverAccountID {
		return nil, ErrSameAccount
	}
	if err := s.checkOwnership(ctx, req); err != nil {
		return nil, err
	}

	// Fail closed: no orphaned transfers when fraud screening cannot run.
	if !s.gateway.IsAvailable(ctx) {
		return nil, ErrServiceUnavailable
	}

	currency := req.Currency
	if currency == "" {
		currency = s.config.DefaultCurrency
	}
	tx := &models.Transaction{
		TransferID:        uuid.NewString(),
		SenderAccountID:   req.SenderAccountID,
		ReceiverAccountID: req.ReceiverAccountID,
		AmountCents:       req.AmountCents,
		Currency:          currency,
		Status:            models.StatusPending,
		Description:       req.Description,
	}
	if err := s.transactions.Create(tx); err != nil {
		return nil, fmt.Errorf("failed to persist transfer: %w", err)
	}
	s.metrics.RecordTransferCreated()
	s.publishEvent(ctx, events.TransferCreated, tx)

	if err := s.setStatus(ctx, tx, models.StatusFraudCheck); err != nil {
		return tx, err
	}

	verdict, err := s.gateway.Check(ctx, tx)
	if err != nil {
		// Screening hiccupped after the availability probe passed. The
		// transfer stays in fraud_check; the verdict arrives out-of-band.
		log.Printf("fraud check deferred for transfer %s: %v", tx.TransferID, err)
		return tx, nil
	}
	if verdict == fraud.VerdictPending {
		return tx, nil
	}
	if err := s.HandleFraudVerdict(ctx, tx.TransferID, verdict); err != nil {
		return tx, err
	}
	return s.GetTransferStatus(ctx, tx.TransferID)
}

func (s *service) GetTransferStatus(ctx context.Context, transferID string) (*models.Transaction, error) {
	tx, err := s.transactions.GetByTransferID(transferID)
	if err != nil {
		if err == repositories.ErrTransactionNotFound {
			return nil, ErrTransferNotFound
		}
		return nil, fmt.Errorf("failed to get transfer: %w", err)
	}
	return tx, nil
}

func (s *service) HandleFraudVerdict(ctx context.Context, transferID string, verdict fraud.Verdict) error {
	var tx *models.Transaction
	var dispatch bool

	err := s.transactions.ExecuteInTransaction(func(repo repositories.TransactionRepository) error {
		locked, err := repo.GetForUpdateByTransferID(transferID)
		if err != nil {
			if err == repositories.ErrTransactionNotFound {
				log.Printf("verdict for unknown transfer %s, ignoring", transferID)
				return nil
			}
			return err
		}

		switch locked.Status {
		case models.StatusPending:
			if err := transition(locked, models.StatusFraudCheck); err != nil {
				return err
			}
		case models.StatusFraudCheck:
			// expected
		case models.StatusProcessing:
			// Redelivered approval after a partial dispatch. Re-dispatching
			// is safe: the ledger deduplicates on the idempotency key.
			if verdict == fraud.VerdictApproved && locked.WithdrawalState == models.LegOutstanding && locked.DepositState == models.LegOutstanding {
				tx = locked
				dispatch = true
			}
			return nil
		default:
			log.Printf("verdict for transfer %s ignored in status %s", transferID, locked.Status)
			return nil
		}

		switch verdict {
		case fraud.VerdictApproved:
			if err := transition(locked, models.StatusProcessing); err != nil {
				return err
			}
			dispatch = true
		case fraud.VerdictDeclined:
			if err := transition(locked, models.StatusDeclined); err != nil {
				return err
			}
			locked.FraudNote = "declined by fraud policy"
		default:
			return nil
		}
		if err := repo.Update(locked); err != nil {
			return err
		}
		tx = locked
		return nil
	})
	if err != nil {
		return err
	}
	if tx == nil {
		return nil
	}

	s.publishEvent(ctx, events.TransferStatusMoved, tx)
	if !dispatch {
		return nil
	}
	if err := s.dispatchMutations(ctx, tx); err != nil {
		// Retryable infrastructure error: the caller redelivers the verdict
		// and the dispatch is retried.
		return err
	}
	return nil
}

func (s *service) HandleMutationConfirmation(ctx context.Context, conf *messaging.MutationConfirmation) error {
	if strings.HasSuffix(conf.Key, "-reversal") {
		// Compensation outcomes do not move the saga; the transfer is
		// already terminal. Log failed reversals so operators can redrive.
		if !conf.Success {
			log.Printf("reversal for transfer %s failed permanently: %s", conf.TransferID, conf.ErrorCode)
		}
		return nil
	}

	var tx *models.Transaction
	var moved bool
	var reversal *messaging.BalanceMutationCommand
	var redispatch *messaging.BalanceMutationCommand

	err := s.transactions.ExecuteInTransaction(func(repo repositories.TransactionRepository) error {
		locked, err := repo.GetForUpdateByTransferID(conf.TransferID)
		if err != nil {
			if err == repositories.ErrTransactionNotFound {
				log.Printf("confirmation for unknown transfer %s, ignoring", conf.TransferID)
				return nil
			}
			return err
		}

		if !recordLeg(locked, conf) {
			log.Printf("duplicate %s confirmation for transfer %s, ignoring", conf.Kind, conf.TransferID)
		}

		if !locked.IsTerminal() {
			switch {
			case locked.WithdrawalState == models.LegConfirmed && locked.DepositState == models.LegConfirmed:
				if err := transition(locked, models.StatusCompleted); err != nil {
					log.Printf("ignoring backward transition: %v", err)
				} else {
					moved = true
				}
			case locked.WithdrawalState == models.LegFailed || locked.DepositState == models.LegFailed:
				if err := transition(locked, models.StatusFailed); err != nil {
					log.Printf("ignoring backward transition: %v", err)
				} else {
					moved = true
				}
			}
		}

		if locked.Status == models.StatusProcessing {
			redispatch = outstandingCommand(locked)
		}
		if locked.Status == models.StatusFailed && locked.CompensationState == "" {
			reversal = reversalCommand(locked)
		}

		if err := repo.Update(locked); err != nil {
			return err
		}
		tx = locked
		return nil
	})
	if err != nil {
		return err
	}
	if tx == nil {
		return nil
	}

	if moved {
		s.publishEvent(ctx, events.TransferStatusMoved, tx)
	}
	if redispatch != nil {
		if err := s.publishCommand(ctx, redispatch); err != nil {
			// Confirmation gets redelivered; the re-dispatch is retried then.
			return fmt.Errorf("failed to re-dispatch %s for %s: %w", redispatch.Kind, tx.TransferID, err)
		}
	}
	if reversal != nil {
		if err := s.publishCommand(ctx, reversal); err != nil {
			// Confirmation gets redelivered; the reversal is retried then.
			return fmt.Errorf("failed to dispatch reversal for %s: %w", tx.TransferID, err)
		}
		tx.CompensationState = "dispatched"
		if err := s.transactions.Update(tx); err != nil {
			return err
		}
		s.metrics.RecordCompensation()
		log.Printf("dispatched compensating reversal for transfer %s", tx.TransferID)
	}
	return nil
}

func (s *service) checkOwnership(ctx context.Context, req CreateRequest) error {
	if s.accounts == nil {
		return nil
	}
	account, err := s.accounts.GetAccount(ctx, req.SenderAccountID)
	if err != nil {
		if err == repositories.ErrAccountNotFound {
			return ErrSourceNotFound
		}
		if s.config.OwnershipStrict {
			return ErrAccountLookupFailed
		}
		log.Printf("account lookup unavailable, queuing transfer anyway: %v", err)
		return nil
	}
	if account.UserID != req.UserID {
		return ErrNotAccountOwner
	}
	return nil
}

// dispatchMutations emits the withdrawal and deposit commands. No ordering is
// assumed between them; the ledger may apply them in any order.
func (s *service) dispatchMutations(ctx context.Context, tx *models.Transaction) error {
	now := time.Now().UTC()
	commands := []*messaging.BalanceMutationCommand{
		{
			SchemaVersion: messaging.SchemaVersion,
			Key:           messaging.MutationKey(tx.TransferID, messaging.KindWithdrawal),
			TransferID:    tx.TransferID,
			AccountID:     tx.SenderAccountID,
			AmountCents:   tx.AmountCents,
			Kind:          messaging.KindWithdrawal,
			IssuedAt:      now,
		},
		{
			SchemaVersion: messaging.SchemaVersion,
			Key:           messaging.MutationKey(tx.TransferID, messaging.KindDeposit),
			TransferID:    tx.TransferID,
			AccountID:     tx.ReceiverAccountID,
			AmountCents:   tx.AmountCents,
			Kind:          messaging.KindDeposit,
			IssuedAt:      now,
		},
	}
	for _, cmd := range commands {
		if err := s.publishCommand(ctx, cmd); err != nil {
			return fmt.Errorf("failed to dispatch %s for %s: %w", cmd.Kind, tx.TransferID, err)
		}
	}
	return nil
}

func (s *service) publishCommand(ctx context.Context, cmd *messaging.BalanceMutationCommand) error {
	payload, err := cmd.Encode()
	if err != nil {
		return err
	}
	return s.channel.Publish(ctx, messaging.QueueBalanceCommands, payload)
}

func (s *service) publishEvent(ctx context.Context, eventType string, tx *models.Transaction) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransfer(ctx, eventType, tx); err != nil {
		log.Printf("failed to publish %s for transfer %s: %v", eventType, tx.TransferID, err)
	}
}

func (s *service) setStatus(ctx context.Context, tx *models.Transaction, to string) error {
	if err := transition(tx, to); err != nil {
		return err
	}
	if err := s.transactions.Update(tx); err != nil {
		return fmt.Errorf("failed to update transfer status: %w", err)
	}
	s.publishEvent(ctx, events.TransferStatusMoved, tx)
	return nil
}

// recordLeg applies one confirmation to its leg, returning false for a
// duplicate of an already-resolved leg.
func recordLeg(tx *models.Transaction, conf *messaging.MutationConfirmation) bool {
	state := models.LegConfirmed
	if !conf.Success {
		state = models.LegFailed
	}
	switch conf.Kind {
	case messaging.KindWithdrawal:
		if tx.WithdrawalState != models.LegOutstanding {
			return false
		}
		tx.WithdrawalState = state
	case messaging.KindDeposit:
		if tx.DepositState != models.LegOutstanding {
			return false
		}
		tx.DepositState = state
	}
	return true
}

// outstandingCommand rebuilds the command for a leg that has no recorded
// outcome yet. Dispatch is not transactional with the status update, so a
// command can be lost after the transfer commits as processing; the other
// leg's confirmation drives the retry. Re-publishing a command that is still
// in flight is harmless, the ledger deduplicates on the key.
func outstandingCommand(tx *models.Transaction) *messaging.BalanceMutationCommand {
	cmd := &messaging.BalanceMutationCommand{
		SchemaVersion: messaging.SchemaVersion,
		TransferID:    tx.TransferID,
		AmountCents:   tx.AmountCents,
		IssuedAt:      time.Now().UTC(),
	}
	switch {
	case tx.WithdrawalState == models.LegOutstanding:
		cmd.Key = messaging.MutationKey(tx.TransferID, messaging.KindWithdrawal)
		cmd.AccountID = tx.SenderAccountID
		cmd.Kind = messaging.KindWithdrawal
	case tx.DepositState == models.LegOutstanding:
		cmd.Key = messaging.MutationKey(tx.TransferID, messaging.KindDeposit)
		cmd.AccountID = tx.ReceiverAccountID
		cmd.Kind = messaging.KindDeposit
	default:
		return nil
	}
	return cmd
}

// reversalCommand undoes the leg that succeeded when the other permanently
// failed. It rides the same idempotent mutation machinery as the legs.
func reversalCommand(tx *models.Transaction) *messaging.BalanceMutationCommand {
	cmd := &messaging.BalanceMutationCommand{
		SchemaVersion: messaging.SchemaVersion,
		Key:           messaging.ReversalKey(tx.TransferID),
		TransferID:    tx.TransferID,
		AmountCents:   tx.AmountCents,
		IssuedAt:      time.Now().UTC(),
	}
	switch {
	case tx.WithdrawalState == models.LegConfirmed && tx.DepositState == models.LegFailed:
		cmd.AccountID = tx.SenderAccountID
		cmd.Kind = messaging.KindDeposit
	case tx.DepositState == models.LegConfirmed && tx.WithdrawalState == models.LegFailed:
		cmd.AccountID = tx.ReceiverAccountID
		cmd.Kind = messaging.KindWithdrawal
	default:
		return nil
	}
	return cmd
}
