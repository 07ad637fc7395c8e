// Package account provides account lifecycle and cached lookups for the
// transfer and ledger surfaces.
package account

import (
	"context"
	"errors"
	"fmt"
	"log"

	"cora/internal/models"
	"cora/internal/repositories"
	"cora/internal/repositories/cache"
)

var (
	ErrAccountNotFound = repositories.ErrAccountNotFound
	ErrInvalidCurrency = errors.New("invalid currency")
)

type Service interface {
	CreateAccount(ctx context.Context, userID uint, currency string) (*models.Account, error)
	GetAccount(ctx context.Context, accountID uint) (*models.Account, error)
	GetUserAccounts(ctx context.Context, userID uint) ([]*models.Account, error)
	SetStatus(ctx context.Context, accountID uint, status, reason string) error
}

type service struct {
	accounts repositories.AccountRepository
	cache    *cache.AccountCache
}

func NewService(accounts repositories.AccountRepository, accountCache *cache.AccountCache) Service {
	if accounts == nil {
		panic("account repository is required")
	}
	return &service{accounts: accounts, cache: accountCache}
}

func (s *service) CreateAccount(ctx context.Context, userID uint, currency string) (*models.Account, error) {
	if len(currency) != 3 {
		return nil, ErrInvalidCurrency
	}
	account := &models.Account{
		UserID:   userID,
		Currency: currency,
		Status:   models.AccountActive,
	}
	if err := s.accounts.Create(account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return account, nil
}

// GetAccount serves from cache when possible. A cache miss or a cache error
// falls through to the database.
func (s *service) GetAccount(ctx context.Context, accountID uint) (*models.Account, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, accountID); err == nil && cached != nil {
			return cached, nil
		}
	}
	account, err := s.accounts.GetByID(accountID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, account); err != nil {
			log.Printf("failed to cache account %d: %v", accountID, err)
		}
	}
	return account, nil
}

func (s *service) GetUserAccounts(ctx context.Context, userID uint) ([]*models.Account, error) {
	return s.accounts.GetByUserID(userID)
}

func (s *service) SetStatus(ctx context.Context, accountID uint, status, reason string) error {
	account, err := s.accounts.GetByID(accountID)
	if err != nil {
		return err
	}
	account.Status = status
	account.StatusReason = reason
	if err := s.accounts.Update(account); err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, accountID); err != nil {
			log.Printf("failed to invalidate account %d: %v", accountID, err)
		}
	}
	return nil
}
