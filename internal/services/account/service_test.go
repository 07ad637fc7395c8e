package account

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cora/internal/models"
	"cora/internal/repositories"
)

type fakeRepo struct {
	mu       sync.Mutex
	accounts map[uint]models.Account
	nextID   uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{accounts: make(map[uint]models.Account)}
}

func (r *fakeRepo) Create(account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	account.ID = r.nextID
	r.accounts[account.ID] = *account
	return nil
}

func (r *fakeRepo) GetByID(id uint) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.accounts[id]
	if !ok {
		return nil, repositories.ErrAccountNotFound
	}
	copied := acct
	return &copied, nil
}

func (r *fakeRepo) GetByUserID(userID uint) ([]*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Account
	for _, acct := range r.accounts {
		if acct.UserID == userID {
			copied := acct
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetForUpdate(id uint) (*models.Account, error) { return r.GetByID(id) }

func (r *fakeRepo) Update(account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[account.ID]; !ok {
		return repositories.ErrAccountNotFound
	}
	r.accounts[account.ID] = *account
	return nil
}

func (r *fakeRepo) GetMutationRecord(string) (*models.MutationRecord, error) {
	return nil, repositories.ErrMutationNotFound
}

func (r *fakeRepo) CreateMutationRecord(*models.MutationRecord) error { return nil }

func (r *fakeRepo) ExecuteInTransaction(fn func(repositories.AccountRepository) error) error {
	return fn(r)
}

func TestCreateAccount(t *testing.T) {
	svc := NewService(newFakeRepo(), nil)
	ctx := context.Background()

	acct, err := svc.CreateAccount(ctx, 10, "USD")
	require.NoError(t, err)
	assert.NotZero(t, acct.ID)
	assert.Equal(t, models.AccountActive, acct.Status)
	assert.Zero(t, acct.BalanceCents, "accounts open empty")

	_, err = svc.CreateAccount(ctx, 10, "dollars")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestGetAccount(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	created, err := svc.CreateAccount(ctx, 10, "EUR")
	require.NoError(t, err)

	got, err := svc.GetAccount(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "EUR", got.Currency)

	_, err = svc.GetAccount(ctx, 999)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestGetUserAccounts(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.CreateAccount(ctx, 10, "USD")
	require.NoError(t, err)
	_, err = svc.CreateAccount(ctx, 10, "EUR")
	require.NoError(t, err)
	_, err = svc.CreateAccount(ctx, 20, "USD")
	require.NoError(t, err)

	mine, err := svc.GetUserAccounts(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestSetStatus(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	created, err := svc.CreateAccount(ctx, 10, "USD")
	require.NoError(t, err)

	require.NoError(t, svc.SetStatus(ctx, created.ID, models.AccountLocked, "fraud review"))
	got, err := svc.GetAccount(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountLocked, got.Status)
	assert.Equal(t, "fraud review", got.StatusReason)

	assert.ErrorIs(t, svc.SetStatus(ctx, 999, models.AccountLocked, ""), repositories.ErrAccountNotFound)
}
