package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cora/internal/messaging"
	"cora/internal/models"
	"cora/internal/repositories"
)

type fakeAccountRepo struct {
	mu        sync.Mutex
	accounts  map[uint]models.Account
	mutations map[string]models.MutationRecord
	nextID    uint
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{
		accounts:  make(map[uint]models.Account),
		mutations: make(map[string]models.MutationRecord),
	}
}

func (r *fakeAccountRepo) Create(account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	account.ID = r.nextID
	r.accounts[account.ID] = *account
	return nil
}

func (r *fakeAccountRepo) GetByID(id uint) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.accounts[id]
	if !ok {
		return nil, repositories.ErrAccountNotFound
	}
	copied := acct
	return &copied, nil
}

func (r *fakeAccountRepo) GetByUserID(userID uint) ([]*models.Account, error) {
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

func (r *fakeAccountRepo) GetForUpdate(id uint) (*models.Account, error) {
	return r.GetByID(id)
}

func (r *fakeAccountRepo) Update(account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[account.ID]; !ok {
		return repositories.ErrAccountNotFound
	}
	r.accounts[account.ID] = *account
	return nil
}

func (r *fakeAccountRepo) GetMutationRecord(key string) (*models.MutationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.mutations[key]
	if !ok {
		return nil, repositories.ErrMutationNotFound
	}
	copied := rec
	return &copied, nil
}

func (r *fakeAccountRepo) CreateMutationRecord(rec *models.MutationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.mutations[rec.Key]; ok {
		return repositories.ErrDuplicateKey
	}
	r.mutations[rec.Key] = *rec
	return nil
}

func (r *fakeAccountRepo) ExecuteInTransaction(fn func(repositories.AccountRepository) error) error {
	return fn(r)
}

func (r *fakeAccountRepo) balance(t *testing.T, id uint) int64 {
	t.Helper()
	acct, err := r.GetByID(id)
	require.NoError(t, err)
	return acct.BalanceCents
}

func command(key string, accountID uint, amount int64, kind string) *messaging.BalanceMutationCommand {
	return &messaging.BalanceMutationCommand{
		SchemaVersion: messaging.SchemaVersion,
		Key:           key,
		TransferID:    "transfer-1",
		AccountID:     accountID,
		AmountCents:   amount,
		Kind:          kind,
		IssuedAt:      time.Now().UTC(),
	}
}

func TestApplyMutation(t *testing.T) {
	t.Run("withdrawal debits the account", func(t *testing.T) {
		repo := newFakeAccountRepo()
		repo.Create(&models.Account{UserID: 1, BalanceCents: 10_000, Status: models.AccountActive})
		svc := NewService(repo, nil, nil)

		conf, err := svc.ApplyMutation(context.Background(), command("k-w", 1, 3_000, messaging.KindWithdrawal))
		require.NoError(t, err)
		assert.True(t, conf.Success)
		assert.Equal(t, int64(7_000), repo.balance(t, 1))
	})

	t.Run("deposit credits the account", func(t *testing.T) {
		repo := newFakeAccountRepo()
		repo.Create(&models.Account{UserID: 1, BalanceCents: 500, Status: models.AccountActive})
		svc := NewService(repo, nil, nil)

		conf, err := svc.ApplyMutation(context.Background(), command("k-d", 1, 2_500, messaging.KindDeposit))
		require.NoError(t, err)
		assert.True(t, conf.Success)
		assert.Equal(t, int64(3_000), repo.balance(t, 1))
	})

	t.Run("insufficient funds is a permanent rejection", func(t *testing.T) {
		repo := newFakeAccountRepo()
		repo.Create(&models.Account{UserID: 1, BalanceCents: 1_000, Status: models.AccountActive})
		svc := NewService(repo, nil, nil)

		conf, err := svc.ApplyMutation(context.Background(), command("k-over", 1, 5_000, messaging.KindWithdrawal))
		require.NoError(t, err, "business rejection is not an infrastructure error")
		assert.False(t, conf.Success)
		assert.True(t, conf.Permanent)
		assert.Equal(t, models.ErrCodeInsufficientFunds, conf.ErrorCode)
		assert.Equal(t, int64(1_000), repo.balance(t, 1), "balance untouched")
	})

	t.Run("exact balance withdrawal succeeds", func(t *testing.T) {
		repo := newFakeAccountRepo()
		repo.Create(&models.Account{UserID: 1, BalanceCents: 5_000, Status: models.AccountActive})
		svc := NewService(repo, nil, nil)

		conf, err := svc.ApplyMutation(context.Background(), command("k-exact", 1, 5_000, messaging.KindWithdrawal))
		require.NoError(t, err)
		assert.True(t, conf.Success)
		assert.Zero(t, repo.balance(t, 1))
	})

	t.Run("missing account is a permanent rejection", func(t *testing.T) {
		repo := newFakeAccountRepo()
		svc := NewService(repo, nil, nil)

		conf, err := svc.ApplyMutation(context.Background(), command("k-miss", 42, 1_000, messaging.KindDeposit))
		require.NoError(t, err)
		assert.False(t, conf.Success)
		assert.Equal(t, models.ErrCodeAccountNotFound, conf.ErrorCode)
	})

	t.Run("locked account is a permanent rejection", func(t *testing.T) {
		repo := newFakeAccountRepo()
		repo.Create(&models.Account{UserID: 1, BalanceCents: 10_000, Status: models.AccountLocked})
		svc := NewService(repo, nil, nil)

		conf, err := svc.ApplyMutation(context.Background(), command("k-lock", 1, 1_000, messaging.KindWithdrawal))
		require.NoError(t, err)
		assert.False(t, conf.Success)
		assert.Equal(t, models.ErrCodeAccountLocked, conf.ErrorCode)
		assert.Equal(t, int64(10_000), repo.balance(t, 1))
	})

	t.Run("invalid command is an error", func(t *testing.T) {
		repo := newFakeAccountRepo()
		svc := NewService(repo, nil, nil)

		_, err := svc.ApplyMutation(context.Background(), command("", 1, 1_000, messaging.KindDeposit))
		assert.Error(t, err)
	})
}

func TestApplyMutation_Idempotence(t *testing.T) {
	t.Run("redelivered success applies once", func(t *testing.T) {
		repo := newFakeAccountRepo()
		repo.Create(&models.Account{UserID: 1, BalanceCents: 10_000, Status: models.AccountActive})
		svc := NewService(repo, nil, nil)

		cmd := command("k-dup", 1, 4_000, messaging.KindWithdrawal)
		first, err := svc.ApplyMutation(context.Background(), cmd)
		require.NoError(t, err)
		second, err := svc.ApplyMutation(context.Background(), cmd)
		require.NoError(t, err)

		assert.Equal(t, int64(6_000), repo.balance(t, 1), "applied exactly once")
		assert.Equal(t, first.Success, second.Success)
		assert.Equal(t, first.Key, second.Key)
	})

	t.Run("redelivered rejection replays the same outcome", func(t *testing.T) {
		repo := newFakeAccountRepo()
		repo.Create(&models.Account{UserID: 1, BalanceCents: 100, Status: models.AccountActive})
		svc := NewService(repo, nil, nil)

		cmd := command("k-rej", 1, 9_000, messaging.KindWithdrawal)
		first, err := svc.ApplyMutation(context.Background(), cmd)
		require.NoError(t, err)

		// Funds arrive in between; the recorded outcome still wins.
		acct, _ := repo.GetByID(1)
		acct.BalanceCents = 100_000
		require.NoError(t, repo.Update(acct))

		second, err := svc.ApplyMutation(context.Background(), cmd)
		require.NoError(t, err)
		assert.False(t, first.Success)
		assert.False(t, second.Success)
		assert.Equal(t, models.ErrCodeInsufficientFunds, second.ErrorCode)
		assert.True(t, second.Permanent)
		assert.Equal(t, int64(100_000), repo.balance(t, 1))
	})
}

func TestGetBalance(t *testing.T) {
	repo := newFakeAccountRepo()
	repo.Create(&models.Account{UserID: 1, BalanceCents: 1_234, Status: models.AccountActive})
	svc := NewService(repo, nil, nil)

	balance, err := svc.GetBalance(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1_234), balance)

	_, err = svc.GetBalance(context.Background(), 9)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestDeposit(t *testing.T) {
	repo := newFakeAccountRepo()
	repo.Create(&models.Account{UserID: 1, BalanceCents: 0, Status: models.AccountActive})
	svc := NewService(repo, nil, nil)

	require.NoError(t, svc.Deposit(context.Background(), 1, 7_700, "charge-abc"))
	assert.Equal(t, int64(7_700), repo.balance(t, 1))

	// Same charge id again is a no-op.
	require.NoError(t, svc.Deposit(context.Background(), 1, 7_700, "charge-abc"))
	assert.Equal(t, int64(7_700), repo.balance(t, 1))

	assert.ErrorIs(t, svc.Deposit(context.Background(), 1, 0, "charge-zero"), ErrInvalidAmount)
	assert.ErrorIs(t, svc.Deposit(context.Background(), 9, 100, "charge-miss"), ErrAccountNotFound)
}

func TestConsumer(t *testing.T) {
	repo := newFakeAccountRepo()
	repo.Create(&models.Account{UserID: 1, BalanceCents: 10_000, Status: models.AccountActive})
	svc := NewService(repo, nil, nil)
	channel := messaging.NewMemoryChannel()
	consumer := NewConsumer(channel, svc, nil)

	ctx := context.Background()

	t.Run("valid command produces a confirmation", func(t *testing.T) {
		payload, err := command("k-c1", 1, 2_000, messaging.KindWithdrawal).Encode()
		require.NoError(t, err)
		require.NoError(t, channel.Publish(ctx, messaging.QueueBalanceCommands, payload))

		require.True(t, channel.DeliverOne(ctx, messaging.QueueBalanceCommands, consumer.Handle))
		assert.Equal(t, int64(8_000), repo.balance(t, 1))
		assert.Equal(t, 1, channel.Len(messaging.QueueBalanceConfirmations))
	})

	t.Run("malformed payload is dropped", func(t *testing.T) {
		require.NoError(t, channel.Publish(ctx, messaging.QueueBalanceCommands, []byte(`{"nope":`)))
		require.True(t, channel.DeliverOne(ctx, messaging.QueueBalanceCommands, consumer.Handle))
		assert.Zero(t, channel.Len(messaging.QueueBalanceCommands), "poison messages are not requeued")
	})
}
