package fraud

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cora/internal/events"
	"cora/internal/idempotency"
	"cora/internal/messaging"
	"cora/internal/models"
)

func TestThresholdPolicy(t *testing.T) {
	policy := NewThresholdPolicy(0)
	assert.Equal(t, int64(DefaultThresholdCents), policy.LimitCents)

	tests := []struct {
		name   string
		amount int64
		want   Verdict
	}{
		{"well under limit", 5_000, VerdictApproved},
		{"exactly at limit", DefaultThresholdCents, VerdictApproved},
		{"one cent over", DefaultThresholdCents + 1, VerdictDeclined},
		{"far over", 10 * DefaultThresholdCents, VerdictDeclined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &models.Transaction{TransferID: "t", AmountCents: tt.amount}
			assert.Equal(t, tt.want, policy.Decide(tx))
		})
	}
}

type failingStore struct{}

func (failingStore) MarkIfFirst(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("store down")
}
func (failingStore) Seen(context.Context, string) (bool, error) {
	return false, errors.New("store down")
}

func (failingStore) Forget(context.Context, string) error {
	return errors.New("store down")
}

func TestServiceCheck(t *testing.T) {
	newSvc := func(channel *messaging.MemoryChannel) *Service {
		return NewService(Config{
			Policy:    NewThresholdPolicy(0),
			Store:     idempotency.NewMemoryStore(),
			Publisher: events.NewPublisher(channel),
		})
	}

	t.Run("first check publishes the verdict event", func(t *testing.T) {
		channel := messaging.NewMemoryChannel()
		svc := newSvc(channel)

		tx := &models.Transaction{TransferID: "t-1", AmountCents: 5_000}
		verdict, err := svc.Check(context.Background(), tx)
		require.NoError(t, err)
		assert.Equal(t, VerdictApproved, verdict)
		assert.Equal(t, 1, channel.Len(messaging.QueueTransferEvents))
	})

	t.Run("duplicate check replays without republishing", func(t *testing.T) {
		channel := messaging.NewMemoryChannel()
		svc := newSvc(channel)

		tx := &models.Transaction{TransferID: "t-2", AmountCents: DefaultThresholdCents + 50}
		first, err := svc.Check(context.Background(), tx)
		require.NoError(t, err)
		second, err := svc.Check(context.Background(), tx)
		require.NoError(t, err)

		assert.Equal(t, VerdictDeclined, first)
		assert.Equal(t, first, second, "deterministic policy replays the same verdict")
		assert.Equal(t, 1, channel.Len(messaging.QueueTransferEvents), "event published once")
	})

	t.Run("store failure defers the verdict", func(t *testing.T) {
		svc := NewService(Config{
			Policy: NewThresholdPolicy(0),
			Store:  failingStore{},
		})
		tx := &models.Transaction{TransferID: "t-3", AmountCents: 100}
		verdict, err := svc.Check(context.Background(), tx)
		assert.Error(t, err)
		assert.Equal(t, VerdictPending, verdict)
	})
}

func TestServiceIsAvailable(t *testing.T) {
	t.Run("nil probe reports available", func(t *testing.T) {
		svc := NewService(Config{Policy: NewThresholdPolicy(0), Store: idempotency.NewMemoryStore()})
		assert.True(t, svc.IsAvailable(context.Background()))
	})

	t.Run("probe failure reports unavailable", func(t *testing.T) {
		svc := NewService(Config{
			Policy: NewThresholdPolicy(0),
			Store:  idempotency.NewMemoryStore(),
			Probe:  func(context.Context) error { return errors.New("redis down") },
		})
		assert.False(t, svc.IsAvailable(context.Background()))
	})
}
