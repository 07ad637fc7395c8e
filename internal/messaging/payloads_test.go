package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCommand() *BalanceMutationCommand {
	return &BalanceMutationCommand{
		SchemaVersion: SchemaVersion,
		Key:           MutationKey("t-1", KindWithdrawal),
		TransferID:    "t-1",
		AccountID:     7,
		AmountCents:   1_500,
		Kind:          KindWithdrawal,
		IssuedAt:      time.Now().UTC(),
	}
}

func TestMutationKeys(t *testing.T) {
	assert.Equal(t, "t-1-withdrawal", MutationKey("t-1", KindWithdrawal))
	assert.Equal(t, "t-1-deposit", MutationKey("t-1", KindDeposit))
	assert.Equal(t, "t-1-reversal", ReversalKey("t-1"))
}

func TestCommandRoundTrip(t *testing.T) {
	cmd := validCommand()
	payload, err := cmd.Encode()
	require.NoError(t, err)

	decoded, err := DecodeCommand(payload)
	require.NoError(t, err)
	assert.Equal(t, cmd.Key, decoded.Key)
	assert.Equal(t, cmd.AmountCents, decoded.AmountCents)
	assert.Equal(t, cmd.Kind, decoded.Kind)
}

func TestDecodeCommand_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*BalanceMutationCommand)
	}{
		{"wrong schema version", func(c *BalanceMutationCommand) { c.SchemaVersion = 99 }},
		{"missing key", func(c *BalanceMutationCommand) { c.Key = "" }},
		{"missing transfer id", func(c *BalanceMutationCommand) { c.TransferID = "" }},
		{"missing account", func(c *BalanceMutationCommand) { c.AccountID = 0 }},
		{"zero amount", func(c *BalanceMutationCommand) { c.AmountCents = 0 }},
		{"negative amount", func(c *BalanceMutationCommand) { c.AmountCents = -5 }},
		{"unknown kind", func(c *BalanceMutationCommand) { c.Kind = "transfer" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := validCommand()
			tt.mutate(cmd)
			payload, err := cmd.Encode()
			require.NoError(t, err)
			_, err = DecodeCommand(payload)
			assert.Error(t, err)
		})
	}

	t.Run("unknown fields", func(t *testing.T) {
		_, err := DecodeCommand([]byte(`{"schemaVersion":1,"key":"k","transferId":"t","accountId":1,"amountCents":5,"kind":"deposit","surprise":true}`))
		assert.Error(t, err)
	})

	t.Run("truncated json", func(t *testing.T) {
		_, err := DecodeCommand([]byte(`{"schemaVersion":1,`))
		assert.Error(t, err)
	})
}

func TestDecodeConfirmation(t *testing.T) {
	conf := &MutationConfirmation{
		SchemaVersion: SchemaVersion,
		TransferID:    "t-9",
		Key:           MutationKey("t-9", KindDeposit),
		Kind:          KindDeposit,
		Success:       false,
		ErrorCode:     "insufficient_funds",
		Permanent:     true,
		Timestamp:     time.Now().UTC(),
	}
	payload, err := conf.Encode()
	require.NoError(t, err)

	decoded, err := DecodeConfirmation(payload)
	require.NoError(t, err)
	assert.Equal(t, conf.Key, decoded.Key)
	assert.False(t, decoded.Success)
	assert.True(t, decoded.Permanent)

	_, err = DecodeConfirmation([]byte(`{"schemaVersion":2,"transferId":"t","key":"k","kind":"deposit"}`))
	assert.Error(t, err)
}
