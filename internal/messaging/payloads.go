package messaging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// SchemaVersion is bumped when a payload shape changes incompatibly.
// Decoders reject any other version.
const SchemaVersion = 1

// Mutation kinds on the wire.
const (
	KindWithdrawal = "withdrawal"
	KindDeposit    = "deposit"
)

// MutationKey derives the idempotency key for one leg of a transfer.
func MutationKey(transferID, kind string) string {
	return fmt.Sprintf("%s-%s", transferID, kind)
}

// ReversalKey derives the idempotency key for the compensating mutation of a
// transfer whose other leg permanently failed.
func ReversalKey(transferID string) string {
	return fmt.Sprintf("%s-reversal", transferID)
}

// BalanceMutationCommand asks the ledger to apply one balance change.
// The key uniquely identifies this exact mutation across redeliveries.
type BalanceMutationCommand struct {
	SchemaVersion int       `json:"schemaVersion"`
	Key           string    `json:"key"`
	TransferID    string    `json:"transferId"`
	AccountID     uint      `json:"accountId"`
	AmountCents   int64     `json:"amountCents"`
	Kind          string    `json:"kind"`
	IssuedAt      time.Time `json:"issuedAt"`
}

func (c *BalanceMutationCommand) Validate() error {
	if c.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported command schema version %d", c.SchemaVersion)
	}
	if c.Key == "" || c.TransferID == "" {
		return fmt.Errorf("command missing key or transfer id")
	}
	if c.AccountID == 0 {
		return fmt.Errorf("command missing account id")
	}
	if c.AmountCents <= 0 {
		return fmt.Errorf("command amount must be positive")
	}
	if c.Kind != KindWithdrawal && c.Kind != KindDeposit {
		return fmt.Errorf("unknown mutation kind %q", c.Kind)
	}
	return nil
}

func (c *BalanceMutationCommand) Encode() ([]byte, error) {
	return json.Marshal(c)
}

// DecodeCommand decodes strictly: unknown fields and invalid values fail
// deterministically rather than silently defaulting.
func DecodeCommand(data []byte) (*BalanceMutationCommand, error) {
	var cmd BalanceMutationCommand
	if err := decodeStrict(data, &cmd); err != nil {
		return nil, fmt.Errorf("invalid command payload: %w", err)
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return &cmd, nil
}

// MutationConfirmation reports the de-duplicated outcome of one command.
// Permanent marks business rejections that must not be retried.
type MutationConfirmation struct {
	SchemaVersion int       `json:"schemaVersion"`
	TransferID    string    `json:"transferId"`
	Key           string    `json:"key"`
	Kind          string    `json:"kind"`
	Success       bool      `json:"success"`
	ErrorCode     string    `json:"errorCode,omitempty"`
	Permanent     bool      `json:"permanent,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func (c *MutationConfirmation) Validate() error {
	if c.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported confirmation schema version %d", c.SchemaVersion)
	}
	if c.TransferID == "" || c.Key == "" {
		return fmt.Errorf("confirmation missing transfer id or key")
	}
	if c.Kind != KindWithdrawal && c.Kind != KindDeposit {
		return fmt.Errorf("unknown mutation kind %q", c.Kind)
	}
	return nil
}

func (c *MutationConfirmation) Encode() ([]byte, error) {
	return json.Marshal(c)
}

func DecodeConfirmation(data []byte) (*MutationConfirmation, error) {
	var conf MutationConfirmation
	if err := decodeStrict(data, &conf); err != nil {
		return nil, fmt.Errorf("invalid confirmation payload: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func decodeStrict(data []byte, dest interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}
