// Package events publishes transfer lifecycle events for the read-model
// indexer. Consumers are outside this repository; the envelope is the
// contract.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cora/internal/messaging"
	"cora/internal/models"
)

// Event types.
const (
	TransferCreated     = "transfer.created"
	TransferStatusMoved = "transfer.status_changed"
	FraudCheckCompleted = "fraud.check_completed"
)

// Envelope wraps every published event.
type Envelope struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// TransferEvent carries the transaction's public fields.
type TransferEvent struct {
	TransferID        string `json:"transferId"`
	SenderAccountID   uint   `json:"senderAccountId"`
	ReceiverAccountID uint   `json:"receiverAccountId"`
	AmountCents       int64  `json:"amountCents"`
	Currency          string `json:"currency"`
	Status            string `json:"status"`
}

// FraudEvent mirrors the gateway's verdict for the indexer.
type FraudEvent struct {
	TransferID  string `json:"transferId"`
	Verdict     string `json:"verdict"`
	AmountCents int64  `json:"amountCents"`
}

// Publisher emits lifecycle events onto the events queue. Publishing is
// best-effort from the caller's point of view: the saga must not fail because
// the indexer feed hiccupped, so callers log and continue on error.
type Publisher struct {
	channel messaging.Channel
}

func NewPublisher(channel messaging.Channel) *Publisher {
	return &Publisher{channel: channel}
}

func (p *Publisher) PublishTransfer(ctx context.Context, eventType string, tx *models.Transaction) error {
	return p.publish(ctx, eventType, TransferEvent{
		TransferID:        tx.TransferID,
		SenderAccountID:   tx.SenderAccountID,
		ReceiverAccountID: tx.ReceiverAccountID,
		AmountCents:       tx.AmountCents,
		Currency:          tx.Currency,
		Status:            tx.Status,
	})
}

func (p *Publisher) PublishFraudCheck(ctx context.Context, transferID, verdict string, amountCents int64) error {
	return p.publish(ctx, FraudCheckCompleted, FraudEvent{
		TransferID:  transferID,
		Verdict:     verdict,
		AmountCents: amountCents,
	})
}

func (p *Publisher) publish(ctx context.Context, eventType string, data interface{}) error {
	payload, err := json.Marshal(Envelope{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.channel.Publish(ctx, messaging.QueueTransferEvents, payload)
}
