// Package messaging abstracts the durable, at-least-once queues that couple
// the orchestrator to the ledger. Delivery order is not guaranteed and
// duplicates are the common case; consumers own deduplication.
package messaging

import (
	"context"
)

// Queue names.
const (
	QueueBalanceCommands      = "balance.commands"
	QueueBalanceConfirmations = "balance.confirmations"
	QueueTransferEvents       = "transfer.events"
)

// Result tells the channel what to do with a delivered message.
type Result int

const (
	// Ack removes the message from the queue.
	Ack Result = iota
	// Retry leaves the message for redelivery.
	Retry
	// Drop acknowledges a poison message so it is not retried forever.
	Drop
)

// Message is one delivery. DeliveryCount starts at 1 and grows with each
// redelivery of the same message.
type Message struct {
	ID            string
	Payload       []byte
	DeliveryCount int64
}

// Handler processes one delivery.
type Handler func(ctx context.Context, msg Message) Result

// Channel is a point-to-point queue with explicit acknowledgement.
// Publish fails with an error when the broker is unreachable; callers treat
// that as a retryable infrastructure error. Subscribe blocks until ctx is
// cancelled and is normally run in its own goroutine.
type Channel interface {
	Publish(ctx context.Context, queue string, payload []byte) error
	Subscribe(ctx context.Context, queue string, handler Handler) error
}
