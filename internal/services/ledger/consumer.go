package ledger

import (
	"context"
	"log"

	"cora/internal/messaging"
	"cora/internal/metrics"
)

// Consumer drives the ledger from the command queue and reports outcomes on
// the confirmation queue.
type Consumer struct {
	channel messaging.Channel
	service *Service
	metrics metrics.Recorder
}

func NewConsumer(channel messaging.Channel, service *Service, recorder metrics.Recorder) *Consumer {
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &Consumer{channel: channel, service: service, metrics: recorder}
}

// Run blocks consuming balance commands until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.channel.Subscribe(ctx, messaging.QueueBalanceCommands, c.Handle)
}

// Handle processes one command delivery.
func (c *Consumer) Handle(ctx context.Context, msg messaging.Message) messaging.Result {
	cmd, err := messaging.DecodeCommand(msg.Payload)
	if err != nil {
		// Poison message: retrying a payload that cannot be decoded will
		// never succeed.
		log.Printf("undecodable command %s: %v", msg.ID, err)
		c.metrics.RecordError("decode_command")
		return messaging.Drop
	}

	conf, err := c.service.ApplyMutation(ctx, cmd)
	if err != nil {
		log.Printf("transient failure applying %s: %v", cmd.Key, err)
		return messaging.Retry
	}

	payload, err := conf.Encode()
	if err != nil {
		log.Printf("failed to encode confirmation for %s: %v", cmd.Key, err)
		c.metrics.RecordError("encode_confirmation")
		return messaging.Retry
	}
	if err := c.channel.Publish(ctx, messaging.QueueBalanceConfirmations, payload); err != nil {
		// The mutation is committed; redelivery replays the recorded outcome
		// and retries this publish until the confirmation gets out.
		log.Printf("failed to publish confirmation for %s: %v", cmd.Key, err)
		c.metrics.RecordError("publish_confirmation")
		return messaging.Retry
	}
	return messaging.Ack
}
