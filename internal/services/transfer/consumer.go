package transfer

import (
	"context"
	"log"

	"cora/internal/messaging"
	"cora/internal/metrics"
)

// Consumer drains balance confirmations back into the saga.
type Consumer struct {
	channel messaging.Channel
	service Service
	metrics metrics.Recorder
}

func NewConsumer(channel messaging.Channel, svc Service, recorder metrics.Recorder) *Consumer {
	if channel == nil {
		panic("message channel is required")
	}
	if svc == nil {
		panic("transfer service is required")
	}
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &Consumer{channel: channel, service: svc, metrics: recorder}
}

func (c *Consumer) Run(ctx context.Context) error {
	return c.channel.Subscribe(ctx, messaging.QueueBalanceConfirmations, c.handle)
}

func (c *Consumer) handle(ctx context.Context, msg messaging.Message) messaging.Result {
	conf, err := messaging.DecodeConfirmation(msg.Payload)
	if err != nil {
		log.Printf("dropping malformed confirmation %s: %v", msg.ID, err)
		c.metrics.RecordError("decode_confirmation")
		return messaging.Drop
	}
	if err := c.service.HandleMutationConfirmation(ctx, conf); err != nil {
		log.Printf("confirmation for transfer %s failed (delivery %d): %v", conf.TransferID, msg.DeliveryCount, err)
		c.metrics.RecordError("handle_confirmation")
		return messaging.Retry
	}
	return messaging.Ack
}
