package messaging

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const payloadField = "payload"

// RedisChannel implements Channel on redis streams with consumer groups.
// XACK removes a delivery; unacked deliveries stay in the pending entries
// list and are reclaimed once their idle time exceeds RetryAfter, which is
// what makes delivery at-least-once across consumer crashes. go-redis
// reconnects on its own after a broker outage; Publish during the outage
// surfaces the error to the caller.
type RedisChannel struct {
	client     *redis.Client
	group      string
	consumer   string
	batchSize  int64
	block      time.Duration
	retryAfter time.Duration
}

type RedisChannelConfig struct {
	Group      string
	Consumer   string
	BatchSize  int64
	Block      time.Duration
	RetryAfter time.Duration
}

func NewRedisChannel(client *redis.Client, cfg RedisChannelConfig) *RedisChannel {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10
	}
	if cfg.Block == 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.RetryAfter == 0 {
		cfg.RetryAfter = 30 * time.Second
	}
	return &RedisChannel{
		client:     client,
		group:      cfg.Group,
		consumer:   cfg.Consumer,
		batchSize:  cfg.BatchSize,
		block:      cfg.Block,
		retryAfter: cfg.RetryAfter,
	}
}

func (c *RedisChannel) Publish(ctx context.Context, queue string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: queue,
		Values: map[string]any{payloadField: payload},
	}
	if _, err := c.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}
	return nil
}

func (c *RedisChannel) Subscribe(ctx context.Context, queue string, handler Handler) error {
	err := c.client.XGroupCreateMkStream(ctx, queue, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	log.Printf("subscriber started: queue=%s group=%s consumer=%s", queue, c.group, c.consumer)

	for {
		select {
		case <-ctx.Done():
			log.Printf("subscriber stopping: %s", queue)
			return ctx.Err()
		default:
			if err := c.reclaimStale(ctx, queue, handler); err != nil && ctx.Err() == nil {
				log.Printf("error reclaiming pending messages on %s: %v", queue, err)
			}
			if err := c.readNew(ctx, queue, handler); err != nil && ctx.Err() == nil {
				log.Printf("error reading messages on %s: %v", queue, err)
				time.Sleep(time.Second)
			}
		}
	}
}

func (c *RedisChannel) readNew(ctx context.Context, queue string, handler Handler) error {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{queue, ">"},
		Count:    c.batchSize,
		Block:    c.block,
	}).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			c.dispatch(ctx, queue, msg, 1, handler)
		}
	}
	return nil
}

// reclaimStale redelivers messages another consumer read but never acked.
func (c *RedisChannel) reclaimStale(ctx context.Context, queue string, handler Handler) error {
	msgs, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   queue,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  c.retryAfter,
		Start:    "0",
		Count:    c.batchSize,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to claim pending messages: %w", err)
	}

	for _, msg := range msgs {
		deliveries := c.deliveryCount(ctx, queue, msg.ID)
		c.dispatch(ctx, queue, msg, deliveries, handler)
	}
	return nil
}

func (c *RedisChannel) dispatch(ctx context.Context, queue string, msg redis.XMessage, deliveries int64, handler Handler) {
	payload, ok := msg.Values[payloadField].(string)
	if !ok {
		// malformed entry, drop it
		log.Printf("dropping malformed message %s on %s", msg.ID, queue)
		c.ack(ctx, queue, msg.ID)
		return
	}

	result := handler(ctx, Message{ID: msg.ID, Payload: []byte(payload), DeliveryCount: deliveries})
	switch result {
	case Ack:
		c.ack(ctx, queue, msg.ID)
	case Drop:
		log.Printf("dropping poison message %s on %s", msg.ID, queue)
		c.ack(ctx, queue, msg.ID)
	case Retry:
		// leave in the pending list; reclaimed after retryAfter
	}
}

func (c *RedisChannel) ack(ctx context.Context, queue, id string) {
	if err := c.client.XAck(ctx, queue, c.group, id).Err(); err != nil {
		log.Printf("failed to ack message %s on %s: %v", id, queue, err)
	}
}

func (c *RedisChannel) deliveryCount(ctx context.Context, queue, id string) int64 {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: queue,
		Group:  c.group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil || len(pending) == 0 {
		return 1
	}
	return pending[0].RetryCount
}
