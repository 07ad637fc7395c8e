package messaging

import (
	"context"
	"fmt"
	"sync"
)

// MemoryChannel is an in-process Channel used in tests. It keeps the same
// at-least-once contract: Retry requeues the message with an incremented
// delivery count, Ack and Drop remove it.
type MemoryChannel struct {
	mu     sync.Mutex
	queues map[string][]memoryMessage
	nextID int64
}

type memoryMessage struct {
	id         string
	payload    []byte
	deliveries int64
}

func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{queues: make(map[string][]memoryMessage)}
}

func (c *MemoryChannel) Publish(_ context.Context, queue string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.queues[queue] = append(c.queues[queue], memoryMessage{
		id:      fmt.Sprintf("mem-%d", c.nextID),
		payload: append([]byte(nil), payload...),
	})
	return nil
}

func (c *MemoryChannel) Subscribe(ctx context.Context, queue string, handler Handler) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !c.DeliverOne(ctx, queue, handler) {
			return nil
		}
	}
}

// DeliverOne pops and handles a single message, returning false when the
// queue is empty. Tests drive delivery (and redelivery) explicitly with it.
func (c *MemoryChannel) DeliverOne(ctx context.Context, queue string, handler Handler) bool {
	c.mu.Lock()
	msgs := c.queues[queue]
	if len(msgs) == 0 {
		c.mu.Unlock()
		return false
	}
	msg := msgs[0]
	c.queues[queue] = msgs[1:]
	c.mu.Unlock()

	msg.deliveries++
	result := handler(ctx, Message{ID: msg.id, Payload: msg.payload, DeliveryCount: msg.deliveries})
	if result == Retry {
		c.mu.Lock()
		c.queues[queue] = append(c.queues[queue], msg)
		c.mu.Unlock()
	}
	return true
}

// Len reports the number of undelivered messages on a queue.
func (c *MemoryChannel) Len(queue string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queues[queue])
}
