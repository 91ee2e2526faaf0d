package broker

import (
	"context"
	"io"
)

// Consumer is one registered consumer on a queue.
type Consumer interface {
	io.Closer

	// ID returns the unique identifier for this consumer
	ID() string

	// Queue returns the name of the queue this consumer is attached to
	Queue() string

	// Deliveries returns the channel of messages assigned to this consumer.
	// The channel is closed when the consumer is closed or its queue is
	// deleted. Closing the consumer requeues its unacknowledged deliveries
	// at the front of the queue.
	Deliveries() <-chan Delivery
}

// Broker is the operation surface of a finch broker node.
type Broker interface {
	io.Closer

	// DeclareExchange creates an exchange. Redeclaring an existing exchange
	// with the same kind is a no-op; a different kind returns ErrKindMismatch.
	DeclareExchange(ctx context.Context, name string, kind ExchangeKind) error

	// DeclareQueue creates a queue. Redeclaring an existing queue with the
	// same durability is a no-op; a different flag returns
	// ErrDurabilityMismatch.
	DeclareQueue(ctx context.Context, name string, durable bool) error

	// DeleteQueue removes a queue, its bindings and its pending messages.
	DeleteQueue(ctx context.Context, name string) error

	// Bind subscribes a queue to an exchange under a binding pattern.
	// Duplicate bindings collapse; routing stays idempotent per queue.
	Bind(ctx context.Context, queue, exchange, pattern string) error

	// Unbind removes a binding created by Bind.
	Unbind(ctx context.Context, queue, exchange, pattern string) error

	// Publish routes a message through an exchange to all matching queues.
	// A message that matches no binding is dropped and counted; this is not
	// an error. Persistent messages are written to storage before the
	// publish returns when the destination queue is durable.
	Publish(ctx context.Context, exchange, routingKey string, body []byte, persistent bool) error

	// Consume registers a consumer on a queue with the given prefetch limit
	// (0 means unlimited) and returns its delivery stream.
	Consume(ctx context.Context, queue string, prefetch int) (Consumer, error)

	// Ack acknowledges a delivery, removing the message permanently.
	// Acking an unknown or already-acked tag returns ErrUnknownTag.
	Ack(ctx context.Context, queue string, tag uint64) error

	// Nack rejects a delivery. With requeue the message returns to the front
	// of the queue for immediate redispatch; without it the message is
	// discarded.
	Nack(ctx context.Context, queue string, tag uint64, requeue bool) error

	// Stats returns the ready and unacknowledged counts for a queue.
	Stats(ctx context.Context, queue string) (QueueStats, error)
}
