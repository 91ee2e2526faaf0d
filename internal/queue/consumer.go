package queue

import (
	"sync"

	"github.com/finchmq/finch/pkg/broker"
)

// Consumer is one registered consumer on a queue. Deliveries assigned by the
// dispatcher are buffered in pending (under the queue lock) and pumped into
// the unbuffered delivery channel by the consumer's own goroutine, so a slow
// or blocked receiver never holds the queue lock.
type Consumer struct {
	id       string
	prefetch int // 0 = unlimited
	q        *Queue

	ch     chan broker.Delivery
	signal chan struct{}
	done   chan struct{}
	once   sync.Once

	// guarded by q.mu
	pending       []broker.Delivery
	inflightCount int
}

func newConsumer(id string, prefetch int, q *Queue) *Consumer {
	return &Consumer{
		id:       id,
		prefetch: prefetch,
		q:        q,
		ch:       make(chan broker.Delivery),
		signal:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// ID returns the unique identifier for this consumer.
func (c *Consumer) ID() string { return c.id }

// Queue returns the name of the queue this consumer is attached to.
func (c *Consumer) Queue() string { return c.q.name }

// Deliveries returns the channel of messages assigned to this consumer.
func (c *Consumer) Deliveries() <-chan broker.Delivery { return c.ch }

// Close detaches the consumer. Its unacknowledged deliveries, including any
// not yet read from the channel, return to the front of the queue in their
// original relative order.
func (c *Consumer) Close() error {
	c.once.Do(func() {
		close(c.done)
		c.q.removeConsumer(c)
	})
	return nil
}

// shutdown stops the consumer without requeueing, used when the whole queue
// is closing.
func (c *Consumer) shutdown() {
	c.once.Do(func() {
		close(c.done)
	})
}

// eligibleLocked reports whether the dispatcher may assign this consumer
// another message. Caller holds q.mu.
func (c *Consumer) eligibleLocked() bool {
	return c.prefetch == 0 || c.inflightCount < c.prefetch
}

// assign hands a delivery to the consumer and wakes its pump. Caller holds
// q.mu; the send is non-blocking.
func (c *Consumer) assign(d broker.Delivery) {
	c.pending = append(c.pending, d)
	select {
	case c.signal <- struct{}{}:
	default:
	}
}

// run pumps assigned deliveries into the delivery channel. It takes the
// queue lock only for the brief pop from pending, never across the send.
func (c *Consumer) run() {
	defer close(c.ch)
	for {
		select {
		case <-c.done:
			return
		case <-c.signal:
		}

		for {
			c.q.mu.Lock()
			if len(c.pending) == 0 {
				c.q.mu.Unlock()
				break
			}
			d := c.pending[0]
			c.pending = c.pending[1:]
			c.q.mu.Unlock()

			select {
			case c.ch <- d:
			case <-c.done:
				return
			}
		}
	}
}

// Verify that Consumer implements the broker.Consumer interface at compile time
var _ broker.Consumer = (*Consumer)(nil)
