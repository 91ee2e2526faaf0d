// Package queue implements the per-queue work distributor: a FIFO of ready
// messages, acknowledgment tracking for in-flight deliveries, and fair
// round-robin dispatch across consumers under prefetch limits.
package queue

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/finchmq/finch/pkg/broker"
)

// Hooks are callbacks invoked after queue state transitions, outside the
// queue lock. The broker uses them to keep durable storage and counters in
// step with the in-memory state.
type Hooks struct {
	// OnAck runs when a message is acknowledged and permanently removed
	OnAck func(msg broker.Message)

	// OnRequeue runs when an unacknowledged message returns to the queue
	OnRequeue func(msg broker.Message)

	// OnDead runs when a message is discarded: nacked without requeue or
	// past the redelivery cap
	OnDead func(msg broker.Message)
}

// item is one queue entry with its redelivery bookkeeping.
type item struct {
	msg          broker.Message
	redeliveries int
}

// inflight is one unacknowledged delivery.
type inflight struct {
	item     item
	consumer *Consumer
	tag      uint64
}

// Config carries the per-queue settings.
type Config struct {
	Name    string
	Durable bool

	// MaxRedeliveries caps how often a message may return to the queue
	// before it is discarded. Zero means unlimited, the default.
	MaxRedeliveries int

	Hooks  Hooks
	Logger *slog.Logger
}

// Queue is one message queue with its consumers. All state mutation happens
// under a single per-queue mutex; consumers block on their own delivery
// channels and never hold the lock while suspended.
type Queue struct {
	name            string
	durable         bool
	maxRedeliveries int
	hooks           Hooks
	logger          *slog.Logger

	mu        sync.Mutex
	ready     []item
	delivered map[uint64]*inflight
	consumers []*Consumer
	cursor    int
	nextTag   uint64
	closed    bool
}

// New creates an empty queue.
func New(cfg Config) *Queue {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		name:            cfg.Name,
		durable:         cfg.Durable,
		maxRedeliveries: cfg.MaxRedeliveries,
		hooks:           cfg.Hooks,
		logger:          logger.With("queue", cfg.Name),
		delivered:       make(map[uint64]*inflight),
	}
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// Durable reports whether the queue survives a broker restart.
func (q *Queue) Durable() bool { return q.durable }

// Enqueue appends a message to the back of the ready FIFO and dispatches.
func (q *Queue) Enqueue(msg broker.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return broker.ErrClosed
	}
	q.ready = append(q.ready, item{msg: msg})
	q.dispatchLocked()
	return nil
}

// AddConsumer registers a consumer with the given prefetch limit (0 means
// unlimited) and starts its delivery stream.
func (q *Queue) AddConsumer(id string, prefetch int) (*Consumer, error) {
	if prefetch < 0 {
		return nil, fmt.Errorf("prefetch must be non-negative, got %d", prefetch)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, broker.ErrClosed
	}

	c := newConsumer(id, prefetch, q)
	q.consumers = append(q.consumers, c)
	go c.run()

	q.logger.Debug("consumer registered", "consumer_id", id, "prefetch", prefetch)
	q.dispatchLocked()
	return c, nil
}

// Ack acknowledges a delivery and removes the message permanently. The
// freed prefetch slot makes the consumer eligible again, so the next ready
// message dispatches immediately.
func (q *Queue) Ack(tag uint64) error {
	q.mu.Lock()
	inf, ok := q.delivered[tag]
	if !ok {
		q.mu.Unlock()
		return fmt.Errorf("%w: %d on queue %q", broker.ErrUnknownTag, tag, q.name)
	}
	delete(q.delivered, tag)
	inf.consumer.inflightCount--
	q.dispatchLocked()
	q.mu.Unlock()

	if q.hooks.OnAck != nil {
		q.hooks.OnAck(inf.item.msg)
	}
	return nil
}

// Nack rejects a delivery. With requeue the message returns to the front of
// the ready FIFO for immediate redispatch (unless past the redelivery cap);
// without it the message is discarded.
func (q *Queue) Nack(tag uint64, requeue bool) error {
	q.mu.Lock()
	inf, ok := q.delivered[tag]
	if !ok {
		q.mu.Unlock()
		return fmt.Errorf("%w: %d on queue %q", broker.ErrUnknownTag, tag, q.name)
	}
	delete(q.delivered, tag)
	inf.consumer.inflightCount--

	var requeued, dead []item
	if requeue {
		requeued, dead = q.requeueLocked([]*inflight{inf})
	} else {
		dead = []item{inf.item}
	}
	q.dispatchLocked()
	q.mu.Unlock()

	q.runHooks(requeued, dead)
	return nil
}

// removeConsumer detaches a consumer and returns its unacknowledged
// deliveries to the front of the queue, preserving their original relative
// order. Called from Consumer.Close.
func (q *Queue) removeConsumer(c *Consumer) {
	q.mu.Lock()
	for i, existing := range q.consumers {
		if existing == c {
			q.consumers = append(q.consumers[:i], q.consumers[i+1:]...)
			if q.cursor > i {
				q.cursor--
			}
			break
		}
	}
	if len(q.consumers) > 0 {
		q.cursor %= len(q.consumers)
	} else {
		q.cursor = 0
	}

	// Collect the consumer's in-flight set. Tags are monotonic, so sorting
	// by tag restores the original dispatch order.
	var held []*inflight
	for tag, inf := range q.delivered {
		if inf.consumer == c {
			held = append(held, inf)
			delete(q.delivered, tag)
		}
	}
	sort.Slice(held, func(i, j int) bool { return held[i].tag < held[j].tag })

	requeued, dead := q.requeueLocked(held)
	q.dispatchLocked()
	q.mu.Unlock()

	if len(requeued) > 0 {
		q.logger.Debug("consumer disconnected, messages requeued",
			"consumer_id", c.id, "requeued", len(requeued))
	}
	q.runHooks(requeued, dead)
}

// requeueLocked pushes the given in-flight entries to the front of the
// ready FIFO in their given order, marking them redelivered. Entries past
// the redelivery cap go dead instead. Caller holds q.mu.
func (q *Queue) requeueLocked(held []*inflight) (requeued, dead []item) {
	var front []item
	for _, inf := range held {
		it := inf.item
		it.redeliveries++
		it.msg.Redelivered = true
		if q.maxRedeliveries > 0 && it.redeliveries > q.maxRedeliveries {
			dead = append(dead, it)
			continue
		}
		front = append(front, it)
		requeued = append(requeued, it)
	}
	if len(front) > 0 {
		q.ready = append(front, q.ready...)
	}
	return requeued, dead
}

// runHooks invokes the requeue and dead hooks outside the queue lock.
func (q *Queue) runHooks(requeued, dead []item) {
	if q.hooks.OnRequeue != nil {
		for _, it := range requeued {
			q.hooks.OnRequeue(it.msg)
		}
	}
	if q.hooks.OnDead != nil {
		for _, it := range dead {
			q.hooks.OnDead(it.msg)
		}
	}
}

// dispatchLocked assigns ready messages to eligible consumers in round-robin
// order. A consumer is eligible while its in-flight count is below its
// prefetch limit; consumers at their limit are skipped rather than waited
// on. Caller holds q.mu.
func (q *Queue) dispatchLocked() {
	for len(q.ready) > 0 {
		c := q.nextEligibleLocked()
		if c == nil {
			return
		}
		it := q.ready[0]
		q.ready = q.ready[1:]

		q.nextTag++
		inf := &inflight{item: it, consumer: c, tag: q.nextTag}
		q.delivered[inf.tag] = inf
		c.inflightCount++
		c.assign(broker.Delivery{
			Tag:        inf.tag,
			Queue:      q.name,
			ConsumerID: c.id,
			Message:    it.msg,
		})
	}
}

// nextEligibleLocked advances the round-robin cursor to the next consumer
// below its prefetch limit, or nil when every consumer is busy.
func (q *Queue) nextEligibleLocked() *Consumer {
	n := len(q.consumers)
	for i := 0; i < n; i++ {
		c := q.consumers[(q.cursor+i)%n]
		if c.eligibleLocked() {
			q.cursor = (q.cursor + i + 1) % n
			return c
		}
	}
	return nil
}

// Stats returns the introspection snapshot: ready and unacknowledged counts
// plus the number of attached consumers.
func (q *Queue) Stats() broker.QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return broker.QueueStats{
		Queue:     q.name,
		Durable:   q.durable,
		Ready:     len(q.ready),
		Unacked:   len(q.delivered),
		Consumers: len(q.consumers),
	}
}

// Close shuts the queue down. Consumers' delivery channels are closed and
// pending messages are abandoned in memory; durable state stays in storage
// for the next start.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	consumers := make([]*Consumer, len(q.consumers))
	copy(consumers, q.consumers)
	q.consumers = nil
	q.cursor = 0
	q.mu.Unlock()

	for _, c := range consumers {
		c.shutdown()
	}
	return nil
}
