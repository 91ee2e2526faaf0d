// Package broker implements the finch broker node: the exchange table, the
// per-queue work distributors and durable storage, behind the pkg/broker
// interface.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/finchmq/finch/internal/exchange"
	"github.com/finchmq/finch/internal/queue"
	"github.com/finchmq/finch/internal/storage"
	"github.com/finchmq/finch/internal/telemetry"
	brokerpkg "github.com/finchmq/finch/pkg/broker"
	"github.com/finchmq/finch/pkg/routing"
)

// Options configures a broker node.
type Options struct {
	// StoragePath is the SQLite database file for durable state. Empty
	// disables persistence entirely; durable declarations then behave like
	// transient ones.
	StoragePath string

	// MaxRedeliveries caps redeliveries per message on every queue.
	// Zero means unlimited, the default.
	MaxRedeliveries int

	Logger *slog.Logger
}

// Node is the broker implementation. It orchestrates the exchange table,
// the queues and storage, and owns their lifecycle.
type Node struct {
	mu     sync.RWMutex
	opts   Options
	logger *slog.Logger

	exchanges *exchange.Table
	queues    map[string]*queue.Queue
	store     *storage.Store // nil when persistence is disabled
	closed    bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

// Open creates a broker node and, when a storage path is configured,
// recovers exchanges, queues, bindings and pending messages from it.
func Open(opts Options) (*Node, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	n := &Node{
		opts:      opts,
		logger:    logger,
		exchanges: exchange.NewTable(),
		queues:    make(map[string]*queue.Queue),
	}

	if opts.StoragePath != "" {
		store, err := storage.Open(opts.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		n.store = store
		if err := n.restoreState(); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to restore state: %w", err)
		}
	}

	return n, nil
}

// restoreState reloads durable topology and pending messages after a
// restart, reproducing the ready set of every durable queue in order.
func (n *Node) restoreState() error {
	exchanges, err := n.store.LoadExchanges()
	if err != nil {
		return err
	}
	for name, kindText := range exchanges {
		kind, err := brokerpkg.ParseExchangeKind(kindText)
		if err != nil {
			return fmt.Errorf("stored exchange %q: %w", name, err)
		}
		if _, err := n.exchanges.Declare(name, kind); err != nil {
			return err
		}
	}

	queues, err := n.store.LoadQueues()
	if err != nil {
		return err
	}
	for _, rec := range queues {
		q := n.newQueue(rec.Name, rec.Durable)
		n.queues[rec.Name] = q

		messages, err := n.store.LoadMessages(rec.Name)
		if err != nil {
			return err
		}
		for _, msg := range messages {
			if err := q.Enqueue(msg); err != nil {
				return err
			}
		}
		if len(messages) > 0 {
			n.logger.Info("recovered pending messages", "queue", rec.Name, "count", len(messages))
		}
	}

	bindings, err := n.store.LoadBindings()
	if err != nil {
		return err
	}
	for _, b := range bindings {
		if _, err := n.exchanges.Bind(b.Queue, b.Exchange, b.Pattern); err != nil {
			return err
		}
	}

	return nil
}

// newQueue builds a queue whose hooks keep storage and counters in step
// with queue state transitions.
func (n *Node) newQueue(name string, durable bool) *queue.Queue {
	return queue.New(queue.Config{
		Name:            name,
		Durable:         durable,
		MaxRedeliveries: n.opts.MaxRedeliveries,
		Logger:          n.logger,
		Hooks: queue.Hooks{
			OnAck: func(msg brokerpkg.Message) {
				telemetry.MessagesAcked.Inc()
				n.forgetStored(name, durable, msg)
			},
			OnRequeue: func(msg brokerpkg.Message) {
				telemetry.MessagesRedelivered.Inc()
				if durable && msg.Persistent && n.store != nil {
					if err := n.store.MarkRedelivered(name, msg.ID); err != nil {
						n.logger.Error("failed to mark message redelivered",
							"queue", name, "message_id", msg.ID, "error", err)
					}
				}
			},
			OnDead: func(msg brokerpkg.Message) {
				telemetry.MessagesDead.Inc()
				n.forgetStored(name, durable, msg)
			},
		},
	})
}

// forgetStored removes a persistent message from storage once it can never
// be delivered again (acked or dead).
func (n *Node) forgetStored(queueName string, durable bool, msg brokerpkg.Message) {
	if !durable || !msg.Persistent || n.store == nil {
		return
	}
	if err := n.store.DeleteMessage(queueName, msg.ID); err != nil {
		n.logger.Error("failed to delete stored message",
			"queue", queueName, "message_id", msg.ID, "error", err)
	}
}

// DeclareExchange creates an exchange, persisting durable topology.
func (n *Node) DeclareExchange(ctx context.Context, name string, kind brokerpkg.ExchangeKind) error {
	if err := n.guard(ctx); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("exchange name cannot be empty")
	}

	created, err := n.exchanges.Declare(name, kind)
	if err != nil {
		return err
	}
	if created && n.store != nil {
		if err := n.store.SaveExchange(name, kind.String()); err != nil {
			return fmt.Errorf("failed to persist exchange %q: %w", name, err)
		}
	}
	if created {
		n.logger.Info("exchange declared", "exchange", name, "kind", kind.String())
	}
	return nil
}

// DeclareQueue creates a queue. Redeclaring with a different durability
// flag returns ErrDurabilityMismatch; the caller must pick a new name or
// accept the existing parameters.
func (n *Node) DeclareQueue(ctx context.Context, name string, durable bool) error {
	if err := n.guard(ctx); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("queue name cannot be empty")
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return brokerpkg.ErrClosed
	}

	if existing, ok := n.queues[name]; ok {
		if existing.Durable() != durable {
			return fmt.Errorf("%w: %q", brokerpkg.ErrDurabilityMismatch, name)
		}
		return nil
	}

	n.queues[name] = n.newQueue(name, durable)
	if durable && n.store != nil {
		if err := n.store.SaveQueue(name, durable); err != nil {
			return fmt.Errorf("failed to persist queue %q: %w", name, err)
		}
	}
	n.logger.Info("queue declared", "queue", name, "durable", durable)
	return nil
}

// DeleteQueue removes a queue, its bindings and its pending messages.
func (n *Node) DeleteQueue(ctx context.Context, name string) error {
	if err := n.guard(ctx); err != nil {
		return err
	}

	n.mu.Lock()
	q, ok := n.queues[name]
	if ok {
		delete(n.queues, name)
	}
	n.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %q", brokerpkg.ErrNoSuchQueue, name)
	}

	n.exchanges.DropQueue(name)
	q.Close()
	if n.store != nil {
		if err := n.store.DeleteQueue(name); err != nil {
			return fmt.Errorf("failed to delete stored queue %q: %w", name, err)
		}
	}
	n.logger.Info("queue deleted", "queue", name)
	return nil
}

// Bind subscribes a queue to an exchange under a binding pattern.
func (n *Node) Bind(ctx context.Context, queueName, exchangeName, pattern string) error {
	if err := n.guard(ctx); err != nil {
		return err
	}

	q, err := n.lookupQueue(queueName)
	if err != nil {
		return err
	}

	created, err := n.exchanges.Bind(queueName, exchangeName, pattern)
	if err != nil {
		return err
	}
	if created && q.Durable() && n.store != nil {
		if err := n.store.SaveBinding(queueName, exchangeName, pattern); err != nil {
			return fmt.Errorf("failed to persist binding: %w", err)
		}
	}
	return nil
}

// Unbind removes a binding created by Bind.
func (n *Node) Unbind(ctx context.Context, queueName, exchangeName, pattern string) error {
	if err := n.guard(ctx); err != nil {
		return err
	}

	if err := n.exchanges.Unbind(queueName, exchangeName, pattern); err != nil {
		return err
	}
	if n.store != nil {
		if err := n.store.DeleteBinding(queueName, exchangeName, pattern); err != nil {
			return fmt.Errorf("failed to delete stored binding: %w", err)
		}
	}
	return nil
}

// Publish routes a message to every queue matching its routing key. An
// unroutable message is dropped and counted, never an error. For persistent
// messages to durable queues the storage write happens before enqueue, so a
// storage failure fails the publish synchronously.
func (n *Node) Publish(ctx context.Context, exchangeName, routingKey string, body []byte, persistent bool) error {
	if err := n.guard(ctx); err != nil {
		return err
	}

	key, err := routing.ParseKey(routingKey)
	if err != nil {
		return fmt.Errorf("invalid routing key %q: %w", routingKey, err)
	}

	destinations, err := n.exchanges.Route(exchangeName, key)
	if err != nil {
		return err
	}

	n.published.Add(1)
	telemetry.MessagesPublished.Inc()

	if len(destinations) == 0 {
		n.dropped.Add(1)
		telemetry.MessagesDropped.Inc()
		n.logger.Debug("message dropped, no matching binding",
			"exchange", exchangeName, "routing_key", routingKey)
		return nil
	}

	bodyCopy := make([]byte, len(body))
	copy(bodyCopy, body)
	msg := brokerpkg.Message{
		ID:         uuid.NewString(),
		Body:       bodyCopy,
		RoutingKey: key.String(),
		Persistent: persistent,
	}

	for _, dest := range destinations {
		q, err := n.lookupQueue(dest)
		if err != nil {
			// Binding raced with queue deletion; skip the stale target.
			continue
		}
		if persistent && q.Durable() && n.store != nil {
			if err := n.store.SaveMessage(dest, msg); err != nil {
				return err
			}
		}
		if err := q.Enqueue(msg); err != nil {
			return fmt.Errorf("failed to enqueue to %q: %w", dest, err)
		}
	}
	return nil
}

// Consume registers a consumer on a queue with the given prefetch limit.
func (n *Node) Consume(ctx context.Context, queueName string, prefetch int) (brokerpkg.Consumer, error) {
	if err := n.guard(ctx); err != nil {
		return nil, err
	}

	q, err := n.lookupQueue(queueName)
	if err != nil {
		return nil, err
	}
	return q.AddConsumer(uuid.NewString(), prefetch)
}

// Ack acknowledges a delivery on a queue.
func (n *Node) Ack(ctx context.Context, queueName string, tag uint64) error {
	if err := n.guard(ctx); err != nil {
		return err
	}

	q, err := n.lookupQueue(queueName)
	if err != nil {
		return err
	}
	return q.Ack(tag)
}

// Nack rejects a delivery on a queue.
func (n *Node) Nack(ctx context.Context, queueName string, tag uint64, requeue bool) error {
	if err := n.guard(ctx); err != nil {
		return err
	}

	q, err := n.lookupQueue(queueName)
	if err != nil {
		return err
	}
	return q.Nack(tag, requeue)
}

// Stats returns the ready and unacknowledged counts for a queue.
func (n *Node) Stats(ctx context.Context, queueName string) (brokerpkg.QueueStats, error) {
	if err := n.guard(ctx); err != nil {
		return brokerpkg.QueueStats{}, err
	}

	q, err := n.lookupQueue(queueName)
	if err != nil {
		return brokerpkg.QueueStats{}, err
	}
	return q.Stats(), nil
}

// Overview is the aggregate snapshot served by the admin API.
type Overview struct {
	Exchanges int
	Queues    []brokerpkg.QueueStats
	Published uint64
	Dropped   uint64
}

// GetOverview returns broker-wide statistics.
func (n *Node) GetOverview(ctx context.Context) (Overview, error) {
	if err := n.guard(ctx); err != nil {
		return Overview{}, err
	}

	n.mu.RLock()
	queues := make([]*queue.Queue, 0, len(n.queues))
	for _, q := range n.queues {
		queues = append(queues, q)
	}
	n.mu.RUnlock()

	ov := Overview{
		Exchanges: n.exchanges.ExchangeCount(),
		Published: n.published.Load(),
		Dropped:   n.dropped.Load(),
	}
	for _, q := range queues {
		ov.Queues = append(ov.Queues, q.Stats())
	}
	return ov, nil
}

// Close shuts down every queue and the storage layer. Durable state stays
// on disk for the next start.
func (n *Node) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	queues := make([]*queue.Queue, 0, len(n.queues))
	for _, q := range n.queues {
		queues = append(queues, q)
	}
	n.mu.Unlock()

	for _, q := range queues {
		q.Close()
	}
	if n.store != nil {
		return n.store.Close()
	}
	return nil
}

// lookupQueue resolves a queue name under the read lock.
func (n *Node) lookupQueue(name string) (*queue.Queue, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	q, ok := n.queues[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", brokerpkg.ErrNoSuchQueue, name)
	}
	return q, nil
}

// guard rejects operations on a closed node or cancelled context.
func (n *Node) guard(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return brokerpkg.ErrClosed
	}
	return nil
}

// Verify that Node implements the broker.Broker interface at compile time
var _ brokerpkg.Broker = (*Node)(nil)
