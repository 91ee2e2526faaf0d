// Package broker defines the public interface and value types for the finch
// message broker.
//
// The broker is built from two cooperating parts:
//   - an exchange table that resolves a routing key to the set of destination
//     queues through bindings (direct, fanout and topic exchanges)
//   - a per-queue work distributor that hands messages to competing consumers
//     under prefetch limits and tracks acknowledgments
//
// The interfaces use Go idioms:
//   - context.Context on operations that may touch storage
//   - Explicit error returns with sentinel errors for protocol failures
//   - io.Closer for resource cleanup
//
// Example usage:
//
//	b, _ := broker.Open(...)
//	b.DeclareExchange(ctx, "logs", broker.Topic)
//	b.DeclareQueue(ctx, "audit", true)
//	b.Bind(ctx, "audit", "logs", "lazy.#")
//
//	c, _ := b.Consume(ctx, "audit", 1)
//	for d := range c.Deliveries() {
//		process(d.Message.Body)
//		b.Ack(ctx, "audit", d.Tag)
//	}
//
// Delivery guarantees are at-least-once: an unacknowledged message returns to
// the front of its queue when the holding consumer disconnects or nacks it.
package broker
