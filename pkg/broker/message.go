package broker

import "fmt"

// ExchangeKind selects the routing behaviour of an exchange.
type ExchangeKind int

const (
	// Direct routes to queues whose binding pattern equals the routing key exactly
	Direct ExchangeKind = iota

	// Fanout routes to every bound queue, ignoring the routing key
	Fanout

	// Topic routes by wildcard pattern matching over dot-delimited segments
	Topic
)

// String returns the textual exchange kind as used in declarations.
func (k ExchangeKind) String() string {
	switch k {
	case Direct:
		return "direct"
	case Fanout:
		return "fanout"
	case Topic:
		return "topic"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ParseExchangeKind parses the textual exchange kind.
func ParseExchangeKind(s string) (ExchangeKind, error) {
	switch s {
	case "direct":
		return Direct, nil
	case "fanout":
		return Fanout, nil
	case "topic":
		return Topic, nil
	default:
		return 0, fmt.Errorf("unsupported exchange kind: %q", s)
	}
}

// Message is one published message as stored in a queue.
type Message struct {
	// ID uniquely identifies the message across queues and restarts
	ID string

	// Body is the raw message payload
	Body []byte

	// RoutingKey is the dot-delimited key the message was published with
	RoutingKey string

	// Persistent marks the message for durable storage on durable queues
	Persistent bool

	// Redelivered is set when the message was returned to the queue after a
	// failed delivery (nack or consumer disconnect)
	Redelivered bool
}

// Delivery is one in-flight handoff of a message to a consumer.
type Delivery struct {
	// Tag identifies this delivery for Ack and Nack. Tags increase
	// monotonically per queue and are never reused.
	Tag uint64

	// Queue is the queue the message was delivered from
	Queue string

	// ConsumerID is the consumer holding the delivery
	ConsumerID string

	// Message is the delivered message
	Message Message
}

// QueueStats is the introspection snapshot for one queue.
type QueueStats struct {
	Queue     string
	Durable   bool
	Ready     int // messages waiting for dispatch
	Unacked   int // messages delivered but not yet acknowledged
	Consumers int
}
