package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Broker-wide message counters, served at /metrics by finchd.
var (
	// MessagesPublished counts accepted publishes, including unroutable ones.
	MessagesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finch_messages_published_total",
		Help: "Total messages accepted by publish",
	})

	// MessagesDropped counts messages that matched no binding. Dropping is
	// not an error; the counter is the only trace.
	MessagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finch_messages_dropped_total",
		Help: "Total messages dropped because no binding matched",
	})

	// MessagesAcked counts acknowledged deliveries.
	MessagesAcked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finch_messages_acked_total",
		Help: "Total messages acknowledged and removed",
	})

	// MessagesRedelivered counts messages requeued after a nack or consumer
	// disconnect.
	MessagesRedelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finch_messages_redelivered_total",
		Help: "Total messages returned to a queue for redelivery",
	})

	// MessagesDead counts messages discarded without acknowledgment: nacked
	// without requeue or past a queue's redelivery cap.
	MessagesDead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finch_messages_dead_total",
		Help: "Total messages discarded without acknowledgment",
	})
)
