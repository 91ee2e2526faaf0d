package httpapi

import "encoding/json"

// Request/Response types for the HTTP API

// AuthRequest represents a login request
type AuthRequest struct {
	ClientID string `json:"clientId"`
}

// AuthResponse represents a login response
type AuthResponse struct {
	Token    string `json:"token"`
	ClientID string `json:"clientId"`
}

// DeclareExchangeRequest declares an exchange
type DeclareExchangeRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind"` // direct | fanout | topic
}

// DeclareQueueRequest declares a queue
type DeclareQueueRequest struct {
	Name    string `json:"name"`
	Durable bool   `json:"durable"`
}

// BindingRequest creates or removes a binding
type BindingRequest struct {
	Queue    string `json:"queue"`
	Exchange string `json:"exchange"`
	Pattern  string `json:"pattern"`
}

// PublishRequest publishes a message through an exchange
type PublishRequest struct {
	Exchange   string      `json:"exchange"`
	RoutingKey string      `json:"routingKey"`
	Payload    interface{} `json:"payload"`
	Persistent bool        `json:"persistent"`
}

// PublishResponse acknowledges an accepted publish
type PublishResponse struct {
	Accepted bool `json:"accepted"`
}

// AckRequest acknowledges or rejects a delivery
type AckRequest struct {
	DeliveryTag uint64 `json:"deliveryTag"`
	Requeue     bool   `json:"requeue,omitempty"` // nack only
}

// QueueStatsResponse is the per-queue introspection snapshot
type QueueStatsResponse struct {
	Queue     string `json:"queue"`
	Durable   bool   `json:"durable"`
	Ready     int    `json:"ready"`
	Unacked   int    `json:"unacked"`
	Consumers int    `json:"consumers"`
}

// DeliveryMessage is one server-sent delivery on a consume stream
type DeliveryMessage struct {
	DeliveryTag uint64          `json:"deliveryTag"`
	Queue       string          `json:"queue"`
	ConsumerID  string          `json:"consumerId"`
	RoutingKey  string          `json:"routingKey"`
	Redelivered bool            `json:"redelivered"`
	Payload     json.RawMessage `json:"payload"`
}

// AdminOverviewResponse is the broker-wide statistics snapshot
type AdminOverviewResponse struct {
	Exchanges int                  `json:"exchanges"`
	Queues    []QueueStatsResponse `json:"queues"`
	Published uint64               `json:"published"`
	Dropped   uint64               `json:"dropped"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Healthy   bool   `json:"healthy"`
	Queues    int    `json:"queues"`
	Exchanges int    `json:"exchanges"`
	Message   string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
