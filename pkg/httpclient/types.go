package httpclient

import (
	"encoding/json"
	"time"
)

// Config holds client configuration
type Config struct {
	// ServerURL is the base URL of the finch HTTP API (e.g., "http://localhost:8081")
	ServerURL string

	// ClientID is the identifier for this client
	ClientID string

	// Timeout for HTTP requests. Streaming requests ignore it.
	Timeout time.Duration
}

// SetDefaults sets reasonable default values for the config
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// AuthResponse represents the response from authentication
type AuthResponse struct {
	Token    string `json:"token"`
	ClientID string `json:"clientId"`
}

// DeclareExchangeRequest declares an exchange
type DeclareExchangeRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
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

// PublishRequest represents a message publishing request
type PublishRequest struct {
	Exchange   string      `json:"exchange"`
	RoutingKey string      `json:"routingKey"`
	Payload    interface{} `json:"payload"`
	Persistent bool        `json:"persistent"`
}

// PublishResponse represents a message publishing response
type PublishResponse struct {
	Accepted bool `json:"accepted"`
}

// AckRequest acknowledges or rejects a delivery
type AckRequest struct {
	DeliveryTag uint64 `json:"deliveryTag"`
	Requeue     bool   `json:"requeue,omitempty"`
}

// QueueStats is the per-queue introspection snapshot
type QueueStats struct {
	Queue     string `json:"queue"`
	Durable   bool   `json:"durable"`
	Ready     int    `json:"ready"`
	Unacked   int    `json:"unacked"`
	Consumers int    `json:"consumers"`
}

// AdminOverview represents broker-wide statistics
type AdminOverview struct {
	Exchanges int          `json:"exchanges"`
	Queues    []QueueStats `json:"queues"`
	Published uint64       `json:"published"`
	Dropped   uint64       `json:"dropped"`
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

// Delivery represents one server-sent delivery on a consume stream
type Delivery struct {
	DeliveryTag uint64          `json:"deliveryTag"`
	Queue       string          `json:"queue"`
	ConsumerID  string          `json:"consumerId"`
	RoutingKey  string          `json:"routingKey"`
	Redelivered bool            `json:"redelivered"`
	Payload     json.RawMessage `json:"payload"`
}
