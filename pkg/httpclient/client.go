// Package httpclient provides a Go client for the finch HTTP API, covering
// authentication, topology management, publishing and SSE consumption.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Client provides HTTP client for the finch API
type Client struct {
	config     Config
	httpClient *http.Client
	token      string
	baseURL    *url.URL
}

// NewClient creates a new finch HTTP client
func NewClient(config Config) (*Client, error) {
	config.SetDefaults()

	if config.ServerURL == "" {
		return nil, fmt.Errorf("ServerURL is required")
	}
	if config.ClientID == "" {
		return nil, fmt.Errorf("ClientID is required")
	}

	baseURL, err := url.Parse(config.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ServerURL: %w", err)
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		baseURL:    baseURL,
	}, nil
}

// Authenticate authenticates with the finch server and stores the token
func (c *Client) Authenticate(ctx context.Context) error {
	authReq := map[string]string{
		"clientId": c.config.ClientID,
	}

	var authResp AuthResponse
	err := c.doRequest(ctx, "POST", "/api/v1/auth/login", authReq, &authResp, false)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	c.token = authResp.Token
	return nil
}

// DeclareExchange creates an exchange of the given kind (direct, fanout or topic)
func (c *Client) DeclareExchange(ctx context.Context, name, kind string) error {
	if err := c.requireAuth(); err != nil {
		return err
	}

	req := DeclareExchangeRequest{Name: name, Kind: kind}
	if err := c.doRequest(ctx, "PUT", "/api/v1/exchanges", req, nil, true); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	return nil
}

// DeclareQueue creates a queue, optionally durable
func (c *Client) DeclareQueue(ctx context.Context, name string, durable bool) error {
	if err := c.requireAuth(); err != nil {
		return err
	}

	req := DeclareQueueRequest{Name: name, Durable: durable}
	if err := c.doRequest(ctx, "PUT", "/api/v1/queues", req, nil, true); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	return nil
}

// DeleteQueue removes a queue, its bindings and its pending messages
func (c *Client) DeleteQueue(ctx context.Context, name string) error {
	if err := c.requireAuth(); err != nil {
		return err
	}

	path := fmt.Sprintf("/api/v1/queues/%s", url.PathEscape(name))
	if err := c.doRequest(ctx, "DELETE", path, nil, nil, true); err != nil {
		return fmt.Errorf("failed to delete queue: %w", err)
	}
	return nil
}

// Bind subscribes a queue to an exchange under a binding pattern
func (c *Client) Bind(ctx context.Context, queue, exchange, pattern string) error {
	if err := c.requireAuth(); err != nil {
		return err
	}

	req := BindingRequest{Queue: queue, Exchange: exchange, Pattern: pattern}
	if err := c.doRequest(ctx, "POST", "/api/v1/bindings", req, nil, true); err != nil {
		return fmt.Errorf("failed to create binding: %w", err)
	}
	return nil
}

// Unbind removes a binding created by Bind
func (c *Client) Unbind(ctx context.Context, queue, exchange, pattern string) error {
	if err := c.requireAuth(); err != nil {
		return err
	}

	req := BindingRequest{Queue: queue, Exchange: exchange, Pattern: pattern}
	if err := c.doRequest(ctx, "DELETE", "/api/v1/bindings", req, nil, true); err != nil {
		return fmt.Errorf("failed to remove binding: %w", err)
	}
	return nil
}

// Publish routes a message through an exchange
func (c *Client) Publish(ctx context.Context, exchange, routingKey string, payload interface{}, persistent bool) (*PublishResponse, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}

	req := PublishRequest{
		Exchange:   exchange,
		RoutingKey: routingKey,
		Payload:    payload,
		Persistent: persistent,
	}

	var resp PublishResponse
	if err := c.doRequest(ctx, "POST", "/api/v1/publish", req, &resp, true); err != nil {
		return nil, fmt.Errorf("failed to publish message: %w", err)
	}
	return &resp, nil
}

// Ack acknowledges a delivery received on a consume stream
func (c *Client) Ack(ctx context.Context, queue string, deliveryTag uint64) error {
	if err := c.requireAuth(); err != nil {
		return err
	}

	path := fmt.Sprintf("/api/v1/queues/%s/ack", url.PathEscape(queue))
	req := AckRequest{DeliveryTag: deliveryTag}
	if err := c.doRequest(ctx, "POST", path, req, nil, true); err != nil {
		return fmt.Errorf("failed to ack delivery: %w", err)
	}
	return nil
}

// Nack rejects a delivery, optionally requeueing it at the front of the queue
func (c *Client) Nack(ctx context.Context, queue string, deliveryTag uint64, requeue bool) error {
	if err := c.requireAuth(); err != nil {
		return err
	}

	path := fmt.Sprintf("/api/v1/queues/%s/nack", url.PathEscape(queue))
	req := AckRequest{DeliveryTag: deliveryTag, Requeue: requeue}
	if err := c.doRequest(ctx, "POST", path, req, nil, true); err != nil {
		return fmt.Errorf("failed to nack delivery: %w", err)
	}
	return nil
}

// Stats returns ready and unacknowledged message counts for a queue
func (c *Client) Stats(ctx context.Context, queue string) (*QueueStats, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/api/v1/queues/%s/stats", url.PathEscape(queue))
	var stats QueueStats
	if err := c.doRequest(ctx, "GET", path, nil, &stats, true); err != nil {
		return nil, fmt.Errorf("failed to get queue stats: %w", err)
	}
	return &stats, nil
}

// AdminOverview returns broker-wide statistics (admin only)
func (c *Client) AdminOverview(ctx context.Context) (*AdminOverview, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}

	var resp AdminOverview
	if err := c.doRequest(ctx, "GET", "/api/v1/admin/overview", nil, &resp, true); err != nil {
		return nil, fmt.Errorf("failed to get overview: %w", err)
	}
	return &resp, nil
}

// GetHealth returns the health status of the finch server
func (c *Client) GetHealth(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doRequest(ctx, "GET", "/api/v1/health", nil, &resp, false); err != nil {
		return nil, fmt.Errorf("failed to get health status: %w", err)
	}
	return &resp, nil
}

// IsAuthenticated returns whether the client has a token
func (c *Client) IsAuthenticated() bool {
	return c.token != ""
}

// GetToken returns the current authentication token
func (c *Client) GetToken() string {
	return c.token
}

// SetToken sets the authentication token (useful for testing or token reuse)
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) requireAuth() error {
	if c.token == "" {
		return fmt.Errorf("client not authenticated - call Authenticate() first")
	}
	return nil
}

// doRequest performs an HTTP request with optional authentication
func (c *Client) doRequest(ctx context.Context, method, path string, reqBody interface{}, respBody interface{}, requireAuth bool) error {
	fullURL := c.baseURL.ResolveReference(&url.URL{Path: path})

	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL.String(), bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requireAuth && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			return fmt.Errorf("API error (%d): %s", resp.StatusCode, string(bodyBytes))
		}
		return fmt.Errorf("API error (%d): %s - %s", resp.StatusCode, errResp.Error, errResp.Message)
	}

	if respBody != nil && len(bodyBytes) > 0 {
		if err := json.Unmarshal(bodyBytes, respBody); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}
