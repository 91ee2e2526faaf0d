package httpclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// StreamClient consumes a queue over Server-Sent Events
type StreamClient struct {
	client   *Client
	delivery chan Delivery
	errors   chan error
	done     chan struct{}
	cancel   context.CancelFunc
	response *http.Response
}

// StreamConfig configures the streaming consumer
type StreamConfig struct {
	// Prefetch caps unacknowledged deliveries in flight (0 = unlimited)
	Prefetch int

	// BufferSize for the delivery channel
	BufferSize int

	// ReconnectDelay for automatic reconnection
	ReconnectDelay time.Duration

	// MaxReconnectAttempts (0 = infinite)
	MaxReconnectAttempts int
}

// SetDefaults sets reasonable default values for StreamConfig
func (sc *StreamConfig) SetDefaults() {
	if sc.BufferSize == 0 {
		sc.BufferSize = 100
	}
	if sc.ReconnectDelay == 0 {
		sc.ReconnectDelay = 2 * time.Second
	}
}

// Consume starts streaming deliveries from a queue. Disconnecting requeues
// anything unacknowledged, so reconnects resume with the same messages.
func (c *Client) Consume(ctx context.Context, queue string, config StreamConfig) (*StreamClient, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}

	config.SetDefaults()
	streamCtx, cancel := context.WithCancel(ctx)

	sc := &StreamClient{
		client:   c,
		delivery: make(chan Delivery, config.BufferSize),
		errors:   make(chan error, 10),
		done:     make(chan struct{}),
		cancel:   cancel,
	}

	go sc.startStreaming(streamCtx, queue, config)
	return sc, nil
}

// Deliveries returns the channel for receiving deliveries
func (sc *StreamClient) Deliveries() <-chan Delivery {
	return sc.delivery
}

// Errors returns the channel for receiving errors
func (sc *StreamClient) Errors() <-chan error {
	return sc.errors
}

// Done returns a channel that's closed when streaming ends
func (sc *StreamClient) Done() <-chan struct{} {
	return sc.done
}

// Close stops the streaming consumer and cleans up resources
func (sc *StreamClient) Close() error {
	sc.cancel()
	if sc.response != nil {
		sc.response.Body.Close()
	}
	<-sc.done
	return nil
}

// startStreaming handles the SSE streaming loop with reconnection
func (sc *StreamClient) startStreaming(ctx context.Context, queue string, config StreamConfig) {
	defer close(sc.done)
	defer close(sc.delivery)
	defer close(sc.errors)

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := sc.connectAndStream(ctx, queue, config)
		if err != nil {
			select {
			case sc.errors <- fmt.Errorf("streaming error: %w", err):
			case <-ctx.Done():
				return
			default:
			}
		}

		if config.MaxReconnectAttempts > 0 && attempts >= config.MaxReconnectAttempts {
			select {
			case sc.errors <- fmt.Errorf("max reconnect attempts (%d) exceeded", config.MaxReconnectAttempts):
			case <-ctx.Done():
			}
			return
		}
		attempts++

		select {
		case <-time.After(config.ReconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}

// connectAndStream establishes the SSE connection and processes deliveries
func (sc *StreamClient) connectAndStream(ctx context.Context, queue string, config StreamConfig) error {
	streamURL := sc.client.baseURL.ResolveReference(&url.URL{
		Path: fmt.Sprintf("/api/v1/queues/%s/consume", url.PathEscape(queue)),
	})
	if config.Prefetch > 0 {
		values := streamURL.Query()
		values.Set("prefetch", fmt.Sprintf("%d", config.Prefetch))
		streamURL.RawQuery = values.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", streamURL.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create streaming request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Authorization", "Bearer "+sc.client.token)

	// Bypass the request timeout: consume streams are long-lived.
	streamHTTP := &http.Client{}
	resp, err := streamHTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to stream: %w", err)
	}

	sc.response = resp
	defer func() {
		resp.Body.Close()
		sc.response = nil
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("streaming failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return sc.processSSEStream(ctx, resp.Body)
}

// processSSEStream reads and parses server-sent deliveries
func (sc *StreamClient) processSSEStream(ctx context.Context, reader io.Reader) error {
	scanner := bufio.NewScanner(reader)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			// Keepalive comments and blank separators are skipped.
			continue
		}

		var d Delivery
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &d); err != nil {
			select {
			case sc.errors <- fmt.Errorf("failed to parse delivery: %w", err):
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			continue
		}

		select {
		case sc.delivery <- d:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading SSE stream: %w", err)
	}
	return nil
}
