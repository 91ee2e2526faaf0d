package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finchmq/finch/pkg/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClientIntegration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(httpclient.AuthResponse{
				Token:    "test-token-123",
				ClientID: "test-client",
			})

		case "/api/v1/health":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(httpclient.HealthResponse{
				Healthy:   true,
				Queues:    2,
				Exchanges: 1,
				Message:   "broker is operational",
			})

		case "/api/v1/publish":
			if r.Method == "POST" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusAccepted)
				json.NewEncoder(w).Encode(httpclient.PublishResponse{Accepted: true})
			}

		case "/api/v1/queues/work/stats":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(httpclient.QueueStats{
				Queue: "work",
				Ready: 4,
			})

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	cfg := httpclient.Config{
		ServerURL: server.URL,
		ClientID:  "test-client",
	}
	c, err := httpclient.NewClient(cfg)
	require.NoError(t, err)

	ctx := context.Background()

	require.NoError(t, c.Authenticate(ctx))
	assert.Equal(t, "test-token-123", c.GetToken())

	health, err := c.GetHealth(ctx)
	require.NoError(t, err)
	assert.True(t, health.Healthy)

	resp, err := c.Publish(ctx, "logs", "kern.crit", map[string]string{"msg": "hi"}, false)
	require.NoError(t, err)
	assert.True(t, resp.Accepted)

	stats, err := c.Stats(ctx, "work")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Ready)
}

func TestInitializeClient(t *testing.T) {
	t.Run("requires_client_id_without_no_auth", func(t *testing.T) {
		serverURL = "http://localhost:8081"
		clientID = ""
		token = ""
		noAuth = false

		cmd := newHealthCommand()
		parent := newAuthCommand()
		parent.AddCommand(cmd)

		err := initializeClient(cmd, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "client-id is required")
	})

	t.Run("no_auth_mode_uses_dev_client", func(t *testing.T) {
		serverURL = "http://localhost:8081"
		clientID = ""
		token = ""
		noAuth = true
		defer func() { noAuth = false }()

		cmd := newHealthCommand()
		parent := newAuthCommand()
		parent.AddCommand(cmd)

		err := initializeClient(cmd, nil)
		require.NoError(t, err)
		require.NotNil(t, client)
		assert.Equal(t, "no-auth-mode", client.GetToken())
	})

	t.Run("token_flag_is_applied", func(t *testing.T) {
		serverURL = "http://localhost:8081"
		clientID = "worker-1"
		token = "preissued-token"
		noAuth = false
		defer func() { token = "" }()

		cmd := newHealthCommand()
		parent := newAuthCommand()
		parent.AddCommand(cmd)

		err := initializeClient(cmd, nil)
		require.NoError(t, err)
		assert.Equal(t, "preissued-token", client.GetToken())
	})
}

func TestRequireAuthentication(t *testing.T) {
	serverURL = "http://localhost:8081"
	clientID = "worker-1"
	token = ""
	noAuth = false

	cmd := newHealthCommand()
	parent := newAuthCommand()
	parent.AddCommand(cmd)
	require.NoError(t, initializeClient(cmd, nil))

	err := requireAuthentication()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not authenticated")

	client.SetToken("some-token")
	assert.NoError(t, requireAuthentication())
}
