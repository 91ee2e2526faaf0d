package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/finchmq/finch/internal/broker"
)

// Server represents the HTTP API server
type Server struct {
	node       *broker.Node
	jwtAuth    *JWTAuth
	handlers   *Handlers
	middleware *Middleware
	server     *http.Server
	logger     *slog.Logger
}

// Config holds server configuration
type Config struct {
	Addr      string
	SecretKey string
	NoAuth    bool
	Logger    *slog.Logger
}

// NewServer creates a new HTTP API server
func NewServer(node *broker.Node, config Config) *Server {
	secretKey := config.SecretKey
	if secretKey == "" {
		secretKey = "finch-dev-secret-key-change-in-production"
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	jwtAuth := NewJWTAuth(secretKey)
	handlers := NewHandlers(node, jwtAuth)
	middleware := NewMiddleware(jwtAuth, logger, config.NoAuth)

	server := &Server{
		node:       node,
		jwtAuth:    jwtAuth,
		handlers:   handlers,
		middleware: middleware,
		logger:     logger,
	}

	mux := server.setupRoutes()
	server.server = &http.Server{
		Addr:    config.Addr,
		Handler: mux,
		// No WriteTimeout: consume streams stay open indefinitely.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}
	return server
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the configured route handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Apply global middleware
	withMiddleware := func(handler http.HandlerFunc) http.Handler {
		return s.middleware.Recovery(
			s.middleware.Logging(
				s.middleware.CORS(handler)))
	}

	// Authentication endpoints (no auth required)
	mux.Handle("/api/v1/auth/login", withMiddleware(s.handlers.Login))

	// Topology endpoints (auth required)
	mux.Handle("/api/v1/exchanges", withMiddleware(s.middleware.AuthRequired(s.handleExchanges)))
	mux.Handle("/api/v1/queues", withMiddleware(s.middleware.AuthRequired(s.handleQueues)))
	mux.Handle("/api/v1/queues/", withMiddleware(s.middleware.AuthRequired(s.handleQueueByName)))
	mux.Handle("/api/v1/bindings", withMiddleware(s.middleware.AuthRequired(s.handleBindings)))

	// Message endpoints (auth required)
	mux.Handle("/api/v1/publish", withMiddleware(s.middleware.AuthRequired(s.handlePublish)))

	// Admin endpoints (admin auth required)
	mux.Handle("/api/v1/admin/overview", withMiddleware(s.middleware.AdminRequired(s.handlers.AdminOverview)))

	// Health endpoint (no auth required)
	mux.Handle("/api/v1/health", withMiddleware(s.handlers.Health))

	// Prometheus metrics (no auth required)
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API info
	mux.Handle("/", withMiddleware(s.handleRoot))

	return mux
}

// Route handlers that dispatch based on HTTP method

func (s *Server) handleExchanges(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut, http.MethodPost:
		s.handlers.DeclareExchange(w, r)
	default:
		s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleQueues(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut, http.MethodPost:
		s.handlers.DeclareQueue(w, r)
	default:
		s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleQueueByName handles /api/v1/queues/{queue} and its sub-resources
// consume, ack, nack and stats.
func (s *Server) handleQueueByName(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/queues/")
	if path == "" {
		s.writeError(w, "Queue name required", http.StatusBadRequest)
		return
	}

	queue, action, _ := strings.Cut(path, "/")
	if queue == "" {
		s.writeError(w, "Queue name required", http.StatusBadRequest)
		return
	}

	// Make the queue name available to the handlers
	ctx := context.WithValue(r.Context(), QueueKey, queue)
	r = r.WithContext(ctx)

	switch action {
	case "":
		switch r.Method {
		case http.MethodDelete:
			s.handlers.DeleteQueue(w, r)
		default:
			s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "consume":
		if r.Method != http.MethodGet {
			s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handlers.Consume(w, r)
	case "ack":
		if r.Method != http.MethodPost {
			s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handlers.Ack(w, r)
	case "nack":
		if r.Method != http.MethodPost {
			s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handlers.Nack(w, r)
	case "stats":
		if r.Method != http.MethodGet {
			s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handlers.Stats(w, r)
	default:
		s.writeError(w, "Not found", http.StatusNotFound)
	}
}

func (s *Server) handleBindings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlers.CreateBinding(w, r)
	case http.MethodDelete:
		s.handlers.DeleteBinding(w, r)
	default:
		s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlers.Publish(w, r)
	default:
		s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRoot provides API information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, "Not found", http.StatusNotFound)
		return
	}

	info := map[string]interface{}{
		"service":     "Finch HTTP API",
		"version":     "1.0.0",
		"description": "RESTful HTTP API for the finch message broker",
		"endpoints": map[string]interface{}{
			"auth": map[string]string{
				"login": "POST /api/v1/auth/login",
			},
			"topology": map[string]string{
				"declareExchange": "PUT /api/v1/exchanges",
				"declareQueue":    "PUT /api/v1/queues",
				"deleteQueue":     "DELETE /api/v1/queues/{queue}",
				"bind":            "POST /api/v1/bindings",
				"unbind":          "DELETE /api/v1/bindings",
			},
			"messaging": map[string]string{
				"publish": "POST /api/v1/publish",
				"consume": "GET /api/v1/queues/{queue}/consume?prefetch={n}",
				"ack":     "POST /api/v1/queues/{queue}/ack",
				"nack":    "POST /api/v1/queues/{queue}/nack",
				"stats":   "GET /api/v1/queues/{queue}/stats",
			},
			"admin": map[string]string{
				"overview": "GET /api/v1/admin/overview",
			},
			"health":  "GET /api/v1/health",
			"metrics": "GET /metrics",
		},
		"authentication": "Bearer JWT token required for most endpoints",
	}

	s.writeJSON(w, info, http.StatusOK)
}

// Helper methods

// writeError writes an error response as JSON
func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	errorResp := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}
	s.writeJSON(w, errorResp, statusCode)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
