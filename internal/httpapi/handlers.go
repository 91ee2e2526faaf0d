package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/finchmq/finch/internal/broker"
	brokerpkg "github.com/finchmq/finch/pkg/broker"
	"github.com/finchmq/finch/pkg/routing"
)

// keepaliveInterval is how often an idle consume stream emits an SSE comment
// so intermediaries keep the connection open.
const keepaliveInterval = 15 * time.Second

// Handlers contains all HTTP request handlers
type Handlers struct {
	node    *broker.Node
	jwtAuth *JWTAuth
}

// NewHandlers creates a new handlers instance
func NewHandlers(node *broker.Node, jwtAuth *JWTAuth) *Handlers {
	return &Handlers{
		node:    node,
		jwtAuth: jwtAuth,
	}
}

// Auth endpoints

// Login handles POST /api/v1/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := h.validateJSON(r); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ClientID == "" {
		h.writeError(w, "clientId is required", http.StatusBadRequest)
		return
	}

	// Simple clientId-based authentication; "admin" gets admin claims.
	// Production deployments should validate credentials against a store.
	isAdmin := req.ClientID == "admin"

	token, err := h.jwtAuth.GenerateToken(req.ClientID, isAdmin)
	if err != nil {
		h.writeError(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, AuthResponse{Token: token, ClientID: req.ClientID}, http.StatusOK)
}

// Topology endpoints

// DeclareExchange handles PUT /api/v1/exchanges
func (h *Handlers) DeclareExchange(w http.ResponseWriter, r *http.Request) {
	var req DeclareExchangeRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	kind, err := brokerpkg.ParseExchangeKind(req.Kind)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.node.DeclareExchange(r.Context(), req.Name, kind); err != nil {
		h.writeBrokerError(w, err)
		return
	}
	h.writeJSON(w, map[string]string{"name": req.Name, "kind": req.Kind}, http.StatusCreated)
}

// DeclareQueue handles PUT /api/v1/queues
func (h *Handlers) DeclareQueue(w http.ResponseWriter, r *http.Request) {
	var req DeclareQueueRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.node.DeclareQueue(r.Context(), req.Name, req.Durable); err != nil {
		h.writeBrokerError(w, err)
		return
	}
	h.writeJSON(w, map[string]interface{}{"name": req.Name, "durable": req.Durable}, http.StatusCreated)
}

// DeleteQueue handles DELETE /api/v1/queues/{queue}
func (h *Handlers) DeleteQueue(w http.ResponseWriter, r *http.Request) {
	queue := GetQueueFromPath(r)
	if err := h.node.DeleteQueue(r.Context(), queue); err != nil {
		h.writeBrokerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateBinding handles POST /api/v1/bindings
func (h *Handlers) CreateBinding(w http.ResponseWriter, r *http.Request) {
	var req BindingRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.node.Bind(r.Context(), req.Queue, req.Exchange, req.Pattern); err != nil {
		h.writeBrokerError(w, err)
		return
	}
	h.writeJSON(w, req, http.StatusCreated)
}

// DeleteBinding handles DELETE /api/v1/bindings
func (h *Handlers) DeleteBinding(w http.ResponseWriter, r *http.Request) {
	var req BindingRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.node.Unbind(r.Context(), req.Queue, req.Exchange, req.Pattern); err != nil {
		h.writeBrokerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Message endpoints

// Publish handles POST /api/v1/publish
func (h *Handlers) Publish(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var payload []byte
	if req.Payload != nil {
		payloadBytes, err := json.Marshal(req.Payload)
		if err != nil {
			h.writeError(w, "Invalid payload format", http.StatusBadRequest)
			return
		}
		payload = payloadBytes
	}

	err := h.node.Publish(r.Context(), req.Exchange, req.RoutingKey, payload, req.Persistent)
	if err != nil {
		h.writeBrokerError(w, err)
		return
	}
	h.writeJSON(w, PublishResponse{Accepted: true}, http.StatusAccepted)
}

// Consume handles GET /api/v1/queues/{queue}/consume?prefetch=N
// It registers a consumer and streams deliveries as server-sent events
// until the client disconnects. Disconnecting requeues unacknowledged
// deliveries at the front of the queue.
func (h *Handlers) Consume(w http.ResponseWriter, r *http.Request) {
	queue := GetQueueFromPath(r)

	prefetch := 0
	if raw := r.URL.Query().Get("prefetch"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeError(w, "prefetch must be a non-negative integer", http.StatusBadRequest)
			return
		}
		prefetch = parsed
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	consumer, err := h.node.Consume(r.Context(), queue, prefetch)
	if err != nil {
		h.writeBrokerError(w, err)
		return
	}
	defer consumer.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, ": consuming queue %s as %s\n\n", queue, consumer.ID())
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case d, open := <-consumer.Deliveries():
			if !open {
				return
			}
			if err := h.writeSSEDelivery(w, d); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// Ack handles POST /api/v1/queues/{queue}/ack
func (h *Handlers) Ack(w http.ResponseWriter, r *http.Request) {
	queue := GetQueueFromPath(r)

	var req AckRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.node.Ack(r.Context(), queue, req.DeliveryTag); err != nil {
		h.writeBrokerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Nack handles POST /api/v1/queues/{queue}/nack
func (h *Handlers) Nack(w http.ResponseWriter, r *http.Request) {
	queue := GetQueueFromPath(r)

	var req AckRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.node.Nack(r.Context(), queue, req.DeliveryTag, req.Requeue); err != nil {
		h.writeBrokerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /api/v1/queues/{queue}/stats
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	queue := GetQueueFromPath(r)

	stats, err := h.node.Stats(r.Context(), queue)
	if err != nil {
		h.writeBrokerError(w, err)
		return
	}
	h.writeJSON(w, queueStatsResponse(stats), http.StatusOK)
}

// Admin endpoints

// AdminOverview handles GET /api/v1/admin/overview
func (h *Handlers) AdminOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.node.GetOverview(r.Context())
	if err != nil {
		h.writeBrokerError(w, err)
		return
	}

	resp := AdminOverviewResponse{
		Exchanges: ov.Exchanges,
		Published: ov.Published,
		Dropped:   ov.Dropped,
	}
	for _, qs := range ov.Queues {
		resp.Queues = append(resp.Queues, queueStatsResponse(qs))
	}
	h.writeJSON(w, resp, http.StatusOK)
}

// Health endpoint

// Health handles GET /api/v1/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ov, err := h.node.GetOverview(r.Context())
	if err != nil {
		resp := HealthResponse{Healthy: false, Message: err.Error()}
		h.writeJSON(w, resp, http.StatusServiceUnavailable)
		return
	}

	resp := HealthResponse{
		Healthy:   true,
		Queues:    len(ov.Queues),
		Exchanges: ov.Exchanges,
		Message:   "broker is operational",
	}
	h.writeJSON(w, resp, http.StatusOK)
}

// Helper methods

func queueStatsResponse(s brokerpkg.QueueStats) QueueStatsResponse {
	return QueueStatsResponse{
		Queue:     s.Queue,
		Durable:   s.Durable,
		Ready:     s.Ready,
		Unacked:   s.Unacked,
		Consumers: s.Consumers,
	}
}

// decodeJSON validates the content type and decodes the request body.
func (h *Handlers) decodeJSON(r *http.Request, dst interface{}) error {
	if err := h.validateJSON(r); err != nil {
		return err
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

// validateJSON ensures the request carries a JSON content type
func (h *Handlers) validateJSON(r *http.Request) error {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errors.New("Content-Type must be application/json")
	}
	return nil
}

// writeSSEDelivery writes one delivery as a properly formatted SSE data message
func (h *Handlers) writeSSEDelivery(w http.ResponseWriter, d brokerpkg.Delivery) error {
	msg := DeliveryMessage{
		DeliveryTag: d.Tag,
		Queue:       d.Queue,
		ConsumerID:  d.ConsumerID,
		RoutingKey:  d.Message.RoutingKey,
		Redelivered: d.Message.Redelivered,
		Payload:     json.RawMessage(d.Message.Body),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

// writeBrokerError maps broker sentinel errors onto HTTP status codes.
func (h *Handlers) writeBrokerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, brokerpkg.ErrNoSuchQueue),
		errors.Is(err, brokerpkg.ErrNoSuchExchange),
		errors.Is(err, brokerpkg.ErrNoSuchBinding):
		h.writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, brokerpkg.ErrDurabilityMismatch),
		errors.Is(err, brokerpkg.ErrKindMismatch),
		errors.Is(err, brokerpkg.ErrUnknownTag):
		h.writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, routing.ErrTooLong),
		errors.Is(err, routing.ErrEmptySegment),
		errors.Is(err, routing.ErrWildcardInKey):
		h.writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, brokerpkg.ErrClosed):
		h.writeError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		h.writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeError writes an error response as JSON
func (h *Handlers) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}
	json.NewEncoder(w).Encode(errorResp)
}

// writeJSON writes a JSON response
func (h *Handlers) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
