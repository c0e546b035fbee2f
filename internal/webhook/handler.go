// Package webhook receives the callbacks the XUMM platform posts when a
// payload is resolved
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/alexbotov/xumm/pkg/xumm"
)

const maxBodySize = 1 << 20

var ErrBadSignature = errors.New("webhook signature mismatch")

// Event is one received webhook. Payload is the freshly fetched payload
// when the handler has a Fetcher, nil otherwise.
type Event struct {
	Body    *xumm.WebhookBody
	Payload *xumm.Payload
}

// Receiver consumes webhook events
type Receiver interface {
	HandleWebhook(ctx context.Context, ev *Event) error
}

// ReceiverFunc adapts a function to Receiver
type ReceiverFunc func(ctx context.Context, ev *Event) error

func (f ReceiverFunc) HandleWebhook(ctx context.Context, ev *Event) error {
	return f(ctx, ev)
}

// Fetcher loads the authoritative payload state. *xumm.PayloadService
// satisfies it.
type Fetcher interface {
	Get(ctx context.Context, ref xumm.PayloadRef) (*xumm.Payload, error)
}

// Handler handles webhook HTTP requests
type Handler struct {
	log      *zap.Logger
	receiver Receiver
	fetcher  Fetcher
	secret   []byte
}

// Option configures a Handler
type Option func(*Handler)

// WithFetcher makes the handler fetch the payload a webhook refers to
func WithFetcher(f Fetcher) Option {
	return func(h *Handler) { h.fetcher = f }
}

// WithSecret enables verification of the X-Xumm-Request-Signature header
// against the application's API secret
func WithSecret(apiSecret string) Option {
	return func(h *Handler) {
		h.secret = []byte(strings.ReplaceAll(apiSecret, "-", ""))
	}
}

// New creates a new webhook handler
func New(log *zap.Logger, receiver Receiver, opts ...Option) *Handler {
	h := &Handler{log: log, receiver: receiver}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// APIResponse is the response envelope of the receiver endpoints
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError is the error part of an APIResponse
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
	})
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": xumm.Version,
	})
}

// Receive handles POST /webhook
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Unreadable request body")
		return
	}

	if err := h.verify(r, raw); err != nil {
		h.log.Warn("rejected webhook", zap.Error(err))
		respondError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "Signature mismatch")
		return
	}

	var body xumm.WebhookBody
	if err := json.Unmarshal(raw, &body); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	id := body.Meta.PayloadUUIDv4
	if id == "" {
		id = body.PayloadResponse.PayloadUUIDv4
	}
	if id == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Missing payload uuid")
		return
	}

	ev := &Event{Body: &body}
	if h.fetcher != nil {
		payload, err := h.fetcher.Get(r.Context(), xumm.PayloadUUID(id))
		if err != nil {
			h.log.Error("could not fetch webhook payload", zap.String("uuid", id), zap.Error(err))
			respondError(w, http.StatusBadGateway, "FETCH_FAILED", "Payload lookup failed")
			return
		}
		ev.Payload = payload
	}

	if err := h.receiver.HandleWebhook(r.Context(), ev); err != nil {
		h.log.Error("webhook receiver failed", zap.String("uuid", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "RECEIVER_FAILED", "Webhook not processed")
		return
	}

	h.log.Info("webhook processed",
		zap.String("uuid", id),
		zap.Bool("signed", body.PayloadResponse.Signed),
	)
	respondJSON(w, http.StatusOK, map[string]string{"uuid": id})
}

// verify checks the HMAC-SHA1 of timestamp and body when a secret is set
func (h *Handler) verify(r *http.Request, body []byte) error {
	if len(h.secret) == 0 {
		return nil
	}
	got, err := hex.DecodeString(r.Header.Get("X-Xumm-Request-Signature"))
	if err != nil || len(got) == 0 {
		return ErrBadSignature
	}
	if !hmac.Equal(got, Sign(h.secret, r.Header.Get("X-Xumm-Request-Timestamp"), body)) {
		return ErrBadSignature
	}
	return nil
}

// Sign computes the webhook signature of body sent at timestamp
func Sign(secret []byte, timestamp string, body []byte) []byte {
	mac := hmac.New(sha1.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return mac.Sum(nil)
}
