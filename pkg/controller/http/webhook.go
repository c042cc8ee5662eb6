package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/playpack/pkg/controller/event"
	"github.com/m-mizutani/playpack/pkg/utils/async"
)

// GitHub caps webhook payloads at 25MB
const maxBodySize = 25 << 20

// WebhookHandler handles GitHub push webhooks
type WebhookHandler struct {
	secret     string
	processor  *event.Processor
	dispatcher *async.Dispatcher
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(secret string, processor *event.Processor, dispatcher *async.Dispatcher) *WebhookHandler {
	return &WebhookHandler{
		secret:     secret,
		processor:  processor,
		dispatcher: dispatcher,
	}
}

// Handle verifies and accepts a webhook delivery. Push events are built in
// the background and acknowledged with 202 right away; other event types
// are acknowledged and ignored.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.From(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		logger.Error("Failed to read request body", "error", err)
		writeError(ctx, w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	signature := r.Header.Get("X-Hub-Signature-256")
	if !h.verifySignature(body, signature) {
		logger.Warn("Invalid webhook signature")
		writeError(ctx, w, goerr.New("invalid signature"), http.StatusUnauthorized)
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	deliveryID := r.Header.Get("X-GitHub-Delivery")

	ev, ok, err := event.FromWebhook(eventType, deliveryID, body)
	if err != nil {
		logger.Error("Failed to parse webhook payload", "error", err)
		writeError(ctx, w, goerr.Wrap(err, "invalid JSON payload"), http.StatusBadRequest)
		return
	}
	if !ok {
		logger.Info("Ignoring unsupported event type", "event_type", eventType, "delivery_id", deliveryID)
		writeJSON(ctx, w, http.StatusOK, map[string]string{
			"status": "ignored",
		})
		return
	}

	h.dispatcher.Dispatch(ctx, "github_push", func(ctx context.Context) error {
		_, err := h.processor.Process(ctx, ev)
		return err
	})

	writeJSON(ctx, w, http.StatusAccepted, map[string]string{
		"status":      "accepted",
		"delivery_id": deliveryID,
	})
}

// verifySignature verifies the webhook signature
func (h *WebhookHandler) verifySignature(payload []byte, signature string) bool {
	if signature == "" || h.secret == "" {
		return false
	}

	signature = strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(payload)
	expectedMAC := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expectedMAC))
}
