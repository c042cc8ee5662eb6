package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"slices"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/playpack/pkg/controller/event"
	"github.com/m-mizutani/playpack/pkg/domain/model"
	"github.com/m-mizutani/playpack/pkg/utils/async"
)

// SNSHandler handles notifications delivered by an SNS HTTP(S) subscription
type SNSHandler struct {
	topicARNs  []string
	processor  *event.Processor
	dispatcher *async.Dispatcher
	verifier   *snsVerifier
}

// NewSNSHandler creates a handler accepting messages from topicARNs only
func NewSNSHandler(topicARNs []string, processor *event.Processor, dispatcher *async.Dispatcher) *SNSHandler {
	return &SNSHandler{
		topicARNs:  topicARNs,
		processor:  processor,
		dispatcher: dispatcher,
		verifier:   newSNSVerifier(),
	}
}

// Handle verifies an SNS message and acts on its type. Subscription
// confirmations are confirmed synchronously; notifications are built in the
// background and acknowledged with 202.
func (h *SNSHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.From(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(ctx, w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var msg snsMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		logger.Warn("Invalid SNS message", "error", err)
		writeError(ctx, w, goerr.Wrap(err, "invalid SNS message"), http.StatusBadRequest)
		return
	}

	if !slices.Contains(h.topicARNs, msg.TopicArn) {
		logger.Warn("SNS message from unexpected topic", "topic_arn", msg.TopicArn)
		writeError(ctx, w, goerr.New("topic is not allowed"), http.StatusForbidden)
		return
	}

	if err := h.verifier.verify(ctx, &msg); err != nil {
		logger.Warn("SNS signature verification failed", "error", err, "message_id", msg.MessageID)
		writeError(ctx, w, goerr.New("invalid signature"), http.StatusUnauthorized)
		return
	}

	ctx = ctxlog.With(ctx, ctxlog.From(ctx).With("message_id", msg.MessageID, "topic_arn", msg.TopicArn))
	logger = ctxlog.From(ctx)

	switch msg.Type {
	case snsTypeSubscriptionConfirmation:
		if err := h.verifier.confirm(ctx, &msg); err != nil {
			logger.Error("Failed to confirm SNS subscription", "error", err)
			writeError(ctx, w, err, http.StatusBadGateway)
			return
		}
		logger.Info("Confirmed SNS subscription")
		writeJSON(ctx, w, http.StatusOK, map[string]string{"status": "confirmed"})

	case snsTypeUnsubscribeConfirmation:
		logger.Warn("SNS subscription was removed")
		writeJSON(ctx, w, http.StatusOK, map[string]string{"status": "ignored"})

	case snsTypeNotification:
		ev, err := event.FromSNSMessage(msg.MessageID, msg.Message, model.EventSourceSNSHTTP)
		if err != nil {
			logger.Error("Failed to parse SNS notification", "error", err)
			writeError(ctx, w, err, http.StatusBadRequest)
			return
		}

		h.dispatcher.Dispatch(ctx, "sns_push", func(ctx context.Context) error {
			_, err := h.processor.Process(ctx, ev)
			return err
		})
		writeJSON(ctx, w, http.StatusAccepted, map[string]string{
			"status":     "accepted",
			"message_id": msg.MessageID,
		})
	}
}
