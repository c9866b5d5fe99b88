package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/vendora/payouts/internal/domain"
	"github.com/vendora/payouts/internal/processor"
)

// maxWebhookBody bounds inbound webhook payload size.
const maxWebhookBody = 1 << 20

// EventHandler applies a normalized payout event to local state.
type EventHandler interface {
	HandleEvent(ctx context.Context, evt *domain.PayoutEvent) error
}

// WebhookHandler receives processor webhook deliveries, normalizes them
// through the processor's parser and hands them to reconciliation.
type WebhookHandler struct {
	registry *processor.Registry
	events   EventHandler
	logger   zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(registry *processor.Registry, events EventHandler, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		registry: registry,
		events:   events,
		logger:   logger,
	}
}

// Receive handles POST /webhooks/{processor}. Unsupported event types are
// acknowledged with 200 so the processor stops redelivering them; events
// that cannot be correlated with local state are rejected with 422 after an
// operator alert has been enqueued.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	procID, err := domain.ParseProcessorID(chi.URLParam(r, "processor"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown processor", err.Error())
		return
	}

	proc, err := h.registry.Get(procID)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown processor", err.Error())
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable webhook body", err.Error())
		return
	}

	evt, err := proc.ParseWebhook(body, accountContext(r, procID))
	if err != nil {
		if errors.Is(err, processor.ErrUnsupportedEvent) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		writeError(w, http.StatusBadRequest, "invalid webhook payload", err.Error())
		return
	}

	if err := h.events.HandleEvent(r.Context(), evt); err != nil {
		if domain.IsReconciliationError(err) {
			writeError(w, http.StatusUnprocessableEntity, "event could not be reconciled", err.Error())
			return
		}

		h.logger.Error().Err(err).
			Str("event_id", evt.EventID).
			Str("processor", string(procID)).
			Msg("webhook handling failed")
		writeError(w, http.StatusInternalServerError, "failed to process event", err.Error())

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// accountContext extracts the connected-account context the delivery was
// made for, when the processor supplies one out of band.
func accountContext(r *http.Request, procID domain.ProcessorID) string {
	switch procID {
	case domain.ProcessorStripe:
		return r.Header.Get("Stripe-Account")
	default:
		return ""
	}
}
