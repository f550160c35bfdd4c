package billing

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"plugin-license-server/internal/usecase"
)

const maxWebhookBody = 65536

// Enqueuer hands a parsed provisioning event to the worker queue.
type Enqueuer interface {
	Enqueue(ev usecase.SubscriptionCreatedEvent) error
}

// WebhookHandler verifies and parses Stripe webhook deliveries. Processing is
// asynchronous: the handler only validates, enqueues and acknowledges, so the
// response always fits inside Stripe's delivery timeout.
type WebhookHandler struct {
	secret string
	queue  Enqueuer
	log    *zerolog.Logger
}

func NewWebhookHandler(secret string, queue Enqueuer, logger *zerolog.Logger) *WebhookHandler {
	l := logger.With().Str("component", "StripeWebhook").Logger()
	return &WebhookHandler{secret: secret, queue: queue, log: &l}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.respond(w, http.StatusServiceUnavailable, "read_failed")
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		payload,
		r.Header.Get("Stripe-Signature"),
		h.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		h.log.Warn().Err(err).Msg("webhook signature verification failed")
		h.respond(w, http.StatusBadRequest, "bad_signature")
		return
	}

	switch event.Type {
	case "customer.subscription.created":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			h.log.Warn().Str("event_id", event.ID).Err(err).Msg("failed to parse subscription payload")
			h.respond(w, http.StatusBadRequest, "bad_payload")
			return
		}
		ev := subscriptionCreatedEvent(&sub)
		if err := h.queue.Enqueue(ev); err != nil {
			// Non-2xx makes Stripe redeliver later.
			h.respond(w, http.StatusServiceUnavailable, "queue_full")
			return
		}
		h.log.Info().
			Str("event_id", event.ID).
			Str("provider_subscription_id", ev.ProviderSubscriptionID).
			Msg("subscription created event accepted")
		h.respond(w, http.StatusOK, "received")

	default:
		// Acknowledge unknown events to avoid retries.
		h.respond(w, http.StatusOK, "ignored")
	}
}

func subscriptionCreatedEvent(sub *stripe.Subscription) usecase.SubscriptionCreatedEvent {
	ev := usecase.SubscriptionCreatedEvent{
		ProviderSubscriptionID: sub.ID,
		Metadata:               sub.Metadata,
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		ev.PriceID = sub.Items.Data[0].Price.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0)
		ev.CurrentPeriodEnd = &end
	}
	return ev
}

func (h *WebhookHandler) respond(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": msg})
}
