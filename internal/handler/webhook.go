package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vectorlabs/vector/internal/store"
)

const (
	signatureHeader = "x-webhook-signature"
	timestampHeader = "x-webhook-timestamp"

	maxWebhookBody = 64 << 10

	// activationFallbackWindow is applied when an activation event carries
	// no next-billing date.
	activationFallbackWindow = 30 * 24 * time.Hour
)

// WebhookHandler is the single writer of plan/status/period-end state. It
// applies idempotent transitions driven by the processor's unordered,
// at-least-once notifications.
type WebhookHandler struct {
	secret string
	schema SchemaVersion
	users  *store.UserStore
	logger *slog.Logger
}

func NewWebhookHandler(secret string, schema SchemaVersion, users *store.UserStore, logger *slog.Logger) *WebhookHandler {
	if schema == "" {
		schema = SchemaCurrent
	}
	return &WebhookHandler{
		secret: secret,
		schema: schema,
		users:  users,
		logger: logger,
	}
}

// HandleBillingWebhook verifies, normalizes, and applies one event. The body
// is never parsed before its signature checks out. A verified event that
// matches no row still gets a 200, so the processor does not redeliver test
// or stale events forever.
func (h *WebhookHandler) HandleBillingWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get(signatureHeader)
	timestamp := r.Header.Get(timestampHeader)
	if signature == "" || timestamp == "" {
		http.Error(w, "missing signature headers", http.StatusBadRequest)
		return
	}
	if !verifySignature(h.secret, timestamp, body, signature) {
		h.logger.Warn("webhook signature mismatch", "remote", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	event, err := parseEvent(body, h.schema)
	if err != nil {
		h.logger.Warn("malformed webhook event", "error", err)
		http.Error(w, "malformed event", http.StatusBadRequest)
		return
	}

	// Not every event pertains to a tracked subscription.
	if event.SubscriptionRef == "" {
		h.acknowledge(w)
		return
	}

	switch classify(event) {
	case outcomeActivate:
		periodEnd := time.Now().UTC().Add(activationFallbackWindow)
		if event.NextBillingAt != nil {
			periodEnd = *event.NextBillingAt
		}
		n, err := h.users.ActivateBySubscriptionRef(event.SubscriptionRef, periodEnd)
		if err != nil {
			h.logger.Error("webhook activation failed", "subscription_ref", event.SubscriptionRef, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if n == 0 {
			h.logger.Debug("activation matched no subscription",
				"type", event.Type, "subscription_ref", event.SubscriptionRef)
		} else {
			h.logger.Info("subscription activated",
				"type", event.Type, "subscription_ref", event.SubscriptionRef, "rows", n)
		}

	case outcomeDeactivate:
		n, err := h.users.DeactivateBySubscriptionRef(event.SubscriptionRef)
		if err != nil {
			h.logger.Error("webhook deactivation failed", "subscription_ref", event.SubscriptionRef, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if n == 0 {
			h.logger.Debug("deactivation matched no subscription",
				"type", event.Type, "subscription_ref", event.SubscriptionRef)
		} else {
			h.logger.Info("subscription deactivated",
				"type", event.Type, "subscription_ref", event.SubscriptionRef, "rows", n)
		}

	default:
		h.logger.Debug("webhook event ignored", "type", event.Type)
	}

	h.acknowledge(w)
}

func (h *WebhookHandler) acknowledge(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"received": true})
}

// verifySignature recomputes base64(HMAC-SHA256(secret, timestamp+body)) and
// compares in constant time.
func verifySignature(secret, timestamp string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
