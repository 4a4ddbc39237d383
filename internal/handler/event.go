package handler

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SchemaVersion selects how the provider's event payload fields are named.
// The provider renamed fields across API versions; one reconciler handles
// both by normalizing into billingEvent before any business logic runs.
type SchemaVersion string

const (
	// SchemaLegacy is the 2022-09-01 payload shape: subscriptionReferenceId
	// and next_payment_on.
	SchemaLegacy SchemaVersion = "2022-09-01"
	// SchemaCurrent is the 2025-01-01 payload shape: subscription_id and
	// next_billing_date.
	SchemaCurrent SchemaVersion = "2025-01-01"
)

// billingEvent is the canonical internal record every payload shape
// normalizes into.
type billingEvent struct {
	Type            string
	SubscriptionRef string
	Status          string
	NextBillingAt   *time.Time
}

type eventOutcome int

const (
	outcomeIgnore eventOutcome = iota
	outcomeActivate
	outcomeDeactivate
)

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type currentData struct {
	SubscriptionID     string `json:"subscription_id"`
	SubscriptionStatus string `json:"subscription_status"`
	NextBillingDate    string `json:"next_billing_date"`
}

type legacyData struct {
	SubscriptionReferenceID flexibleID `json:"subscriptionReferenceId"`
	SubscriptionStatus      string     `json:"subscription_status"`
	NextPaymentOn           string     `json:"next_payment_on"`
}

// flexibleID tolerates the legacy schema serializing the reference as either
// a JSON number or a string.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}

// parseEvent decodes the provider envelope and normalizes it according to
// the configured schema version.
func parseEvent(body []byte, schema SchemaVersion) (billingEvent, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return billingEvent{}, fmt.Errorf("decode envelope: %w", err)
	}

	ev := billingEvent{Type: env.Type}
	if len(env.Data) == 0 {
		return ev, nil
	}

	switch schema {
	case SchemaLegacy:
		var data legacyData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return billingEvent{}, fmt.Errorf("decode legacy data: %w", err)
		}
		ev.SubscriptionRef = string(data.SubscriptionReferenceID)
		ev.Status = data.SubscriptionStatus
		ev.NextBillingAt = parseEventTime(data.NextPaymentOn)
	default:
		var data currentData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return billingEvent{}, fmt.Errorf("decode data: %w", err)
		}
		ev.SubscriptionRef = data.SubscriptionID
		ev.Status = data.SubscriptionStatus
		ev.NextBillingAt = parseEventTime(data.NextBillingDate)
	}
	return ev, nil
}

// classify maps the event onto one of the two state transitions the
// reconciler applies. Anything unrecognized is acknowledged without effect.
func classify(ev billingEvent) eventOutcome {
	switch normalizeEventType(ev.Type) {
	case "SUBSCRIPTION_ACTIVE", "SUBSCRIPTION_ACTIVATED", "SUBSCRIPTION_PAYMENT_SUCCESS":
		return outcomeActivate
	case "SUBSCRIPTION_CANCELLED", "SUBSCRIPTION_PAYMENT_FAILED",
		"SUBSCRIPTION_EXPIRED", "SUBSCRIPTION_COMPLETED":
		return outcomeDeactivate
	case "SUBSCRIPTION_STATUS_CHANGED":
		switch strings.ToUpper(ev.Status) {
		case "ACTIVE":
			return outcomeActivate
		case "CANCELLED", "EXPIRED", "COMPLETED":
			return outcomeDeactivate
		}
	}
	return outcomeIgnore
}

// normalizeEventType folds the provider's dot- and underscore-separated
// event names into one spelling.
func normalizeEventType(t string) string {
	return strings.ToUpper(strings.ReplaceAll(t, ".", "_"))
}

// parseEventTime accepts the provider's date formats; a missing or
// unparseable value becomes nil and callers fall back to a fixed window.
func parseEventTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
