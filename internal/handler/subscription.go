package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/vectorlabs/vector/internal/billing"
)

type SubscriptionHandler struct {
	svc    *billing.Service
	logger *slog.Logger
}

func NewSubscriptionHandler(svc *billing.Service, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc, logger: logger}
}

// Get returns the user's plan, status, period end, and whether PRO treatment
// currently applies.
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == 0 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	sub, err := h.svc.GetUserSubscription(r.Context(), userID)
	if err != nil {
		if errors.Is(err, billing.ErrUserNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		h.logger.Error("get subscription", "user_id", userID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	pro, err := h.svc.IsProUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("check pro status", "user_id", userID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		*billing.Subscription
		Pro bool `json:"pro"`
	}{sub, pro})
}

// Create starts the upgrade flow and returns the checkout handle. Gateway
// failures surface as a generic 502; the user re-triggers the upgrade, there
// is no automatic retry.
func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == 0 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	start := time.Now()
	checkout, err := h.svc.CreateProSubscription(r.Context(), userID)
	if err != nil {
		if errors.Is(err, billing.ErrUserNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		h.logger.Error("create subscription",
			"user_id", userID, "duration", time.Since(start), "error", err)
		http.Error(w, "failed to create subscription", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(checkout)
}
