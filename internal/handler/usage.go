package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/vectorlabs/vector/internal/quota"
	"github.com/vectorlabs/vector/internal/store"
)

// UsageHandler exposes the quota gate to the UI layer: a read of today's
// usage, and a consume call the UI invokes around each AI-backed action.
type UsageHandler struct {
	users  *store.UserStore
	gate   *quota.Gate
	logger *slog.Logger
}

func NewUsageHandler(users *store.UserStore, gate *quota.Gate, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{users: users, gate: gate, logger: logger}
}

type usageResponse struct {
	RequestsToday int `json:"requests_today"`
	Ceiling       int `json:"ceiling"`
	Remaining     int `json:"remaining"`
}

func (h *UsageHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == 0 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.users.GetByID(userID)
	if err != nil || user == nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}

	ceiling := h.gate.Ceiling(user, time.Now())
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(usageResponse{
		RequestsToday: user.RequestsToday,
		Ceiling:       ceiling,
		Remaining:     max(ceiling-user.RequestsToday, 0),
	})
}

// Consume checks the ceiling and counts one AI-backed action. 429 means the
// caller must not perform the action.
func (h *UsageHandler) Consume(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == 0 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.users.GetByID(userID)
	if err != nil || user == nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}

	now := time.Now()
	if err := h.gate.Check(user, now); err != nil {
		if errors.Is(err, quota.ErrQuotaExceeded) {
			http.Error(w, "daily request limit reached", http.StatusTooManyRequests)
			return
		}
		h.logger.Error("quota check", "user_id", userID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := h.gate.Record(userID); err != nil {
		h.logger.Error("quota record", "user_id", userID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	ceiling := h.gate.Ceiling(user, now)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(usageResponse{
		RequestsToday: user.RequestsToday + 1,
		Ceiling:       ceiling,
		Remaining:     max(ceiling-user.RequestsToday-1, 0),
	})
}
