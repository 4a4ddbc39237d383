package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/vectorlabs/vector/internal/store"
)

// ProfileHandler receives the identity provider's sign-in sync. It upserts
// the local user row by the verified auth id, so every other endpoint can
// assume the row already exists.
type ProfileHandler struct {
	users  *store.UserStore
	logger *slog.Logger
}

func NewProfileHandler(users *store.UserStore, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{users: users, logger: logger}
}

type profileRequest struct {
	Email string  `json:"email"`
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

type profileResponse struct {
	ID      int64   `json:"id"`
	Email   string  `json:"email"`
	Name    *string `json:"name,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Created bool    `json:"created"`
}

// Sync creates the user row on first sign-in and refreshes profile fields on
// later ones. The identity header is trusted the same way the identity
// middleware trusts it.
func (h *ProfileHandler) Sync(w http.ResponseWriter, r *http.Request) {
	authID := r.Header.Get("X-Auth-Id")
	if authID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}

	user, err := h.users.GetByAuthID(authID)
	if err != nil {
		h.logger.Error("profile lookup", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	created := false
	if user == nil {
		user, err = h.users.Create(authID, req.Email, req.Name, req.Phone)
		if err != nil {
			h.logger.Error("profile create", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		created = true
	} else {
		if err := h.users.UpdateProfile(user.ID, req.Email, req.Name, req.Phone); err != nil {
			h.logger.Error("profile update", "user_id", user.ID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profileResponse{
		ID:      user.ID,
		Email:   req.Email,
		Name:    req.Name,
		Phone:   req.Phone,
		Created: created,
	})
}
