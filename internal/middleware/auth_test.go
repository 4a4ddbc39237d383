package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vectorlabs/vector/internal/database"
	"github.com/vectorlabs/vector/internal/handler"
	"github.com/vectorlabs/vector/internal/store"
)

func setupIdentityDB(t *testing.T) *store.UserStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.NewUserStore(db)
}

func TestRequireIdentityNoHeader(t *testing.T) {
	us := setupIdentityDB(t)

	h := RequireIdentity(us)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called without identity")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/subscription", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireIdentityUnknownUser(t *testing.T) {
	us := setupIdentityDB(t)

	h := RequireIdentity(us)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called for an unknown user")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/subscription", nil)
	req.Header.Set(authIDHeader, "auth_missing")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestRequireIdentityResolvesUser(t *testing.T) {
	us := setupIdentityDB(t)
	created, err := us.Create("auth_1", "alice@example.com", nil, nil)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	var gotID int64
	h := RequireIdentity(us)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = handler.UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/subscription", nil)
	req.Header.Set(authIDHeader, "auth_1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotID != created.ID {
		t.Errorf("user id = %d, want %d", gotID, created.ID)
	}
}
