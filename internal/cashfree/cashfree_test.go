package cashfree

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlan() PlanSpec {
	return PlanSpec{
		ID:           "PRO_MONTHLY_V1",
		Name:         "Pro Monthly",
		Amount:       199,
		Currency:     "INR",
		IntervalType: "MONTH",
		Intervals:    1,
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		ClientID:     "app_test",
		ClientSecret: "secret_test",
		BaseURL:      srv.URL,
	})
}

func TestAuthHeaders(t *testing.T) {
	var gotID, gotSecret, gotVersion string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get("x-client-id")
		gotSecret = r.Header.Get("x-client-secret")
		gotVersion = r.Header.Get("x-api-version")
		w.WriteHeader(http.StatusOK)
	})

	err := c.do(context.Background(), http.MethodGet, "/plans/PRO_MONTHLY_V1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "app_test", gotID)
	assert.Equal(t, "secret_test", gotSecret)
	assert.Equal(t, defaultAPIVersion, gotVersion)
}

func TestEnsurePlanExisting(t *testing.T) {
	var posts int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts++
		}
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.EnsurePlan(context.Background(), testPlan()))
	assert.Zero(t, posts, "existing plan must not be re-created")
}

func TestEnsurePlanCreatesOnNotFound(t *testing.T) {
	var created planPayload
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"code": "plan_not_found", "message": "plan does not exist"})
		case http.MethodPost:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			w.WriteHeader(http.StatusOK)
		}
	})

	require.NoError(t, c.EnsurePlan(context.Background(), testPlan()))
	assert.Equal(t, "PRO_MONTHLY_V1", created.PlanID)
	assert.Equal(t, "PERIODIC", created.PlanType)
	assert.Equal(t, int64(199), created.RecurringAmount)
	assert.Equal(t, "MONTH", created.IntervalType)
}

func TestEnsurePlanSwallowsDuplicateCreate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPost:
			// A concurrent caller created the plan first.
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"code": "duplicate_request", "message": "plan already exists"})
		}
	})

	assert.NoError(t, c.EnsurePlan(context.Background(), testPlan()))
}

func TestCreateCustomer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var details CustomerDetails
		require.NoError(t, json.NewDecoder(r.Body).Decode(&details))
		assert.Equal(t, "alice@example.com", details.Email)
		json.NewEncoder(w).Encode(map[string]string{"customer_id": "cust_99"})
	})

	ref, err := c.CreateCustomer(context.Background(), CustomerDetails{
		ID:    "1",
		Email: "alice@example.com",
		Name:  "Alice",
		Phone: "9999999999",
	})
	require.NoError(t, err)
	assert.Equal(t, "cust_99", ref)
}

func TestCreateSubscription(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var payload subscriptionPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "PRO_MONTHLY_V1", payload.PlanID)
		assert.NotEmpty(t, payload.SubscriptionID)
		json.NewEncoder(w).Encode(map[string]string{
			"subscription_id":         payload.SubscriptionID,
			"subscription_session_id": "session_abc",
		})
	})

	res, err := c.CreateSubscription(context.Background(), SubscriptionRequest{
		SubscriptionID: "SUB-1-x",
		PlanID:         "PRO_MONTHLY_V1",
		Customer:       CustomerDetails{ID: "1", Email: "alice@example.com"},
		ReturnURL:      "https://app.example.com/subscription/success",
	})
	require.NoError(t, err)
	assert.Equal(t, "SUB-1-x", res.SubscriptionRef)
	assert.Equal(t, "session_abc", res.SessionID)
}

func TestTimeoutSurfacesErrTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Config{
		ClientID:     "app_test",
		ClientSecret: "secret_test",
		BaseURL:      srv.URL,
		Timeout:      20 * time.Millisecond,
	})

	err := c.EnsurePlan(context.Background(), testPlan())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestAPIErrorDecoded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"code": "authentication_error", "message": "bad credentials"})
	})

	_, err := c.CreateCustomer(context.Background(), CustomerDetails{Email: "x@example.com"})
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "authentication_error", apiErr.Code)
}
