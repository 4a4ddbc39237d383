package store

import (
	"testing"
	"time"

	"github.com/vectorlabs/vector/internal/database"
	"github.com/vectorlabs/vector/internal/model"
)

func setupUserTestDB(t *testing.T) *UserStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserStore(db)
}

func TestUserCreate(t *testing.T) {
	us := setupUserTestDB(t)

	name := "Alice"
	u, err := us.Create("auth_1", "alice@example.com", &name, nil)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if u.ExternalAuthID != "auth_1" {
		t.Errorf("external_auth_id = %q, want %q", u.ExternalAuthID, "auth_1")
	}
	if u.Plan != model.PlanFree {
		t.Errorf("plan = %q, want %q", u.Plan, model.PlanFree)
	}
	if u.SubscriptionStatus != model.StatusInactive {
		t.Errorf("subscription_status = %q, want %q", u.SubscriptionStatus, model.StatusInactive)
	}
	if u.RequestsToday != 0 {
		t.Errorf("requests_today = %d, want 0", u.RequestsToday)
	}
	if u.BillingCustomerRef != nil {
		t.Errorf("billing_customer_ref = %q, want nil", *u.BillingCustomerRef)
	}
}

func TestUserCreateDuplicateAuthID(t *testing.T) {
	us := setupUserTestDB(t)

	if _, err := us.Create("auth_1", "alice@example.com", nil, nil); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := us.Create("auth_1", "other@example.com", nil, nil); err == nil {
		t.Error("expected error for duplicate external_auth_id")
	}
}

func TestUserGetByAuthID(t *testing.T) {
	us := setupUserTestDB(t)

	created, _ := us.Create("auth_1", "alice@example.com", nil, nil)

	u, err := us.GetByAuthID("auth_1")
	if err != nil {
		t.Fatalf("get by auth id: %v", err)
	}
	if u == nil {
		t.Fatal("expected user, got nil")
	}
	if u.ID != created.ID {
		t.Errorf("id = %d, want %d", u.ID, created.ID)
	}
}

func TestUserGetByAuthIDNotFound(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.GetByAuthID("auth_missing")
	if err != nil {
		t.Fatalf("get by auth id: %v", err)
	}
	if u != nil {
		t.Error("expected nil for unknown auth id")
	}
}

func TestUserUpdateProfile(t *testing.T) {
	us := setupUserTestDB(t)

	created, _ := us.Create("auth_1", "alice@example.com", nil, nil)
	if err := us.SetBillingSubscriptionRef(created.ID, "sub_1"); err != nil {
		t.Fatalf("set subscription ref: %v", err)
	}

	name := "Alice B"
	phone := "5551234"
	if err := us.UpdateProfile(created.ID, "new@example.com", &name, &phone); err != nil {
		t.Fatalf("update profile: %v", err)
	}

	u, _ := us.GetByID(created.ID)
	if u.Email != "new@example.com" {
		t.Errorf("email = %q, want %q", u.Email, "new@example.com")
	}
	if u.Name == nil || *u.Name != name {
		t.Errorf("name = %v, want %q", u.Name, name)
	}
	if u.Phone == nil || *u.Phone != phone {
		t.Errorf("phone = %v, want %q", u.Phone, phone)
	}
	if u.BillingSubscriptionRef == nil || *u.BillingSubscriptionRef != "sub_1" {
		t.Error("billing_subscription_ref should be untouched by profile update")
	}
}

func TestSetBillingCustomerRefIsStable(t *testing.T) {
	us := setupUserTestDB(t)

	created, _ := us.Create("auth_1", "alice@example.com", nil, nil)

	if err := us.SetBillingCustomerRef(created.ID, "cust_1"); err != nil {
		t.Fatalf("set customer ref: %v", err)
	}
	// A second assignment must not overwrite the original ref.
	if err := us.SetBillingCustomerRef(created.ID, "cust_2"); err != nil {
		t.Fatalf("second set customer ref: %v", err)
	}

	u, _ := us.GetByID(created.ID)
	if u.BillingCustomerRef == nil || *u.BillingCustomerRef != "cust_1" {
		t.Errorf("billing_customer_ref = %v, want %q", u.BillingCustomerRef, "cust_1")
	}
}

func TestSetBillingSubscriptionRefReplaces(t *testing.T) {
	us := setupUserTestDB(t)

	created, _ := us.Create("auth_1", "alice@example.com", nil, nil)

	us.SetBillingSubscriptionRef(created.ID, "sub_1")
	if err := us.SetBillingSubscriptionRef(created.ID, "sub_2"); err != nil {
		t.Fatalf("set subscription ref: %v", err)
	}

	u, _ := us.GetByID(created.ID)
	if u.BillingSubscriptionRef == nil || *u.BillingSubscriptionRef != "sub_2" {
		t.Errorf("billing_subscription_ref = %v, want %q", u.BillingSubscriptionRef, "sub_2")
	}
}

func TestActivateBySubscriptionRef(t *testing.T) {
	us := setupUserTestDB(t)

	created, _ := us.Create("auth_1", "alice@example.com", nil, nil)
	us.SetBillingSubscriptionRef(created.ID, "sub_42")

	periodEnd := time.Now().UTC().Add(30 * 24 * time.Hour).Truncate(time.Second)
	n, err := us.ActivateBySubscriptionRef("sub_42", periodEnd)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if n != 1 {
		t.Errorf("rows affected = %d, want 1", n)
	}

	u, _ := us.GetByID(created.ID)
	if u.Plan != model.PlanPro {
		t.Errorf("plan = %q, want %q", u.Plan, model.PlanPro)
	}
	if u.SubscriptionStatus != model.StatusActive {
		t.Errorf("subscription_status = %q, want %q", u.SubscriptionStatus, model.StatusActive)
	}
	if u.CurrentPeriodEnd == nil || !u.CurrentPeriodEnd.Equal(periodEnd) {
		t.Errorf("current_period_end = %v, want %v", u.CurrentPeriodEnd, periodEnd)
	}
}

func TestActivateBySubscriptionRefIdempotent(t *testing.T) {
	us := setupUserTestDB(t)

	created, _ := us.Create("auth_1", "alice@example.com", nil, nil)
	us.SetBillingSubscriptionRef(created.ID, "sub_42")

	periodEnd := time.Now().UTC().Add(30 * 24 * time.Hour).Truncate(time.Second)
	if _, err := us.ActivateBySubscriptionRef("sub_42", periodEnd); err != nil {
		t.Fatalf("first activate: %v", err)
	}
	first, _ := us.GetByID(created.ID)

	if _, err := us.ActivateBySubscriptionRef("sub_42", periodEnd); err != nil {
		t.Fatalf("second activate: %v", err)
	}
	second, _ := us.GetByID(created.ID)

	if second.Plan != first.Plan || second.SubscriptionStatus != first.SubscriptionStatus {
		t.Error("second activation changed plan or status")
	}
	if !second.CurrentPeriodEnd.Equal(*first.CurrentPeriodEnd) {
		t.Errorf("period end drifted: %v vs %v", second.CurrentPeriodEnd, first.CurrentPeriodEnd)
	}
}

func TestActivateBySubscriptionRefNoMatch(t *testing.T) {
	us := setupUserTestDB(t)

	n, err := us.ActivateBySubscriptionRef("sub_unknown", time.Now().UTC())
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if n != 0 {
		t.Errorf("rows affected = %d, want 0", n)
	}
}

func TestDeactivateBySubscriptionRef(t *testing.T) {
	us := setupUserTestDB(t)

	created, _ := us.Create("auth_1", "alice@example.com", nil, nil)
	us.SetBillingSubscriptionRef(created.ID, "sub_42")
	us.ActivateBySubscriptionRef("sub_42", time.Now().UTC().Add(24*time.Hour))

	n, err := us.DeactivateBySubscriptionRef("sub_42")
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if n != 1 {
		t.Errorf("rows affected = %d, want 1", n)
	}

	u, _ := us.GetByID(created.ID)
	if u.Plan != model.PlanFree {
		t.Errorf("plan = %q, want %q", u.Plan, model.PlanFree)
	}
	if u.SubscriptionStatus != model.StatusInactive {
		t.Errorf("subscription_status = %q, want %q", u.SubscriptionStatus, model.StatusInactive)
	}
}

func TestIncrementRequestsToday(t *testing.T) {
	us := setupUserTestDB(t)

	created, _ := us.Create("auth_1", "alice@example.com", nil, nil)

	for i := 0; i < 3; i++ {
		if err := us.IncrementRequestsToday(created.ID); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}

	u, _ := us.GetByID(created.ID)
	if u.RequestsToday != 3 {
		t.Errorf("requests_today = %d, want 3", u.RequestsToday)
	}
}

func TestResetAllRequestCounters(t *testing.T) {
	us := setupUserTestDB(t)

	a, _ := us.Create("auth_1", "alice@example.com", nil, nil)
	b, _ := us.Create("auth_2", "bob@example.com", nil, nil)
	us.IncrementRequestsToday(a.ID)
	us.IncrementRequestsToday(a.ID)
	us.IncrementRequestsToday(b.ID)

	now := time.Now().UTC().Truncate(time.Second)
	n, err := us.ResetAllRequestCounters(now)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n != 2 {
		t.Errorf("rows affected = %d, want 2", n)
	}

	// Running the reset again in the same window is a harmless no-op.
	if _, err := us.ResetAllRequestCounters(now); err != nil {
		t.Fatalf("second reset: %v", err)
	}

	for _, id := range []int64{a.ID, b.ID} {
		u, _ := us.GetByID(id)
		if u.RequestsToday != 0 {
			t.Errorf("user %d requests_today = %d, want 0", id, u.RequestsToday)
		}
		if u.LastRequestReset == nil || !u.LastRequestReset.Equal(now) {
			t.Errorf("user %d last_request_reset = %v, want %v", id, u.LastRequestReset, now)
		}
	}
}
