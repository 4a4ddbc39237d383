package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vectorlabs/vector/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var name, phone, customerRef, subscriptionRef sql.NullString
	var periodEnd, lastReset sql.NullTime
	err := scanner.Scan(
		&u.ID, &u.ExternalAuthID, &u.Email, &name, &phone,
		&u.Plan, &u.SubscriptionStatus, &periodEnd,
		&customerRef, &subscriptionRef,
		&u.RequestsToday, &lastReset, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if name.Valid {
		u.Name = &name.String
	}
	if phone.Valid {
		u.Phone = &phone.String
	}
	if customerRef.Valid {
		u.BillingCustomerRef = &customerRef.String
	}
	if subscriptionRef.Valid {
		u.BillingSubscriptionRef = &subscriptionRef.String
	}
	if periodEnd.Valid {
		u.CurrentPeriodEnd = &periodEnd.Time
	}
	if lastReset.Valid {
		u.LastRequestReset = &lastReset.Time
	}
	return &u, nil
}

const userCols = `id, external_auth_id, email, name, phone, plan, subscription_status, current_period_end, billing_customer_ref, billing_subscription_ref, requests_today, last_request_reset, created_at, updated_at`

// Create inserts a user row at first sign-in. Name and phone are optional
// display fields supplied by the identity provider.
func (s *UserStore) Create(externalAuthID, email string, name, phone *string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (external_auth_id, email, name, phone) VALUES (?, ?, ?, ?)`,
		externalAuthID, email, name, phone,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByAuthID(externalAuthID string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE external_auth_id = ?`, externalAuthID)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by auth id: %w", err)
	}
	return u, nil
}

// UpdateProfile refreshes the display fields the identity provider syncs at
// sign-in. Billing and quota columns are untouched.
func (s *UserStore) UpdateProfile(id int64, email string, name, phone *string) error {
	_, err := s.db.Exec(
		`UPDATE users SET email = ?, name = ?, phone = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		email, name, phone, id,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// SetBillingCustomerRef records the processor's customer identifier. The
// guard clause keeps an already-assigned ref stable for the lifetime of the
// row, so a later upgrade attempt can never re-point the user at a fresh
// processor-side customer.
func (s *UserStore) SetBillingCustomerRef(id int64, ref string) error {
	_, err := s.db.Exec(
		`UPDATE users SET billing_customer_ref = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND billing_customer_ref IS NULL`,
		ref, id,
	)
	if err != nil {
		return fmt.Errorf("set billing customer ref: %w", err)
	}
	return nil
}

// SetBillingSubscriptionRef records the processor's subscription identifier,
// the lookup key for webhook reconciliation. Unlike the customer ref this is
// replaced on each new checkout attempt.
func (s *UserStore) SetBillingSubscriptionRef(id int64, ref string) error {
	_, err := s.db.Exec(
		`UPDATE users SET billing_subscription_ref = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		ref, id,
	)
	if err != nil {
		return fmt.Errorf("set billing subscription ref: %w", err)
	}
	return nil
}

// ActivateBySubscriptionRef flips every row tracking the given subscription
// to PRO/ACTIVE with the supplied period end, as a single conditional update.
// Zero matched rows is not an error; the caller decides what to log.
func (s *UserStore) ActivateBySubscriptionRef(ref string, periodEnd time.Time) (int64, error) {
	result, err := s.db.Exec(
		`UPDATE users SET plan = ?, subscription_status = ?, current_period_end = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE billing_subscription_ref = ?`,
		model.PlanPro, model.StatusActive, periodEnd.UTC(), ref,
	)
	if err != nil {
		return 0, fmt.Errorf("activate by subscription ref: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// DeactivateBySubscriptionRef drops every row tracking the given subscription
// back to FREE/INACTIVE.
func (s *UserStore) DeactivateBySubscriptionRef(ref string) (int64, error) {
	result, err := s.db.Exec(
		`UPDATE users SET plan = ?, subscription_status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE billing_subscription_ref = ?`,
		model.PlanFree, model.StatusInactive, ref,
	)
	if err != nil {
		return 0, fmt.Errorf("deactivate by subscription ref: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// IncrementRequestsToday bumps the daily counter in a single statement so
// concurrent sessions for the same user cannot lose increments.
func (s *UserStore) IncrementRequestsToday(id int64) error {
	_, err := s.db.Exec(
		`UPDATE users SET requests_today = requests_today + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("increment requests today: %w", err)
	}
	return nil
}

// ResetAllRequestCounters zeroes every user's daily counter. Running it twice
// in the same window is harmless.
func (s *UserStore) ResetAllRequestCounters(now time.Time) (int64, error) {
	result, err := s.db.Exec(
		`UPDATE users SET requests_today = 0, last_request_reset = ?, updated_at = CURRENT_TIMESTAMP`,
		now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("reset request counters: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
