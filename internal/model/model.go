package model

import "time"

// Plan is the subscription tier controlling feature access and quota ceiling.
type Plan string

const (
	PlanFree Plan = "FREE"
	PlanPro  Plan = "PRO"
)

// SubscriptionStatus tracks whether a billing subscription is currently active.
type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "ACTIVE"
	StatusInactive SubscriptionStatus = "INACTIVE"
)

type User struct {
	ID                     int64               `json:"id"`
	ExternalAuthID         string              `json:"external_auth_id"`
	Email                  string              `json:"email"`
	Name                   *string             `json:"name"`
	Phone                  *string             `json:"phone"`
	Plan                   Plan                `json:"plan"`
	SubscriptionStatus     SubscriptionStatus  `json:"subscription_status"`
	CurrentPeriodEnd       *time.Time          `json:"current_period_end"`
	BillingCustomerRef     *string             `json:"billing_customer_ref"`
	BillingSubscriptionRef *string             `json:"billing_subscription_ref"`
	RequestsToday          int                 `json:"requests_today"`
	LastRequestReset       *time.Time          `json:"last_request_reset"`
	CreatedAt              time.Time           `json:"created_at"`
	UpdatedAt              time.Time           `json:"updated_at"`
}

// ProEffective reports whether the user gets PRO treatment: a PRO plan with
// ACTIVE status and an unexpired (or absent) period end. A PRO plan whose
// status is INACTIVE, or whose paid period has lapsed, is treated as FREE.
func (u *User) ProEffective(now time.Time) bool {
	if u.Plan != PlanPro || u.SubscriptionStatus != StatusActive {
		return false
	}
	if u.CurrentPeriodEnd != nil && !u.CurrentPeriodEnd.After(now) {
		return false
	}
	return true
}
