// Package billing bridges local user records to the external payment
// processor: it owns the upgrade flow and the read-side subscription queries
// the UI layer consumes. Plan and status columns themselves are only ever
// written by the webhook reconciler.
package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vectorlabs/vector/internal/cashfree"
	"github.com/vectorlabs/vector/internal/model"
	"github.com/vectorlabs/vector/internal/store"
)

// Placeholder display fields: the processor insists on a name and phone even
// though neither is used for matching.
const (
	fallbackCustomerName  = "Vector User"
	fallbackCustomerPhone = "9999999999"
)

// ProPlan is the single paid plan the service sells. Amount is in the
// currency's major unit.
var ProPlan = cashfree.PlanSpec{
	ID:           "PRO_MONTHLY_V1",
	Name:         "Vector Pro Monthly",
	Amount:       199,
	Currency:     "INR",
	IntervalType: "MONTH",
	Intervals:    1,
	Description:  "Vector Pro subscription, billed monthly",
}

// Gateway is the slice of the processor client the service needs. The
// concrete implementation is cashfree.Client; tests substitute a fake.
type Gateway interface {
	EnsurePlan(ctx context.Context, plan cashfree.PlanSpec) error
	CreateCustomer(ctx context.Context, details cashfree.CustomerDetails) (string, error)
	CreateSubscription(ctx context.Context, req cashfree.SubscriptionRequest) (cashfree.SubscriptionResult, error)
}

type Service struct {
	users     *store.UserStore
	gateway   Gateway
	plan      cashfree.PlanSpec
	returnURL string
	logger    *slog.Logger
}

func NewService(users *store.UserStore, gw Gateway, plan cashfree.PlanSpec, returnURL string, logger *slog.Logger) *Service {
	return &Service{
		users:     users,
		gateway:   gw,
		plan:      plan,
		returnURL: returnURL,
		logger:    logger,
	}
}

// Checkout is the opaque handle the client needs to complete payment. How
// checkout is presented is the UI collaborator's business.
type Checkout struct {
	SubscriptionRef string `json:"subscription_id"`
	SessionID       string `json:"subscription_session_id"`
}

// Subscription is the read-side view of a user's billing state.
type Subscription struct {
	Plan             model.Plan               `json:"plan"`
	Status           model.SubscriptionStatus `json:"subscription_status"`
	CurrentPeriodEnd *time.Time               `json:"current_period_end"`
}

// CreateProSubscription runs the upgrade flow: make sure the plan exists on
// the processor, resolve (or lazily create) the processor-side customer,
// open a subscription, and hand back the checkout session.
//
// The customer ref is persisted before the subscription call so a crash in
// between cannot orphan a processor-side customer from the local record, and
// an existing ref is reused, never re-created.
func (s *Service) CreateProSubscription(ctx context.Context, userID int64) (*Checkout, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if err := s.gateway.EnsurePlan(ctx, s.plan); err != nil {
		return nil, fmt.Errorf("ensure plan: %w", err)
	}

	customerRef, err := s.resolveCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	// Unique per attempt so a retried upgrade can never collide with a
	// previous request id on the processor.
	subscriptionID := fmt.Sprintf("SUB-%d-%s", user.ID, uuid.NewString())

	result, err := s.gateway.CreateSubscription(ctx, cashfree.SubscriptionRequest{
		SubscriptionID: subscriptionID,
		PlanID:         s.plan.ID,
		Customer:       s.customerDetails(user, customerRef),
		ReturnURL:      s.returnURL,
		Note:           s.plan.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubscriptionCreationFailed, err)
	}

	if err := s.users.SetBillingSubscriptionRef(user.ID, result.SubscriptionRef); err != nil {
		return nil, fmt.Errorf("persist subscription ref: %w", err)
	}

	s.logger.Info("subscription created",
		"user_id", user.ID,
		"subscription_ref", result.SubscriptionRef,
	)
	return &Checkout{
		SubscriptionRef: result.SubscriptionRef,
		SessionID:       result.SessionID,
	}, nil
}

// resolveCustomer returns the processor-side customer ref for the user,
// creating and persisting one when absent. A resolution failure stops the
// flow; the subscription call must never run with an empty customer ref.
func (s *Service) resolveCustomer(ctx context.Context, user *model.User) (string, error) {
	if user.BillingCustomerRef != nil && *user.BillingCustomerRef != "" {
		return *user.BillingCustomerRef, nil
	}

	ref, err := s.gateway.CreateCustomer(ctx, s.customerDetails(user, ""))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCustomerCreationFailed, err)
	}
	if err := s.users.SetBillingCustomerRef(user.ID, ref); err != nil {
		return "", fmt.Errorf("persist customer ref: %w", err)
	}

	s.logger.Info("billing customer created", "user_id", user.ID, "customer_ref", ref)
	return ref, nil
}

func (s *Service) customerDetails(user *model.User, customerRef string) cashfree.CustomerDetails {
	details := cashfree.CustomerDetails{
		ID:    fmt.Sprintf("%d", user.ID),
		Email: user.Email,
		Name:  fallbackCustomerName,
		Phone: fallbackCustomerPhone,
	}
	if customerRef != "" {
		details.ID = customerRef
	}
	if user.Name != nil && *user.Name != "" {
		details.Name = *user.Name
	}
	if user.Phone != nil && *user.Phone != "" {
		details.Phone = *user.Phone
	}
	return details
}

// GetUserSubscription returns the plan/status view for the user.
func (s *Service) GetUserSubscription(ctx context.Context, userID int64) (*Subscription, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return &Subscription{
		Plan:             user.Plan,
		Status:           user.SubscriptionStatus,
		CurrentPeriodEnd: user.CurrentPeriodEnd,
	}, nil
}

// IsProUser reports whether the user currently gets PRO treatment.
func (s *Service) IsProUser(ctx context.Context, userID int64) (bool, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return false, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return false, ErrUserNotFound
	}
	return user.ProEffective(time.Now()), nil
}
