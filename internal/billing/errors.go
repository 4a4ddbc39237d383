package billing

import "errors"

var (
	// ErrUserNotFound means the local user row is absent; surfaced to the
	// caller as-is, never retried.
	ErrUserNotFound = errors.New("user not found")

	// ErrCustomerCreationFailed and ErrSubscriptionCreationFailed identify
	// which step of the upgrade flow failed against the processor.
	ErrCustomerCreationFailed     = errors.New("customer creation failed")
	ErrSubscriptionCreationFailed = errors.New("subscription creation failed")
)
