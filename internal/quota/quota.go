// Package quota is admission control for AI-backed actions: a per-user daily
// counter compared against a plan-dependent ceiling, plus the scheduled
// midnight reset.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vectorlabs/vector/internal/model"
	"github.com/vectorlabs/vector/internal/store"
)

// ErrQuotaExceeded means the user's daily ceiling is reached. The caller must
// not perform the AI action.
var ErrQuotaExceeded = errors.New("daily request limit reached")

// Limits holds the per-plan daily ceilings.
type Limits struct {
	FreePerDay int
	ProPerDay  int
}

// DefaultLimits mirrors the product's shipped plan tiers.
var DefaultLimits = Limits{FreePerDay: 5, ProPerDay: 100}

type Gate struct {
	users  *store.UserStore
	limits Limits
}

func NewGate(users *store.UserStore, limits Limits) *Gate {
	if limits.FreePerDay <= 0 {
		limits.FreePerDay = DefaultLimits.FreePerDay
	}
	if limits.ProPerDay <= 0 {
		limits.ProPerDay = DefaultLimits.ProPerDay
	}
	return &Gate{users: users, limits: limits}
}

// Ceiling returns the user's daily limit. A PRO plan only earns the PRO
// ceiling while its status is ACTIVE and its period end has not lapsed;
// otherwise the FREE ceiling applies.
func (g *Gate) Ceiling(u *model.User, now time.Time) int {
	if u.ProEffective(now) {
		return g.limits.ProPerDay
	}
	return g.limits.FreePerDay
}

// Check fails with ErrQuotaExceeded once requests_today has reached the
// user's ceiling. It performs no mutation.
func (g *Gate) Check(u *model.User, now time.Time) error {
	if u.RequestsToday >= g.Ceiling(u, now) {
		return ErrQuotaExceeded
	}
	return nil
}

// Record counts one successful AI-backed action. It runs after the external
// action, so a crash in between under-counts rather than charging the user
// for work that never happened.
func (g *Gate) Record(userID int64) error {
	if err := g.users.IncrementRequestsToday(userID); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// Do composes Check, the caller's action, and Record. The action's error is
// returned unchanged and leaves the counter untouched.
func (g *Gate) Do(ctx context.Context, userID int64, action func(context.Context) error) error {
	user, err := g.users.GetByID(userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("load user: no row for id %d", userID)
	}
	if err := g.Check(user, time.Now()); err != nil {
		return err
	}
	if err := action(ctx); err != nil {
		return err
	}
	return g.Record(userID)
}
