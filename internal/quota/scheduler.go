package quota

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vectorlabs/vector/internal/store"
)

// ResetScheduler zeroes every user's daily counter once per calendar day at
// local midnight. The reset is a single bulk statement, so overlapping or
// repeated runs within a window are harmless.
type ResetScheduler struct {
	mu     sync.RWMutex
	users  *store.UserStore
	logger *slog.Logger
	now    func() time.Time
	cancel context.CancelFunc
	done   chan struct{}
}

func NewResetScheduler(users *store.UserStore, logger *slog.Logger) *ResetScheduler {
	return &ResetScheduler{
		users:  users,
		logger: logger,
		now:    time.Now,
	}
}

// Start begins the reset loop.
func (s *ResetScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		for {
			timer := time.NewTimer(s.untilNextMidnight())
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				s.RunNow()
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *ResetScheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// RunNow performs one reset immediately. A failed run is logged and left to
// the next tick; the bulk update cannot partially apply.
func (s *ResetScheduler) RunNow() {
	n, err := s.users.ResetAllRequestCounters(s.now())
	if err != nil {
		s.logger.Error("daily quota reset failed", "error", err)
		return
	}
	s.logger.Info("daily quota reset", "users", n)
}

func (s *ResetScheduler) untilNextMidnight() time.Duration {
	now := s.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	return next.Sub(now)
}
