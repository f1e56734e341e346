// Package subscription implements the metering lifecycle shared by the usage,
// report, and billing surfaces: lazy creation of per-user subscription rows,
// lazy billing-period roll-forward, and atomic quota slot accounting.
package subscription

import (
	"context"
	"log/slog"
	"time"

	"equitylens/internal/types"
)

// Store is the persistence dependency of the subscription service.
type Store interface {
	GetByUser(ctx context.Context, userID string) (*types.Subscription, error)
	Create(ctx context.Context, sub *types.Subscription) error
	ResetPeriod(ctx context.Context, userID string, periodStart, periodEnd time.Time) (*types.Subscription, error)
	ConsumeReportSlot(ctx context.Context, userID string) (applied bool, used, limit int, err error)
	ReleaseReportSlot(ctx context.Context, userID string) error
	UpgradeToPro(ctx context.Context, userID string, periodStart, periodEnd, eventTime time.Time) error
}

// Service coordinates the subscription lifecycle. All read paths share the
// same load-create-roll sequence so every surface observes identical quota
// state.
type Service struct {
	store  Store
	logger *slog.Logger

	// clock is injectable for tests; defaults to time.Now.
	clock func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source, used by tests to control period expiry.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// NewService creates the subscription service.
func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:  store,
		logger: logger,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadOrCreate fetches the user's subscription, creating the free-tier default
// on first access. A concurrent first access is resolved by the store's
// insert-if-absent semantics followed by a re-read.
func (s *Service) LoadOrCreate(ctx context.Context, userID string) (*types.Subscription, error) {
	sub, err := s.store.GetByUser(ctx, userID)
	if err == nil {
		return sub, nil
	}
	if !types.IsNotFound(err) {
		return nil, err
	}

	fresh := types.NewFreeSubscription(userID, s.clock().UTC())
	if err := s.store.Create(ctx, fresh); err != nil {
		return nil, err
	}

	// Re-read: a concurrent creator may have won the insert, and the row
	// carries database-assigned timestamps either way.
	return s.store.GetByUser(ctx, userID)
}

// RollForwardIfExpired resets usage and starts a fresh period when the current
// one has elapsed. The reset is best effort on the read path: if it fails, the
// stale row is returned so a display query never hard-fails on a write error.
func (s *Service) RollForwardIfExpired(ctx context.Context, sub *types.Subscription) *types.Subscription {
	now := s.clock().UTC()
	if !sub.PeriodExpired(now) {
		return sub
	}

	reset, err := s.store.ResetPeriod(ctx, sub.UserID, now, now.Add(types.BillingPeriod()))
	if err != nil {
		s.logger.Warn("billing period reset failed, serving stale state",
			slog.String("user_id", sub.UserID),
			slog.Any("error", err),
		)
		return sub
	}
	return reset
}

// Usage returns the current quota snapshot for a user, creating and rolling
// the subscription as needed.
func (s *Service) Usage(ctx context.Context, userID string) (*types.UsageSnapshot, error) {
	sub, err := s.LoadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	sub = s.RollForwardIfExpired(ctx, sub)
	return types.SnapshotOf(sub), nil
}

// AcquireReportSlot claims one report slot for the user after ensuring the row
// exists and the period is current. applied=false means the quota is
// exhausted; used and limit then reflect the counters at rejection time.
func (s *Service) AcquireReportSlot(ctx context.Context, userID string) (applied bool, used, limit int, err error) {
	sub, err := s.LoadOrCreate(ctx, userID)
	if err != nil {
		return false, 0, 0, err
	}

	if sub.PeriodExpired(s.clock().UTC()) {
		now := s.clock().UTC()
		if _, resetErr := s.store.ResetPeriod(ctx, userID, now, now.Add(types.BillingPeriod())); resetErr != nil {
			// Unlike the read path, a failed reset here must surface: claiming
			// a slot against an expired period would misbill the user.
			return false, 0, 0, resetErr
		}
	}

	return s.store.ConsumeReportSlot(ctx, userID)
}

// ReleaseReportSlot returns a claimed slot after a downstream failure.
func (s *Service) ReleaseReportSlot(ctx context.Context, userID string) error {
	return s.store.ReleaseReportSlot(ctx, userID)
}

// UpgradeToPro applies a verified payment event: pro plan, fresh period
// anchored at the event time, usage reset. Stale events are ignored by the
// store's optimistic lock.
func (s *Service) UpgradeToPro(ctx context.Context, userID string, eventTime time.Time) error {
	start := eventTime.UTC()
	return s.store.UpgradeToPro(ctx, userID, start, start.Add(types.BillingPeriod()), start)
}
