package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"equitylens/internal/types"
)

// SubscriptionRepo manages per-user metering rows.
//
// Key invariants:
//   - ConsumeReportSlot increments usage atomically with a conditional UPDATE
//     so concurrent generations can never push usage past the plan limit.
//   - UpgradeToPro uses optimistic locking via last_event_at to handle
//     out-of-order and replayed billing webhooks.
type SubscriptionRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewSubscriptionRepo creates a new SubscriptionRepo backed by the given
// database connection (pool or transaction).
func NewSubscriptionRepo(db DBTX, logger *slog.Logger) *SubscriptionRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionRepo{db: db, logger: logger}
}

const subscriptionColumns = `user_id, plan, reports_used, reports_limit,
	billing_period_start, billing_period_end, last_event_at, created_at, updated_at`

func scanSubscription(row pgx.Row) (*types.Subscription, error) {
	var s types.Subscription
	err := row.Scan(
		&s.UserID,
		&s.Plan,
		&s.ReportsUsed,
		&s.ReportsLimit,
		&s.BillingPeriodStart,
		&s.BillingPeriodEnd,
		&s.LastEventAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByUser fetches the subscription row for a user.
// Returns ErrCodeNotFoundSubscription when no row exists yet.
func (r *SubscriptionRepo) GetByUser(ctx context.Context, userID string) (*types.Subscription, error) {
	sub, err := scanSubscription(r.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE user_id = $1`,
		userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSubscription, "subscription not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to fetch subscription", err)
	}
	return sub, nil
}

// Create inserts a new subscription row. A concurrent insert for the same user
// is tolerated: ON CONFLICT DO NOTHING makes the first writer win, and callers
// re-read the row afterward.
func (r *SubscriptionRepo) Create(ctx context.Context, sub *types.Subscription) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO subscriptions
		     (user_id, plan, reports_used, reports_limit,
		      billing_period_start, billing_period_end, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		 ON CONFLICT (user_id) DO NOTHING`,
		sub.UserID,
		sub.Plan,
		sub.ReportsUsed,
		sub.ReportsLimit,
		sub.BillingPeriodStart,
		sub.BillingPeriodEnd,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create subscription", err)
	}
	return nil
}

// ResetPeriod rolls the billing period forward: usage back to zero and a fresh
// 30-day window starting at periodStart. The WHERE clause re-checks expiry so
// two concurrent resets cannot both fire; a stale caller becomes a no-op.
func (r *SubscriptionRepo) ResetPeriod(ctx context.Context, userID string, periodStart, periodEnd time.Time) (*types.Subscription, error) {
	sub, err := scanSubscription(r.db.QueryRow(ctx,
		`UPDATE subscriptions
		 SET reports_used = 0,
		     billing_period_start = $2,
		     billing_period_end = $3,
		     updated_at = NOW()
		 WHERE user_id = $1
		   AND billing_period_end < $2
		 RETURNING `+subscriptionColumns,
		userID,
		periodStart,
		periodEnd,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Another request already rolled the period forward.
			return r.GetByUser(ctx, userID)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to reset billing period", err)
	}
	return sub, nil
}

// ConsumeReportSlot atomically claims one report slot. The conditional UPDATE
// is the quota gate: it only increments while usage is strictly below the
// limit, so N concurrent callers on a subscription with one slot left produce
// exactly one applied=true result.
//
// Returns applied=false with the current counters when the quota is exhausted.
func (r *SubscriptionRepo) ConsumeReportSlot(ctx context.Context, userID string) (applied bool, used, limit int, err error) {
	row := r.db.QueryRow(ctx,
		`UPDATE subscriptions
		 SET reports_used = reports_used + 1,
		     updated_at = NOW()
		 WHERE user_id = $1
		   AND reports_used < reports_limit
		 RETURNING reports_used, reports_limit`,
		userID,
	)
	if scanErr := row.Scan(&used, &limit); scanErr != nil {
		if !errors.Is(scanErr, pgx.ErrNoRows) {
			return false, 0, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to consume report slot", scanErr)
		}

		// No row matched: either the quota is exhausted or the row is missing.
		sub, getErr := r.GetByUser(ctx, userID)
		if getErr != nil {
			return false, 0, 0, getErr
		}
		return false, sub.ReportsUsed, sub.ReportsLimit, nil
	}
	return true, used, limit, nil
}

// ReleaseReportSlot returns a previously claimed slot, used when generation or
// persistence fails after the slot was consumed. Clamped at zero so a stray
// release can never drive the counter negative.
func (r *SubscriptionRepo) ReleaseReportSlot(ctx context.Context, userID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE subscriptions
		 SET reports_used = GREATEST(reports_used - 1, 0),
		     updated_at = NOW()
		 WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to release report slot", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSubscription, "subscription not found", nil)
	}
	return nil
}

// UpgradeToPro upserts the subscription to the pro plan with a fresh billing
// period and zeroed usage.
//
// Invariants enforced:
//  1. Upsert: users who pay before ever touching the API get a row created
//     directly on the pro plan.
//  2. Optimistic locking: the update only applies if eventTime is strictly
//     newer than the stored last_event_at. Replayed or out-of-order webhook
//     deliveries are silently ignored (idempotent no-op).
func (r *SubscriptionRepo) UpgradeToPro(ctx context.Context, userID string, periodStart, periodEnd, eventTime time.Time) error {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO subscriptions
		     (user_id, plan, reports_used, reports_limit,
		      billing_period_start, billing_period_end, last_event_at, created_at, updated_at)
		 VALUES ($1, $2, 0, $3, $4, $5, $6, NOW(), NOW())
		 ON CONFLICT (user_id) DO UPDATE
		 SET plan = EXCLUDED.plan,
		     reports_used = 0,
		     reports_limit = EXCLUDED.reports_limit,
		     billing_period_start = EXCLUDED.billing_period_start,
		     billing_period_end = EXCLUDED.billing_period_end,
		     last_event_at = EXCLUDED.last_event_at,
		     updated_at = NOW()
		 WHERE subscriptions.last_event_at IS NULL
		    OR subscriptions.last_event_at < EXCLUDED.last_event_at`,
		userID,
		types.PlanPro,
		types.ProReportsLimit,
		periodStart,
		periodEnd,
		eventTime,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upgrade subscription", err)
	}

	if tag.RowsAffected() == 0 {
		// Event is older than or equal to what we already applied.
		r.logger.Info("stale billing event ignored (optimistic lock)",
			slog.String("user_id", userID),
			slog.Time("event_time", eventTime),
		)
		return nil
	}

	return nil
}
