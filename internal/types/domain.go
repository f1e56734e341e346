// Package types defines the shared domain model for the EquityLens platform:
// subscriptions, reports, companies, usage snapshots, error codes, and the
// request-scoped context helpers used across layers.
package types

import "time"

// PlanTier identifies a subscription plan.
type PlanTier string

const (
	PlanFree PlanTier = "free"
	PlanPro  PlanTier = "pro"
)

// Plan entitlement constants.
const (
	// FreeReportsLimit is the number of reports a free subscription may
	// generate per billing period.
	FreeReportsLimit = 5

	// ProReportsLimit is the sentinel ceiling for pro subscriptions. The
	// product treats pro as "unlimited"; the sentinel keeps the quota gate
	// uniform across tiers.
	ProReportsLimit = 999

	// BillingPeriodDays is the fixed length of a billing period. Periods are
	// always exactly this long at creation and reset time; there is no
	// proration.
	BillingPeriodDays = 30
)

// BillingPeriod returns the standard period duration.
func BillingPeriod() time.Duration {
	return BillingPeriodDays * 24 * time.Hour
}

// Subscription is the per-user metering record. One row exists per user
// identity, created lazily on first access and never deleted.
type Subscription struct {
	UserID             string    `json:"user_id"`
	Plan               PlanTier  `json:"plan"`
	ReportsUsed        int       `json:"reports_used"`
	ReportsLimit       int       `json:"reports_limit"`
	BillingPeriodStart time.Time `json:"billing_period_start"`
	BillingPeriodEnd   time.Time `json:"billing_period_end"`

	// LastEventAt records the provider timestamp of the most recent billing
	// event applied to this row. Upgrade upserts only apply when the incoming
	// event is strictly newer, making webhook replays no-ops.
	LastEventAt *time.Time `json:"last_event_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewFreeSubscription returns the default subscription created on first
// access: free plan, zero usage, a fresh 30-day period starting at now.
func NewFreeSubscription(userID string, now time.Time) *Subscription {
	return &Subscription{
		UserID:             userID,
		Plan:               PlanFree,
		ReportsUsed:        0,
		ReportsLimit:       FreeReportsLimit,
		BillingPeriodStart: now,
		BillingPeriodEnd:   now.Add(BillingPeriod()),
	}
}

// PeriodExpired reports whether the billing period has elapsed at the given
// instant.
func (s *Subscription) PeriodExpired(now time.Time) bool {
	return now.After(s.BillingPeriodEnd)
}

// CanGenerate is the quota gate: true while usage is below the plan ceiling.
func (s *Subscription) CanGenerate() bool {
	return s.ReportsUsed < s.ReportsLimit
}

// UsageSnapshot is the read-only quota projection returned by the usage
// endpoint. RemainingReports is always ReportsLimit - ReportsUsed.
type UsageSnapshot struct {
	CanGenerate      bool `json:"canGenerate"`
	ReportsUsed      int  `json:"reportsUsed"`
	ReportsLimit     int  `json:"reportsLimit"`
	RemainingReports int  `json:"remainingReports"`
}

// SnapshotOf projects a subscription into its usage snapshot.
func SnapshotOf(s *Subscription) *UsageSnapshot {
	return &UsageSnapshot{
		CanGenerate:      s.CanGenerate(),
		ReportsUsed:      s.ReportsUsed,
		ReportsLimit:     s.ReportsLimit,
		RemainingReports: s.ReportsLimit - s.ReportsUsed,
	}
}

// Report is an append-only research report row. Reports are never mutated or
// deleted by the service.
type Report struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	CompanyName string    `json:"company_name"`
	Ticker      string    `json:"ticker"` // normalized upper-case
	Content     string    `json:"report_content"`
	CreatedAt   time.Time `json:"created_at"`
}

// Company is a searchable listing of a publicly traded company.
type Company struct {
	ID       int64  `json:"id"`
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	Exchange string `json:"exchange,omitempty"`
	Sector   string `json:"sector,omitempty"`
	Country  string `json:"country,omitempty"`
}
