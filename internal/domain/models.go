// Package domain defines the persistence models and value types of the
// insight pipeline. Models are mapped with GORM and shared across the
// repository and service layers.
package domain

import "time"

// User is a row owned by the external identity system. The pipeline only
// reads ids from it.
type User struct {
	ID        string    `json:"id"         gorm:"type:varchar(64);primaryKey"`
	Email     string    `json:"email"      gorm:"type:varchar(255)"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_users_listing,priority:1"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Subscription statuses that make a user eligible for periodic reports.
const (
	SubscriptionActive   = "active"
	SubscriptionTrialing = "trialing"
)

// Subscription is the live entitlement record consulted for eligibility.
//
// Fields:
//   - UserID: owner; one subscription row per user.
//   - Status: provider status (active, trialing, past_due, canceled, ...).
//   - CurrentPeriodEnd: end of the paid period; nil means open-ended.
type Subscription struct {
	UserID           string     `json:"user_id"            gorm:"type:varchar(64);primaryKey"`
	Status           string     `json:"status"             gorm:"type:varchar(32);not null;index"`
	CurrentPeriodEnd *time.Time `json:"current_period_end"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Subscription.
func (Subscription) TableName() string { return "subscriptions" }

// JournalEntry is a user-authored entry. Content and Intention are stored
// encrypted; Intention captures the "desired state" the user writes toward.
type JournalEntry struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_journal_user_date,priority:1"`
	EntryDate string    `json:"entry_date" gorm:"type:varchar(10);not null;index:idx_journal_user_date,priority:2"`
	Content   string    `json:"-"          gorm:"type:text;not null"`
	Intention string    `json:"-"          gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for JournalEntry.
func (JournalEntry) TableName() string { return "journal_entries" }

// DailySummary is a pre-aggregated, encrypted summary of one user day. It is
// the source for monthly reports.
type DailySummary struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	UserID      string    `json:"user_id"      gorm:"type:varchar(64);not null;uniqueIndex:ux_daily_user_date,priority:1"`
	SummaryDate string    `json:"summary_date" gorm:"type:varchar(10);not null;uniqueIndex:ux_daily_user_date,priority:2"`
	Summary     string    `json:"-"            gorm:"type:text;not null"`
	Focus       string    `json:"-"            gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for DailySummary.
func (DailySummary) TableName() string { return "daily_summaries" }

// InsightResult is the persisted artifact for one (user, type, period) key.
// The unique index backs the upsert; rows are overwritten, never duplicated.
//
// Fields:
//   - Payload: opaque encrypted JSON (metrics + narrative + metadata).
//   - PeriodStart / PeriodEnd: plaintext YYYY-MM-DD boundaries.
//   - GeneratedAt: time of the latest successful generation.
//   - CreatedAt: set on first insert only; UpdatedAt refreshed on every upsert.
type InsightResult struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	UserID      string    `json:"user_id"      gorm:"type:varchar(64);not null;uniqueIndex:ux_insight_key,priority:1;index:idx_insight_history,priority:1"`
	Type        string    `json:"type"         gorm:"type:varchar(16);not null;uniqueIndex:ux_insight_key,priority:2;index:idx_insight_history,priority:2;check:type IN ('weekly','monthly')"`
	PeriodStart string    `json:"period_start" gorm:"type:varchar(10);not null;uniqueIndex:ux_insight_key,priority:3;index:idx_insight_history,priority:3"`
	PeriodEnd   string    `json:"period_end"   gorm:"type:varchar(10);not null;uniqueIndex:ux_insight_key,priority:4"`
	Payload     string    `json:"-"            gorm:"type:text;not null"`
	GeneratedAt time.Time `json:"generated_at" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"   gorm:"not null"`
	UpdatedAt   time.Time `json:"updated_at"   gorm:"not null"`
}

// TableName returns the database table name for InsightResult.
func (InsightResult) TableName() string { return "insight_results" }
