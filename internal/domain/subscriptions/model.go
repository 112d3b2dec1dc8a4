package subscriptions

import (
	"time"

	"subscription-api/internal/domain/plans"
	"subscription-api/internal/domain/users"
)

// Local status values. These mirror the Stripe subscription statuses we care
// about so webhook payloads map onto rows without translation tables.
const (
	StatusTrialing = "trialing"
	StatusActive   = "active"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
	StatusUnpaid   = "unpaid"
	StatusPaused   = "paused"
)

type UserSubscription struct {
	ID     uint       `gorm:"primaryKey" json:"id"`
	UserID uint       `gorm:"uniqueIndex:idx_subscriptions_user_id" json:"user_id"`
	User   users.User `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	PlanID uint                    `json:"-"`
	Plan   *plans.SubscriptionPlan `json:"plan,omitempty"`

	Status string `gorm:"type:varchar(20);default:'trialing'" json:"status"`

	StripeSubscriptionID *string `gorm:"column:stripe_subscription_id;uniqueIndex:idx_subscriptions_stripe_id" json:"-"`
	StripeCustomerID     *string `gorm:"column:stripe_customer_id;index" json:"-"`

	TrialStartAt *time.Time `gorm:"column:trial_start_at" json:"trial_start_at"`
	TrialEndAt   *time.Time `gorm:"column:trial_end_at" json:"trial_end_at"`

	CurrentPeriodStart *time.Time `gorm:"column:current_period_start" json:"current_period_start"`
	CurrentPeriodEnd   *time.Time `gorm:"column:current_period_end" json:"current_period_end"`

	// Pending downgrade, applied by Stripe at the next period boundary.
	PendingPlanID        *uint                   `gorm:"column:pending_plan_id" json:"-"`
	PendingPlan          *plans.SubscriptionPlan `gorm:"foreignKey:PendingPlanID" json:"pending_plan,omitempty"`
	PendingPlanStartDate *time.Time              `gorm:"column:pending_plan_start_date" json:"pending_plan_start_date,omitempty"`
	StripeScheduleID     *string                 `gorm:"column:stripe_schedule_id" json:"-"`

	CanceledAt *time.Time `json:"canceled_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"-"`
}

// IsTrialActive reports whether the trial window is still running.
func (s *UserSubscription) IsTrialActive(now time.Time) bool {
	return s.Status == StatusTrialing && s.TrialEndAt != nil && now.Before(*s.TrialEndAt)
}

// IsSubscriptionActive reports whether the user currently has access,
// either through a running trial or a paid period.
func (s *UserSubscription) IsSubscriptionActive(now time.Time) bool {
	if s.Status != StatusTrialing && s.Status != StatusActive {
		return false
	}
	if s.IsTrialActive(now) {
		return true
	}
	return s.CurrentPeriodEnd != nil && now.Before(*s.CurrentPeriodEnd)
}

// DaysRemainingInTrial returns whole days left in the trial, never negative.
func (s *UserSubscription) DaysRemainingInTrial(now time.Time) int {
	if !s.IsTrialActive(now) {
		return 0
	}
	days := int(s.TrialEndAt.Sub(now).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
