package users

import "time"

type MeResponse struct {
	User    UserDTO    `json:"user"`
	Billing BillingDTO `json:"billing"`
}

/* ---------- USER ---------- */

type UserDTO struct {
	ID         uint      `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Lastname   string    `json:"lastname"`
	Role       string    `json:"role"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

/* ---------- BILLING ---------- */

type BillingDTO struct {
	Plan          *PlanDTO          `json:"plan"`
	Subscription  *SubscriptionDTO  `json:"subscription"`
	Trial         *TrialDTO         `json:"trial"`
	PendingChange *PendingChangeDTO `json:"pending_change"`
}

type PlanDTO struct {
	ID            uint    `json:"id"`
	Name          string  `json:"name"`
	LookupKey     string  `json:"lookup_key"`
	PlanType      string  `json:"plan_type"`
	BillingPeriod string  `json:"billing_period"`
	Price         float64 `json:"price"`
}

type SubscriptionDTO struct {
	Status           string     `json:"status"`
	IsActive         bool       `json:"is_active"`
	CurrentPeriodEnd *time.Time `json:"current_period_end"`
	CanceledAt       *time.Time `json:"canceled_at"`
}

type TrialDTO struct {
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
	DaysLeft *int       `json:"days_left"`
}

type PendingChangeDTO struct {
	EffectiveAt *time.Time `json:"effective_at"`
	Plan        *PlanDTO   `json:"plan"`
}
