package plans

import "time"

const (
	TypeBasic = "basic"
	TypePro   = "pro"

	PeriodMonthly = "monthly"
	PeriodYearly  = "yearly"
)

type SubscriptionPlan struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `json:"name"`
	PlanType      string    `gorm:"type:varchar(20);uniqueIndex:idx_plans_type_period" json:"plan_type"`
	BillingPeriod string    `gorm:"type:varchar(20);uniqueIndex:idx_plans_type_period" json:"billing_period"`
	Price         float64   `json:"price"`
	StripePriceID string    `gorm:"column:stripe_price_id;not null;uniqueIndex:idx_plans_stripe_price_id" json:"-"`
	LookupKey     string    `gorm:"column:lookup_key;not null;uniqueIndex:idx_plans_lookup_key" json:"lookup_key"`
	IsActive      bool      `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"-"`
}
