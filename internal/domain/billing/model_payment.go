package billing

import (
	"time"

	"subscription-api/internal/domain/plans"
	"subscription-api/internal/domain/users"
)

// Payment is one paid Stripe invoice, recorded from invoice webhooks.
type Payment struct {
	ID                   uint                    `gorm:"primaryKey" json:"id"`
	UserID               uint                    `json:"-"`
	User                 users.User              `json:"-"`
	PlanID               *uint                   `json:"-"`
	Plan                 *plans.SubscriptionPlan `json:"plan,omitempty"`
	StripeInvoiceID      string                  `gorm:"uniqueIndex" json:"invoice_id"`
	StripeSubscriptionID *string                 `json:"-"`
	Amount               float64                 `json:"amount"`
	Currency             string                  `json:"currency"`
	Status               string                  `json:"status"`
	HostedInvoiceURL     *string                 `json:"hosted_invoice_url,omitempty"`
	CreatedAt            time.Time               `json:"created_at"`
}
