package subscriptions

import "time"

// History event types, append-only.
const (
	EventCreated               = "created"
	EventTrialStarted          = "trial_started"
	EventTrialEnded            = "trial_ended"
	EventTrialWillEnd          = "trial_will_end"
	EventActivated             = "activated"
	EventRenewed               = "renewed"
	EventCanceled              = "canceled"
	EventPaused                = "paused"
	EventPaymentFailed         = "payment_failed"
	EventPlanChanged           = "plan_changed"
	EventStatusChanged         = "status_changed"
	EventCheckoutCompleted     = "checkout_completed"
	EventInvoiceCreated        = "invoice_created"
	EventInvoicePaid           = "invoice_paid"
	EventCustomerDeleted       = "customer_deleted"
	EventPaymentMethodAttached = "payment_method_attached"
)

type SubscriptionHistory struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	SubscriptionID uint             `gorm:"index" json:"-"`
	Subscription   UserSubscription `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	EventType      string           `gorm:"type:varchar(40);index" json:"event_type"`
	Description    string           `json:"description"`
	Metadata       string           `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}
