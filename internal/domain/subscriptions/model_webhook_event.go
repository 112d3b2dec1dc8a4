package subscriptions

import "time"

// WebhookEvent records every Stripe event we have seen. The unique event id
// plus the processed flag give at-most-once handling: a failed handler leaves
// processed=false so a Stripe retry re-runs it.
type WebhookEvent struct {
	ID            uint      `gorm:"primaryKey"`
	StripeEventID string    `gorm:"column:stripe_event_id;not null;uniqueIndex:idx_webhook_events_stripe_id"`
	EventType     string    `gorm:"type:varchar(100);index"`
	Processed     bool      `gorm:"default:false"`
	Payload       []byte    `gorm:"type:jsonb"`
	CreatedAt     time.Time
}
