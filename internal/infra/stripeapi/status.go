package stripeapi

import (
	"strings"

	"subscription-api/internal/domain/subscriptions"
)

// NormalizeStatus maps a Stripe subscription status onto the local enum.
// Unknown values fall back to active: Stripe only sends statuses for
// subscriptions that exist, and treating an unrecognized one as dead would
// lock paying users out.
func NormalizeStatus(s string) string {
	switch strings.TrimSpace(s) {
	case "trialing":
		return subscriptions.StatusTrialing
	case "active":
		return subscriptions.StatusActive
	case "past_due":
		return subscriptions.StatusPastDue
	case "unpaid":
		return subscriptions.StatusUnpaid
	case "canceled", "incomplete_expired":
		return subscriptions.StatusCanceled
	case "paused":
		return subscriptions.StatusPaused
	default:
		return subscriptions.StatusActive
	}
}
