package stripewebhook

import (
	"errors"
	"log"

	"subscription-api/internal/domain/subscriptions"

	"github.com/stripe/stripe-go/v75"
	"gorm.io/gorm"
)

// handleCheckoutSessionCompleted reconciles the subscription created by a
// Checkout flow against canonical Stripe state and logs the completion.
// subscription.created usually lands first and creates the local row; when
// it hasn't yet, acknowledging here is fine because that event will.
func handleCheckoutSessionCompleted(session *stripe.CheckoutSession) error {
	if session.Mode != stripe.CheckoutSessionModeSubscription {
		log.Printf("Checkout session completed (non-subscription mode): %s", session.ID)
		return nil
	}
	if session.Subscription == nil || session.Subscription.ID == "" {
		// Nothing to link; retrying will never attach one.
		log.Printf("Checkout session %s completed without a subscription, skipping", session.ID)
		return nil
	}

	sub, err := svc().SyncStripeSubscription(session.Subscription.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	return svc().RecordHistory(sub.ID, subscriptions.EventCheckoutCompleted,
		"Checkout session completed",
		map[string]interface{}{"checkout_session_id": session.ID})
}
