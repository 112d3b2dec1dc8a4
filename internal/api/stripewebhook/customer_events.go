package stripewebhook

import (
	"subscription-api/database"
	"subscription-api/internal/domain/subscriptions"

	"github.com/stripe/stripe-go/v75"
)

// handleCustomerDeleted cancels the linked subscription; a deleted customer
// cannot be charged again.
func handleCustomerDeleted(cust *stripe.Customer) error {
	var sub subscriptions.UserSubscription
	if err := database.DB.Where("stripe_customer_id = ?", cust.ID).First(&sub).Error; err != nil {
		return nil
	}

	return svc().CancelLocal(&sub, subscriptions.EventCustomerDeleted,
		"Customer deleted in Stripe",
		map[string]interface{}{"stripe_customer_id": cust.ID})
}

func handlePaymentMethodAttached(pm *stripe.PaymentMethod) error {
	if pm.Customer == nil || pm.Customer.ID == "" {
		return nil
	}

	var sub subscriptions.UserSubscription
	if err := database.DB.Where("stripe_customer_id = ?", pm.Customer.ID).First(&sub).Error; err != nil {
		return nil
	}

	return svc().RecordHistory(sub.ID, subscriptions.EventPaymentMethodAttached,
		"Payment method attached",
		map[string]interface{}{
			"payment_method_id":   pm.ID,
			"payment_method_type": string(pm.Type),
		})
}
