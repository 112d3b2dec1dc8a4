package stripewebhook

import (
	"fmt"

	"subscription-api/database"
	"subscription-api/internal/domain/billing"
	"subscription-api/internal/domain/subscriptions"

	"github.com/stripe/stripe-go/v75"
)

func subscriptionForInvoice(invoice *stripe.Invoice) (*subscriptions.UserSubscription, bool) {
	if invoice.Subscription == nil || invoice.Subscription.ID == "" {
		return nil, false
	}
	var sub subscriptions.UserSubscription
	if err := database.DB.Where("stripe_subscription_id = ?", invoice.Subscription.ID).First(&sub).Error; err != nil {
		return nil, false
	}
	return &sub, true
}

func handleInvoiceCreated(invoice *stripe.Invoice) error {
	sub, ok := subscriptionForInvoice(invoice)
	if !ok {
		return nil
	}
	return svc().RecordHistory(sub.ID, subscriptions.EventInvoiceCreated,
		"Invoice created",
		map[string]interface{}{"invoice_id": invoice.ID})
}

// handleInvoicePaid moves past_due subscriptions back to active once the
// outstanding invoice settles.
func handleInvoicePaid(invoice *stripe.Invoice) error {
	sub, ok := subscriptionForInvoice(invoice)
	if !ok {
		return nil
	}

	if sub.Status == subscriptions.StatusPastDue {
		if err := database.DB.Model(&subscriptions.UserSubscription{}).
			Where("id = ?", sub.ID).
			Update("status", subscriptions.StatusActive).Error; err != nil {
			return err
		}
	}

	return svc().RecordHistory(sub.ID, subscriptions.EventInvoicePaid,
		"Invoice paid",
		map[string]interface{}{"invoice_id": invoice.ID})
}

// handlePaymentSucceeded activates trialing subscriptions on their first
// successful charge, logs the renewal, and records the payment row.
func handlePaymentSucceeded(invoice *stripe.Invoice) error {
	sub, ok := subscriptionForInvoice(invoice)
	if !ok {
		return nil
	}

	if sub.Status == subscriptions.StatusTrialing {
		if err := database.DB.Model(&subscriptions.UserSubscription{}).
			Where("id = ?", sub.ID).
			Update("status", subscriptions.StatusActive).Error; err != nil {
			return err
		}
		if err := svc().RecordHistory(sub.ID, subscriptions.EventActivated,
			"Subscription activated after successful payment", nil); err != nil {
			return err
		}
	}

	if err := svc().RecordHistory(sub.ID, subscriptions.EventRenewed,
		"Subscription renewed",
		map[string]interface{}{"invoice_id": invoice.ID}); err != nil {
		return err
	}

	return recordPayment(sub, invoice)
}

func handlePaymentFailed(invoice *stripe.Invoice) error {
	sub, ok := subscriptionForInvoice(invoice)
	if !ok {
		return nil
	}

	if err := database.DB.Model(&subscriptions.UserSubscription{}).
		Where("id = ?", sub.ID).
		Update("status", subscriptions.StatusPastDue).Error; err != nil {
		return err
	}

	return svc().RecordHistory(sub.ID, subscriptions.EventPaymentFailed,
		"Payment failed",
		map[string]interface{}{"invoice_id": invoice.ID})
}

// recordPayment upserts by invoice id so retried events stay idempotent.
func recordPayment(sub *subscriptions.UserSubscription, invoice *stripe.Invoice) error {
	payment := billing.Payment{
		UserID:               sub.UserID,
		StripeInvoiceID:      invoice.ID,
		StripeSubscriptionID: sub.StripeSubscriptionID,
		Amount:               float64(invoice.AmountPaid) / 100.0,
		Currency:             string(invoice.Currency),
		Status:               string(invoice.Status),
	}
	if sub.PlanID != 0 {
		planID := sub.PlanID
		payment.PlanID = &planID
	}
	if invoice.HostedInvoiceURL != "" {
		payment.HostedInvoiceURL = &invoice.HostedInvoiceURL
	}

	if err := database.DB.
		Where("stripe_invoice_id = ?", invoice.ID).
		FirstOrCreate(&payment).Error; err != nil {
		return fmt.Errorf("failed to record payment: %w", err)
	}
	return nil
}
