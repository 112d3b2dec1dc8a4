package stripewebhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"subscription-api/config"
	"subscription-api/database"
	"subscription-api/internal/domain/subscriptions"
	"subscription-api/internal/infra/stripeapi"
	"subscription-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
	"gorm.io/gorm"
)

// gateway is swapped for a fake in tests.
var gateway stripeapi.Gateway = stripeapi.Live{}

func svc() *service.SubscriptionService {
	return service.New(database.DB, gateway)
}

func StripeWebhook(c *gin.Context) {
	// Stripe key is required for follow-up API calls (subscription.Get during sync).
	stripe.Key = config.STRIPE_SECRET_KEY
	if stripe.Key == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "STRIPE_SECRET_KEY not configured"})
		return
	}

	endpointSecret := config.STRIPE_WEBHOOK_SECRET
	if endpointSecret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "STRIPE_WEBHOOK_SECRET not configured"})
		return
	}

	payload, err := readStripeBody(c, 65536)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		payload,
		c.GetHeader("Stripe-Signature"),
		endpointSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		log.Println("Stripe signature verification failed:", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
		return
	}

	// At-most-once: record the event id before running handlers. A replay of
	// a processed event is acknowledged without side effects; an unprocessed
	// row means a previous attempt failed and the handlers run again.
	var record subscriptions.WebhookEvent
	err = database.DB.Where("stripe_event_id = ?", event.ID).First(&record).Error
	switch {
	case err == nil:
		if record.Processed {
			c.JSON(http.StatusOK, gin.H{"status": "already_processed"})
			return
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		record = subscriptions.WebhookEvent{
			StripeEventID: event.ID,
			EventType:     string(event.Type),
			Payload:       event.Data.Raw,
		}
		if err := database.DB.Create(&record).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record event"})
			return
		}
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up event"})
		return
	}

	if err := processEvent(&event); err != nil {
		// processed stays false so Stripe's retry re-runs the handlers.
		log.Printf("Error processing webhook event %s (%s): %v", event.Type, event.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := database.DB.Model(&subscriptions.WebhookEvent{}).
		Where("id = ?", record.ID).
		Update("processed", true).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark event processed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "event_id": event.ID, "event_type": event.Type})
}

// processEvent dispatches one verified event to its handler. Unhandled types
// are acknowledged so Stripe stops retrying them.
func processEvent(event *stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("failed to parse checkout session: %w", err)
		}
		return handleCheckoutSessionCompleted(&session)

	case "checkout.session.expired",
		"checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("failed to parse checkout session: %w", err)
		}
		log.Printf("Checkout session %s: %s", event.Type, session.ID)
		return nil

	case "customer.subscription.created":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("failed to parse subscription: %w", err)
		}
		return handleSubscriptionCreated(&sub)

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("failed to parse subscription: %w", err)
		}
		return handleSubscriptionUpdated(&sub)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("failed to parse subscription: %w", err)
		}
		return handleSubscriptionDeleted(&sub)

	case "customer.subscription.paused":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("failed to parse subscription: %w", err)
		}
		return handleSubscriptionPaused(&sub)

	case "customer.subscription.trial_will_end":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("failed to parse subscription: %w", err)
		}
		return handleTrialWillEnd(&sub)

	case "invoice.created":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return fmt.Errorf("failed to parse invoice: %w", err)
		}
		return handleInvoiceCreated(&invoice)

	case "invoice.paid":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return fmt.Errorf("failed to parse invoice: %w", err)
		}
		return handleInvoicePaid(&invoice)

	case "invoice.payment_succeeded":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return fmt.Errorf("failed to parse invoice: %w", err)
		}
		return handlePaymentSucceeded(&invoice)

	case "invoice.payment_failed":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return fmt.Errorf("failed to parse invoice: %w", err)
		}
		return handlePaymentFailed(&invoice)

	case "customer.created", "customer.updated":
		var cust stripe.Customer
		if err := json.Unmarshal(event.Data.Raw, &cust); err != nil {
			return fmt.Errorf("failed to parse customer: %w", err)
		}
		log.Printf("Stripe customer %s: %s", event.Type, cust.ID)
		return nil

	case "customer.deleted":
		var cust stripe.Customer
		if err := json.Unmarshal(event.Data.Raw, &cust); err != nil {
			return fmt.Errorf("failed to parse customer: %w", err)
		}
		return handleCustomerDeleted(&cust)

	case "payment_method.attached":
		var pm stripe.PaymentMethod
		if err := json.Unmarshal(event.Data.Raw, &pm); err != nil {
			return fmt.Errorf("failed to parse payment method: %w", err)
		}
		return handlePaymentMethodAttached(&pm)

	default:
		log.Printf("Unhandled webhook event type: %s", event.Type)
		return nil
	}
}

func readStripeBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
