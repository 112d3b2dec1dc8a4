package stripewebhook

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"subscription-api/database"
	"subscription-api/internal/domain/plans"
	"subscription-api/internal/domain/subscriptions"
	"subscription-api/internal/domain/users"
	"subscription-api/internal/infra/mailer"
	"subscription-api/internal/infra/stripeapi"

	"github.com/stripe/stripe-go/v75"
	"gorm.io/gorm"
)

// handleSubscriptionCreated links a Stripe subscription to a local record.
// The checkout and create paths stamp metadata with user_id and
// plan_lookup_key; without them there is nothing to link, so the event is
// acknowledged and dropped.
func handleSubscriptionCreated(stripeSub *stripe.Subscription) error {
	userID := userIDFromMetadata(stripeSub.Metadata)
	if userID == 0 {
		log.Printf("subscription.created %s without user_id metadata, skipping", stripeSub.ID)
		return nil
	}

	var user users.User
	if err := database.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		// Acknowledge to avoid Stripe retries if the user was deleted.
		return nil
	}

	var plan plans.SubscriptionPlan
	lookupKey := stripeSub.Metadata["plan_lookup_key"]
	if lookupKey != "" {
		if err := database.DB.Where("lookup_key = ?", lookupKey).First(&plan).Error; err != nil {
			return fmt.Errorf("plan not found for lookup_key=%s: %w", lookupKey, err)
		}
	} else {
		if stripeSub.Items == nil || len(stripeSub.Items.Data) == 0 || stripeSub.Items.Data[0].Price == nil {
			return errors.New("subscription missing items/price")
		}
		priceID := stripeSub.Items.Data[0].Price.ID
		if err := database.DB.Where("stripe_price_id = ?", priceID).First(&plan).Error; err != nil {
			return fmt.Errorf("plan not found for stripe price_id=%s: %w", priceID, err)
		}
	}

	periodStart := time.Unix(stripeSub.CurrentPeriodStart, 0)
	periodEnd := time.Unix(stripeSub.CurrentPeriodEnd, 0)
	status := stripeapi.NormalizeStatus(string(stripeSub.Status))

	var sub subscriptions.UserSubscription
	err := database.DB.Where("user_id = ?", user.ID).First(&sub).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		sub = subscriptions.UserSubscription{
			UserID:               user.ID,
			PlanID:               plan.ID,
			Status:               status,
			StripeSubscriptionID: &stripeSub.ID,
			CurrentPeriodStart:   &periodStart,
			CurrentPeriodEnd:     &periodEnd,
		}
		if stripeSub.Customer != nil && stripeSub.Customer.ID != "" {
			sub.StripeCustomerID = &stripeSub.Customer.ID
		}
		if stripeSub.TrialStart > 0 {
			ts := time.Unix(stripeSub.TrialStart, 0)
			sub.TrialStartAt = &ts
		}
		if stripeSub.TrialEnd > 0 {
			te := time.Unix(stripeSub.TrialEnd, 0)
			sub.TrialEndAt = &te
		}
		if err := database.DB.Create(&sub).Error; err != nil {
			return fmt.Errorf("failed to create subscription record: %w", err)
		}
	case err != nil:
		return err
	default:
		updates := map[string]interface{}{
			"plan_id":                plan.ID,
			"stripe_subscription_id": stripeSub.ID,
			"current_period_start":   periodStart,
			"current_period_end":     periodEnd,
		}
		if stripeSub.Customer != nil && stripeSub.Customer.ID != "" {
			updates["stripe_customer_id"] = stripeSub.Customer.ID
		}
		if err := database.DB.Model(&subscriptions.UserSubscription{}).
			Where("id = ?", sub.ID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update subscription record: %w", err)
		}
	}

	return svc().RecordHistory(sub.ID, subscriptions.EventCreated,
		"Subscription created via Stripe",
		map[string]interface{}{"stripe_subscription_id": stripeSub.ID})
}

func handleSubscriptionUpdated(stripeSub *stripe.Subscription) error {
	if stripeSub.ID == "" {
		return errors.New("subscription missing id")
	}
	sub, err := svc().SyncStripeSubscription(stripeSub.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// No local record to reconcile; acknowledge.
		return nil
	}
	if err != nil {
		return err
	}

	// A schedule-driven plan change lands here: if the active price now
	// matches the pending plan, promote it and clear the pending state.
	if sub.PendingPlanID != nil && stripeSub.Items != nil && len(stripeSub.Items.Data) > 0 && stripeSub.Items.Data[0].Price != nil {
		var pending plans.SubscriptionPlan
		if err := database.DB.First(&pending, *sub.PendingPlanID).Error; err == nil &&
			pending.StripePriceID == stripeSub.Items.Data[0].Price.ID {
			if err := database.DB.Model(&subscriptions.UserSubscription{}).
				Where("id = ?", sub.ID).
				Updates(map[string]interface{}{
					"plan_id":                 pending.ID,
					"pending_plan_id":         nil,
					"pending_plan_start_date": nil,
					"stripe_schedule_id":      nil,
				}).Error; err != nil {
				return err
			}
			return svc().RecordHistory(sub.ID, subscriptions.EventPlanChanged,
				fmt.Sprintf("Scheduled change to %s took effect", pending.Name),
				map[string]interface{}{"new_plan": pending.LookupKey})
		}
	}
	return nil
}

func handleSubscriptionDeleted(stripeSub *stripe.Subscription) error {
	if stripeSub.ID == "" {
		return nil
	}

	var sub subscriptions.UserSubscription
	if err := database.DB.Where("stripe_subscription_id = ?", stripeSub.ID).First(&sub).Error; err != nil {
		return nil
	}

	return svc().CancelLocal(&sub, subscriptions.EventCanceled,
		"Subscription canceled via Stripe",
		map[string]interface{}{"stripe_subscription_id": stripeSub.ID})
}

func handleSubscriptionPaused(stripeSub *stripe.Subscription) error {
	var sub subscriptions.UserSubscription
	if err := database.DB.Where("stripe_subscription_id = ?", stripeSub.ID).First(&sub).Error; err != nil {
		return nil
	}

	if err := database.DB.Model(&subscriptions.UserSubscription{}).
		Where("id = ?", sub.ID).
		Update("status", subscriptions.StatusPaused).Error; err != nil {
		return err
	}

	return svc().RecordHistory(sub.ID, subscriptions.EventPaused,
		"Subscription paused",
		map[string]interface{}{"stripe_subscription_id": stripeSub.ID})
}

func handleTrialWillEnd(stripeSub *stripe.Subscription) error {
	var sub subscriptions.UserSubscription
	if err := database.DB.Preload("User").Preload("Plan").
		Where("stripe_subscription_id = ?", stripeSub.ID).First(&sub).Error; err != nil {
		return nil
	}

	if err := svc().RecordHistory(sub.ID, subscriptions.EventTrialWillEnd,
		"Trial period will end soon",
		map[string]interface{}{"stripe_subscription_id": stripeSub.ID}); err != nil {
		return err
	}

	planName := "subscription"
	if sub.Plan != nil {
		planName = sub.Plan.Name
	}
	if err := mailer.SendTrialEndingEmail(sub.User.Email, planName); err != nil {
		log.Println("Failed to send trial reminder:", err)
	}
	return nil
}

func userIDFromMetadata(md map[string]string) uint {
	if md == nil {
		return 0
	}
	s := md["user_id"]
	if s == "" {
		return 0
	}
	uid, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return uint(uid)
}
