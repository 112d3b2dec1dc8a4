package subscription

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"subscription-api/config"
	"subscription-api/database"
	"subscription-api/internal/domain/plans"
	"subscription-api/internal/domain/subscriptions"
	"subscription-api/internal/domain/users"
	"subscription-api/internal/infra/stripeapi"
	"subscription-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v75"
	"gorm.io/gorm"
)

// gw is swapped for a fake in tests.
var gw stripeapi.Gateway = stripeapi.Live{}

func svc() *service.SubscriptionService {
	return service.New(database.DB, gw)
}

func GetMySubscription(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	var sub subscriptions.UserSubscription
	if err := database.DB.
		Preload("Plan").
		Preload("PendingPlan").
		Where("user_id = ?", userID).
		First(&sub).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No subscription found"})
		return
	}

	c.JSON(http.StatusOK, sub)
}

func GetSubscriptionHistory(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	var sub subscriptions.UserSubscription
	if err := database.DB.Where("user_id = ?", userID).First(&sub).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No subscription found"})
		return
	}

	var history []subscriptions.SubscriptionHistory
	if err := database.DB.
		Where("subscription_id = ?", sub.ID).
		Order("created_at DESC").
		Find(&history).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load history"})
		return
	}

	c.JSON(http.StatusOK, history)
}

// CreateSubscription starts a trial subscription directly through the API
// (no Checkout). The Stripe subscription carries user_id and plan_lookup_key
// metadata so webhook events can find their way back.
func CreateSubscription(c *gin.Context) {
	var body struct {
		PlanLookupKey string `json:"plan_lookup_key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid plan_lookup_key"})
		return
	}

	stripe.Key = config.STRIPE_SECRET_KEY

	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	var plan plans.SubscriptionPlan
	if err := database.DB.Where("lookup_key = ? AND is_active = ?", body.PlanLookupKey, true).First(&plan).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or inactive plan"})
		return
	}

	var existing subscriptions.UserSubscription
	if err := database.DB.Where("user_id = ?", userID).First(&existing).Error; err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User already has a subscription"})
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check existing subscription"})
		return
	}

	var user users.User
	if err := database.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}

	customerID, err := ensureStripeCustomer(&user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Stripe customer"})
		return
	}

	trialDays := int64(config.TRIAL_PERIOD_DAYS)
	stripeSub, err := gw.CreateSubscription(customerID, plan.StripePriceID, trialDays, map[string]string{
		"user_id":         fmt.Sprint(user.ID),
		"plan_lookup_key": plan.LookupKey,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Stripe subscription", "details": err.Error()})
		return
	}

	now := time.Now()
	trialEnd := now.AddDate(0, 0, int(trialDays))
	if stripeSub.TrialEnd > 0 {
		trialEnd = time.Unix(stripeSub.TrialEnd, 0)
	}

	sub := subscriptions.UserSubscription{
		UserID:               user.ID,
		PlanID:               plan.ID,
		Status:               subscriptions.StatusTrialing,
		StripeSubscriptionID: &stripeSub.ID,
		StripeCustomerID:     &customerID,
		TrialStartAt:         &now,
		TrialEndAt:           &trialEnd,
	}
	if stripeSub.CurrentPeriodStart > 0 {
		start := time.Unix(stripeSub.CurrentPeriodStart, 0)
		sub.CurrentPeriodStart = &start
	}
	if stripeSub.CurrentPeriodEnd > 0 {
		end := time.Unix(stripeSub.CurrentPeriodEnd, 0)
		sub.CurrentPeriodEnd = &end
	}

	if err := database.DB.Create(&sub).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store subscription"})
		return
	}

	if err := svc().RecordHistory(sub.ID, subscriptions.EventTrialStarted,
		fmt.Sprintf("Started %s trial", plan.Name),
		map[string]interface{}{"stripe_subscription_id": stripeSub.ID}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record history"})
		return
	}

	sub.Plan = &plan
	c.JSON(http.StatusCreated, sub)
}

// CancelSubscription cancels at period end on Stripe and marks the local
// record canceled right away.
func CancelSubscription(c *gin.Context) {
	stripe.Key = config.STRIPE_SECRET_KEY

	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	var sub subscriptions.UserSubscription
	if err := database.DB.Preload("Plan").Where("user_id = ?", userID).First(&sub).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No subscription found"})
		return
	}

	if sub.StripeSubscriptionID != nil && *sub.StripeSubscriptionID != "" {
		if _, err := gw.CancelAtPeriodEnd(*sub.StripeSubscriptionID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel Stripe subscription", "details": err.Error()})
			return
		}
	}

	if err := svc().CancelLocal(&sub, subscriptions.EventCanceled, "Subscription canceled by user", nil); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel subscription"})
		return
	}

	c.JSON(http.StatusOK, sub)
}

// ensureStripeCustomer returns the existing customer id or creates one and
// stores it on the subscription row once it exists.
func ensureStripeCustomer(user *users.User) (string, error) {
	var sub subscriptions.UserSubscription
	if err := database.DB.Where("user_id = ?", user.ID).First(&sub).Error; err == nil {
		if sub.StripeCustomerID != nil && *sub.StripeCustomerID != "" {
			return *sub.StripeCustomerID, nil
		}
	}

	name := user.Name
	if user.Lastname != "" {
		name = user.Name + " " + user.Lastname
	}
	cus, err := gw.CreateCustomer(user.Email, name, map[string]string{
		"user_id": fmt.Sprint(user.ID),
	})
	if err != nil {
		return "", err
	}
	return cus.ID, nil
}
