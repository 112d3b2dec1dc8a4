package subscription

import (
	"net/http"
	"time"

	"subscription-api/config"
	"subscription-api/database"
	"subscription-api/internal/domain/plans"
	"subscription-api/internal/domain/subscriptions"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v75"
)

// ChangePlan switches the caller to another plan. Upgrades apply immediately
// with prorations; downgrades are scheduled for the next billing cycle so the
// user keeps what they paid for.
func ChangePlan(c *gin.Context) {
	var body struct {
		NewPlanLookupKey string `json:"new_plan_lookup_key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid new_plan_lookup_key"})
		return
	}

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

	var targetPlan plans.SubscriptionPlan
	if err := database.DB.Where("lookup_key = ? AND is_active = ?", body.NewPlanLookupKey, true).First(&targetPlan).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or inactive plan"})
		return
	}

	if sub.StripeSubscriptionID == nil || *sub.StripeSubscriptionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No active subscription to change. Use checkout first."})
		return
	}

	stripeSub, err := gw.GetSubscription(*sub.StripeSubscriptionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch Stripe subscription", "details": err.Error()})
		return
	}
	if stripeSub.Items == nil || len(stripeSub.Items.Data) == 0 || stripeSub.Items.Data[0].Price == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Subscription has no price item"})
		return
	}

	item := stripeSub.Items.Data[0]
	if item.Price.ID == targetPlan.StripePriceID {
		c.JSON(http.StatusOK, gin.H{"message": "Already on this plan"})
		return
	}

	isUpgrade := true
	if sub.Plan != nil {
		isUpgrade = targetPlan.Price > sub.Plan.Price
	}

	if isUpgrade {
		updatedSub, err := gw.UpdateSubscriptionPrice(*sub.StripeSubscriptionID, item.ID, targetPlan.StripePriceID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upgrade subscription", "details": err.Error()})
			return
		}

		periodEnd := time.Unix(updatedSub.CurrentPeriodEnd, 0)

		oldLookup := ""
		oldName := "none"
		if sub.Plan != nil {
			oldLookup = sub.Plan.LookupKey
			oldName = sub.Plan.Name
		}

		if err := database.DB.Model(&subscriptions.UserSubscription{}).
			Where("id = ?", sub.ID).
			Updates(map[string]interface{}{
				"plan_id":                 targetPlan.ID,
				"current_period_end":      periodEnd,
				"pending_plan_id":         nil,
				"pending_plan_start_date": nil,
				"stripe_schedule_id":      nil,
			}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update subscription in DB", "details": err.Error()})
			return
		}

		if err := svc().RecordHistory(sub.ID, subscriptions.EventPlanChanged,
			"Plan changed from "+oldName+" to "+targetPlan.Name,
			map[string]interface{}{"old_plan": oldLookup, "new_plan": targetPlan.LookupKey}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record history"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":            "Upgraded now (prorated automatically by Stripe)",
			"is_upgrade":         true,
			"current_period_end": periodEnd,
		})
		return
	}

	// Downgrade: keep the current plan until the period ends, then let a
	// subscription schedule swap the price.
	periodStartUnix := stripeSub.CurrentPeriodStart
	periodEndUnix := stripeSub.CurrentPeriodEnd
	effectiveAt := time.Unix(periodEndUnix, 0)

	scheduleID := ""
	if stripeSub.Schedule != nil {
		scheduleID = stripeSub.Schedule.ID
	}

	if scheduleID == "" {
		schedule, err := gw.CreateScheduleFromSubscription(stripeSub.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create schedule", "details": err.Error()})
			return
		}
		scheduleID = schedule.ID
	}

	if _, err := gw.SchedulePlanChange(scheduleID, item.Price.ID, targetPlan.StripePriceID, periodStartUnix, periodEndUnix); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update schedule phases", "details": err.Error()})
		return
	}

	if err := database.DB.Model(&subscriptions.UserSubscription{}).
		Where("id = ?", sub.ID).
		Updates(map[string]interface{}{
			"pending_plan_id":         targetPlan.ID,
			"pending_plan_start_date": effectiveAt,
			"stripe_schedule_id":      scheduleID,
		}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store pending downgrade", "details": err.Error()})
		return
	}

	if err := svc().RecordHistory(sub.ID, subscriptions.EventPlanChanged,
		"Downgrade to "+targetPlan.Name+" scheduled for next billing cycle",
		map[string]interface{}{"new_plan": targetPlan.LookupKey, "effective_at": effectiveAt.Unix()}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Downgrade scheduled for next billing cycle",
		"is_upgrade":   false,
		"effective_at": effectiveAt,
		"schedule_id":  scheduleID,
	})
}
