package subscription

import (
	"net/http"

	"subscription-api/config"
	"subscription-api/database"
	"subscription-api/internal/domain/subscriptions"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v75"
)

func CancelDowngrade(c *gin.Context) {
	stripe.Key = config.STRIPE_SECRET_KEY

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

	if sub.StripeScheduleID == nil || *sub.StripeScheduleID == "" || sub.PendingPlanID == nil {
		c.JSON(http.StatusOK, gin.H{"message": "No pending downgrade to cancel"})
		return
	}

	scheduleID := *sub.StripeScheduleID

	// Release the schedule so the subscription continues on the current plan.
	if _, err := gw.ReleaseSchedule(scheduleID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to release Stripe schedule", "details": err.Error()})
		return
	}

	if err := database.DB.Model(&subscriptions.UserSubscription{}).
		Where("id = ?", sub.ID).
		Updates(map[string]interface{}{
			"pending_plan_id":         nil,
			"pending_plan_start_date": nil,
			"stripe_schedule_id":      nil,
		}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear pending downgrade in DB", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Pending downgrade cancelled",
		"schedule_id": scheduleID,
	})
}
