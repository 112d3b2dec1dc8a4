package middleware

import (
	"errors"
	"net/http"
	"time"

	"subscription-api/database"
	"subscription-api/internal/domain/subscriptions"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RequireActiveSubscription blocks the request unless the caller has a
// subscription in an active or trialing window.
func RequireActiveSubscription() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("user_id")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found in token"})
			c.Abort()
			return
		}

		var sub subscriptions.UserSubscription
		err := database.DB.Where("user_id = ?", userID).First(&sub).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Active subscription required"})
			c.Abort()
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
			c.Abort()
			return
		}

		if !sub.IsSubscriptionActive(time.Now()) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Active subscription required"})
			c.Abort()
			return
		}

		c.Set("subscription_id", sub.ID)
		c.Next()
	}
}
