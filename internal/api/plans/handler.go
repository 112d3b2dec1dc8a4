package plans

import (
	"encoding/json"
	"net/http"
	"time"

	"subscription-api/database"
	"subscription-api/internal/domain/plans"
	"subscription-api/internal/infra/cache"

	"github.com/gin-gonic/gin"
)

const planCacheKey = "plans:active"

// ListPlans returns active plans, cheapest first within each tier. The
// response is cached for a few minutes when Redis is configured; seed and
// sync invalidate it.
func ListPlans(c *gin.Context) {
	if cached, ok := cache.Get(c.Request.Context(), planCacheKey); ok {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(cached))
		return
	}

	var plansList []plans.SubscriptionPlan
	if err := database.DB.
		Where("is_active = ?", true).
		Order("plan_type ASC, billing_period ASC").
		Find(&plansList).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load plans"})
		return
	}

	if cache.Enabled() {
		if raw, err := json.Marshal(plansList); err == nil {
			cache.Set(c.Request.Context(), planCacheKey, string(raw), 5*time.Minute)
		}
	}

	c.JSON(http.StatusOK, plansList)
}
