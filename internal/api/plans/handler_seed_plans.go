package plans

import (
	"net/http"

	"subscription-api/database"
	"subscription-api/internal/domain/plans"
	"subscription-api/internal/infra/cache"

	"github.com/gin-gonic/gin"
)

// stock plans, upserted by lookup key. Stripe price ids are placeholders
// until /admin/sync-plans pulls the real ones.
var seedPlans = []plans.SubscriptionPlan{
	{
		Name:          "Basic Monthly",
		PlanType:      plans.TypeBasic,
		BillingPeriod: plans.PeriodMonthly,
		Price:         15.00,
		StripePriceID: "price_basic_monthly",
		LookupKey:     "monthly-basic",
		IsActive:      true,
	},
	{
		Name:          "Basic Yearly",
		PlanType:      plans.TypeBasic,
		BillingPeriod: plans.PeriodYearly,
		Price:         150.00,
		StripePriceID: "price_basic_yearly",
		LookupKey:     "yearly-basic",
		IsActive:      true,
	},
	{
		Name:          "Pro Monthly",
		PlanType:      plans.TypePro,
		BillingPeriod: plans.PeriodMonthly,
		Price:         30.00,
		StripePriceID: "price_pro_monthly",
		LookupKey:     "monthly-pro",
		IsActive:      true,
	},
	{
		Name:          "Pro Yearly",
		PlanType:      plans.TypePro,
		BillingPeriod: plans.PeriodYearly,
		Price:         300.00,
		StripePriceID: "price_pro_yearly",
		LookupKey:     "yearly-pro",
		IsActive:      true,
	},
}

func SeedPlans(c *gin.Context) {
	created := 0
	updated := 0

	for _, seed := range seedPlans {
		var existing plans.SubscriptionPlan
		err := database.DB.Where("lookup_key = ?", seed.LookupKey).First(&existing).Error

		if err != nil {
			plan := seed
			if err := database.DB.Create(&plan).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create plan", "details": err.Error()})
				return
			}
			created++
		} else {
			existing.Name = seed.Name
			existing.PlanType = seed.PlanType
			existing.BillingPeriod = seed.BillingPeriod
			existing.Price = seed.Price
			existing.IsActive = seed.IsActive
			if err := database.DB.Save(&existing).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update plan", "details": err.Error()})
				return
			}
			updated++
		}
	}

	cache.Del(c.Request.Context(), planCacheKey)

	c.JSON(http.StatusOK, gin.H{
		"seeded":  len(seedPlans),
		"created": created,
		"updated": updated,
	})
}
