package plans

import (
	"net/http"

	"subscription-api/config"
	"subscription-api/database"
	"subscription-api/internal/domain/plans"
	"subscription-api/internal/infra/cache"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/price"
)

// SyncPlansFromStripe pulls active recurring prices and upserts local plans
// keyed by stripe_price_id. Prices without a lookup key are skipped; the
// lookup key is what the REST surface sells plans by.
func SyncPlansFromStripe(c *gin.Context) {
	stripe.Key = config.STRIPE_SECRET_KEY
	if stripe.Key == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Stripe key not configured"})
		return
	}

	params := &stripe.PriceListParams{}
	params.Active = stripe.Bool(true)
	params.Type = stripe.String("recurring")
	params.AddExpand("data.product")

	it := price.List(params)

	synced := 0
	created := 0
	updated := 0
	skipped := 0

	for it.Next() {
		p := it.Price()

		if !p.Active || p.Recurring == nil || p.Product == nil || !p.Product.Active {
			skipped++
			continue
		}

		if p.LookupKey == "" {
			skipped++
			continue
		}

		// visibility flag
		if p.Metadata != nil && p.Metadata["visible"] == "false" {
			skipped++
			continue
		}

		amount := float64(p.UnitAmount) / 100.0

		displayName := p.Product.Name
		planType := ""
		if p.Metadata != nil {
			if v := p.Metadata["plan"]; v != "" {
				displayName = v
			}
			if v := p.Metadata["plan_type"]; v != "" {
				planType = v
			}
		}

		billingPeriod := plans.PeriodMonthly
		if p.Recurring.Interval == stripe.PriceRecurringIntervalYear {
			billingPeriod = plans.PeriodYearly
		}

		var existing plans.SubscriptionPlan
		err := database.DB.Where("stripe_price_id = ?", p.ID).First(&existing).Error

		if err != nil {
			plan := plans.SubscriptionPlan{
				Name:          displayName,
				PlanType:      planType,
				BillingPeriod: billingPeriod,
				Price:         amount,
				StripePriceID: p.ID,
				LookupKey:     p.LookupKey,
				IsActive:      true,
			}
			if plan.PlanType == "" {
				plan.PlanType = plans.EffectiveType(&plan)
			}
			if err := database.DB.Create(&plan).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create plan", "details": err.Error()})
				return
			}
			created++
		} else {
			existing.Name = displayName
			existing.Price = amount
			existing.BillingPeriod = billingPeriod
			existing.LookupKey = p.LookupKey
			if planType != "" {
				existing.PlanType = planType
			}
			if err := database.DB.Save(&existing).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update plan", "details": err.Error()})
				return
			}
			updated++
		}

		synced++
	}

	if err := it.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch Stripe prices", "details": err.Error()})
		return
	}

	cache.Del(c.Request.Context(), planCacheKey)

	c.JSON(http.StatusOK, gin.H{
		"synced":  synced,
		"created": created,
		"updated": updated,
		"skipped": skipped,
	})
}
