package http

import (
	"net/http"

	"subscription-api/internal/api/admin"
	"subscription-api/internal/api/auth"
	"subscription-api/internal/api/plans"
	"subscription-api/internal/api/stripewebhook"
	"subscription-api/internal/api/subscription"
	"subscription-api/internal/api/users"
	"subscription-api/internal/app/http/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Stripe signs the raw body, so the webhook stays outside the
	// sanitizer chain.
	r.POST("/webhook", stripewebhook.StripeWebhook)

	public := r.Group("/")
	public.Use(middleware.SanitizeInput())
	{
		public.POST("/register", auth.Register)
		public.POST("/login", auth.Login)
		public.GET("/verify", users.VerifyEmail)
		public.GET("/plans", plans.ListPlans)
		public.GET("/auth/google", auth.GoogleStart)
		public.GET("/auth/google/callback", auth.GoogleCallback)
	}

	authorized := r.Group("/")
	authorized.Use(middleware.AuthMiddleware(), middleware.SanitizeInput())
	{
		authorized.GET("/me", users.GetCurrentUser)
		authorized.POST("/change-password", auth.ChangePassword)

		authorized.GET("/my-subscription", subscription.GetMySubscription)
		authorized.GET("/history", subscription.GetSubscriptionHistory)
		authorized.GET("/payments", subscription.GetPaymentHistory)
		authorized.POST("/subscriptions", subscription.CreateSubscription)
		authorized.POST("/subscriptions/cancel", subscription.CancelSubscription)
		authorized.POST("/create-checkout-session", subscription.CreateCheckoutSession)
		authorized.POST("/billing-portal", subscription.CreateBillingPortal)

		active := authorized.Group("/")
		active.Use(middleware.RequireActiveSubscription())
		{
			active.POST("/subscriptions/change-plan", subscription.ChangePlan)
			active.POST("/subscriptions/cancel-downgrade", subscription.CancelDowngrade)
		}
	}

	adminGroup := r.Group("/admin")
	adminGroup.Use(middleware.AuthMiddleware(), middleware.RequireRole("admin"))
	{
		adminGroup.GET("/dashboard", admin.AdminDashboard)
		adminGroup.GET("/users", admin.ListAllUsers)
		adminGroup.GET("/subscriptions", admin.ListAllSubscriptions)
		adminGroup.POST("/seed-plans", plans.SeedPlans)
		adminGroup.POST("/sync-plans", plans.SyncPlansFromStripe)
		adminGroup.POST("/process-trials", admin.ProcessTrialExpirations)
	}
}
