package admin

import (
	"net/http"
	"time"

	"subscription-api/config"
	"subscription-api/database"
	"subscription-api/internal/domain/billing"
	"subscription-api/internal/domain/subscriptions"
	"subscription-api/internal/domain/users"
	"subscription-api/internal/infra/stripeapi"
	"subscription-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v75"
)

var gateway stripeapi.Gateway = stripeapi.Live{}

type AdminUser struct {
	ID         uint    `json:"id"`
	Name       string  `json:"name"`
	Lastname   string  `json:"lastname"`
	Email      string  `json:"email"`
	Role       string  `json:"role"`
	IsVerified bool    `json:"is_verified"`
	PlanName   *string `json:"plan_name,omitempty"`
	SubStatus  *string `json:"subscription_status,omitempty"`
}

type AdminSubscription struct {
	ID               uint       `json:"id"`
	Email            string     `json:"email"`
	PlanName         *string    `json:"plan_name,omitempty"`
	Status           string     `json:"status"`
	TrialEndAt       *time.Time `json:"trial_end_at,omitempty"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
	CanceledAt       *time.Time `json:"canceled_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

type AdminStats struct {
	TotalUsers        int            `json:"total_users"`
	ActiveSubs        int            `json:"active_subscriptions"`
	TrialingSubs      int            `json:"trialing_subscriptions"`
	PastDueSubs       int            `json:"past_due_subscriptions"`
	TotalRevenue      float64        `json:"total_revenue"`
	RecentRevenue     float64        `json:"recent_revenue"`
	SubsPerPlan       map[string]int `json:"subscriptions_per_plan"`
	UnprocessedEvents int            `json:"unprocessed_webhook_events"`
}

func AdminDashboard(c *gin.Context) {
	var stats AdminStats

	var totalUsers, active, trialing, pastDue, unprocessed int64
	database.DB.Model(&users.User{}).Count(&totalUsers)
	database.DB.Model(&subscriptions.UserSubscription{}).Where("status = ?", subscriptions.StatusActive).Count(&active)
	database.DB.Model(&subscriptions.UserSubscription{}).Where("status = ?", subscriptions.StatusTrialing).Count(&trialing)
	database.DB.Model(&subscriptions.UserSubscription{}).Where("status = ?", subscriptions.StatusPastDue).Count(&pastDue)
	database.DB.Model(&subscriptions.WebhookEvent{}).Where("processed = ?", false).Count(&unprocessed)

	var totalRevenue, recentRevenue float64
	database.DB.Model(&billing.Payment{}).Where("status = ?", "paid").
		Select("COALESCE(SUM(amount), 0)").Scan(&totalRevenue)

	thirtyDaysAgo := time.Now().AddDate(0, 0, -30)
	database.DB.Model(&billing.Payment{}).
		Where("status = ? AND created_at >= ?", "paid", thirtyDaysAgo).
		Select("COALESCE(SUM(amount), 0)").Scan(&recentRevenue)

	stats.TotalUsers = int(totalUsers)
	stats.ActiveSubs = int(active)
	stats.TrialingSubs = int(trialing)
	stats.PastDueSubs = int(pastDue)
	stats.UnprocessedEvents = int(unprocessed)
	stats.TotalRevenue = totalRevenue
	stats.RecentRevenue = recentRevenue

	type PlanCount struct {
		Name  *string
		Count int
	}
	var counts []PlanCount
	database.DB.
		Table("user_subscriptions").
		Select("subscription_plans.name, COUNT(user_subscriptions.id) as count").
		Joins("LEFT JOIN subscription_plans ON user_subscriptions.plan_id = subscription_plans.id").
		Group("subscription_plans.name").
		Scan(&counts)

	stats.SubsPerPlan = map[string]int{}
	for _, pc := range counts {
		name := "No Plan"
		if pc.Name != nil {
			name = *pc.Name
		}
		stats.SubsPerPlan[name] = pc.Count
	}

	c.JSON(http.StatusOK, stats)
}

func ListAllUsers(c *gin.Context) {
	var allUsers []users.User
	if err := database.DB.Find(&allUsers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load users"})
		return
	}

	var subs []subscriptions.UserSubscription
	if err := database.DB.Preload("Plan").Find(&subs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscriptions"})
		return
	}
	byUser := map[uint]*subscriptions.UserSubscription{}
	for i := range subs {
		byUser[subs[i].UserID] = &subs[i]
	}

	adminUsers := make([]AdminUser, 0, len(allUsers))
	for _, u := range allUsers {
		au := AdminUser{
			ID:         u.ID,
			Name:       u.Name,
			Lastname:   u.Lastname,
			Email:      u.Email,
			Role:       u.Role,
			IsVerified: u.IsVerified,
		}
		if s, ok := byUser[u.ID]; ok {
			status := s.Status
			au.SubStatus = &status
			if s.Plan != nil {
				au.PlanName = &s.Plan.Name
			}
		}
		adminUsers = append(adminUsers, au)
	}

	c.JSON(http.StatusOK, adminUsers)
}

func ListAllSubscriptions(c *gin.Context) {
	var subs []subscriptions.UserSubscription
	if err := database.DB.Preload("User").Preload("Plan").
		Order("created_at DESC").Find(&subs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscriptions"})
		return
	}

	result := make([]AdminSubscription, 0, len(subs))
	for _, s := range subs {
		var planName *string
		if s.Plan != nil {
			planName = &s.Plan.Name
		}
		result = append(result, AdminSubscription{
			ID:               s.ID,
			Email:            s.User.Email,
			PlanName:         planName,
			Status:           s.Status,
			TrialEndAt:       s.TrialEndAt,
			CurrentPeriodEnd: s.CurrentPeriodEnd,
			CanceledAt:       s.CanceledAt,
			CreatedAt:        s.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, result)
}

// ProcessTrialExpirations runs the trial sweep on demand. ?dry_run=1 reports
// what would change without touching anything.
func ProcessTrialExpirations(c *gin.Context) {
	stripe.Key = config.STRIPE_SECRET_KEY
	dryRun := c.Query("dry_run") == "1" || c.Query("dry_run") == "true"

	result, err := service.New(database.DB, gateway).ExpireTrials(time.Now(), dryRun)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Trial sweep failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"dry_run": dryRun, "result": result})
}
