package subscription

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"subscription-api/config"
	"subscription-api/database"
	"subscription-api/internal/domain/plans"
	"subscription-api/internal/domain/subscriptions"
	"subscription-api/internal/domain/users"
	"subscription-api/internal/infra/stripeapi/stripetest"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v75"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupSubscriptionTest(t *testing.T) (*gin.Engine, *stripetest.FakeGateway, *users.User) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	database.DB = db

	config.STRIPE_SECRET_KEY = "sk_test_key"
	config.TRIAL_PERIOD_DAYS = 14

	fake := &stripetest.FakeGateway{}
	oldGw := gw
	gw = fake
	t.Cleanup(func() { gw = oldGw })

	user := users.User{Name: "Ada", Lastname: "Lovelace", Email: uuid.NewString() + "@example.com", IsVerified: true}
	require.NoError(t, db.Create(&user).Error)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", user.ID)
		c.Next()
	})
	r.GET("/my-subscription", GetMySubscription)
	r.GET("/history", GetSubscriptionHistory)
	r.POST("/subscriptions", CreateSubscription)
	r.POST("/subscriptions/cancel", CancelSubscription)
	r.POST("/subscriptions/change-plan", ChangePlan)
	r.POST("/subscriptions/cancel-downgrade", CancelDowngrade)
	return r, fake, &user
}

func seedPlan(t *testing.T, lookupKey string, price float64) *plans.SubscriptionPlan {
	t.Helper()
	// Lookup keys follow "<period>-<type>"; derive the type so two seeded
	// plans don't collide on the (plan_type, billing_period) unique index.
	planType := plans.TypeBasic
	if strings.HasSuffix(lookupKey, "-"+plans.TypePro) {
		planType = plans.TypePro
	}
	plan := plans.SubscriptionPlan{
		Name: "Plan " + lookupKey, PlanType: planType, BillingPeriod: plans.PeriodMonthly,
		Price: price, StripePriceID: "price_" + lookupKey, LookupKey: lookupKey, IsActive: true,
	}
	require.NoError(t, database.DB.Create(&plan).Error)
	return &plan
}

func postJSON(r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateSubscriptionStartsTrial(t *testing.T) {
	r, fake, user := setupSubscriptionTest(t)
	plan := seedPlan(t, "monthly-basic", 15)

	trialEnd := time.Now().Add(14 * 24 * time.Hour)
	fake.CreateSubscriptionFn = func(customerID, priceID string, trialDays int64, metadata map[string]string) (*stripe.Subscription, error) {
		assert.Equal(t, "cus_fake", customerID)
		assert.Equal(t, plan.StripePriceID, priceID)
		assert.Equal(t, int64(14), trialDays)
		assert.Equal(t, fmt.Sprint(user.ID), metadata["user_id"])
		assert.Equal(t, "monthly-basic", metadata["plan_lookup_key"])
		return &stripe.Subscription{
			ID:       "sub_trial",
			Status:   stripe.SubscriptionStatusTrialing,
			TrialEnd: trialEnd.Unix(),
		}, nil
	}

	w := postJSON(r, "/subscriptions", gin.H{"plan_lookup_key": "monthly-basic"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 1, fake.CreateCustomerCalls)
	assert.Equal(t, 1, fake.CreateSubCalls)

	var sub subscriptions.UserSubscription
	require.NoError(t, database.DB.Where("user_id = ?", user.ID).First(&sub).Error)
	assert.Equal(t, subscriptions.StatusTrialing, sub.Status)
	assert.Equal(t, plan.ID, sub.PlanID)
	require.NotNil(t, sub.StripeSubscriptionID)
	assert.Equal(t, "sub_trial", *sub.StripeSubscriptionID)
	require.NotNil(t, sub.TrialEndAt)
	assert.Equal(t, trialEnd.Unix(), sub.TrialEndAt.Unix())

	var history subscriptions.SubscriptionHistory
	require.NoError(t, database.DB.
		Where("subscription_id = ? AND event_type = ?", sub.ID, subscriptions.EventTrialStarted).
		First(&history).Error)
}

func TestCreateSubscriptionRejectsUnknownPlan(t *testing.T) {
	r, fake, _ := setupSubscriptionTest(t)

	w := postJSON(r, "/subscriptions", gin.H{"plan_lookup_key": "no-such-plan"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, fake.CreateSubCalls)
}

func TestCreateSubscriptionRejectsInactivePlan(t *testing.T) {
	r, fake, _ := setupSubscriptionTest(t)
	plan := seedPlan(t, "retired", 10)
	require.NoError(t, database.DB.Model(plan).Update("is_active", false).Error)

	w := postJSON(r, "/subscriptions", gin.H{"plan_lookup_key": "retired"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, fake.CreateSubCalls)
}

func TestCreateSubscriptionRejectsSecond(t *testing.T) {
	r, fake, user := setupSubscriptionTest(t)
	plan := seedPlan(t, "monthly-basic", 15)

	require.NoError(t, database.DB.Create(&subscriptions.UserSubscription{
		UserID: user.ID, PlanID: plan.ID, Status: subscriptions.StatusActive,
	}).Error)

	w := postJSON(r, "/subscriptions", gin.H{"plan_lookup_key": "monthly-basic"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already has a subscription")
	assert.Zero(t, fake.CreateSubCalls)
}

func TestCancelSubscription(t *testing.T) {
	r, fake, user := setupSubscriptionTest(t)
	plan := seedPlan(t, "monthly-basic", 15)

	stripeID := "sub_cancel_me"
	require.NoError(t, database.DB.Create(&subscriptions.UserSubscription{
		UserID: user.ID, PlanID: plan.ID, Status: subscriptions.StatusActive,
		StripeSubscriptionID: &stripeID,
	}).Error)

	w := postJSON(r, "/subscriptions/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, fake.CancelAtPeriodEndCalls)

	var sub subscriptions.UserSubscription
	require.NoError(t, database.DB.Where("user_id = ?", user.ID).First(&sub).Error)
	assert.Equal(t, subscriptions.StatusCanceled, sub.Status)
	assert.NotNil(t, sub.CanceledAt)

	var history subscriptions.SubscriptionHistory
	require.NoError(t, database.DB.
		Where("subscription_id = ? AND event_type = ?", sub.ID, subscriptions.EventCanceled).
		First(&history).Error)
}

func TestCancelSubscriptionWithoutOne(t *testing.T) {
	r, fake, _ := setupSubscriptionTest(t)

	w := postJSON(r, "/subscriptions/cancel", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, fake.CancelAtPeriodEndCalls)
}

// stripeSubWithPrice fakes the canonical subscription the change-plan flow
// fetches before deciding between upgrade and downgrade.
func stripeSubWithPrice(id, itemID, priceID string, periodEnd time.Time) *stripe.Subscription {
	return &stripe.Subscription{
		ID:                 id,
		Status:             stripe.SubscriptionStatusActive,
		CurrentPeriodStart: periodEnd.AddDate(0, -1, 0).Unix(),
		CurrentPeriodEnd:   periodEnd.Unix(),
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{ID: itemID, Price: &stripe.Price{ID: priceID}},
			},
		},
	}
}

func TestChangePlanUpgradeAppliesImmediately(t *testing.T) {
	r, fake, user := setupSubscriptionTest(t)
	basic := seedPlan(t, "monthly-basic", 15)
	pro := seedPlan(t, "monthly-pro", 30)

	stripeID := "sub_upgrade"
	periodEnd := time.Now().Add(20 * 24 * time.Hour).Truncate(time.Second)
	pendingID := pro.ID
	schedID := "sub_sched_old"
	require.NoError(t, database.DB.Create(&subscriptions.UserSubscription{
		UserID: user.ID, PlanID: basic.ID, Status: subscriptions.StatusActive,
		StripeSubscriptionID: &stripeID,
		PendingPlanID:        &pendingID,
		StripeScheduleID:     &schedID,
	}).Error)

	fake.GetSubscriptionFn = func(id string) (*stripe.Subscription, error) {
		return stripeSubWithPrice(id, "si_1", basic.StripePriceID, periodEnd), nil
	}
	fake.UpdateSubscriptionPriceFn = func(subID, itemID, priceID string) (*stripe.Subscription, error) {
		assert.Equal(t, stripeID, subID)
		assert.Equal(t, "si_1", itemID)
		assert.Equal(t, pro.StripePriceID, priceID)
		return stripeSubWithPrice(subID, itemID, priceID, periodEnd), nil
	}

	w := postJSON(r, "/subscriptions/change-plan", gin.H{"new_plan_lookup_key": "monthly-pro"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, fake.UpdatePriceCalls)
	assert.Zero(t, fake.SchedulePlanChangeCalls)

	var sub subscriptions.UserSubscription
	require.NoError(t, database.DB.Where("user_id = ?", user.ID).First(&sub).Error)
	assert.Equal(t, pro.ID, sub.PlanID)
	assert.Nil(t, sub.PendingPlanID)
	assert.Nil(t, sub.StripeScheduleID)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, periodEnd.Unix(), sub.CurrentPeriodEnd.Unix())

	var history subscriptions.SubscriptionHistory
	require.NoError(t, database.DB.
		Where("subscription_id = ? AND event_type = ?", sub.ID, subscriptions.EventPlanChanged).
		First(&history).Error)
}

func TestChangePlanDowngradeSchedules(t *testing.T) {
	r, fake, user := setupSubscriptionTest(t)
	basic := seedPlan(t, "monthly-basic", 15)
	pro := seedPlan(t, "monthly-pro", 30)

	stripeID := "sub_downgrade"
	periodEnd := time.Now().Add(10 * 24 * time.Hour).Truncate(time.Second)
	require.NoError(t, database.DB.Create(&subscriptions.UserSubscription{
		UserID: user.ID, PlanID: pro.ID, Status: subscriptions.StatusActive,
		StripeSubscriptionID: &stripeID,
	}).Error)

	fake.GetSubscriptionFn = func(id string) (*stripe.Subscription, error) {
		return stripeSubWithPrice(id, "si_1", pro.StripePriceID, periodEnd), nil
	}
	fake.CreateScheduleFn = func(subID string) (*stripe.SubscriptionSchedule, error) {
		assert.Equal(t, stripeID, subID)
		return &stripe.SubscriptionSchedule{ID: "sub_sched_1"}, nil
	}
	fake.SchedulePlanChangeFn = func(scheduleID, currentPriceID, targetPriceID string, periodStart, periodEndUnix int64) (*stripe.SubscriptionSchedule, error) {
		assert.Equal(t, "sub_sched_1", scheduleID)
		assert.Equal(t, pro.StripePriceID, currentPriceID)
		assert.Equal(t, basic.StripePriceID, targetPriceID)
		assert.Equal(t, periodEnd.Unix(), periodEndUnix)
		return &stripe.SubscriptionSchedule{ID: scheduleID}, nil
	}

	w := postJSON(r, "/subscriptions/change-plan", gin.H{"new_plan_lookup_key": "monthly-basic"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Zero(t, fake.UpdatePriceCalls)
	assert.Equal(t, 1, fake.CreateScheduleCalls)
	assert.Equal(t, 1, fake.SchedulePlanChangeCalls)

	var sub subscriptions.UserSubscription
	require.NoError(t, database.DB.Where("user_id = ?", user.ID).First(&sub).Error)
	// Current plan stays until the period boundary.
	assert.Equal(t, pro.ID, sub.PlanID)
	require.NotNil(t, sub.PendingPlanID)
	assert.Equal(t, basic.ID, *sub.PendingPlanID)
	require.NotNil(t, sub.PendingPlanStartDate)
	assert.Equal(t, periodEnd.Unix(), sub.PendingPlanStartDate.Unix())
	require.NotNil(t, sub.StripeScheduleID)
	assert.Equal(t, "sub_sched_1", *sub.StripeScheduleID)

	var history subscriptions.SubscriptionHistory
	require.NoError(t, database.DB.
		Where("subscription_id = ? AND event_type = ?", sub.ID, subscriptions.EventPlanChanged).
		First(&history).Error)
}

func TestChangePlanSamePriceIsNoop(t *testing.T) {
	r, fake, user := setupSubscriptionTest(t)
	basic := seedPlan(t, "monthly-basic", 15)

	stripeID := "sub_same_price"
	require.NoError(t, database.DB.Create(&subscriptions.UserSubscription{
		UserID: user.ID, PlanID: basic.ID, Status: subscriptions.StatusActive,
		StripeSubscriptionID: &stripeID,
	}).Error)

	fake.GetSubscriptionFn = func(id string) (*stripe.Subscription, error) {
		return stripeSubWithPrice(id, "si_1", basic.StripePriceID, time.Now().Add(24*time.Hour)), nil
	}

	w := postJSON(r, "/subscriptions/change-plan", gin.H{"new_plan_lookup_key": "monthly-basic"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Already on this plan")
	assert.Zero(t, fake.UpdatePriceCalls)
	assert.Zero(t, fake.SchedulePlanChangeCalls)
}

func TestCancelDowngradeReleasesSchedule(t *testing.T) {
	r, fake, user := setupSubscriptionTest(t)
	basic := seedPlan(t, "monthly-basic", 15)
	pro := seedPlan(t, "monthly-pro", 30)

	stripeID := "sub_pending"
	schedID := "sub_sched_pending"
	pendingID := basic.ID
	effectiveAt := time.Now().Add(10 * 24 * time.Hour)
	require.NoError(t, database.DB.Create(&subscriptions.UserSubscription{
		UserID: user.ID, PlanID: pro.ID, Status: subscriptions.StatusActive,
		StripeSubscriptionID: &stripeID,
		PendingPlanID:        &pendingID,
		PendingPlanStartDate: &effectiveAt,
		StripeScheduleID:     &schedID,
	}).Error)

	fake.ReleaseScheduleFn = func(scheduleID string) (*stripe.SubscriptionSchedule, error) {
		assert.Equal(t, schedID, scheduleID)
		return &stripe.SubscriptionSchedule{ID: scheduleID}, nil
	}

	w := postJSON(r, "/subscriptions/cancel-downgrade", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, fake.ReleaseScheduleCalls)

	var sub subscriptions.UserSubscription
	require.NoError(t, database.DB.Where("user_id = ?", user.ID).First(&sub).Error)
	assert.Equal(t, pro.ID, sub.PlanID)
	assert.Nil(t, sub.PendingPlanID)
	assert.Nil(t, sub.PendingPlanStartDate)
	assert.Nil(t, sub.StripeScheduleID)
}

func TestCancelDowngradeWithoutPending(t *testing.T) {
	r, fake, user := setupSubscriptionTest(t)
	basic := seedPlan(t, "monthly-basic", 15)

	require.NoError(t, database.DB.Create(&subscriptions.UserSubscription{
		UserID: user.ID, PlanID: basic.ID, Status: subscriptions.StatusActive,
	}).Error)

	w := postJSON(r, "/subscriptions/cancel-downgrade", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No pending downgrade")
	assert.Zero(t, fake.ReleaseScheduleCalls)
}

func TestGetMySubscription(t *testing.T) {
	r, _, user := setupSubscriptionTest(t)
	plan := seedPlan(t, "monthly-basic", 15)

	require.NoError(t, database.DB.Create(&subscriptions.UserSubscription{
		UserID: user.ID, PlanID: plan.ID, Status: subscriptions.StatusActive,
	}).Error)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/my-subscription", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status string `json:"status"`
		Plan   *struct {
			LookupKey string `json:"lookup_key"`
		} `json:"plan"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, subscriptions.StatusActive, resp.Status)
	require.NotNil(t, resp.Plan)
	assert.Equal(t, "monthly-basic", resp.Plan.LookupKey)
}

func TestGetMySubscriptionNotFound(t *testing.T) {
	r, _, _ := setupSubscriptionTest(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/my-subscription", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSubscriptionHistoryNewestFirst(t *testing.T) {
	r, _, user := setupSubscriptionTest(t)
	plan := seedPlan(t, "monthly-basic", 15)

	sub := subscriptions.UserSubscription{UserID: user.ID, PlanID: plan.ID, Status: subscriptions.StatusActive}
	require.NoError(t, database.DB.Create(&sub).Error)

	older := time.Now().Add(-time.Hour)
	require.NoError(t, database.DB.Create(&subscriptions.SubscriptionHistory{
		SubscriptionID: sub.ID, EventType: subscriptions.EventTrialStarted, Description: "Started trial",
		Metadata: "{}", CreatedAt: older,
	}).Error)
	require.NoError(t, database.DB.Create(&subscriptions.SubscriptionHistory{
		SubscriptionID: sub.ID, EventType: subscriptions.EventActivated, Description: "Activated",
		Metadata: "{}", CreatedAt: time.Now(),
	}).Error)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/history", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var rows []subscriptions.SubscriptionHistory
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, subscriptions.EventActivated, rows[0].EventType)
	assert.Equal(t, subscriptions.EventTrialStarted, rows[1].EventType)
}
