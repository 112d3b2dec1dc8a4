package service

import (
	"fmt"
	"testing"
	"time"

	"subscription-api/database"
	"subscription-api/internal/domain/plans"
	"subscription-api/internal/domain/subscriptions"
	"subscription-api/internal/domain/users"
	"subscription-api/internal/infra/stripeapi/stripetest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v75"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedSubscription(t *testing.T, db *gorm.DB, status string, stripeSubID string, trialEnd *time.Time) *subscriptions.UserSubscription {
	t.Helper()
	user := users.User{Name: "Test", Email: uuid.NewString() + "@example.com", IsVerified: true}
	require.NoError(t, db.Create(&user).Error)

	plan := plans.SubscriptionPlan{
		Name: "Basic Monthly", PlanType: plans.TypeBasic, BillingPeriod: plans.PeriodMonthly,
		Price: 15, StripePriceID: "price_" + uuid.NewString(), LookupKey: "lk_" + uuid.NewString(), IsActive: true,
	}
	require.NoError(t, db.Create(&plan).Error)

	sub := subscriptions.UserSubscription{
		UserID: user.ID,
		PlanID: plan.ID,
		Status: status,
	}
	if stripeSubID != "" {
		sub.StripeSubscriptionID = &stripeSubID
	}
	if trialEnd != nil {
		start := trialEnd.AddDate(0, 0, -14)
		sub.TrialStartAt = &start
		sub.TrialEndAt = trialEnd
	}
	require.NoError(t, db.Create(&sub).Error)
	return &sub
}

func TestSyncStripeSubscriptionStatusChange(t *testing.T) {
	db := setupTestDB(t)
	periodEnd := time.Now().Add(30 * 24 * time.Hour).Truncate(time.Second)
	gw := &stripetest.FakeGateway{
		GetSubscriptionFn: func(id string) (*stripe.Subscription, error) {
			return &stripe.Subscription{
				ID:                 id,
				Status:             stripe.SubscriptionStatusPastDue,
				CurrentPeriodStart: time.Now().Add(-24 * time.Hour).Unix(),
				CurrentPeriodEnd:   periodEnd.Unix(),
			}, nil
		},
	}
	seedSubscription(t, db, subscriptions.StatusActive, "sub_123", nil)

	svc := New(db, gw)
	synced, err := svc.SyncStripeSubscription("sub_123")
	require.NoError(t, err)

	assert.Equal(t, subscriptions.StatusPastDue, synced.Status)
	require.NotNil(t, synced.CurrentPeriodEnd)
	assert.Equal(t, periodEnd.Unix(), synced.CurrentPeriodEnd.Unix())

	var history []subscriptions.SubscriptionHistory
	require.NoError(t, db.Where("subscription_id = ?", synced.ID).Find(&history).Error)
	require.Len(t, history, 1)
	assert.Equal(t, subscriptions.EventStatusChanged, history[0].EventType)
}

func TestSyncStripeSubscriptionNoChangeNoHistory(t *testing.T) {
	db := setupTestDB(t)
	gw := &stripetest.FakeGateway{
		GetSubscriptionFn: func(id string) (*stripe.Subscription, error) {
			return &stripe.Subscription{ID: id, Status: stripe.SubscriptionStatusActive}, nil
		},
	}
	seedSubscription(t, db, subscriptions.StatusActive, "sub_same", nil)

	synced, err := New(db, gw).SyncStripeSubscription("sub_same")
	require.NoError(t, err)
	assert.Equal(t, subscriptions.StatusActive, synced.Status)

	var count int64
	require.NoError(t, db.Model(&subscriptions.SubscriptionHistory{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSyncStripeSubscriptionUnknownRow(t *testing.T) {
	db := setupTestDB(t)
	gw := &stripetest.FakeGateway{}

	_, err := New(db, gw).SyncStripeSubscription("sub_missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestExpireTrialsCancelsExpired(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()
	past := now.Add(-time.Hour)

	// Still trialing on Stripe too, so the sweep cancels it.
	gw := &stripetest.FakeGateway{
		GetSubscriptionFn: func(id string) (*stripe.Subscription, error) {
			return &stripe.Subscription{ID: id, Status: stripe.SubscriptionStatusTrialing}, nil
		},
	}
	expired := seedSubscription(t, db, subscriptions.StatusTrialing, "sub_expired", &past)

	res, err := New(db, gw).ExpireTrials(now, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)
	assert.Equal(t, 1, res.Processed)
	assert.Zero(t, res.Errors)

	var reloaded subscriptions.UserSubscription
	require.NoError(t, db.First(&reloaded, expired.ID).Error)
	assert.Equal(t, subscriptions.StatusCanceled, reloaded.Status)
	assert.NotNil(t, reloaded.CanceledAt)

	var history subscriptions.SubscriptionHistory
	require.NoError(t, db.Where("subscription_id = ? AND event_type = ?", expired.ID, subscriptions.EventTrialEnded).First(&history).Error)
}

func TestExpireTrialsSkipsConverted(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()
	past := now.Add(-time.Hour)

	// Stripe says the subscription already converted to paid: sync wins
	// and the local trial is activated instead of canceled.
	gw := &stripetest.FakeGateway{
		GetSubscriptionFn: func(id string) (*stripe.Subscription, error) {
			return &stripe.Subscription{
				ID:                 id,
				Status:             stripe.SubscriptionStatusActive,
				CurrentPeriodStart: now.Unix(),
				CurrentPeriodEnd:   now.Add(30 * 24 * time.Hour).Unix(),
			}, nil
		},
	}
	converted := seedSubscription(t, db, subscriptions.StatusTrialing, "sub_converted", &past)

	res, err := New(db, gw).ExpireTrials(now, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)
	assert.Equal(t, 1, res.Processed)

	var reloaded subscriptions.UserSubscription
	require.NoError(t, db.First(&reloaded, converted.ID).Error)
	assert.Equal(t, subscriptions.StatusActive, reloaded.Status)
	assert.Nil(t, reloaded.CanceledAt)
}

func TestExpireTrialsWithoutStripeID(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()
	past := now.Add(-time.Minute)

	gw := &stripetest.FakeGateway{}
	local := seedSubscription(t, db, subscriptions.StatusTrialing, "", &past)

	res, err := New(db, gw).ExpireTrials(now, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Zero(t, gw.GetSubCalls)

	var reloaded subscriptions.UserSubscription
	require.NoError(t, db.First(&reloaded, local.ID).Error)
	assert.Equal(t, subscriptions.StatusCanceled, reloaded.Status)
}

func TestExpireTrialsDryRun(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()
	past := now.Add(-time.Hour)

	gw := &stripetest.FakeGateway{}
	sub := seedSubscription(t, db, subscriptions.StatusTrialing, "sub_dry", &past)

	res, err := New(db, gw).ExpireTrials(now, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)
	assert.Equal(t, 1, res.Processed)
	assert.Zero(t, gw.GetSubCalls)

	var reloaded subscriptions.UserSubscription
	require.NoError(t, db.First(&reloaded, sub.ID).Error)
	assert.Equal(t, subscriptions.StatusTrialing, reloaded.Status)
}

func TestExpireTrialsSyncsRunningTrials(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()
	future := now.Add(5 * 24 * time.Hour)

	// Payment landed mid-trial; the sweep picks it up without a webhook.
	gw := &stripetest.FakeGateway{
		GetSubscriptionFn: func(id string) (*stripe.Subscription, error) {
			return &stripe.Subscription{
				ID:               id,
				Status:           stripe.SubscriptionStatusActive,
				CurrentPeriodEnd: now.Add(30 * 24 * time.Hour).Unix(),
			}, nil
		},
	}
	running := seedSubscription(t, db, subscriptions.StatusTrialing, "sub_running", &future)

	res, err := New(db, gw).ExpireTrials(now, false)
	require.NoError(t, err)
	assert.Zero(t, res.Expired)
	assert.Equal(t, 1, res.Synced)

	var reloaded subscriptions.UserSubscription
	require.NoError(t, db.First(&reloaded, running.ID).Error)
	assert.Equal(t, subscriptions.StatusActive, reloaded.Status)
}

func TestRecordHistoryMetadata(t *testing.T) {
	db := setupTestDB(t)
	gw := &stripetest.FakeGateway{}
	sub := seedSubscription(t, db, subscriptions.StatusActive, "", nil)

	svc := New(db, gw)
	require.NoError(t, svc.RecordHistory(sub.ID, subscriptions.EventRenewed, "Renewed", map[string]interface{}{"invoice_id": "in_1"}))
	require.NoError(t, svc.RecordHistory(sub.ID, subscriptions.EventCanceled, "Canceled", nil))

	var rows []subscriptions.SubscriptionHistory
	require.NoError(t, db.Where("subscription_id = ?", sub.ID).Order("id").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.JSONEq(t, `{"invoice_id":"in_1"}`, rows[0].Metadata)
	assert.Equal(t, "{}", rows[1].Metadata)
}
