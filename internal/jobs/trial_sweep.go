package jobs

import (
	"log"
	"time"

	"subscription-api/config"
	"subscription-api/database"
	"subscription-api/internal/infra/stripeapi"
	"subscription-api/internal/service"

	"github.com/robfig/cron/v3"
	"github.com/stripe/stripe-go/v75"
)

// TrialSweepSchedule runs the sweep shortly after midnight UTC so the
// day's expirations are processed before billing notifications go out.
const TrialSweepSchedule = "15 0 * * *"

var gateway stripeapi.Gateway = stripeapi.Live{}

// StartScheduler registers the recurring jobs and starts the cron
// runner in its own goroutine. The returned cron can be stopped on
// shutdown.
func StartScheduler() (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(time.UTC))

	if _, err := c.AddFunc(TrialSweepSchedule, RunTrialSweep); err != nil {
		return nil, err
	}

	c.Start()
	log.Printf("scheduler started, trial sweep at %q", TrialSweepSchedule)
	return c, nil
}

// RunTrialSweep expires every trial whose window has ended, syncing
// each subscription with Stripe before canceling locally.
func RunTrialSweep() {
	stripe.Key = config.STRIPE_SECRET_KEY

	svc := service.New(database.DB, gateway)
	result, err := svc.ExpireTrials(time.Now(), false)
	if err != nil {
		log.Printf("trial sweep failed: %v", err)
		return
	}
	log.Printf("trial sweep done: processed=%d expired=%d synced=%d errors=%d",
		result.Processed, result.Expired, result.Synced, result.Errors)
}
