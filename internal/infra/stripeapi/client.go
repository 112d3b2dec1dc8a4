package stripeapi

import (
	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/customer"
	"github.com/stripe/stripe-go/v75/subscription"
	schedules "github.com/stripe/stripe-go/v75/subscriptionschedule"
)

// Gateway is the slice of the Stripe API the billing code talks through.
// Handlers and jobs hold a Gateway so tests can swap in a fake.
type Gateway interface {
	CreateCustomer(email, name string, metadata map[string]string) (*stripe.Customer, error)
	CreateSubscription(customerID, priceID string, trialDays int64, metadata map[string]string) (*stripe.Subscription, error)
	GetSubscription(id string) (*stripe.Subscription, error)
	CancelAtPeriodEnd(id string) (*stripe.Subscription, error)
	UpdateSubscriptionPrice(subID, itemID, priceID string) (*stripe.Subscription, error)
	CreateScheduleFromSubscription(subID string) (*stripe.SubscriptionSchedule, error)
	SchedulePlanChange(scheduleID, currentPriceID, targetPriceID string, periodStart, periodEnd int64) (*stripe.SubscriptionSchedule, error)
	ReleaseSchedule(scheduleID string) (*stripe.SubscriptionSchedule, error)
}

// Live calls the real Stripe API. stripe.Key must be set before use.
type Live struct{}

func (Live) CreateCustomer(email, name string, metadata map[string]string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{
		Email:    stripe.String(email),
		Metadata: metadata,
	}
	if name != "" {
		params.Name = stripe.String(name)
	}
	return customer.New(params)
}

func (Live) CreateSubscription(customerID, priceID string, trialDays int64, metadata map[string]string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
		PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		},
		Metadata: metadata,
	}
	if trialDays > 0 {
		params.TrialPeriodDays = stripe.Int64(trialDays)
	}
	params.AddExpand("latest_invoice.payment_intent")
	return subscription.New(params)
}

func (Live) GetSubscription(id string) (*stripe.Subscription, error) {
	return subscription.Get(id, nil)
}

func (Live) CancelAtPeriodEnd(id string) (*stripe.Subscription, error) {
	return subscription.Update(id, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
}

func (Live) UpdateSubscriptionPrice(subID, itemID, priceID string) (*stripe.Subscription, error) {
	return subscription.Update(subID, &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(itemID),
				Price: stripe.String(priceID),
			},
		},
		ProrationBehavior: stripe.String("create_prorations"),
	})
}

func (Live) CreateScheduleFromSubscription(subID string) (*stripe.SubscriptionSchedule, error) {
	return schedules.New(&stripe.SubscriptionScheduleParams{
		FromSubscription: stripe.String(subID),
	})
}

// SchedulePlanChange rewrites a schedule into two phases: the current price
// until the period ends, the target price afterwards.
func (Live) SchedulePlanChange(scheduleID, currentPriceID, targetPriceID string, periodStart, periodEnd int64) (*stripe.SubscriptionSchedule, error) {
	return schedules.Update(scheduleID, &stripe.SubscriptionScheduleParams{
		EndBehavior: stripe.String("release"),
		Phases: []*stripe.SubscriptionSchedulePhaseParams{
			{
				StartDate: stripe.Int64(periodStart),
				EndDate:   stripe.Int64(periodEnd),
				Items: []*stripe.SubscriptionSchedulePhaseItemParams{
					{Price: stripe.String(currentPriceID), Quantity: stripe.Int64(1)},
				},
			},
			{
				StartDate: stripe.Int64(periodEnd),
				Items: []*stripe.SubscriptionSchedulePhaseItemParams{
					{Price: stripe.String(targetPriceID), Quantity: stripe.Int64(1)},
				},
			},
		},
	})
}

func (Live) ReleaseSchedule(scheduleID string) (*stripe.SubscriptionSchedule, error) {
	return schedules.Release(scheduleID, nil)
}
