// Package stripetest provides a configurable Gateway fake for handler and
// service tests.
package stripetest

import (
	"github.com/stripe/stripe-go/v75"
)

// FakeGateway implements stripeapi.Gateway. Set a Fn field to script a call;
// unset calls return a minimal successful response and are counted.
type FakeGateway struct {
	CreateCustomerFn          func(email, name string, metadata map[string]string) (*stripe.Customer, error)
	CreateSubscriptionFn      func(customerID, priceID string, trialDays int64, metadata map[string]string) (*stripe.Subscription, error)
	GetSubscriptionFn         func(id string) (*stripe.Subscription, error)
	CancelAtPeriodEndFn       func(id string) (*stripe.Subscription, error)
	UpdateSubscriptionPriceFn func(subID, itemID, priceID string) (*stripe.Subscription, error)
	CreateScheduleFn          func(subID string) (*stripe.SubscriptionSchedule, error)
	SchedulePlanChangeFn      func(scheduleID, currentPriceID, targetPriceID string, periodStart, periodEnd int64) (*stripe.SubscriptionSchedule, error)
	ReleaseScheduleFn         func(scheduleID string) (*stripe.SubscriptionSchedule, error)

	CreateCustomerCalls     int
	CreateSubCalls          int
	GetSubCalls             int
	CancelAtPeriodEndCalls  int
	UpdatePriceCalls        int
	CreateScheduleCalls     int
	SchedulePlanChangeCalls int
	ReleaseScheduleCalls    int
}

func (f *FakeGateway) CreateCustomer(email, name string, metadata map[string]string) (*stripe.Customer, error) {
	f.CreateCustomerCalls++
	if f.CreateCustomerFn != nil {
		return f.CreateCustomerFn(email, name, metadata)
	}
	return &stripe.Customer{ID: "cus_fake", Email: email}, nil
}

func (f *FakeGateway) CreateSubscription(customerID, priceID string, trialDays int64, metadata map[string]string) (*stripe.Subscription, error) {
	f.CreateSubCalls++
	if f.CreateSubscriptionFn != nil {
		return f.CreateSubscriptionFn(customerID, priceID, trialDays, metadata)
	}
	return &stripe.Subscription{
		ID:       "sub_fake",
		Status:   stripe.SubscriptionStatusTrialing,
		Customer: &stripe.Customer{ID: customerID},
	}, nil
}

func (f *FakeGateway) GetSubscription(id string) (*stripe.Subscription, error) {
	f.GetSubCalls++
	if f.GetSubscriptionFn != nil {
		return f.GetSubscriptionFn(id)
	}
	return &stripe.Subscription{ID: id, Status: stripe.SubscriptionStatusActive}, nil
}

func (f *FakeGateway) CancelAtPeriodEnd(id string) (*stripe.Subscription, error) {
	f.CancelAtPeriodEndCalls++
	if f.CancelAtPeriodEndFn != nil {
		return f.CancelAtPeriodEndFn(id)
	}
	return &stripe.Subscription{ID: id, CancelAtPeriodEnd: true}, nil
}

func (f *FakeGateway) UpdateSubscriptionPrice(subID, itemID, priceID string) (*stripe.Subscription, error) {
	f.UpdatePriceCalls++
	if f.UpdateSubscriptionPriceFn != nil {
		return f.UpdateSubscriptionPriceFn(subID, itemID, priceID)
	}
	return &stripe.Subscription{ID: subID, Status: stripe.SubscriptionStatusActive}, nil
}

func (f *FakeGateway) CreateScheduleFromSubscription(subID string) (*stripe.SubscriptionSchedule, error) {
	f.CreateScheduleCalls++
	if f.CreateScheduleFn != nil {
		return f.CreateScheduleFn(subID)
	}
	return &stripe.SubscriptionSchedule{ID: "sub_sched_fake"}, nil
}

func (f *FakeGateway) SchedulePlanChange(scheduleID, currentPriceID, targetPriceID string, periodStart, periodEnd int64) (*stripe.SubscriptionSchedule, error) {
	f.SchedulePlanChangeCalls++
	if f.SchedulePlanChangeFn != nil {
		return f.SchedulePlanChangeFn(scheduleID, currentPriceID, targetPriceID, periodStart, periodEnd)
	}
	return &stripe.SubscriptionSchedule{ID: scheduleID}, nil
}

func (f *FakeGateway) ReleaseSchedule(scheduleID string) (*stripe.SubscriptionSchedule, error) {
	f.ReleaseScheduleCalls++
	if f.ReleaseScheduleFn != nil {
		return f.ReleaseScheduleFn(scheduleID)
	}
	return &stripe.SubscriptionSchedule{ID: scheduleID}, nil
}
