package users

import (
	"time"

	"subscription-api/internal/domain/plans"
	"subscription-api/internal/domain/subscriptions"
)

func BuildPlanDTO(p *plans.SubscriptionPlan) *PlanDTO {
	if p == nil {
		return nil
	}
	return &PlanDTO{
		ID:            p.ID,
		Name:          p.Name,
		LookupKey:     p.LookupKey,
		PlanType:      plans.EffectiveType(p),
		BillingPeriod: p.BillingPeriod,
		Price:         p.Price,
	}
}

func BuildSubscriptionDTO(now time.Time, s *subscriptions.UserSubscription) *SubscriptionDTO {
	if s == nil {
		return nil
	}
	return &SubscriptionDTO{
		Status:           s.Status,
		IsActive:         s.IsSubscriptionActive(now),
		CurrentPeriodEnd: s.CurrentPeriodEnd,
		CanceledAt:       s.CanceledAt,
	}
}

func BuildTrialDTO(now time.Time, s *subscriptions.UserSubscription) *TrialDTO {
	if s == nil || s.TrialStartAt == nil || s.TrialEndAt == nil {
		return nil
	}

	days := s.DaysRemainingInTrial(now)
	return &TrialDTO{
		StartsAt: s.TrialStartAt,
		EndsAt:   s.TrialEndAt,
		DaysLeft: &days,
	}
}

func BuildPendingChangeDTO(s *subscriptions.UserSubscription) *PendingChangeDTO {
	if s == nil || s.PendingPlanID == nil || s.PendingPlan == nil || s.PendingPlanStartDate == nil {
		return nil
	}
	return &PendingChangeDTO{
		EffectiveAt: s.PendingPlanStartDate,
		Plan:        BuildPlanDTO(s.PendingPlan),
	}
}
