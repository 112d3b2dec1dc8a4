package service

import (
	"encoding/json"
	"fmt"
	"time"

	"subscription-api/internal/domain/subscriptions"
	"subscription-api/internal/infra/stripeapi"

	"gorm.io/gorm"
)

// SubscriptionService owns the reconciliation logic shared by the webhook
// handlers, the REST handlers and the trial sweep.
type SubscriptionService struct {
	DB     *gorm.DB
	Stripe stripeapi.Gateway
}

func New(db *gorm.DB, gw stripeapi.Gateway) *SubscriptionService {
	return &SubscriptionService{DB: db, Stripe: gw}
}

// RecordHistory appends an audit row. Metadata is stored as JSON; a nil map
// writes an empty object.
func (s *SubscriptionService) RecordHistory(subID uint, eventType, description string, metadata map[string]interface{}) error {
	raw := "{}"
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to encode history metadata: %w", err)
		}
		raw = string(b)
	}
	return s.DB.Create(&subscriptions.SubscriptionHistory{
		SubscriptionID: subID,
		EventType:      eventType,
		Description:    description,
		Metadata:       raw,
	}).Error
}

// SyncStripeSubscription fetches the canonical subscription from Stripe and
// reconciles the local row: status mapping, period window, and a
// status_changed audit entry when the status actually moved.
func (s *SubscriptionService) SyncStripeSubscription(stripeSubID string) (*subscriptions.UserSubscription, error) {
	stripeSub, err := s.Stripe.GetSubscription(stripeSubID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Stripe subscription %s: %w", stripeSubID, err)
	}

	var sub subscriptions.UserSubscription
	if err := s.DB.Where("stripe_subscription_id = ?", stripeSubID).First(&sub).Error; err != nil {
		return nil, err
	}

	newStatus := stripeapi.NormalizeStatus(string(stripeSub.Status))
	if sub.Status != newStatus {
		sub.Status = newStatus
		if err := s.RecordHistory(sub.ID, subscriptions.EventStatusChanged,
			fmt.Sprintf("Status changed to %s", newStatus),
			map[string]interface{}{"stripe_status": string(stripeSub.Status)},
		); err != nil {
			return nil, err
		}
	}

	if stripeSub.CurrentPeriodStart > 0 {
		start := time.Unix(stripeSub.CurrentPeriodStart, 0)
		sub.CurrentPeriodStart = &start
	}
	if stripeSub.CurrentPeriodEnd > 0 {
		end := time.Unix(stripeSub.CurrentPeriodEnd, 0)
		sub.CurrentPeriodEnd = &end
	}

	if err := s.DB.Save(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// CancelLocal marks a subscription canceled and appends the audit row.
func (s *SubscriptionService) CancelLocal(sub *subscriptions.UserSubscription, eventType, description string, metadata map[string]interface{}) error {
	now := time.Now()
	if err := s.DB.Model(&subscriptions.UserSubscription{}).
		Where("id = ?", sub.ID).
		Updates(map[string]interface{}{
			"status":      subscriptions.StatusCanceled,
			"canceled_at": now,
		}).Error; err != nil {
		return err
	}
	sub.Status = subscriptions.StatusCanceled
	sub.CanceledAt = &now
	return s.RecordHistory(sub.ID, eventType, description, metadata)
}

type TrialSweepResult struct {
	Expired   int `json:"expired"`
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
	Synced    int `json:"synced"`
}

// ExpireTrials processes trials whose window has passed. Subscriptions with a
// Stripe id are reconciled first and canceled only when still trialing after
// the sync; the rest are canceled directly. Running trials with a Stripe id
// are synced too so payments made mid-trial activate without waiting for the
// webhook.
func (s *SubscriptionService) ExpireTrials(now time.Time, dryRun bool) (TrialSweepResult, error) {
	var res TrialSweepResult

	var expired []subscriptions.UserSubscription
	if err := s.DB.
		Where("status = ? AND trial_end_at IS NOT NULL AND trial_end_at < ?", subscriptions.StatusTrialing, now).
		Find(&expired).Error; err != nil {
		return res, err
	}
	res.Expired = len(expired)

	for i := range expired {
		sub := &expired[i]
		if dryRun {
			res.Processed++
			continue
		}

		if sub.StripeSubscriptionID != nil && *sub.StripeSubscriptionID != "" {
			synced, err := s.SyncStripeSubscription(*sub.StripeSubscriptionID)
			if err == nil {
				sub = synced
			}
			// Sync failure still expires the trial; there is no payment to lose.
		}

		if sub.Status == subscriptions.StatusTrialing {
			if err := s.CancelLocal(sub, subscriptions.EventTrialEnded, "Trial period expired", nil); err != nil {
				res.Errors++
				continue
			}
		}
		res.Processed++
	}

	if dryRun {
		return res, nil
	}

	var running []subscriptions.UserSubscription
	if err := s.DB.
		Where("status = ? AND trial_end_at >= ? AND stripe_subscription_id IS NOT NULL", subscriptions.StatusTrialing, now).
		Find(&running).Error; err != nil {
		return res, err
	}
	for i := range running {
		if _, err := s.SyncStripeSubscription(*running[i].StripeSubscriptionID); err == nil {
			res.Synced++
		}
	}

	return res, nil
}
