// internal/lifecycle/tick.go
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	stderrors "association-backend/internal/common/errors"
	"association-backend/internal/common/metrics"
	"association-backend/internal/models"
)

const (
	tickWatermarkKey = "lifecycle:tick:day"
	tickLockKey      = "lifecycle:tick:lock"

	// The watermark only has to outlive its own day.
	tickWatermarkTTL = 48 * time.Hour
)

// PhaseCounts tallies one tick phase.
type PhaseCounts struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// TickResult summarizes one daily tick run. Skipped runs carry zero counts.
type TickResult struct {
	Day                     string      `json:"day"`
	Skipped                 bool        `json:"skipped"`
	TrialWarnings           PhaseCounts `json:"trialWarnings"`
	TrialExpirations        PhaseCounts `json:"trialExpirations"`
	SubscriptionWarnings    PhaseCounts `json:"subscriptionWarnings"`
	SubscriptionExpirations PhaseCounts `json:"subscriptionExpirations"`
}

// RunDailyTick advances every trial and subscription past its time
// threshold. A redis watermark makes the second run of a logical day a
// recorded no-op and a run-lock keeps concurrent instances from processing
// the same day twice. Per-record failures are counted, logged, and left for
// the next run; they never fail the tick.
func (e *Engine) RunDailyTick(ctx context.Context) (*TickResult, error) {
	now := e.now()
	day := now.Format("2006-01-02")
	result := &TickResult{Day: day}

	if e.rdb != nil {
		last, err := e.rdb.Get(ctx, tickWatermarkKey).Result()
		if err == nil && last == day {
			e.log.Info("tick already ran today", map[string]interface{}{"day": day})
			result.Skipped = true
			return result, nil
		}

		lockTTL := time.Duration(e.cfg.LockTTLMinutes) * time.Minute
		ok, err := e.rdb.SetNX(ctx, tickLockKey, day, lockTTL).Result()
		if err != nil {
			return nil, stderrors.NewStoreFailureError("acquire tick lock", err)
		}
		if !ok {
			e.log.Info("tick already running elsewhere", map[string]interface{}{"day": day})
			result.Skipped = true
			return result, nil
		}
		defer e.rdb.Del(context.WithoutCancel(ctx), tickLockKey)
	}

	start := time.Now()
	defer func() { metrics.TickDuration.Observe(time.Since(start).Seconds()) }()

	warningCutoff := now.AddDate(0, 0, e.cfg.WarningDays)

	result.TrialWarnings = e.warnExpiringTrials(ctx, now, warningCutoff)
	result.TrialExpirations = e.expireTrials(ctx, now)
	result.SubscriptionWarnings = e.warnExpiringSubscriptions(ctx, warningCutoff)
	result.SubscriptionExpirations = e.expireSubscriptions(ctx, now)

	if e.rdb != nil {
		if err := e.rdb.Set(ctx, tickWatermarkKey, day, tickWatermarkTTL).Err(); err != nil {
			e.log.Error("tick watermark write failed", map[string]interface{}{
				"day":   day,
				"error": err.Error(),
			})
		}
	}

	e.log.Info("daily tick complete", map[string]interface{}{
		"day":                      day,
		"trial_warnings":           result.TrialWarnings.Processed,
		"trial_expirations":        result.TrialExpirations.Processed,
		"subscription_warnings":    result.SubscriptionWarnings.Processed,
		"subscription_expirations": result.SubscriptionExpirations.Processed,
		"failed": result.TrialWarnings.Failed + result.TrialExpirations.Failed +
			result.SubscriptionWarnings.Failed + result.SubscriptionExpirations.Failed,
	})
	return result, nil
}

// warnExpiringTrials notifies trial members inside the warning window once.
// No state machine transition happens here; the warning mark is the only
// write, and it keeps repeat runs quiet.
func (e *Engine) warnExpiringTrials(ctx context.Context, now, cutoff time.Time) PhaseCounts {
	const phase = "trial_warning"
	members, err := e.members.TrialMembersExpiringBy(ctx, cutoff, true)
	if err != nil {
		return e.phaseQueryFailed(phase, err)
	}

	return e.forEachRecord(ctx, phase, len(members), func(ctx context.Context, i int) error {
		m := members[i]
		// Already past the end date: the expiry phase of this run owns it.
		if m.FreeTrialEndDate != nil && !m.FreeTrialEndDate.After(now) {
			return nil
		}
		// The mark lands before the notification; a failed mark stays failed
		// without the member having heard anything, so the retry is clean.
		if err := e.members.MarkTrialWarned(ctx, m.ID, now); err != nil {
			return err
		}
		e.notify(ctx, m.ID, "Your trial is ending soon",
			fmt.Sprintf("Your free trial ends on %s. Renew to keep access.",
				m.FreeTrialEndDate.Format("2 Jan 2006")))
		return nil
	})
}

// expireTrials moves members whose trial ran out back to awaiting_payment.
func (e *Engine) expireTrials(ctx context.Context, now time.Time) PhaseCounts {
	const phase = "trial_expiry"
	members, err := e.members.TrialMembersExpiringBy(ctx, now, false)
	if err != nil {
		return e.phaseQueryFailed(phase, err)
	}

	return e.forEachRecord(ctx, phase, len(members), func(ctx context.Context, i int) error {
		m := members[i]
		if err := e.members.EndTrial(ctx, m.ID); err != nil {
			return err
		}
		e.notify(ctx, m.ID, "Your trial has ended",
			"Your free trial has ended. Complete your payment to continue.")
		return nil
	})
}

// warnExpiringSubscriptions flips subscriptions inside the warning window to
// expiring. Already-expiring records are re-selected and re-notified daily
// until they renew or lapse.
func (e *Engine) warnExpiringSubscriptions(ctx context.Context, cutoff time.Time) PhaseCounts {
	const phase = "subscription_warning"
	subs, err := e.subs.SubscriptionsExpiringBy(ctx, cutoff, []models.SubscriptionStatus{
		models.SubscriptionActive, models.SubscriptionExpiring,
	})
	if err != nil {
		return e.phaseQueryFailed(phase, err)
	}

	return e.forEachRecord(ctx, phase, len(subs), func(ctx context.Context, i int) error {
		sub := subs[i]
		if sub.Status != models.SubscriptionExpiring {
			if err := e.subs.SetSubscriptionStatus(ctx, sub.ID, models.SubscriptionExpiring); err != nil {
				return err
			}
		}
		e.notify(ctx, sub.MemberID, "Your subscription is expiring",
			fmt.Sprintf("Your subscription expires on %s. Renew to keep premium access.",
				sub.ExpiryDate.Format("2 Jan 2006")))
		return nil
	})
}

// expireSubscriptions lapses expiring subscriptions past their expiry date
// and drops the member back to the free tier.
func (e *Engine) expireSubscriptions(ctx context.Context, now time.Time) PhaseCounts {
	const phase = "subscription_expiry"
	subs, err := e.subs.SubscriptionsExpiringBy(ctx, now, []models.SubscriptionStatus{
		models.SubscriptionExpiring,
	})
	if err != nil {
		return e.phaseQueryFailed(phase, err)
	}

	return e.forEachRecord(ctx, phase, len(subs), func(ctx context.Context, i int) error {
		sub := subs[i]
		if err := e.subs.SetSubscriptionStatus(ctx, sub.ID, models.SubscriptionExpired); err != nil {
			return err
		}
		if err := e.members.SetAppTier(ctx, sub.MemberID, models.TierFree); err != nil {
			return err
		}
		e.notify(ctx, sub.MemberID, "Your subscription has expired",
			"Your subscription has expired and premium access is paused. Renew any time.")
		return nil
	})
}

// forEachRecord runs fn over n records with bounded parallelism. Failures
// are isolated per record: counted, logged, and skipped.
func (e *Engine) forEachRecord(ctx context.Context, phase string, n int, fn func(ctx context.Context, i int) error) PhaseCounts {
	concurrency := e.cfg.TickConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		counts PhaseCounts
		sem    = make(chan struct{}, concurrency)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			err := fn(ctx, i)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				counts.Failed++
				metrics.TickRecordsFailed.WithLabelValues(phase).Inc()
				e.log.Error("tick record failed", map[string]interface{}{
					"phase": phase,
					"error": stderrors.NewTickRecordFailedError(fmt.Sprintf("%s[%d]", phase, i), err).Error(),
				})
				return
			}
			counts.Processed++
			metrics.TickRecordsProcessed.WithLabelValues(phase).Inc()
		}(i)
	}
	wg.Wait()
	return counts
}

func (e *Engine) phaseQueryFailed(phase string, err error) PhaseCounts {
	metrics.TickRecordsFailed.WithLabelValues(phase).Inc()
	e.log.Error("tick phase query failed", map[string]interface{}{
		"phase": phase,
		"error": err.Error(),
	})
	return PhaseCounts{Failed: 1}
}
