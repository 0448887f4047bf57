// Package lifecycle drives the membership and subscription state machines:
// the operator-triggered transitions (approval, payments, moderation) and the
// scheduled daily tick that ages trials and subscriptions past their
// thresholds.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"association-backend/internal/common/config"
	stderrors "association-backend/internal/common/errors"
	"association-backend/internal/common/logger"
	"association-backend/internal/models"
	"association-backend/internal/notification"
)

type memberLifecycleStore interface {
	GetMember(ctx context.Context, id string) (*models.Member, error)
	TrialMembersExpiringBy(ctx context.Context, cutoff time.Time, excludeWarned bool) ([]models.Member, error)
	BeginTrial(ctx context.Context, id string, end time.Time) error
	EndTrial(ctx context.Context, id string) error
	MarkTrialWarned(ctx context.Context, id string, at time.Time) error
	SetMemberStatus(ctx context.Context, id string, status models.MemberStatus) error
	SetAppTier(ctx context.Context, id string, tier models.AppTier) error
}

type subscriptionLifecycleStore interface {
	SubscriptionsExpiringBy(ctx context.Context, cutoff time.Time, statuses []models.SubscriptionStatus) ([]models.MembershipSubscription, error)
	SetSubscriptionStatus(ctx context.Context, id string, status models.SubscriptionStatus) error
	UpsertSubscription(ctx context.Context, id, memberID string, expiry time.Time) error
}

type notifier interface {
	Dispatch(ctx context.Context, req notification.DispatchRequest) (*notification.DispatchResult, error)
}

// Engine owns every transition of the member and subscription state machines.
type Engine struct {
	members  memberLifecycleStore
	subs     subscriptionLifecycleStore
	notifier notifier
	rdb      *redis.Client
	cfg      config.LifecycleConfig
	log      logger.Logger
	now      func() time.Time
}

// New creates an Engine. rdb coordinates tick runs across instances and may
// be nil in single-instance test setups.
func New(members memberLifecycleStore, subs subscriptionLifecycleStore,
	n notifier, rdb *redis.Client, cfg config.LifecycleConfig, log logger.Logger) *Engine {
	return &Engine{
		members:  members,
		subs:     subs,
		notifier: n,
		rdb:      rdb,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// WithClock overrides the engine clock. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// ApproveMember decides a pending application. Approval starts the free
// trial; rejection parks the member as inactive. Only awaiting_payment
// members can be decided.
func (e *Engine) ApproveMember(ctx context.Context, memberID string, approve bool) error {
	m, err := e.members.GetMember(ctx, memberID)
	if err != nil {
		return err
	}
	if m.Status != models.StatusAwaitingPayment {
		return stderrors.NewInvariantViolationError(
			fmt.Sprintf("member %s is %s, only awaiting_payment members can be decided", memberID, m.Status))
	}

	if !approve {
		if err := e.members.SetMemberStatus(ctx, memberID, models.StatusInactive); err != nil {
			return err
		}
		e.notify(ctx, memberID, "Application update", "Your membership application was not approved.")
		return nil
	}

	end := e.now().AddDate(0, 0, e.cfg.TrialDays)
	if err := e.members.BeginTrial(ctx, memberID, end); err != nil {
		return err
	}
	e.notify(ctx, memberID, "Welcome aboard",
		fmt.Sprintf("Your free trial is active until %s.", end.Format("2 Jan 2006")))
	return nil
}

// RecordPayment applies a gateway outcome to one of the two payment tracks.
func (e *Engine) RecordPayment(ctx context.Context, memberID string, track models.PaymentTrack, accepted bool) error {
	if _, err := e.members.GetMember(ctx, memberID); err != nil {
		return err
	}

	switch track {
	case models.TrackMembership:
		status := models.StatusActive
		if !accepted {
			status = models.StatusInactive
		}
		if err := e.members.SetMemberStatus(ctx, memberID, status); err != nil {
			return err
		}
	case models.TrackApp:
		if accepted {
			expiry := e.now().AddDate(0, 0, e.cfg.SubscriptionDays)
			if err := e.subs.UpsertSubscription(ctx, uuid.New().String(), memberID, expiry); err != nil {
				return err
			}
			if err := e.members.SetAppTier(ctx, memberID, models.TierPremium); err != nil {
				return err
			}
		} else if err := e.members.SetAppTier(ctx, memberID, models.TierFree); err != nil {
			return err
		}
	default:
		return stderrors.NewValidationError("unknown payment track")
	}

	subject, body := "Payment received", "Thank you, your payment has been recorded."
	if !accepted {
		subject, body = "Payment cancelled", "Your payment was cancelled."
	}
	e.notify(ctx, memberID, subject, body)
	return nil
}

// SetMemberStatus applies a moderation transition. deleted is terminal: a
// deleted member can never be revived.
func (e *Engine) SetMemberStatus(ctx context.Context, memberID string, status models.MemberStatus) error {
	if !models.ValidMemberStatus(status) {
		return stderrors.NewValidationError("unknown member status")
	}
	m, err := e.members.GetMember(ctx, memberID)
	if err != nil {
		return err
	}
	if m.Status == models.StatusDeleted {
		return stderrors.NewInvariantViolationError("deleted members cannot change status")
	}
	return e.members.SetMemberStatus(ctx, memberID, status)
}

// notify fires a single-member scheduler notification. Delivery problems are
// logged and swallowed; the state transition already happened.
func (e *Engine) notify(ctx context.Context, memberID, subject, body string) {
	if e.notifier == nil {
		return
	}
	_, err := e.notifier.Dispatch(ctx, notification.DispatchRequest{
		Target:     notification.Explicit([]string{memberID}),
		Subject:    subject,
		Content:    body,
		Channel:    models.ChannelInApp,
		SenderKind: models.SenderScheduler,
	})
	if err != nil {
		e.log.Warn("lifecycle notification failed", map[string]interface{}{
			"member_id": memberID,
			"subject":   subject,
			"error":     err.Error(),
		})
	}
}
