// Package notification implements dispatch fanout over the email and in-app
// channels. A dispatch resolves its audience once, persists a single
// notification with the deduplicated recipient set, and then delivers on a
// best-effort basis: gateway failures are collected per recipient and never
// abort the dispatch.
package notification

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	stderrors "association-backend/internal/common/errors"
	"association-backend/internal/common/logger"
	"association-backend/internal/common/metrics"
	"association-backend/internal/models"
)

// markReadFetchLimit caps how many unread notifications one read
// acknowledgement covers.
const markReadFetchLimit = 20

type memberDirectory interface {
	MembersByIDs(ctx context.Context, ids []string) ([]models.Member, error)
	MembersByStatuses(ctx context.Context, statuses []models.MemberStatus) ([]models.Member, error)
}

type audienceResolver interface {
	ActiveMembersOf(ctx context.Context, unitID string) ([]string, error)
}

type notificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	UnreadForMember(ctx context.Context, memberID string, limit int) ([]models.Notification, error)
	MarkRecipientsRead(ctx context.Context, memberID string, notificationIDs []string) (int64, error)
	ListNotifications(ctx context.Context, page, limit int) ([]models.Notification, error)
}

// DispatchRequest is one fanout order.
type DispatchRequest struct {
	Target     Target
	Subject    string
	Content    string
	Media      string
	Channel    models.Channel
	SenderKind models.SenderKind
	SenderID   string
}

// RecipientFailure records one member the gateway could not reach. The
// notification record still carries the member; only delivery failed.
type RecipientFailure struct {
	MemberID string `json:"memberId"`
	Reason   string `json:"reason"`
}

// DispatchResult summarizes one fanout.
type DispatchResult struct {
	NotificationID string             `json:"notificationId"`
	Recipients     int                `json:"recipients"`
	Delivered      int                `json:"delivered"`
	Skipped        int                `json:"skipped"`
	Failures       []RecipientFailure `json:"failures,omitempty"`
}

// ReadResult reports a read acknowledgement.
type ReadResult struct {
	Notifications []models.Notification `json:"notifications"`
	MarkedRead    int64                 `json:"markedRead"`
}

// Fanout coordinates audience resolution, persistence, and delivery.
type Fanout struct {
	members     memberDirectory
	audience    audienceResolver
	store       notificationStore
	email       EmailGateway
	push        PushGateway
	reachable   []models.MemberStatus
	concurrency int
	log         logger.Logger
}

// New creates a Fanout. email and push may be nil when the corresponding
// gateway is disabled; dispatches on that channel then persist without
// delivering.
func New(members memberDirectory, audience audienceResolver, store notificationStore,
	email EmailGateway, push PushGateway,
	reachable []models.MemberStatus, concurrency int, log logger.Logger) *Fanout {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Fanout{
		members:     members,
		audience:    audience,
		store:       store,
		email:       email,
		push:        push,
		reachable:   reachable,
		concurrency: concurrency,
		log:         log,
	}
}

// Dispatch resolves the target audience, persists the notification, and
// delivers it on the requested channel. The returned error is request-scoped
// (validation, store); delivery failures live in the result.
func (f *Fanout) Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResult, error) {
	if req.Subject == "" || req.Content == "" {
		return nil, stderrors.NewValidationError("subject and content are required")
	}
	if req.Channel != models.ChannelEmail && req.Channel != models.ChannelInApp {
		return nil, stderrors.NewValidationError("unknown channel")
	}
	if err := req.Target.Validate(); err != nil {
		return nil, err
	}

	recipients, err := f.resolveAudience(ctx, req.Target)
	if err != nil {
		return nil, err
	}

	n := &models.Notification{
		ID:         uuid.New().String(),
		Subject:    req.Subject,
		Content:    req.Content,
		Media:      req.Media,
		Channel:    req.Channel,
		SenderKind: req.SenderKind,
		SenderID:   req.SenderID,
	}
	for _, m := range recipients {
		n.Recipients = append(n.Recipients, models.Recipient{MemberID: m.ID})
	}

	// The record must survive a caller that gives up mid-dispatch; delivery
	// state and the read ledger both hang off it.
	if err := f.store.CreateNotification(context.WithoutCancel(ctx), n); err != nil {
		return nil, stderrors.NewStoreFailureError("create notification", err)
	}
	metrics.NotificationRecipients.WithLabelValues(string(req.Channel)).Add(float64(len(recipients)))

	result := &DispatchResult{
		NotificationID: n.ID,
		Recipients:     len(recipients),
	}
	switch req.Channel {
	case models.ChannelEmail:
		f.deliverEmail(ctx, req, recipients, result)
	case models.ChannelInApp:
		f.deliverPush(ctx, req, recipients, result)
	}

	f.log.Info("dispatch complete", map[string]interface{}{
		"notification_id": n.ID,
		"channel":         string(req.Channel),
		"recipients":      result.Recipients,
		"delivered":       result.Delivered,
		"skipped":         result.Skipped,
		"failed":          len(result.Failures),
	})
	return result, nil
}

// resolveAudience expands the target into a deduplicated member list ordered
// by member id. All and scoped targets only yield reachable members; explicit
// targets name their recipients outright, so status never filters them —
// lifecycle events must reach members just moved out of a reachable status.
func (f *Fanout) resolveAudience(ctx context.Context, target Target) ([]models.Member, error) {
	var (
		members []models.Member
		err     error
	)
	switch target.Kind {
	case TargetAll:
		members, err = f.members.MembersByStatuses(ctx, f.reachable)
	case TargetExplicit:
		members, err = f.members.MembersByIDs(ctx, dedupe(target.MemberIDs))
	case TargetScoped:
		var ids []string
		for _, unitID := range target.OrgUnitIDs {
			unitMembers, aerr := f.audience.ActiveMembersOf(ctx, unitID)
			if aerr != nil {
				return nil, aerr
			}
			ids = append(ids, unitMembers...)
		}
		members, err = f.members.MembersByIDs(ctx, dedupe(ids))
	}
	if err != nil {
		return nil, stderrors.NewStoreFailureError("resolve audience", err)
	}

	if target.Kind != TargetExplicit {
		out := members[:0]
		for _, m := range members {
			if f.isReachable(m.Status) {
				out = append(out, m)
			}
		}
		members = out
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}

func (f *Fanout) isReachable(status models.MemberStatus) bool {
	for _, s := range f.reachable {
		if s == status {
			return true
		}
	}
	return false
}

// deliverEmail sends one gateway call covering every addressable recipient.
// Members without an email address are skipped but keep their notification
// record.
func (f *Fanout) deliverEmail(ctx context.Context, req DispatchRequest, recipients []models.Member, result *DispatchResult) {
	var addresses []string
	addressed := make([]models.Member, 0, len(recipients))
	for _, m := range recipients {
		if m.Email == "" {
			result.Skipped++
			continue
		}
		addresses = append(addresses, m.Email)
		addressed = append(addressed, m)
	}
	if len(addresses) == 0 || f.email == nil {
		result.Skipped += len(addressed)
		return
	}

	if err := f.email.SendEmail(ctx, addresses, req.Subject, req.Content); err != nil {
		metrics.NotificationSendFailures.WithLabelValues(string(models.ChannelEmail)).Add(float64(len(addressed)))
		for _, m := range addressed {
			result.Failures = append(result.Failures, RecipientFailure{
				MemberID: m.ID,
				Reason:   stderrors.NewDispatchFailedError(string(models.ChannelEmail), err).Error(),
			})
		}
		return
	}
	result.Delivered = len(addressed)
}

// deliverPush sends one gateway call per device token, capped at the
// configured concurrency. Tokenless members are skipped but keep their
// notification record.
func (f *Fanout) deliverPush(ctx context.Context, req DispatchRequest, recipients []models.Member, result *DispatchResult) {
	if f.push == nil {
		result.Skipped = len(recipients)
		return
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, f.concurrency)
	)
	for _, m := range recipients {
		if m.PushToken == "" {
			result.Skipped++
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(m models.Member) {
			defer wg.Done()
			defer func() { <-sem }()

			err := f.push.SendPush(ctx, m.PushToken, req.Subject, req.Content)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				metrics.NotificationSendFailures.WithLabelValues(string(models.ChannelInApp)).Inc()
				result.Failures = append(result.Failures, RecipientFailure{
					MemberID: m.ID,
					Reason:   stderrors.NewDispatchFailedError(string(models.ChannelInApp), err).Error(),
				})
				return
			}
			result.Delivered++
		}(m)
	}
	wg.Wait()
	sort.Slice(result.Failures, func(i, j int) bool {
		return result.Failures[i].MemberID < result.Failures[j].MemberID
	})
}

// MarkRead fetches the member's most recent unread notifications, up to the
// fetch limit, and flips their read flags. Notifications arriving between the
// fetch and the update stay unread for the next acknowledgement.
func (f *Fanout) MarkRead(ctx context.Context, memberID string) (*ReadResult, error) {
	unread, err := f.store.UnreadForMember(ctx, memberID, markReadFetchLimit)
	if err != nil {
		return nil, stderrors.NewStoreFailureError("fetch unread", err)
	}
	if len(unread) == 0 {
		return &ReadResult{}, nil
	}

	ids := make([]string, len(unread))
	for i, n := range unread {
		ids[i] = n.ID
	}
	marked, err := f.store.MarkRecipientsRead(ctx, memberID, ids)
	if err != nil {
		return nil, stderrors.NewStoreFailureError("mark read", err)
	}
	return &ReadResult{Notifications: unread, MarkedRead: marked}, nil
}

// List pages over all persisted notifications, newest first.
func (f *Fanout) List(ctx context.Context, page, limit int) ([]models.Notification, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return f.store.ListNotifications(ctx, page, limit)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
