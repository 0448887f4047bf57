package notification

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "association-backend/internal/common/errors"
	"association-backend/internal/common/logger"
	"association-backend/internal/models"
)

type fakeMemberDirectory struct {
	members map[string]models.Member
}

func (f *fakeMemberDirectory) MembersByIDs(_ context.Context, ids []string) ([]models.Member, error) {
	var out []models.Member
	for _, id := range ids {
		if m, ok := f.members[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMemberDirectory) MembersByStatuses(_ context.Context, statuses []models.MemberStatus) ([]models.Member, error) {
	var out []models.Member
	for _, m := range f.members {
		for _, s := range statuses {
			if m.Status == s {
				out = append(out, m)
				break
			}
		}
	}
	return out, nil
}

type fakeAudience struct {
	units map[string][]string
}

func (f *fakeAudience) ActiveMembersOf(_ context.Context, unitID string) ([]string, error) {
	return f.units[unitID], nil
}

type fakeNotificationStore struct {
	mu      sync.Mutex
	created []*models.Notification
	unread  []models.Notification
	marked  []string
}

func (f *fakeNotificationStore) CreateNotification(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, n)
	return nil
}

func (f *fakeNotificationStore) UnreadForMember(_ context.Context, _ string, limit int) ([]models.Notification, error) {
	if len(f.unread) > limit {
		return f.unread[:limit], nil
	}
	return f.unread, nil
}

func (f *fakeNotificationStore) MarkRecipientsRead(_ context.Context, _ string, ids []string) (int64, error) {
	f.marked = ids
	return int64(len(ids)), nil
}

func (f *fakeNotificationStore) ListNotifications(_ context.Context, _, _ int) ([]models.Notification, error) {
	return nil, nil
}

type fakePush struct {
	mu     sync.Mutex
	tokens []string
	fail   map[string]error
}

func (f *fakePush) SendPush(_ context.Context, token, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[token]; ok {
		return err
	}
	f.tokens = append(f.tokens, token)
	return nil
}

type fakeEmail struct {
	to   []string
	fail error
}

func (f *fakeEmail) SendEmail(_ context.Context, to []string, _, _ string) error {
	if f.fail != nil {
		return f.fail
	}
	f.to = to
	return nil
}

var reachable = []models.MemberStatus{
	models.StatusActive, models.StatusAwaitingPayment, models.StatusTrial,
}

func fixtureMembers() *fakeMemberDirectory {
	return &fakeMemberDirectory{members: map[string]models.Member{
		"m1": {ID: "m1", Status: models.StatusActive, Email: "m1@example.org", PushToken: "tok-1"},
		"m2": {ID: "m2", Status: models.StatusTrial, Email: "m2@example.org", PushToken: "tok-2"},
		"m3": {ID: "m3", Status: models.StatusBlocked, Email: "m3@example.org", PushToken: "tok-3"},
		"m4": {ID: "m4", Status: models.StatusActive}, // no email, no token
		"m5": {ID: "m5", Status: models.StatusInactive, Email: "m5@example.org", PushToken: "tok-5"},
	}}
}

func newTestFanout(members *fakeMemberDirectory, audience *fakeAudience,
	store *fakeNotificationStore, email EmailGateway, push PushGateway) *Fanout {
	return New(members, audience, store, email, push, reachable, 4, logger.NewNoOpLogger())
}

func TestDispatch_ScopedOverlapDeduplicates(t *testing.T) {
	// m1 sits in both units; it must receive exactly one recipient entry.
	audience := &fakeAudience{units: map[string][]string{
		"D1": {"m1", "m2"},
		"C1": {"m1"},
	}}
	store := &fakeNotificationStore{}
	push := &fakePush{}
	f := newTestFanout(fixtureMembers(), audience, store, nil, push)

	result, err := f.Dispatch(context.Background(), DispatchRequest{
		Target:     Scoped(models.LevelDistrict, []string{"D1", "C1"}),
		Subject:    "Meet",
		Content:    "Sunday",
		Channel:    models.ChannelInApp,
		SenderKind: models.SenderAdmin,
		SenderID:   "m9",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Recipients)
	assert.Equal(t, 2, result.Delivered)
	require.Len(t, store.created, 1)
	var got []string
	for _, r := range store.created[0].Recipients {
		got = append(got, r.MemberID)
	}
	assert.Equal(t, []string{"m1", "m2"}, got)
}

func TestDispatch_AllEligibleFiltersByStatus(t *testing.T) {
	store := &fakeNotificationStore{}
	f := newTestFanout(fixtureMembers(), nil, store, nil, &fakePush{})

	result, err := f.Dispatch(context.Background(), DispatchRequest{
		Target:  AllEligible(), // m3 blocked, m5 inactive
		Subject: "s", Content: "c",
		Channel:    models.ChannelInApp,
		SenderKind: models.SenderAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Recipients)
	require.Len(t, store.created, 1)
	var got []string
	for _, r := range store.created[0].Recipients {
		got = append(got, r.MemberID)
	}
	assert.Equal(t, []string{"m1", "m2", "m4"}, got)
}

func TestDispatch_ExplicitReachesAnyStatus(t *testing.T) {
	// A rejection or cancellation notice goes to a member the same event just
	// made inactive; naming a member explicitly bypasses the status filter.
	store := &fakeNotificationStore{}
	push := &fakePush{}
	f := newTestFanout(fixtureMembers(), nil, store, nil, push)

	result, err := f.Dispatch(context.Background(), DispatchRequest{
		Target:  Explicit([]string{"m1", "m5"}), // m5 is inactive
		Subject: "s", Content: "c",
		Channel:    models.ChannelInApp,
		SenderKind: models.SenderScheduler,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Recipients)
	assert.Equal(t, 2, result.Delivered)
	require.Len(t, store.created, 1)
	require.Len(t, store.created[0].Recipients, 2)
	assert.Equal(t, "m5", store.created[0].Recipients[1].MemberID)
	sort.Strings(push.tokens)
	assert.Equal(t, []string{"tok-1", "tok-5"}, push.tokens)
}

func TestDispatch_TokenlessMemberPersistedButSkipped(t *testing.T) {
	store := &fakeNotificationStore{}
	push := &fakePush{}
	f := newTestFanout(fixtureMembers(), nil, store, nil, push)

	result, err := f.Dispatch(context.Background(), DispatchRequest{
		Target:  Explicit([]string{"m1", "m4"}),
		Subject: "s", Content: "c",
		Channel:    models.ChannelInApp,
		SenderKind: models.SenderScheduler,
	})
	require.NoError(t, err)

	// m4 keeps its record and shows up on its next in-app fetch.
	assert.Equal(t, 2, result.Recipients)
	assert.Equal(t, 1, result.Delivered)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, store.created, 1)
	assert.Len(t, store.created[0].Recipients, 2)
	assert.Equal(t, []string{"tok-1"}, push.tokens)
}

func TestDispatch_PushFailureDoesNotAbort(t *testing.T) {
	store := &fakeNotificationStore{}
	push := &fakePush{fail: map[string]error{"tok-1": errors.New("endpoint disabled")}}
	f := newTestFanout(fixtureMembers(), nil, store, nil, push)

	result, err := f.Dispatch(context.Background(), DispatchRequest{
		Target:  Explicit([]string{"m1", "m2"}),
		Subject: "s", Content: "c",
		Channel:    models.ChannelInApp,
		SenderKind: models.SenderAdmin,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Delivered)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "m1", result.Failures[0].MemberID)
	assert.Contains(t, result.Failures[0].Reason, "DISPATCH_FAILED")

	sort.Strings(push.tokens)
	assert.Equal(t, []string{"tok-2"}, push.tokens)
}

func TestDispatch_EmailSingleGatewayCall(t *testing.T) {
	store := &fakeNotificationStore{}
	email := &fakeEmail{}
	f := newTestFanout(fixtureMembers(), nil, store, email, nil)

	result, err := f.Dispatch(context.Background(), DispatchRequest{
		Target:  Explicit([]string{"m1", "m2", "m4"}), // m4 has no address
		Subject: "s", Content: "c",
		Channel:    models.ChannelEmail,
		SenderKind: models.SenderAdmin,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Recipients)
	assert.Equal(t, 2, result.Delivered)
	assert.Equal(t, 1, result.Skipped)
	sort.Strings(email.to)
	assert.Equal(t, []string{"m1@example.org", "m2@example.org"}, email.to)
}

func TestDispatch_EmailFailureRecordedPerRecipient(t *testing.T) {
	store := &fakeNotificationStore{}
	email := &fakeEmail{fail: errors.New("throttled")}
	f := newTestFanout(fixtureMembers(), nil, store, email, nil)

	result, err := f.Dispatch(context.Background(), DispatchRequest{
		Target:  Explicit([]string{"m1", "m2"}),
		Subject: "s", Content: "c",
		Channel:    models.ChannelEmail,
		SenderKind: models.SenderAdmin,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Delivered)
	assert.Len(t, result.Failures, 2)
	require.Len(t, store.created, 1) // record persisted before delivery
}

func TestDispatch_ValidationErrors(t *testing.T) {
	f := newTestFanout(fixtureMembers(), nil, &fakeNotificationStore{}, nil, nil)

	tests := []struct {
		name string
		req  DispatchRequest
	}{
		{"empty subject", DispatchRequest{
			Target: AllEligible(), Content: "c", Channel: models.ChannelInApp,
		}},
		{"unknown channel", DispatchRequest{
			Target: AllEligible(), Subject: "s", Content: "c", Channel: "sms",
		}},
		{"explicit without ids", DispatchRequest{
			Target: Explicit(nil), Subject: "s", Content: "c", Channel: models.ChannelInApp,
		}},
		{"scoped without units", DispatchRequest{
			Target: Scoped(models.LevelZone, nil), Subject: "s", Content: "c", Channel: models.ChannelInApp,
		}},
		{"scoped with bad level", DispatchRequest{
			Target: Scoped("region", []string{"u1"}), Subject: "s", Content: "c", Channel: models.ChannelInApp,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Dispatch(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, stderrors.HasCode(err, stderrors.ErrCodeValidation))
		})
	}
}

func TestMarkRead(t *testing.T) {
	store := &fakeNotificationStore{unread: []models.Notification{
		{ID: "n1"}, {ID: "n2"},
	}}
	f := newTestFanout(fixtureMembers(), nil, store, nil, nil)

	result, err := f.MarkRead(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.MarkedRead)
	assert.Len(t, result.Notifications, 2)
	assert.Equal(t, []string{"n1", "n2"}, store.marked)
}

func TestMarkRead_NothingUnread(t *testing.T) {
	store := &fakeNotificationStore{}
	f := newTestFanout(fixtureMembers(), nil, store, nil, nil)

	result, err := f.MarkRead(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.MarkedRead)
	assert.Empty(t, result.Notifications)
	assert.Nil(t, store.marked)
}
