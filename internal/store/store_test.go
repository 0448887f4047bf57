package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	stderrors "association-backend/internal/common/errors"
	"association-backend/internal/common/logger"
	"association-backend/internal/models"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, logger.NewZapAdapter(zaptest.NewLogger(t))), mock
}

func TestMemberIDsByChapters(t *testing.T) {
	s, mock := newTestStore(t)

	rows := sqlmock.NewRows([]string{"id"}).AddRow("m1").AddRow("m2")
	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT id FROM members WHERE chapter_id = ANY($1) AND status = ANY($2)`)).
		WillReturnRows(rows)

	ids, err := s.MemberIDsByChapters(context.Background(),
		[]string{"c1", "c2"},
		[]models.MemberStatus{models.StatusActive, models.StatusTrial})
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberIDsByChapters_EmptyChapterSet(t *testing.T) {
	s, mock := newTestStore(t)

	// No query is issued at all for an empty chapter set.
	ids, err := s.MemberIDsByChapters(context.Background(), nil,
		[]models.MemberStatus{models.StatusActive})
	require.NoError(t, err)
	assert.Nil(t, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRecipientsRead(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE notification_recipients
		    SET read = TRUE
		  WHERE member_id = $1 AND notification_id = ANY($2) AND read = FALSE`)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := s.MarkRecipientsRead(context.Background(), "m1", []string{"n1", "n2", "n3"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRecipientsRead_EmptyIDs(t *testing.T) {
	s, mock := newTestStore(t)

	n, err := s.MarkRecipientsRead(context.Background(), "m1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindAdminUnit_NoneIsNotAnError(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT u\.id, u\.level, u\.name`).
		WithArgs("zone", "m1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "level", "name"}))

	unit, err := s.FindAdminUnit(context.Background(), models.LevelZone, "m1")
	require.NoError(t, err)
	assert.Nil(t, unit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindAdminUnit_Found(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT u\.id, u\.level, u\.name`).
		WithArgs("state", "m1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "level", "name"}).
			AddRow("s1", "state", "Karnataka"))

	unit, err := s.FindAdminUnit(context.Background(), models.LevelState, "m1")
	require.NoError(t, err)
	require.NotNil(t, unit)
	assert.Equal(t, "s1", unit.ID)
	assert.Equal(t, models.LevelState, unit.Level)
	assert.Equal(t, "Karnataka", unit.Name)
}

func TestGetRole_NotFound(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT id, name, capabilities FROM roles WHERE id = $1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "capabilities"}))

	_, err := s.GetRole(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, stderrors.HasCode(err, stderrors.ErrCodeNotFound))
}

func TestSetMemberStatus_MissingMember(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE members SET status = $2, updated_at = now() WHERE id = $1`)).
		WithArgs("ghost", models.StatusBlocked).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.SetMemberStatus(context.Background(), "ghost", models.StatusBlocked)
	require.Error(t, err)
	assert.True(t, stderrors.HasCode(err, stderrors.ErrCodeNotFound))
}

func TestEndTrial_GuardedByTrialStatus(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec(`UPDATE members`).
		WithArgs("m1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.EndTrial(context.Background(), "m1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrialMembersExpiringBy_ExcludeWarned(t *testing.T) {
	s, mock := newTestStore(t)

	cutoff := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	end := cutoff.AddDate(0, 0, -1)
	rows := sqlmock.NewRows([]string{
		"id", "name", "phone", "email", "chapter_id", "status",
		"free_trial_end_date", "trial_warned_at", "push_token", "app_tier",
		"created_at", "updated_at",
	}).AddRow("m1", "Asha", "+911234567890", nil, "c1", "trial",
		end, nil, nil, "free", end, end)

	mock.ExpectQuery(`trial_warned_at IS NULL`).
		WithArgs(cutoff).
		WillReturnRows(rows)

	members, err := s.TrialMembersExpiringBy(context.Background(), cutoff, true)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "m1", members[0].ID)
	assert.Nil(t, members[0].TrialWarnedAt)
	require.NotNil(t, members[0].FreeTrialEndDate)
	assert.True(t, members[0].FreeTrialEndDate.Equal(end))
}

func TestSubscriptionsExpiringBy(t *testing.T) {
	s, mock := newTestStore(t)

	cutoff := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "member_id", "status", "expiry_date", "created_at", "updated_at",
	}).AddRow("sub1", "m1", "active", cutoff, cutoff, cutoff)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM membership_subscriptions`)).
		WillReturnRows(rows)

	subs, err := s.SubscriptionsExpiringBy(context.Background(), cutoff,
		[]models.SubscriptionStatus{models.SubscriptionActive})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "m1", subs[0].MemberID)
	assert.Equal(t, models.SubscriptionActive, subs[0].Status)
}

func TestCreateNotification_PersistsAllRecipients(t *testing.T) {
	s, mock := newTestStore(t)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO notifications`)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
	prep := mock.ExpectPrepare(regexp.QuoteMeta(
		`INSERT INTO notification_recipients (notification_id, member_id, read) VALUES ($1, $2, $3)`))
	prep.ExpectExec().WithArgs("n1", "m1", false).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("n1", "m2", false).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n := &models.Notification{
		ID:      "n1",
		Subject: "Monthly meet",
		Content: "Sunday 10am",
		Channel: models.ChannelInApp,
		Recipients: []models.Recipient{
			{MemberID: "m1"}, {MemberID: "m2"},
		},
		SenderKind: models.SenderAdmin,
		SenderID:   "m9",
	}
	require.NoError(t, s.CreateNotification(context.Background(), n))
	assert.Equal(t, now, n.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
