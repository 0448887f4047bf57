package promotion

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	stderrors "association-backend/internal/common/errors"
	"association-backend/internal/common/logger"
	"association-backend/internal/models"
)

func newTestList(t *testing.T) (*RankedList, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, logger.NewZapAdapter(zaptest.NewLogger(t))), mock
}

func lockedIDs(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id"})
	for _, id := range ids {
		rows.AddRow(id)
	}
	return rows
}

func TestInsertAt_ShiftsTailUp(t *testing.T) {
	list, mock := newTestList(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT id FROM promotion_slots WHERE type = $1 FOR UPDATE`)).
		WithArgs(models.PromotionBanner).
		WillReturnRows(lockedIDs("a", "b", "c"))
	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE promotion_slots SET priority = priority + 1
		  WHERE type = $1 AND priority >= $2`)).
		WithArgs(models.PromotionBanner, 2).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO promotion_slots`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	slot := &models.PromotionSlot{Type: models.PromotionBanner, Title: "Summer drive"}
	require.NoError(t, list.InsertAt(context.Background(), slot, 2))
	assert.Equal(t, 2, slot.Priority)
	assert.NotEmpty(t, slot.ID)
	assert.Equal(t, models.PromotionActive, slot.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAt_PriorityOutOfRange(t *testing.T) {
	list, mock := newTestList(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(models.PromotionBanner).
		WillReturnRows(lockedIDs("a", "b"))
	mock.ExpectRollback()

	slot := &models.PromotionSlot{Type: models.PromotionBanner}
	err := list.InsertAt(context.Background(), slot, 4) // list of 2 admits 1..3
	require.Error(t, err)
	assert.True(t, stderrors.HasCode(err, stderrors.ErrCodeInvariantViolation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAt_UnknownType(t *testing.T) {
	list, _ := newTestList(t)

	err := list.InsertAt(context.Background(), &models.PromotionSlot{Type: "popup"}, 1)
	require.Error(t, err)
	assert.True(t, stderrors.HasCode(err, stderrors.ErrCodeValidation))
}

func TestMoveTo_SwapsWithHolder(t *testing.T) {
	// A=1, B=2, C=3; moving C to 1 swaps with A: A=3, B=2, C=1.
	list, mock := newTestList(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(models.PromotionBanner).
		WillReturnRows(lockedIDs("a", "b", "c"))
	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT priority FROM promotion_slots WHERE id = $1 AND type = $2`)).
		WithArgs("c", models.PromotionBanner).
		WillReturnRows(sqlmock.NewRows([]string{"priority"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE promotion_slots SET priority = $3
		  WHERE type = $1 AND priority = $2 AND id <> $4`)).
		WithArgs(models.PromotionBanner, 1, 3, "c").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE promotion_slots SET priority = $2 WHERE id = $1`)).
		WithArgs("c", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, list.MoveTo(context.Background(), "c", models.PromotionBanner, 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveTo_SamePriorityIsNoOp(t *testing.T) {
	list, mock := newTestList(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(models.PromotionVideo).
		WillReturnRows(lockedIDs("a", "b"))
	mock.ExpectQuery(`SELECT priority`).
		WithArgs("b", models.PromotionVideo).
		WillReturnRows(sqlmock.NewRows([]string{"priority"}).AddRow(2))
	mock.ExpectCommit()

	require.NoError(t, list.MoveTo(context.Background(), "b", models.PromotionVideo, 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveTo_OutOfRangeMutatesNothing(t *testing.T) {
	list, mock := newTestList(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(models.PromotionVideo).
		WillReturnRows(lockedIDs("a", "b"))
	mock.ExpectRollback()

	err := list.MoveTo(context.Background(), "a", models.PromotionVideo, 3)
	require.Error(t, err)
	assert.True(t, stderrors.HasCode(err, stderrors.ErrCodeInvariantViolation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveTo_MissingSlot(t *testing.T) {
	list, mock := newTestList(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(models.PromotionPoster).
		WillReturnRows(lockedIDs("a"))
	mock.ExpectQuery(`SELECT priority`).
		WithArgs("ghost", models.PromotionPoster).
		WillReturnRows(sqlmock.NewRows([]string{"priority"}))
	mock.ExpectRollback()

	err := list.MoveTo(context.Background(), "ghost", models.PromotionPoster, 1)
	require.Error(t, err)
	assert.True(t, stderrors.HasCode(err, stderrors.ErrCodeNotFound))
}

func TestMoveTo_UnknownType(t *testing.T) {
	list, _ := newTestList(t)

	err := list.MoveTo(context.Background(), "a", "popup", 1)
	require.Error(t, err)
	assert.True(t, stderrors.HasCode(err, stderrors.ErrCodeValidation))
}

func TestListByType_OrderedByPriority(t *testing.T) {
	list, mock := newTestList(t)

	rows := sqlmock.NewRows([]string{
		"id", "type", "title", "description", "media", "link",
		"start_date", "end_date", "priority", "status",
	}).
		AddRow("a", "banner", "First", nil, nil, nil, nil, nil, 1, "active").
		AddRow("b", "banner", "Second", nil, nil, nil, nil, nil, 2, "inactive")

	mock.ExpectQuery(regexp.QuoteMeta(`FROM promotion_slots WHERE type = $1 ORDER BY priority`)).
		WithArgs(models.PromotionBanner).
		WillReturnRows(rows)

	slots, err := list.ListByType(context.Background(), models.PromotionBanner)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "First", slots[0].Title)
	assert.Equal(t, 1, slots[0].Priority)
	assert.Equal(t, models.PromotionInactive, slots[1].Status)
}
