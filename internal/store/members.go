// internal/store/members.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	stderrors "association-backend/internal/common/errors"
	"association-backend/internal/models"
)

const memberColumns = `id, name, phone, email, chapter_id, status,
	free_trial_end_date, trial_warned_at, push_token, app_tier, created_at, updated_at`

func scanMember(row interface {
	Scan(dest ...interface{}) error
}) (*models.Member, error) {
	var (
		m          models.Member
		email      sql.NullString
		chapterID  sql.NullString
		trialEnd   sql.NullTime
		warnedAt   sql.NullTime
		pushToken  sql.NullString
	)
	err := row.Scan(&m.ID, &m.Name, &m.Phone, &email, &chapterID, &m.Status,
		&trialEnd, &warnedAt, &pushToken, &m.AppTier, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Email = email.String
	m.ChapterID = chapterID.String
	m.PushToken = pushToken.String
	if trialEnd.Valid {
		m.FreeTrialEndDate = &trialEnd.Time
	}
	if warnedAt.Valid {
		m.TrialWarnedAt = &warnedAt.Time
	}
	return &m, nil
}

func (s *Store) collectMembers(rows *sql.Rows) ([]models.Member, error) {
	defer rows.Close()
	var members []models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// CreateMember inserts a new member record.
func (s *Store) CreateMember(ctx context.Context, m *models.Member) error {
	var email interface{}
	if m.Email != "" {
		email = m.Email
	}
	var chapterID interface{}
	if m.ChapterID != "" {
		chapterID = m.ChapterID
	}
	var pushToken interface{}
	if m.PushToken != "" {
		pushToken = m.PushToken
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO members (id, name, phone, email, chapter_id, status, free_trial_end_date, push_token, app_tier)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.Name, m.Phone, email, chapterID, m.Status, m.FreeTrialEndDate, pushToken, m.AppTier,
	)
	if err != nil {
		return fmt.Errorf("create member: %w", err)
	}
	return nil
}

// GetMember loads one member by id.
func (s *Store) GetMember(ctx context.Context, id string) (*models.Member, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = $1`, id)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, stderrors.NewNotFoundError("member", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// MembersByIDs loads the members that exist among the given ids; missing ids
// are silently skipped, matching lenient recipient resolution.
func (s *Store) MembersByIDs(ctx context.Context, ids []string) ([]models.Member, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = ANY($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("members by ids: %w", err)
	}
	return s.collectMembers(rows)
}

// MembersByStatuses lists all members in any of the given statuses.
func (s *Store) MembersByStatuses(ctx context.Context, statuses []models.MemberStatus) ([]models.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE status = ANY($1)`,
		pq.Array(statusStrings(statuses)),
	)
	if err != nil {
		return nil, fmt.Errorf("members by statuses: %w", err)
	}
	return s.collectMembers(rows)
}

// MemberIDsByChapters is the "chapter set + status set" query: the ids of
// members whose chapter is in the set and whose status is in the set.
func (s *Store) MemberIDsByChapters(ctx context.Context, chapterIDs []string, statuses []models.MemberStatus) ([]string, error) {
	if len(chapterIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM members WHERE chapter_id = ANY($1) AND status = ANY($2)`,
		pq.Array(chapterIDs), pq.Array(statusStrings(statuses)),
	)
	if err != nil {
		return nil, fmt.Errorf("member ids by chapters: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TrialMembersExpiringBy is the time-threshold query for the trial track:
// trial members whose trial ends at or before the cutoff. With excludeWarned
// set, members already carrying a warning mark are filtered out.
func (s *Store) TrialMembersExpiringBy(ctx context.Context, cutoff time.Time, excludeWarned bool) ([]models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members
		WHERE status = 'trial' AND free_trial_end_date <= $1`
	if excludeWarned {
		query += ` AND trial_warned_at IS NULL`
	}
	rows, err := s.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("trial members expiring: %w", err)
	}
	return s.collectMembers(rows)
}

// SetMemberStatus updates the membership state machine value.
func (s *Store) SetMemberStatus(ctx context.Context, id string, status models.MemberStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE members SET status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("set member status: %w", err)
	}
	return requireOneRow(res, "member", id)
}

// BeginTrial moves a member into trial with the given end date and clears
// any previous warning mark.
func (s *Store) BeginTrial(ctx context.Context, id string, end time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE members
		    SET status = 'trial', free_trial_end_date = $2, trial_warned_at = NULL, updated_at = now()
		  WHERE id = $1`,
		id, end,
	)
	if err != nil {
		return fmt.Errorf("begin trial: %w", err)
	}
	return requireOneRow(res, "member", id)
}

// EndTrial moves an expired trial back to awaiting_payment and clears the
// trial end date.
func (s *Store) EndTrial(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE members
		    SET status = 'awaiting_payment', free_trial_end_date = NULL, updated_at = now()
		  WHERE id = $1 AND status = 'trial'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("end trial: %w", err)
	}
	return requireOneRow(res, "member", id)
}

// MarkTrialWarned records that the expiring-soon warning went out.
func (s *Store) MarkTrialWarned(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE members SET trial_warned_at = $2, updated_at = now() WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("mark trial warned: %w", err)
	}
	return nil
}

// SetAppTier updates the app-feature subscription tier.
func (s *Store) SetAppTier(ctx context.Context, id string, tier models.AppTier) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE members SET app_tier = $2, updated_at = now() WHERE id = $1`,
		id, tier,
	)
	if err != nil {
		return fmt.Errorf("set app tier: %w", err)
	}
	return requireOneRow(res, "member", id)
}

func requireOneRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return stderrors.NewNotFoundError(entity, id)
	}
	return nil
}

func statusStrings(statuses []models.MemberStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
