// internal/store/orgunits.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	stderrors "association-backend/internal/common/errors"
	"association-backend/internal/models"
)

// CreateOrgUnit inserts one node of the organization tree. The schema
// enforces that exactly the state level has no parent.
func (s *Store) CreateOrgUnit(ctx context.Context, unit *models.OrgUnit) error {
	var shortCode interface{}
	if unit.ShortCode != "" {
		shortCode = unit.ShortCode
	}
	var parentID interface{}
	if unit.ParentID != "" {
		parentID = unit.ParentID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO org_units (id, level, name, short_code, parent_id) VALUES ($1, $2, $3, $4, $5)`,
		unit.ID, unit.Level, unit.Name, shortCode, parentID,
	)
	if err != nil {
		return fmt.Errorf("create org unit: %w", err)
	}
	return nil
}

// GetOrgUnit loads one org unit with its admin assignments.
func (s *Store) GetOrgUnit(ctx context.Context, id string) (*models.OrgUnit, error) {
	var (
		unit      models.OrgUnit
		shortCode sql.NullString
		parentID  sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, level, name, short_code, parent_id FROM org_units WHERE id = $1`,
		id,
	).Scan(&unit.ID, &unit.Level, &unit.Name, &shortCode, &parentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, stderrors.NewNotFoundError("org unit", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get org unit: %w", err)
	}
	unit.ShortCode = shortCode.String
	unit.ParentID = parentID.String

	rows, err := s.db.QueryContext(ctx,
		`SELECT member_id, role FROM org_unit_admins WHERE org_unit_id = $1`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("get org unit admins: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a models.AdminAssignment
		if err := rows.Scan(&a.MemberID, &a.Role); err != nil {
			return nil, fmt.Errorf("scan admin assignment: %w", err)
		}
		unit.Admins = append(unit.Admins, a)
	}
	return &unit, rows.Err()
}

// UnitLevel returns the tree level of one unit.
func (s *Store) UnitLevel(ctx context.Context, id string) (models.Level, error) {
	var level models.Level
	err := s.db.QueryRowContext(ctx,
		`SELECT level FROM org_units WHERE id = $1`, id,
	).Scan(&level)
	if errors.Is(err, sql.ErrNoRows) {
		return "", stderrors.NewNotFoundError("org unit", id)
	}
	if err != nil {
		return "", fmt.Errorf("unit level: %w", err)
	}
	return level, nil
}

// ChildUnitIDs lists the direct children of one unit.
func (s *Store) ChildUnitIDs(ctx context.Context, parentID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM org_units WHERE parent_id = $1`, parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("child units: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan child unit: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FindAdminUnit returns the unit of the given level that carries an admin
// assignment for the member, or nil when the member administers no unit at
// that level.
func (s *Store) FindAdminUnit(ctx context.Context, level models.Level, memberID string) (*models.OrgUnit, error) {
	var unit models.OrgUnit
	err := s.db.QueryRowContext(ctx,
		`SELECT u.id, u.level, u.name
		   FROM org_units u
		   JOIN org_unit_admins a ON a.org_unit_id = u.id
		  WHERE u.level = $1 AND a.member_id = $2
		  LIMIT 1`,
		level, memberID,
	).Scan(&unit.ID, &unit.Level, &unit.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find admin unit: %w", err)
	}
	return &unit, nil
}

// AddAdmin attaches an admin assignment to a unit, replacing the office when
// the member is already assigned there.
func (s *Store) AddAdmin(ctx context.Context, orgUnitID, memberID string, role models.AdminRole) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO org_unit_admins (org_unit_id, member_id, role)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (org_unit_id, member_id) DO UPDATE SET role = EXCLUDED.role`,
		orgUnitID, memberID, role,
	)
	if err != nil {
		return fmt.Errorf("add admin: %w", err)
	}
	return nil
}

// RemoveAdmin detaches an admin assignment from a unit.
func (s *Store) RemoveAdmin(ctx context.Context, orgUnitID, memberID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM org_unit_admins WHERE org_unit_id = $1 AND member_id = $2`,
		orgUnitID, memberID,
	)
	if err != nil {
		return fmt.Errorf("remove admin: %w", err)
	}
	return nil
}
