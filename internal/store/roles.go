// internal/store/roles.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	stderrors "association-backend/internal/common/errors"
	"association-backend/internal/models"
)

// GetRole loads one role definition with its capability tokens.
func (s *Store) GetRole(ctx context.Context, id string) (*models.RoleDefinition, error) {
	var role models.RoleDefinition
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, capabilities FROM roles WHERE id = $1`, id,
	).Scan(&role.ID, &role.Name, pq.Array(&role.Capabilities))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, stderrors.NewNotFoundError("role", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get role: %w", err)
	}
	return &role, nil
}

// CreateRole persists a role definition.
func (s *Store) CreateRole(ctx context.Context, role *models.RoleDefinition) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO roles (id, name, capabilities) VALUES ($1, $2, $3)`,
		role.ID, role.Name, pq.Array(role.Capabilities),
	)
	if err != nil {
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}
