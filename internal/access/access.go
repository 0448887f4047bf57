// Package access resolves capability sets and admin standing. Capability
// resolution is role-driven and cached in redis; admin standing is searched
// top-down over the tree levels with first-hit precedence.
package access

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	stderrors "association-backend/internal/common/errors"
	"association-backend/internal/common/logger"
	"association-backend/internal/models"
	"association-backend/pkg/capability"
)

// AdminSearchOrder is the fixed top-down order for admin standing lookups.
// The first level carrying an assignment for the member wins, so a member who
// administers both a state and a chapter reports as a state admin.
var AdminSearchOrder = []models.Level{
	models.LevelState,
	models.LevelZone,
	models.LevelDistrict,
	models.LevelChapter,
}

const capabilityCacheTTL = 10 * time.Minute

type roleReader interface {
	GetRole(ctx context.Context, id string) (*models.RoleDefinition, error)
}

type adminFinder interface {
	FindAdminUnit(ctx context.Context, level models.Level, memberID string) (*models.OrgUnit, error)
}

// AdminStatus reports the single unit a member administers, chosen by
// AdminSearchOrder precedence.
type AdminStatus struct {
	Level       models.Level `json:"level"`
	OrgUnitID   string       `json:"orgUnitId"`
	OrgUnitName string       `json:"orgUnitName"`
}

// Resolver answers capability and admin standing questions.
type Resolver struct {
	roles  roleReader
	admins adminFinder
	cache  *redis.Client
	log    logger.Logger
}

// NewResolver creates a Resolver. cache may be nil, in which case every
// lookup goes to the store.
func NewResolver(roles roleReader, admins adminFinder, cache *redis.Client, log logger.Logger) *Resolver {
	return &Resolver{roles: roles, admins: admins, cache: cache, log: log}
}

func capabilityCacheKey(roleID string) string {
	return "role:caps:" + roleID
}

// ResolveCapabilities returns the known capability tokens granted by the
// role, sorted. Unknown tokens carried by the role record are dropped so they
// can never grant access. A role id that resolves to no record is a NOT_FOUND
// error; an empty role id (member with no role) is an empty set.
func (r *Resolver) ResolveCapabilities(ctx context.Context, roleID string) ([]string, error) {
	if roleID == "" {
		return nil, nil
	}

	if r.cache != nil {
		raw, err := r.cache.Get(ctx, capabilityCacheKey(roleID)).Result()
		if err == nil {
			var caps []string
			if err := json.Unmarshal([]byte(raw), &caps); err == nil {
				return caps, nil
			}
		} else if err != redis.Nil {
			r.log.Warn("capability cache read failed", map[string]interface{}{
				"role_id": roleID,
				"error":   err.Error(),
			})
		}
	}

	role, err := r.roles.GetRole(ctx, roleID)
	if err != nil {
		if stderrors.HasCode(err, stderrors.ErrCodeNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve capabilities: %w", err)
	}

	caps := make([]string, 0, len(role.Capabilities))
	for _, tok := range role.Capabilities {
		if capability.IsKnown(tok) {
			caps = append(caps, tok)
		}
	}
	sort.Strings(caps)

	if r.cache != nil {
		if payload, err := json.Marshal(caps); err == nil {
			if err := r.cache.Set(ctx, capabilityCacheKey(roleID), payload, capabilityCacheTTL).Err(); err != nil {
				r.log.Warn("capability cache write failed", map[string]interface{}{
					"role_id": roleID,
					"error":   err.Error(),
				})
			}
		}
	}
	return caps, nil
}

// InvalidateCapabilities drops the cached capability set after a role edit.
func (r *Resolver) InvalidateCapabilities(ctx context.Context, roleID string) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Del(ctx, capabilityCacheKey(roleID)).Err()
}

// RequireCapability returns a permission error unless the role grants the
// token. The error is identical whether the role is missing, empty, or simply
// lacks the token.
func (r *Resolver) RequireCapability(ctx context.Context, roleID, token string) error {
	caps, err := r.ResolveCapabilities(ctx, roleID)
	if err != nil {
		if stderrors.HasCode(err, stderrors.ErrCodeNotFound) {
			return stderrors.NewPermissionDeniedError()
		}
		return err
	}
	for _, c := range caps {
		if c == token {
			return nil
		}
	}
	return stderrors.NewPermissionDeniedError()
}

// ResolveAdminStatus searches the tree levels top-down for a unit the member
// administers and returns the first hit, or nil when the member administers
// nothing.
func (r *Resolver) ResolveAdminStatus(ctx context.Context, memberID string) (*AdminStatus, error) {
	for _, level := range AdminSearchOrder {
		unit, err := r.admins.FindAdminUnit(ctx, level, memberID)
		if err != nil {
			return nil, fmt.Errorf("admin search at %s: %w", level, err)
		}
		if unit != nil {
			return &AdminStatus{
				Level:       unit.Level,
				OrgUnitID:   unit.ID,
				OrgUnitName: unit.Name,
			}, nil
		}
	}
	return nil, nil
}
