// internal/notification/target.go
package notification

import (
	stderrors "association-backend/internal/common/errors"
	"association-backend/internal/models"
)

// TargetKind discriminates the three audience selection shapes.
type TargetKind string

const (
	TargetAll      TargetKind = "all"
	TargetExplicit TargetKind = "explicit"
	TargetScoped   TargetKind = "scoped"
)

// Target selects the audience of a dispatch. Exactly the fields of the
// active kind are read; the rest are ignored.
type Target struct {
	Kind       TargetKind   `json:"kind"`
	MemberIDs  []string     `json:"memberIds,omitempty"`
	Level      models.Level `json:"level,omitempty"`
	OrgUnitIDs []string     `json:"orgUnitIds,omitempty"`
}

// AllEligible targets every reachable member.
func AllEligible() Target {
	return Target{Kind: TargetAll}
}

// Explicit targets a literal member id list.
func Explicit(memberIDs []string) Target {
	return Target{Kind: TargetExplicit, MemberIDs: memberIDs}
}

// Scoped targets the audiences of org units at one tree level.
func Scoped(level models.Level, orgUnitIDs []string) Target {
	return Target{Kind: TargetScoped, Level: level, OrgUnitIDs: orgUnitIDs}
}

// Validate checks the target's internal consistency.
func (t Target) Validate() error {
	switch t.Kind {
	case TargetAll:
		return nil
	case TargetExplicit:
		if len(t.MemberIDs) == 0 {
			return stderrors.NewValidationError("explicit target requires at least one member id")
		}
		return nil
	case TargetScoped:
		if !models.ValidLevel(t.Level) {
			return stderrors.NewValidationError("scoped target requires a valid level")
		}
		if len(t.OrgUnitIDs) == 0 {
			return stderrors.NewValidationError("scoped target requires at least one org unit id")
		}
		return nil
	default:
		return stderrors.NewValidationError("unknown target kind")
	}
}
