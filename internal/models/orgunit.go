// internal/models/orgunit.go
package models

// Level identifies a tier of the four-level organization tree. The zero-based
// depth order is State > Zone > District > Chapter.
type Level string

const (
	LevelState    Level = "state"
	LevelZone     Level = "zone"
	LevelDistrict Level = "district"
	LevelChapter  Level = "chapter"
)

// ValidLevel reports whether l is a known tree level.
func ValidLevel(l Level) bool {
	switch l {
	case LevelState, LevelZone, LevelDistrict, LevelChapter:
		return true
	}
	return false
}

// ChildLevel returns the level directly below l, or empty for chapters.
func ChildLevel(l Level) Level {
	switch l {
	case LevelState:
		return LevelZone
	case LevelZone:
		return LevelDistrict
	case LevelDistrict:
		return LevelChapter
	}
	return ""
}

// AdminRole is the office held by an admin assignment on an org unit.
type AdminRole string

const (
	RolePresident AdminRole = "president"
	RoleSecretary AdminRole = "secretary"
	RoleTreasurer AdminRole = "treasurer"
)

// AdminAssignment is a weak reference from an org unit to the member who
// administers it.
type AdminAssignment struct {
	MemberID string    `json:"memberId"`
	Role     AdminRole `json:"role"`
}

// OrgUnit is a node in the organization tree. Every non-state unit has
// exactly one parent; the parent chain terminates at a state. ShortCode is
// set on chapters only and feeds member-id generation upstream.
type OrgUnit struct {
	ID        string            `json:"id"`
	Level     Level             `json:"level"`
	Name      string            `json:"name"`
	ShortCode string            `json:"shortCode,omitempty"`
	ParentID  string            `json:"parentId,omitempty"`
	Admins    []AdminAssignment `json:"admins,omitempty"`
}
