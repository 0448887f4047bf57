// internal/models/member.go
package models

import "time"

// MemberStatus is the membership state machine value.
type MemberStatus string

const (
	StatusAwaitingPayment MemberStatus = "awaiting_payment"
	StatusTrial           MemberStatus = "trial"
	StatusActive          MemberStatus = "active"
	StatusInactive        MemberStatus = "inactive"
	StatusSuspended       MemberStatus = "suspended"
	StatusBlocked         MemberStatus = "blocked"
	StatusDeleted         MemberStatus = "deleted" // terminal, soft
)

// ValidMemberStatus reports whether s is a known status value.
func ValidMemberStatus(s MemberStatus) bool {
	switch s {
	case StatusAwaitingPayment, StatusTrial, StatusActive, StatusInactive,
		StatusSuspended, StatusBlocked, StatusDeleted:
		return true
	}
	return false
}

// AppTier is the app-feature subscription tier.
type AppTier string

const (
	TierFree    AppTier = "free"
	TierPremium AppTier = "premium"
)

// Member is an individual person in the association. Phone is the unique
// identity established at first contact; members are never hard-deleted.
type Member struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Phone            string       `json:"phone"`
	Email            string       `json:"email,omitempty"`
	ChapterID        string       `json:"chapterId,omitempty"`
	Status           MemberStatus `json:"status"`
	FreeTrialEndDate *time.Time   `json:"freeTrialEndDate,omitempty"`
	TrialWarnedAt    *time.Time   `json:"trialWarnedAt,omitempty"`
	PushToken        string       `json:"pushToken,omitempty"`
	AppTier          AppTier      `json:"appSubscriptionTier"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}
