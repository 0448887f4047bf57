// internal/models/promotion.go
package models

import "time"

// PromotionType partitions the ranked promotion lists. Priorities are dense
// and collision-free within one type.
type PromotionType string

const (
	PromotionBanner PromotionType = "banner"
	PromotionVideo  PromotionType = "video"
	PromotionPoster PromotionType = "poster"
	PromotionNotice PromotionType = "notice"
)

// ValidPromotionType reports whether t is a known promotion type.
func ValidPromotionType(t PromotionType) bool {
	switch t {
	case PromotionBanner, PromotionVideo, PromotionPoster, PromotionNotice:
		return true
	}
	return false
}

// PromotionStatus is the display state of a slot.
type PromotionStatus string

const (
	PromotionActive   PromotionStatus = "active"
	PromotionExpired  PromotionStatus = "expired"
	PromotionInactive PromotionStatus = "inactive"
)

// PromotionSlot is one entry in a ranked promotion list.
type PromotionSlot struct {
	ID          string          `json:"id"`
	Type        PromotionType   `json:"type"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Media       string          `json:"media,omitempty"`
	Link        string          `json:"link,omitempty"`
	StartDate   *time.Time      `json:"startDate,omitempty"`
	EndDate     *time.Time      `json:"endDate,omitempty"`
	Priority    int             `json:"priority"`
	Status      PromotionStatus `json:"status"`
}
