// internal/models/subscription.go
package models

import "time"

// SubscriptionStatus is the app-feature subscription state machine value.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionExpiring SubscriptionStatus = "expiring"
	SubscriptionExpired  SubscriptionStatus = "expired"
)

// MembershipSubscription is the conceptually-current subscription record of
// one member on the app-feature payment track.
type MembershipSubscription struct {
	ID         string             `json:"id"`
	MemberID   string             `json:"memberId"`
	Status     SubscriptionStatus `json:"status"`
	ExpiryDate time.Time          `json:"expiryDate"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

// PaymentTrack distinguishes the two payment tracks the gateway reports on.
type PaymentTrack string

const (
	TrackMembership PaymentTrack = "membership"
	TrackApp        PaymentTrack = "app"
)
