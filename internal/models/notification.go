// internal/models/notification.go
package models

import "time"

// Channel is the delivery channel of a notification.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelInApp Channel = "in-app"
)

// SenderKind identifies who produced a notification.
type SenderKind string

const (
	SenderMember    SenderKind = "member"
	SenderAdmin     SenderKind = "admin"
	SenderScheduler SenderKind = "scheduler"
)

// Recipient is one member's entry in a notification. The recipient list is
// immutable after creation except for individual read flips.
type Recipient struct {
	MemberID string `json:"memberId"`
	Read     bool   `json:"read"`
}

// Notification is one logical dispatch persisted with its full, deduplicated
// recipient set.
type Notification struct {
	ID         string      `json:"id"`
	Recipients []Recipient `json:"recipients"`
	Subject    string      `json:"subject"`
	Content    string      `json:"content"`
	Media      string      `json:"media,omitempty"`
	Channel    Channel     `json:"channel"`
	SenderKind SenderKind  `json:"senderKind"`
	SenderID   string      `json:"senderId,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}
