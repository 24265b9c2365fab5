package models

import "time"

// MessageStatus is a message's position in the delivery lifecycle.
// A status only ever moves forward: sent -> delivered -> read.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// statusRank orders the lifecycle for forward-only checks.
var statusRank = map[MessageStatus]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusRead:      2,
}

// Valid reports whether s is one of the known lifecycle statuses.
func (s MessageStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransitionTo reports whether next is exactly one step forward from s.
// Re-applying the current status is not a transition; callers treat it as a no-op.
func (s MessageStatus) CanTransitionTo(next MessageStatus) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to == from+1
}

// Message represents one persisted chat message in PostgreSQL.
// Seq is assigned by the store and is strictly increasing and gapless
// within a conversation; the (conversation_id, seq) pair is unique.
type Message struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	ConversationID string        `gorm:"type:uuid;not null;uniqueIndex:uk_conv_seq;index:idx_conv_seq" json:"conversation_id"`
	Seq            uint64        `gorm:"not null;uniqueIndex:uk_conv_seq;index:idx_conv_seq" json:"seq"`
	SenderID       string        `gorm:"type:text;not null;index" json:"sender_id"`
	Content        string        `gorm:"type:text;not null" json:"content"`
	Status         MessageStatus `gorm:"type:text;not null;default:'sent'" json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	DeliveredAt    *time.Time    `json:"delivered_at,omitempty"`
	ReadAt         *time.Time    `json:"read_at,omitempty"`
}
