package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is the 1-on-1 channel between the two participants of a
// work engagement. The participant pair is fixed for the conversation's
// lifetime; the row stays until the referenced engagement is archived.
type Conversation struct {
	// ConversationID is the unique identifier for the conversation (UUID).
	ConversationID string `gorm:"primaryKey" json:"conversation_id"`
	// ClientID is the user identifier of the engagement's client side.
	ClientID string `gorm:"type:text;not null;index" json:"client_id"`
	// FreelancerID is the user identifier of the engagement's freelancer side.
	FreelancerID string `gorm:"type:text;not null;index" json:"freelancer_id"`
	// EngagementRef links the conversation to its work engagement record.
	EngagementRef string `gorm:"type:text;not null;index" json:"engagement_ref"`
	// Archived is set when the engagement is archived; archived
	// conversations reject new joins and sends.
	Archived  bool      `gorm:"not null;default:false" json:"archived"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate generates a ConversationID when one was not supplied.
func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ConversationID == "" {
		c.ConversationID = uuid.New().String()
	}
	return
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	return userID == c.ClientID || userID == c.FreelancerID
}

// OtherParticipant returns the counterparty of userID, or "" if userID
// is not a participant.
func (c *Conversation) OtherParticipant(userID string) string {
	switch userID {
	case c.ClientID:
		return c.FreelancerID
	case c.FreelancerID:
		return c.ClientID
	}
	return ""
}
