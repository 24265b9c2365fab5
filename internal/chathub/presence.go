package chathub

import (
	"log"
	"time"

	"worklink/backend/internal/models"
)

// broadcastPresence publishes a presence change to the room channel of
// every conversation the user participates in. Instances holding a live
// counterparty connection deliver it; the rest drop it on fan-out.
func (m *ManagerService) broadcastPresence(userID string, status models.PresenceStatus, lastSeen *time.Time) {
	convs, err := m.Storage.GetConversationsForUser(userID)
	if err != nil {
		log.Printf("ERROR: Failed to list conversations for presence of user %s: %v", userID, err)
		return
	}

	ev := models.Event{
		Type:     models.EventPresenceChanged,
		UserID:   userID,
		Presence: string(status),
		LastSeen: lastSeen,
	}
	for _, conv := range convs {
		ev.ConversationID = conv.ConversationID
		if err := m.Storage.PublishEvent(conv.ConversationID, ev); err != nil {
			log.Printf("ERROR: Failed to publish presence of user %s to conversation %s: %v",
				userID, conv.ConversationID, err)
		}
	}
}

// lastSeenOf reads the stamped last-seen time after a disconnect. Nil when
// the record cannot be read; the offline broadcast still goes out.
func (m *ManagerService) lastSeenOf(userID string) *time.Time {
	record, err := m.Storage.GetPresence(userID)
	if err != nil {
		log.Printf("ERROR: Failed to read presence of user %s: %v", userID, err)
		return nil
	}
	if record.LastSeen.IsZero() {
		return nil
	}
	ts := record.LastSeen
	return &ts
}
