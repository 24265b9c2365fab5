package chathub

import (
	"encoding/json"
	"log"

	"worklink/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// StartPubSubListener pipes room-channel events from Redis into the hub's
// fan-out loop. Every broadcast in the system travels through Redis, so a
// message sent on one instance reaches rooms hosted on any other.
func (m *ManagerService) StartPubSubListener(sub *redis.PubSub) {
	go func() {
		defer sub.Close()

		for msg := range sub.Channel() {
			var ev models.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("Error unmarshalling pubsub event: %v", err)
				continue
			}
			m.PubSubCh <- ev
		}
	}()
}
