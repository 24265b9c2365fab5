package models

import "time"

type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
)

// PresenceRecord is a user's last known online state. It is kept in Redis
// and derived from connection lifecycle events: a user is online exactly
// while their active-connection set is non-empty. LastSeen is zero for a
// user that has never connected.
type PresenceRecord struct {
	UserID   string         `json:"user_id"`
	Status   PresenceStatus `json:"status"`
	LastSeen time.Time      `json:"last_seen"`
	// Connections lists the active connection IDs for the user.
	Connections []string `json:"connections,omitempty"`
}
