package models

import "time"

// Event types carried over the websocket. Client-to-server types are
// dispatched by the hub; server-to-client types are fan-out only.
const (
	// client -> server
	EventJoinRoom    = "join_room"
	EventLeaveRoom   = "leave_room"
	EventSendMessage = "send_message"
	EventTyping      = "typing"
	EventMarkRead    = "mark_read"

	// server -> client
	EventHistory         = "history"
	EventNewMessage      = "new_message"
	EventStatusUpdate    = "status_update"
	EventUserTyping      = "user_typing"
	EventPresenceChanged = "presence_changed"
	EventError           = "error"
)

// Error codes reported back on an Event of type EventError.
const (
	CodeProtocol          = "PROTOCOL"
	CodeNotAParticipant   = "NOT_A_PARTICIPANT"
	CodeValidation        = "VALIDATION"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeTimeout           = "TIMEOUT"
	CodeUnavailable       = "UNAVAILABLE"
)

// Event is the single wire envelope for every realtime frame. Type selects
// which of the optional fields are meaningful. SenderID is always stamped
// server-side with the authenticated connection owner; a value supplied by
// the client is discarded.
type Event struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	SenderID       string `json:"sender_id,omitempty"`

	// send_message
	Content string `json:"content,omitempty"`

	// typing / user_typing
	IsTyping bool `json:"is_typing,omitempty"`

	// mark_read
	ReadUpToSeq uint64 `json:"read_up_to_seq,omitempty"`

	// join_room catch-up cursor
	SinceSeq uint64 `json:"since_seq,omitempty"`

	// new_message / history
	Message  *Message  `json:"message,omitempty"`
	Messages []Message `json:"messages,omitempty"`

	// status_update
	MessageID uint          `json:"message_id,omitempty"`
	Status    MessageStatus `json:"status,omitempty"`

	// presence_changed / user_typing
	UserID   string     `json:"user_id,omitempty"`
	Presence string     `json:"presence,omitempty"`
	LastSeen *time.Time `json:"last_seen,omitempty"`

	// error
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
}
