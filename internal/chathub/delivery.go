package chathub

import (
	"context"
	"errors"
	"log"

	"worklink/backend/internal/config"
	"worklink/backend/internal/models"
	"worklink/backend/internal/storage"
)

// handleSend appends the message, confirms it back to the sending
// connection, and fans it out to the room. The append is the only
// authoritative step; the broadcast is purely a notification on top of it.
func (m *ManagerService) handleSend(c Client, ev models.Event) {
	if !m.memberOf(ev.ConversationID, c) {
		m.sendError(c, ev.ConversationID, models.CodeNotAParticipant, "join the room before sending")
		return
	}

	// room membership predates archival, so the archived flag is re-read
	// per send rather than cached on the room
	conv, err := m.Storage.GetConversationByID(ev.ConversationID)
	if err != nil {
		m.sendError(c, ev.ConversationID, models.CodeUnavailable, "conversation lookup failed")
		return
	}
	if conv.Archived {
		m.sendError(c, ev.ConversationID, models.CodeValidation, "conversation is archived")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.PersistTimeout)
	defer cancel()

	msg, err := m.Storage.AppendMessage(ctx, ev.ConversationID, c.GetUserID(), ev.Content)
	if err != nil {
		m.sendStorageError(c, ev.ConversationID, err)
		return
	}

	outbound := models.Event{
		Type:           models.EventNewMessage,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Message:        msg,
	}

	// Echo to the sending connection first: the sender either sees the
	// persisted message reflected back or an explicit error, never silence.
	m.deliver(c, outbound)

	if err := m.Storage.PublishEvent(msg.ConversationID, outbound); err != nil {
		log.Printf("ERROR: Failed to publish message %d: %v", msg.ID, err)
	}
}

// sendCatchUp replays history after the client's cursor and promotes the
// counterparty's still-sent messages to delivered now that this
// participant has received them.
func (m *ManagerService) sendCatchUp(c Client, conv *models.Conversation, sinceSeq uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), config.PersistTimeout)
	defer cancel()

	history, err := m.Storage.History(ctx, conv.ConversationID, sinceSeq, config.HistoryDefaultLimit)
	if err != nil {
		m.sendStorageError(c, conv.ConversationID, err)
		return
	}

	m.deliver(c, models.Event{
		Type:           models.EventHistory,
		ConversationID: conv.ConversationID,
		SinceSeq:       sinceSeq,
		Messages:       history,
	})

	// Promote through the furthest sequence this client has seen: the last
	// replayed row, or the cursor itself when the replay is empty (the
	// client may have caught up over the REST history endpoint).
	cursor := sinceSeq
	if len(history) > 0 {
		cursor = history[len(history)-1].Seq
	}
	if cursor == 0 {
		return
	}

	promoted, err := m.Storage.MarkDeliveredThrough(ctx, conv.ConversationID, c.GetUserID(), cursor)
	if err != nil {
		log.Printf("ERROR: Failed catch-up delivery promotion for conversation %s: %v", conv.ConversationID, err)
		return
	}
	for i := range promoted {
		m.publishStatus(conv.ConversationID, &promoted[i])
	}
}

// handleMarkRead promotes all delivered counterparty messages up to the
// cursor and notifies the original sender one status_update per message,
// in sequence order.
func (m *ManagerService) handleMarkRead(c Client, ev models.Event) {
	if !m.memberOf(ev.ConversationID, c) {
		m.sendError(c, ev.ConversationID, models.CodeNotAParticipant, "join the room before marking read")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.PersistTimeout)
	defer cancel()

	promoted, err := m.Storage.MarkReadThrough(ctx, ev.ConversationID, c.GetUserID(), ev.ReadUpToSeq)
	if err != nil {
		m.sendStorageError(c, ev.ConversationID, err)
		return
	}
	for i := range promoted {
		m.publishStatus(ev.ConversationID, &promoted[i])
	}
}

// handleFanout delivers a room-channel event to local members. new_message
// goes to every connection not owned by the sender; status_update goes only
// to the original sender; typing and presence skip their own subject.
func (m *ManagerService) handleFanout(ev models.Event) {
	r, ok := m.rooms[ev.ConversationID]
	if !ok {
		return // no local members for this conversation
	}

	switch ev.Type {
	case models.EventNewMessage:
		if ev.Message == nil {
			return
		}
		receiverGotIt := false
		for _, member := range r.members {
			if member.GetUserID() == ev.SenderID {
				continue
			}
			m.deliver(member, ev)
			receiverGotIt = true
		}
		if receiverGotIt && ev.Message.Status == models.StatusSent {
			m.promoteDelivered(ev.ConversationID, ev.Message.ID)
		}
	case models.EventStatusUpdate:
		for _, member := range r.members {
			if member.GetUserID() == ev.SenderID {
				m.deliver(member, ev)
			}
		}
	case models.EventUserTyping, models.EventPresenceChanged:
		for _, member := range r.members {
			if member.GetUserID() != ev.UserID {
				m.deliver(member, ev)
			}
		}
	}
}

// promoteDelivered records that the receiving participant's connection got
// the message. The status update is idempotent, so several hub instances
// racing on the same message converge on a single delivered state.
func (m *ManagerService) promoteDelivered(conversationID string, messageID uint) {
	ctx, cancel := context.WithTimeout(context.Background(), config.PersistTimeout)
	defer cancel()

	msg, err := m.Storage.UpdateMessageStatus(ctx, messageID, models.StatusDelivered)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidTransition) {
			return // already read
		}
		log.Printf("ERROR: Failed delivered promotion for message %d: %v", messageID, err)
		return
	}
	m.publishStatus(conversationID, msg)
}

func (m *ManagerService) publishStatus(conversationID string, msg *models.Message) {
	ev := models.Event{
		Type:           models.EventStatusUpdate,
		ConversationID: conversationID,
		SenderID:       msg.SenderID,
		MessageID:      msg.ID,
		Status:         msg.Status,
	}
	if err := m.Storage.PublishEvent(conversationID, ev); err != nil {
		log.Printf("ERROR: Failed to publish status update for message %d: %v", msg.ID, err)
	}
}

// sendStorageError maps store errors onto wire error codes. Timeouts are
// reported as outcome-unknown so the client reconciles via history instead
// of blindly resending.
func (m *ManagerService) sendStorageError(c Client, conversationID string, err error) {
	switch {
	case errors.Is(err, storage.ErrValidation):
		m.sendError(c, conversationID, models.CodeValidation, "message content is empty or too long")
	case errors.Is(err, storage.ErrInvalidTransition):
		m.sendError(c, conversationID, models.CodeInvalidTransition, "status may only move forward")
	case errors.Is(err, storage.ErrTimeout):
		m.sendError(c, conversationID, models.CodeTimeout, "outcome unknown, fetch history before retrying")
	default:
		m.sendError(c, conversationID, models.CodeUnavailable, "storage operation failed")
	}
}
