package chathub

import (
	"errors"
	"log"

	"worklink/backend/internal/config"
	"worklink/backend/internal/models"
	"worklink/backend/internal/storage"
)

// room tracks the connections currently joined to one conversation plus
// the fixed participant pair, cached from the conversation directory at
// first join. A room with no members is dropped from the registry; the
// conversation itself persists in storage.
type room struct {
	conversationID string
	clientID       string
	freelancerID   string
	members        map[string]Client // connID -> client
}

// ManagerService is the hub. A single Run goroutine owns the Clients and
// room maps, so registrations, room membership and event dispatch for all
// conversations are serialized without explicit locks.
type ManagerService struct {
	Clients map[string]Client // connID -> client
	rooms   map[string]*room  // conversationID -> room

	RegisterCh   chan Client
	UnregisterCh chan Client
	IncomingCh   chan Inbound
	PubSubCh     chan models.Event

	Storage storage.Storage
	Typing  *TypingCoordinator
}

func NewManagerService(s storage.Storage) *ManagerService {
	return &ManagerService{
		Clients:      make(map[string]Client),
		rooms:        make(map[string]*room),
		RegisterCh:   make(chan Client, 256),
		UnregisterCh: make(chan Client, 256),
		IncomingCh:   make(chan Inbound, 1024),
		PubSubCh:     make(chan models.Event, 1024),
		Storage:      s,
		Typing:       NewTypingCoordinator(s, config.TypingIdleTimeout),
	}
}

// Run is the hub's main dispatcher loop.
func (m *ManagerService) Run() {
	for {
		select {
		case c := <-m.RegisterCh:
			m.handleRegister(c)
		case c := <-m.UnregisterCh:
			m.handleUnregister(c)
		case in := <-m.IncomingCh:
			m.dispatch(in)
		case ev := <-m.PubSubCh:
			m.handleFanout(ev)
		}
	}
}

func (m *ManagerService) dispatch(in Inbound) {
	switch in.Event.Type {
	case models.EventJoinRoom:
		m.handleJoin(in.Client, in.Event)
	case models.EventLeaveRoom:
		m.handleLeave(in.Client, in.Event)
	case models.EventSendMessage:
		m.handleSend(in.Client, in.Event)
	case models.EventTyping:
		m.handleTyping(in.Client, in.Event)
	case models.EventMarkRead:
		m.handleMarkRead(in.Client, in.Event)
	default:
		m.sendError(in.Client, in.Event.ConversationID, models.CodeProtocol, "unsupported event type")
	}
}

func (m *ManagerService) handleRegister(c Client) {
	m.Clients[c.GetConnID()] = c
	log.Printf("Connection %s registered for user %s", c.GetConnID(), c.GetUserID())

	wentOnline, err := m.Storage.AddConnection(c.GetUserID(), c.GetConnID())
	if err != nil {
		log.Printf("ERROR: Failed to record connection for user %s: %v", c.GetUserID(), err)
		return
	}
	if wentOnline {
		m.broadcastPresence(c.GetUserID(), models.PresenceOnline, nil)
	}
}

func (m *ManagerService) handleUnregister(c Client) {
	connID := c.GetConnID()
	if _, ok := m.Clients[connID]; !ok {
		return // already unregistered
	}
	delete(m.Clients, connID)

	for conversationID, r := range m.rooms {
		if _, ok := r.members[connID]; ok {
			delete(r.members, connID)
			if len(r.members) == 0 {
				delete(m.rooms, conversationID)
			}
		}
	}

	c.Close()
	log.Printf("Connection %s unregistered for user %s", connID, c.GetUserID())

	wentOffline, err := m.Storage.RemoveConnection(c.GetUserID(), connID)
	if err != nil {
		log.Printf("ERROR: Failed to drop connection for user %s: %v", c.GetUserID(), err)
		return
	}
	if wentOffline {
		lastSeen := m.lastSeenOf(c.GetUserID())
		m.broadcastPresence(c.GetUserID(), models.PresenceOffline, lastSeen)
	}
}

// handleJoin adds the connection to the conversation's room after the
// participant check, then replays missed history to the joiner.
func (m *ManagerService) handleJoin(c Client, ev models.Event) {
	conv, err := m.Storage.GetConversationByID(ev.ConversationID)
	if errors.Is(err, storage.ErrConversationNotFound) {
		m.sendError(c, ev.ConversationID, models.CodeValidation, "unknown conversation")
		return
	}
	if err != nil {
		m.sendError(c, ev.ConversationID, models.CodeUnavailable, "conversation lookup failed")
		return
	}
	if conv.Archived {
		m.sendError(c, ev.ConversationID, models.CodeValidation, "conversation is archived")
		return
	}
	if !conv.HasParticipant(c.GetUserID()) {
		m.sendError(c, ev.ConversationID, models.CodeNotAParticipant, "not a participant of this conversation")
		return
	}

	r, ok := m.rooms[conv.ConversationID]
	if !ok {
		r = &room{
			conversationID: conv.ConversationID,
			clientID:       conv.ClientID,
			freelancerID:   conv.FreelancerID,
			members:        make(map[string]Client),
		}
		m.rooms[conv.ConversationID] = r
	}
	r.members[c.GetConnID()] = c

	m.sendCatchUp(c, conv, ev.SinceSeq)

	other := conv.OtherParticipant(c.GetUserID())

	// counterparty presence snapshot for the joiner
	if record, err := m.Storage.GetPresence(other); err == nil {
		snapshot := models.Event{
			Type:           models.EventPresenceChanged,
			ConversationID: conv.ConversationID,
			UserID:         record.UserID,
			Presence:       string(record.Status),
		}
		if !record.LastSeen.IsZero() {
			ts := record.LastSeen
			snapshot.LastSeen = &ts
		}
		m.deliver(c, snapshot)
	}

	// counterparty typing snapshot; the flag lives in Redis with a TTL, so
	// a burst started on another instance is visible to the joiner here
	if typing, err := m.Storage.IsTyping(conv.ConversationID, other); err == nil && typing {
		m.deliver(c, models.Event{
			Type:           models.EventUserTyping,
			ConversationID: conv.ConversationID,
			UserID:         other,
			IsTyping:       true,
		})
	}
}

func (m *ManagerService) handleLeave(c Client, ev models.Event) {
	r, ok := m.rooms[ev.ConversationID]
	if !ok {
		return // leave of an unjoined room is a no-op
	}
	delete(r.members, c.GetConnID())
	if len(r.members) == 0 {
		delete(m.rooms, ev.ConversationID)
	}
}

// memberOf reports whether the connection has joined the conversation's room.
func (m *ManagerService) memberOf(conversationID string, c Client) bool {
	r, ok := m.rooms[conversationID]
	if !ok {
		return false
	}
	_, ok = r.members[c.GetConnID()]
	return ok
}

// deliver hands an event to one client without blocking the hub loop. A
// client whose send buffer is full is treated as dead and unregistered.
func (m *ManagerService) deliver(c Client, ev models.Event) {
	select {
	case c.GetSendChannel() <- ev:
	default:
		log.Printf("Send buffer full for connection %s, dropping client", c.GetConnID())
		go func() { m.UnregisterCh <- c }()
	}
}

func (m *ManagerService) sendError(c Client, conversationID, code, detail string) {
	m.deliver(c, models.Event{
		Type:           models.EventError,
		ConversationID: conversationID,
		Code:           code,
		Detail:         detail,
	})
}
