package chathub

import (
	"log"
	"sync"
	"time"

	"worklink/backend/internal/models"
	"worklink/backend/internal/storage"
)

func (m *ManagerService) handleTyping(c Client, ev models.Event) {
	if !m.memberOf(ev.ConversationID, c) {
		m.sendError(c, ev.ConversationID, models.CodeNotAParticipant, "join the room before typing")
		return
	}
	m.Typing.SetTyping(ev.ConversationID, c.GetUserID(), ev.IsTyping)
}

type typingState struct {
	expiresAt time.Time
	timer     *time.Timer
}

// TypingCoordinator owns the short-lived typing flags. The debounce lives
// server-side: the idle timeout bounds how long a flag can stay up no
// matter what the client sends, and an expired flag is never reported as
// typing. Flags are mirrored into Redis with the same TTL so other
// instances can answer queries.
type TypingCoordinator struct {
	mu     sync.Mutex
	states map[string]*typingState

	storage     storage.Storage
	idleTimeout time.Duration
}

func NewTypingCoordinator(s storage.Storage, idleTimeout time.Duration) *TypingCoordinator {
	return &TypingCoordinator{
		states:      make(map[string]*typingState),
		storage:     s,
		idleTimeout: idleTimeout,
	}
}

// SetTyping records or clears a participant's typing intent. A true flag
// is broadcast once per burst; refreshes within the idle window only push
// the expiry forward. A false flag clears and broadcasts immediately.
func (t *TypingCoordinator) SetTyping(conversationID, userID string, isTyping bool) {
	key := conversationID + "|" + userID

	if !isTyping {
		t.mu.Lock()
		if st, ok := t.states[key]; ok {
			st.timer.Stop()
			delete(t.states, key)
		}
		t.mu.Unlock()

		if err := t.storage.ClearTypingFlag(conversationID, userID); err != nil {
			log.Printf("ERROR: Failed to clear typing flag for user %s: %v", userID, err)
		}
		t.publish(conversationID, userID, false)
		return
	}

	if err := t.storage.SetTypingFlag(conversationID, userID, t.idleTimeout); err != nil {
		log.Printf("ERROR: Failed to set typing flag for user %s: %v", userID, err)
	}

	t.mu.Lock()
	if st, ok := t.states[key]; ok {
		st.expiresAt = time.Now().Add(t.idleTimeout)
		st.timer.Reset(t.idleTimeout)
		t.mu.Unlock()
		return // still within the burst, no re-broadcast
	}
	st := &typingState{expiresAt: time.Now().Add(t.idleTimeout)}
	st.timer = time.AfterFunc(t.idleTimeout, func() { t.expire(conversationID, userID) })
	t.states[key] = st
	t.mu.Unlock()

	t.publish(conversationID, userID, true)
}

// Typing reports the current flag with a lazy expiry check, so a stale
// state is never observed as typing even before the sweep fires.
func (t *TypingCoordinator) Typing(conversationID, userID string) bool {
	key := conversationID + "|" + userID
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.states[key]
	return ok && time.Now().Before(st.expiresAt)
}

// expire fires when the idle window lapses with no refresh. It guards
// against a timer racing a concurrent refresh before re-checking expiry.
func (t *TypingCoordinator) expire(conversationID, userID string) {
	key := conversationID + "|" + userID

	t.mu.Lock()
	st, ok := t.states[key]
	if !ok || time.Now().Before(st.expiresAt) {
		t.mu.Unlock()
		return
	}
	delete(t.states, key)
	t.mu.Unlock()

	if err := t.storage.ClearTypingFlag(conversationID, userID); err != nil {
		log.Printf("ERROR: Failed to clear expired typing flag for user %s: %v", userID, err)
	}
	t.publish(conversationID, userID, false)
}

func (t *TypingCoordinator) publish(conversationID, userID string, isTyping bool) {
	ev := models.Event{
		Type:           models.EventUserTyping,
		ConversationID: conversationID,
		UserID:         userID,
		IsTyping:       isTyping,
	}
	if err := t.storage.PublishEvent(conversationID, ev); err != nil {
		log.Printf("ERROR: Failed to publish typing state for user %s: %v", userID, err)
	}
}
