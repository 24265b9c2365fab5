package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"worklink/backend/internal/config"
	"worklink/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrValidation rejects empty or oversized message content. No
	// sequence number is consumed when it is returned.
	ErrValidation = errors.New("message content is empty or too long")
	// ErrInvalidTransition rejects a backward or skipping status change.
	ErrInvalidTransition = errors.New("invalid message status transition")
	// ErrTimeout marks a persistence write whose outcome is unknown;
	// callers must reconcile via History rather than resend.
	ErrTimeout = errors.New("persistence timed out")
	// ErrConversationNotFound is returned for lookups of unknown rooms.
	ErrConversationNotFound = errors.New("conversation not found")
)

type Storage interface {
	SaveUser(user *models.User) error
	GetUserByID(id string) (*models.User, error)

	SaveConversation(conv *models.Conversation) error
	GetConversationByID(id string) (*models.Conversation, error)
	GetConversationsForUser(userID string) ([]models.Conversation, error)
	ArchiveEngagement(engagementRef string) (int64, error)

	AppendMessage(ctx context.Context, conversationID, senderID, content string) (*models.Message, error)
	UpdateMessageStatus(ctx context.Context, messageID uint, newStatus models.MessageStatus) (*models.Message, error)
	MarkDeliveredThrough(ctx context.Context, conversationID, receiverID string, seq uint64) ([]models.Message, error)
	MarkReadThrough(ctx context.Context, conversationID, readerID string, seq uint64) ([]models.Message, error)
	History(ctx context.Context, conversationID string, sinceSeq uint64, limit int) ([]models.Message, error)

	AddConnection(userID, connID string) (bool, error)
	RemoveConnection(userID, connID string) (bool, error)
	GetPresence(userID string) (*models.PresenceRecord, error)

	SetTypingFlag(conversationID, userID string, ttl time.Duration) error
	ClearTypingFlag(conversationID, userID string) error
	IsTyping(conversationID, userID string) (bool, error)

	PublishEvent(conversationID string, ev models.Event) error
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// SaveUser stores a user in PostgreSQL.
func (s *Service) SaveUser(user *models.User) error {
	return s.DB.Save(user).Error
}

// GetUserByID returns a user row, or nil without error when unknown.
func (s *Service) GetUserByID(id string) (*models.User, error) {
	var user models.User
	err := s.DB.Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SaveConversation stores a conversation in PostgreSQL.
func (s *Service) SaveConversation(conv *models.Conversation) error {
	return s.DB.Save(conv).Error
}

func (s *Service) GetConversationByID(id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.DB.Where("conversation_id = ?", id).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		log.Printf("ERROR: Failed to get conversation %s: %v", id, err)
		return nil, err
	}
	return &conv, nil
}

// GetConversationsForUser lists every conversation the user participates in.
func (s *Service) GetConversationsForUser(userID string) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := s.DB.Where("client_id = ? OR freelancer_id = ?", userID, userID).
		Order("created_at asc").
		Find(&convs).Error
	if err != nil {
		log.Printf("ERROR: Failed to list conversations for user %s: %v", userID, err)
		return nil, err
	}
	return convs, nil
}

// ArchiveEngagement marks every conversation of an engagement as archived
// and returns how many rows changed. Message rows are kept.
func (s *Service) ArchiveEngagement(engagementRef string) (int64, error) {
	result := s.DB.Model(&models.Conversation{}).
		Where("engagement_ref = ? AND archived = ?", engagementRef, false).
		Update("archived", true)
	return result.RowsAffected, result.Error
}

// AppendMessage persists a new message with the next sequence number for
// its conversation. An advisory lock keyed on the conversation serializes
// concurrent appends, so sequence numbers stay gapless and strictly
// increasing; the unique (conversation_id, seq) index backstops the lock.
func (s *Service) AppendMessage(ctx context.Context, conversationID, senderID, content string) (*models.Message, error) {
	if content == "" || utf8.RuneCountInString(content) > config.MaxMessageRunes {
		return nil, ErrValidation
	}

	msg := models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Status:         models.StatusSent,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", conversationID).Error; err != nil {
			return err
		}

		var lastSeq uint64
		if err := tx.Raw(
			"SELECT COALESCE(MAX(seq), 0) FROM messages WHERE conversation_id = ?",
			conversationID,
		).Scan(&lastSeq).Error; err != nil {
			return err
		}

		msg.Seq = lastSeq + 1
		return tx.Create(&msg).Error
	})
	if err != nil {
		log.Printf("ERROR: Failed to append message for conversation %s: %v", conversationID, err)
		return nil, wrapTimeout(err)
	}

	return &msg, nil
}

// UpdateMessageStatus advances a message one step along
// sent -> delivered -> read. Re-applying the current status is a no-op;
// anything else that is not the next step fails with ErrInvalidTransition.
func (s *Service) UpdateMessageStatus(ctx context.Context, messageID uint, newStatus models.MessageStatus) (*models.Message, error) {
	if !newStatus.Valid() {
		return nil, ErrInvalidTransition
	}

	var msg models.Message
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&msg, messageID).Error; err != nil {
			return err
		}

		if msg.Status == newStatus {
			return nil // idempotent re-application
		}
		if !msg.Status.CanTransitionTo(newStatus) {
			return ErrInvalidTransition
		}

		now := time.Now()
		updates := map[string]interface{}{"status": newStatus}
		switch newStatus {
		case models.StatusDelivered:
			updates["delivered_at"] = now
			msg.DeliveredAt = &now
		case models.StatusRead:
			updates["read_at"] = now
			msg.ReadAt = &now
		}
		msg.Status = newStatus

		return tx.Model(&models.Message{}).Where("id = ?", msg.ID).Updates(updates).Error
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return nil, ErrInvalidTransition
		}
		log.Printf("ERROR: Failed to update status of message %d: %v", messageID, err)
		return nil, wrapTimeout(err)
	}

	return &msg, nil
}

// MarkDeliveredThrough promotes every still-sent message addressed to
// receiverID with sequence <= seq to delivered, returning the promoted rows
// in ascending sequence order. Used by reconnect catch-up.
func (s *Service) MarkDeliveredThrough(ctx context.Context, conversationID, receiverID string, seq uint64) ([]models.Message, error) {
	return s.promoteThrough(ctx, conversationID, receiverID, seq, models.StatusSent, models.StatusDelivered)
}

// MarkReadThrough promotes every delivered message addressed to readerID
// with sequence <= seq to read. Re-running with the same or a lower cursor
// matches nothing and never regresses read messages.
func (s *Service) MarkReadThrough(ctx context.Context, conversationID, readerID string, seq uint64) ([]models.Message, error) {
	return s.promoteThrough(ctx, conversationID, readerID, seq, models.StatusDelivered, models.StatusRead)
}

func (s *Service) promoteThrough(ctx context.Context, conversationID, counterpartyID string, seq uint64, from, to models.MessageStatus) ([]models.Message, error) {
	var promoted []models.Message

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("conversation_id = ? AND sender_id <> ? AND status = ? AND seq <= ?",
				conversationID, counterpartyID, from, seq).
			Order("seq asc").
			Find(&promoted).Error
		if err != nil {
			return err
		}
		if len(promoted) == 0 {
			return nil
		}

		ids := make([]uint, 0, len(promoted))
		for i := range promoted {
			ids = append(ids, promoted[i].ID)
		}

		now := time.Now()
		updates := map[string]interface{}{"status": to}
		if to == models.StatusDelivered {
			updates["delivered_at"] = now
		} else {
			updates["read_at"] = now
		}
		if err := tx.Model(&models.Message{}).Where("id IN ?", ids).Updates(updates).Error; err != nil {
			return err
		}

		for i := range promoted {
			promoted[i].Status = to
			if to == models.StatusDelivered {
				promoted[i].DeliveredAt = &now
			} else {
				promoted[i].ReadAt = &now
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("ERROR: Failed to promote messages to %s for conversation %s: %v", to, conversationID, err)
		return nil, wrapTimeout(err)
	}

	return promoted, nil
}

// History returns messages after sinceSeq in ascending sequence order.
// Clients page by feeding the last seen sequence back as the new cursor.
func (s *Service) History(ctx context.Context, conversationID string, sinceSeq uint64, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = config.HistoryDefaultLimit
	}
	if limit > config.HistoryMaxLimit {
		limit = config.HistoryMaxLimit
	}

	var history []models.Message
	err := s.DB.WithContext(ctx).
		Where("conversation_id = ? AND seq > ?", conversationID, sinceSeq).
		Order("seq asc").
		Limit(limit).
		Find(&history).Error
	if err != nil {
		log.Printf("ERROR: Failed to get history for conversation %s: %v", conversationID, err)
		return nil, wrapTimeout(err)
	}
	return history, nil
}

// wrapTimeout converts context deadline errors into ErrTimeout so callers
// can tell an outcome-unknown write apart from a definite failure.
func wrapTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
