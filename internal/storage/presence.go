package storage

import (
	"encoding/json"
	"errors"
	"time"

	"worklink/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	connsKeyPrefix    = "conns:"
	lastSeenKeyPrefix = "lastseen:"
	typingKeyPrefix   = "typing:"
	roomChannelPrefix = "room:"
)

// AddConnection records an active connection for the user and reports
// whether the user just came online (the active set was empty before).
// Re-adding a known connection id is a no-op. The add and the cardinality
// read run in one MULTI/EXEC so concurrent hub instances racing on the
// same user see distinct post-add cardinalities: exactly one of them
// observes the empty-to-non-empty edge.
func (s *Service) AddConnection(userID, connID string) (bool, error) {
	key := connsKeyPrefix + userID

	var added, card *redis.IntCmd
	_, err := s.Redis.TxPipelined(s.Ctx, func(pipe redis.Pipeliner) error {
		added = pipe.SAdd(s.Ctx, key, connID)
		card = pipe.SCard(s.Ctx, key)
		return nil
	})
	if err != nil {
		return false, err
	}

	return added.Val() > 0 && card.Val() == 1, nil
}

// RemoveConnection drops a connection from the user's active set and
// reports whether the user just went offline. The remove and the
// cardinality read run in one MULTI/EXEC, mirroring AddConnection, so
// exactly one racing instance observes the set emptying. When it does,
// the last-seen timestamp is stamped with the current server time.
func (s *Service) RemoveConnection(userID, connID string) (bool, error) {
	key := connsKeyPrefix + userID

	var removed, card *redis.IntCmd
	_, err := s.Redis.TxPipelined(s.Ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.SRem(s.Ctx, key, connID)
		card = pipe.SCard(s.Ctx, key)
		return nil
	})
	if err != nil {
		return false, err
	}

	if card.Val() == 0 {
		if err := s.Redis.Set(s.Ctx, lastSeenKeyPrefix+userID, time.Now().Format(time.RFC3339Nano), 0).Err(); err != nil {
			return false, err
		}
	}

	return removed.Val() > 0 && card.Val() == 0, nil
}

// GetPresence always succeeds: a user that never connected is offline with
// a zero last-seen.
func (s *Service) GetPresence(userID string) (*models.PresenceRecord, error) {
	conns, err := s.Redis.SMembers(s.Ctx, connsKeyPrefix+userID).Result()
	if err != nil {
		return nil, err
	}
	if len(conns) > 0 {
		return &models.PresenceRecord{
			UserID:      userID,
			Status:      models.PresenceOnline,
			Connections: conns,
		}, nil
	}

	record := &models.PresenceRecord{UserID: userID, Status: models.PresenceOffline}
	raw, err := s.Redis.Get(s.Ctx, lastSeenKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return record, nil
	}
	if err != nil {
		return nil, err
	}
	if ts, parseErr := time.Parse(time.RFC3339Nano, raw); parseErr == nil {
		record.LastSeen = ts
	}
	return record, nil
}

// SetTypingFlag raises the typing flag for a participant with a TTL equal
// to the idle timeout. The key expiring is the cross-instance sweep: an
// expired flag is indistinguishable from a cleared one.
func (s *Service) SetTypingFlag(conversationID, userID string, ttl time.Duration) error {
	return s.Redis.Set(s.Ctx, typingKey(conversationID, userID), "1", ttl).Err()
}

// ClearTypingFlag drops the typing flag immediately.
func (s *Service) ClearTypingFlag(conversationID, userID string) error {
	return s.Redis.Del(s.Ctx, typingKey(conversationID, userID)).Err()
}

// IsTyping reports whether a non-expired typing flag exists.
func (s *Service) IsTyping(conversationID, userID string) (bool, error) {
	_, err := s.Redis.Get(s.Ctx, typingKey(conversationID, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// PublishEvent fans an event out to every hub instance subscribed to the
// conversation's room channel.
func (s *Service) PublishEvent(conversationID string, ev models.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.Redis.Publish(s.Ctx, roomChannelPrefix+conversationID, string(payload)).Err()
}

// SubscribeToRooms subscribes to every room channel. The hub's pub/sub
// listener consumes the returned subscription.
func (s *Service) SubscribeToRooms() *redis.PubSub {
	return s.Redis.PSubscribe(s.Ctx, roomChannelPrefix+"*")
}

func typingKey(conversationID, userID string) string {
	return typingKeyPrefix + conversationID + ":" + userID
}
