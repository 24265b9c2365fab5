package chathub_test

import (
	"context"
	"sync"
	"time"

	"worklink/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockStorage is a testify/mock implementation of the storage.Storage
// interface, allowing flexible expectation setting in tests.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) SaveUser(user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockStorage) GetUserByID(id string) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) SaveConversation(conv *models.Conversation) error {
	args := m.Called(conv)
	return args.Error(0)
}

func (m *MockStorage) GetConversationByID(id string) (*models.Conversation, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockStorage) GetConversationsForUser(userID string) ([]models.Conversation, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Conversation), args.Error(1)
}

func (m *MockStorage) ArchiveEngagement(engagementRef string) (int64, error) {
	args := m.Called(engagementRef)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) AppendMessage(ctx context.Context, conversationID, senderID, content string) (*models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockStorage) UpdateMessageStatus(ctx context.Context, messageID uint, newStatus models.MessageStatus) (*models.Message, error) {
	args := m.Called(ctx, messageID, newStatus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockStorage) MarkDeliveredThrough(ctx context.Context, conversationID, receiverID string, seq uint64) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, receiverID, seq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockStorage) MarkReadThrough(ctx context.Context, conversationID, readerID string, seq uint64) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, readerID, seq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockStorage) History(ctx context.Context, conversationID string, sinceSeq uint64, limit int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, sinceSeq, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockStorage) AddConnection(userID, connID string) (bool, error) {
	args := m.Called(userID, connID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) RemoveConnection(userID, connID string) (bool, error) {
	args := m.Called(userID, connID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) GetPresence(userID string) (*models.PresenceRecord, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PresenceRecord), args.Error(1)
}

func (m *MockStorage) SetTypingFlag(conversationID, userID string, ttl time.Duration) error {
	args := m.Called(conversationID, userID, ttl)
	return args.Error(0)
}

func (m *MockStorage) ClearTypingFlag(conversationID, userID string) error {
	args := m.Called(conversationID, userID)
	return args.Error(0)
}

func (m *MockStorage) IsTyping(conversationID, userID string) (bool, error) {
	args := m.Called(conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) PublishEvent(conversationID string, ev models.Event) error {
	args := m.Called(conversationID, ev)
	return args.Error(0)
}

// MockClient is a test double for the chathub.Client interface. It records
// delivered events in a buffered channel instead of writing to a socket.
type MockClient struct {
	userID string
	connID string
	send   chan models.Event

	mu     sync.Mutex // Close runs on the hub goroutine, Closed on the test's
	closed bool
}

func newMockClient(userID, connID string) *MockClient {
	return &MockClient{
		userID: userID,
		connID: connID,
		send:   make(chan models.Event, 32), // buffered to prevent blocking in tests
	}
}

func (c *MockClient) GetUserID() string                   { return c.userID }
func (c *MockClient) GetConnID() string                   { return c.connID }
func (c *MockClient) GetSendChannel() chan<- models.Event { return c.send }
func (c *MockClient) Run()                                {}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *MockClient) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// DrainEvents returns everything delivered to the client so far.
func (c *MockClient) DrainEvents() []models.Event {
	var events []models.Event
	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				return events
			}
			events = append(events, ev)
		default:
			return events
		}
	}
}
