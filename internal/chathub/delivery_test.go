package chathub_test

import (
	"testing"
	"time"

	"worklink/backend/internal/chathub"
	"worklink/backend/internal/config"
	"worklink/backend/internal/models"
	"worklink/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestManager_SendMessageEchoesAndPublishes(t *testing.T) {
	storageMock := new(MockStorage)
	hub := chathub.NewManagerService(storageMock)
	go hub.Run()

	client := newMockClient("user_client", "conn_1")
	joinRoom(hub, storageMock, client)
	client.DrainEvents() // discard join replay

	saved := &models.Message{
		ID: 10, ConversationID: testConvID, Seq: 1,
		SenderID: "user_client", Content: "hello", Status: models.StatusSent,
	}
	storageMock.On("AppendMessage", mock.Anything, testConvID, "user_client", "hello").
		Return(saved, nil)
	storageMock.On("PublishEvent", testConvID, mock.AnythingOfType("models.Event")).Return(nil)

	hub.IncomingCh <- chathub.Inbound{Client: client, Event: models.Event{
		Type:           models.EventSendMessage,
		ConversationID: testConvID,
		Content:        "hello",
	}}
	time.Sleep(50 * time.Millisecond)

	events := client.DrainEvents()
	assert.Len(t, events, 1)
	assert.Equal(t, models.EventNewMessage, events[0].Type)
	assert.Equal(t, uint64(1), events[0].Message.Seq)
	assert.Equal(t, models.StatusSent, events[0].Message.Status)

	storageMock.AssertCalled(t, "PublishEvent", testConvID, mock.MatchedBy(func(ev models.Event) bool {
		return ev.Type == models.EventNewMessage && ev.SenderID == "user_client" && ev.Message.ID == uint(10)
	}))
}

func TestManager_SendWithoutJoinIsRejected(t *testing.T) {
	storageMock := new(MockStorage)
	hub := chathub.NewManagerService(storageMock)
	go hub.Run()

	client := newMockClient("user_client", "conn_1")
	storageMock.On("AddConnection", "user_client", "conn_1").Return(false, nil)

	hub.RegisterCh <- client
	hub.IncomingCh <- chathub.Inbound{Client: client, Event: models.Event{
		Type:           models.EventSendMessage,
		ConversationID: testConvID,
		Content:        "hello",
	}}
	time.Sleep(50 * time.Millisecond)

	events := client.DrainEvents()
	assert.Len(t, events, 1)
	assert.Equal(t, models.EventError, events[0].Type)
	assert.Equal(t, models.CodeNotAParticipant, events[0].Code)
	storageMock.AssertNotCalled(t, "AppendMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestManager_SendToArchivedConversationRejected(t *testing.T) {
	storageMock := new(MockStorage)
	hub := chathub.NewManagerService(storageMock)
	go hub.Run()

	// the conversation is live at join time and archived before the send
	active := testConversation()
	archived := testConversation()
	archived.Archived = true

	client := newMockClient("user_client", "conn_1")
	storageMock.On("AddConnection", "user_client", "conn_1").Return(false, nil)
	storageMock.On("GetConversationByID", testConvID).Return(active, nil).Once()
	storageMock.On("GetConversationByID", testConvID).Return(archived, nil)
	storageMock.On("History", mock.Anything, testConvID, uint64(0), config.HistoryDefaultLimit).
		Return([]models.Message{}, nil)
	storageMock.On("GetPresence", "user_freelancer").
		Return(&models.PresenceRecord{UserID: "user_freelancer", Status: models.PresenceOffline}, nil)
	storageMock.On("IsTyping", testConvID, "user_freelancer").Return(false, nil)

	hub.RegisterCh <- client
	hub.IncomingCh <- chathub.Inbound{Client: client, Event: models.Event{
		Type:           models.EventJoinRoom,
		ConversationID: testConvID,
	}}
	time.Sleep(50 * time.Millisecond)
	client.DrainEvents()

	hub.IncomingCh <- chathub.Inbound{Client: client, Event: models.Event{
		Type:           models.EventSendMessage,
		ConversationID: testConvID,
		Content:        "too late",
	}}
	time.Sleep(50 * time.Millisecond)

	events := client.DrainEvents()
	assert.Len(t, events, 1)
	assert.Equal(t, models.EventError, events[0].Type)
	assert.Equal(t, models.CodeValidation, events[0].Code)
	assert.Equal(t, "conversation is archived", events[0].Detail)
	storageMock.AssertNotCalled(t, "AppendMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestManager_SendSurfacesStorageErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"validation", storage.ErrValidation, models.CodeValidation},
		{"timeout", storage.ErrTimeout, models.CodeTimeout},
		{"unavailable", assert.AnError, models.CodeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storageMock := new(MockStorage)
			hub := chathub.NewManagerService(storageMock)
			go hub.Run()

			client := newMockClient("user_client", "conn_1")
			joinRoom(hub, storageMock, client)
			client.DrainEvents()

			storageMock.On("AppendMessage", mock.Anything, testConvID, "user_client", mock.Anything).
				Return(nil, tt.err)

			hub.IncomingCh <- chathub.Inbound{Client: client, Event: models.Event{
				Type:           models.EventSendMessage,
				ConversationID: testConvID,
				Content:        "whatever",
			}}
			time.Sleep(50 * time.Millisecond)

			events := client.DrainEvents()
			assert.Len(t, events, 1)
			assert.Equal(t, models.EventError, events[0].Type)
			assert.Equal(t, tt.wantCode, events[0].Code)
		})
	}
}

func TestManager_FanoutDeliversAndPromotes(t *testing.T) {
	storageMock := new(MockStorage)
	hub := chathub.NewManagerService(storageMock)
	go hub.Run()

	receiver := newMockClient("user_freelancer", "conn_f1")
	joinRoom(hub, storageMock, receiver)
	receiver.DrainEvents()

	msg := &models.Message{
		ID: 7, ConversationID: testConvID, Seq: 3,
		SenderID: "user_client", Content: "ping", Status: models.StatusSent,
	}
	delivered := *msg
	delivered.Status = models.StatusDelivered
	storageMock.On("UpdateMessageStatus", mock.Anything, uint(7), models.StatusDelivered).
		Return(&delivered, nil)
	storageMock.On("PublishEvent", testConvID, mock.AnythingOfType("models.Event")).Return(nil)

	hub.PubSubCh <- models.Event{
		Type:           models.EventNewMessage,
		ConversationID: testConvID,
		SenderID:       "user_client",
		Message:        msg,
	}
	time.Sleep(50 * time.Millisecond)

	events := receiver.DrainEvents()
	assert.Len(t, events, 1)
	assert.Equal(t, models.EventNewMessage, events[0].Type)
	assert.Equal(t, "ping", events[0].Message.Content)

	storageMock.AssertCalled(t, "UpdateMessageStatus", mock.Anything, uint(7), models.StatusDelivered)
	storageMock.AssertCalled(t, "PublishEvent", testConvID, mock.MatchedBy(func(ev models.Event) bool {
		return ev.Type == models.EventStatusUpdate &&
			ev.MessageID == uint(7) &&
			ev.Status == models.StatusDelivered
	}))
}

func TestManager_FanoutSkipsSenderConnections(t *testing.T) {
	storageMock := new(MockStorage)
	hub := chathub.NewManagerService(storageMock)
	go hub.Run()

	sender := newMockClient("user_client", "conn_c1")
	joinRoom(hub, storageMock, sender)
	sender.DrainEvents()

	// only the sender is in the room, so nobody receives and no promotion runs
	hub.PubSubCh <- models.Event{
		Type:           models.EventNewMessage,
		ConversationID: testConvID,
		SenderID:       "user_client",
		Message:        &models.Message{ID: 8, SenderID: "user_client", Status: models.StatusSent},
	}
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, sender.DrainEvents())
	storageMock.AssertNotCalled(t, "UpdateMessageStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestManager_FanoutStatusUpdateGoesToSenderOnly(t *testing.T) {
	storageMock := new(MockStorage)
	hub := chathub.NewManagerService(storageMock)
	go hub.Run()

	sender := newMockClient("user_client", "conn_c1")
	receiver := newMockClient("user_freelancer", "conn_f1")
	joinRoom(hub, storageMock, sender)
	joinRoom(hub, storageMock, receiver)
	sender.DrainEvents()
	receiver.DrainEvents()

	hub.PubSubCh <- models.Event{
		Type:           models.EventStatusUpdate,
		ConversationID: testConvID,
		SenderID:       "user_client",
		MessageID:      5,
		Status:         models.StatusRead,
	}
	time.Sleep(50 * time.Millisecond)

	senderEvents := sender.DrainEvents()
	assert.Len(t, senderEvents, 1)
	assert.Equal(t, models.EventStatusUpdate, senderEvents[0].Type)
	assert.Equal(t, models.StatusRead, senderEvents[0].Status)
	assert.Empty(t, receiver.DrainEvents())
}

func TestManager_MarkReadPromotesInOrder(t *testing.T) {
	storageMock := new(MockStorage)
	hub := chathub.NewManagerService(storageMock)
	go hub.Run()

	client := newMockClient("user_freelancer", "conn_f1")
	joinRoom(hub, storageMock, client)
	client.DrainEvents()

	promoted := []models.Message{
		{ID: 4, ConversationID: testConvID, Seq: 4, SenderID: "user_client", Status: models.StatusRead},
		{ID: 5, ConversationID: testConvID, Seq: 5, SenderID: "user_client", Status: models.StatusRead},
	}
	storageMock.On("MarkReadThrough", mock.Anything, testConvID, "user_freelancer", uint64(5)).
		Return(promoted, nil)

	var published []models.Event
	storageMock.On("PublishEvent", testConvID, mock.AnythingOfType("models.Event")).
		Run(func(args mock.Arguments) {
			published = append(published, args.Get(1).(models.Event))
		}).Return(nil)

	hub.IncomingCh <- chathub.Inbound{Client: client, Event: models.Event{
		Type:           models.EventMarkRead,
		ConversationID: testConvID,
		ReadUpToSeq:    5,
	}}
	time.Sleep(50 * time.Millisecond)

	assert.Len(t, published, 2)
	assert.Equal(t, uint(4), published[0].MessageID)
	assert.Equal(t, uint(5), published[1].MessageID)
	for _, ev := range published {
		assert.Equal(t, models.EventStatusUpdate, ev.Type)
		assert.Equal(t, models.StatusRead, ev.Status)
	}
}
