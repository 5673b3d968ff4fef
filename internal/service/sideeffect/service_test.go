package sideeffect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"chatlink-backend/internal/domain"
	"chatlink-backend/pkg/logger"
	"chatlink-backend/pkg/push"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	logger.Sugar = logger.Log.Sugar()
	m.Run()
}

// Mocks

type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) Create(ctx context.Context, conversation *domain.Conversation, memberIDs []uuid.UUID) error {
	args := m.Called(ctx, conversation, memberIDs)
	return args.Error(0)
}

func (m *MockConversationRepository) FindByExactMembers(ctx context.Context, convType string, memberIDs []uuid.UUID) (*domain.Conversation, error) {
	args := m.Called(ctx, convType, memberIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Save(message *domain.Message) error {
	args := m.Called(message)
	return args.Error(0)
}

type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Create(ctx context.Context, create *domain.NotificationCreate) (*domain.Notification, error) {
	args := m.Called(ctx, create)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *MockNotificationRepository) MarkAsPushed(ctx context.Context, notificationID uuid.UUID) error {
	args := m.Called(ctx, notificationID)
	return args.Error(0)
}

type MockLinkedChatWriter struct {
	mock.Mock
}

func (m *MockLinkedChatWriter) SetLinkedChat(ctx context.Context, roomID string, conversationID uuid.UUID) error {
	args := m.Called(ctx, roomID, conversationID)
	return args.Error(0)
}

type MockPresence struct {
	mock.Mock
}

func (m *MockPresence) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

type MockPusher struct {
	mock.Mock
}

func (m *MockPusher) SendToUser(ctx context.Context, notification *push.Notification, userID uuid.UUID) (*push.SendResult, error) {
	args := m.Called(ctx, notification, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*push.SendResult), args.Error(1)
}

type testDeps struct {
	conversations *MockConversationRepository
	messages      *MockMessageRepository
	notifications *MockNotificationRepository
	sessions      *MockLinkedChatWriter
	presence      *MockPresence
	pusher        *MockPusher
}

func newTestService() (*Service, *testDeps) {
	deps := &testDeps{
		conversations: new(MockConversationRepository),
		messages:      new(MockMessageRepository),
		notifications: new(MockNotificationRepository),
		sessions:      new(MockLinkedChatWriter),
		presence:      new(MockPresence),
		pusher:        new(MockPusher),
	}
	svc := NewService(deps.conversations, deps.messages, deps.notifications,
		deps.sessions, deps.presence, deps.pusher)
	return svc, deps
}

func directSession(roomID string, a, b uuid.UUID) *domain.CallSession {
	now := time.Now().UTC()
	return &domain.CallSession{
		RoomID:      roomID,
		Kind:        domain.CallKindDirect,
		MediaKind:   domain.MediaKindVideo,
		InitiatorID: a,
		Participants: []domain.Participant{
			{UserID: a, Status: domain.ParticipantJoined, JoinedAt: &now},
			{UserID: b, Status: domain.ParticipantJoined, JoinedAt: &now},
		},
		Status:      domain.CallStatusActive,
		StartedAt:   now,
		ConnectedAt: &now,
		Version:     2,
	}
}

// resolveConversation

func TestResolveConversation_ReusesExistingThread(t *testing.T) {
	svc, deps := newTestService()
	a, b := uuid.New(), uuid.New()
	session := directSession("room-1", a, b)
	existing := &domain.Conversation{ConversationID: uuid.New(), Type: "direct"}

	deps.conversations.On("FindByExactMembers", mock.Anything, "direct", session.ParticipantIDs()).
		Return(existing, nil)
	deps.sessions.On("SetLinkedChat", mock.Anything, "room-1", existing.ConversationID).Return(nil)

	got, err := svc.resolveConversation(context.Background(), session)

	assert.NoError(t, err)
	assert.Equal(t, existing.ConversationID, got.ConversationID)
	deps.conversations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveConversation_CreatesMissingThread(t *testing.T) {
	svc, deps := newTestService()
	a, b := uuid.New(), uuid.New()
	session := directSession("room-1", a, b)

	deps.conversations.On("FindByExactMembers", mock.Anything, "direct", mock.Anything).Return(nil, nil)
	deps.conversations.On("Create", mock.Anything, mock.MatchedBy(func(c *domain.Conversation) bool {
		return c.Type == "direct" && c.CreatedBy == a && c.ConversationID != uuid.Nil
	}), session.ParticipantIDs()).Return(nil)
	deps.sessions.On("SetLinkedChat", mock.Anything, "room-1", mock.Anything).Return(nil)

	got, err := svc.resolveConversation(context.Background(), session)

	assert.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, got.ConversationID)
	deps.conversations.AssertExpectations(t)
}

func TestResolveConversation_GroupCallUsesGroupThread(t *testing.T) {
	svc, deps := newTestService()
	session := directSession("room-1", uuid.New(), uuid.New())
	session.Kind = domain.CallKindGroup
	existing := &domain.Conversation{ConversationID: uuid.New(), Type: "group"}

	deps.conversations.On("FindByExactMembers", mock.Anything, "group", mock.Anything).Return(existing, nil)
	deps.sessions.On("SetLinkedChat", mock.Anything, "room-1", existing.ConversationID).Return(nil)

	_, err := svc.resolveConversation(context.Background(), session)

	assert.NoError(t, err)
	deps.conversations.AssertExpectations(t)
}

func TestResolveConversation_LinkFailureIsNotFatal(t *testing.T) {
	svc, deps := newTestService()
	session := directSession("room-1", uuid.New(), uuid.New())
	existing := &domain.Conversation{ConversationID: uuid.New(), Type: "direct"}

	deps.conversations.On("FindByExactMembers", mock.Anything, "direct", mock.Anything).Return(existing, nil)
	deps.sessions.On("SetLinkedChat", mock.Anything, "room-1", existing.ConversationID).
		Return(errors.New("row vanished"))

	got, err := svc.resolveConversation(context.Background(), session)

	assert.NoError(t, err)
	assert.Equal(t, existing.ConversationID, got.ConversationID)
}

// appendSystemMessage

func TestAppendSystemMessage(t *testing.T) {
	svc, deps := newTestService()
	session := directSession("room-1", uuid.New(), uuid.New())
	conversationID := uuid.New()

	deps.messages.On("Save", mock.MatchedBy(func(m *domain.Message) bool {
		return m.ConversationID == conversationID &&
			m.SenderID == uuid.Nil &&
			m.MessageType == domain.MessageTypeSystem &&
			m.Content == "Video call started" &&
			m.Metadata["room_id"] == "room-1"
	})).Return(nil)

	err := svc.appendSystemMessage(conversationID, session, "Video call started")

	assert.NoError(t, err)
	deps.messages.AssertExpectations(t)
}

// queueAndPush

func TestQueueAndPush_MarksPushedOnDelivery(t *testing.T) {
	svc, deps := newTestService()
	user := uuid.New()
	session := directSession("room-1", user, uuid.New())
	queued := &domain.Notification{NotificationID: uuid.New()}

	deps.notifications.On("Create", mock.Anything, mock.MatchedBy(func(c *domain.NotificationCreate) bool {
		return c.UserID == user &&
			c.Type == domain.NotificationTypeMissedCall &&
			c.RoomID != nil && *c.RoomID == "room-1"
	})).Return(queued, nil)
	deps.pusher.On("SendToUser", mock.Anything, mock.MatchedBy(func(n *push.Notification) bool {
		return n.Priority == "high" && n.Data["room_id"] == "room-1"
	}), user).Return(&push.SendResult{SuccessCount: 1}, nil)
	deps.notifications.On("MarkAsPushed", mock.Anything, queued.NotificationID).Return(nil)

	err := svc.queueAndPush(context.Background(), user, domain.NotificationTypeMissedCall,
		"Missed call", "You missed a video call", session)

	assert.NoError(t, err)
	deps.notifications.AssertExpectations(t)
}

func TestQueueAndPush_NoDevicesLeavesNotificationQueued(t *testing.T) {
	svc, deps := newTestService()
	user := uuid.New()
	session := directSession("room-1", user, uuid.New())
	queued := &domain.Notification{NotificationID: uuid.New()}

	deps.notifications.On("Create", mock.Anything, mock.Anything).Return(queued, nil)
	deps.pusher.On("SendToUser", mock.Anything, mock.Anything, user).
		Return(&push.SendResult{SuccessCount: 0, FailureCount: 2}, nil)

	err := svc.queueAndPush(context.Background(), user, domain.NotificationTypeIncomingCall,
		"Incoming call", "Incoming video call", session)

	assert.NoError(t, err)
	deps.notifications.AssertNotCalled(t, "MarkAsPushed", mock.Anything, mock.Anything)
}

func TestQueueAndPush_PushFailureIsSwallowed(t *testing.T) {
	svc, deps := newTestService()
	user := uuid.New()
	session := directSession("room-1", user, uuid.New())
	queued := &domain.Notification{NotificationID: uuid.New()}

	deps.notifications.On("Create", mock.Anything, mock.Anything).Return(queued, nil)
	deps.pusher.On("SendToUser", mock.Anything, mock.Anything, user).
		Return(nil, errors.New("provider unavailable"))

	err := svc.queueAndPush(context.Background(), user, domain.NotificationTypeIncomingCall,
		"Incoming call", "Incoming video call", session)

	// The notification stays queued for in-app delivery
	assert.NoError(t, err)
	deps.notifications.AssertNotCalled(t, "MarkAsPushed", mock.Anything, mock.Anything)
}

func TestQueueAndPush_RepeatPassDoesNotPushAgain(t *testing.T) {
	svc, deps := newTestService()
	user := uuid.New()
	session := directSession("room-1", user, uuid.New())

	// A nil notification means the unique (user, type, call) row already
	// exists from an earlier pass
	deps.notifications.On("Create", mock.Anything, mock.Anything).Return(nil, nil)

	err := svc.queueAndPush(context.Background(), user, domain.NotificationTypeMissedCall,
		"Missed call", "You missed a video call", session)

	assert.NoError(t, err)
	deps.pusher.AssertNotCalled(t, "SendToUser", mock.Anything, mock.Anything, mock.Anything)
	deps.notifications.AssertNotCalled(t, "MarkAsPushed", mock.Anything, mock.Anything)
}

func TestQueueAndPush_CreateFailurePropagates(t *testing.T) {
	svc, deps := newTestService()
	user := uuid.New()
	session := directSession("room-1", user, uuid.New())

	deps.notifications.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	err := svc.queueAndPush(context.Background(), user, domain.NotificationTypeMissedCall,
		"Missed call", "You missed a video call", session)

	assert.Error(t, err)
	deps.pusher.AssertNotCalled(t, "SendToUser", mock.Anything, mock.Anything, mock.Anything)
}

// notifyOffline

func TestNotifyOffline_SkipsConnectedParticipants(t *testing.T) {
	svc, deps := newTestService()
	online := uuid.New()
	offline := uuid.New()
	session := directSession("room-1", online, offline)
	queued := &domain.Notification{NotificationID: uuid.New()}

	deps.presence.On("IsOnline", mock.Anything, online).Return(true, nil)
	deps.presence.On("IsOnline", mock.Anything, offline).Return(false, nil)
	deps.notifications.On("Create", mock.Anything, mock.MatchedBy(func(c *domain.NotificationCreate) bool {
		return c.UserID == offline
	})).Return(queued, nil)
	deps.pusher.On("SendToUser", mock.Anything, mock.Anything, offline).
		Return(&push.SendResult{SuccessCount: 1}, nil)
	deps.notifications.On("MarkAsPushed", mock.Anything, queued.NotificationID).Return(nil)

	err := svc.notifyOffline(context.Background(), session, domain.NotificationTypeCallEnded,
		"Call ended", "Video call ended (3:42)")

	assert.NoError(t, err)
	deps.notifications.AssertNumberOfCalls(t, "Create", 1)
}

func TestNotifyOffline_PresenceErrorTreatedAsOffline(t *testing.T) {
	svc, deps := newTestService()
	user := uuid.New()
	session := directSession("room-1", user, uuid.New())
	session.Participants = session.Participants[:1]
	queued := &domain.Notification{NotificationID: uuid.New()}

	deps.presence.On("IsOnline", mock.Anything, user).Return(false, errors.New("redis timeout"))
	deps.notifications.On("Create", mock.Anything, mock.Anything).Return(queued, nil)
	deps.pusher.On("SendToUser", mock.Anything, mock.Anything, user).
		Return(&push.SendResult{SuccessCount: 1}, nil)
	deps.notifications.On("MarkAsPushed", mock.Anything, queued.NotificationID).Return(nil)

	err := svc.notifyOffline(context.Background(), session, domain.NotificationTypeCallEnded,
		"Call ended", "Video call ended (3:42)")

	assert.NoError(t, err)
	deps.notifications.AssertNumberOfCalls(t, "Create", 1)
}

// Dispatch entry points

func TestCallMissed_EmptyListIsNoOp(t *testing.T) {
	svc, deps := newTestService()
	session := directSession("room-1", uuid.New(), uuid.New())

	svc.CallMissed(session, nil)

	deps.notifications.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestIncomingCall_EmptyListIsNoOp(t *testing.T) {
	svc, deps := newTestService()
	session := directSession("room-1", uuid.New(), uuid.New())

	svc.IncomingCall(session, nil)

	deps.notifications.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// Formatting

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0:00", formatDuration(0))
	assert.Equal(t, "0:07", formatDuration(7))
	assert.Equal(t, "1:00", formatDuration(60))
	assert.Equal(t, "3:42", formatDuration(222))
	assert.Equal(t, "61:05", formatDuration(3665))
	assert.Equal(t, "0:00", formatDuration(-5))
}

func TestMediaLabels(t *testing.T) {
	assert.Equal(t, "Video", mediaLabel(domain.MediaKindVideo))
	assert.Equal(t, "Audio", mediaLabel(domain.MediaKindAudio))
	assert.Equal(t, "video", mediaLabelLower(domain.MediaKindVideo))
	assert.Equal(t, "audio", mediaLabelLower(domain.MediaKindAudio))
}
