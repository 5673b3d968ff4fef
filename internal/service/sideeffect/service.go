package sideeffect

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatlink-backend/internal/domain"
	"chatlink-backend/pkg/constants"
	"chatlink-backend/pkg/logger"
	"chatlink-backend/pkg/metrics"
	"chatlink-backend/pkg/push"
)

// ConversationRepository resolves and creates backing chat threads
type ConversationRepository interface {
	Create(ctx context.Context, conversation *domain.Conversation, memberIDs []uuid.UUID) error
	FindByExactMembers(ctx context.Context, convType string, memberIDs []uuid.UUID) (*domain.Conversation, error)
}

// MessageRepository appends system messages to chat history
type MessageRepository interface {
	Save(message *domain.Message) error
}

// NotificationRepository queues notifications for offline and missed users.
// Create reports a deduplicated insert by returning a nil notification.
type NotificationRepository interface {
	Create(ctx context.Context, create *domain.NotificationCreate) (*domain.Notification, error)
	MarkAsPushed(ctx context.Context, notificationID uuid.UUID) error
}

// LinkedChatWriter records the lazily resolved conversation on the session
type LinkedChatWriter interface {
	SetLinkedChat(ctx context.Context, roomID string, conversationID uuid.UUID) error
}

// Presence answers whether a user has a live connection
type Presence interface {
	IsOnline(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Pusher delivers a notification to a user's registered devices
type Pusher interface {
	SendToUser(ctx context.Context, notification *push.Notification, userID uuid.UUID) (*push.SendResult, error)
}

// Service synthesizes chat messages and notifications from call lifecycle
// transitions. Every entry point returns immediately and runs in its own
// goroutine with its own timeout and error boundary; failures are logged
// and never reach the lifecycle caller.
type Service struct {
	conversations ConversationRepository
	messages      MessageRepository
	notifications NotificationRepository
	sessions      LinkedChatWriter
	presence      Presence
	pusher        Pusher
}

// NewService creates a new side-effect service
func NewService(
	conversations ConversationRepository,
	messages MessageRepository,
	notifications NotificationRepository,
	sessions LinkedChatWriter,
	presence Presence,
	pusher Pusher,
) *Service {
	return &Service{
		conversations: conversations,
		messages:      messages,
		notifications: notifications,
		sessions:      sessions,
		presence:      presence,
		pusher:        pusher,
	}
}

// dispatch runs fn asynchronously inside the side-effect failure domain
func (s *Service) dispatch(effect string, fn func(ctx context.Context) error) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				metrics.SideEffectFailureTotal.WithLabelValues(effect).Inc()
				logger.Error("Side effect panicked",
					zap.String("effect", effect),
					zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), constants.SideEffectTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			metrics.SideEffectFailureTotal.WithLabelValues(effect).Inc()
			logger.Error("Side effect failed",
				zap.String("effect", effect),
				zap.Error(err))
		}
	}()
}

// CallStarted records a system message in the linked chat thread and notifies
// offline participants that the call is running
func (s *Service) CallStarted(session *domain.CallSession) {
	snapshot := *session
	s.dispatch("call_started", func(ctx context.Context) error {
		conversation, err := s.resolveConversation(ctx, &snapshot)
		if err != nil {
			return err
		}

		content := fmt.Sprintf("%s call started", mediaLabel(snapshot.MediaKind))
		if err := s.appendSystemMessage(conversation.ConversationID, &snapshot, content); err != nil {
			return err
		}

		return s.notifyOffline(ctx, &snapshot, domain.NotificationTypeIncomingCall,
			"Ongoing call", content)
	})
}

// CallEnded records the call summary message and notifies offline participants
func (s *Service) CallEnded(session *domain.CallSession) {
	snapshot := *session
	s.dispatch("call_ended", func(ctx context.Context) error {
		conversation, err := s.resolveConversation(ctx, &snapshot)
		if err != nil {
			return err
		}

		content := fmt.Sprintf("%s call ended (%s)",
			mediaLabel(snapshot.MediaKind), formatDuration(snapshot.Duration))
		if err := s.appendSystemMessage(conversation.ConversationID, &snapshot, content); err != nil {
			return err
		}

		return s.notifyOffline(ctx, &snapshot, domain.NotificationTypeCallEnded,
			"Call ended", content)
	})
}

// CallMissed queues a missed-call notification for every listed user,
// regardless of presence. Repeat passes for the same call insert nothing.
func (s *Service) CallMissed(session *domain.CallSession, missed []uuid.UUID) {
	if len(missed) == 0 {
		return
	}
	snapshot := *session
	targets := append([]uuid.UUID(nil), missed...)
	s.dispatch("call_missed", func(ctx context.Context) error {
		body := fmt.Sprintf("You missed a %s call", mediaLabelLower(snapshot.MediaKind))
		var firstErr error
		for _, userID := range targets {
			if err := s.queueAndPush(ctx, userID, domain.NotificationTypeMissedCall,
				"Missed call", body, &snapshot); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	})
}

// IncomingCall queues an incoming-call notification for targets that had no
// live connection when the invitation went out
func (s *Service) IncomingCall(session *domain.CallSession, targets []uuid.UUID) {
	if len(targets) == 0 {
		return
	}
	snapshot := *session
	offline := append([]uuid.UUID(nil), targets...)
	s.dispatch("incoming_call", func(ctx context.Context) error {
		body := fmt.Sprintf("Incoming %s call", mediaLabelLower(snapshot.MediaKind))
		var firstErr error
		for _, userID := range offline {
			if err := s.queueAndPush(ctx, userID, domain.NotificationTypeIncomingCall,
				"Incoming call", body, &snapshot); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	})
}

// resolveConversation finds the chat thread whose member set exactly matches
// the session's participants, creating it if absent, and links it to the
// session. Single-thread-per-dyad: a direct call always lands in the one
// direct conversation between the two users.
func (s *Service) resolveConversation(ctx context.Context, session *domain.CallSession) (*domain.Conversation, error) {
	memberIDs := session.ParticipantIDs()
	convType := "direct"
	if session.Kind == domain.CallKindGroup {
		convType = "group"
	}

	conversation, err := s.conversations.FindByExactMembers(ctx, convType, memberIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to look up conversation: %w", err)
	}

	if conversation == nil {
		conversation = &domain.Conversation{
			ConversationID: uuid.New(),
			Type:           convType,
			CreatedBy:      session.InitiatorID,
			CreatedAt:      time.Now(),
		}
		if err := s.conversations.Create(ctx, conversation, memberIDs); err != nil {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		logger.Info("Created conversation for call",
			zap.String("room_id", session.RoomID),
			zap.String("conversation_id", conversation.ConversationID.String()),
			zap.String("type", convType))
	}

	// Best effort: the link is a convenience pointer, not part of call state
	if err := s.sessions.SetLinkedChat(ctx, session.RoomID, conversation.ConversationID); err != nil {
		logger.Warn("Failed to link conversation to call",
			zap.String("room_id", session.RoomID),
			zap.Error(err))
	}

	return conversation, nil
}

func (s *Service) appendSystemMessage(conversationID uuid.UUID, session *domain.CallSession, content string) error {
	now := time.Now()
	message := &domain.Message{
		MessageID:      uuid.New(),
		ConversationID: conversationID,
		Bucket:         domain.CalculateBucket(now),
		SenderID:       uuid.Nil,
		Content:        content,
		MessageType:    domain.MessageTypeSystem,
		Metadata:       map[string]string{"room_id": session.RoomID},
		CreatedAt:      now,
	}
	if err := s.messages.Save(message); err != nil {
		return fmt.Errorf("failed to save system message: %w", err)
	}
	return nil
}

// notifyOffline queues a notification for every participant without a live
// connection
func (s *Service) notifyOffline(ctx context.Context, session *domain.CallSession, notifType, title, body string) error {
	var firstErr error
	for _, userID := range session.ParticipantIDs() {
		online, err := s.presence.IsOnline(ctx, userID)
		if err != nil {
			logger.Warn("Presence lookup failed during side effect",
				zap.String("user_id", userID.String()),
				zap.Error(err))
			online = false
		}
		if online {
			continue
		}
		if err := s.queueAndPush(ctx, userID, notifType, title, body, session); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Service) queueAndPush(ctx context.Context, userID uuid.UUID, notifType, title, body string, session *domain.CallSession) error {
	roomID := session.RoomID
	notification, err := s.notifications.Create(ctx, &domain.NotificationCreate{
		UserID: userID,
		Type:   notifType,
		Title:  title,
		Body:   body,
		RoomID: &roomID,
		Data: map[string]interface{}{
			"room_id":    session.RoomID,
			"media_kind": string(session.MediaKind),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to queue notification: %w", err)
	}
	// Deduplicated by the (user, type, call) constraint: the first pass
	// already pushed, so a repeat pass is a full no-op
	if notification == nil {
		return nil
	}

	result, err := s.pusher.SendToUser(ctx, &push.Notification{
		Title:    title,
		Body:     body,
		Priority: "high",
		Sound:    "default",
		Data: map[string]string{
			"type":    notifType,
			"room_id": session.RoomID,
		},
	}, userID)
	if err != nil {
		logger.Warn("Push delivery failed",
			zap.String("user_id", userID.String()),
			zap.String("type", notifType),
			zap.Error(err))
		return nil
	}

	if result.SuccessCount > 0 {
		if err := s.notifications.MarkAsPushed(ctx, notification.NotificationID); err != nil {
			logger.Warn("Failed to mark notification as pushed",
				zap.String("notification_id", notification.NotificationID.String()),
				zap.Error(err))
		}
	}
	return nil
}

func mediaLabel(kind domain.MediaKind) string {
	if kind == domain.MediaKindVideo {
		return "Video"
	}
	return "Audio"
}

func mediaLabelLower(kind domain.MediaKind) string {
	if kind == domain.MediaKindVideo {
		return "video"
	}
	return "audio"
}

// formatDuration renders seconds as m:ss, e.g. 222 -> "3:42"
func formatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
