package call

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatlink-backend/internal/domain"
	"chatlink-backend/pkg/constants"
	apperrors "chatlink-backend/pkg/errors"
	"chatlink-backend/pkg/logger"
	"chatlink-backend/pkg/metrics"
)

// CallRepository persists call sessions with optimistic concurrency
type CallRepository interface {
	Insert(ctx context.Context, session *domain.CallSession) error
	GetByRoomID(ctx context.Context, roomID string) (*domain.CallSession, error)
	Update(ctx context.Context, session *domain.CallSession) error
	FindActiveForUser(ctx context.Context, userID uuid.UUID) (*domain.CallSession, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.CallSession, error)
}

// Presence answers whether a user has a live connection
type Presence interface {
	IsOnline(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Roomcaster is the transport-side room abstraction: membership management
// plus event delivery to a room or to one user's live connection
type Roomcaster interface {
	Join(roomID string, userID uuid.UUID)
	Leave(roomID string, userID uuid.UUID)
	ToRoom(ctx context.Context, event *domain.Event) error
	ToUser(ctx context.Context, userID uuid.UUID, event *domain.Event) error
}

// SideEffects receives lifecycle transitions that produce chat messages and
// notifications. Implementations run asynchronously and never return errors;
// a failed side effect must not affect the lifecycle operation that fired it.
type SideEffects interface {
	CallStarted(session *domain.CallSession)
	CallEnded(session *domain.CallSession)
	CallMissed(session *domain.CallSession, missed []uuid.UUID)
	IncomingCall(session *domain.CallSession, targets []uuid.UUID)
}

// Service owns the call session state machine
type Service struct {
	repo     CallRepository
	presence Presence
	rooms    Roomcaster
	effects  SideEffects

	maxParticipants int
	ringTimeout     time.Duration // 0 disables pending-call expiry

	mu         sync.Mutex
	ringTimers map[string]*time.Timer
}

// Config carries the engine's tunables
type Config struct {
	MaxParticipants int
	RingTimeout     time.Duration
}

// NewService creates a new call lifecycle service
func NewService(repo CallRepository, presence Presence, rooms Roomcaster, effects SideEffects, cfg Config) *Service {
	if cfg.MaxParticipants <= 0 {
		cfg.MaxParticipants = constants.DefaultMaxCallParticipants
	}
	return &Service{
		repo:            repo,
		presence:        presence,
		rooms:           rooms,
		effects:         effects,
		maxParticipants: cfg.MaxParticipants,
		ringTimeout:     cfg.RingTimeout,
		ringTimers:      make(map[string]*time.Timer),
	}
}

// errNoChange commits nothing; mutate returns the loaded session as-is
var errNoChange = errors.New("session unchanged")

// mutate runs a read-modify-write cycle against one session, retrying on
// version conflict. fn mutates the freshly loaded session in place; a nil
// error from fn commits via conditional update.
func (s *Service) mutate(ctx context.Context, roomID string, fn func(*domain.CallSession) error) (*domain.CallSession, error) {
	for attempt := 0; attempt < constants.UpdateMaxRetries; attempt++ {
		session, err := s.repo.GetByRoomID(ctx, roomID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, apperrors.CallNotFoundError()
			}
			return nil, apperrors.DatabaseError(err)
		}

		if err := fn(session); err != nil {
			if errors.Is(err, errNoChange) {
				return session, nil
			}
			return nil, err
		}

		err = s.repo.Update(ctx, session)
		if err == nil {
			return session, nil
		}
		if errors.Is(err, domain.ErrVersionConflict) {
			metrics.CallUpdateConflictTotal.Inc()
			continue
		}
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperrors.CallNotFoundError()
		}
		return nil, apperrors.DatabaseError(err)
	}
	return nil, apperrors.ConflictError("session is being modified concurrently, try again")
}

// InitiateInput contains call initiation data
type InitiateInput struct {
	CallerID  uuid.UUID
	TargetIDs []uuid.UUID
	MediaKind domain.MediaKind
}

// InitiateOutput contains the created session and the targets that had no
// live connection at initiation time
type InitiateOutput struct {
	Session        *domain.CallSession
	OfflineTargets []uuid.UUID
}

// Initiate creates a new call session and rings every target
func (s *Service) Initiate(ctx context.Context, input *InitiateInput) (*InitiateOutput, error) {
	if len(input.TargetIDs) == 0 {
		return nil, apperrors.MissingFieldError("targetUserIds")
	}
	if !input.MediaKind.IsValid() {
		return nil, apperrors.InvalidInputError("mediaKind must be audio or video")
	}

	targets := make([]uuid.UUID, 0, len(input.TargetIDs))
	seen := make(map[uuid.UUID]struct{}, len(input.TargetIDs))
	for _, id := range input.TargetIDs {
		if id == input.CallerID {
			return nil, apperrors.ValidationError("cannot call yourself")
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		targets = append(targets, id)
	}

	if len(targets)+1 > s.maxParticipants {
		return nil, apperrors.ValidationError("participant limit exceeded")
	}

	if err := s.requireNotInCall(ctx, input.CallerID); err != nil {
		return nil, err
	}
	for _, target := range targets {
		if err := s.requireNotInCall(ctx, target); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	kind := domain.CallKindDirect
	if len(targets) > 1 {
		kind = domain.CallKindGroup
	}

	session := &domain.CallSession{
		Kind:        kind,
		MediaKind:   input.MediaKind,
		InitiatorID: input.CallerID,
		Status:      domain.CallStatusPending,
		StartedAt:   now,
		Participants: append(
			[]domain.Participant{{UserID: input.CallerID, Status: domain.ParticipantCalling}},
			ringingParticipants(targets)...,
		),
	}

	// Insert with a fresh room ID, regenerating on collision
	inserted := false
	for attempt := 0; attempt < constants.RoomIDMaxAttempts; attempt++ {
		session.RoomID = newRoomID()
		err := s.repo.Insert(ctx, session)
		if err == nil {
			inserted = true
			break
		}
		if errors.Is(err, domain.ErrRoomIDTaken) {
			metrics.CallRoomIDCollisionTotal.Inc()
			logger.Warn("Room ID collision, regenerating",
				zap.String("room_id", session.RoomID),
				zap.Int("attempt", attempt+1))
			continue
		}
		return nil, apperrors.DatabaseError(err)
	}
	if !inserted {
		return nil, apperrors.RoomExhaustedError()
	}

	metrics.CallInitiatedTotal.WithLabelValues(string(session.Kind), string(session.MediaKind)).Inc()
	logger.Info("Call initiated",
		zap.String("room_id", session.RoomID),
		zap.String("caller_id", input.CallerID.String()),
		zap.Int("target_count", len(targets)),
		zap.String("media_kind", string(session.MediaKind)))

	s.rooms.Join(session.RoomID, input.CallerID)

	// Invite live targets over the transport; offline targets get a queued
	// notification instead
	var offline []uuid.UUID
	for _, target := range targets {
		online, err := s.presence.IsOnline(ctx, target)
		if err != nil {
			logger.Warn("Presence lookup failed, treating target as offline",
				zap.String("user_id", target.String()),
				zap.Error(err))
			online = false
		}
		if !online {
			offline = append(offline, target)
			continue
		}
		event := domain.NewEvent(domain.EventIncomingCall, session.RoomID, input.CallerID, map[string]interface{}{
			"media_kind":   string(session.MediaKind),
			"kind":         string(session.Kind),
			"initiator_id": input.CallerID.String(),
		})
		if err := s.rooms.ToUser(ctx, target, event); err != nil {
			logger.Warn("Failed to deliver incoming-call event",
				zap.String("user_id", target.String()),
				zap.Error(err))
		}
	}
	if len(offline) > 0 {
		s.effects.IncomingCall(session, offline)
	}

	s.armRingTimer(session.RoomID)

	return &InitiateOutput{Session: session, OfflineTargets: offline}, nil
}

// Accept marks the acting user as joined and activates the session on the
// first join
func (s *Service) Accept(ctx context.Context, roomID string, userID uuid.UUID, offer map[string]interface{}) (*domain.CallSession, error) {
	firstJoin := false
	session, err := s.mutate(ctx, roomID, func(c *domain.CallSession) error {
		firstJoin = false
		p := c.Participant(userID)
		if p == nil {
			return apperrors.ForbiddenError("not a participant of this call")
		}
		if c.Status.IsTerminal() {
			return apperrors.ConflictError("call has already ended")
		}
		now := time.Now().UTC()
		p.Transition(domain.ParticipantJoined, now)
		if c.Status == domain.CallStatusPending {
			c.Status = domain.CallStatusActive
			t := now
			c.ConnectedAt = &t
			firstJoin = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.disarmRingTimer(roomID)
	s.rooms.Join(roomID, userID)

	if firstJoin {
		s.effects.CallStarted(session)
	}

	// Everyone in the room, including the new joiner, converges on the same
	// membership view
	data := map[string]interface{}{
		"user_id": userID.String(),
		"status":  string(session.Status),
	}
	if len(offer) > 0 {
		data["offer"] = offer
	}
	event := domain.NewEvent(domain.EventParticipantJoined, roomID, userID, data)
	if err := s.rooms.ToRoom(ctx, event); err != nil {
		logger.Warn("Failed to broadcast participant-joined",
			zap.String("room_id", roomID),
			zap.Error(err))
	}

	logger.Info("Participant joined call",
		zap.String("room_id", roomID),
		zap.String("user_id", userID.String()),
		zap.Bool("first_join", firstJoin))

	return session, nil
}

// Reject records the acting user's refusal; the session is cancelled once
// fewer than two live participants remain
func (s *Service) Reject(ctx context.Context, roomID string, userID uuid.UUID, reason string) error {
	cancelled := false
	unchanged := false
	session, err := s.mutate(ctx, roomID, func(c *domain.CallSession) error {
		cancelled, unchanged = false, false
		p := c.Participant(userID)
		if p == nil {
			return apperrors.ForbiddenError("not a participant of this call")
		}
		// A terminal session is immutable; a late reject is acked silently
		if c.Status.IsTerminal() {
			unchanged = true
			return errNoChange
		}
		now := time.Now().UTC()
		p.Transition(domain.ParticipantRejected, now)
		if c.Status == domain.CallStatusPending && c.LiveCount() <= 1 {
			cancelled = c.End(domain.CallStatusCancelled, now)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if unchanged {
		return nil
	}

	if cancelled {
		s.onTerminal(session)
	}

	// Missed-call pass runs on every reject; notification creation is
	// idempotent per (user, call)
	s.effects.CallMissed(session, s.missedTargets(session))

	event := domain.NewEvent(domain.EventParticipantRejected, roomID, userID, map[string]interface{}{
		"user_id":   userID.String(),
		"reason":    reason,
		"cancelled": cancelled,
	})
	if err := s.rooms.ToRoom(ctx, event); err != nil {
		logger.Warn("Failed to broadcast participant-rejected",
			zap.String("room_id", roomID),
			zap.Error(err))
	}
	// The initiator may not have joined the room yet
	if session.InitiatorID != userID {
		if err := s.rooms.ToUser(ctx, session.InitiatorID, event); err != nil {
			logger.Warn("Failed to deliver rejection to initiator",
				zap.String("room_id", roomID),
				zap.Error(err))
		}
	}

	logger.Info("Participant rejected call",
		zap.String("room_id", roomID),
		zap.String("user_id", userID.String()),
		zap.Bool("cancelled", cancelled))

	return nil
}

// Leave removes the acting user from the call. Returns whether the session is
// now ended; repeated leaves report the same result.
func (s *Service) Leave(ctx context.Context, roomID string, userID uuid.UUID) (bool, error) {
	ended := false
	cancelled := false
	unchanged := false
	session, err := s.mutate(ctx, roomID, func(c *domain.CallSession) error {
		ended, cancelled, unchanged = false, false, false
		p := c.Participant(userID)
		if p == nil {
			return apperrors.ForbiddenError("not a participant of this call")
		}
		// A terminal session is immutable; a repeated leave only re-reads
		// the outcome
		if c.Status.IsTerminal() {
			unchanged = true
			return errNoChange
		}
		now := time.Now().UTC()
		p.Transition(domain.ParticipantLeft, now)
		switch {
		case c.Status == domain.CallStatusActive && c.JoinedCount() == 0:
			ended = c.End(domain.CallStatusEnded, now)
		case c.Status == domain.CallStatusPending && c.LiveCount() <= 1:
			cancelled = c.End(domain.CallStatusCancelled, now)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	s.rooms.Leave(roomID, userID)

	// A repeated leave on an already-ended session must report callEnded
	// the same way the ending leave did
	callEnded := session.Status == domain.CallStatusEnded
	if unchanged {
		return callEnded, nil
	}

	if ended {
		s.onTerminal(session)
		s.effects.CallEnded(session)
	} else if cancelled {
		s.onTerminal(session)
	}

	event := domain.NewEvent(domain.EventParticipantLeft, roomID, userID, map[string]interface{}{
		"user_id":    userID.String(),
		"call_ended": callEnded,
	})
	if err := s.rooms.ToRoom(ctx, event); err != nil {
		logger.Warn("Failed to broadcast participant-left",
			zap.String("room_id", roomID),
			zap.Error(err))
	}

	logger.Info("Participant left call",
		zap.String("room_id", roomID),
		zap.String("user_id", userID.String()),
		zap.Bool("call_ended", callEnded))

	return callEnded, nil
}

// Cancel terminates a call on the initiator's request, regardless of state
func (s *Service) Cancel(ctx context.Context, roomID string, userID uuid.UUID) error {
	return s.cancel(ctx, roomID, userID, "cancelled")
}

func (s *Service) cancel(ctx context.Context, roomID string, userID uuid.UUID, reason string) error {
	endedNow := false
	session, err := s.mutate(ctx, roomID, func(c *domain.CallSession) error {
		endedNow = false
		if c.InitiatorID != userID {
			return apperrors.ForbiddenError("only the initiator can cancel the call")
		}
		now := time.Now().UTC()
		for i := range c.Participants {
			if c.Participants[i].Status == domain.ParticipantRinging {
				c.Participants[i].Transition(domain.ParticipantMissed, now)
			}
		}
		endedNow = c.End(domain.CallStatusCancelled, now)
		return nil
	})
	if err != nil {
		return err
	}

	if endedNow {
		s.onTerminal(session)
	}
	s.effects.CallMissed(session, s.missedTargets(session))

	event := domain.NewEvent(domain.EventCallCancelled, roomID, userID, map[string]interface{}{
		"reason": reason,
	})
	if err := s.rooms.ToRoom(ctx, event); err != nil {
		logger.Warn("Failed to broadcast cancellation",
			zap.String("room_id", roomID),
			zap.Error(err))
	}
	// Participants who never joined the room still need to hear about it
	for _, id := range session.ParticipantIDs() {
		if id == userID {
			continue
		}
		if err := s.rooms.ToUser(ctx, id, event); err != nil {
			logger.Warn("Failed to deliver cancellation",
				zap.String("user_id", id.String()),
				zap.Error(err))
		}
	}

	logger.Info("Call cancelled",
		zap.String("room_id", roomID),
		zap.String("initiator_id", userID.String()),
		zap.String("reason", reason))

	return nil
}

// AddParticipant invites one more user into an existing call. A departed
// participant is re-invited in place rather than duplicated.
func (s *Service) AddParticipant(ctx context.Context, roomID string, userID, targetID uuid.UUID) error {
	active, err := s.repo.FindActiveForUser(ctx, targetID)
	if err != nil {
		return apperrors.DatabaseError(err)
	}
	if active != nil {
		if active.RoomID == roomID {
			return apperrors.AlreadyInCallError("user is already in the call")
		}
		return apperrors.AlreadyInCallError("user is already in another call")
	}

	promoted := false
	session, err := s.mutate(ctx, roomID, func(c *domain.CallSession) error {
		promoted = false
		if c.Participant(userID) == nil {
			return apperrors.ForbiddenError("not a participant of this call")
		}
		if c.Status.IsTerminal() {
			return apperrors.ConflictError("call has already ended")
		}
		if p := c.Participant(targetID); p != nil {
			if p.Status.IsLive() {
				// The active-call scan may miss a commit that just landed
				return apperrors.AlreadyInCallError("user is already in the call")
			}
			if c.LiveCount()+1 > s.maxParticipants {
				return apperrors.ValidationError("participant limit exceeded")
			}
			p.Reinvite()
		} else {
			if c.LiveCount()+1 > s.maxParticipants {
				return apperrors.ValidationError("participant limit exceeded")
			}
			c.Participants = append(c.Participants, domain.Participant{
				UserID: targetID,
				Status: domain.ParticipantRinging,
			})
		}
		if c.Kind == domain.CallKindDirect && c.LiveCount() > 2 {
			c.Kind = domain.CallKindGroup
			promoted = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	if promoted {
		event := domain.NewEvent(domain.EventCallTypeChanged, roomID, userID, map[string]interface{}{
			"kind": string(domain.CallKindGroup),
		})
		if err := s.rooms.ToRoom(ctx, event); err != nil {
			logger.Warn("Failed to broadcast type-changed",
				zap.String("room_id", roomID),
				zap.Error(err))
		}
	}

	online, err := s.presence.IsOnline(ctx, targetID)
	if err != nil {
		logger.Warn("Presence lookup failed, treating target as offline",
			zap.String("user_id", targetID.String()),
			zap.Error(err))
		online = false
	}
	if online {
		event := domain.NewEvent(domain.EventIncomingCall, roomID, session.InitiatorID, map[string]interface{}{
			"media_kind":   string(session.MediaKind),
			"kind":         string(session.Kind),
			"initiator_id": session.InitiatorID.String(),
			"invited_by":   userID.String(),
		})
		if err := s.rooms.ToUser(ctx, targetID, event); err != nil {
			logger.Warn("Failed to deliver incoming-call event",
				zap.String("user_id", targetID.String()),
				zap.Error(err))
		}
	} else {
		s.effects.IncomingCall(session, []uuid.UUID{targetID})
	}

	logger.Info("Participant added to call",
		zap.String("room_id", roomID),
		zap.String("target_id", targetID.String()),
		zap.Bool("promoted_to_group", promoted))

	return nil
}

// UpgradeMediaKind switches the call between audio and video
func (s *Service) UpgradeMediaKind(ctx context.Context, roomID string, userID uuid.UUID, newKind domain.MediaKind) (old domain.MediaKind, err error) {
	if !newKind.IsValid() {
		return "", apperrors.InvalidInputError("mediaKind must be audio or video")
	}

	_, err = s.mutate(ctx, roomID, func(c *domain.CallSession) error {
		p := c.Participant(userID)
		if p == nil || (p.Status != domain.ParticipantCalling && p.Status != domain.ParticipantJoined) {
			return apperrors.ForbiddenError("not an active participant of this call")
		}
		if c.Status.IsTerminal() {
			return apperrors.ConflictError("call has already ended")
		}
		old = c.MediaKind
		c.MediaKind = newKind
		return nil
	})
	if err != nil {
		return "", err
	}

	event := domain.NewEvent(domain.EventMediaKindUpgraded, roomID, userID, map[string]interface{}{
		"old": string(old),
		"new": string(newKind),
	})
	if brErr := s.rooms.ToRoom(ctx, event); brErr != nil {
		logger.Warn("Failed to broadcast media-kind upgrade",
			zap.String("room_id", roomID),
			zap.Error(brErr))
	}

	logger.Info("Call media kind upgraded",
		zap.String("room_id", roomID),
		zap.String("old", string(old)),
		zap.String("new", string(newKind)))

	return old, nil
}

// HandleDisconnect applies leave semantics for a user whose connection
// dropped. Safe to call for users with no active call.
func (s *Service) HandleDisconnect(ctx context.Context, userID uuid.UUID) {
	session, err := s.repo.FindActiveForUser(ctx, userID)
	if err != nil {
		logger.Error("Active-call lookup failed on disconnect",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return
	}
	if session == nil {
		return
	}

	if _, err := s.Leave(ctx, session.RoomID, userID); err != nil {
		logger.Warn("Implicit leave on disconnect failed",
			zap.String("room_id", session.RoomID),
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}
}

// GetByRoomID returns one session, restricted to its declared participants
func (s *Service) GetByRoomID(ctx context.Context, roomID string, userID uuid.UUID) (*domain.CallSession, error) {
	session, err := s.repo.GetByRoomID(ctx, roomID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperrors.CallNotFoundError()
		}
		return nil, apperrors.DatabaseError(err)
	}
	if session.Participant(userID) == nil {
		return nil, apperrors.ForbiddenError("not a participant of this call")
	}
	return session, nil
}

// ListForUser returns the user's call history, newest first
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.CallSession, error) {
	if limit <= 0 {
		limit = constants.DefaultPageSize
	}
	if limit > constants.MaxPageSize {
		limit = constants.MaxPageSize
	}
	sessions, err := s.repo.ListForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return sessions, nil
}

// requireNotInCall rejects users who already have a live session
func (s *Service) requireNotInCall(ctx context.Context, userID uuid.UUID) error {
	active, err := s.repo.FindActiveForUser(ctx, userID)
	if err != nil {
		return apperrors.DatabaseError(err)
	}
	if active != nil {
		return apperrors.AlreadyInCallError("user is already in another call")
	}
	return nil
}

// missedTargets lists participants who never reached joined
func (s *Service) missedTargets(session *domain.CallSession) []uuid.UUID {
	var missed []uuid.UUID
	for i := range session.Participants {
		p := &session.Participants[i]
		if p.UserID == session.InitiatorID {
			continue
		}
		if p.JoinedAt == nil {
			missed = append(missed, p.UserID)
		}
	}
	return missed
}

// onTerminal records metrics and disarms the ring timer once a session
// reaches a terminal state
func (s *Service) onTerminal(session *domain.CallSession) {
	s.disarmRingTimer(session.RoomID)
	metrics.CallEndedTotal.WithLabelValues(string(session.Status)).Inc()
	if session.ConnectedAt != nil {
		metrics.CallDurationSeconds.Observe(float64(session.Duration))
	}
}

// armRingTimer schedules pending-call expiry. A call still pending when the
// timer fires is cancelled through the initiator's cancel path.
func (s *Service) armRingTimer(roomID string) {
	if s.ringTimeout <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ringTimers[roomID] = time.AfterFunc(s.ringTimeout, func() {
		s.expirePending(roomID)
	})
}

func (s *Service) disarmRingTimer(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.ringTimers[roomID]; ok {
		timer.Stop()
		delete(s.ringTimers, roomID)
	}
}

func (s *Service) expirePending(roomID string) {
	s.mu.Lock()
	delete(s.ringTimers, roomID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultTimeout)
	defer cancel()

	session, err := s.repo.GetByRoomID(ctx, roomID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logger.Error("Ring-timeout lookup failed",
				zap.String("room_id", roomID),
				zap.Error(err))
		}
		return
	}
	if session.Status != domain.CallStatusPending {
		return
	}

	logger.Info("Pending call timed out",
		zap.String("room_id", roomID))

	if err := s.cancel(ctx, roomID, session.InitiatorID, "timeout"); err != nil {
		logger.Warn("Ring-timeout cancellation failed",
			zap.String("room_id", roomID),
			zap.Error(err))
	}
}

func ringingParticipants(targets []uuid.UUID) []domain.Participant {
	out := make([]domain.Participant, 0, len(targets))
	for _, id := range targets {
		out = append(out, domain.Participant{UserID: id, Status: domain.ParticipantRinging})
	}
	return out
}
