package ws

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatlink-backend/internal/domain"
	"chatlink-backend/internal/service/call"
	apperrors "chatlink-backend/pkg/errors"
	"chatlink-backend/pkg/logger"
	"chatlink-backend/pkg/metrics"
)

// Inbound frame types
const (
	FrameInitiate         = "initiate"
	FrameAccept           = "accept"
	FrameReject           = "reject"
	FrameLeave            = "leave"
	FrameCancel           = "cancel"
	FrameOffer            = "offer"
	FrameAnswer           = "answer"
	FrameICECandidate     = "ice-candidate"
	FrameToggleAudio      = "toggle-audio"
	FrameToggleVideo      = "toggle-video"
	FrameScreenShare      = "screen-share"
	FrameAddParticipant   = "add-participant"
	FrameUpgradeMediaKind = "upgrade-media-kind"
)

// Engine is the slice of the call lifecycle service the handler depends on
type Engine interface {
	Initiate(ctx context.Context, input *call.InitiateInput) (*call.InitiateOutput, error)
	Accept(ctx context.Context, roomID string, userID uuid.UUID, offer map[string]interface{}) (*domain.CallSession, error)
	Reject(ctx context.Context, roomID string, userID uuid.UUID, reason string) error
	Leave(ctx context.Context, roomID string, userID uuid.UUID) (bool, error)
	Cancel(ctx context.Context, roomID string, userID uuid.UUID) error
	AddParticipant(ctx context.Context, roomID string, userID, targetID uuid.UUID) error
	UpgradeMediaKind(ctx context.Context, roomID string, userID uuid.UUID, newKind domain.MediaKind) (domain.MediaKind, error)
	HandleDisconnect(ctx context.Context, userID uuid.UUID)
}

// CallHandler dispatches call frames to the lifecycle engine and relays
// signaling payloads between connections
type CallHandler struct {
	engine Engine
	rooms  call.Roomcaster
}

// NewCallHandler creates a new call frame handler
func NewCallHandler(engine Engine, rooms call.Roomcaster) *CallHandler {
	return &CallHandler{
		engine: engine,
		rooms:  rooms,
	}
}

// ack is the uniform reply to every inbound frame
type ack struct {
	Type    string                 `json:"type"`
	AckID   string                 `json:"ack_id,omitempty"`
	Success bool                   `json:"success"`
	Error   string                 `json:"error,omitempty"`
	Code    string                 `json:"code,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

func (h *CallHandler) reply(client *Client, ackID string, data map[string]interface{}) {
	h.send(client, &ack{Type: "ack", AckID: ackID, Success: true, Data: data})
}

func (h *CallHandler) replyErr(client *Client, ackID string, err error) {
	appErr := apperrors.GetAppError(err)
	h.send(client, &ack{
		Type:    "ack",
		AckID:   ackID,
		Success: false,
		Error:   appErr.Message,
		Code:    string(appErr.Code),
	})
}

func (h *CallHandler) send(client *Client, a *ack) {
	payload, err := json.Marshal(a)
	if err != nil {
		logger.Error("Failed to marshal ack", zap.Error(err))
		return
	}
	client.enqueue(payload)
}

// HandleFrame processes one inbound frame. Panics never cross the socket
// boundary; they turn into error acks.
func (h *CallHandler) HandleFrame(ctx context.Context, client *Client, frame *Frame) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Frame handler panicked",
				zap.String("frame_type", frame.Type),
				zap.String("user_id", client.UserID().String()),
				zap.Any("panic", r))
			h.replyErr(client, frame.AckID, apperrors.InternalError("internal error"))
		}
	}()

	switch frame.Type {
	case FrameInitiate:
		h.handleInitiate(ctx, client, frame)
	case FrameAccept:
		h.handleAccept(ctx, client, frame)
	case FrameReject:
		h.handleReject(ctx, client, frame)
	case FrameLeave:
		h.handleLeave(ctx, client, frame)
	case FrameCancel:
		h.handleCancel(ctx, client, frame)
	case FrameOffer, FrameAnswer:
		h.handleTargetedSignal(ctx, client, frame)
	case FrameICECandidate:
		h.handleICECandidate(ctx, client, frame)
	case FrameToggleAudio, FrameToggleVideo, FrameScreenShare:
		h.handleMediaToggle(ctx, client, frame)
	case FrameAddParticipant:
		h.handleAddParticipant(ctx, client, frame)
	case FrameUpgradeMediaKind:
		h.handleUpgradeMediaKind(ctx, client, frame)
	default:
		h.replyErr(client, frame.AckID, apperrors.InvalidInputError("unknown frame type"))
	}
}

// HandleDisconnect applies implicit-leave semantics for a dropped connection
func (h *CallHandler) HandleDisconnect(ctx context.Context, userID uuid.UUID) {
	h.engine.HandleDisconnect(ctx, userID)
}

func (h *CallHandler) handleInitiate(ctx context.Context, client *Client, frame *Frame) {
	var payload struct {
		TargetUserIDs []uuid.UUID `json:"target_user_ids"`
		MediaKind     string      `json:"media_kind"`
	}
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		h.replyErr(client, frame.AckID, apperrors.InvalidInputError("malformed payload"))
		return
	}

	out, err := h.engine.Initiate(ctx, &call.InitiateInput{
		CallerID:  client.UserID(),
		TargetIDs: payload.TargetUserIDs,
		MediaKind: domain.MediaKind(payload.MediaKind),
	})
	if err != nil {
		h.replyErr(client, frame.AckID, err)
		return
	}

	offline := make([]string, 0, len(out.OfflineTargets))
	for _, id := range out.OfflineTargets {
		offline = append(offline, id.String())
	}
	h.reply(client, frame.AckID, map[string]interface{}{
		"call":            out.Session,
		"room_id":         out.Session.RoomID,
		"offline_targets": offline,
	})
}

func (h *CallHandler) handleAccept(ctx context.Context, client *Client, frame *Frame) {
	var payload struct {
		RoomID string                 `json:"room_id"`
		Offer  map[string]interface{} `json:"offer"`
	}
	if err := json.Unmarshal(frame.Payload, &payload); err != nil || payload.RoomID == "" {
		h.replyErr(client, frame.AckID, apperrors.MissingFieldError("room_id"))
		return
	}

	session, err := h.engine.Accept(ctx, payload.RoomID, client.UserID(), payload.Offer)
	if err != nil {
		h.replyErr(client, frame.AckID, err)
		return
	}
	h.reply(client, frame.AckID, map[string]interface{}{"call": session})
}

func (h *CallHandler) handleReject(ctx context.Context, client *Client, frame *Frame) {
	var payload struct {
		RoomID string `json:"room_id"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(frame.Payload, &payload); err != nil || payload.RoomID == "" {
		h.replyErr(client, frame.AckID, apperrors.MissingFieldError("room_id"))
		return
	}

	if err := h.engine.Reject(ctx, payload.RoomID, client.UserID(), payload.Reason); err != nil {
		h.replyErr(client, frame.AckID, err)
		return
	}
	h.reply(client, frame.AckID, nil)
}

func (h *CallHandler) handleLeave(ctx context.Context, client *Client, frame *Frame) {
	var payload struct {
		RoomID string `json:"room_id"`
	}
	if err := json.Unmarshal(frame.Payload, &payload); err != nil || payload.RoomID == "" {
		h.replyErr(client, frame.AckID, apperrors.MissingFieldError("room_id"))
		return
	}

	callEnded, err := h.engine.Leave(ctx, payload.RoomID, client.UserID())
	if err != nil {
		h.replyErr(client, frame.AckID, err)
		return
	}
	h.reply(client, frame.AckID, map[string]interface{}{"call_ended": callEnded})
}

func (h *CallHandler) handleCancel(ctx context.Context, client *Client, frame *Frame) {
	var payload struct {
		RoomID string `json:"room_id"`
	}
	if err := json.Unmarshal(frame.Payload, &payload); err != nil || payload.RoomID == "" {
		h.replyErr(client, frame.AckID, apperrors.MissingFieldError("room_id"))
		return
	}

	if err := h.engine.Cancel(ctx, payload.RoomID, client.UserID()); err != nil {
		h.replyErr(client, frame.AckID, err)
		return
	}
	h.reply(client, frame.AckID, nil)
}

// handleTargetedSignal relays an offer or answer to exactly one target's
// live connection. A missing connection is reported as success; the sender
// cannot distinguish delivery from a target mid-reconnect.
func (h *CallHandler) handleTargetedSignal(ctx context.Context, client *Client, frame *Frame) {
	var payload struct {
		RoomID       string                 `json:"room_id"`
		TargetUserID uuid.UUID              `json:"target_user_id"`
		Payload      map[string]interface{} `json:"payload"`
	}
	if err := json.Unmarshal(frame.Payload, &payload); err != nil || payload.RoomID == "" {
		h.replyErr(client, frame.AckID, apperrors.MissingFieldError("room_id"))
		return
	}
	if payload.TargetUserID == uuid.Nil {
		h.replyErr(client, frame.AckID, apperrors.MissingFieldError("target_user_id"))
		return
	}

	event := domain.NewEvent(frame.Type, payload.RoomID, client.UserID(), map[string]interface{}{
		"payload": payload.Payload,
	})
	if err := h.rooms.ToUser(ctx, payload.TargetUserID, event); err != nil {
		logger.Warn("Targeted signal delivery failed",
			zap.String("type", frame.Type),
			zap.String("room_id", payload.RoomID),
			zap.Error(err))
	}

	metrics.SignalRelayedTotal.WithLabelValues(frame.Type, "targeted").Inc()
	h.reply(client, frame.AckID, nil)
}

// handleICECandidate relays an ICE candidate to its target, or to the whole
// room minus the sender when no target is named
func (h *CallHandler) handleICECandidate(ctx context.Context, client *Client, frame *Frame) {
	var payload struct {
		RoomID       string                 `json:"room_id"`
		TargetUserID uuid.UUID              `json:"target_user_id"`
		Candidate    map[string]interface{} `json:"candidate"`
	}
	if err := json.Unmarshal(frame.Payload, &payload); err != nil || payload.RoomID == "" {
		h.replyErr(client, frame.AckID, apperrors.MissingFieldError("room_id"))
		return
	}
	if payload.Candidate == nil {
		h.replyErr(client, frame.AckID, apperrors.MissingFieldError("candidate"))
		return
	}

	event := domain.NewEvent(domain.EventICECandidate, payload.RoomID, client.UserID(), map[string]interface{}{
		"candidate": payload.Candidate,
	})

	if payload.TargetUserID != uuid.Nil {
		if err := h.rooms.ToUser(ctx, payload.TargetUserID, event); err != nil {
			logger.Warn("ICE candidate delivery failed",
				zap.String("room_id", payload.RoomID),
				zap.Error(err))
		}
		metrics.SignalRelayedTotal.WithLabelValues(domain.EventICECandidate, "targeted").Inc()
	} else {
		event.ExcludeSender = true
		if err := h.rooms.ToRoom(ctx, event); err != nil {
			logger.Warn("ICE candidate broadcast failed",
				zap.String("room_id", payload.RoomID),
				zap.Error(err))
		}
		metrics.SignalRelayedTotal.WithLabelValues(domain.EventICECandidate, "broadcast").Inc()
	}

	h.reply(client, frame.AckID, nil)
}

// handleMediaToggle broadcasts a mute/camera/screen-share state change to
// the room, excluding the sender
func (h *CallHandler) handleMediaToggle(ctx context.Context, client *Client, frame *Frame) {
	var payload struct {
		RoomID string `json:"room_id"`
		Flag   bool   `json:"flag"`
	}
	if err := json.Unmarshal(frame.Payload, &payload); err != nil || payload.RoomID == "" {
		h.replyErr(client, frame.AckID, apperrors.MissingFieldError("room_id"))
		return
	}

	event := domain.NewEvent(frame.Type, payload.RoomID, client.UserID(), map[string]interface{}{
		"user_id": client.UserID().String(),
		"flag":    payload.Flag,
	})
	event.ExcludeSender = true
	if err := h.rooms.ToRoom(ctx, event); err != nil {
		logger.Warn("Media toggle broadcast failed",
			zap.String("type", frame.Type),
			zap.String("room_id", payload.RoomID),
			zap.Error(err))
	}

	metrics.SignalRelayedTotal.WithLabelValues(frame.Type, "broadcast").Inc()
	h.reply(client, frame.AckID, nil)
}

func (h *CallHandler) handleAddParticipant(ctx context.Context, client *Client, frame *Frame) {
	var payload struct {
		RoomID string    `json:"room_id"`
		UserID uuid.UUID `json:"user_id"`
	}
	if err := json.Unmarshal(frame.Payload, &payload); err != nil || payload.RoomID == "" {
		h.replyErr(client, frame.AckID, apperrors.MissingFieldError("room_id"))
		return
	}
	if payload.UserID == uuid.Nil {
		h.replyErr(client, frame.AckID, apperrors.MissingFieldError("user_id"))
		return
	}

	if err := h.engine.AddParticipant(ctx, payload.RoomID, client.UserID(), payload.UserID); err != nil {
		h.replyErr(client, frame.AckID, err)
		return
	}
	h.reply(client, frame.AckID, nil)
}

func (h *CallHandler) handleUpgradeMediaKind(ctx context.Context, client *Client, frame *Frame) {
	var payload struct {
		RoomID  string `json:"room_id"`
		NewKind string `json:"new_kind"`
	}
	if err := json.Unmarshal(frame.Payload, &payload); err != nil || payload.RoomID == "" {
		h.replyErr(client, frame.AckID, apperrors.MissingFieldError("room_id"))
		return
	}

	old, err := h.engine.UpgradeMediaKind(ctx, payload.RoomID, client.UserID(), domain.MediaKind(payload.NewKind))
	if err != nil {
		h.replyErr(client, frame.AckID, err)
		return
	}
	h.reply(client, frame.AckID, map[string]interface{}{
		"old": string(old),
		"new": payload.NewKind,
	})
}
