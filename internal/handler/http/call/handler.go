package call

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	callservice "chatlink-backend/internal/service/call"
	"chatlink-backend/pkg/push"
	"chatlink-backend/pkg/response"
)

// Handler handles call HTTP requests
type Handler struct {
	callService *callservice.Service
	pushService *push.Service
}

// NewHandler creates a new call handler
func NewHandler(callService *callservice.Service, pushService *push.Service) *Handler {
	return &Handler{
		callService: callService,
		pushService: pushService,
	}
}

// ListCalls returns the acting user's call history
// GET /api/v1/calls
func (h *Handler) ListCalls(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	sessions, err := h.callService.ListForUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"calls":  sessions,
		"limit":  limit,
		"offset": offset,
	})
}

// GetCall returns one call session, restricted to its participants
// GET /api/v1/calls/:roomId
func (h *Handler) GetCall(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	roomID := c.Param("roomId")
	if roomID == "" {
		response.ValidationError(c, "roomId required")
		return
	}

	session, err := h.callService.GetByRoomID(c.Request.Context(), roomID, userID)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, session)
}

// RegisterTokenRequest represents push token registration
type RegisterTokenRequest struct {
	Token    string `json:"token" binding:"required"`
	Type     string `json:"type" binding:"required,oneof=fcm apns"`
	DeviceID string `json:"device_id"`
	Platform string `json:"platform"`
}

// RegisterPushToken registers a device token for call notifications
// POST /api/v1/push/tokens
func (h *Handler) RegisterPushToken(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	var req RegisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	token := &push.Token{
		ID:       uuid.New(),
		UserID:   userID,
		Token:    req.Token,
		Type:     push.TokenType(req.Type),
		DeviceID: req.DeviceID,
		Platform: req.Platform,
	}
	if err := h.pushService.RegisterToken(c.Request.Context(), token); err != nil {
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to register token")
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"message": "Token registered"})
}

// UnregisterPushToken removes a device token
// DELETE /api/v1/push/tokens/:token
func (h *Handler) UnregisterPushToken(c *gin.Context) {
	if _, ok := actingUser(c); !ok {
		return
	}

	token := c.Param("token")
	if token == "" {
		response.ValidationError(c, "token required")
		return
	}

	if err := h.pushService.UnregisterToken(c.Request.Context(), token); err != nil {
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to unregister token")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Token removed"})
}

func actingUser(c *gin.Context) (uuid.UUID, bool) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, "Not authenticated")
		return uuid.Nil, false
	}
	userID, ok := userIDVal.(uuid.UUID)
	if !ok {
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Invalid user ID")
		return uuid.Nil, false
	}
	return userID, true
}
