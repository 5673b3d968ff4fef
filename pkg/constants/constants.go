// Package constants defines application-wide constants for timeouts and limits.
package constants

import "time"

// Time-related constants
const (
	// DefaultTimeout is the default timeout for most operations
	DefaultTimeout = 30 * time.Second

	// WebSocketPingInterval is the interval for WebSocket ping/pong
	WebSocketPingInterval = 60 * time.Second

	// WebSocketWriteTimeout bounds a single frame write
	WebSocketWriteTimeout = 10 * time.Second

	// SideEffectTimeout bounds one side-effect dispatch (chat message plus
	// notification pass); the lifecycle transition has already committed by
	// the time it starts
	SideEffectTimeout = 15 * time.Second

	// GracefulShutdownTimeout is the timeout for graceful server shutdown
	GracefulShutdownTimeout = 30 * time.Second
)

// Call coordination constants
const (
	// DefaultMaxCallParticipants is the ceiling on simultaneous
	// participants per call when CALL_MAX_PARTICIPANTS is unset
	DefaultMaxCallParticipants = 4

	// DefaultRingTimeout is how long a pending call may ring before it is
	// cancelled as missed; CALL_RING_TIMEOUT overrides, 0 disables
	DefaultRingTimeout = 60 * time.Second

	// RoomIDMaxAttempts caps room-ID allocation retries on collision
	RoomIDMaxAttempts = 3

	// UpdateMaxRetries caps conditional-update retries when concurrent
	// participants mutate the same session
	UpdateMaxRetries = 5
)

// Pagination constants
const (
	// DefaultPageSize is the page size when the client does not specify one
	DefaultPageSize = 20

	// MaxPageSize caps a single page of call history or notifications
	MaxPageSize = 100
)
