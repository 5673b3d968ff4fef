package domain

import "errors"

// Sentinel errors shared between the repositories and the lifecycle engine
var (
	// ErrNotFound is returned when no session exists for a room ID
	ErrNotFound = errors.New("call session not found")

	// ErrRoomIDTaken is returned when an insert collides with an existing
	// room ID; the caller retries with a fresh candidate
	ErrRoomIDTaken = errors.New("room id already taken")

	// ErrVersionConflict is returned when a conditional update loses the
	// race against a concurrent writer; the caller re-reads and retries
	ErrVersionConflict = errors.New("session version conflict")
)
