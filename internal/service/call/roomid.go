package call

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

// newRoomID generates a room identifier candidate: a time-based prefix for
// rough sortability plus a random suffix for uniqueness. Collisions are
// possible and handled by the caller's insert-retry loop.
func newRoomID() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; fall back to
		// the clock so allocation still proceeds
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return strconv.FormatInt(time.Now().UnixMilli(), 36) + "-" + hex.EncodeToString(buf)
}
