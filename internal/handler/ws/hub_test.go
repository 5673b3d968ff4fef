package ws

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"chatlink-backend/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	logger.Sugar = logger.Log.Sugar()
	m.Run()
}

func newTestClient(hub *Hub, userID uuid.UUID, connID string) *Client {
	return &Client{
		hub:    hub,
		send:   make(chan []byte, 4),
		userID: userID,
		connID: connID,
		done:   make(chan struct{}),
	}
}

func TestHub_ReconnectReplacesStaleClient(t *testing.T) {
	hub := NewHub(nil, nil)
	user := uuid.New()
	stale := newTestClient(hub, user, "conn-1")
	fresh := newTestClient(hub, user, "conn-2")

	hub.register <- stale
	hub.register <- fresh

	select {
	case <-stale.done:
	case <-time.After(time.Second):
		t.Fatal("replaced client was not closed")
	}

	// A frame handler may still be acking on the replaced connection;
	// that must be a quiet no-op, not a panic
	assert.NotPanics(t, func() { stale.enqueue([]byte(`{"type":"ack"}`)) })
	assert.Empty(t, stale.send)

	fresh.enqueue([]byte(`{"type":"ack"}`))
	select {
	case <-fresh.send:
	case <-time.After(time.Second):
		t.Fatal("live client did not receive the payload")
	}
}

func TestClient_EnqueueAfterUnregisterIsNoOp(t *testing.T) {
	hub := NewHub(nil, nil)
	user := uuid.New()
	client := newTestClient(hub, user, "conn-1")

	hub.register <- client
	hub.unregister <- client

	select {
	case <-client.done:
	case <-time.After(time.Second):
		t.Fatal("unregistered client was not closed")
	}

	assert.NotPanics(t, func() { client.enqueue([]byte(`{}`)) })
	assert.Empty(t, client.send)
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	client := newTestClient(nil, uuid.New(), "conn-1")

	assert.NotPanics(t, func() {
		client.close()
		client.close()
	})
}
