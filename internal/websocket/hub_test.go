package websocket

import (
	"encoding/json"
	"log/slog"
	"testing"
)

func newTestHub() *Hub {
	return NewHub(slog.Default())
}

func newTestClient(hub *Hub, userID string) *Client {
	return &Client{hub: hub, userID: userID, send: make(chan []byte, sendBufferSize)}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := newTestHub()
	c := newTestClient(hub, "user-1")

	hub.Register(c)
	if hub.ClientCount("user-1") != 1 {
		t.Errorf("count = %d, want 1", hub.ClientCount("user-1"))
	}

	hub.Unregister(c)
	if hub.ClientCount("user-1") != 0 {
		t.Errorf("count after unregister = %d, want 0", hub.ClientCount("user-1"))
	}

	// Unregistering twice must not panic or double-close.
	hub.Unregister(c)
}

func TestHubBroadcastToReachesOnlyOwner(t *testing.T) {
	hub := newTestHub()
	mine := newTestClient(hub, "user-1")
	other := newTestClient(hub, "user-2")
	hub.Register(mine)
	hub.Register(other)

	hub.BroadcastTo("user-1", NewMessage("task", "created", "task-9", nil))

	select {
	case data := <-mine.send:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type != "task_created" || msg.ID != "task-9" {
			t.Errorf("msg = %+v, want task_created/task-9", msg)
		}
	default:
		t.Fatal("owner's client received nothing")
	}

	select {
	case <-other.send:
		t.Error("another user's client received the message")
	default:
	}
}

func TestHubBroadcastDropsWhenBufferFull(t *testing.T) {
	hub := newTestHub()
	c := &Client{hub: hub, userID: "user-1", send: make(chan []byte)}
	hub.Register(c)

	// Unbuffered channel with no reader: broadcast must not block.
	hub.BroadcastTo("user-1", NewMessage("log", "replaced", "child-1", nil))
}

func TestNewMessageType(t *testing.T) {
	msg := NewMessage("child", "updated", "c1", map[string]any{"name": "Ada"})
	if msg.Type != "child_updated" {
		t.Errorf("type = %q, want child_updated", msg.Type)
	}
	if msg.Extra["name"] != "Ada" {
		t.Errorf("extra = %v", msg.Extra)
	}
}
