package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForSubscribers(t *testing.T, hub *Hub, ownerID uint, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.SubscriberCount(ownerID) == want
	}, time.Second, 5*time.Millisecond)
}

func receive(t *testing.T, c *Client) WSMessage {
	t.Helper()
	select {
	case data := <-c.send:
		var msg WSMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("expected a message")
	}
	return WSMessage{}
}

// ==================== Origin Tests ====================

func TestNewSecureUpgrader_CheckOrigin(t *testing.T) {
	upgrader := NewSecureUpgrader(" http://localhost:3000 ,,https://app.example.com,", nil)

	tests := []struct {
		origin   string
		expected bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"https://app.example.com", true},
		{"HTTPS://APP.EXAMPLE.COM", false},
		{"https://app.example.com/inbox", false},
		{"http://malicious.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.expected, upgrader.CheckOrigin(req))
		})
	}
}

func TestParseOrigins_DefaultsToLocalhost(t *testing.T) {
	assert.Equal(t, []string{"http://localhost:3000"}, ParseOrigins(""))
	assert.Equal(t, []string{"http://localhost:3000"}, ParseOrigins(",,,"))
}

func TestNewSecureUpgrader_BufferSizes(t *testing.T) {
	upgrader := NewSecureUpgrader("", nil)

	assert.Equal(t, 1024, upgrader.ReadBufferSize)
	assert.Equal(t, 1024, upgrader.WriteBufferSize)
}

// ==================== Hub Tests ====================

func TestHub_RegisterSubscribesToOwner(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	client := NewClient(hub, nil, 7, nil)
	hub.Register(client)

	waitForSubscribers(t, hub, 7, 1)
}

func TestHub_PublishReachesOnlyOwnerSubscribers(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	mine := NewClient(hub, nil, 1, nil)
	other := NewClient(hub, nil, 2, nil)
	hub.Register(mine)
	hub.Register(other)
	waitForSubscribers(t, hub, 1, 1)
	waitForSubscribers(t, hub, 2, 1)

	hub.Publish(1, MessageTypeBatchProgress, map[string]any{"job_id": 3, "completed_count": 1})

	msg := receive(t, mine)
	assert.Equal(t, MessageTypeBatchProgress, msg.Type)
	assert.Equal(t, uint(1), msg.OwnerID)
	data, ok := msg.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(3), data["job_id"])

	select {
	case <-other.send:
		t.Fatal("other owner must not receive the event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnregisterClosesSendChannel(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	client := NewClient(hub, nil, 1, nil)
	hub.Register(client)
	waitForSubscribers(t, hub, 1, 1)

	hub.Unregister(client)
	waitForSubscribers(t, hub, 1, 0)

	_, open := <-client.send
	assert.False(t, open)
}

func TestHub_PublishWithoutRunDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Publish(1, MessageTypeActivity, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked with no hub loop running")
	}
}

func TestHub_StopReleasesRegisterCalls(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	hub.Stop()

	done := make(chan struct{})
	go func() {
		hub.Register(NewClient(hub, nil, 1, nil))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Register blocked after Stop")
	}
}

func TestHub_BroadcastNewMessage(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	client := NewClient(hub, nil, 4, nil)
	hub.Register(client)
	waitForSubscribers(t, hub, 4, 1)

	hub.BroadcastNewMessage(4, &NewMessagePayload{
		ID:          1,
		SenderEmail: "test@example.com",
		Subject:     "Test Subject",
		ReceivedAt:  "2025-01-01T00:00:00Z",
	})

	msg := receive(t, client)
	assert.Equal(t, MessageTypeNewMessage, msg.Type)
}
