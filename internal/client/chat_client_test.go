package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskpilot-ai/taskpilot/internal/web"
)

func chatTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var req web.ChatRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}

			sessionID := req.SessionID
			if sessionID == "" {
				sessionID = "session-1"
			}

			// interleave a broadcast event before the reply
			conn.WriteJSON(&web.TasksChangedEvent{Type: "tasks_changed"})
			conn.WriteJSON(&web.ChatResponse{
				Response:  "echo: " + req.Message,
				SessionID: sessionID,
				Timestamp: time.Now().Format(time.RFC3339),
			})
		}
	}))
}

func TestChatClientSendAndSessionReuse(t *testing.T) {
	server := chatTestServer(t)
	defer server.Close()

	c := New(server.URL)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := c.Send(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", resp.Response)
	assert.Equal(t, "session-1", c.SessionID())

	resp, err = c.Send(ctx, "again")
	require.NoError(t, err)
	assert.Equal(t, "session-1", resp.SessionID)
}

func TestChatClientReconnectsAfterDrop(t *testing.T) {
	server := chatTestServer(t)
	defer server.Close()

	c := New(server.URL)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := c.Send(ctx, "first")
	require.NoError(t, err)

	// kill the connection behind the client's back
	c.mu.Lock()
	c.conn.Close()
	c.mu.Unlock()

	resp, err := c.Send(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, "echo: second", resp.Response)
	// the issued session id survived the reconnect
	assert.Equal(t, "session-1", resp.SessionID)
}

func TestChatClientURLNormalization(t *testing.T) {
	c := New("http://localhost:8080/")
	assert.True(t, strings.HasPrefix(c.url, "ws://"))
	assert.True(t, strings.HasSuffix(c.url, "/api/chat/ws"))
}
