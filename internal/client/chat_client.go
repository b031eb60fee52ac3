// Package client implements a websocket chat client for the server's
// conversational endpoint. The connection auto-recovers: on unexpected
// closure it redials with exponential backoff and keeps using the session id
// the server already issued, so conversational context survives reconnects.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/taskpilot-ai/taskpilot/internal/logger"
	"github.com/taskpilot-ai/taskpilot/internal/web"
)

// ChatClient talks to the server's websocket chat endpoint
type ChatClient struct {
	mu        sync.Mutex
	url       string
	sessionID string
	conn      *websocket.Conn
}

// New creates a client for the given server base URL (http or ws scheme)
func New(serverURL string) *ChatClient {
	url := strings.TrimRight(serverURL, "/")
	url = strings.Replace(url, "http://", "ws://", 1)
	url = strings.Replace(url, "https://", "wss://", 1)
	if !strings.HasSuffix(url, "/api/chat/ws") {
		url += "/api/chat/ws"
	}
	return &ChatClient{url: url}
}

// SessionID returns the session id issued by the server, empty before the
// first reply.
func (c *ChatClient) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Connect dials the server, retrying with backoff until the context is done
func (c *ChatClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *ChatClient) connectLocked(ctx context.Context) error {
	policy := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(250*time.Millisecond),
		backoff.WithMaxInterval(10*time.Second),
		backoff.WithMaxElapsedTime(2*time.Minute),
	), ctx)

	return backoff.Retry(func() error {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			logger.Debug("Dial %s failed, retrying: %v", c.url, err)
			return err
		}
		c.conn = conn
		return nil
	}, policy)
}

// Send delivers one chat message and waits for the reply. Broadcast events
// arriving in between are skipped. A broken connection is redialed once, and
// the message resent, before giving up.
func (c *ChatClient) Send(ctx context.Context, message string) (*web.ChatResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for attempt := 0; attempt < 2; attempt++ {
		if c.conn == nil {
			if err := c.connectLocked(ctx); err != nil {
				return nil, fmt.Errorf("failed to connect: %w", err)
			}
		}

		resp, err := c.exchange(ctx, message)
		if err == nil {
			c.sessionID = resp.SessionID
			return resp, nil
		}

		logger.Warn("Chat exchange failed, reconnecting: %v", err)
		c.conn.Close()
		c.conn = nil
	}
	return nil, fmt.Errorf("chat exchange failed after reconnect")
}

func (c *ChatClient) exchange(ctx context.Context, message string) (*web.ChatResponse, error) {
	req := &web.ChatRequest{Message: message, SessionID: c.sessionID}
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(deadline)
		c.conn.SetReadDeadline(deadline)
	}
	if err := c.conn.WriteJSON(req); err != nil {
		return nil, err
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}

		var probe struct {
			Type     string `json:"type"`
			Error    string `json:"error"`
			Response string `json:"response"`
		}
		if err := json.Unmarshal(data, &probe); err != nil {
			return nil, fmt.Errorf("malformed server frame: %w", err)
		}

		switch {
		case probe.Type != "":
			// broadcast event for other listeners, not our reply
			continue
		case probe.Error != "":
			return nil, fmt.Errorf("server error: %s", probe.Error)
		default:
			var resp web.ChatResponse
			if err := json.Unmarshal(data, &resp); err != nil {
				return nil, fmt.Errorf("malformed chat response: %w", err)
			}
			return &resp, nil
		}
	}
}

// Close shuts the connection down
func (c *ChatClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
