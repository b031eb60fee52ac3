package web

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/taskpilot-ai/taskpilot/internal/agent"
	"github.com/taskpilot-ai/taskpilot/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is one websocket connection. Inbound frames are chat turns; the
// reply goes back on the same connection and task changes are broadcast to
// everyone through the hub.
type Client struct {
	hub          *Hub
	conn         *websocket.Conn
	send         chan []byte
	orchestrator *agent.Orchestrator
}

func newClient(hub *Hub, conn *websocket.Conn, orchestrator *agent.Orchestrator) *Client {
	return &Client{
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, 16),
		orchestrator: orchestrator,
	}
}

// detach hands the client back to the hub. A stopped hub no longer drains
// unregister, so fall through on shutdown instead of blocking forever.
func (c *Client) detach() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

func (c *Client) readPump() {
	defer func() {
		c.detach()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("Websocket read failed: %v", err)
			}
			return
		}

		var req ChatRequest
		if err := json.Unmarshal(data, &req); err != nil {
			c.sendError("invalid message payload")
			continue
		}

		c.handleTurn(&req)
	}
}

func (c *Client) handleTurn(req *ChatRequest) {
	reply, err := c.orchestrator.HandleMessage(context.Background(), req.SessionID, req.Message)
	if err != nil {
		logger.Error("Chat turn failed: %v", err)
		c.sendError("something went wrong handling that message")
		return
	}

	payload, err := json.Marshal(chatResponseFrom(reply))
	if err != nil {
		logger.Error("Failed to encode chat response: %v", err)
		return
	}
	c.enqueue(payload)

	if len(reply.Tasks) > 0 {
		c.hub.NotifyTasksChanged(reply.Tasks)
	}
}

func (c *Client) sendError(message string) {
	payload, err := json.Marshal(&ErrorResponse{Error: message})
	if err != nil {
		return
	}
	c.enqueue(payload)
}

func (c *Client) enqueue(payload []byte) {
	select {
	case c.send <- payload:
	default:
		logger.Warn("Dropping websocket message, send buffer full")
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
