package web

import (
	"encoding/json"

	"github.com/taskpilot-ai/taskpilot/internal/logger"
	"github.com/taskpilot-ai/taskpilot/internal/task"
)

// Hub tracks the connected websocket clients and fans broadcast messages
// out to all of them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

// NewHub creates a hub; call Run in its own goroutine
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run processes register/unregister/broadcast events until Stop is called
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			logger.Debug("Websocket client connected, %d active", len(h.clients))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			logger.Debug("Websocket client disconnected, %d active", len(h.clients))
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// slow client, drop it
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// Stop shuts the hub down and disconnects all clients
func (h *Hub) Stop() {
	close(h.done)
}

// NotifyTasksChanged broadcasts a task-change event to every client
func (h *Hub) NotifyTasksChanged(tasks []*task.Task) {
	payload, err := json.Marshal(&TasksChangedEvent{Type: "tasks_changed", Tasks: tasks})
	if err != nil {
		logger.Error("Failed to encode task change event: %v", err)
		return
	}
	select {
	case h.broadcast <- payload:
	case <-h.done:
	}
}
