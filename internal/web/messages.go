package web

import (
	"time"

	"github.com/taskpilot-ai/taskpilot/internal/agent"
	"github.com/taskpilot-ai/taskpilot/internal/task"
)

// ChatRequest is one inbound chat turn. An empty session_id starts a new
// session; the response carries the id to reuse.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the reply to one chat turn. Tasks is only present when the
// turn touched or returned tasks, signalling the UI to refresh.
type ChatResponse struct {
	Response  string       `json:"response"`
	SessionID string       `json:"session_id"`
	Tasks     []*task.Task `json:"tasks,omitempty"`
	Timestamp string       `json:"timestamp"`
}

func chatResponseFrom(reply *agent.Reply) *ChatResponse {
	return &ChatResponse{
		Response:  reply.Text,
		SessionID: reply.SessionID,
		Tasks:     reply.Tasks,
		Timestamp: reply.Timestamp.Format(time.RFC3339),
	}
}

// TasksChangedEvent is broadcast to all websocket clients whenever a chat
// turn or REST call mutated the task list.
type TasksChangedEvent struct {
	Type  string       `json:"type"`
	Tasks []*task.Task `json:"tasks,omitempty"`
}

// ErrorResponse is the JSON body for failed REST requests
type ErrorResponse struct {
	Error string `json:"error"`
}
