package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/taskpilot-ai/taskpilot/internal/agent"
	"github.com/taskpilot-ai/taskpilot/internal/logger"
	"github.com/taskpilot-ai/taskpilot/internal/task"
)

// Server exposes the chat and task REST endpoints plus the websocket channel
type Server struct {
	store        task.Store
	orchestrator *agent.Orchestrator
	hub          *Hub
	upgrader     websocket.Upgrader
	httpServer   *http.Server
}

// NewServer wires the HTTP server. Call Start to begin serving.
func NewServer(addr string, store task.Store, orchestrator *agent.Orchestrator) *Server {
	s := &Server{
		store:        store,
		orchestrator: orchestrator,
		hub:          NewHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	router := httprouter.New()
	router.GET("/health", s.handleHealth)
	router.POST("/api/chat/message", s.handleChatMessage)
	router.GET("/api/chat/ws", s.handleWebsocket)
	router.GET("/api/tasks", s.handleListTasks)
	router.POST("/api/tasks", s.handleCreateTask)
	router.GET("/api/tasks/:id", s.handleGetTask)
	router.PUT("/api/tasks/:id", s.handleUpdateTask)
	router.DELETE("/api/tasks/:id", s.handleDeleteTask)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}
	return s
}

// Handler returns the underlying HTTP handler, used by tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the hub and serves until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	go s.hub.Run()
	logger.Info("Listening on %s", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := s.orchestrator.HandleMessage(r.Context(), req.SessionID, req.Message)
	if err != nil {
		logger.Error("Chat turn failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	if len(reply.Tasks) > 0 {
		s.hub.NotifyTasksChanged(reply.Tasks)
	}
	writeJSON(w, http.StatusOK, chatResponseFrom(reply))
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed: %v", err)
		return
	}

	client := newClient(s.hub, conn, s.orchestrator)
	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

// taskPayload is the REST body for creating and updating tasks. All fields
// are optional so the same shape serves partial updates.
type taskPayload struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
	DueDate     *string `json:"due_date"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var payload taskPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Title == nil || strings.TrimSpace(*payload.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	fields := task.CreateFields{Title: *payload.Title}
	if payload.Description != nil {
		fields.Description = *payload.Description
	}
	if payload.Status != nil {
		fields.Status = task.Status(strings.ToLower(*payload.Status))
	}
	if payload.Priority != nil {
		fields.Priority = task.Priority(strings.ToLower(*payload.Priority))
	}
	if payload.DueDate != nil {
		due, err := parseDateParam(*payload.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		fields.DueDate = due
	}

	created, err := s.store.Create(r.Context(), fields)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.hub.NotifyTasksChanged([]*task.Task{created})
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	var filter task.Filter
	if raw := query.Get("status"); raw != "" {
		status := task.Status(strings.ToLower(raw))
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", raw))
			return
		}
		filter.Status = &status
	}
	if raw := query.Get("priority"); raw != "" {
		priority := task.Priority(strings.ToLower(raw))
		if !priority.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid priority %q", raw))
			return
		}
		filter.Priority = &priority
	}
	if raw := query.Get("due_before"); raw != "" {
		due, err := parseDateParam(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.DueBefore = due
	}

	tasks, err := s.store.Filter(r.Context(), filter)
	if err != nil {
		logger.Error("Failed to list tasks: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id, ok := parseIDParam(w, params)
	if !ok {
		return
	}

	found, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id, ok := parseIDParam(w, params)
	if !ok {
		return
	}

	var payload taskPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var fields task.UpdateFields
	fields.Title = payload.Title
	fields.Description = payload.Description
	if payload.Status != nil {
		status := task.Status(strings.ToLower(*payload.Status))
		fields.Status = &status
	}
	if payload.Priority != nil {
		priority := task.Priority(strings.ToLower(*payload.Priority))
		fields.Priority = &priority
	}
	if payload.DueDate != nil {
		due, err := parseDateParam(*payload.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		fields.DueDate = due
	}

	updated, err := s.store.Update(r.Context(), id, fields)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	s.hub.NotifyTasksChanged([]*task.Task{updated})
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id, ok := parseIDParam(w, params)
	if !ok {
		return
	}

	if err := s.store.Delete(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}

	s.hub.NotifyTasksChanged(nil)
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func parseIDParam(w http.ResponseWriter, params httprouter.Params) (int64, bool) {
	id, err := strconv.ParseInt(params.ByName("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "task id must be an integer")
		return 0, false
	}
	return id, true
}

var dateParamLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func parseDateParam(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateParamLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return &parsed, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q, expected ISO format", raw)
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, task.ErrNotFound):
		writeError(w, http.StatusNotFound, "task not found")
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, &ErrorResponse{Error: message})
}
