package session

import (
	"sync"
	"time"

	"github.com/taskpilot-ai/taskpilot/internal/llm"
)

// Session holds the conversation state for one chat client. History is a
// bounded FIFO of provider-neutral messages; LastTaskID remembers the most
// recently touched task so follow-up references like "mark it done" can
// resolve without a title.
type Session struct {
	mu     sync.Mutex
	turnMu sync.Mutex

	ID         string
	history    []*llm.Message
	limit      int
	lastTaskID int64

	createdAt time.Time
	lastSeen  time.Time
}

func newSession(id string, historyLimit int) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		limit:     historyLimit,
		createdAt: now,
		lastSeen:  now,
	}
}

// Append adds messages to the history, evicting the oldest turns once the
// limit is exceeded. Tool messages travel with their assistant turn, so
// eviction never strands a tool result without its call.
func (s *Session) Append(messages ...*llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msg := range messages {
		if msg == nil {
			continue
		}
		if msg.Timestamp.IsZero() {
			msg.Timestamp = time.Now()
		}
		s.history = append(s.history, msg)
	}

	if s.limit > 0 && len(s.history) > s.limit {
		drop := len(s.history) - s.limit
		// never start the window on an orphaned tool result
		for drop < len(s.history) && s.history[drop].Role == "tool" {
			drop++
		}
		s.history = append([]*llm.Message(nil), s.history[drop:]...)
	}

	s.lastSeen = time.Now()
}

// History returns a copy of the message history in order
func (s *Session) History() []*llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*llm.Message, len(s.history))
	copy(out, s.history)
	return out
}

// SetLastTaskID records the most recently referenced task
func (s *Session) SetLastTaskID(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTaskID = id
}

// LastTaskID returns the most recently referenced task id, or 0 if none
func (s *Session) LastTaskID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTaskID
}

// LockTurn serializes turn processing for this session. Turn order is
// meaningful context, so a session never handles two turns concurrently;
// different sessions proceed in parallel.
func (s *Session) LockTurn() {
	s.turnMu.Lock()
}

// UnlockTurn releases the turn lock
func (s *Session) UnlockTurn() {
	s.turnMu.Unlock()
}

// Touch refreshes the idle timer
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}
