package task

import (
	"fmt"
	"strings"
	"time"
)

// Status enumerates the lifecycle states of a task
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// Valid reports whether s is a member of the status enumeration
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Priority enumerates task priorities
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a member of the priority enumeration
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is a single task row. The store assigns ID, CreatedAt and UpdatedAt.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateFields carries the caller-supplied fields for a new task.
// Zero-valued Status and Priority fall back to todo / medium.
type CreateFields struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status,omitempty"`
	Priority    Priority   `json:"priority,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// Validate checks required fields and enum membership
func (f *CreateFields) Validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return fmt.Errorf("title must not be empty")
	}
	if f.Status != "" && !f.Status.Valid() {
		return fmt.Errorf("invalid status %q", f.Status)
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return fmt.Errorf("invalid priority %q", f.Priority)
	}
	return nil
}

// UpdateFields carries a partial update; nil pointers mean "leave unchanged"
type UpdateFields struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// Validate checks enum membership and that a supplied title is non-empty
func (f *UpdateFields) Validate() error {
	if f.Title != nil && strings.TrimSpace(*f.Title) == "" {
		return fmt.Errorf("title must not be empty")
	}
	if f.Status != nil && !f.Status.Valid() {
		return fmt.Errorf("invalid status %q", *f.Status)
	}
	if f.Priority != nil && !f.Priority.Valid() {
		return fmt.Errorf("invalid priority %q", *f.Priority)
	}
	return nil
}

// Empty reports whether the update carries no changes at all
func (f *UpdateFields) Empty() bool {
	return f.Title == nil && f.Description == nil && f.Status == nil &&
		f.Priority == nil && f.DueDate == nil
}

// Filter selects tasks by optional criteria combined with logical AND
type Filter struct {
	Status    *Status    `json:"status,omitempty"`
	Priority  *Priority  `json:"priority,omitempty"`
	DueBefore *time.Time `json:"due_before,omitempty"`
}
