package task

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a task id does not exist in the store
var ErrNotFound = errors.New("task not found")

// Store is the persistence boundary for tasks. Implementations own all
// authoritative task state; callers only read and write through this
// interface.
type Store interface {
	// Create inserts a new task and returns it with store-assigned fields
	Create(ctx context.Context, fields CreateFields) (*Task, error)
	// Get returns the task with the given id or ErrNotFound
	Get(ctx context.Context, id int64) (*Task, error)
	// List returns all tasks ordered by creation time
	List(ctx context.Context) ([]*Task, error)
	// Filter returns tasks matching all supplied criteria, in creation order.
	// An empty filter is equivalent to List.
	Filter(ctx context.Context, filter Filter) ([]*Task, error)
	// Update applies the supplied fields to the task with the given id
	Update(ctx context.Context, id int64, fields UpdateFields) (*Task, error)
	// Delete removes the task with the given id or returns ErrNotFound
	Delete(ctx context.Context, id int64) error
	// Close releases store resources
	Close() error
}
