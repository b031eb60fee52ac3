package task

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store implementation. It backs tests and the
// -memory flag of the server; data does not survive a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	tasks  map[int64]*Task
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, tasks: make(map[int64]*Task)}
}

// Create inserts a new task, applying the todo / medium defaults
func (s *MemoryStore) Create(ctx context.Context, fields CreateFields) (*Task, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	status := fields.Status
	if status == "" {
		status = StatusTodo
	}
	priority := fields.Priority
	if priority == "" {
		priority = PriorityMedium
	}

	now := time.Now().UTC()
	t := &Task{
		ID:          s.nextID,
		Title:       strings.TrimSpace(fields.Title),
		Description: fields.Description,
		Status:      status,
		Priority:    priority,
		DueDate:     fields.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.nextID++
	s.tasks[t.ID] = t

	created := *t
	return &created, nil
}

// Get returns the task with the given id or ErrNotFound
func (s *MemoryStore) Get(ctx context.Context, id int64) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	found := *t
	return &found, nil
}

// List returns all tasks ordered by creation time
func (s *MemoryStore) List(ctx context.Context) ([]*Task, error) {
	return s.Filter(ctx, Filter{})
}

// Filter returns tasks matching all supplied criteria, in creation order
func (s *MemoryStore) Filter(ctx context.Context, filter Filter) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tasks []*Task
	for _, t := range s.tasks {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && t.Priority != *filter.Priority {
			continue
		}
		if filter.DueBefore != nil {
			if t.DueDate == nil || t.DueDate.After(*filter.DueBefore) {
				continue
			}
		}
		matched := *t
		tasks = append(tasks, &matched)
	}

	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// Update applies only the supplied fields and bumps updated_at
func (s *MemoryStore) Update(ctx context.Context, id int64, fields UpdateFields) (*Task, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}

	if fields.Title != nil {
		t.Title = strings.TrimSpace(*fields.Title)
	}
	if fields.Description != nil {
		t.Description = *fields.Description
	}
	if fields.Status != nil {
		t.Status = *fields.Status
	}
	if fields.Priority != nil {
		t.Priority = *fields.Priority
	}
	if fields.DueDate != nil {
		t.DueDate = fields.DueDate
	}
	if !fields.Empty() {
		t.UpdatedAt = time.Now().UTC()
	}

	updated := *t
	return &updated, nil
}

// Delete removes the task with the given id or returns ErrNotFound
func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error { return nil }
