package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taskpilot-ai/taskpilot/internal/task"
)

// NewTaskRegistry builds the full tool catalogue over a task store
func NewTaskRegistry(store task.Store) *Registry {
	resolver := NewResolver(store)
	return NewRegistry(
		&createTaskTool{store: store},
		&updateTaskTool{store: store, resolver: resolver},
		&deleteTaskTool{store: store, resolver: resolver},
		&listTasksTool{store: store},
		&filterTasksTool{store: store},
	)
}

// normalizeStatus accepts either an exact enum value or a natural-language
// synonym. ok=false means nothing recognizable was supplied.
func normalizeStatus(raw string) (task.Status, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if status := task.Status(strings.ToLower(raw)); status.Valid() {
		return status, true
	}
	return ParseStatus(raw)
}

func normalizePriority(raw string) (task.Priority, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if priority := task.Priority(strings.ToLower(raw)); priority.Valid() {
		return priority, true
	}
	return ParsePriority(raw)
}

func normalizeDueDate(raw string) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	due, ok := ParseDueDate(raw, time.Now())
	if !ok {
		return nil, false
	}
	return &due, true
}

// resolveReference turns a resolver outcome into either a task or a
// structured failure the model can relay to the user.
func resolveReference(ctx context.Context, resolver *Resolver, reference string) (*task.Task, *ToolResult, error) {
	found, err := resolver.Resolve(ctx, reference)
	if err == nil {
		return found, nil, nil
	}

	var ambiguous *AmbiguousReferenceError
	switch {
	case errors.As(err, &ambiguous):
		titles := make([]string, len(ambiguous.Candidates))
		for i, t := range ambiguous.Candidates {
			titles[i] = fmt.Sprintf("%q (id %d)", t.Title, t.ID)
		}
		return nil, failureResult("reference %q is ambiguous, it could mean %s; ask which one was meant",
			reference, strings.Join(titles, " or ")), nil
	case errors.Is(err, ErrReferenceNotFound), errors.Is(err, task.ErrNotFound):
		return nil, failureResult("no task found matching %q", reference), nil
	default:
		return nil, nil, err
	}
}

type createTaskTool struct {
	store task.Store
}

func (t *createTaskTool) Name() string { return "create_task" }

func (t *createTaskTool) Description() string {
	return "Create a new task. Requires a title; description, status, priority and due_date are optional. Priority defaults to medium and status to todo."
}

func (t *createTaskTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"title":       stringProperty("Short title of the task"),
		"description": stringProperty("Longer free-form description"),
		"status":      stringProperty("Initial status", "todo", "in_progress", "done"),
		"priority":    stringProperty("Task priority", "low", "medium", "high"),
		"due_date":    stringProperty("Due date, ISO format or a phrase like 'tomorrow' or 'next friday'"),
	}, "title")
}

func (t *createTaskTool) Execute(ctx context.Context, args map[string]interface{}) (*ToolResult, error) {
	title := strings.TrimSpace(stringArg(args, "title"))
	if title == "" {
		return failureResult("create_task requires a non-empty title"), nil
	}

	fields := task.CreateFields{
		Title:       title,
		Description: stringArg(args, "description"),
	}
	if status, ok := normalizeStatus(stringArg(args, "status")); ok {
		fields.Status = status
	}
	if priority, ok := normalizePriority(stringArg(args, "priority")); ok {
		fields.Priority = priority
	}
	if due, ok := normalizeDueDate(stringArg(args, "due_date")); ok {
		fields.DueDate = due
	}

	created, err := t.store.Create(ctx, fields)
	if err != nil {
		return nil, err
	}
	return successResult(fmt.Sprintf("created task %d: %q (priority %s, status %s)",
		created.ID, created.Title, created.Priority, created.Status), created), nil
}

type updateTaskTool struct {
	store    task.Store
	resolver *Resolver
}

func (t *updateTaskTool) Name() string { return "update_task" }

func (t *updateTaskTool) Description() string {
	return "Update an existing task. The reference may be a task id, (part of) its title, or a follow-up word like 'it' for the task just discussed. Only the supplied fields change."
}

func (t *updateTaskTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"reference":   stringProperty("Task id or title fragment identifying the task"),
		"title":       stringProperty("New title"),
		"description": stringProperty("New description"),
		"status":      stringProperty("New status", "todo", "in_progress", "done"),
		"priority":    stringProperty("New priority", "low", "medium", "high"),
		"due_date":    stringProperty("New due date, ISO format or a phrase like 'tomorrow'"),
	}, "reference")
}

func (t *updateTaskTool) Execute(ctx context.Context, args map[string]interface{}) (*ToolResult, error) {
	target, failure, err := resolveReference(ctx, t.resolver, stringArg(args, "reference"))
	if err != nil {
		return nil, err
	}
	if failure != nil {
		return failure, nil
	}

	var fields task.UpdateFields
	if hasArg(args, "title") {
		title := strings.TrimSpace(stringArg(args, "title"))
		if title == "" {
			return failureResult("title cannot be updated to an empty string"), nil
		}
		fields.Title = &title
	}
	if hasArg(args, "description") {
		desc := stringArg(args, "description")
		fields.Description = &desc
	}
	if raw := stringArg(args, "status"); raw != "" {
		status, ok := normalizeStatus(raw)
		if !ok {
			return failureResult("unrecognized status %q, expected todo, in_progress or done", raw), nil
		}
		fields.Status = &status
	}
	if raw := stringArg(args, "priority"); raw != "" {
		priority, ok := normalizePriority(raw)
		if !ok {
			return failureResult("unrecognized priority %q, expected low, medium or high", raw), nil
		}
		fields.Priority = &priority
	}
	if raw := stringArg(args, "due_date"); raw != "" {
		due, ok := normalizeDueDate(raw)
		if !ok {
			return failureResult("could not understand due date %q", raw), nil
		}
		fields.DueDate = due
	}

	if fields.Empty() {
		return failureResult("update_task needs at least one field to change"), nil
	}

	updated, err := t.store.Update(ctx, target.ID, fields)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			return failureResult("task %d disappeared before it could be updated", target.ID), nil
		}
		return nil, err
	}
	return successResult(fmt.Sprintf("updated task %d: %q (status %s, priority %s)",
		updated.ID, updated.Title, updated.Status, updated.Priority), updated), nil
}

type deleteTaskTool struct {
	store    task.Store
	resolver *Resolver
}

func (t *deleteTaskTool) Name() string { return "delete_task" }

func (t *deleteTaskTool) Description() string {
	return "Delete a task. The reference may be a task id, (part of) its title, or a follow-up word like 'it' for the task just discussed."
}

func (t *deleteTaskTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"reference": stringProperty("Task id or title fragment identifying the task"),
	}, "reference")
}

func (t *deleteTaskTool) Execute(ctx context.Context, args map[string]interface{}) (*ToolResult, error) {
	target, failure, err := resolveReference(ctx, t.resolver, stringArg(args, "reference"))
	if err != nil {
		return nil, err
	}
	if failure != nil {
		return failure, nil
	}

	if err := t.store.Delete(ctx, target.ID); err != nil {
		if errors.Is(err, task.ErrNotFound) {
			return failureResult("task %d was already deleted", target.ID), nil
		}
		return nil, err
	}
	return successResult(fmt.Sprintf("deleted task %d: %q", target.ID, target.Title), target), nil
}

type listTasksTool struct {
	store task.Store
}

func (t *listTasksTool) Name() string { return "list_tasks" }

func (t *listTasksTool) Description() string {
	return "List all tasks in creation order."
}

func (t *listTasksTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{})
}

func (t *listTasksTool) Execute(ctx context.Context, args map[string]interface{}) (*ToolResult, error) {
	tasks, err := t.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return successResult(fmt.Sprintf("found %d task(s)", len(tasks)), tasks...), nil
}

type filterTasksTool struct {
	store task.Store
}

func (t *filterTasksTool) Name() string { return "filter_tasks" }

func (t *filterTasksTool) Description() string {
	return "List tasks matching all of the supplied criteria. With no criteria this is the same as list_tasks. due_before matches tasks due on or before the given date."
}

func (t *filterTasksTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"status":     stringProperty("Only tasks with this status", "todo", "in_progress", "done"),
		"priority":   stringProperty("Only tasks with this priority", "low", "medium", "high"),
		"due_before": stringProperty("Only tasks due on or before this date"),
	})
}

func (t *filterTasksTool) Execute(ctx context.Context, args map[string]interface{}) (*ToolResult, error) {
	var filter task.Filter
	if raw := stringArg(args, "status"); raw != "" {
		status, ok := normalizeStatus(raw)
		if !ok {
			return failureResult("unrecognized status %q, expected todo, in_progress or done", raw), nil
		}
		filter.Status = &status
	}
	if raw := stringArg(args, "priority"); raw != "" {
		priority, ok := normalizePriority(raw)
		if !ok {
			return failureResult("unrecognized priority %q, expected low, medium or high", raw), nil
		}
		filter.Priority = &priority
	}
	if raw := stringArg(args, "due_before"); raw != "" {
		due, ok := normalizeDueDate(raw)
		if !ok {
			return failureResult("could not understand due date %q", raw), nil
		}
		filter.DueBefore = due
	}

	tasks, err := t.store.Filter(ctx, filter)
	if err != nil {
		return nil, err
	}
	return successResult(fmt.Sprintf("found %d matching task(s)", len(tasks)), tasks...), nil
}
