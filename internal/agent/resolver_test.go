package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskpilot-ai/taskpilot/internal/task"
)

func seedTasks(t *testing.T, store task.Store, titles ...string) []*task.Task {
	t.Helper()
	var tasks []*task.Task
	for _, title := range titles {
		created, err := store.Create(context.Background(), task.CreateFields{Title: title})
		require.NoError(t, err)
		tasks = append(tasks, created)
	}
	return tasks
}

func TestResolveNumericIDShortCircuits(t *testing.T) {
	store := task.NewMemoryStore()
	seeded := seedTasks(t, store, "Buy groceries", "2 write report")
	resolver := NewResolver(store)

	found, err := resolver.Resolve(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, seeded[0].ID, found.ID)
}

func TestResolveByTitleFragment(t *testing.T) {
	store := task.NewMemoryStore()
	seedTasks(t, store, "Buy groceries", "Write quarterly report", "Call dentist")
	resolver := NewResolver(store)

	found, err := resolver.Resolve(context.Background(), "the groceries task")
	require.NoError(t, err)
	assert.Equal(t, "Buy groceries", found.Title)

	found, err = resolver.Resolve(context.Background(), "quarterly report")
	require.NoError(t, err)
	assert.Equal(t, "Write quarterly report", found.Title)
}

func TestResolveNoOverlapIsNotFound(t *testing.T) {
	store := task.NewMemoryStore()
	seedTasks(t, store, "Buy groceries", "Write report")
	resolver := NewResolver(store)

	_, err := resolver.Resolve(context.Background(), "zzqx")
	assert.ErrorIs(t, err, ErrReferenceNotFound)
}

func TestResolveEmptyReferenceIsNotFound(t *testing.T) {
	store := task.NewMemoryStore()
	seedTasks(t, store, "Buy groceries")
	resolver := NewResolver(store)

	_, err := resolver.Resolve(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrReferenceNotFound)
}

func TestResolveTieIsAmbiguous(t *testing.T) {
	store := task.NewMemoryStore()
	seedTasks(t, store, "Review code", "Review code changes")
	resolver := NewResolver(store)

	_, err := resolver.Resolve(context.Background(), "review code")
	var ambiguous *AmbiguousReferenceError
	require.ErrorAs(t, err, &ambiguous)
	assert.Len(t, ambiguous.Candidates, 2)
}

func TestResolveFollowUpReferenceUsesLastTask(t *testing.T) {
	store := task.NewMemoryStore()
	seeded := seedTasks(t, store, "Buy milk", "Write report")
	resolver := NewResolver(store)

	ctx := WithLastTask(context.Background(), seeded[0].ID)
	found, err := resolver.Resolve(ctx, "it")
	require.NoError(t, err)
	assert.Equal(t, seeded[0].ID, found.ID)

	found, err = resolver.Resolve(ctx, "that one")
	require.NoError(t, err)
	assert.Equal(t, seeded[0].ID, found.ID)

	// without a carried id the pronoun cannot resolve
	_, err = resolver.Resolve(context.Background(), "it")
	assert.ErrorIs(t, err, ErrReferenceNotFound)
}

func TestResolveFollowUpReferenceRevalidatesAgainstStore(t *testing.T) {
	store := task.NewMemoryStore()
	seeded := seedTasks(t, store, "Buy milk")
	resolver := NewResolver(store)

	ctx := WithLastTask(context.Background(), seeded[0].ID)
	require.NoError(t, store.Delete(context.Background(), seeded[0].ID))

	// the weak reference went stale, not resolved blindly
	_, err := resolver.Resolve(ctx, "it")
	assert.ErrorIs(t, err, ErrReferenceNotFound)
}

func TestResolveUnknownNumericIDFallsBackToTitles(t *testing.T) {
	store := task.NewMemoryStore()
	seedTasks(t, store, "Buy groceries")
	resolver := NewResolver(store)

	_, err := resolver.Resolve(context.Background(), "99")
	assert.ErrorIs(t, err, ErrReferenceNotFound)
}
