package task

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// both implementations must behave identically through the Store interface
func withStores(t *testing.T, test func(t *testing.T, store Store)) {
	t.Run("memory", func(t *testing.T) {
		store := NewMemoryStore()
		defer store.Close()
		test(t, store)
	})
	t.Run("sqlite", func(t *testing.T) {
		store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tasks.db"))
		require.NoError(t, err)
		defer store.Close()
		test(t, store)
	})
}

func TestCreateAppliesDefaults(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		created, err := store.Create(context.Background(), CreateFields{Title: "  Buy milk  "})
		require.NoError(t, err)

		assert.Equal(t, "Buy milk", created.Title)
		assert.Equal(t, StatusTodo, created.Status)
		assert.Equal(t, PriorityMedium, created.Priority)
		assert.Nil(t, created.DueDate)
		assert.False(t, created.CreatedAt.IsZero())
		assert.False(t, created.UpdatedAt.Before(created.CreatedAt))
	})
}

func TestCreateValidation(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		_, err := store.Create(context.Background(), CreateFields{Title: "   "})
		assert.Error(t, err)

		_, err = store.Create(context.Background(), CreateFields{Title: "x", Status: "bogus"})
		assert.Error(t, err)
	})
}

func TestGetUnknownIDIsNotFound(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		_, err := store.Get(context.Background(), 12345)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestListOrdersByCreation(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		for _, title := range []string{"first", "second", "third"} {
			_, err := store.Create(ctx, CreateFields{Title: title})
			require.NoError(t, err)
		}

		tasks, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, tasks, 3)
		assert.Equal(t, "first", tasks[0].Title)
		assert.Equal(t, "third", tasks[2].Title)
	})
}

func TestFilterRoundTrip(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		created, err := store.Create(ctx, CreateFields{Title: "Ship it", Priority: PriorityHigh})
		require.NoError(t, err)
		_, err = store.Create(ctx, CreateFields{Title: "Other", Priority: PriorityLow})
		require.NoError(t, err)

		status := created.Status
		priority := created.Priority
		tasks, err := store.Filter(ctx, Filter{Status: &status, Priority: &priority})
		require.NoError(t, err)

		// exactly once
		require.Len(t, tasks, 1)
		assert.Equal(t, created.ID, tasks[0].ID)
	})
}

func TestFilterDueBefore(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		soon := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)
		later := soon.Add(14 * 24 * time.Hour)

		due, err := store.Create(ctx, CreateFields{Title: "due soon", DueDate: &soon})
		require.NoError(t, err)
		_, err = store.Create(ctx, CreateFields{Title: "due later", DueDate: &later})
		require.NoError(t, err)
		_, err = store.Create(ctx, CreateFields{Title: "no due date"})
		require.NoError(t, err)

		cutoff := soon.Add(time.Hour)
		tasks, err := store.Filter(ctx, Filter{DueBefore: &cutoff})
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, due.ID, tasks[0].ID)
	})
}

func TestUpdatePartialFields(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		created, err := store.Create(ctx, CreateFields{Title: "Original", Description: "keep me"})
		require.NoError(t, err)

		status := StatusDone
		updated, err := store.Update(ctx, created.ID, UpdateFields{Status: &status})
		require.NoError(t, err)

		assert.Equal(t, StatusDone, updated.Status)
		assert.Equal(t, "Original", updated.Title)
		assert.Equal(t, "keep me", updated.Description)
		assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))
	})
}

func TestUpdateUnknownIDIsNotFound(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		status := StatusDone
		_, err := store.Update(context.Background(), 999, UpdateFields{Status: &status})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeleteTwice(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		created, err := store.Create(ctx, CreateFields{Title: "temp"})
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, created.ID))
		assert.ErrorIs(t, store.Delete(ctx, created.ID), ErrNotFound)
	})
}
