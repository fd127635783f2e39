// internal/store/memory_test.go
package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-davidv/Donezo/internal/models"
)

func newTodo(title, owner string) *models.Todo {
	return &models.Todo{
		Title:      title,
		OwnerID:    owner,
		SharedWith: []string{owner},
	}
}

func receiveSnapshot(t *testing.T, sub *Subscription) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.C:
		require.True(t, ok, "subscription closed unexpectedly")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestMemoryCRUD(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id, err := m.Create(ctx, newTodo("buy milk", "alice"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "buy milk", got.Title)
	assert.Equal(t, id, got.ID)

	title := "buy oat milk"
	require.NoError(t, m.Update(ctx, id, &models.TodoPatch{Title: &title}))
	got, err = m.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "buy oat milk", got.Title)
	// Untouched fields survive the patch.
	assert.Equal(t, "alice", got.OwnerID)

	require.NoError(t, m.Delete(ctx, id))
	_, err = m.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryNotFound(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Delete(ctx, "missing"), ErrNotFound)
	title := "x"
	assert.ErrorIs(t, m.Update(ctx, "missing", &models.TodoPatch{Title: &title}), ErrNotFound)
}

func TestMemorySharedWithFilter(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Create(ctx, newTodo("alice's", "alice"))
	require.NoError(t, err)
	shared := newTodo("shared", "alice")
	shared.SharedWith = []string{"alice", "bob"}
	_, err = m.Create(ctx, shared)
	require.NoError(t, err)

	mine, err := m.SharedWith(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "shared", mine[0].Title)

	all, err := m.SharedWith(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMemoryWatchDeliversReplacementSnapshots(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	sub, err := m.Watch(ctx, "alice")
	require.NoError(t, err)
	defer sub.Close()

	// Initial snapshot is empty.
	assert.Empty(t, receiveSnapshot(t, sub))

	_, err = m.Create(ctx, newTodo("first", "alice"))
	require.NoError(t, err)
	snap := receiveSnapshot(t, sub)
	require.Len(t, snap, 1)
	assert.Equal(t, "first", snap[0].Title)

	// A mutation outside the filter still delivers a snapshot, but the
	// filtered view is unchanged.
	_, err = m.Create(ctx, newTodo("other", "bob"))
	require.NoError(t, err)
	snap = receiveSnapshot(t, sub)
	assert.Len(t, snap, 1)
}

func TestMemoryWatchCoalescesPendingSnapshots(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	sub, err := m.Watch(ctx, "alice")
	require.NoError(t, err)
	defer sub.Close()
	receiveSnapshot(t, sub)

	// Two mutations with nobody receiving: only the latest snapshot is kept.
	_, err = m.Create(ctx, newTodo("one", "alice"))
	require.NoError(t, err)
	_, err = m.Create(ctx, newTodo("two", "alice"))
	require.NoError(t, err)

	snap := receiveSnapshot(t, sub)
	assert.Len(t, snap, 2)
}

func TestMemoryWatchClose(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	sub, err := m.Watch(ctx, "alice")
	require.NoError(t, err)
	receiveSnapshot(t, sub)

	sub.Close()
	sub.Close() // safe to call twice

	// The channel drains and closes; later mutations do not panic.
	_, ok := <-sub.C
	assert.False(t, ok)
	_, err = m.Create(ctx, newTodo("after close", "alice"))
	require.NoError(t, err)
	assert.NoError(t, sub.Err())
}

func TestMemoryWatchContextCancel(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := m.Watch(ctx, "alice")
	require.NoError(t, err)
	receiveSnapshot(t, sub)

	cancel()
	select {
	case _, ok := <-sub.C:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not torn down on context cancel")
	}
}

func TestMemoryUsers(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	users := m.Users()

	require.NoError(t, users.Put(ctx, &models.User{ID: "alice", Email: "alice@example.com", Name: "Alice"}))

	got, err := users.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)

	byEmail, err := users.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", byEmail.ID)

	_, err = users.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	name := "Alicia"
	require.NoError(t, users.Update(ctx, "alice", &models.UserPatch{Name: &name}))
	got, err = users.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alicia", got.Name)
	assert.Equal(t, "alice@example.com", got.Email)
}
