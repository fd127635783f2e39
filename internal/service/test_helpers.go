// internal/service/test_helpers.go
package service

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/j-davidv/Donezo/internal/models"
	"github.com/j-davidv/Donezo/internal/store"
	"github.com/j-davidv/Donezo/pkg/identity"
)

// fakeClock hands out strictly increasing millisecond timestamps so tests get
// deterministic, collision-free modification stamps.
type fakeClock struct {
	mu  sync.Mutex
	now int64
}

func newFakeClock() *fakeClock { return &fakeClock{now: 1_000_000} }

func (c *fakeClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now++
	return c.now
}

// testEnv wires a controller, collab manager and settings service over one
// in-memory store.
type testEnv struct {
	t          *testing.T
	mem        *store.Memory
	clock      *fakeClock
	controller *SyncController
	collab     *CollabManager
	settings   *SettingsService
}

func newTestEnv(t *testing.T) *testEnv {
	mem := store.NewMemory()
	clock := newFakeClock()
	settings := NewSettingsService(mem.Users())
	controller := NewSyncController(mem, mem.Users(), Config{
		Logger: log.New(io.Discard, "", 0),
		Now:    clock.Now,
	})
	t.Cleanup(controller.Close)
	return &testEnv{
		t:          t,
		mem:        mem,
		clock:      clock,
		controller: controller,
		collab:     NewCollabManager(mem, mem.Users(), controller, settings),
		settings:   settings,
	}
}

// newController attaches an extra controller (a second user's session) to the
// same store.
func (e *testEnv) newController(policy DeletePolicy) *SyncController {
	c := NewSyncController(e.mem, e.mem.Users(), Config{
		DeletePolicy: policy,
		Logger:       log.New(io.Discard, "", 0),
		Now:          e.clock.Now,
	})
	e.t.Cleanup(c.Close)
	return c
}

func (e *testEnv) seedUser(id, email, name string) {
	err := e.mem.PutUser(context.Background(), &models.User{
		ID:    id,
		Email: email,
		Name:  name,
		Theme: models.ThemeDark,
	})
	require.NoError(e.t, err)
}

func (e *testEnv) signIn(c *SyncController, id, email string) {
	require.NoError(e.t, c.SetUser(context.Background(), &identity.User{ID: id, Email: email}))
}

// waitFor blocks until the controller's synced view satisfies cond. Snapshots
// arrive asynchronously, so tests wait for propagation after every mutation.
func waitFor(t *testing.T, c *SyncController, cond func([]*models.Todo) bool) []*models.Todo {
	t.Helper()
	var view []*models.Todo
	require.Eventually(t, func() bool {
		view = c.Snapshot()
		return cond(view)
	}, 2*time.Second, 2*time.Millisecond)
	return view
}

func waitForLen(t *testing.T, c *SyncController, n int) []*models.Todo {
	t.Helper()
	return waitFor(t, c, func(view []*models.Todo) bool { return len(view) == n })
}

func findTodo(view []*models.Todo, title string) *models.Todo {
	for _, todo := range view {
		if todo.Title == title {
			return todo
		}
	}
	return nil
}
