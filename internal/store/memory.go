// internal/store/memory.go
package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/j-davidv/Donezo/internal/models"
)

// Memory is an in-memory document store with live snapshot fan-out. It backs
// tests and local development the same way the real hosted store behaves:
// every mutation re-runs each watcher's filtered query and delivers a full
// replacement snapshot.
type Memory struct {
	mu       sync.RWMutex
	todos    map[string]*models.Todo
	users    map[string]*models.User
	watchers map[int]*memoryWatcher
	nextID   int

	// bmu serializes snapshot fan-out so the drain-then-send below stays
	// atomic per channel.
	bmu sync.Mutex
}

type memoryWatcher struct {
	userID string
	ch     chan Snapshot
	done   chan struct{}
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		todos:    make(map[string]*models.Todo),
		users:    make(map[string]*models.User),
		watchers: make(map[int]*memoryWatcher),
	}
}

// Create implements TodoStore.
func (m *Memory) Create(ctx context.Context, todo *models.Todo) (string, error) {
	m.mu.Lock()
	id := uuid.NewString()
	stored := todo.Clone()
	stored.ID = id
	m.todos[id] = stored
	m.mu.Unlock()

	m.broadcast()
	return id, nil
}

// Get implements TodoStore.
func (m *Memory) Get(ctx context.Context, id string) (*models.Todo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.todos[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

// Update implements TodoStore.
func (m *Memory) Update(ctx context.Context, id string, patch *models.TodoPatch) error {
	m.mu.Lock()
	t, ok := m.todos[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	patch.Apply(t)
	m.mu.Unlock()

	m.broadcast()
	return nil
}

// Delete implements TodoStore.
func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.todos[id]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.todos, id)
	m.mu.Unlock()

	m.broadcast()
	return nil
}

// SharedWith implements TodoStore.
func (m *Memory) SharedWith(ctx context.Context, userID string) ([]*models.Todo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sharedWithLocked(userID), nil
}

func (m *Memory) sharedWithLocked(userID string) []*models.Todo {
	out := make([]*models.Todo, 0)
	for _, t := range m.todos {
		if t.SharedWithContains(userID) {
			out = append(out, t.Clone())
		}
	}
	return out
}

// Watch implements TodoStore. The initial snapshot is delivered immediately;
// afterwards every mutation triggers a fresh delivery. A slow consumer only
// ever sees the latest snapshot: pending deliveries are replaced, not queued.
func (m *Memory) Watch(ctx context.Context, userID string) (*Subscription, error) {
	w := &memoryWatcher{
		userID: userID,
		ch:     make(chan Snapshot, 1),
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = w
	w.ch <- Snapshot(m.sharedWithLocked(userID))
	m.mu.Unlock()

	sub := newSubscription(w.ch, func() {
		close(w.done)
		m.bmu.Lock()
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
		close(w.ch)
		m.bmu.Unlock()
	})

	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Close()
			case <-w.done:
			}
		}()
	}
	return sub, nil
}

// broadcast re-runs every watcher's filter and delivers replacement snapshots.
func (m *Memory) broadcast() {
	m.bmu.Lock()
	defer m.bmu.Unlock()
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.watchers {
		snap := Snapshot(m.sharedWithLocked(w.userID))
		// Replace a pending undelivered snapshot rather than queueing.
		select {
		case <-w.ch:
		default:
		}
		select {
		case <-w.done:
		case w.ch <- snap:
		}
	}
}

// GetUser implements UserStore.Get.
func (m *Memory) GetUser(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u.Clone(), nil
}

// GetUserByEmail implements UserStore.GetByEmail.
func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return u.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

// PutUser implements UserStore.Put.
func (m *Memory) PutUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user.Clone()
	return nil
}

// UpdateUser implements UserStore.Update.
func (m *Memory) UpdateUser(ctx context.Context, id string, patch *models.UserPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	patch.Apply(u)
	return nil
}

// Users adapts the store to the UserStore interface.
func (m *Memory) Users() UserStore { return memoryUsers{m} }

type memoryUsers struct{ m *Memory }

func (s memoryUsers) Get(ctx context.Context, id string) (*models.User, error) {
	return s.m.GetUser(ctx, id)
}

func (s memoryUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.m.GetUserByEmail(ctx, email)
}

func (s memoryUsers) Put(ctx context.Context, user *models.User) error {
	return s.m.PutUser(ctx, user)
}

func (s memoryUsers) Update(ctx context.Context, id string, patch *models.UserPatch) error {
	return s.m.UpdateUser(ctx, id, patch)
}
