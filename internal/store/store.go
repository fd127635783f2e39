// internal/store/store.go

// Package store is the gateway to the hosted document collections backing
// Donezo. It exposes coarse per-document operations plus a live filtered
// subscription, and ships two implementations: an in-memory store for tests
// and local development, and a Postgres/JSONB store for deployments.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/j-davidv/Donezo/internal/models"
)

// ErrNotFound is returned when a document id matches nothing.
var ErrNotFound = errors.New("store: document not found")

// Snapshot is a full replacement delivery of the watched todo set. Consumers
// discard their previous state on every delivery; there is no incremental
// merge.
type Snapshot []*models.Todo

// TodoStore is the todos collection. Updates are partial-field patches:
// fields absent from the patch are never overwritten, so concurrent edits to
// disjoint field groups do not clobber each other.
type TodoStore interface {
	// Create stores a new todo under a fresh id and returns the id.
	Create(ctx context.Context, todo *models.Todo) (string, error)
	Get(ctx context.Context, id string) (*models.Todo, error)
	Update(ctx context.Context, id string, patch *models.TodoPatch) error
	Delete(ctx context.Context, id string) error
	// SharedWith returns every todo whose sharedWith list contains userID.
	SharedWith(ctx context.Context, userID string) ([]*models.Todo, error)
	// Watch opens a live subscription over the same filter as SharedWith.
	// Each delivery on Subscription.C replaces the previous one entirely.
	Watch(ctx context.Context, userID string) (*Subscription, error)
}

// UserStore is the users collection, doubling as the user directory for
// email-based collaborator lookup.
type UserStore interface {
	Get(ctx context.Context, id string) (*models.User, error)
	// GetByEmail resolves exactly one user by exact email match, or ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Put(ctx context.Context, user *models.User) error
	Update(ctx context.Context, id string, patch *models.UserPatch) error
}

// Subscription is a live filtered query feed. C carries snapshots until the
// subscription is closed; after C is closed, Err reports the stream failure,
// if any.
type Subscription struct {
	C <-chan Snapshot

	stopOnce sync.Once
	stop     func()

	mu  sync.Mutex
	err error
}

func newSubscription(ch <-chan Snapshot, stop func()) *Subscription {
	return &Subscription{C: ch, stop: stop}
}

// Close tears the subscription down. Safe to call more than once.
func (s *Subscription) Close() {
	s.stopOnce.Do(s.stop)
}

// Err returns the error that terminated the stream, or nil after a clean close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}
