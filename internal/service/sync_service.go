// internal/service/sync_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/j-davidv/Donezo/internal/models"
	"github.com/j-davidv/Donezo/internal/ordering"
	"github.com/j-davidv/Donezo/internal/store"
	"github.com/j-davidv/Donezo/pkg/identity"
)

// DeletePolicy decides who may delete a todo.
type DeletePolicy string

const (
	// DeleteAnySharer lets any caller holding the id delete (trusted-client
	// model, the default).
	DeleteAnySharer DeletePolicy = "any"
	// DeleteOwnerOnly restricts deletion to the todo's owner.
	DeleteOwnerOnly DeletePolicy = "owner"
)

// Config carries the optional knobs of a SyncController.
type Config struct {
	DeletePolicy DeletePolicy
	Logger       *log.Logger
	// Now returns the current time in Unix milliseconds. Overridable in tests.
	Now func() int64
}

// SyncController bridges the remote live-query feed and local mutations for
// one identity. It owns the authoritative local cache: every snapshot from the
// live subscription fully replaces it, ordered by the display comparator,
// before listeners see it. Mutations are dispatched to the remote store and
// reconciled by the next snapshot; optimistic local state is provisional.
//
// The live subscription is an explicit resource: acquired when an identity is
// set, released when the identity clears or the controller closes. It is never
// carried across identity changes.
type SyncController struct {
	todos  store.TodoStore
	users  store.UserStore
	policy DeletePolicy
	logger *log.Logger
	now    func() int64

	mu           sync.Mutex
	user         *identity.User
	sub          *store.Subscription
	loopDone     chan struct{}
	cache        []*models.Todo
	listeners    map[int]func([]*models.Todo)
	nextListener int
}

// NewSyncController creates a controller over the given collections. Zero
// Config fields get defaults: DeleteAnySharer, the standard logger, and a
// millisecond wall clock.
func NewSyncController(todos store.TodoStore, users store.UserStore, cfg Config) *SyncController {
	if cfg.DeletePolicy == "" {
		cfg.DeletePolicy = DeleteAnySharer
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Now == nil {
		cfg.Now = func() int64 { return time.Now().UnixMilli() }
	}
	return &SyncController{
		todos:     todos,
		users:     users,
		policy:    cfg.DeletePolicy,
		logger:    cfg.Logger,
		now:       cfg.Now,
		listeners: make(map[int]func([]*models.Todo)),
	}
}

// SetUser switches the controller to a new identity. The previous
// subscription, if any, is torn down first; with a non-nil user the cache is
// primed synchronously and a fresh live subscription opened. A nil user clears
// the cache and leaves the controller idle.
func (c *SyncController) SetUser(ctx context.Context, u *identity.User) error {
	c.mu.Lock()
	oldSub, oldDone := c.sub, c.loopDone
	c.sub, c.loopDone = nil, nil
	c.user = u
	c.mu.Unlock()

	if oldSub != nil {
		oldSub.Close()
		<-oldDone
	}

	if u == nil {
		c.replaceCache(nil)
		return nil
	}

	// Prime synchronously so mutations issued right after sign-in already see
	// the shared view.
	todos, err := c.todos.SharedWith(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("load shared todos: %w", err)
	}
	c.replaceCache(todos)

	sub, err := c.todos.Watch(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("subscribe to todos: %w", err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	if c.user == nil || c.user.ID != u.ID {
		// Identity changed while priming; this subscription lost the race.
		c.mu.Unlock()
		sub.Close()
		close(done)
		return nil
	}
	c.sub = sub
	c.loopDone = done
	c.mu.Unlock()

	go c.consume(sub, done)
	return nil
}

// Bind wires the controller to an identity provider: the current identity is
// applied immediately and every later change re-acquires or releases the
// subscription. The returned function detaches from the provider.
func (c *SyncController) Bind(ctx context.Context, p identity.Provider) func() {
	// Change callbacks and the initial apply serialize on one mutex; without
	// it a sign-in firing during registration could be overwritten by a
	// stale Current().
	var mu sync.Mutex
	unsub := p.OnChange(func(u *identity.User) {
		mu.Lock()
		defer mu.Unlock()
		if err := c.SetUser(ctx, u); err != nil {
			c.logger.Printf("identity change: %v", err)
		}
	})
	mu.Lock()
	if err := c.SetUser(ctx, p.Current()); err != nil {
		c.logger.Printf("initial identity: %v", err)
	}
	mu.Unlock()
	return unsub
}

// Close releases the live subscription and clears the cache.
func (c *SyncController) Close() {
	if err := c.SetUser(context.Background(), nil); err != nil {
		c.logger.Printf("close: %v", err)
	}
}

// CurrentUser returns the identity the controller is bound to, or nil.
func (c *SyncController) CurrentUser() *identity.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// OnSnapshot registers fn to receive every ordered view, starting with the
// current one. The slices handed to fn are read-only views detached from the
// cache. Returns an unsubscribe function.
func (c *SyncController) OnSnapshot(fn func([]*models.Todo)) func() {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	view := viewOf(c.cache)
	c.mu.Unlock()

	fn(view)
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Snapshot returns the current ordered view as a detached copy.
func (c *SyncController) Snapshot() []*models.Todo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return viewOf(c.cache)
}

func (c *SyncController) consume(sub *store.Subscription, done chan struct{}) {
	defer close(done)
	for snap := range sub.C {
		c.replaceCache(snap)
	}
	if err := sub.Err(); err != nil {
		c.logger.Printf("todo subscription terminated: %v", err)
	}
}

// replaceCache installs a snapshot as the new authoritative state and fans the
// ordered view out to listeners.
func (c *SyncController) replaceCache(todos []*models.Todo) {
	if todos == nil {
		todos = []*models.Todo{}
	}
	ordering.Sort(todos)

	c.mu.Lock()
	c.cache = todos
	fns := listenersOf(c.listeners)
	view := viewOf(c.cache)
	c.mu.Unlock()

	for _, fn := range fns {
		fn(view)
	}
}

// Create stores a new todo owned by the current user. The title is expected
// to be validated at the form boundary. The fresh todo ranks after every
// incomplete todo currently visible. Write failures are logged and returned.
func (c *SyncController) Create(ctx context.Context, form models.TodoForm) error {
	u, err := c.currentUser()
	if err != nil {
		return err
	}

	c.mu.Lock()
	order := ordering.NextOrder(c.cache)
	c.mu.Unlock()

	now := c.now()
	t := &models.Todo{
		Title:          form.Title,
		Description:    form.Description,
		StartTime:      form.StartTime,
		EndTime:        form.EndTime,
		Completed:      false,
		OwnerID:        u.ID,
		SharedWith:     []string{u.ID},
		Collaborators:  []models.Collaborator{},
		Order:          order,
		LastModifiedBy: u.ID,
		LastModifiedAt: now,
	}
	if _, err := c.todos.Create(ctx, t); err != nil {
		c.logger.Printf("create todo: %v", err)
		return fmt.Errorf("create todo: %w", err)
	}
	return nil
}

// Update sends a generic partial patch, stamped with modification metadata.
// Fields absent from the patch are never overwritten.
func (c *SyncController) Update(ctx context.Context, id string, patch *models.TodoPatch) error {
	u, err := c.currentUser()
	if err != nil {
		return err
	}
	c.stamp(patch, u.ID)
	if err := c.todos.Update(ctx, id, patch); err != nil {
		c.logger.Printf("update todo %s: %v", id, err)
		return fmt.Errorf("update todo: %w", err)
	}
	return nil
}

// Delete removes the remote document. Comments and collaborators are embedded,
// so no cascade is needed. Subject to the configured delete policy.
func (c *SyncController) Delete(ctx context.Context, id string) error {
	u, err := c.currentUser()
	if err != nil {
		return err
	}
	if c.policy == DeleteOwnerOnly {
		t, err := c.cached(id)
		if err != nil {
			return err
		}
		if t.OwnerID != u.ID {
			return ErrNotOwner
		}
	}
	if err := c.todos.Delete(ctx, id); err != nil {
		c.logger.Printf("delete todo %s: %v", id, err)
		return fmt.Errorf("delete todo: %w", err)
	}
	return nil
}

// Toggle flips completion on the cached todo. Completing parks the rank;
// reactivating appends the todo to the end of the incomplete list and densely
// renumbers the survivors in one batch so repeated toggles cannot collide.
func (c *SyncController) Toggle(ctx context.Context, id string) error {
	u, err := c.currentUser()
	if err != nil {
		return err
	}
	t, err := c.cached(id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	others := incompleteExcluding(c.cache, id)
	c.mu.Unlock()

	completed := !t.Completed
	order := ordering.CompletedOrder
	if !completed {
		order = len(others)
	}
	now := c.now()
	patch := &models.TodoPatch{
		Completed:      &completed,
		Order:          &order,
		LastModifiedBy: &u.ID,
		LastModifiedAt: &now,
	}
	if err := c.todos.Update(ctx, id, patch); err != nil {
		c.logger.Printf("toggle todo %s: %v", id, err)
		return fmt.Errorf("toggle todo: %w", err)
	}

	if !completed {
		if err := c.applyOrderBatch(ctx, ordering.PlanReactivation(others), "", 0); err != nil {
			c.logger.Printf("renumber after reactivation: %v", err)
			return fmt.Errorf("renumber after reactivation: %w", err)
		}
	}
	return nil
}

// Edit updates the user-editable fields only; rank, completion, sharing and
// comments are never touched by an edit.
func (c *SyncController) Edit(ctx context.Context, id string, form models.TodoForm) error {
	u, err := c.currentUser()
	if err != nil {
		return err
	}
	patch := &models.TodoPatch{
		Title:       &form.Title,
		Description: &form.Description,
		StartTime:   &form.StartTime,
		EndTime:     &form.EndTime,
	}
	c.stamp(patch, u.ID)
	if err := c.todos.Update(ctx, id, patch); err != nil {
		c.logger.Printf("edit todo %s: %v", id, err)
		return fmt.Errorf("edit todo: %w", err)
	}
	return nil
}

// Reorder moves the incomplete todo at src to dst. The local view is updated
// optimistically; the gap-spaced ranks are then committed as one batch of
// independent per-todo updates. A partial batch failure leaves some ranks
// stale but never corrupts other fields; the next full reorder repairs it.
func (c *SyncController) Reorder(ctx context.Context, src, dst int) error {
	u, err := c.currentUser()
	if err != nil {
		return err
	}

	c.mu.Lock()
	updates, err := ordering.PlanReorder(ordering.Incomplete(c.cache), src, dst)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	orderByID := make(map[string]int, len(updates))
	for _, upd := range updates {
		orderByID[upd.ID] = upd.Order
	}
	for _, t := range c.cache {
		if o, ok := orderByID[t.ID]; ok {
			t.Order = o
		}
	}
	ordering.Sort(c.cache)
	fns := listenersOf(c.listeners)
	view := viewOf(c.cache)
	c.mu.Unlock()

	// Optimistic: listeners see the new order before the writes land; the next
	// authoritative snapshot either confirms or supersedes it.
	for _, fn := range fns {
		fn(view)
	}

	if err := c.applyOrderBatch(ctx, updates, u.ID, c.now()); err != nil {
		c.logger.Printf("reorder todos: %v", err)
		return fmt.Errorf("reorder todos: %w", err)
	}
	return nil
}

// AddComment appends a comment to the todo's embedded sequence, replacing the
// whole sequence in one update. The author name falls back from the user
// document's name to the email local-part to "Unknown". Failures surface to
// the caller.
func (c *SyncController) AddComment(ctx context.Context, id, text string) error {
	u, err := c.currentUser()
	if err != nil {
		return err
	}
	t, err := c.cached(id)
	if err != nil {
		return err
	}

	email := u.Email
	if email == "" {
		email = "Unknown"
	}
	now := c.now()
	comment := models.Comment{
		ID:        uuid.NewString(),
		Text:      text,
		UserID:    u.ID,
		UserEmail: email,
		UserName:  c.displayName(ctx, u),
		CreatedAt: now,
	}

	comments := append(append([]models.Comment(nil), t.Comments...), comment)
	patch := &models.TodoPatch{
		Comments:       comments,
		LastModifiedBy: &u.ID,
		LastModifiedAt: &now,
	}
	if err := c.todos.Update(ctx, id, patch); err != nil {
		c.logger.Printf("add comment to todo %s: %v", id, err)
		return fmt.Errorf("add comment: %w", err)
	}
	return nil
}

// applyOrderBatch issues the rank updates as parallel independent writes and
// joins them. No atomicity across members: a failed member leaves its todo's
// old rank in place, nothing is rolled back.
func (c *SyncController) applyOrderBatch(ctx context.Context, updates []ordering.OrderUpdate, by string, at int64) error {
	var wg sync.WaitGroup
	errs := make([]error, len(updates))
	for i, upd := range updates {
		wg.Add(1)
		go func(i int, upd ordering.OrderUpdate) {
			defer wg.Done()
			order := upd.Order
			patch := &models.TodoPatch{Order: &order}
			if by != "" {
				patch.LastModifiedBy = &by
				patch.LastModifiedAt = &at
			}
			errs[i] = c.todos.Update(ctx, upd.ID, patch)
		}(i, upd)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (c *SyncController) currentUser() (*identity.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return nil, ErrNoUser
	}
	return c.user, nil
}

// cached returns a detached copy of the todo from the synced view.
func (c *SyncController) cached(id string) (*models.Todo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.cache {
		if t.ID == id {
			return t.Clone(), nil
		}
	}
	return nil, ErrTodoNotFound
}

func (c *SyncController) stamp(patch *models.TodoPatch, userID string) {
	now := c.now()
	patch.LastModifiedBy = &userID
	patch.LastModifiedAt = &now
}

func (c *SyncController) displayName(ctx context.Context, u *identity.User) string {
	if doc, err := c.users.Get(ctx, u.ID); err == nil && doc.Name != "" {
		return doc.Name
	}
	if local := models.EmailLocalPart(u.Email); local != "" {
		return local
	}
	return "Unknown"
}

func incompleteExcluding(todos []*models.Todo, id string) []*models.Todo {
	out := make([]*models.Todo, 0, len(todos))
	for _, t := range todos {
		if !t.Completed && t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

func listenersOf(m map[int]func([]*models.Todo)) []func([]*models.Todo) {
	fns := make([]func([]*models.Todo), 0, len(m))
	for _, fn := range m {
		fns = append(fns, fn)
	}
	return fns
}

func viewOf(todos []*models.Todo) []*models.Todo {
	view := make([]*models.Todo, len(todos))
	for i, t := range todos {
		view[i] = t.Clone()
	}
	return view
}
