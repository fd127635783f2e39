// internal/service/collab_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/j-davidv/Donezo/internal/models"
	"github.com/j-davidv/Donezo/internal/store"
)

// CollabManager maintains the collaborators/sharedWith invariant pair on a
// todo under concurrent multi-owner editing: sharedWith always equals the
// owner plus every collaborator id, collaborators never contain the owner or
// a duplicate id. Both lists move together in a single update.
//
// Caller identity is not re-checked against the owner here; the serving layer
// decides who gets to see the sharing controls (trusted-client model).
type CollabManager struct {
	todos    store.TodoStore
	users    store.UserStore
	sync     *SyncController
	settings *SettingsService
	logger   *log.Logger
}

// NewCollabManager creates a manager operating on the given controller's
// synced view. settings may be nil to disable collaborator shortcuts.
func NewCollabManager(todos store.TodoStore, users store.UserStore, sync *SyncController, settings *SettingsService) *CollabManager {
	return &CollabManager{
		todos:    todos,
		users:    users,
		sync:     sync,
		settings: settings,
		logger:   sync.logger,
	}
}

// AddByEmail resolves a collaborator by exact email match in the user
// directory and adds them to the todo. Fails with ErrUserNotFound,
// ErrAlreadyCollaborator or ErrCannotAddOwner; those surface to the caller so
// an inline message can be shown. On success the email is also recorded,
// best-effort, into the acting user's saved-collaborator shortcuts.
func (m *CollabManager) AddByEmail(ctx context.Context, todoID, email string) error {
	actor, err := m.sync.currentUser()
	if err != nil {
		return err
	}

	collab, err := m.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("look up collaborator: %w", err)
	}

	todo, err := m.sync.cached(todoID)
	if err != nil {
		return err
	}
	if todo.HasCollaborator(collab.ID) {
		return ErrAlreadyCollaborator
	}
	if todo.OwnerID == collab.ID {
		return ErrCannotAddOwner
	}

	collaborators := append(append([]models.Collaborator(nil), todo.Collaborators...),
		models.Collaborator{ID: collab.ID, Email: email})
	sharedWith := append(append([]string(nil), todo.SharedWith...), collab.ID)

	now := m.sync.now()
	patch := &models.TodoPatch{
		Collaborators:  collaborators,
		SharedWith:     sharedWith,
		LastModifiedBy: &actor.ID,
		LastModifiedAt: &now,
	}
	if err := m.todos.Update(ctx, todoID, patch); err != nil {
		m.logger.Printf("add collaborator to todo %s: %v", todoID, err)
		return fmt.Errorf("add collaborator: %w", err)
	}

	// Shortcut recording is independent of the primary operation: a failure
	// here never fails the add.
	if m.settings != nil {
		if err := m.settings.SaveCollaborator(ctx, actor.ID, models.SavedCollaborator{ID: collab.ID, Email: email}); err != nil {
			m.logger.Printf("save collaborator shortcut: %v", err)
		}
	}
	return nil
}

// Remove filters the user id out of both collaborators and sharedWith in one
// update. Removing a non-member is a no-op, not an error: the filtered lists
// are written back unchanged, which keeps a rapid double-submission harmless.
func (m *CollabManager) Remove(ctx context.Context, todoID, userID string) error {
	actor, err := m.sync.currentUser()
	if err != nil {
		return err
	}
	todo, err := m.sync.cached(todoID)
	if err != nil {
		return err
	}

	collaborators := make([]models.Collaborator, 0, len(todo.Collaborators))
	for _, c := range todo.Collaborators {
		if c.ID != userID {
			collaborators = append(collaborators, c)
		}
	}
	sharedWith := make([]string, 0, len(todo.SharedWith))
	for _, id := range todo.SharedWith {
		if id != userID {
			sharedWith = append(sharedWith, id)
		}
	}

	now := m.sync.now()
	patch := &models.TodoPatch{
		Collaborators:  collaborators,
		SharedWith:     sharedWith,
		LastModifiedBy: &actor.ID,
		LastModifiedAt: &now,
	}
	if err := m.todos.Update(ctx, todoID, patch); err != nil {
		m.logger.Printf("remove collaborator from todo %s: %v", todoID, err)
		return fmt.Errorf("remove collaborator: %w", err)
	}
	return nil
}
