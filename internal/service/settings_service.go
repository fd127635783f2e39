// internal/service/settings_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/j-davidv/Donezo/internal/models"
	"github.com/j-davidv/Donezo/internal/store"
	"github.com/j-davidv/Donezo/pkg/identity"
)

// SettingsService manages the per-user settings document: display name, theme
// and the saved-collaborator shortcut list.
type SettingsService struct {
	users store.UserStore
	now   func() int64
}

// NewSettingsService creates the service over the users collection.
func NewSettingsService(users store.UserStore) *SettingsService {
	return &SettingsService{
		users: users,
		now:   func() int64 { return time.Now().UnixMilli() },
	}
}

// EnsureUser creates the settings document for a freshly signed-up identity.
// Defaults: dark theme, empty shortcut list.
func (s *SettingsService) EnsureUser(ctx context.Context, u identity.User, name string) error {
	doc := &models.User{
		ID:        u.ID,
		Email:     u.Email,
		Name:      name,
		Theme:     models.ThemeDark,
		CreatedAt: s.now(),
	}
	if err := s.users.Put(ctx, doc); err != nil {
		return fmt.Errorf("create user document: %w", err)
	}
	return nil
}

// Load returns the user's settings with display fallbacks applied: a missing
// name falls back to the email local-part, then "User"; a missing theme falls
// back to dark.
func (s *SettingsService) Load(ctx context.Context, u *identity.User) (*models.User, error) {
	doc, err := s.users.Get(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("load user settings: %w", err)
	}
	if doc.Name == "" {
		doc.Name = models.EmailLocalPart(u.Email)
	}
	if doc.Name == "" {
		doc.Name = "User"
	}
	if doc.Theme == "" {
		doc.Theme = models.ThemeDark
	}
	return doc, nil
}

// UpdateName sets the display name.
func (s *SettingsService) UpdateName(ctx context.Context, userID, name string) error {
	patch := &models.UserPatch{Name: &name}
	if err := s.users.Update(ctx, userID, patch); err != nil {
		return fmt.Errorf("update name: %w", err)
	}
	return nil
}

// UpdateTheme sets the theme; only light and dark are valid.
func (s *SettingsService) UpdateTheme(ctx context.Context, userID, theme string) error {
	if theme != models.ThemeLight && theme != models.ThemeDark {
		return ErrInvalidTheme
	}
	patch := &models.UserPatch{Theme: &theme}
	if err := s.users.Update(ctx, userID, patch); err != nil {
		return fmt.Errorf("update theme: %w", err)
	}
	return nil
}

// SaveCollaborator appends a collaborator shortcut to the user's list,
// deduplicated by email. The list is append-only.
func (s *SettingsService) SaveCollaborator(ctx context.Context, userID string, c models.SavedCollaborator) error {
	doc, err := s.users.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user for shortcut: %w", err)
	}
	if doc.HasSavedCollaborator(c.Email) {
		return nil
	}
	saved := append(append([]models.SavedCollaborator(nil), doc.SavedCollaborators...), c)
	patch := &models.UserPatch{SavedCollaborators: saved}
	if err := s.users.Update(ctx, userID, patch); err != nil {
		return fmt.Errorf("save collaborator shortcut: %w", err)
	}
	return nil
}
