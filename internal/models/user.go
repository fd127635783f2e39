// internal/models/user.go
package models

import "strings"

// Theme constants
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// SavedCollaborator is a previously-used collaborator shortcut, kept on the
// user document for quick re-adding. Deduplicated by email.
type SavedCollaborator struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// User is the per-user settings document, keyed by the identity provider's
// opaque user id.
type User struct {
	ID                 string              `json:"id"`
	Email              string              `json:"email"`
	Name               string              `json:"name,omitempty"`
	Theme              string              `json:"theme,omitempty"`
	CreatedAt          int64               `json:"createdAt,omitempty"`
	SavedCollaborators []SavedCollaborator `json:"savedCollaborators,omitempty"`
}

// Clone returns a deep copy of the user document.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.SavedCollaborators = append([]SavedCollaborator(nil), u.SavedCollaborators...)
	return &c
}

// HasSavedCollaborator reports whether email is already in the shortcut list.
func (u *User) HasSavedCollaborator(email string) bool {
	for _, s := range u.SavedCollaborators {
		if s.Email == email {
			return true
		}
	}
	return false
}

// EmailLocalPart returns the part of an email address before the '@', or the
// whole string when there is none.
func EmailLocalPart(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}
