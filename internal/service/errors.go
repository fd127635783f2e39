// internal/service/errors.go
package service

import "errors"

var (
	// ErrNoUser is returned by mutations issued without a signed-in identity.
	ErrNoUser = errors.New("no signed-in user")

	// ErrTodoNotFound is returned when a todo id is not in the synced view.
	ErrTodoNotFound = errors.New("todo not found")

	// ErrUserNotFound is returned when an email matches nobody in the
	// user directory.
	ErrUserNotFound = errors.New("user not found")

	// ErrAlreadyCollaborator is returned when the resolved user is already
	// on the collaborator list.
	ErrAlreadyCollaborator = errors.New("user is already a collaborator")

	// ErrCannotAddOwner is returned when the resolved user is the todo's
	// owner.
	ErrCannotAddOwner = errors.New("cannot add owner as collaborator")

	// ErrNotOwner is returned when the delete policy restricts deletion to
	// the owner and the acting user is somebody else.
	ErrNotOwner = errors.New("only the owner may delete this todo")

	// ErrInvalidTheme is returned for a theme outside light/dark.
	ErrInvalidTheme = errors.New("theme must be light or dark")
)
