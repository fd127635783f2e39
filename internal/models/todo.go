// internal/models/todo.go
package models

import (
	"errors"
	"sort"
)

// Collaborator is a non-owner user granted visibility and mutation rights
// on a todo. The owner never appears here.
type Collaborator struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Comment is immutable once created. Comments are embedded in their todo
// document and appended by replacing the whole sequence.
type Comment struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	UserID    string `json:"userId"`
	UserEmail string `json:"userEmail"`
	UserName  string `json:"userName"`
	CreatedAt int64  `json:"createdAt"`
}

// Todo is the central entity. Field names match the stored document shape.
// SharedWith is always a superset containing OwnerID plus every collaborator
// id, and is the key the live query filters on. Order ranks incomplete todos
// for display; it carries no meaning once Completed is true. Timestamps are
// Unix milliseconds.
type Todo struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	StartTime      string         `json:"startTime,omitempty"`
	EndTime        string         `json:"endTime,omitempty"`
	Completed      bool           `json:"completed"`
	OwnerID        string         `json:"ownerId"`
	SharedWith     []string       `json:"sharedWith"`
	Collaborators  []Collaborator `json:"collaborators"`
	Order          int            `json:"order"`
	LastModifiedBy string         `json:"lastModifiedBy,omitempty"`
	LastModifiedAt int64          `json:"lastModifiedAt,omitempty"`
	Comments       []Comment      `json:"comments,omitempty"`
}

// Clone returns a deep copy so callers can hand out read-only views without
// sharing slices with the cache.
func (t *Todo) Clone() *Todo {
	if t == nil {
		return nil
	}
	c := *t
	c.SharedWith = append([]string(nil), t.SharedWith...)
	c.Collaborators = append([]Collaborator(nil), t.Collaborators...)
	c.Comments = append([]Comment(nil), t.Comments...)
	return &c
}

// SharedWithContains reports whether userID has visibility on the todo.
func (t *Todo) SharedWithContains(userID string) bool {
	for _, id := range t.SharedWith {
		if id == userID {
			return true
		}
	}
	return false
}

// HasCollaborator reports whether userID is already in the collaborator list.
func (t *Todo) HasCollaborator(userID string) bool {
	for _, c := range t.Collaborators {
		if c.ID == userID {
			return true
		}
	}
	return false
}

// SortCommentsForDisplay orders comments newest first.
func SortCommentsForDisplay(comments []Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt > comments[j].CreatedAt
	})
}

// TodoForm carries the user-entered fields for creating or editing a todo.
type TodoForm struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	StartTime   string `json:"startTime,omitempty"`
	EndTime     string `json:"endTime,omitempty"`
}

var (
	ErrTitleRequired     = errors.New("title is required")
	ErrPartialTimeWindow = errors.New("startTime and endTime must be set together")
)

// Validate checks the form invariants: a non-empty title and a time window
// that is either fully present or fully absent.
func (f TodoForm) Validate() error {
	if f.Title == "" {
		return ErrTitleRequired
	}
	if (f.StartTime == "") != (f.EndTime == "") {
		return ErrPartialTimeWindow
	}
	return nil
}
