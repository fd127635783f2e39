// internal/models/models_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTodoFormValidate(t *testing.T) {
	tests := []struct {
		name    string
		form    TodoForm
		wantErr error
	}{
		{name: "valid minimal", form: TodoForm{Title: "x"}},
		{name: "valid with window", form: TodoForm{Title: "x", StartTime: "09:00", EndTime: "10:00"}},
		{name: "missing title", form: TodoForm{}, wantErr: ErrTitleRequired},
		{name: "start without end", form: TodoForm{Title: "x", StartTime: "09:00"}, wantErr: ErrPartialTimeWindow},
		{name: "end without start", form: TodoForm{Title: "x", EndTime: "10:00"}, wantErr: ErrPartialTimeWindow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.form.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestTodoPatchFields(t *testing.T) {
	title := "new title"
	completed := true
	order := 3000
	patch := &TodoPatch{
		Title:      &title,
		Completed:  &completed,
		Order:      &order,
		SharedWith: []string{"a", "b"},
	}

	fields := patch.Fields()
	assert.Equal(t, map[string]interface{}{
		"title":      "new title",
		"completed":  true,
		"order":      3000,
		"sharedWith": []string{"a", "b"},
	}, fields)

	// The identifier is never part of a patch, and unset fields stay absent.
	assert.NotContains(t, fields, "id")
	assert.NotContains(t, fields, "description")
}

func TestTodoPatchApply(t *testing.T) {
	todo := &Todo{ID: "1", Title: "old", Description: "keep", Order: 5}
	title := "new"
	(&TodoPatch{Title: &title}).Apply(todo)

	assert.Equal(t, "new", todo.Title)
	assert.Equal(t, "keep", todo.Description)
	assert.Equal(t, 5, todo.Order)
}

func TestTodoClone(t *testing.T) {
	todo := &Todo{
		ID:         "1",
		SharedWith: []string{"a"},
		Comments:   []Comment{{ID: "c1"}},
	}
	clone := todo.Clone()
	clone.SharedWith[0] = "changed"
	clone.Comments[0].ID = "changed"

	assert.Equal(t, "a", todo.SharedWith[0])
	assert.Equal(t, "c1", todo.Comments[0].ID)
}

func TestSortCommentsForDisplay(t *testing.T) {
	comments := []Comment{
		{ID: "old", CreatedAt: 1},
		{ID: "new", CreatedAt: 3},
		{ID: "mid", CreatedAt: 2},
	}
	SortCommentsForDisplay(comments)
	assert.Equal(t, "new", comments[0].ID)
	assert.Equal(t, "mid", comments[1].ID)
	assert.Equal(t, "old", comments[2].ID)
}

func TestEmailLocalPart(t *testing.T) {
	assert.Equal(t, "alice", EmailLocalPart("alice@example.com"))
	assert.Equal(t, "alice", EmailLocalPart("alice"))
	assert.Equal(t, "", EmailLocalPart(""))
}
