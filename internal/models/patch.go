// internal/models/patch.go
package models

// TodoPatch is a partial update to a todo document. Only non-nil fields are
// written; fields left nil are never touched by the update. There is no ID
// field on purpose: the identifier is addressed separately and never patched.
// Array fields replace the stored sequence wholesale.
type TodoPatch struct {
	Title          *string
	Description    *string
	StartTime      *string
	EndTime        *string
	Completed      *bool
	Order          *int
	SharedWith     []string
	Collaborators  []Collaborator
	Comments       []Comment
	LastModifiedBy *string
	LastModifiedAt *int64
}

// Fields returns the set fields keyed by their document field name, suitable
// for a shallow JSON merge into the stored document.
func (p *TodoPatch) Fields() map[string]interface{} {
	fields := make(map[string]interface{})
	if p.Title != nil {
		fields["title"] = *p.Title
	}
	if p.Description != nil {
		fields["description"] = *p.Description
	}
	if p.StartTime != nil {
		fields["startTime"] = *p.StartTime
	}
	if p.EndTime != nil {
		fields["endTime"] = *p.EndTime
	}
	if p.Completed != nil {
		fields["completed"] = *p.Completed
	}
	if p.Order != nil {
		fields["order"] = *p.Order
	}
	if p.SharedWith != nil {
		fields["sharedWith"] = p.SharedWith
	}
	if p.Collaborators != nil {
		fields["collaborators"] = p.Collaborators
	}
	if p.Comments != nil {
		fields["comments"] = p.Comments
	}
	if p.LastModifiedBy != nil {
		fields["lastModifiedBy"] = *p.LastModifiedBy
	}
	if p.LastModifiedAt != nil {
		fields["lastModifiedAt"] = *p.LastModifiedAt
	}
	return fields
}

// Apply merges the set fields into t.
func (p *TodoPatch) Apply(t *Todo) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.StartTime != nil {
		t.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		t.EndTime = *p.EndTime
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.Order != nil {
		t.Order = *p.Order
	}
	if p.SharedWith != nil {
		t.SharedWith = append([]string(nil), p.SharedWith...)
	}
	if p.Collaborators != nil {
		t.Collaborators = append([]Collaborator(nil), p.Collaborators...)
	}
	if p.Comments != nil {
		t.Comments = append([]Comment(nil), p.Comments...)
	}
	if p.LastModifiedBy != nil {
		t.LastModifiedBy = *p.LastModifiedBy
	}
	if p.LastModifiedAt != nil {
		t.LastModifiedAt = *p.LastModifiedAt
	}
}

// UserPatch is a partial update to a user document.
type UserPatch struct {
	Name               *string
	Theme              *string
	SavedCollaborators []SavedCollaborator
}

// Fields returns the set fields keyed by their document field name.
func (p *UserPatch) Fields() map[string]interface{} {
	fields := make(map[string]interface{})
	if p.Name != nil {
		fields["name"] = *p.Name
	}
	if p.Theme != nil {
		fields["theme"] = *p.Theme
	}
	if p.SavedCollaborators != nil {
		fields["savedCollaborators"] = p.SavedCollaborators
	}
	return fields
}

// Apply merges the set fields into u.
func (p *UserPatch) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Theme != nil {
		u.Theme = *p.Theme
	}
	if p.SavedCollaborators != nil {
		u.SavedCollaborators = append([]SavedCollaborator(nil), p.SavedCollaborators...)
	}
}
