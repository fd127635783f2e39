// internal/gateway/handlers.go

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/j-davidv/Donezo/internal/models"
	"github.com/j-davidv/Donezo/internal/service"
	"github.com/j-davidv/Donezo/pkg/identity"
)

// handleCreateUser registers a user in the directory. This is the only
// mutation outside the identity middleware: the caller has no directory
// entry to resolve yet.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "id and email are required")
		return
	}
	if err := s.settings.EnsureUser(r.Context(), identity.User{ID: req.ID, Email: req.Email}, req.Name); err != nil {
		writeError(w, http.StatusBadGateway, "could not save user")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
}

func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionOr502(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.controller.Snapshot())
}

// handleCreateTodo validates the form and dispatches the write. Write
// failures past validation are logged by the controller and swallowed here;
// the live feed is the source of truth for what actually landed.
func (s *Server) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionOr502(w, r)
	if !ok {
		return
	}
	var form models.TodoForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := form.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	_ = sess.controller.Create(r.Context(), form)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionOr502(w, r)
	if !ok {
		return
	}
	// Modification stamps and sharing lists are managed server side, so the
	// wire patch only admits the editable fields.
	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		StartTime   *string `json:"startTime"`
		EndTime     *string `json:"endTime"`
		Completed   *bool   `json:"completed"`
		Order       *int    `json:"order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	patch := models.TodoPatch{
		Title:       req.Title,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Completed:   req.Completed,
		Order:       req.Order,
	}
	if len(patch.Fields()) == 0 {
		writeError(w, http.StatusBadRequest, "patch must set at least one field")
		return
	}
	_ = sess.controller.Update(r.Context(), mux.Vars(r)["id"], &patch)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleEditTodo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionOr502(w, r)
	if !ok {
		return
	}
	var form models.TodoForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := form.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := sess.controller.Edit(r.Context(), mux.Vars(r)["id"], form); err != nil {
		if errors.Is(err, service.ErrTodoNotFound) {
			writeError(w, http.StatusNotFound, "todo not found")
			return
		}
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionOr502(w, r)
	if !ok {
		return
	}
	if err := sess.controller.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		switch {
		case errors.Is(err, service.ErrTodoNotFound):
			writeError(w, http.StatusNotFound, "todo not found")
			return
		case errors.Is(err, service.ErrNotOwner):
			writeError(w, http.StatusForbidden, "only the owner can delete this todo")
			return
		}
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionOr502(w, r)
	if !ok {
		return
	}
	if err := sess.controller.Toggle(r.Context(), mux.Vars(r)["id"]); err != nil {
		if errors.Is(err, service.ErrTodoNotFound) {
			writeError(w, http.StatusNotFound, "todo not found")
			return
		}
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionOr502(w, r)
	if !ok {
		return
	}
	var req struct {
		Source      int `json:"source"`
		Destination int `json:"destination"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := sess.controller.Reorder(r.Context(), req.Source, req.Destination); err != nil {
		// Out-of-range indexes mean the client's view is stale or buggy.
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleAddCollaborator surfaces sharing failures inline so the client can
// tell the user exactly what went wrong, unlike the swallowed todo writes.
func (s *Server) handleAddCollaborator(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionOr502(w, r)
	if !ok {
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	err := sess.collab.AddByEmail(r.Context(), mux.Vars(r)["id"], req.Email)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "no user with that email")
	case errors.Is(err, service.ErrTodoNotFound):
		writeError(w, http.StatusNotFound, "todo not found")
	case errors.Is(err, service.ErrAlreadyCollaborator):
		writeError(w, http.StatusConflict, "user is already a collaborator")
	case errors.Is(err, service.ErrCannotAddOwner):
		writeError(w, http.StatusConflict, "cannot add the owner as a collaborator")
	default:
		writeError(w, http.StatusBadGateway, "could not add collaborator")
	}
}

func (s *Server) handleRemoveCollaborator(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionOr502(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	err := sess.collab.Remove(r.Context(), vars["id"], vars["userID"])
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, service.ErrTodoNotFound):
		writeError(w, http.StatusNotFound, "todo not found")
	default:
		writeError(w, http.StatusBadGateway, "could not remove collaborator")
	}
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionOr502(w, r)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	err := sess.controller.AddComment(r.Context(), mux.Vars(r)["id"], req.Text)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusCreated)
	case errors.Is(err, service.ErrTodoNotFound):
		writeError(w, http.StatusNotFound, "todo not found")
	default:
		writeError(w, http.StatusBadGateway, "could not add comment")
	}
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	doc, err := s.settings.Load(r.Context(), u)
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not load settings")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleUpdateName(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.settings.UpdateName(r.Context(), u.ID, req.Name); err != nil {
		writeError(w, http.StatusBadGateway, "could not update name")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateTheme(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	var req struct {
		Theme string `json:"theme"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.settings.UpdateTheme(r.Context(), u.ID, req.Theme); err != nil {
		if errors.Is(err, service.ErrInvalidTheme) {
			writeError(w, http.StatusBadRequest, "theme must be light or dark")
			return
		}
		writeError(w, http.StatusBadGateway, "could not update theme")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sessionOr502 resolves the caller's session, reporting failure to the
// client. The identity middleware has already vouched for the user.
func (s *Server) sessionOr502(w http.ResponseWriter, r *http.Request) (*session, bool) {
	sess, err := s.session(userFrom(r), false)
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not open session")
		return nil, false
	}
	return sess, true
}
