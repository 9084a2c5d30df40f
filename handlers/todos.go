package handlers

import (
	"net/http"
	"time"

	appmw "rdolist/middleware"
	"rdolist/models"
	"rdolist/response"
)

type createTodoRequest struct {
	Title   string  `json:"title" validate:"required,max=255"`
	Note    *string `json:"note"`
	DueDate *string `json:"due_date"`
	CardID  *int64  `json:"card_id"`
}

type updateTodoRequest struct {
	Title   string  `json:"title" validate:"required,max=255"`
	Note    *string `json:"note"`
	DueDate *string `json:"due_date"`
}

type changeCardRequest struct {
	CardID *int64 `json:"card_id" validate:"required"`
}

// parseDue accepts RFC 3339 timestamps. A nil or empty value means no due
// date.
func parseDue(errs response.Errors, s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		errs["due_date"] = append(errs["due_date"], "Not a valid datetime.")
		return nil
	}
	t = t.UTC().Truncate(time.Second)
	return &t
}

func (h *Handler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	u := appmw.CurrentUser(r)
	var req createTodoRequest
	if errs := decode(r, &req); errs != nil {
		response.Invalid(w, errs)
		return
	}
	errs := h.check(req)
	if errs == nil {
		errs = response.Errors{}
	}
	due := parseDue(errs, req.DueDate)
	if err := h.checkCardRef(r.Context(), errs, "card_id", req.CardID, u); err != nil {
		response.Internal(w, r, err)
		return
	}
	if len(errs) > 0 {
		response.Invalid(w, errs)
		return
	}

	t := &models.Todo{Title: req.Title, Note: req.Note, DueDate: due, CardID: req.CardID, OwnerID: u.ID}
	if err := h.store.CreateTodo(r.Context(), t); err != nil {
		response.Internal(w, r, err)
		return
	}
	response.Success(w, http.StatusCreated, "Successfully created a new todo.", []*models.Todo{t})
}

func (h *Handler) ListTodos(w http.ResponseWriter, r *http.Request) {
	u := appmw.CurrentUser(r)
	state := models.ParseTodoState(r.URL.Query().Get("state"))
	todos, err := h.store.Todos(r.Context(), u.ID, nil, state)
	if err != nil {
		response.Internal(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Todo list enquiry was successful.", todos)
}

func (h *Handler) GetTodo(w http.ResponseWriter, r *http.Request) {
	t, ok := h.todo(w, r, appmw.CurrentUser(r))
	if !ok {
		return
	}
	response.Success(w, http.StatusOK, "Todo enquiry was successful.", t)
}

func (h *Handler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	t, ok := h.todo(w, r, appmw.CurrentUser(r))
	if !ok {
		return
	}
	var req updateTodoRequest
	if errs := decode(r, &req); errs != nil {
		response.Invalid(w, errs)
		return
	}
	errs := h.check(req)
	if errs == nil {
		errs = response.Errors{}
	}
	due := parseDue(errs, req.DueDate)
	if len(errs) > 0 {
		response.Invalid(w, errs)
		return
	}

	changed := false
	if req.Title != t.Title {
		t.Title = req.Title
		changed = true
	}
	if req.Note != nil && *req.Note != "" && (t.Note == nil || *t.Note != *req.Note) {
		t.Note = req.Note
		changed = true
	}
	if due != nil && (t.DueDate == nil || !t.DueDate.Equal(*due)) {
		t.DueDate = due
		changed = true
	}
	if changed {
		if err := h.store.UpdateTodo(r.Context(), t); err != nil {
			response.Internal(w, r, err)
			return
		}
	}
	response.Success(w, http.StatusOK, "Todo information has been successfully updated.", t)
}

func (h *Handler) MarkComplete(w http.ResponseWriter, r *http.Request) {
	t, ok := h.todo(w, r, appmw.CurrentUser(r))
	if !ok {
		return
	}
	t, err := h.store.CompleteTodo(r.Context(), t.ID)
	if err != nil {
		response.Internal(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Todo has been marked completed.", t)
}

func (h *Handler) ChangeCard(w http.ResponseWriter, r *http.Request) {
	u := appmw.CurrentUser(r)
	t, ok := h.todo(w, r, u)
	if !ok {
		return
	}
	var req changeCardRequest
	if errs := decode(r, &req); errs != nil {
		response.Invalid(w, errs)
		return
	}
	errs := h.check(req)
	if errs == nil {
		errs = response.Errors{}
	}
	if err := h.checkCardRef(r.Context(), errs, "card_id", req.CardID, u); err != nil {
		response.Internal(w, r, err)
		return
	}
	if len(errs) > 0 {
		response.Invalid(w, errs)
		return
	}

	if t.CardID == nil || *t.CardID != *req.CardID {
		t.CardID = req.CardID
		if err := h.store.UpdateTodo(r.Context(), t); err != nil {
			response.Internal(w, r, err)
			return
		}
	}
	response.Success(w, http.StatusOK, "Todo information has been successfully updated.", t)
}

func (h *Handler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	t, ok := h.todo(w, r, appmw.CurrentUser(r))
	if !ok {
		return
	}
	if err := h.store.DeleteTodo(r.Context(), t.ID); err != nil {
		response.Internal(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Todo has been deleted successfully.", nil)
}
