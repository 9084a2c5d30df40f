package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"rdolist/db"
	appmw "rdolist/middleware"
	"rdolist/models"
	"rdolist/response"
	"rdolist/token"
)

// Notifier sends account emails. Implementations must not block on delivery.
type Notifier interface {
	SendWelcome(ctx context.Context, u *models.User) error
	SendVerificationCode(ctx context.Context, u *models.User, code string) error
}

type Handler struct {
	store    *db.Store
	notifier Notifier
	issuer   *token.Issuer
	validate *validator.Validate
}

func New(store *db.Store, notifier Notifier, issuer *token.Issuer) *Handler {
	return &Handler{
		store:    store,
		notifier: notifier,
		issuer:   issuer,
		validate: newValidator(),
	}
}

// Routes mounts the users, cards and todos endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	auth := appmw.RequireAuth(h.issuer, h.store)

	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.Signup)
		r.Get("/request_code", h.RequestCode)
		r.Post("/confirm", h.Confirm)
		r.Post("/reset_password", h.ResetPassword)
		r.Post("/authenticate", h.Authenticate)

		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Get("/", h.GetUser)
			r.Put("/", h.UpdateUser)
			r.Get("/authenticate", h.CheckToken)
		})
	})

	r.Route("/cards", func(r chi.Router) {
		r.Use(auth)
		r.Post("/", h.CreateCard)
		r.Get("/feed", h.CardFeeds)
		r.Get("/feed/{id}", h.CardFeed)
		r.Get("/{id}", h.GetCard)
		r.Put("/{id}", h.UpdateCard)
		r.Delete("/{id}", h.DeleteCard)
		r.Put("/{id}/change_parent", h.ChangeParent)
		r.Get("/{id}/todos", h.CardTodos)
	})

	r.Route("/todos", func(r chi.Router) {
		r.Use(auth)
		r.Post("/", h.CreateTodo)
		r.Get("/", h.ListTodos)
		r.Get("/{id}", h.GetTodo)
		r.Put("/{id}", h.UpdateTodo)
		r.Delete("/{id}", h.DeleteTodo)
		r.Put("/{id}/mark_complete", h.MarkComplete)
		r.Put("/{id}/change_card", h.ChangeCard)
	})
}

// decode reads a JSON body into dst. An empty body leaves dst untouched so
// that required-field checks report what is missing.
func decode(r *http.Request, dst any) response.Errors {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return response.Errors{typeErr.Field: {"Not a valid " + typeName(typeErr.Type.Kind().String()) + "."}}
	}
	return response.Errors{"_schema": {"Invalid input type."}}
}

func typeName(kind string) string {
	switch kind {
	case "int", "int64", "ptr":
		return "integer"
	}
	return kind
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// card resolves the {id} path parameter to a card owned by the caller,
// answering 422 otherwise.
func (h *Handler) card(w http.ResponseWriter, r *http.Request, u *models.User) (*models.Card, bool) {
	const message = "Card ID is invalid or access denied."
	id, ok := pathID(r)
	if !ok {
		response.Field(w, http.StatusUnprocessableEntity, message, "card_id", "Invalid card id.")
		return nil, false
	}
	c, err := h.store.Card(r.Context(), id)
	switch {
	case errors.Is(err, db.ErrNotFound):
		response.Field(w, http.StatusUnprocessableEntity, message, "card_id", "Invalid card id.")
		return nil, false
	case err != nil:
		response.Internal(w, r, err)
		return nil, false
	case c.OwnerID != u.ID:
		response.Field(w, http.StatusUnprocessableEntity, message, "card_id", "You do not have access to use this card.")
		return nil, false
	}
	return c, true
}

func (h *Handler) todo(w http.ResponseWriter, r *http.Request, u *models.User) (*models.Todo, bool) {
	const message = "Todo ID is invalid or access denied."
	id, ok := pathID(r)
	if !ok {
		response.Field(w, http.StatusUnprocessableEntity, message, "todo_id", "Invalid Todo id.")
		return nil, false
	}
	t, err := h.store.Todo(r.Context(), id)
	switch {
	case errors.Is(err, db.ErrNotFound):
		response.Field(w, http.StatusUnprocessableEntity, message, "todo_id", "Invalid Todo id.")
		return nil, false
	case err != nil:
		response.Internal(w, r, err)
		return nil, false
	case t.OwnerID != u.ID:
		response.Field(w, http.StatusUnprocessableEntity, message, "todo_id", "You are not the real owner of this Todo.")
		return nil, false
	}
	return t, true
}

// checkCardRef validates a card id supplied in a request body.
func (h *Handler) checkCardRef(ctx context.Context, errs response.Errors, field string, id *int64, u *models.User) error {
	if id == nil {
		return nil
	}
	c, err := h.store.Card(ctx, *id)
	switch {
	case errors.Is(err, db.ErrNotFound):
		errs[field] = append(errs[field], "Invalid parent card id.")
	case err != nil:
		return err
	case c.OwnerID != u.ID:
		errs[field] = append(errs[field], "You do not have access to use this card.")
	}
	return nil
}

func (h *Handler) notify(what string, fn func() error) {
	if err := fn(); err != nil {
		log.Printf("notify %s: %v", what, err)
	}
}
