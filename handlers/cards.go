package handlers

import (
	"errors"
	"net/http"

	"rdolist/db"
	appmw "rdolist/middleware"
	"rdolist/models"
	"rdolist/response"
)

type createCardRequest struct {
	Title        string  `json:"title" validate:"required,max=255"`
	Note         *string `json:"note"`
	ParentCardID *int64  `json:"parent_card_id"`
}

type updateCardRequest struct {
	Title string  `json:"title" validate:"required,max=255"`
	Note  *string `json:"note"`
}

type changeParentRequest struct {
	ParentCardID *int64 `json:"parent_card_id" validate:"required"`
}

func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	u := appmw.CurrentUser(r)
	var req createCardRequest
	if errs := decode(r, &req); errs != nil {
		response.Invalid(w, errs)
		return
	}
	errs := h.check(req)
	if errs == nil {
		errs = response.Errors{}
	}
	if err := h.checkCardRef(r.Context(), errs, "parent_card_id", req.ParentCardID, u); err != nil {
		response.Internal(w, r, err)
		return
	}
	if len(errs) > 0 {
		response.Invalid(w, errs)
		return
	}

	c := &models.Card{Title: req.Title, Note: req.Note, ParentCardID: req.ParentCardID, OwnerID: u.ID}
	if err := h.store.CreateCard(r.Context(), c); err != nil {
		response.Internal(w, r, err)
		return
	}
	response.Success(w, http.StatusCreated, "Successfully created a new card.", []*models.Card{c})
}

func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	c, ok := h.card(w, r, appmw.CurrentUser(r))
	if !ok {
		return
	}
	response.Success(w, http.StatusOK, "Card enquiry was successful.", c)
}

func (h *Handler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	c, ok := h.card(w, r, appmw.CurrentUser(r))
	if !ok {
		return
	}
	var req updateCardRequest
	if errs := decode(r, &req); errs != nil {
		response.Invalid(w, errs)
		return
	}
	if errs := h.check(req); errs != nil {
		response.Invalid(w, errs)
		return
	}

	changed := false
	if req.Title != c.Title {
		c.Title = req.Title
		changed = true
	}
	if req.Note != nil && *req.Note != "" && (c.Note == nil || *c.Note != *req.Note) {
		c.Note = req.Note
		changed = true
	}
	if changed {
		if err := h.store.UpdateCard(r.Context(), c); err != nil {
			response.Internal(w, r, err)
			return
		}
	}
	response.Success(w, http.StatusOK, "Card information has been successfully updated.", c)
}

func (h *Handler) ChangeParent(w http.ResponseWriter, r *http.Request) {
	u := appmw.CurrentUser(r)
	c, ok := h.card(w, r, u)
	if !ok {
		return
	}
	var req changeParentRequest
	if errs := decode(r, &req); errs != nil {
		response.Invalid(w, errs)
		return
	}
	errs := h.check(req)
	if errs == nil {
		errs = response.Errors{}
	}
	if err := h.checkCardRef(r.Context(), errs, "parent_card_id", req.ParentCardID, u); err != nil {
		response.Internal(w, r, err)
		return
	}
	if len(errs) > 0 {
		response.Invalid(w, errs)
		return
	}

	moved, err := h.store.ChangeParent(r.Context(), u.ID, c.ID, *req.ParentCardID)
	switch {
	case errors.Is(err, db.ErrNotFound):
		response.Invalid(w, response.Errors{"parent_card_id": {"Invalid parent card id."}})
		return
	case err != nil:
		response.Internal(w, r, err)
		return
	case !moved:
		response.Field(w, http.StatusUnprocessableEntity, "You can not use child card as a parent card.",
			"parent_card_id", "Invalid parent card id.")
		return
	}

	c, err = h.store.Card(r.Context(), c.ID)
	if err != nil {
		response.Internal(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Card information has been successfully updated.", c)
}

func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	u := appmw.CurrentUser(r)
	c, ok := h.card(w, r, u)
	if !ok {
		return
	}
	if err := h.store.DeleteCard(r.Context(), u.ID, c.ID); err != nil {
		response.Internal(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Card has been deleted successfully.", nil)
}

func (h *Handler) CardTodos(w http.ResponseWriter, r *http.Request) {
	u := appmw.CurrentUser(r)
	c, ok := h.card(w, r, u)
	if !ok {
		return
	}
	state := models.ParseTodoState(r.URL.Query().Get("state"))
	todos, err := h.store.Todos(r.Context(), u.ID, &c.ID, state)
	if err != nil {
		response.Internal(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Card todos enquiry was successful.", todos)
}

func (h *Handler) CardFeeds(w http.ResponseWriter, r *http.Request) {
	feeds, err := h.store.RootFeeds(r.Context(), appmw.CurrentUser(r).ID)
	if err != nil {
		response.Internal(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Cards feed enquiry was successful.", feeds)
}

func (h *Handler) CardFeed(w http.ResponseWriter, r *http.Request) {
	u := appmw.CurrentUser(r)
	c, ok := h.card(w, r, u)
	if !ok {
		return
	}
	feed, err := h.store.CardFeed(r.Context(), u.ID, c.ID)
	if err != nil {
		response.Internal(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Card feeds enquiry was successful.", feed)
}
