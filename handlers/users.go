package handlers

import (
	"errors"
	"net/http"

	"rdolist/db"
	appmw "rdolist/middleware"
	"rdolist/models"
	"rdolist/response"
)

const (
	emailTaken     = "User associated with this email already exists."
	emailUnknown   = "User does not exists associated with this email."
	badCode        = "Incorrect verification code."
	badCodeMessage = "Incorrect verification code or has expired."
)

type signupRequest struct {
	FirstName string `json:"first_name" validate:"required,max=55"`
	LastName  string `json:"last_name" validate:"required,max=55"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,max=255,strongpassword"`
}

type updateUserRequest struct {
	FirstName string `json:"first_name" validate:"required,max=55"`
	LastName  string `json:"last_name" validate:"required,max=55"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type confirmRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
	Code  string `json:"code" validate:"required,min=6"`
}

type resetPasswordRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=255,strongpassword"`
	Code     string `json:"code" validate:"required,min=6"`
}

type authenticateRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=255,strongpassword"`
}

// existingUser loads the account named by email, recording a field error
// when there is none.
func (h *Handler) existingUser(w http.ResponseWriter, r *http.Request, email string) (*models.User, bool) {
	u, err := h.store.UserByEmail(r.Context(), email)
	switch {
	case errors.Is(err, db.ErrNotFound):
		response.Invalid(w, response.Errors{"email": {emailUnknown}})
		return nil, false
	case err != nil:
		response.Internal(w, r, err)
		return nil, false
	}
	return u, true
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if errs := decode(r, &req); errs != nil {
		response.Invalid(w, errs)
		return
	}
	errs := h.check(req)
	if _, bad := errs["email"]; !bad && req.Email != "" {
		taken, err := h.store.EmailExists(r.Context(), req.Email)
		if err != nil {
			response.Internal(w, r, err)
			return
		}
		if taken {
			if errs == nil {
				errs = response.Errors{}
			}
			errs["email"] = append(errs["email"], emailTaken)
		}
	}
	if errs != nil {
		response.Invalid(w, errs)
		return
	}

	u := &models.User{FirstName: req.FirstName, LastName: req.LastName, Email: req.Email}
	if err := u.SetPassword(req.Password); err != nil {
		response.Internal(w, r, err)
		return
	}
	code, err := u.IssueCode(h.store.Now())
	if err != nil {
		response.Internal(w, r, err)
		return
	}
	if err := h.store.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, db.ErrEmailTaken) {
			response.Invalid(w, response.Errors{"email": {emailTaken}})
			return
		}
		response.Internal(w, r, err)
		return
	}

	h.notify("welcome", func() error { return h.notifier.SendWelcome(r.Context(), u) })
	h.notify("verification code", func() error { return h.notifier.SendVerificationCode(r.Context(), u, code) })

	response.Success(w, http.StatusCreated, "Successfully created an user account.", []*models.User{u})
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u := appmw.CurrentUser(r)
	response.Success(w, http.StatusOK, "User account information enquiry was successful.", []*models.User{u})
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	u := appmw.CurrentUser(r)
	var req updateUserRequest
	if errs := decode(r, &req); errs != nil {
		response.Invalid(w, errs)
		return
	}
	if errs := h.check(req); errs != nil {
		response.Invalid(w, errs)
		return
	}

	u.FirstName, u.LastName = req.FirstName, req.LastName
	if err := h.store.UpdateUser(r.Context(), u); err != nil {
		response.Internal(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Account information has been successfully updated.", []*models.User{u})
}

func (h *Handler) RequestCode(w http.ResponseWriter, r *http.Request) {
	req := emailRequest{Email: r.URL.Query().Get("email")}
	if errs := h.check(req); errs != nil {
		response.Invalid(w, errs)
		return
	}
	u, ok := h.existingUser(w, r, req.Email)
	if !ok {
		return
	}

	code, err := u.IssueCode(h.store.Now())
	if errors.Is(err, models.ErrCodeTooSoon) {
		response.Fail(w, http.StatusForbidden, "You can only request new code after each 5 minutes.",
			response.Errors{"limit": {"You must wait 5 minutes before you can request another code."}})
		return
	}
	if err != nil {
		response.Internal(w, r, err)
		return
	}
	if err := h.store.UpdateUser(r.Context(), u); err != nil {
		response.Internal(w, r, err)
		return
	}

	h.notify("verification code", func() error { return h.notifier.SendVerificationCode(r.Context(), u, code) })
	response.Success(w, http.StatusOK, "Verification code has been sent.", nil)
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if errs := decode(r, &req); errs != nil {
		response.Invalid(w, errs)
		return
	}
	if errs := h.check(req); errs != nil {
		response.Invalid(w, errs)
		return
	}
	u, ok := h.existingUser(w, r, req.Email)
	if !ok {
		return
	}

	if u.IsConfirmed() {
		response.Success(w, http.StatusOK, "Account has been already verified.", nil)
		return
	}
	now := h.store.Now()
	if !u.VerifyCode(req.Code, now) {
		response.Field(w, http.StatusUnprocessableEntity, badCodeMessage, "code", badCode)
		return
	}
	u.Confirm(now)
	if err := h.store.UpdateUser(r.Context(), u); err != nil {
		response.Internal(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Verification has been completed.", nil)
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if errs := decode(r, &req); errs != nil {
		response.Invalid(w, errs)
		return
	}
	if errs := h.check(req); errs != nil {
		response.Invalid(w, errs)
		return
	}
	u, ok := h.existingUser(w, r, req.Email)
	if !ok {
		return
	}

	if !u.VerifyCode(req.Code, h.store.Now()) {
		response.Field(w, http.StatusUnprocessableEntity, badCodeMessage, "code", badCode)
		return
	}
	if err := u.SetPassword(req.Password); err != nil {
		response.Internal(w, r, err)
		return
	}
	u.ClearCode()
	if err := h.store.UpdateUser(r.Context(), u); err != nil {
		response.Internal(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Password has been successfully changed.", nil)
}

func (h *Handler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if errs := decode(r, &req); errs != nil {
		response.Invalid(w, errs)
		return
	}
	if errs := h.check(req); errs != nil {
		response.Invalid(w, errs)
		return
	}
	u, ok := h.existingUser(w, r, req.Email)
	if !ok {
		return
	}

	if !u.CheckPassword(req.Password) {
		response.Field(w, http.StatusUnauthorized, "Unable to authenticate user account.", "password", "Password mismatch.")
		return
	}
	signed, err := h.issuer.Issue(u)
	if err != nil {
		response.Internal(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Successfully authenticated.", map[string]string{"access_token": signed})
}

func (h *Handler) CheckToken(w http.ResponseWriter, r *http.Request) {
	u := appmw.CurrentUser(r)
	response.Success(w, http.StatusOK, "Access token is valid.", map[string]string{"email": u.Email})
}
