package handlers

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"rdolist/response"
)

const weakPassword = "Enter a combination of at least 6 numbers,(upper and lowercase) letters."

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("strongpassword", strongPassword)
	return v
}

// strongPassword wants six or more non-space characters with at least one
// digit, one upper and one lower case letter.
func strongPassword(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	var digit, upper, lower bool
	n := 0
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			return false
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		}
		n++
	}
	return n >= 6 && digit && upper && lower
}

// check runs the struct rules on v and returns field errors, or nil.
func (h *Handler) check(v any) response.Errors {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return response.Errors{"_schema": {err.Error()}}
	}
	errs := response.Errors{}
	for _, fe := range verrs {
		errs[fe.Field()] = append(errs[fe.Field()], message(fe))
	}
	return errs
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Missing data for required field."
	case "email":
		return "Not a valid email address."
	case "max":
		return "Longer than maximum length " + fe.Param() + "."
	case "min":
		return "Shorter than minimum length " + fe.Param() + "."
	case "strongpassword":
		return weakPassword
	}
	return "Invalid value."
}
