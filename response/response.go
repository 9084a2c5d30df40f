// Package response renders the JSON envelope every endpoint answers with.
package response

import (
	"encoding/json"
	"log"
	"net/http"
)

const (
	StatusSuccess      = "success"
	StatusFailed       = "failed"
	StatusUnauthorized = "unauthorized"
)

// Errors maps a field name to its error messages.
type Errors map[string][]string

type Envelope struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Errors  Errors `json:"errors"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func Write(w http.ResponseWriter, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.Code)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		log.Printf("response: encode: %v", err)
	}
}

func Success(w http.ResponseWriter, code int, message string, data any) {
	Write(w, Envelope{Status: StatusSuccess, Code: code, Message: message, Data: data})
}

func Fail(w http.ResponseWriter, code int, message string, errs Errors) {
	Write(w, Envelope{Status: StatusFailed, Code: code, Errors: errs, Message: message})
}

// Field is a failure with a single message on a single field.
func Field(w http.ResponseWriter, code int, message, field, reason string) {
	Fail(w, code, message, Errors{field: {reason}})
}

func Invalid(w http.ResponseWriter, errs Errors) {
	Fail(w, http.StatusUnprocessableEntity, "Input validation error.", errs)
}

func Unauthorized(w http.ResponseWriter) {
	Write(w, Envelope{
		Status:  StatusUnauthorized,
		Code:    http.StatusUnauthorized,
		Errors:  Errors{"Access-Token": {"Invalid access token."}},
		Message: "Authentication failed.",
	})
}

// Internal logs err and answers with a bare 500.
func Internal(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	Fail(w, http.StatusInternalServerError, "Internal server error.", nil)
}

func NotFound(w http.ResponseWriter, r *http.Request) {
	Fail(w, http.StatusNotFound, "Requested endpoint not found.", nil)
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	Fail(w, http.StatusMethodNotAllowed, "Method not allowed.", nil)
}

func TooManyRequests(w http.ResponseWriter) {
	Fail(w, http.StatusTooManyRequests, "Too many requests.", nil)
}
