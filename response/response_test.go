package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSuccess(t *testing.T) {
	rr := httptest.NewRecorder()
	Success(rr, http.StatusCreated, "Created.", []int{1})

	if status := rr.Code; status != http.StatusCreated {
		t.Errorf("Handler returned wrong status code: got %v want %v", status, http.StatusCreated)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}

	var body map[string]any
	json.Unmarshal(rr.Body.Bytes(), &body)
	if body["status"] != "success" || body["message"] != "Created." {
		t.Errorf("Unexpected envelope: %v", body)
	}
	if body["errors"] != nil {
		t.Errorf("Expected null errors, got %v", body["errors"])
	}
	if int(body["code"].(float64)) != http.StatusCreated {
		t.Errorf("Expected code 201 in body, got %v", body["code"])
	}
}

func TestUnauthorized(t *testing.T) {
	rr := httptest.NewRecorder()
	Unauthorized(rr)

	if status := rr.Code; status != http.StatusUnauthorized {
		t.Errorf("Handler returned wrong status code: got %v want %v", status, http.StatusUnauthorized)
	}

	var env Envelope
	json.Unmarshal(rr.Body.Bytes(), &env)
	if env.Status != StatusUnauthorized {
		t.Errorf("Expected status unauthorized, got %q", env.Status)
	}
	if got := env.Errors["Access-Token"]; len(got) != 1 || got[0] != "Invalid access token." {
		t.Errorf("Unexpected errors: %v", env.Errors)
	}
}

func TestField(t *testing.T) {
	rr := httptest.NewRecorder()
	Field(rr, http.StatusUnprocessableEntity, "Card ID is invalid or access denied.", "card_id", "Invalid card id.")

	var env Envelope
	json.Unmarshal(rr.Body.Bytes(), &env)
	if env.Status != StatusFailed || env.Code != http.StatusUnprocessableEntity {
		t.Errorf("Unexpected envelope: %+v", env)
	}
	if got := env.Errors["card_id"]; len(got) != 1 || got[0] != "Invalid card id." {
		t.Errorf("Unexpected errors: %v", env.Errors)
	}
}
