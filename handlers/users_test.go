package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"
)

func signup(t *testing.T, email string) {
	t.Helper()
	rr, _ := call(h.Signup, "POST", "/api/users", map[string]string{
		"first_name": "Ada",
		"last_name":  "Lovelace",
		"email":      email,
		"password":   "Passw0rd",
	}, nil, "")
	expectStatus(t, rr, http.StatusCreated)
}

func TestSignup(t *testing.T) {
	// Test case 1: Successful signup
	t.Run("Successful signup", func(t *testing.T) {
		email := uniqueEmail("signup")
		rr, env := call(h.Signup, "POST", "/api/users", map[string]string{
			"first_name": "Ada",
			"last_name":  "Lovelace",
			"email":      email,
			"password":   "Passw0rd",
		}, nil, "")

		expectStatus(t, rr, http.StatusCreated)
		if env.Message != "Successfully created an user account." {
			t.Errorf("Unexpected message: %q", env.Message)
		}

		var users []map[string]any
		json.Unmarshal(env.Data, &users)
		if len(users) != 1 || users[0]["email"] != email {
			t.Fatalf("Unexpected data: %s", env.Data)
		}
		for _, hidden := range []string{"password", "secret", "active"} {
			if strings.Contains(string(env.Data), hidden) {
				t.Errorf("Response leaks %q: %s", hidden, env.Data)
			}
		}
		if _, ok := users[0]["date_created"]; !ok {
			t.Errorf("Expected date_created in %v", users[0])
		}

		u, err := store.UserByEmail(context.Background(), email)
		if err != nil {
			t.Fatal(err)
		}
		if u.Active || u.IsConfirmed() {
			t.Errorf("New account must start inactive and unconfirmed")
		}
		if code := notifier.code(email); code == "" || u.SecretCode == nil || *u.SecretCode != code {
			t.Errorf("Expected the stored code to be mailed, got %q", code)
		}
	})

	// Test case 2: Duplicate email
	t.Run("Duplicate email", func(t *testing.T) {
		email := uniqueEmail("dup")
		signup(t, email)

		rr, env := call(h.Signup, "POST", "/api/users", map[string]string{
			"first_name": "Ada",
			"last_name":  "Lovelace",
			"email":      email,
			"password":   "Passw0rd",
		}, nil, "")

		expectStatus(t, rr, http.StatusUnprocessableEntity)
		expectFieldError(t, env, "email", "User associated with this email already exists.")
	})

	// Test case 3: Weak password and missing names
	t.Run("Invalid input", func(t *testing.T) {
		rr, env := call(h.Signup, "POST", "/api/users", map[string]string{
			"email":    "not-an-email",
			"password": "password",
		}, nil, "")

		expectStatus(t, rr, http.StatusUnprocessableEntity)
		if env.Message != "Input validation error." {
			t.Errorf("Unexpected message: %q", env.Message)
		}
		expectFieldError(t, env, "first_name", "Missing data for required field.")
		expectFieldError(t, env, "last_name", "Missing data for required field.")
		expectFieldError(t, env, "email", "Not a valid email address.")
		expectFieldError(t, env, "password", weakPassword)
	})

	// Test case 4: Password with spaces
	t.Run("Password with spaces", func(t *testing.T) {
		rr, env := call(h.Signup, "POST", "/api/users", map[string]string{
			"first_name": "Ada",
			"last_name":  "Lovelace",
			"email":      uniqueEmail("space"),
			"password":   "Pass w0rd",
		}, nil, "")

		expectStatus(t, rr, http.StatusUnprocessableEntity)
		expectFieldError(t, env, "password", weakPassword)
	})

	// Test case 5: Invalid JSON
	t.Run("Invalid JSON", func(t *testing.T) {
		rr, _ := call(h.Signup, "POST", "/api/users", `{"email": `, nil, "")
		expectStatus(t, rr, http.StatusUnprocessableEntity)
	})

	// Test case 6: Wrong type
	t.Run("Wrong field type", func(t *testing.T) {
		rr, env := call(h.Signup, "POST", "/api/users", `{"first_name": 5}`, nil, "")
		expectStatus(t, rr, http.StatusUnprocessableEntity)
		if _, ok := env.Errors["first_name"]; !ok {
			t.Errorf("Expected first_name error, got %v", env.Errors)
		}
	})
}

func TestRequestCode(t *testing.T) {
	email := uniqueEmail("code")
	signup(t, email)

	// Test case 1: Too soon after signup
	t.Run("Requested again after two minutes", func(t *testing.T) {
		advance(t, 2*time.Minute)
		rr, env := call(h.RequestCode, "GET", "/api/users/request_code?email="+email, nil, nil, "")

		expectStatus(t, rr, http.StatusForbidden)
		if _, ok := env.Errors["limit"]; !ok {
			t.Errorf("Expected limit error, got %v", env.Errors)
		}
	})

	// Test case 2: After the resend interval
	t.Run("Requested again after six minutes", func(t *testing.T) {
		advance(t, 6*time.Minute)
		rr, env := call(h.RequestCode, "GET", "/api/users/request_code?email="+email, nil, nil, "")

		expectStatus(t, rr, http.StatusOK)
		if env.Message != "Verification code has been sent." {
			t.Errorf("Unexpected message: %q", env.Message)
		}
		u, _ := store.UserByEmail(context.Background(), email)
		if !u.CodeSentAt.Equal(clock) {
			t.Errorf("Expected code_sent_at %v, got %v", clock, u.CodeSentAt)
		}
		if notifier.code(email) == "" {
			t.Errorf("Expected a mailed code")
		}
	})

	// Test case 3: Unknown email
	t.Run("Unknown email", func(t *testing.T) {
		rr, env := call(h.RequestCode, "GET", "/api/users/request_code?email=nobody@example.com", nil, nil, "")
		expectStatus(t, rr, http.StatusUnprocessableEntity)
		expectFieldError(t, env, "email", "User does not exists associated with this email.")
	})

	// Test case 4: Missing email
	t.Run("Missing email", func(t *testing.T) {
		rr, env := call(h.RequestCode, "GET", "/api/users/request_code", nil, nil, "")
		expectStatus(t, rr, http.StatusUnprocessableEntity)
		expectFieldError(t, env, "email", "Missing data for required field.")
	})
}

func TestConfirm(t *testing.T) {
	email := uniqueEmail("confirm")
	signup(t, email)
	code := notifier.code(email)

	// Test case 1: Wrong code
	t.Run("Wrong code", func(t *testing.T) {
		rr, env := call(h.Confirm, "POST", "/api/users/confirm", map[string]string{
			"email": email, "code": "000000x",
		}, nil, "")

		expectStatus(t, rr, http.StatusUnprocessableEntity)
		expectFieldError(t, env, "code", "Incorrect verification code.")
	})

	// Test case 2: Right code
	t.Run("Right code", func(t *testing.T) {
		rr, env := call(h.Confirm, "POST", "/api/users/confirm", map[string]string{
			"email": email, "code": code,
		}, nil, "")

		expectStatus(t, rr, http.StatusOK)
		if env.Message != "Verification has been completed." {
			t.Errorf("Unexpected message: %q", env.Message)
		}
		u, _ := store.UserByEmail(context.Background(), email)
		if !u.Active || !u.IsConfirmed() || u.SecretCode != nil {
			t.Errorf("Expected active confirmed account without code, got %+v", u)
		}
	})

	// Test case 3: Already confirmed
	t.Run("Already confirmed", func(t *testing.T) {
		rr, env := call(h.Confirm, "POST", "/api/users/confirm", map[string]string{
			"email": email, "code": code,
		}, nil, "")

		expectStatus(t, rr, http.StatusOK)
		if env.Message != "Account has been already verified." {
			t.Errorf("Unexpected message: %q", env.Message)
		}
	})

	// Test case 4: Expired code
	t.Run("Expired code", func(t *testing.T) {
		late := uniqueEmail("late")
		signup(t, late)
		advance(t, 61*time.Minute)

		rr, env := call(h.Confirm, "POST", "/api/users/confirm", map[string]string{
			"email": late, "code": notifier.code(late),
		}, nil, "")

		expectStatus(t, rr, http.StatusUnprocessableEntity)
		if env.Message != "Incorrect verification code or has expired." {
			t.Errorf("Unexpected message: %q", env.Message)
		}
	})
}

func TestResetPassword(t *testing.T) {
	u := createUser(t)

	rr, _ := call(h.RequestCode, "GET", "/api/users/request_code?email="+u.Email, nil, nil, "")
	expectStatus(t, rr, http.StatusOK)
	code := notifier.code(u.Email)
	oldKey := u.SecretKey

	// Test case 1: Successful reset
	t.Run("Successful reset", func(t *testing.T) {
		rr, env := call(h.ResetPassword, "POST", "/api/users/reset_password", map[string]string{
			"email": u.Email, "password": "N3wPassword", "code": code,
		}, nil, "")

		expectStatus(t, rr, http.StatusOK)
		if env.Message != "Password has been successfully changed." {
			t.Errorf("Unexpected message: %q", env.Message)
		}
		stored, _ := store.UserByEmail(context.Background(), u.Email)
		if !stored.CheckPassword("N3wPassword") {
			t.Errorf("New password not stored")
		}
		if stored.SecretKey == oldKey {
			t.Errorf("Secret key must rotate with the password")
		}
		if stored.SecretCode != nil {
			t.Errorf("Code must be consumed")
		}
	})

	// Test case 2: Code reuse
	t.Run("Code reuse", func(t *testing.T) {
		rr, env := call(h.ResetPassword, "POST", "/api/users/reset_password", map[string]string{
			"email": u.Email, "password": "An0therOne", "code": code,
		}, nil, "")

		expectStatus(t, rr, http.StatusUnprocessableEntity)
		expectFieldError(t, env, "code", "Incorrect verification code.")
	})
}

func TestAuthenticate(t *testing.T) {
	u := createUser(t)

	// Test case 1: Valid credentials
	t.Run("Valid credentials", func(t *testing.T) {
		rr, env := call(h.Authenticate, "POST", "/api/users/authenticate", map[string]string{
			"email": u.Email, "password": "Passw0rd",
		}, nil, "")

		expectStatus(t, rr, http.StatusOK)
		var data map[string]string
		json.Unmarshal(env.Data, &data)
		claims, err := h.issuer.Parse(data["access_token"])
		if err != nil {
			t.Fatalf("Issued token does not parse: %v", err)
		}
		if claims.Email != u.Email || claims.Secret != u.SecretKey {
			t.Errorf("Unexpected claims: %+v", claims)
		}
	})

	// Test case 2: Password mismatch
	t.Run("Password mismatch", func(t *testing.T) {
		rr, env := call(h.Authenticate, "POST", "/api/users/authenticate", map[string]string{
			"email": u.Email, "password": "Wr0ngPass",
		}, nil, "")

		expectStatus(t, rr, http.StatusUnauthorized)
		expectFieldError(t, env, "password", "Password mismatch.")
	})

	// Test case 3: Unknown account
	t.Run("Unknown account", func(t *testing.T) {
		rr, env := call(h.Authenticate, "POST", "/api/users/authenticate", map[string]string{
			"email": "ghost@example.com", "password": "Passw0rd",
		}, nil, "")

		expectStatus(t, rr, http.StatusUnprocessableEntity)
		expectFieldError(t, env, "email", "User does not exists associated with this email.")
	})
}

func TestCurrentUser(t *testing.T) {
	u := createUser(t)

	// Test case 1: Read account
	t.Run("Read account", func(t *testing.T) {
		rr, env := call(h.GetUser, "GET", "/api/users", nil, u, "")
		expectStatus(t, rr, http.StatusOK)
		var users []map[string]any
		json.Unmarshal(env.Data, &users)
		if len(users) != 1 || users[0]["email"] != u.Email {
			t.Errorf("Unexpected data: %s", env.Data)
		}
	})

	// Test case 2: Update names
	t.Run("Update names", func(t *testing.T) {
		rr, _ := call(h.UpdateUser, "PUT", "/api/users", map[string]string{
			"first_name": "Grace", "last_name": "Hopper",
		}, u, "")
		expectStatus(t, rr, http.StatusOK)

		stored, _ := store.UserByID(context.Background(), u.ID)
		if stored.FirstName != "Grace" || stored.LastName != "Hopper" {
			t.Errorf("Names not stored: %+v", stored)
		}
	})

	// Test case 3: Same names again within the same second
	t.Run("Unchanged names", func(t *testing.T) {
		rr, env := call(h.UpdateUser, "PUT", "/api/users", map[string]string{
			"first_name": "Grace", "last_name": "Hopper",
		}, u, "")
		expectStatus(t, rr, http.StatusOK)
		if env.Message != "Account information has been successfully updated." {
			t.Errorf("Unexpected message: %q", env.Message)
		}
	})

	// Test case 4: Name too long
	t.Run("Name too long", func(t *testing.T) {
		rr, env := call(h.UpdateUser, "PUT", "/api/users", map[string]string{
			"first_name": strings.Repeat("x", 56), "last_name": "Hopper",
		}, u, "")
		expectStatus(t, rr, http.StatusUnprocessableEntity)
		expectFieldError(t, env, "first_name", "Longer than maximum length 55.")
	})

	// Test case 5: Token check
	t.Run("Token check", func(t *testing.T) {
		rr, env := call(h.CheckToken, "GET", "/api/users/authenticate", nil, u, "")
		expectStatus(t, rr, http.StatusOK)
		if !strings.Contains(string(env.Data), u.Email) {
			t.Errorf("Expected email in %s", env.Data)
		}
	})
}
