package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/joho/godotenv"

	"rdolist/db"
	"rdolist/handlers"
	"rdolist/mail"
	appmw "rdolist/middleware"
	"rdolist/token"
)

var (
	router    http.Handler
	store     *db.Store
	mailQueue *mail.MemoryQueue
)

var codePattern = regexp.MustCompile(`verification code is (\d{6})`)

type apiResponse struct {
	Status  string              `json:"status"`
	Code    int                 `json:"code"`
	Errors  map[string][]string `json:"errors"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
}

func TestMain(m *testing.M) {
	// Load environment variables
	if err := godotenv.Load(".env.test"); err != nil {
		log.Println("Warning: Error loading .env.test file, using default values")
	}

	// Initialize database
	dir, err := os.MkdirTemp("", "rdolist-integration")
	if err != nil {
		log.Fatal(err)
	}
	store, err = db.Open(db.SQLite, filepath.Join(dir, "integration.db"))
	if err != nil {
		log.Fatal(err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		log.Fatal(err)
	}

	// Setup router
	mailQueue = mail.NewMemoryQueue(64)
	mailer, err := mail.NewMailer(mailQueue)
	if err != nil {
		log.Fatal(err)
	}
	h := handlers.New(store, mailer, token.NewIssuer(os.Getenv("SECRET_KEY"), time.Hour))
	router = newRouter(h, appmw.NewLimiter(0, 0))

	// Run tests
	code := m.Run()

	// Clean up
	store.Close()
	os.RemoveAll(dir)

	os.Exit(code)
}

func do(t *testing.T, method, target string, body any, accessToken string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set(appmw.TokenHeader, accessToken)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	var out apiResponse
	json.Unmarshal(resp.Body.Bytes(), &out)
	return resp, out
}

// mailedCode drains queued mail until the verification code for to shows up.
func mailedCode(t *testing.T, to string) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for {
		job, err := mailQueue.Dequeue(ctx)
		if err != nil {
			t.Fatalf("No verification mail for %s: %v", to, err)
		}
		if m := codePattern.FindStringSubmatch(job.Text); job.To == to && m != nil {
			return m[1]
		}
	}
}

func TestAccountCardTodoFlow(t *testing.T) {
	email := "integration@example.com"

	// Sign up
	resp, _ := do(t, "POST", "/api/users", map[string]string{
		"first_name": "Integration",
		"last_name":  "Test",
		"email":      email,
		"password":   "Integr4tion",
	}, "")
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status Created, got %v: %s", resp.Code, resp.Body)
	}

	// Confirm with the mailed code
	code := mailedCode(t, email)
	resp, out := do(t, "POST", "/api/users/confirm", map[string]string{"email": email, "code": code}, "")
	if resp.Code != http.StatusOK || out.Message != "Verification has been completed." {
		t.Fatalf("Confirm failed: %v %s", resp.Code, resp.Body)
	}

	// Log in
	resp, out = do(t, "POST", "/api/users/authenticate", map[string]string{"email": email, "password": "Integr4tion"}, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status OK, got %v: %s", resp.Code, resp.Body)
	}
	var login map[string]string
	json.Unmarshal(out.Data, &login)
	accessToken := login["access_token"]
	if accessToken == "" {
		t.Fatalf("No access token in %s", out.Data)
	}

	// Build a small tree: home > kitchen
	resp, out = do(t, "POST", "/api/cards", map[string]any{"title": "Home"}, accessToken)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status Created, got %v: %s", resp.Code, resp.Body)
	}
	var cards []struct {
		ID int64 `json:"id"`
	}
	json.Unmarshal(out.Data, &cards)
	home := cards[0].ID

	resp, out = do(t, "POST", "/api/cards/", map[string]any{"title": "Kitchen", "parent_card_id": home}, accessToken)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Trailing slash create failed: %v %s", resp.Code, resp.Body)
	}
	json.Unmarshal(out.Data, &cards)
	kitchen := cards[0].ID

	// Moving home below kitchen would close a cycle
	resp, out = do(t, "PUT", "/api/cards/"+itoa(home)+"/change_parent", map[string]any{"parent_card_id": kitchen}, accessToken)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected cycle to be refused, got %v: %s", resp.Code, resp.Body)
	}

	// Todo on the kitchen card, overdue
	resp, _ = do(t, "POST", "/api/todos", map[string]any{
		"title":    "Clean the oven",
		"card_id":  kitchen,
		"due_date": time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
	}, accessToken)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status Created, got %v: %s", resp.Code, resp.Body)
	}

	resp, out = do(t, "GET", "/api/todos?state=delayed", nil, accessToken)
	var todos []struct {
		ID int64 `json:"id"`
	}
	json.Unmarshal(out.Data, &todos)
	if resp.Code != http.StatusOK || len(todos) != 1 {
		t.Fatalf("Expected one delayed todo, got %v: %s", resp.Code, resp.Body)
	}

	resp, _ = do(t, "PUT", "/api/todos/"+itoa(todos[0].ID)+"/mark_complete", nil, accessToken)
	if resp.Code != http.StatusOK {
		t.Errorf("Expected status OK, got %v", resp.Code)
	}

	// The feed inlines the subtree
	resp, out = do(t, "GET", "/api/cards/feed", nil, accessToken)
	var feed []struct {
		ID         int64 `json:"id"`
		ChildCards []struct {
			ID    int64             `json:"id"`
			Todos []json.RawMessage `json:"todos"`
		} `json:"child_cards"`
	}
	json.Unmarshal(out.Data, &feed)
	if resp.Code != http.StatusOK || len(feed) != 1 || len(feed[0].ChildCards) != 1 || len(feed[0].ChildCards[0].Todos) != 1 {
		t.Errorf("Unexpected feed: %v %s", resp.Code, resp.Body)
	}

	// Deleting the root removes everything below it
	resp, _ = do(t, "DELETE", "/api/cards/"+itoa(home), nil, accessToken)
	if resp.Code != http.StatusOK {
		t.Errorf("Expected status OK, got %v", resp.Code)
	}
	resp, out = do(t, "GET", "/api/todos", nil, accessToken)
	json.Unmarshal(out.Data, &todos)
	if resp.Code != http.StatusOK || len(todos) != 0 {
		t.Errorf("Expected no todos left, got %s", resp.Body)
	}

	// A password change revokes the token
	resp, _ = do(t, "GET", "/api/users/request_code?email="+email, nil, "")
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected resend limit, got %v", resp.Code)
	}
	u, _ := store.UserByEmail(context.Background(), email)
	u.SetPassword("R0tatedPass")
	store.UpdateUser(context.Background(), u)

	resp, out = do(t, "GET", "/api/users/authenticate", nil, accessToken)
	if resp.Code != http.StatusUnauthorized || out.Status != "unauthorized" {
		t.Errorf("Expected revoked token to be rejected, got %v: %s", resp.Code, resp.Body)
	}
}

func TestRouterEdges(t *testing.T) {
	// Test case 1: Protected route without token
	t.Run("No token", func(t *testing.T) {
		resp, out := do(t, "GET", "/api/cards/feed", nil, "")
		if resp.Code != http.StatusUnauthorized {
			t.Errorf("Expected status Unauthorized, got %v", resp.Code)
		}
		if out.Message != "Authentication failed." {
			t.Errorf("Unexpected message: %q", out.Message)
		}
	})

	// Test case 2: Unknown endpoint
	t.Run("Unknown endpoint", func(t *testing.T) {
		resp, out := do(t, "GET", "/api/nothing", nil, "")
		if resp.Code != http.StatusNotFound || out.Message != "Requested endpoint not found." {
			t.Errorf("Unexpected response: %v %s", resp.Code, resp.Body)
		}
	})

	// Test case 3: Wrong method
	t.Run("Wrong method", func(t *testing.T) {
		resp, _ := do(t, "PATCH", "/api/users/confirm", nil, "")
		if resp.Code != http.StatusMethodNotAllowed {
			t.Errorf("Expected status MethodNotAllowed, got %v", resp.Code)
		}
	})

	// Test case 4: CORS preflight
	t.Run("Preflight", func(t *testing.T) {
		resp, _ := do(t, "OPTIONS", "/api/cards", nil, "")
		if resp.Code != http.StatusOK {
			t.Errorf("Expected status OK, got %v", resp.Code)
		}
		if got := resp.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Access-Token" {
			t.Errorf("Unexpected allowed headers %q", got)
		}
	})
}

func TestRateLimitedRouter(t *testing.T) {
	limited := newRouter(handlers.New(store, nil, token.NewIssuer("k", 0)), appmw.NewLimiter(1, 2))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/api/nothing", nil)
		resp := httptest.NewRecorder()
		limited.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
	}
	if codes[0] != http.StatusNotFound || codes[1] != http.StatusNotFound || codes[2] != http.StatusTooManyRequests {
		t.Errorf("Unexpected status sequence %v", codes)
	}
}

func TestDBCommands(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "cli.db")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DSN", dsn)
	t.Setenv("MODE", "testing")

	// Test case 1: Refused in production
	t.Run("Production", func(t *testing.T) {
		t.Setenv("MODE", "production")
		t.Setenv("SECRET_KEY", "prod-secret")
		if code := run([]string{"db", "init"}); code != 1 {
			t.Errorf("Expected exit code 1, got %d", code)
		}
	})

	// Test case 2: Init then delete a user
	t.Run("Init and user delete", func(t *testing.T) {
		if code := run([]string{"db", "init"}); code != 0 {
			t.Fatalf("db init exited with %d", code)
		}
		if code := run([]string{"user", "delete", "-email", "missing@example.com"}); code != 1 {
			t.Errorf("Expected exit code 1 for unknown user, got %d", code)
		}
		if code := run([]string{"user", "delete"}); code != 2 {
			t.Errorf("Expected usage exit code 2, got %d", code)
		}
	})

	// Test case 3: Unknown command
	t.Run("Unknown command", func(t *testing.T) {
		if code := run([]string{"frobnicate"}); code != 2 {
			t.Errorf("Expected exit code 2, got %d", code)
		}
	})
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
