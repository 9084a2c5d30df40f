package middleware

import (
	"context"
	"crypto/subtle"
	"log"
	"net/http"

	"rdolist/models"
	"rdolist/response"
	"rdolist/token"
)

// TokenHeader carries the access token issued by the authenticate endpoint.
const TokenHeader = "Access-Token"

type contextKey struct{}

var userKey = contextKey{}

// UserFinder resolves the email stored in a token to a user.
type UserFinder interface {
	UserByEmail(ctx context.Context, email string) (*models.User, error)
}

// RequireAuth admits requests whose token names an existing user and still
// carries that user's current secret key.
func RequireAuth(issuer *token.Issuer, users UserFinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(TokenHeader)
			if raw == "" {
				response.Unauthorized(w)
				return
			}

			claims, err := issuer.Parse(raw)
			if err != nil {
				log.Printf("Auth Middleware - Token parsing error: %v", err)
				response.Unauthorized(w)
				return
			}

			user, err := users.UserByEmail(r.Context(), claims.Email)
			if err != nil {
				log.Printf("Auth Middleware - Unknown user %q: %v", claims.Email, err)
				response.Unauthorized(w)
				return
			}
			if subtle.ConstantTimeCompare([]byte(user.SecretKey), []byte(claims.Secret)) != 1 {
				log.Printf("Auth Middleware - Revoked token for user %d", user.ID)
				response.Unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// CurrentUser returns the user admitted by RequireAuth, or nil.
func CurrentUser(r *http.Request) *models.User {
	u, _ := r.Context().Value(userKey).(*models.User)
	return u
}
