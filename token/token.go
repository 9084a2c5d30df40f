// Package token issues and checks access tokens. A token carries the user's
// email and current secret key, so rotating the key revokes it.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"rdolist/models"
)

var ErrInvalidToken = errors.New("invalid access token")

type Claims struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
	jwt.RegisteredClaims
}

type Issuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewIssuer signs with key. A zero ttl issues tokens without expiry.
func NewIssuer(key string, ttl time.Duration) *Issuer {
	return &Issuer{key: []byte(key), ttl: ttl, now: time.Now}
}

func (i *Issuer) Issue(u *models.User) (string, error) {
	now := i.now()
	claims := Claims{
		Email:  u.Email,
		Secret: u.SecretKey,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  fmt.Sprint(u.ID),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if i.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(i.ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature and expiry of raw and returns its claims.
func (i *Issuer) Parse(raw string) (*Claims, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return i.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Email == "" || claims.Secret == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
