package models

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	// CodeResendInterval is how long a user must wait before a new
	// verification code is issued.
	CodeResendInterval = 5 * time.Minute
	// CodeLifetime bounds how long an issued code stays valid.
	CodeLifetime = 60 * time.Minute

	secretKeySize  = 12
	secretCodeSize = 6
)

var ErrCodeTooSoon = errors.New("verification code requested too soon")

const (
	alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	digits       = "0123456789"
)

func randomString(size int, alphabet string) (string, error) {
	b := make([]byte, size)
	max := big.NewInt(int64(len(alphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = alphabet[n.Int64()]
	}
	return string(b), nil
}

// SetPassword hashes the password and rotates the secret key, which
// invalidates every token issued before the change.
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	key, err := randomString(secretKeySize, alphanumeric)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	u.SecretKey = key
	return nil
}

func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// IssueCode sets a fresh numeric verification code. It returns
// ErrCodeTooSoon while the previous code is younger than CodeResendInterval.
func (u *User) IssueCode(now time.Time) (string, error) {
	if u.CodeSentAt != nil && now.Sub(*u.CodeSentAt) <= CodeResendInterval {
		return "", ErrCodeTooSoon
	}
	code, err := randomString(secretCodeSize, digits)
	if err != nil {
		return "", err
	}
	u.SecretCode = &code
	u.CodeSentAt = &now
	return code, nil
}

// VerifyCode checks the supplied code against the outstanding one.
func (u *User) VerifyCode(code string, now time.Time) bool {
	if u.SecretCode == nil || u.CodeSentAt == nil {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(*u.SecretCode), []byte(code)) != 1 {
		return false
	}
	return now.Sub(*u.CodeSentAt) <= CodeLifetime
}

// ClearCode consumes the outstanding code. CodeSentAt is kept so the resend
// interval still applies.
func (u *User) ClearCode() {
	u.SecretCode = nil
}

func (u *User) Confirm(now time.Time) {
	u.ClearCode()
	u.ConfirmedAt = &now
	u.Active = true
}

func (u *User) IsConfirmed() bool {
	return u.ConfirmedAt != nil
}
