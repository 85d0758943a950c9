package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("email already exists")
	ErrNoSession          = errors.New("not logged in")
	ErrSessionExpired     = errors.New("session expired")
	ErrMalformedToken     = errors.New("malformed access token")
)

// Claims mirrors what the auth service puts in its access tokens.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Session is a bearer token plus the claims read from it. The client cannot
// verify the signature (it does not hold the key); the claims are only used to
// tell who is logged in and whether the token has run out.
type Session struct {
	Token  string
	Claims Claims
}

func ParseSession(token string) (Session, error) {
	var c Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return Session{}, errors.Join(ErrMalformedToken, err)
	}
	if c.UserID == "" {
		c.UserID = c.Subject
	}
	return Session{Token: token, Claims: c}, nil
}

// ExpiresAt returns the token expiry, or the zero time when it has none.
func (s Session) ExpiresAt() time.Time {
	if s.Claims.ExpiresAt == nil {
		return time.Time{}
	}
	return s.Claims.ExpiresAt.Time
}

func (s Session) Expired(now time.Time) bool {
	exp := s.ExpiresAt()
	return !exp.IsZero() && !now.Before(exp)
}

// Valid reports an error when there is no usable token.
func (s Session) Valid(now time.Time) error {
	if s.Token == "" {
		return ErrNoSession
	}
	if s.Expired(now) {
		return ErrSessionExpired
	}
	return nil
}
