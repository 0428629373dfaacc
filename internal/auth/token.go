package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token fails verification for any reason
// other than expiry.
var ErrInvalidToken = errors.New("invalid token")

// ErrExpiredToken is returned when a token's validity window has passed.
var ErrExpiredToken = errors.New("expired token")

// Claims is the JWT payload. It carries enough identity to authorize most
// requests without a user lookup: id, name, email and team memberships.
type Claims struct {
	jwt.RegisteredClaims
	Name  string           `json:"name"`
	Email string           `json:"email"`
	Teams []TeamMembership `json:"teams"`
}

// Tokens issues and verifies HS256 bearer tokens.
type Tokens struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time // injectable clock for testing
}

// NewTokens creates a token service with the given signing secret and validity.
func NewTokens(secret string, validity time.Duration) *Tokens {
	return &Tokens{
		secret:   []byte(secret),
		validity: validity,
		now:      time.Now,
	}
}

// Issue signs a token for the given user.
func (t *Tokens) Issue(u *User) (string, error) {
	now := t.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.validity)),
		},
		Name:  u.Name,
		Email: u.Email,
		Teams: u.Teams,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token string, returning the embedded user.
func (t *Tokens) Verify(tokenString string) (*User, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return t.now() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return &User{
		ID:    claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
		Teams: claims.Teams,
	}, nil
}
