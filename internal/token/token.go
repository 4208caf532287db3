// Package token issues and verifies the HS256 bearer tokens handed to
// clients after signup and login. The server keeps no session state; a
// token is valid until it expires.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"modemode/internal/domain"
)

// Lifetime is how long an issued token stays valid.
const Lifetime = 7 * 24 * time.Hour

// Claims is the JWT payload.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// Manager signs and verifies tokens with a process-wide secret.
type Manager struct {
	secret []byte
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used when issuing tokens.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager returns a Manager signing with secret, which must not be empty.
func NewManager(secret string, opts ...Option) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	m := &Manager{
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Issue signs a token for user valid for Lifetime.
func (m *Manager) Issue(user *domain.User) (string, error) {
	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(Lifetime)),
		},
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.DisplayName,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature before looking at expiry, so a forged token
// is always reported as domain.ErrInvalidToken.
func (m *Manager) Verify(tokenString string) (*domain.Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrExpired
		}
		return nil, domain.ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, domain.ErrInvalidToken
	}

	out := &domain.Claims{
		UserID:      claims.UserID,
		Email:       claims.Email,
		DisplayName: claims.Name,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
