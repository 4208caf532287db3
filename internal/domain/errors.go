package domain

import "errors"

var (
	// Storage layer.
	ErrNotFound           = errors.New("not found")
	ErrDuplicateEmail     = errors.New("email already exists")
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Auth flows.
	ErrMissingFields      = errors.New("missing required fields")
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")

	// Session tokens.
	ErrInvalidToken = errors.New("invalid token")
	ErrExpired      = errors.New("token expired")
)
