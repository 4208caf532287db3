package domain

import "time"

// User represents a registered account.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}

// Claims is the identity carried by a session token.
type Claims struct {
	UserID      string
	Email       string
	DisplayName string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Session is returned by a successful signup or login.
type Session struct {
	User  *User
	Token string
}
