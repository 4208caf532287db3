package repository

import (
	"context"

	"modemode/internal/domain"
)

// UserRepository is the credential store.
//
// Create must be atomic with respect to email uniqueness: when two callers
// race with the same email exactly one succeeds and the other receives
// domain.ErrDuplicateEmail. Lookups return domain.ErrNotFound for missing
// records. Driver failures are wrapped with domain.ErrStorageUnavailable.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
}
