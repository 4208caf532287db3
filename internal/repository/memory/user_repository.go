// Package memory provides an in-process credential store for tests and
// throwaway runs. Data does not survive a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"modemode/internal/domain"
	"modemode/internal/repository"
)

// UserRepository keys users by email in a sync.Map, so the uniqueness check
// and the insert happen in one LoadOrStore with per-key atomicity.
type UserRepository struct {
	byEmail sync.Map // email -> *domain.User
	byID    sync.Map // id -> *domain.User
}

func NewUserRepository() repository.UserRepository {
	return &UserRepository{}
}

func (r *UserRepository) Init(ctx context.Context) error {
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	record := &domain.User{
		ID:           uuid.NewString(),
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		PasswordHash: user.PasswordHash,
		CreatedAt:    time.Now().UTC(),
	}
	if _, loaded := r.byEmail.LoadOrStore(record.Email, record); loaded {
		return domain.ErrDuplicateEmail
	}
	r.byID.Store(record.ID, record)

	user.ID = record.ID
	user.CreatedAt = record.CreatedAt
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	v, ok := r.byEmail.Load(email)
	if !ok {
		return nil, domain.ErrNotFound
	}
	u := *v.(*domain.User)
	return &u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	v, ok := r.byID.Load(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	u := *v.(*domain.User)
	return &u, nil
}
