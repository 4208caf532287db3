package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"modemode/internal/domain"
	"modemode/internal/repository"
	"modemode/internal/repository/repositorytest"
)

func newTestRepo(t *testing.T) repository.UserRepository {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewUserRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func TestUserRepository(t *testing.T) {
	repositorytest.RunUserRepository(t, newTestRepo)
}

func TestUserRepository_InitIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.Init(context.Background()))
}

func TestUserRepository_ClosedDatabase(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	repo := NewUserRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	require.NoError(t, db.Close())

	err = repo.Create(context.Background(), &domain.User{Email: "a@x.com", DisplayName: "A", PasswordHash: "h"})
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)

	_, err = repo.GetByEmail(context.Background(), "a@x.com")
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)
}
