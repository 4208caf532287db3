package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"modemode/internal/repository"
	"modemode/internal/repository/repositorytest"
)

// Set MODEMODE_TEST_POSTGRES_DSN to run against a disposable database.
func TestUserRepository(t *testing.T) {
	dsn := os.Getenv("MODEMODE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MODEMODE_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	db, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repositorytest.RunUserRepository(t, func(t *testing.T) repository.UserRepository {
		repo := NewUserRepository(db)
		require.NoError(t, repo.Init(ctx))
		_, err := db.ExecContext(ctx, `TRUNCATE users`)
		require.NoError(t, err)
		return repo
	})
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}
