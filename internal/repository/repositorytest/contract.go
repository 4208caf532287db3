// Package repositorytest holds behaviour every UserRepository must share.
package repositorytest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"modemode/internal/domain"
	"modemode/internal/repository"
)

// RunUserRepository exercises repo through the credential store contract.
// newRepo must return an empty, initialised repository.
func RunUserRepository(t *testing.T, newRepo func(t *testing.T) repository.UserRepository) {
	t.Run("create assigns id and timestamp", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		user := &domain.User{Email: "a@x.com", DisplayName: "A", PasswordHash: "hash"}
		require.NoError(t, repo.Create(ctx, user))
		require.NotEmpty(t, user.ID)
		require.False(t, user.CreatedAt.IsZero())

		got, err := repo.GetByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		require.Equal(t, user.ID, got.ID)
		require.Equal(t, "A", got.DisplayName)
		require.Equal(t, "hash", got.PasswordHash)

		byID, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		require.Equal(t, "a@x.com", byID.Email)
	})

	t.Run("ids are unique", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		first := &domain.User{Email: "one@x.com", DisplayName: "One", PasswordHash: "h"}
		second := &domain.User{Email: "two@x.com", DisplayName: "Two", PasswordHash: "h"}
		require.NoError(t, repo.Create(ctx, first))
		require.NoError(t, repo.Create(ctx, second))
		require.NotEqual(t, first.ID, second.ID)
	})

	t.Run("duplicate email", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		require.NoError(t, repo.Create(ctx, &domain.User{Email: "dup@x.com", DisplayName: "1", PasswordHash: "h"}))
		err := repo.Create(ctx, &domain.User{Email: "dup@x.com", DisplayName: "2", PasswordHash: "h"})
		require.ErrorIs(t, err, domain.ErrDuplicateEmail)

		got, err := repo.GetByEmail(ctx, "dup@x.com")
		require.NoError(t, err)
		require.Equal(t, "1", got.DisplayName)
	})

	t.Run("email is case sensitive", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		require.NoError(t, repo.Create(ctx, &domain.User{Email: "case@x.com", DisplayName: "lower", PasswordHash: "h"}))
		require.NoError(t, repo.Create(ctx, &domain.User{Email: "Case@x.com", DisplayName: "upper", PasswordHash: "h"}))
	})

	t.Run("missing user", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.GetByEmail(ctx, "nobody@x.com")
		require.ErrorIs(t, err, domain.ErrNotFound)
		_, err = repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("concurrent creates with one email", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		const n = 16
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			dupes     int
			other     []error
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := repo.Create(ctx, &domain.User{Email: "race@x.com", DisplayName: fmt.Sprint(i), PasswordHash: "h"})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, domain.ErrDuplicateEmail):
					dupes++
				default:
					other = append(other, err)
				}
			}(i)
		}
		wg.Wait()

		require.Empty(t, other)
		require.Equal(t, 1, succeeded)
		require.Equal(t, n-1, dupes)
	})
}
