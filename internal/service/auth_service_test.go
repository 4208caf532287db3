package service_test

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"modemode/internal/domain"
	"modemode/internal/repository"
	"modemode/internal/repository/memory"
	"modemode/internal/repository/sqlite"
	"modemode/internal/security"
	"modemode/internal/service"
	"modemode/internal/token"
)

const testJWTSecret = "test-secret-key-for-unit-tests"

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestAuthService(t *testing.T, users repository.UserRepository) (service.AuthService, *token.Manager) {
	t.Helper()
	tokens, err := token.NewManager(testJWTSecret)
	require.NoError(t, err)
	// Use cost 4 for fast tests.
	hasher := security.NewBcryptHasher(bcrypt.MinCost, 4)
	return service.NewAuthService(users, hasher, tokens, quietLogger()), tokens
}

func TestSignup_ThenLogin(t *testing.T) {
	auth, tokens := newTestAuthService(t, memory.NewUserRepository())
	ctx := context.Background()

	signed, err := auth.Signup(ctx, "A", "a@x.com", "Secret123!")
	require.NoError(t, err)
	require.Equal(t, "A", signed.User.DisplayName)
	require.Equal(t, "a@x.com", signed.User.Email)
	require.NotEmpty(t, signed.Token)
	require.Empty(t, signed.User.PasswordHash)

	claims, err := tokens.Verify(signed.Token)
	require.NoError(t, err)
	require.Equal(t, signed.User.ID, claims.UserID)

	logged, err := auth.Login(ctx, "a@x.com", "Secret123!")
	require.NoError(t, err)
	require.Equal(t, "A", logged.User.DisplayName)
	require.Equal(t, "a@x.com", logged.User.Email)
	require.Equal(t, signed.User.ID, logged.User.ID)
	require.NotEmpty(t, logged.Token)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	auth, _ := newTestAuthService(t, memory.NewUserRepository())
	ctx := context.Background()

	_, err := auth.Signup(ctx, "A", "a@x.com", "Secret123!")
	require.NoError(t, err)

	_, err = auth.Signup(ctx, "B", "a@x.com", "Other456!")
	require.ErrorIs(t, err, domain.ErrEmailTaken)

	// the original password still works
	_, err = auth.Login(ctx, "a@x.com", "Secret123!")
	require.NoError(t, err)
}

func TestSignup_MissingFields(t *testing.T) {
	auth, _ := newTestAuthService(t, memory.NewUserRepository())
	ctx := context.Background()

	tests := []struct {
		name, display, email, password string
	}{
		{"empty name", "", "a@x.com", "pw"},
		{"blank name", "   ", "a@x.com", "pw"},
		{"empty email", "A", "", "pw"},
		{"empty password", "A", "a@x.com", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := auth.Signup(ctx, tc.display, tc.email, tc.password)
			require.ErrorIs(t, err, domain.ErrMissingFields)
		})
	}
}

func TestSignup_NoWriteOnFailure(t *testing.T) {
	users := memory.NewUserRepository()
	auth, _ := newTestAuthService(t, users)
	ctx := context.Background()

	_, err := auth.Signup(ctx, "A", "long@x.com", string(make([]byte, 100)))
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = users.GetByEmail(ctx, "long@x.com")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSignup_ConcurrentSameEmail(t *testing.T) {
	stores := map[string]func(t *testing.T) repository.UserRepository{
		"memory": func(t *testing.T) repository.UserRepository { return memory.NewUserRepository() },
		"sqlite": func(t *testing.T) repository.UserRepository {
			db, err := sqlite.Open(filepath.Join(t.TempDir(), "auth.db"))
			require.NoError(t, err)
			t.Cleanup(func() { db.Close() })
			repo := sqlite.NewUserRepository(db)
			require.NoError(t, repo.Init(context.Background()))
			return repo
		},
	}

	for name, newRepo := range stores {
		t.Run(name, func(t *testing.T) {
			auth, _ := newTestAuthService(t, newRepo(t))
			ctx := context.Background()

			const n = 12
			var (
				wg    sync.WaitGroup
				start = make(chan struct{})
				errs  = make([]error, n)
			)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					_, errs[i] = auth.Signup(ctx, "Racer", "race@x.com", "Secret123!")
				}(i)
			}
			close(start)
			wg.Wait()

			var ok, taken int
			for _, err := range errs {
				switch {
				case err == nil:
					ok++
				case errors.Is(err, domain.ErrEmailTaken):
					taken++
				default:
					t.Fatalf("unexpected error: %v", err)
				}
			}
			require.Equal(t, 1, ok)
			require.Equal(t, n-1, taken)
		})
	}
}

func TestLogin_EnumerationResistance(t *testing.T) {
	auth, _ := newTestAuthService(t, memory.NewUserRepository())
	ctx := context.Background()

	_, err := auth.Signup(ctx, "A", "a@x.com", "Secret123!")
	require.NoError(t, err)

	_, wrongPassword := auth.Login(ctx, "a@x.com", "wrong")
	_, unknownEmail := auth.Login(ctx, "nobody@x.com", "Secret123!")

	require.ErrorIs(t, wrongPassword, domain.ErrInvalidCredentials)
	require.ErrorIs(t, unknownEmail, domain.ErrInvalidCredentials)
	require.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestLogin_MissingFields(t *testing.T) {
	auth, _ := newTestAuthService(t, memory.NewUserRepository())
	ctx := context.Background()

	_, err := auth.Login(ctx, "", "pw")
	require.ErrorIs(t, err, domain.ErrMissingFields)
	_, err = auth.Login(ctx, "a@x.com", "")
	require.ErrorIs(t, err, domain.ErrMissingFields)
}

func TestLogin_EmailIsCaseSensitive(t *testing.T) {
	auth, _ := newTestAuthService(t, memory.NewUserRepository())
	ctx := context.Background()

	_, err := auth.Signup(ctx, "A", "a@x.com", "Secret123!")
	require.NoError(t, err)

	_, err = auth.Login(ctx, "A@x.com", "Secret123!")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthenticate_AndCurrentUser(t *testing.T) {
	auth, _ := newTestAuthService(t, memory.NewUserRepository())
	ctx := context.Background()

	session, err := auth.Signup(ctx, "A", "a@x.com", "Secret123!")
	require.NoError(t, err)

	claims, err := auth.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	require.Equal(t, "a@x.com", claims.Email)

	user, err := auth.CurrentUser(ctx, claims)
	require.NoError(t, err)
	require.Equal(t, session.User.ID, user.ID)
	require.Empty(t, user.PasswordHash)

	_, err = auth.Authenticate(ctx, "")
	require.ErrorIs(t, err, domain.ErrInvalidToken)
	_, err = auth.Authenticate(ctx, "garbage")
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestCurrentUser_UnknownUser(t *testing.T) {
	auth, _ := newTestAuthService(t, memory.NewUserRepository())

	_, err := auth.CurrentUser(context.Background(), &domain.Claims{UserID: "ghost"})
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

type brokenRepo struct {
	repository.UserRepository
	err error
}

func (r brokenRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return nil, r.err
}

func (r brokenRepo) Create(ctx context.Context, user *domain.User) error {
	return r.err
}

func TestStorageUnavailable(t *testing.T) {
	auth, _ := newTestAuthService(t, brokenRepo{err: errors.New("disk on fire")})
	ctx := context.Background()

	_, err := auth.Signup(ctx, "A", "a@x.com", "Secret123!")
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)

	_, err = auth.Login(ctx, "a@x.com", "Secret123!")
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)
	require.NotErrorIs(t, err, domain.ErrInvalidCredentials)
}

// raceRepo reports the email as free on lookup but taken on insert.
type raceRepo struct {
	repository.UserRepository
}

func (raceRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return nil, domain.ErrNotFound
}

func (raceRepo) Create(ctx context.Context, user *domain.User) error {
	return domain.ErrDuplicateEmail
}

func TestSignup_DuplicateOnInsertIsEmailTaken(t *testing.T) {
	auth, _ := newTestAuthService(t, raceRepo{})

	_, err := auth.Signup(context.Background(), "A", "a@x.com", "Secret123!")
	require.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestLogin_SuffixPastBcryptLimitIsRejected(t *testing.T) {
	auth, _ := newTestAuthService(t, memory.NewUserRepository())
	ctx := context.Background()

	password := strings.Repeat("a", security.MaxPasswordBytes)
	_, err := auth.Signup(ctx, "A", "long@x.com", password)
	require.NoError(t, err)

	_, err = auth.Login(ctx, "long@x.com", password)
	require.NoError(t, err)

	_, err = auth.Login(ctx, "long@x.com", password+"DIFFERENT-SUFFIX")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

// countingHasher records how often Verify runs.
type countingHasher struct {
	security.PasswordHasher
	verifies atomic.Int32
}

func (h *countingHasher) Verify(ctx context.Context, plaintext, hash string) bool {
	h.verifies.Add(1)
	return h.PasswordHasher.Verify(ctx, plaintext, hash)
}

func TestLogin_UnknownEmailStillVerifies(t *testing.T) {
	tokens, err := token.NewManager(testJWTSecret)
	require.NoError(t, err)
	hasher := &countingHasher{PasswordHasher: security.NewBcryptHasher(bcrypt.MinCost, 2)}
	auth := service.NewAuthService(memory.NewUserRepository(), hasher, tokens, quietLogger())
	ctx := context.Background()

	_, err = auth.Signup(ctx, "A", "a@x.com", "Secret123!")
	require.NoError(t, err)

	_, err = auth.Login(ctx, "nobody@x.com", "Secret123!")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	require.Equal(t, int32(1), hasher.verifies.Load())

	_, err = auth.Login(ctx, "a@x.com", "wrong")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	require.Equal(t, int32(2), hasher.verifies.Load())
}
