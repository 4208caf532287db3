package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"modemode/internal/domain"
	"modemode/internal/repository"
	"modemode/internal/security"
)

// TokenIssuer creates and checks session tokens.
type TokenIssuer interface {
	Issue(user *domain.User) (string, error)
	Verify(token string) (*domain.Claims, error)
}

// AuthService describes account signup, login and token checks.
type AuthService interface {
	Signup(ctx context.Context, name, email, password string) (*domain.Session, error)
	Login(ctx context.Context, email, password string) (*domain.Session, error)
	Authenticate(ctx context.Context, token string) (*domain.Claims, error)
	CurrentUser(ctx context.Context, claims *domain.Claims) (*domain.User, error)
}

type authService struct {
	users  repository.UserRepository
	hasher security.PasswordHasher
	tokens TokenIssuer
	log    logrus.FieldLogger

	// decoy is compared against on unknown emails so both login failures
	// cost one hash verification.
	decoyOnce sync.Once
	decoy     string
}

func NewAuthService(users repository.UserRepository, hasher security.PasswordHasher, tokens TokenIssuer, log logrus.FieldLogger) AuthService {
	if log == nil {
		log = logrus.New()
	}
	return &authService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		log:    log.WithField("component", "auth"),
	}
}

func (s *authService) Signup(ctx context.Context, name, email, password string) (*domain.Session, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return nil, domain.ErrMissingFields
	}

	// Fast path only; Create below is what actually enforces uniqueness.
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		s.log.WithField("email", email).Debug("signup rejected: email taken")
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, s.storageFailure("lookup user", err)
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:        email,
		DisplayName:  name,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			s.log.WithField("email", email).Debug("signup lost race: email taken")
			return nil, domain.ErrEmailTaken
		}
		return nil, s.storageFailure("create user", err)
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "email": email}).Info("user signed up")
	return s.session(user)
}

func (s *authService) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, domain.ErrMissingFields
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.hasher.Verify(ctx, password, s.decoyHash(ctx))
			s.log.WithField("email", email).Debug("login rejected")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, s.storageFailure("lookup user", err)
	}

	if !s.hasher.Verify(ctx, password, user.PasswordHash) {
		s.log.WithField("email", email).Debug("login rejected")
		return nil, domain.ErrInvalidCredentials
	}

	return s.session(user)
}

func (s *authService) Authenticate(ctx context.Context, token string) (*domain.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrInvalidToken
	}
	return s.tokens.Verify(token)
}

func (s *authService) CurrentUser(ctx context.Context, claims *domain.Claims) (*domain.User, error) {
	if claims == nil {
		return nil, domain.ErrInvalidToken
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, s.storageFailure("lookup user", err)
	}
	return sanitizeUser(user), nil
}

func (s *authService) decoyHash(ctx context.Context) string {
	s.decoyOnce.Do(func() {
		hash, err := s.hasher.Hash(context.WithoutCancel(ctx), "decoy-password-never-issued")
		if err != nil {
			s.log.WithError(err).Warn("decoy hash unavailable")
			return
		}
		s.decoy = hash
	})
	return s.decoy
}

func (s *authService) session(user *domain.User) (*domain.Session, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &domain.Session{User: sanitizeUser(user), Token: token}, nil
}

func (s *authService) storageFailure(op string, err error) error {
	s.log.WithError(err).WithField("kind", "storage_unavailable").Errorf("%s failed", op)
	if errors.Is(err, domain.ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		CreatedAt:   user.CreatedAt,
	}
}
