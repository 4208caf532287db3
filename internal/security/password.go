package security

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"

	"modemode/internal/domain"
)

// DefaultCost matches the work factor the service has always used.
const DefaultCost = 10

// MaxPasswordBytes is the longest input bcrypt reads; anything past it would be ignored.
const MaxPasswordBytes = 72

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, hash string) bool
}

// BcryptHasher runs bcrypt on at most `workers` goroutines at a time.
type BcryptHasher struct {
	cost int
	sem  chan struct{}
}

// NewBcryptHasher returns a hasher using cost (DefaultCost when out of
// range) and at most workers concurrent operations (NumCPU when <= 0).
func NewBcryptHasher(cost, workers int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &BcryptHasher{
		cost: cost,
		sem:  make(chan struct{}, workers),
	}
}

// Hash returns a bcrypt hash of plaintext with a fresh salt.
func (h *BcryptHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", fmt.Errorf("%w: password must be at most %d bytes", domain.ErrInvalidInput, MaxPasswordBytes)
	}
	if err := h.acquire(ctx); err != nil {
		return "", err
	}
	defer h.release()

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password must be at most %d bytes", domain.ErrInvalidInput, MaxPasswordBytes)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches hash. Malformed hashes, inputs
// longer than MaxPasswordBytes and a cancelled context all yield false.
func (h *BcryptHasher) Verify(ctx context.Context, plaintext, hash string) bool {
	if len(plaintext) > MaxPasswordBytes {
		return false
	}
	if err := h.acquire(ctx); err != nil {
		return false
	}
	defer h.release()

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

func (h *BcryptHasher) acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case h.sem <- struct{}{}:
		return nil
	}
}

func (h *BcryptHasher) release() { <-h.sem }

var _ PasswordHasher = (*BcryptHasher)(nil)
