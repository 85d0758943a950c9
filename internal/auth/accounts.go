package auth

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const (
	RoleUser       = "user"
	minPasswordLen = 8
)

type User struct {
	ID    string
	Email string
	Hash  []byte
	Role  string
}

// UserStore keeps the accounts behind Server. Create returns ErrEmailExists
// for a taken email; Verify returns ErrInvalidCredentials for an unknown email
// or a wrong password alike.
type UserStore interface {
	Create(ctx context.Context, u User, password string) error
	Verify(ctx context.Context, email, password string) (User, error)
	Ping(ctx context.Context) error
}

type MemUsers struct {
	mu      sync.RWMutex
	byEmail map[string]User
}

func NewMemUsers() *MemUsers {
	return &MemUsers{byEmail: make(map[string]User)}
}

func (s *MemUsers) Ping(context.Context) error { return nil }

func (s *MemUsers) Create(_ context.Context, u User, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	u.Email = normalizeEmail(u.Email)
	u.Hash = hash

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[u.Email]; ok {
		return ErrEmailExists
	}
	s.byEmail[u.Email] = u
	return nil
}

func (s *MemUsers) Verify(_ context.Context, email, password string) (User, error) {
	s.mu.RLock()
	u, ok := s.byEmail[normalizeEmail(email)]
	s.mu.RUnlock()

	if !ok {
		return User{}, ErrInvalidCredentials
	}
	if err := checkPassword(u.Hash, password); err != nil {
		return User{}, err
	}
	return u, nil
}

func hashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(password)), bcrypt.DefaultCost)
}

func checkPassword(hash []byte, password string) error {
	if err := bcrypt.CompareHashAndPassword(hash, []byte(strings.TrimSpace(password))); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
