package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/streakup/habit-tracker/internal/core/domain"
)

type stubUserRepo struct {
	users     map[string]*domain.User
	createErr error
	findErr   error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	if _, exists := r.users[user.Username]; exists {
		return nil, domain.ErrUserExists
	}
	copy := cloneUser(user)
	if copy.ID == "" {
		copy.ID = "id-" + user.Username
	}
	r.users[copy.Username] = cloneUser(copy)
	return cloneUser(copy), nil
}

func (r *stubUserRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	u, ok := r.users[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) ExistsByUsername(_ context.Context, username string) (bool, error) {
	if r.findErr != nil {
		return false, r.findErr
	}
	_, ok := r.users[username]
	return ok, nil
}

func newTestAuthService(repo *stubUserRepo) (*AuthService, *TokenService) {
	tokens := NewTokenService("secret", "habit-tracker", time.Hour, nil)
	return NewAuthService(repo, NewBcryptHasher(bcrypt.MinCost), tokens, zerolog.Nop()), tokens
}

func TestAuthService_Register_Success(t *testing.T) {
	repo := newStubUserRepo()
	svc, _ := newTestAuthService(repo)

	user, err := svc.Register(context.Background(), "alice", "pw1")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user == nil || user.ID == "" {
		t.Fatalf("expected user with id, got %+v", user)
	}
	if user.PasswordHash == "pw1" {
		t.Fatalf("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(repo.users["alice"].PasswordHash), []byte("pw1")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	svc, _ := newTestAuthService(newStubUserRepo())

	for _, tc := range []struct{ username, password string }{
		{"", "pw"},
		{"   ", "pw"},
		{"bob", ""},
	} {
		if _, err := svc.Register(context.Background(), tc.username, tc.password); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation for %q/%q, got %v", tc.username, tc.password, err)
		}
	}
}

func TestAuthService_Register_DuplicateKeepsFirstHash(t *testing.T) {
	repo := newStubUserRepo()
	svc, _ := newTestAuthService(repo)

	if _, err := svc.Register(context.Background(), "bob", "first"); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	original := repo.users["bob"].PasswordHash

	if _, err := svc.Register(context.Background(), "bob", "second"); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if repo.users["bob"].PasswordHash != original {
		t.Fatalf("stored hash was overwritten")
	}
}

func TestAuthService_Register_RaceOnCreate(t *testing.T) {
	repo := newStubUserRepo()
	repo.createErr = domain.ErrUserExists
	svc, _ := newTestAuthService(repo)

	if _, err := svc.Register(context.Background(), "carol", "pw"); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthService_Register_StoreError(t *testing.T) {
	repo := newStubUserRepo()
	repo.findErr = errors.New("connection refused")
	svc, _ := newTestAuthService(repo)

	_, err := svc.Register(context.Background(), "dave", "pw")
	if err == nil || errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	repo := newStubUserRepo()
	svc, tokens := newTestAuthService(repo)

	if _, err := svc.Register(context.Background(), "carol", "s3cret"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	token, err := svc.Login(context.Background(), "carol", "s3cret")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	sub, err := tokens.Validate(token)
	if err != nil {
		t.Fatalf("token invalid: %v", err)
	}
	if sub != "carol" {
		t.Fatalf("expected subject carol, got %q", sub)
	}
}

func TestAuthService_Login_FailuresAreIndistinguishable(t *testing.T) {
	repo := newStubUserRepo()
	svc, _ := newTestAuthService(repo)
	_, _ = svc.Register(context.Background(), "dave", "goodpass")

	_, wrongPassword := svc.Login(context.Background(), "dave", "badpass")
	_, unknownUser := svc.Login(context.Background(), "ghost", "badpass")
	_, empty := svc.Login(context.Background(), "", "")

	for _, err := range []error{wrongPassword, unknownUser, empty} {
		if err != domain.ErrInvalidCredentials {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	}
}

func TestAuthService_Login_DisabledUser(t *testing.T) {
	repo := newStubUserRepo()
	svc, _ := newTestAuthService(repo)
	_, _ = svc.Register(context.Background(), "erin", "pw")
	repo.users["erin"].Disabled = true

	if _, err := svc.Login(context.Background(), "erin", "pw"); err != domain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Login_StoreError(t *testing.T) {
	repo := newStubUserRepo()
	repo.findErr = errors.New("timeout")
	svc, _ := newTestAuthService(repo)

	_, err := svc.Login(context.Background(), "frank", "pw")
	if err == nil || errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected store error to surface, got %v", err)
	}
}
