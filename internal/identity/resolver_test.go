package identity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/booklog/booklog/internal/auth"
	"github.com/booklog/booklog/internal/model"
	"github.com/booklog/booklog/internal/repository"
)

// fakeUserStore is an in-memory UserStore keyed by email.
type fakeUserStore struct {
	users   map[string]*model.User
	failErr error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*model.User)}
}

func (s *fakeUserStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if s.failErr != nil {
		return nil, s.failErr
	}
	user, ok := s.users[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (s *fakeUserStore) CreateUser(ctx context.Context, user *model.User) error {
	if s.failErr != nil {
		return s.failErr
	}
	if _, ok := s.users[user.Email]; ok {
		return repository.ErrEmailExists
	}
	s.users[user.Email] = user
	return nil
}

func (s *fakeUserStore) GetOrCreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	if s.failErr != nil {
		return nil, s.failErr
	}
	if existing, ok := s.users[user.Email]; ok {
		return existing, nil
	}
	s.users[user.Email] = user
	return user, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedLocalUser(t *testing.T, store *fakeUserStore, email, password string) *model.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	user := &model.User{ID: "user-" + email, Email: email, Credential: hash}
	store.users[email] = user
	return user
}

func TestLogin_Success(t *testing.T) {
	t.Parallel()

	store := newFakeUserStore()
	seeded := seedLocalUser(t, store, "reader@example.com", "opensesame")
	r := NewResolver(store, LinkAuto, testLogger())

	user, err := r.Login(context.Background(), "reader@example.com", "opensesame")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if user.ID != seeded.ID {
		t.Errorf("Login returned user %q, want %q", user.ID, seeded.ID)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	t.Parallel()

	store := newFakeUserStore()
	seedLocalUser(t, store, "reader@example.com", "opensesame")
	r := NewResolver(store, LinkAuto, testLogger())

	_, err := r.Login(context.Background(), "reader@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login with wrong password = %v, want ErrInvalidCredentials", err)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	t.Parallel()

	store := newFakeUserStore()
	r := NewResolver(store, LinkAuto, testLogger())

	_, err := r.Login(context.Background(), "nobody@example.com", "whatever")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login with unknown email = %v, want ErrInvalidCredentials", err)
	}
}

func TestLogin_FederatedAccount(t *testing.T) {
	t.Parallel()

	// A federated account has no password; any attempt must present exactly
	// like a wrong password.
	store := newFakeUserStore()
	store.users["reader@example.com"] = &model.User{
		ID:         "user-1",
		Email:      "reader@example.com",
		Credential: model.FederatedCredential("google"),
	}
	r := NewResolver(store, LinkAuto, testLogger())

	_, err := r.Login(context.Background(), "reader@example.com", "anything")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login against federated account = %v, want ErrInvalidCredentials", err)
	}
}

func TestLogin_StoreFault(t *testing.T) {
	t.Parallel()

	store := newFakeUserStore()
	store.failErr = errors.New("connection refused")
	r := NewResolver(store, LinkAuto, testLogger())

	_, err := r.Login(context.Background(), "reader@example.com", "opensesame")
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login with store fault = %v, want internal error", err)
	}
}

func TestRegister_Success(t *testing.T) {
	t.Parallel()

	store := newFakeUserStore()
	r := NewResolver(store, LinkAuto, testLogger())

	user, err := r.Register(context.Background(), "new@example.com", "opensesame")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.ID == "" {
		t.Error("Register should assign an ID")
	}
	if user.IsFederated() {
		t.Error("Local registration should not produce a federated account")
	}

	// The new credential must verify
	match, err := auth.VerifyPassword("opensesame", user.Credential)
	if err != nil || !match {
		t.Errorf("Stored credential should verify: match=%v err=%v", match, err)
	}
}

func TestRegister_EmailTaken(t *testing.T) {
	t.Parallel()

	store := newFakeUserStore()
	seedLocalUser(t, store, "reader@example.com", "opensesame")
	r := NewResolver(store, LinkAuto, testLogger())

	_, err := r.Register(context.Background(), "reader@example.com", "different")
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("Register with existing email = %v, want ErrEmailTaken", err)
	}
}

func TestResolveFederated_ProvisionsNewAccount(t *testing.T) {
	t.Parallel()

	store := newFakeUserStore()
	r := NewResolver(store, LinkAuto, testLogger())

	user, err := r.ResolveFederated(context.Background(), Profile{
		Provider:      "google",
		Email:         "new@example.com",
		EmailVerified: true,
	})
	if err != nil {
		t.Fatalf("ResolveFederated failed: %v", err)
	}
	if !user.IsFederated() {
		t.Error("Provisioned account should carry a federated sentinel credential")
	}
	if user.Credential != "federated:google" {
		t.Errorf("Credential = %q, want federated:google", user.Credential)
	}
}

func TestResolveFederated_ReturnsExistingFederated(t *testing.T) {
	t.Parallel()

	store := newFakeUserStore()
	existing := &model.User{
		ID:         "user-1",
		Email:      "reader@example.com",
		Credential: model.FederatedCredential("google"),
	}
	store.users[existing.Email] = existing
	r := NewResolver(store, LinkDeny, testLogger())

	user, err := r.ResolveFederated(context.Background(), Profile{
		Provider: "google",
		Email:    "reader@example.com",
	})
	if err != nil {
		t.Fatalf("ResolveFederated failed: %v", err)
	}
	if user.ID != existing.ID {
		t.Errorf("ResolveFederated returned user %q, want %q", user.ID, existing.ID)
	}
}

func TestResolveFederated_AutoLinksLocalAccount(t *testing.T) {
	t.Parallel()

	store := newFakeUserStore()
	seeded := seedLocalUser(t, store, "reader@example.com", "opensesame")
	r := NewResolver(store, LinkAuto, testLogger())

	user, err := r.ResolveFederated(context.Background(), Profile{
		Provider: "google",
		Email:    "reader@example.com",
	})
	if err != nil {
		t.Fatalf("ResolveFederated failed: %v", err)
	}
	if user.ID != seeded.ID {
		t.Errorf("Auto policy should bind to the existing account, got %q want %q", user.ID, seeded.ID)
	}
	// Linking must not overwrite the local credential
	if user.IsFederated() {
		t.Error("Linking should leave the local password credential in place")
	}
}

func TestResolveFederated_DenyPolicyRefusesLink(t *testing.T) {
	t.Parallel()

	store := newFakeUserStore()
	seedLocalUser(t, store, "reader@example.com", "opensesame")
	r := NewResolver(store, LinkDeny, testLogger())

	_, err := r.ResolveFederated(context.Background(), Profile{
		Provider: "google",
		Email:    "reader@example.com",
	})
	if !errors.Is(err, ErrLinkRequired) {
		t.Errorf("Deny policy over local account = %v, want ErrLinkRequired", err)
	}
}

func TestResolveFederated_MissingEmail(t *testing.T) {
	t.Parallel()

	store := newFakeUserStore()
	r := NewResolver(store, LinkAuto, testLogger())

	_, err := r.ResolveFederated(context.Background(), Profile{Provider: "google"})
	if !errors.Is(err, ErrProfileIncomplete) {
		t.Errorf("ResolveFederated without email = %v, want ErrProfileIncomplete", err)
	}
}

func TestParseLinkPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want LinkPolicy
	}{
		{"auto", "auto", LinkAuto},
		{"deny", "deny", LinkDeny},
		{"empty defaults to auto", "", LinkAuto},
		{"unknown defaults to auto", "strict", LinkAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt := tt
			t.Parallel()

			if got := ParseLinkPolicy(tt.raw); got != tt.want {
				t.Errorf("ParseLinkPolicy(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
