// Package identity resolves local and federated credentials to accounts.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/booklog/booklog/internal/auth"
	"github.com/booklog/booklog/internal/model"
	"github.com/booklog/booklog/internal/repository"
)

// Common errors for identity resolution.
var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	// Callers must not distinguish the two cases externally.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken indicates a registration against an existing email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrLinkRequired indicates a federated login hit an existing local
	// account and the link policy refuses an implicit merge.
	ErrLinkRequired = errors.New("account linking requires confirmation")
	// ErrProfileIncomplete indicates a federated profile without a usable email.
	ErrProfileIncomplete = errors.New("federated profile missing email")
)

// LinkPolicy decides what happens when a federated login arrives for an
// email that already has an account.
type LinkPolicy string

const (
	// LinkAuto binds the login to the existing account regardless of how it
	// was created. This matches the historical behavior and is the default.
	LinkAuto LinkPolicy = "auto"
	// LinkDeny refuses a federated login onto an account that holds a local
	// password credential, closing the silent account-takeover path.
	LinkDeny LinkPolicy = "deny"
)

// ParseLinkPolicy maps a raw config value to a policy, defaulting to auto.
func ParseLinkPolicy(raw string) LinkPolicy {
	if LinkPolicy(raw) == LinkDeny {
		return LinkDeny
	}
	return LinkAuto
}

// Profile is a verified identity asserted by an external provider.
type Profile struct {
	Provider      string
	Email         string
	EmailVerified bool
}

// UserStore is the account persistence interface the resolver needs.
// *repository.Repository satisfies it.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
	GetOrCreateUser(ctx context.Context, user *model.User) (*model.User, error)
}

// Resolver produces a canonical User from a credential or federated profile.
type Resolver struct {
	store  UserStore
	policy LinkPolicy
	logger *slog.Logger
}

// NewResolver creates a Resolver with the given linking policy.
func NewResolver(store UserStore, policy LinkPolicy, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		policy: policy,
		logger: logger,
	}
}

// Login verifies a local email/password credential.
// Unknown email and wrong password both return ErrInvalidCredentials; only
// the internal log line differs. A hashing fault is an internal error,
// never a silent authentication success or failure.
func (r *Resolver) Login(ctx context.Context, email, password string) (*model.User, error) {
	user, err := r.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			r.logger.Info("login failed", slog.String("reason", "unknown_email"))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	match, err := auth.VerifyPassword(password, user.Credential)
	if err != nil {
		// Federated sentinel credentials land here (not valid PHC strings)
		// and present as an ordinary credential mismatch.
		if errors.Is(err, auth.ErrInvalidHash) && user.IsFederated() {
			r.logger.Info("login failed", slog.String("reason", "federated_account"))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("verify credential: %w", err)
	}
	if !match {
		r.logger.Info("login failed", slog.String("reason", "wrong_password"))
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// Register creates a local account.
// A duplicate email resolves to ErrEmailTaken so the boundary can send the
// user to the login page instead of erroring.
func (r *Resolver) Register(ctx context.Context, email, password string) (*model.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:         uuid.New().String(),
		Email:      email,
		Credential: hash,
		CreatedAt:  time.Now(),
	}

	if err := r.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	r.logger.Info("user registered", slog.String("user_id", user.ID))
	return user, nil
}

// ResolveFederated maps a verified provider profile to an account,
// provisioning one with a sentinel credential on first login. An existing
// account with the same email is bound per the link policy.
func (r *Resolver) ResolveFederated(ctx context.Context, profile Profile) (*model.User, error) {
	if profile.Email == "" {
		return nil, ErrProfileIncomplete
	}

	existing, err := r.store.GetUserByEmail(ctx, profile.Email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if existing != nil {
		if r.policy == LinkDeny && !existing.IsFederated() {
			r.logger.Warn("federated login refused",
				slog.String("provider", profile.Provider),
				slog.String("user_id", existing.ID),
			)
			return nil, ErrLinkRequired
		}
		return existing, nil
	}

	// First federated login: auto-provision. GetOrCreateUser absorbs the
	// race against a concurrent signup for the same email.
	user, err := r.store.GetOrCreateUser(ctx, &model.User{
		ID:         uuid.New().String(),
		Email:      profile.Email,
		Credential: model.FederatedCredential(profile.Provider),
	})
	if err != nil {
		return nil, fmt.Errorf("provision federated user: %w", err)
	}

	r.logger.Info("federated user resolved",
		slog.String("provider", profile.Provider),
		slog.String("user_id", user.ID),
	)
	return user, nil
}
