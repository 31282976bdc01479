package model

import (
	"strings"
	"time"
)

// FederatedCredentialPrefix marks accounts provisioned through an external
// identity provider. The stored credential is "federated:<provider>" and can
// never satisfy password verification.
const FederatedCredentialPrefix = "federated:"

// User represents an account that owns reading-log entries.
// Credential holds either an Argon2id PHC string or a federated sentinel.
type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Credential string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsFederated reports whether the account carries a sentinel credential
// and therefore cannot authenticate with a password.
func (u *User) IsFederated() bool {
	return strings.HasPrefix(u.Credential, FederatedCredentialPrefix)
}

// FederatedCredential builds the sentinel credential for a provider.
func FederatedCredential(provider string) string {
	return FederatedCredentialPrefix + provider
}

// Principal is the authenticated identity stored in a session.
// It is a snapshot of the User at login time; later changes to the stored
// User are not reflected until re-login.
type Principal struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	LoginAt   time.Time `json:"login_at"`
	Federated bool      `json:"federated"`
}
