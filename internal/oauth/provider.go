// Package oauth implements the authorization-code flow against external
// identity providers. State nonces live in Redis so a callback can land on
// any instance.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/booklog/booklog/internal/identity"
)

// Flow errors.
var (
	ErrStateMismatch   = errors.New("unknown or expired oauth state")
	ErrExchangeFailed  = errors.New("provider token exchange failed")
	ErrProfileFetch    = errors.New("provider profile fetch failed")
	ErrProviderMissing = errors.New("provider not configured")
)

// ProviderConfig describes an external OAuth provider.
type ProviderConfig struct {
	Name         string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Scopes       []string
}

// Google builds the provider configuration for Google sign-in.
func Google(clientID, clientSecret, redirectURI string) ProviderConfig {
	return ProviderConfig{
		Name:         "google",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURI:  redirectURI,
		AuthURL:      "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:     "https://oauth2.googleapis.com/token",
		UserInfoURL:  "https://www.googleapis.com/oauth2/v3/userinfo",
		Scopes:       []string{"openid", "email", "profile"},
	}
}

// Configured reports whether the provider has credentials set.
func (p ProviderConfig) Configured() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// StateStore persists one-shot state nonces. *cache.Cache satisfies it.
type StateStore interface {
	SetOAuthState(ctx context.Context, state, provider string) error
	ConsumeOAuthState(ctx context.Context, state string) (string, error)
}

// Client drives the code flow for one provider.
type Client struct {
	provider ProviderConfig
	states   StateStore
	http     *http.Client
}

// NewClient creates a flow client with a bounded HTTP budget per
// provider call.
func NewClient(provider ProviderConfig, states StateStore, timeout time.Duration) *Client {
	return &Client{
		provider: provider,
		states:   states,
		http:     &http.Client{Timeout: timeout},
	}
}

// Start issues a state nonce and returns the provider authorization URL to
// redirect the user to.
func (c *Client) Start(ctx context.Context) (string, error) {
	if !c.provider.Configured() {
		return "", ErrProviderMissing
	}

	state, err := newState()
	if err != nil {
		return "", err
	}
	if err := c.states.SetOAuthState(ctx, state, c.provider.Name); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}

	query := url.Values{}
	query.Set("response_type", "code")
	query.Set("client_id", c.provider.ClientID)
	query.Set("redirect_uri", c.provider.RedirectURI)
	query.Set("scope", strings.Join(c.provider.Scopes, " "))
	query.Set("state", state)

	authURL, err := url.Parse(c.provider.AuthURL)
	if err != nil {
		return "", fmt.Errorf("invalid provider auth URL: %w", err)
	}
	authURL.RawQuery = query.Encode()
	return authURL.String(), nil
}

// Callback validates the state nonce, exchanges the code and fetches the
// provider profile.
func (c *Client) Callback(ctx context.Context, state, code string) (identity.Profile, error) {
	provider, err := c.states.ConsumeOAuthState(ctx, state)
	if err != nil {
		return identity.Profile{}, fmt.Errorf("consume oauth state: %w", err)
	}
	if provider != c.provider.Name {
		return identity.Profile{}, ErrStateMismatch
	}

	accessToken, err := c.exchange(ctx, code)
	if err != nil {
		return identity.Profile{}, err
	}

	return c.fetchProfile(ctx, accessToken)
}

// exchange trades an authorization code for an access token.
func (c *Client) exchange(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.provider.RedirectURI)
	form.Set("client_id", c.provider.ClientID)
	form.Set("client_secret", c.provider.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.provider.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", ErrExchangeFailed
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}
	if payload.AccessToken == "" {
		return "", ErrExchangeFailed
	}

	return payload.AccessToken, nil
}

// fetchProfile retrieves the userinfo document for an access token.
func (c *Client) fetchProfile(ctx context.Context, accessToken string) (identity.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.provider.UserInfoURL, nil)
	if err != nil {
		return identity.Profile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return identity.Profile{}, fmt.Errorf("%w: %w", ErrProfileFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return identity.Profile{}, ErrProfileFetch
	}

	var payload struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return identity.Profile{}, fmt.Errorf("%w: %w", ErrProfileFetch, err)
	}

	return identity.Profile{
		Provider:      c.provider.Name,
		Email:         payload.Email,
		EmailVerified: payload.EmailVerified,
	}, nil
}

// newState returns a random state nonce.
func newState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
