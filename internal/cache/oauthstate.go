package cache

import (
	"context"
	"time"
)

const (
	// oauthStatePrefix is the Redis key prefix for OAuth state nonces.
	oauthStatePrefix = "oauth:state:"
	// oauthStateTTL bounds how long a provider round-trip may take.
	oauthStateTTL = 10 * time.Minute
)

// SetOAuthState stores a state nonce for an in-flight provider flow.
// The value records the provider the flow was started against.
func (c *Cache) SetOAuthState(ctx context.Context, state, provider string) error {
	return c.client.Set(ctx, oauthStatePrefix+state, provider, oauthStateTTL).Err()
}

// ConsumeOAuthState validates and deletes a state nonce in one step so a
// nonce can never be replayed. Returns the provider it was issued for, or
// empty string when the nonce is unknown or expired.
func (c *Cache) ConsumeOAuthState(ctx context.Context, state string) (string, error) {
	provider, err := c.client.GetDel(ctx, oauthStatePrefix+state).Result()
	if err != nil {
		// Unknown or expired state is reported as absent, not an error
		return "", nil //nolint:nilerr
	}
	return provider, nil
}
