package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/booklog/booklog/internal/model"
)

const (
	// sessionPrefix is the Redis key prefix for session records.
	sessionPrefix = "session:"
)

// SessionRecord is a session as stored in Redis: the principal snapshot
// taken at login plus per-session view preferences.
type SessionRecord struct {
	Principal model.Principal `json:"principal"`
	SortKey   model.SortKey   `json:"sort_key"`
}

// GetSession retrieves a session record by token.
// Returns nil if absent or expired (not an error).
func (c *Cache) GetSession(ctx context.Context, token string) (*SessionRecord, error) {
	data, err := c.client.Get(ctx, sessionPrefix+token).Bytes()
	if err != nil {
		// Missing session is not an error
		return nil, nil //nolint:nilerr
	}

	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		// Corrupted record - treat as absent
		return nil, nil //nolint:nilerr
	}

	return &rec, nil
}

// SetSession stores a session record under its token with the given TTL.
func (c *Cache) SetSession(ctx context.Context, token string, rec *SessionRecord, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	return c.client.Set(ctx, sessionPrefix+token, data, ttl).Err()
}

// DeleteSession removes a session record. Used at logout.
func (c *Cache) DeleteSession(ctx context.Context, token string) error {
	return c.client.Del(ctx, sessionPrefix+token).Err()
}
