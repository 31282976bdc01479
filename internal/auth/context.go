package auth

import (
	"context"

	"github.com/booklog/booklog/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// principalContextKey is the context key for storing the Principal.
	principalContextKey contextKey = "principal"
	// sortKeyContextKey is the context key for the session's sort preference.
	sortKeyContextKey contextKey = "sort_key"
)

// ContextWithPrincipal adds the authenticated Principal to the context.
func ContextWithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext retrieves the Principal from the context.
// Returns nil for anonymous requests.
func PrincipalFromContext(ctx context.Context) *model.Principal {
	p, ok := ctx.Value(principalContextKey).(*model.Principal)
	if !ok {
		return nil
	}
	return p
}

// IsAuthenticated reports whether the request context carries a Principal.
func IsAuthenticated(ctx context.Context) bool {
	return PrincipalFromContext(ctx) != nil
}

// ContextWithSortKey adds the session's sort preference to the context.
func ContextWithSortKey(ctx context.Context, key model.SortKey) context.Context {
	return context.WithValue(ctx, sortKeyContextKey, key)
}

// SortKeyFromContext retrieves the session's sort preference.
// Returns the default ordering when none is set.
func SortKeyFromContext(ctx context.Context) model.SortKey {
	if key, ok := ctx.Value(sortKeyContextKey).(model.SortKey); ok {
		return key
	}
	return model.SortByTimestamp
}

// UserIDFromContext is a convenience function to get the user ID from context.
// Returns empty string if not authenticated.
func UserIDFromContext(ctx context.Context) string {
	p := PrincipalFromContext(ctx)
	if p == nil {
		return ""
	}
	return p.UserID
}
