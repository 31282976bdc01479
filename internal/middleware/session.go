package middleware

import (
	"log/slog"
	"net/http"

	"github.com/booklog/booklog/internal/auth"
	"github.com/booklog/booklog/internal/session"
)

// Session returns middleware that restores the principal from the session
// cookie, when one exists. Anonymous requests pass through unchanged; the
// handlers decide what an unauthenticated user may see.
func Session(mgr *session.Manager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := mgr.TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			rec, err := mgr.Get(r.Context(), token)
			if err != nil {
				logger.Error("session restore failed",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				next.ServeHTTP(w, r)
				return
			}
			if rec == nil {
				// Stale cookie for an expired session
				mgr.ClearCookie(w)
				next.ServeHTTP(w, r)
				return
			}

			ctx := auth.ContextWithPrincipal(r.Context(), &rec.Principal)
			ctx = auth.ContextWithSortKey(ctx, rec.SortKey)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
