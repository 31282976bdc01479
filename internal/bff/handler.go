package bff

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/booklog/booklog/internal/auth"
	"github.com/booklog/booklog/internal/cache"
	"github.com/booklog/booklog/internal/handler/dto"
	"github.com/booklog/booklog/internal/identity"
	"github.com/booklog/booklog/internal/metrics"
	"github.com/booklog/booklog/internal/middleware"
	"github.com/booklog/booklog/internal/model"
	"github.com/booklog/booklog/internal/oauth"
	"github.com/booklog/booklog/internal/session"
)

// LoginLimiter throttles credential attempts. *cache.Cache satisfies it.
type LoginLimiter interface {
	CheckLoginRateLimit(ctx context.Context, email, ip string, ratePerMinute, burst int) (*cache.RateLimitResult, error)
}

// RateLimitSettings configures login throttling.
type RateLimitSettings struct {
	Enabled       bool
	RatePerMinute int
	Burst         int
}

// Handler orchestrates sessions, identity and the data API for the front end.
type Handler struct {
	client    *Client
	sessions  *session.Manager
	resolver  *identity.Resolver
	google    *oauth.Client
	limiter   LoginLimiter
	rateLimit RateLimitSettings
	recorder  metrics.Recorder
	logger    *slog.Logger
}

// NewHandler creates the BFF handler.
// google may be nil when the provider is not configured.
func NewHandler(
	client *Client,
	sessions *session.Manager,
	resolver *identity.Resolver,
	google *oauth.Client,
	limiter LoginLimiter,
	rateLimit RateLimitSettings,
	recorder metrics.Recorder,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		client:    client,
		sessions:  sessions,
		resolver:  resolver,
		google:    google,
		limiter:   limiter,
		rateLimit: rateLimit,
		recorder:  recorder,
		logger:    logger,
	}
}

// credentials is the body for login and registration.
// The original form posts the email under "username".
type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// sortRequest is the body for a sort preference change.
type sortRequest struct {
	SortBy string `json:"sortBy"`
}

// Home handles GET /. Always renders the landing view.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HomeView{View: ViewHome})
}

// LoginPage handles GET /login.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HomeView{View: ViewLogin})
}

// RegisterPage handles GET /register.
func (h *Handler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HomeView{View: ViewSignup})
}

// Logs handles GET /logs: the composed list + stats view.
// The list and stat calls run concurrently; both must succeed or the view
// reports the upstream as unavailable.
func (h *Handler) Logs(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		writeJSON(w, http.StatusOK, HomeView{View: ViewHome})
		return
	}

	sortBy := auth.SortKeyFromContext(r.Context())

	var (
		entries []model.LogEntry
		stats   *dto.StatResponse
	)

	g, gctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		entries, err = h.client.ListLogs(gctx, principal.UserID, sortBy)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = h.client.Stats(gctx, principal.UserID)
		return err
	})

	if err := g.Wait(); err != nil {
		h.handleClientError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, LogsView{
		View:   ViewLogs,
		Posts:  entries,
		Stat:   *stats,
		SortBy: sortBy,
	})
}

// NewEntry handles GET /new: the empty submit form view.
func (h *Handler) NewEntry(w http.ResponseWriter, r *http.Request) {
	if !auth.IsAuthenticated(r.Context()) {
		writeJSON(w, http.StatusOK, HomeView{View: ViewHome})
		return
	}
	writeJSON(w, http.StatusOK, SubmitView{
		View:    ViewSubmit,
		Heading: "New Log",
		Submit:  "Create Post",
	})
}

/// Edit handles GET /edit/{id}: the submit form prefilled with an entry.
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	if !auth.IsAuthenticated(r.Context()) {
		writeJSON(w, http.StatusOK, HomeView{View: ViewHome})
		return
	}

	entry, err := h.client.GetLog(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleClientError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SubmitView{
		View:    ViewSubmit,
		Heading: "Edit Log",
		Submit:  "Update Post",
		Post:    entry,
	})
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if !h.allowLoginAttempt(r, creds.Username) {
		h.writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many login attempts")
		return
	}

	user, err := h.resolver.Login(r.Context(), creds.Username, creds.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			h.recorder.IncLoginFailure()
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		h.logger.Error("login error", "error", err, "request_id", requestID(r))
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	h.recorder.IncLoginSuccess()
	h.startSession(w, r, user)
}

// Register handles POST /register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if creds.Username == "" || creds.Password == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_CREDENTIALS", "Email and password are required")
		return
	}

	user, err := h.resolver.Register(r.Context(), creds.Username, creds.Password)
	if err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			// Existing account: send the user to the login page
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		h.logger.Error("register error", "error", err, "request_id", requestID(r))
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	h.startSession(w, r, user)
}

// Logout handles GET /logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := h.sessions.TokenFromRequest(r); token != "" {
		if err := h.sessions.Destroy(r.Context(), token); err != nil {
			h.logger.Error("session destroy failed", "error", err, "request_id", requestID(r))
		}
	}
	h.sessions.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// GoogleStart handles GET /auth/google.
func (h *Handler) GoogleStart(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		http.NotFound(w, r)
		return
	}

	authURL, err := h.google.Start(r.Context())
	if err != nil {
		h.logger.Error("oauth start failed", "error", err, "request_id", requestID(r))
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// GoogleCallback handles GET /auth/google/callback.
func (h *Handler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		http.NotFound(w, r)
		return
	}

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" || r.URL.Query().Get("error") != "" {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	profile, err := h.google.Callback(r.Context(), state, code)
	if err != nil {
		h.logger.Warn("oauth callback failed", "error", err, "request_id", requestID(r))
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	user, err := h.resolver.ResolveFederated(r.Context(), profile)
	if err != nil {
		if errors.Is(err, identity.ErrLinkRequired) || errors.Is(err, identity.ErrProfileIncomplete) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		h.logger.Error("federated resolve failed", "error", err, "request_id", requestID(r))
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	h.recorder.IncFederatedLogin()
	h.startSession(w, r, user)
}

// Sort handles POST /api/sort: updates the session's sort preference.
func (h *Handler) Sort(w http.ResponseWriter, r *http.Request) {
	if !auth.IsAuthenticated(r.Context()) {
		writeJSON(w, http.StatusOK, HomeView{View: ViewHome})
		return
	}

	var req sortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	token := h.sessions.TokenFromRequest(r)
	if err := h.sessions.SetSortKey(r.Context(), token, model.ParseSortKey(req.SortBy)); err != nil {
		h.logger.Error("sort update failed", "error", err, "request_id", requestID(r))
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	http.Redirect(w, r, "/logs", http.StatusSeeOther)
}

// Search handles POST /api/search: composed search results + stats.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		writeJSON(w, http.StatusOK, HomeView{View: ViewHome})
		return
	}

	var req dto.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	var (
		entries []model.LogEntry
		stats   *dto.StatResponse
	)

	g, gctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		entries, err = h.client.Search(gctx, principal.UserID, req.Keyword)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = h.client.Stats(gctx, principal.UserID)
		return err
	})

	if err := g.Wait(); err != nil {
		h.handleClientError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, LogsView{
		View:   ViewLogs,
		Posts:  entries,
		Stat:   *stats,
		SortBy: auth.SortKeyFromContext(r.Context()),
	})
}

// Create handles POST /api/logs.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		writeJSON(w, http.StatusOK, HomeView{View: ViewHome})
		return
	}

	var form dto.LogRequest
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if _, err := h.client.CreateLog(r.Context(), principal.UserID, form); err != nil {
		if errors.Is(err, ErrConflict) {
			// Re-render the form with the conflict message
			writeJSON(w, http.StatusConflict, SubmitView{
				View:    ViewSubmit,
				Heading: "New Log",
				Submit:  "Create Post",
				Error:   "This title has already been submitted",
			})
			return
		}
		h.handleClientError(w, r, err)
		return
	}

	http.Redirect(w, r, "/logs", http.StatusSeeOther)
}

// Update handles POST /api/posts/{id}: a full-replace edit.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if !auth.IsAuthenticated(r.Context()) {
		writeJSON(w, http.StatusOK, HomeView{View: ViewHome})
		return
	}

	var form dto.LogRequest
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if _, err := h.client.ReplaceLog(r.Context(), chi.URLParam(r, "id"), form); err != nil {
		h.handleClientError(w, r, err)
		return
	}

	http.Redirect(w, r, "/logs", http.StatusSeeOther)
}

// Delete handles GET /api/posts/delete/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if !auth.IsAuthenticated(r.Context()) {
		writeJSON(w, http.StatusOK, HomeView{View: ViewHome})
		return
	}

	if err := h.client.DeleteLog(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleClientError(w, r, err)
		return
	}

	http.Redirect(w, r, "/logs", http.StatusSeeOther)
}

// startSession issues a session for the user and redirects to the logs view.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, user *model.User) {
	token, err := h.sessions.Create(r.Context(), user)
	if err != nil {
		h.logger.Error("session create failed", "error", err, "request_id", requestID(r))
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	h.sessions.WriteCookie(w, token)
	http.Redirect(w, r, "/logs", http.StatusSeeOther)
}

// allowLoginAttempt applies the login rate limit. Fails open when the
// limiter itself errors.
func (h *Handler) allowLoginAttempt(r *http.Request, email string) bool {
	if !h.rateLimit.Enabled || h.limiter == nil {
		return true
	}

	result, err := h.limiter.CheckLoginRateLimit(
		r.Context(), email, r.RemoteAddr,
		h.rateLimit.RatePerMinute, h.rateLimit.Burst,
	)
	if err != nil || result == nil {
		return true
	}
	if !result.Allowed {
		h.logger.Warn("login rate limited",
			"remote_addr", r.RemoteAddr,
			"retry_after", result.RetryAfter.String(),
			"request_id", requestID(r),
		)
	}
	return result.Allowed
}

// handleClientError maps data-API client errors to responses.
// Upstream faults surface as 502 so the caller can tell "the API said no"
// apart from "the API is down".
func (h *Handler) handleClientError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", "Post not found")
	case errors.Is(err, ErrConflict):
		h.writeError(w, http.StatusConflict, "CONFLICT", "This title has already been submitted")
	case errors.Is(err, ErrBadInput):
		h.writeError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid input")
	case errors.Is(err, ErrUpstreamUnavailable):
		h.logger.Error("upstream unavailable", "error", err, "request_id", requestID(r))
		h.writeError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "Data service unavailable")
	default:
		h.logger.Error("internal_error", "error", err, "request_id", requestID(r))
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// requestID shortens the middleware accessor for log lines.
func requestID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}
