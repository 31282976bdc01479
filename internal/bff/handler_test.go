package bff

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/booklog/booklog/internal/auth"
	"github.com/booklog/booklog/internal/cache"
	"github.com/booklog/booklog/internal/handler/dto"
	"github.com/booklog/booklog/internal/identity"
	"github.com/booklog/booklog/internal/metrics"
	"github.com/booklog/booklog/internal/middleware"
	"github.com/booklog/booklog/internal/model"
	"github.com/booklog/booklog/internal/repository"
	"github.com/booklog/booklog/internal/session"
)

// memSessions is an in-memory session.Store.
type memSessions struct {
	records map[string]*cache.SessionRecord
}

func newMemSessions() *memSessions {
	return &memSessions{records: make(map[string]*cache.SessionRecord)}
}

func (s *memSessions) GetSession(ctx context.Context, token string) (*cache.SessionRecord, error) {
	return s.records[token], nil
}

func (s *memSessions) SetSession(ctx context.Context, token string, rec *cache.SessionRecord, ttl time.Duration) error {
	s.records[token] = rec
	return nil
}

func (s *memSessions) DeleteSession(ctx context.Context, token string) error {
	delete(s.records, token)
	return nil
}

// memUsers is an in-memory identity.UserStore keyed by email.
type memUsers struct {
	users map[string]*model.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[string]*model.User)}
}

func (s *memUsers) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	user, ok := s.users[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (s *memUsers) CreateUser(ctx context.Context, user *model.User) error {
	if _, ok := s.users[user.Email]; ok {
		return repository.ErrEmailExists
	}
	s.users[user.Email] = user
	return nil
}

func (s *memUsers) GetOrCreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	if existing, ok := s.users[user.Email]; ok {
		return existing, nil
	}
	s.users[user.Email] = user
	return user, nil
}

// denyLimiter refuses every login attempt.
type denyLimiter struct{}

func (denyLimiter) CheckLoginRateLimit(ctx context.Context, email, ip string, ratePerMinute, burst int) (*cache.RateLimitResult, error) {
	return &cache.RateLimitResult{Allowed: false, RetryAfter: time.Minute}, nil
}

// fixture bundles a wired BFF router with its backing fakes.
type fixture struct {
	router    *chi.Mux
	sessions  *memSessions
	users     *memUsers
	mgr       *session.Manager
	recorder  *metrics.InMemoryRecorder
	apiStatus *int

	mu       sync.Mutex
	apiCalls []string
}

func (f *fixture) recordCall(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiCalls = append(f.apiCalls, call)
}

func (f *fixture) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.apiCalls...)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithLimiter(t, nil, RateLimitSettings{})
}

func newFixtureWithLimiter(t *testing.T, limiter LoginLimiter, rateLimit RateLimitSettings) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	status := http.StatusOK
	f := &fixture{
		sessions:  newMemSessions(),
		users:     newMemUsers(),
		recorder:  metrics.NewInMemory(),
		apiStatus: &status,
	}

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.recordCall(r.Method + " " + r.URL.Path)
		if status != http.StatusOK {
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(dto.ErrorResponse{Error: "backend error", Code: "ERR"})
			return
		}
		switch {
		case strings.HasPrefix(r.URL.Path, "/stat/"):
			json.NewEncoder(w).Encode(dto.StatResponse{NumBooksLogged: 2})
		case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/posts/"):
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(model.LogEntry{ID: "log-1"})
		default:
			json.NewEncoder(w).Encode([]model.LogEntry{{ID: "log-1", Title: "Dune"}, {ID: "log-2", Title: "Emma"}})
		}
	}))
	t.Cleanup(backend.Close)

	f.mgr = session.NewManager(f.sessions, "booklog_session", time.Hour, false)
	resolver := identity.NewResolver(f.users, identity.LinkAuto, logger)
	client := NewClient(backend.URL, testSecret, 2*time.Second)

	h := NewHandler(client, f.mgr, resolver, nil, limiter, rateLimit, f.recorder, logger)

	r := chi.NewRouter()
	r.Use(middleware.Session(f.mgr, logger))
	r.Get("/", h.Home)
	r.Get("/logs", h.Logs)
	r.Get("/new", h.NewEntry)
	r.Get("/edit/{id}", h.Edit)
	r.Post("/login", h.Login)
	r.Post("/register", h.Register)
	r.Get("/logout", h.Logout)
	r.Get("/auth/google", h.GoogleStart)
	r.Post("/api/sort", h.Sort)
	r.Post("/api/search", h.Search)
	r.Post("/api/logs", h.Create)
	r.Post("/api/posts/{id}", h.Update)
	r.Get("/api/posts/delete/{id}", h.Delete)

	f.router = r
	return f
}

// loggedInCookie creates a live session and returns its cookie.
func (f *fixture) loggedInCookie(t *testing.T) *http.Cookie {
	t.Helper()
	token, err := f.mgr.Create(context.Background(), &model.User{
		ID:         "user-1",
		Email:      "reader@example.com",
		Credential: "$argon2id$v=19$m=65536,t=3,p=4$salt$hash",
	})
	if err != nil {
		t.Fatalf("session create failed: %v", err)
	}
	return &http.Cookie{Name: "booklog_session", Value: token}
}

func (f *fixture) do(t *testing.T, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func TestLogs_AnonymousGetsHomeView(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/logs", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var view HomeView
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.View != ViewHome {
		t.Errorf("view = %q, want %q", view.View, ViewHome)
	}
	if calls := f.calls(); len(calls) != 0 {
		t.Errorf("anonymous request should not hit the data API, saw %v", calls)
	}
}

func TestLogs_ComposesListAndStats(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cookie := f.loggedInCookie(t)

	rr := f.do(t, http.MethodGet, "/logs", "", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rr.Code, rr.Body.String())
	}

	var view LogsView
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.View != ViewLogs {
		t.Errorf("view = %q, want %q", view.View, ViewLogs)
	}
	if len(view.Posts) != 2 {
		t.Errorf("posts = %d, want 2", len(view.Posts))
	}
	if view.Stat.NumBooksLogged != 2 {
		t.Errorf("stat count = %d, want 2", view.Stat.NumBooksLogged)
	}
	if view.SortBy != model.SortByTimestamp {
		t.Errorf("sortBy = %q, want default timestamp", view.SortBy)
	}

	// Both downstream calls were made
	if calls := f.calls(); len(calls) != 2 {
		t.Errorf("expected 2 API calls, saw %v", calls)
	}
}

func TestLogs_UpstreamFailureIs502(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cookie := f.loggedInCookie(t)
	*f.apiStatus = http.StatusInternalServerError

	rr := f.do(t, http.MethodGet, "/logs", "", cookie)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502; body: %s", rr.Code, rr.Body.String())
	}

	var resp dto.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Code != "UPSTREAM_UNAVAILABLE" {
		t.Errorf("Code = %q, want UPSTREAM_UNAVAILABLE", resp.Code)
	}
}

func TestSort_UpdatesSessionAndRedirects(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cookie := f.loggedInCookie(t)

	rr := f.do(t, http.MethodPost, "/api/sort", `{"sortBy":"rating"}`, cookie)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/logs" {
		t.Errorf("Location = %q, want /logs", loc)
	}

	rec := f.sessions.records[cookie.Value]
	if rec == nil || rec.SortKey != model.SortByRating {
		t.Fatalf("session sort key = %v, want rating", rec)
	}

	// The next listing uses the stored preference
	f.do(t, http.MethodGet, "/logs", "", cookie)
	var sawRating bool
	for _, call := range f.calls() {
		if call == "GET /posts/user-1/rating" {
			sawRating = true
		}
	}
	if !sawRating {
		t.Errorf("listing should use session sort key, saw %v", f.calls())
	}
}

func TestSort_UnknownKeyFallsBack(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cookie := f.loggedInCookie(t)

	rr := f.do(t, http.MethodPost, "/api/sort", `{"sortBy":"bogus"}`, cookie)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rr.Code)
	}
	rec := f.sessions.records[cookie.Value]
	if rec == nil || rec.SortKey != model.SortByTimestamp {
		t.Errorf("unknown sort key should fall back to timestamp, got %v", rec)
	}
}

func TestLogin_SuccessSetsCookieAndRedirects(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	seedPassword(t, f.users, "reader@example.com", "opensesame")

	rr := f.do(t, http.MethodPost, "/login",
		`{"username":"reader@example.com","password":"opensesame"}`, nil)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303; body: %s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "/logs" {
		t.Errorf("Location = %q, want /logs", loc)
	}

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "booklog_session" || cookies[0].Value == "" {
		t.Fatalf("expected a session cookie, got %v", cookies)
	}
	if !auth.ValidSessionToken(cookies[0].Value) {
		t.Errorf("session cookie carries malformed token")
	}

	if snap := f.recorder.Snapshot(); snap.LoginSuccesses != 1 {
		t.Errorf("LoginSuccesses = %d, want 1", snap.LoginSuccesses)
	}
}

func TestLogin_BadCredentialsRedirectToLogin(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	seedPassword(t, f.users, "reader@example.com", "opensesame")

	rr := f.do(t, http.MethodPost, "/login",
		`{"username":"reader@example.com","password":"wrong"}`, nil)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}
	if len(rr.Result().Cookies()) != 0 {
		t.Error("failed login must not set a session cookie")
	}
	if snap := f.recorder.Snapshot(); snap.LoginFailures != 1 {
		t.Errorf("LoginFailures = %d, want 1", snap.LoginFailures)
	}
}

func TestLogin_RateLimited(t *testing.T) {
	t.Parallel()

	f := newFixtureWithLimiter(t, denyLimiter{}, RateLimitSettings{
		Enabled:       true,
		RatePerMinute: 10,
		Burst:         5,
	})

	rr := f.do(t, http.MethodPost, "/login",
		`{"username":"reader@example.com","password":"opensesame"}`, nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
}

func TestRegister_CreatesAccountAndSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/register",
		`{"username":"new@example.com","password":"opensesame"}`, nil)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303; body: %s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "/logs" {
		t.Errorf("Location = %q, want /logs", loc)
	}
	if _, ok := f.users.users["new@example.com"]; !ok {
		t.Error("account should exist after registration")
	}
	if len(f.sessions.records) != 1 {
		t.Error("registration should start a session")
	}
}

func TestRegister_ExistingEmailRedirectsToLogin(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	seedPassword(t, f.users, "reader@example.com", "opensesame")

	rr := f.do(t, http.MethodPost, "/register",
		`{"username":"reader@example.com","password":"different"}`, nil)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}
}

func TestLogout_DestroysSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cookie := f.loggedInCookie(t)

	rr := f.do(t, http.MethodGet, "/logout", "", cookie)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want /", loc)
	}
	if f.sessions.records[cookie.Value] != nil {
		t.Error("session record should be removed on logout")
	}

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Error("logout should expire the session cookie")
	}
}

func TestCreate_ConflictRendersSubmitView(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cookie := f.loggedInCookie(t)
	*f.apiStatus = http.StatusConflict

	rr := f.do(t, http.MethodPost, "/api/logs",
		`{"title":"Dune","author":"Frank Herbert","isbn":9780441013593}`, cookie)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409; body: %s", rr.Code, rr.Body.String())
	}

	var view SubmitView
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.View != ViewSubmit || view.Error == "" {
		t.Errorf("conflict should re-render submit view with an error, got %+v", view)
	}
}

func TestCreate_SuccessRedirects(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cookie := f.loggedInCookie(t)

	rr := f.do(t, http.MethodPost, "/api/logs",
		`{"title":"Dune","author":"Frank Herbert","isbn":9780441013593}`, cookie)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303; body: %s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "/logs" {
		t.Errorf("Location = %q, want /logs", loc)
	}
}

func TestDelete_RedirectsAfterRemoval(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cookie := f.loggedInCookie(t)

	rr := f.do(t, http.MethodGet, "/api/posts/delete/log-1", "", cookie)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rr.Code)
	}

	var sawDelete bool
	for _, call := range f.calls() {
		if call == "DELETE /posts/log-1" {
			sawDelete = true
		}
	}
	if !sawDelete {
		t.Errorf("expected DELETE call to the data API, saw %v", f.calls())
	}
}

func TestGoogleStart_UnconfiguredIs404(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/auth/google", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when provider unconfigured", rr.Code)
	}
}

// seedPassword registers a local account directly in the store.
func seedPassword(t *testing.T, users *memUsers, email, password string) string {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	users.users[email] = &model.User{ID: "user-" + email, Email: email, Credential: hash}
	return hash
}
