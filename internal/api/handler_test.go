//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/realestate-assistant/internal/chat"
	"github.com/ashureev/realestate-assistant/internal/completion"
	"github.com/ashureev/realestate-assistant/internal/domain"
	"github.com/ashureev/realestate-assistant/internal/identity"
	"github.com/ashureev/realestate-assistant/internal/session"
	"github.com/go-chi/chi/v5"
)

type fakeRepo struct {
	mu       sync.Mutex
	lastSeen map[string]time.Time
	pingErr  error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{lastSeen: make(map[string]time.Time)}
}

func (f *fakeRepo) GetVisitor(context.Context, string) (*domain.Visitor, error) { return nil, nil }
func (f *fakeRepo) UpsertVisitor(context.Context, *domain.Visitor) error        { return nil }
func (f *fakeRepo) UpdateLastSeen(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSeen[id] = at
	return nil
}
func (f *fakeRepo) GetExpiredVisitors(context.Context, time.Duration) ([]*domain.Visitor, error) {
	return nil, nil
}
func (f *fakeRepo) DeleteVisitor(context.Context, string) error  { return nil }
func (f *fakeRepo) CountVisitors(context.Context) (int64, error) { return 0, nil }
func (f *fakeRepo) Ping(context.Context) error                   { return f.pingErr }
func (f *fakeRepo) Close() error                                 { return nil }

type stubCompleter struct {
	result completion.Result
	block  chan struct{}
}

func (s *stubCompleter) CompleteResult(context.Context, []domain.Message) completion.Result {
	if s.block != nil {
		<-s.block
	}
	return s.result
}

type testEnv struct {
	router   http.Handler
	repo     *fakeRepo
	sessions *session.Registry
}

func newTestEnv(t *testing.T, completer chat.Completer, limiter *RateLimiter) *testEnv {
	t.Helper()
	repo := newFakeRepo()
	sessions := session.NewRegistry()
	h := NewChatHandler(NewHandler(repo, sessions), chat.NewService(completer, nil, nil), limiter, 256)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sid := req.Header.Get(identity.SessionHeaderName)
			if sid == "" {
				sid = identity.DefaultSessionIDValue
			}
			next.ServeHTTP(w, req.WithContext(identity.WithIdentity(req.Context(), "anon_test", sid)))
		})
	})
	h.RegisterRoutes(r)
	return &testEnv{router: r, repo: repo, sessions: sessions}
}

func (e *testEnv) do(t *testing.T, method, path, body, sessionID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if sessionID != "" {
		req.Header.Set(identity.SessionHeaderName, sessionID)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusBadRequest, "nope")

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	var got map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["error"] != "nope" {
		t.Errorf("Expected error=nope, got %v", got)
	}
}

func TestGetSessionStartsEmpty(t *testing.T) {
	env := newTestEnv(t, &stubCompleter{}, nil)

	w := env.do(t, http.MethodGet, "/api/session", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var got TranscriptResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got.Phase != domain.PhaseNotStarted {
		t.Errorf("Expected not_started, got %q", got.Phase)
	}
	if got.Messages == nil || len(got.Messages) != 0 {
		t.Errorf("Expected empty message list, got %v", got.Messages)
	}

	sess := env.sessions.Get("anon_test", identity.DefaultSessionIDValue)
	if sess == nil || sess.Conversation.Len() != 1 {
		t.Fatal("Expected initialized transcript holding only the system prompt")
	}
}

func TestReloadKeepsConversationThroughSweep(t *testing.T) {
	env := newTestEnv(t, &stubCompleter{result: completion.Result{Content: "Austin."}}, nil)

	if w := env.do(t, http.MethodPost, "/api/chat", `{"message":"Where to buy?"}`, ""); w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	// The visitor went quiet 50 minutes ago, then reloads the page.
	env.repo.mu.Lock()
	env.repo.lastSeen["anon_test"] = time.Now().Add(-50 * time.Minute)
	env.repo.mu.Unlock()

	if w := env.do(t, http.MethodGet, "/api/session", "", ""); w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	n := session.Sweep(context.Background(), env.sessions, env.repo, session.SweeperConfig{TTL: 30 * time.Minute})
	if n != 0 {
		t.Errorf("Expected no sessions discarded, got %d", n)
	}
	sess := env.sessions.Get("anon_test", identity.DefaultSessionIDValue)
	if sess == nil {
		t.Fatal("Reloaded session was discarded")
	}
	if sess.Conversation.Len() != 3 {
		t.Errorf("Expected transcript to survive, got %d messages", sess.Conversation.Len())
	}
	env.repo.mu.Lock()
	seen := env.repo.lastSeen["anon_test"]
	env.repo.mu.Unlock()
	if time.Since(seen) > time.Minute {
		t.Errorf("Expected last_seen refreshed by the reload, got %v", seen)
	}
}

func TestPostChatRunsTurn(t *testing.T) {
	env := newTestEnv(t, &stubCompleter{result: completion.Result{Content: "Austin and Raleigh."}}, nil)

	w := env.do(t, http.MethodPost, "/api/chat", `{"message":"Best cities to invest in 2025?"}`, "tab-1")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var got ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got.Reply != "Austin and Raleigh." || got.Failed {
		t.Errorf("Unexpected reply %+v", got)
	}
	if got.Phase != domain.PhaseActive {
		t.Errorf("Expected active phase, got %q", got.Phase)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != domain.RoleUser || got.Messages[1].Role != domain.RoleAssistant {
		t.Errorf("Unexpected history %v", got.Messages)
	}
	if _, ok := env.repo.lastSeen["anon_test"]; !ok {
		t.Error("Expected visitor last_seen to be refreshed")
	}

	// Another tab keeps its own transcript.
	w = env.do(t, http.MethodGet, "/api/session", "", "tab-2")
	var other TranscriptResponse
	_ = json.Unmarshal(w.Body.Bytes(), &other)
	if other.Phase != domain.PhaseNotStarted || len(other.Messages) != 0 {
		t.Errorf("Expected isolated session, got %+v", other)
	}
}

func TestPostChatReportsFailure(t *testing.T) {
	env := newTestEnv(t, &stubCompleter{result: completion.Result{Err: errors.New("invalid_api_key")}}, nil)

	w := env.do(t, http.MethodPost, "/api/chat", `{"message":"hello"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var got ChatResponse
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if !got.Failed || got.Reply != "❌ Error: invalid_api_key" {
		t.Errorf("Unexpected failure response %+v", got)
	}
	if got.Phase != domain.PhaseActive {
		t.Errorf("Expected active phase after failed first turn, got %q", got.Phase)
	}
}

func TestPostChatRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"blank message", `{"message":"   "}`, http.StatusBadRequest},
		{"malformed json", `{"message":`, http.StatusBadRequest},
		{"oversized body", `{"message":"` + strings.Repeat("a", 512) + `"}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &stubCompleter{result: completion.Result{Content: "unused"}}, nil)
			w := env.do(t, http.MethodPost, "/api/chat", tt.body, "")
			if w.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, w.Code)
			}
			if sess := env.sessions.Get("anon_test", identity.DefaultSessionIDValue); sess != nil && sess.Conversation.Len() > 1 {
				t.Error("Transcript must not change on rejected input")
			}
		})
	}
}

func TestPostChatConflictWhileTurnRunning(t *testing.T) {
	block := make(chan struct{})
	env := newTestEnv(t, &stubCompleter{result: completion.Result{Content: "ok"}, block: block}, nil)

	done := make(chan int, 1)
	go func() {
		done <- env.do(t, http.MethodPost, "/api/chat", `{"message":"first"}`, "").Code
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		sess := env.sessions.Get("anon_test", identity.DefaultSessionIDValue)
		if sess != nil && sess.Conversation.Len() == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first turn never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if w := env.do(t, http.MethodPost, "/api/chat", `{"message":"second"}`, ""); w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", w.Code)
	}

	close(block)
	if code := <-done; code != http.StatusOK {
		t.Errorf("Expected first turn to finish with 200, got %d", code)
	}
}

func TestPostChatRateLimited(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	defer limiter.Stop()
	env := newTestEnv(t, &stubCompleter{result: completion.Result{Content: "ok"}}, limiter)

	if w := env.do(t, http.MethodPost, "/api/chat", `{"message":"one"}`, "tab-1"); w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	// Rotating the tab session does not reset the budget.
	if w := env.do(t, http.MethodPost, "/api/chat", `{"message":"two"}`, "tab-2"); w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", w.Code)
	}
}

func TestGetConfig(t *testing.T) {
	env := newTestEnv(t, &stubCompleter{}, nil)

	w := env.do(t, http.MethodGet, "/api/config", "", "")
	var got chat.UIConfig
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got.Title != "🏠 Real Estate Assistant" {
		t.Errorf("Unexpected title %q", got.Title)
	}
	if got.Phases[domain.PhaseNotStarted].Spinner != "Analyzing market trends..." {
		t.Errorf("Unexpected first-turn spinner %+v", got.Phases[domain.PhaseNotStarted])
	}
	if got.Phases[domain.PhaseActive].Label != "💬 Ask another question:" {
		t.Errorf("Unexpected follow-up label %+v", got.Phases[domain.PhaseActive])
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		pingErr error
		want    int
	}{
		{"healthy", nil, http.StatusOK},
		{"database down", errors.New("closed"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			repo.pingErr = tt.pingErr
			w := httptest.NewRecorder()
			NewHealthHandler(repo).Health(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
			if w.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, w.Code)
			}
		})
	}
}
