package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/felixgeelhaar/chatsql/internal/config"
	"github.com/felixgeelhaar/chatsql/internal/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestServer starts a backend stub and a client pointed at its /api root
func setupTestServer(t *testing.T, handler http.Handler, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	c, err := New(srv.URL+"/api", opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	if _, err := New("/api"); err == nil {
		t.Error("expected error for relative base url")
	}
}

func TestDemoMode_NeverTouchesNetwork(t *testing.T) {
	var hits atomic.Int32
	c, _ := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}), WithDemo(true))

	ctx := context.Background()

	schemas, err := c.Schemas(ctx)
	if err != nil || len(schemas) != 1 || schemas[0].DisplayName != "Employees DB" {
		t.Errorf("Schemas() = %+v, %v", schemas, err)
	}

	exercises, err := c.Exercises(ctx, domain.Filter{})
	if err != nil || len(exercises) != 3 {
		t.Errorf("Exercises() = %d items, %v", len(exercises), err)
	}

	ex, err := c.Exercise(ctx, 1)
	if err != nil || ex.InitialQuery != "SELECT * FROM employees" {
		t.Errorf("Exercise(1) = %+v, %v", ex, err)
	}

	result, err := c.Execute(ctx, 1, "SELECT * FROM employees")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if diff := cmp.Diff([]string{"id", "name", "dept"}, result.Columns); diff != "" {
		t.Errorf("Execute() columns mismatch (-want +got):\n%s", diff)
	}
	if result.RowCount != 3 || len(result.Rows) != 3 {
		t.Errorf("Execute() rows = %d/%d, want 3", result.RowCount, len(result.Rows))
	}

	submit, err := c.Submit(ctx, 1, "SELECT 1")
	if err != nil || !submit.Correct || submit.Message != "All tests passed (mock)." {
		t.Errorf("Submit() = %+v, %v", submit, err)
	}

	ai, err := c.Ask(ctx, 1, domain.AIRequest{Message: "how many?"})
	if err != nil || ai.Intent != "data_query" || !ai.Executed {
		t.Errorf("Ask() = %+v, %v", ai, err)
	}

	subs, err := c.Submissions(ctx, 1)
	if err != nil || subs == nil || len(subs) != 0 {
		t.Errorf("Submissions() = %v, %v; want empty", subs, err)
	}

	if n := hits.Load(); n != 0 {
		t.Errorf("server received %d requests in demo mode, want 0", n)
	}
}

func TestDemoMode_ExercisesHonourFilter(t *testing.T) {
	c, _ := setupTestServer(t, http.NotFoundHandler(), WithDemo(true))

	got, err := c.Exercises(context.Background(), domain.Filter{Tag: "join"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Errorf("Exercises(tag=join) = %+v", got)
	}

	got, _ = c.Exercises(context.Background(), domain.Filter{Difficulty: domain.DifficultyMedium, Tag: "join"})
	if len(got) != 1 || got[0].ID != 3 {
		t.Errorf("Exercises(medium, join) = %+v", got)
	}
}

func TestMockValuesAreFresh(t *testing.T) {
	c, _ := setupTestServer(t, http.NotFoundHandler(), WithDemo(true))
	ctx := context.Background()

	first, _ := c.Execute(ctx, 1, "")
	first.Rows[0][1] = "Mallory"

	second, _ := c.Execute(ctx, 1, "")
	if second.Rows[0][1] != "Alice" {
		t.Errorf("mock result was shared between calls: %v", second.Rows[0])
	}
}

func TestSetDemo_SwitchesPerCall(t *testing.T) {
	var hits atomic.Int32
	c, _ := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusOK, []domain.DatabaseSchema{{ID: 7, Name: "shop"}})
	}))

	if c.Demo() {
		t.Fatal("Demo() should start false")
	}
	got, _ := c.Schemas(context.Background())
	if len(got) != 1 || got[0].ID != 7 {
		t.Errorf("Schemas() = %+v", got)
	}

	c.SetDemo(true)
	got, _ = c.Schemas(context.Background())
	if len(got) != 1 || got[0].ID != 1 {
		t.Errorf("Schemas() in demo = %+v", got)
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}
}

func TestFallback_OnServerError(t *testing.T) {
	c, _ := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
	}))
	ctx := context.Background()

	result, err := c.Execute(ctx, 2, "SELECT 1")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.RowCount != 3 {
		t.Errorf("Execute() should fall back to mock result, got %+v", result)
	}

	ex, err := c.Exercise(ctx, 42)
	if err != nil || ex.ID != 1 {
		t.Errorf("Exercise(42) fallback = %+v, %v; want first mock exercise", ex, err)
	}

	ex, _ = c.Exercise(ctx, 3)
	if ex.ID != 3 {
		t.Errorf("Exercise(3) fallback id = %d, want 3", ex.ID)
	}
}

func TestFallback_OnTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL + "/api"
	srv.Close()

	c, err := New(base, WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}

	exercises, err := c.Exercises(context.Background(), domain.Filter{Difficulty: domain.DifficultyEasy})
	if err != nil {
		t.Fatalf("Exercises() error = %v", err)
	}
	if len(exercises) != 2 {
		t.Errorf("Exercises(easy) fallback = %d items, want 2", len(exercises))
	}

	_, err = c.Submissions(context.Background(), 1)
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Errorf("Submissions() error = %v, want *NetworkError", err)
	}
}

func TestFallback_CancelledContextIsReported(t *testing.T) {
	c, _ := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, domain.QueryResult{})
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Execute(ctx, 1, "SELECT 1"); !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}

func TestExercises_SendsFilterParams(t *testing.T) {
	var gotQuery string
	c, _ := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/exercises/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		writeJSON(w, http.StatusOK, []domain.Exercise{{ID: 9, Title: "Joins", Tags: []string{"join"}}})
	}))

	got, err := c.Exercises(context.Background(), domain.Filter{Difficulty: domain.DifficultyHard, Tag: "join"})
	if err != nil {
		t.Fatal(err)
	}
	if gotQuery != "difficulty=hard&tag=join" {
		t.Errorf("query = %q", gotQuery)
	}
	if len(got) != 1 || got[0].ID != 9 {
		t.Errorf("Exercises() = %+v", got)
	}

	_, _ = c.Exercises(context.Background(), domain.Filter{})
	if gotQuery != "" {
		t.Errorf("zero filter query = %q, want empty", gotQuery)
	}
}

func TestExecute_SendsQueryAndKeepsEmbeddedError(t *testing.T) {
	c, _ := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/exercises/5/execute/" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get(RequestIDHeader) == "" {
			t.Error("missing request id header")
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["query"] != "SELEC 1" {
			t.Errorf("query = %q", body["query"])
		}
		writeJSON(w, http.StatusOK, domain.QueryResult{Success: false, Error: `syntax error at or near "SELEC"`})
	}))

	result, err := c.Execute(context.Background(), 5, "SELEC 1")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Failed() || result.Success {
		t.Errorf("Execute() = %+v, want embedded error", result)
	}
}

func TestAsk_SendsEditorContext(t *testing.T) {
	var got map[string]any
	c, _ := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, http.StatusOK, domain.AIResponse{Response: "Try a GROUP BY."})
	}))

	resp, err := c.Ask(context.Background(), 2, domain.AIRequest{
		Message:   "help",
		UserQuery: "SELECT dept FROM employees",
		Error:     "column missing",
	})
	if err != nil || resp.Response != "Try a GROUP BY." {
		t.Fatalf("Ask() = %+v, %v", resp, err)
	}
	if got["message"] != "help" || got["user_query"] != "SELECT dept FROM employees" || got["error"] != "column missing" {
		t.Errorf("request body = %v", got)
	}
	if subs, ok := got["submissions"].([]any); !ok || len(subs) != 0 {
		t.Errorf("submissions = %v, want empty list", got["submissions"])
	}
}

func TestSubmissions_Unauthorized(t *testing.T) {
	c, _ := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
	}))

	_, err := c.Submissions(context.Background(), 1)
	if !IsUnauthorized(err) {
		t.Fatalf("Submissions() error = %v, want unauthorized", err)
	}

	var se *StatusError
	if !errors.As(err, &se) || se.Message != "Authentication required" {
		t.Errorf("StatusError = %+v", se)
	}
}

func TestSessionCookieIsSentOnEveryCall(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "s3cret", Path: "/"})
		writeJSON(w, http.StatusOK, map[string]any{"message": "ok", "username": "alice", "role": "student", "userId": 4})
	})
	mux.HandleFunc("/api/exercises/1/submissions/", func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("sessionid"); err != nil || ck.Value != "s3cret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
			return
		}
		writeJSON(w, http.StatusOK, []domain.Submission{{ID: 1, Query: "SELECT 1", Status: domain.SubmissionCorrect}})
	})
	c, _ := setupTestServer(t, mux)
	ctx := context.Background()

	if _, err := c.Submissions(ctx, 1); !IsUnauthorized(err) {
		t.Fatalf("before login error = %v, want unauthorized", err)
	}

	res, err := c.Login(ctx, domain.Credentials{Username: "alice", Password: "pw"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.Username != "alice" || res.UserID != 4 {
		t.Errorf("Login() = %+v", res)
	}
	if len(c.Cookies()) != 1 {
		t.Errorf("Cookies() = %v", c.Cookies())
	}

	subs, err := c.Submissions(ctx, 1)
	if err != nil || len(subs) != 1 {
		t.Errorf("after login Submissions() = %v, %v", subs, err)
	}
}

func TestLogin_ErrorShapes(t *testing.T) {
	t.Run("non-JSON body", func(t *testing.T) {
		c, _ := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, "<html>bad gateway</html>")
		}))

		_, err := c.Login(context.Background(), domain.Credentials{Username: "a", Password: "b"})
		var me *MalformedResponseError
		if !errors.As(err, &me) || me.Code != http.StatusBadGateway {
			t.Errorf("Login() error = %v, want *MalformedResponseError(502)", err)
		}
	})

	t.Run("JSON error body", func(t *testing.T) {
		c, _ := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid credentials"})
		}))

		_, err := c.Login(context.Background(), domain.Credentials{Username: "a", Password: "b"})
		var se *StatusError
		if !errors.As(err, &se) || se.Message != "Invalid credentials" || !errors.Is(err, ErrBadRequest) {
			t.Errorf("Login() error = %v", err)
		}
	})

	t.Run("signup sends email, login does not", func(t *testing.T) {
		var bodies []map[string]any
		c, _ := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var b map[string]any
			_ = json.NewDecoder(r.Body).Decode(&b)
			bodies = append(bodies, b)
			writeJSON(w, http.StatusCreated, map[string]string{"username": "a", "role": "student"})
		}))

		creds := domain.Credentials{Username: "a", Password: "b", Email: "a@x.io"}
		_, _ = c.Signup(context.Background(), creds)
		_, _ = c.Login(context.Background(), creds)

		if bodies[0]["email"] != "a@x.io" {
			t.Errorf("signup body = %v", bodies[0])
		}
		if _, ok := bodies[1]["email"]; ok {
			t.Errorf("login body should not carry email: %v", bodies[1])
		}
	})
}

func TestMe_Anonymous(t *testing.T) {
	c, _ := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
	}))

	res, err := c.Me(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Authenticated == nil || *res.Authenticated {
		t.Errorf("Me() = %+v, want authenticated=false", res)
	}
}

func TestResilience_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	c, _ := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, domain.QueryResult{Success: true, Columns: []string{"n"}, Rows: [][]any{{1}}, RowCount: 1})
	}), WithResilience(config.ResilienceConfig{
		Enabled:          true,
		MaxAttempts:      3,
		InitialDelayMS:   1,
		MaxDelayMS:       5,
		Multiplier:       2,
		FailureThreshold: 10,
	}))

	result, err := c.Execute(context.Background(), 1, "SELECT 1")
	if err != nil {
		t.Fatal(err)
	}
	if result.RowCount != 1 || result.Columns[0] != "n" {
		t.Errorf("Execute() = %+v, want the real result after retries", result)
	}
	if hits.Load() != 3 {
		t.Errorf("hits = %d, want 3", hits.Load())
	}
}

func TestResilience_ClientErrorsAreNotRetried(t *testing.T) {
	var hits atomic.Int32
	c, _ := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad"})
	}), WithResilience(config.ResilienceConfig{Enabled: true, MaxAttempts: 3, InitialDelayMS: 1}))

	_, _ = c.Submit(context.Background(), 1, "SELECT 1")
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"503", &StatusError{Code: 503}, true},
		{"429", &StatusError{Code: 429}, true},
		{"401", &StatusError{Code: 401}, false},
		{"network", &NetworkError{Err: io.ErrUnexpectedEOF}, true},
		{"cancelled", &NetworkError{Err: context.Canceled}, false},
		{"other", errors.New("decode"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.want {
				t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
