package mockserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"golang.org/x/crypto/bcrypt"

	"github.com/felixgeelhaar/chatsql/internal/api"
	"github.com/felixgeelhaar/chatsql/internal/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestServer starts a demo backend and returns a client pointed at it
func setupTestServer(t *testing.T) (*httptest.Server, *api.Client) {
	t.Helper()
	srv, err := New(Config{BcryptCost: bcrypt.MinCost, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return ts, newClient(t, ts.URL)
}

func newClient(t *testing.T, url string) *api.Client {
	t.Helper()
	client, err := api.New(url+"/api", api.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("api.New() error = %v", err)
	}
	return client
}

func login(t *testing.T, client *api.Client, username, password string) {
	t.Helper()
	if _, err := client.Login(context.Background(), domain.Credentials{Username: username, Password: password}); err != nil {
		t.Fatalf("Login(%s) error = %v", username, err)
	}
}

func TestExercises_FilterAndDetail(t *testing.T) {
	_, client := setupTestServer(t)
	ctx := context.Background()

	list, err := client.Exercises(ctx, domain.Filter{}.WithDifficulty(domain.DifficultyEasy).WithTag("join"))
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != 1 {
		t.Errorf("filtered list = %+v", list)
	}

	ex, err := client.Exercise(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if ex.StarterQuery() != "SELECT dept, COUNT(*) FROM employees GROUP BY dept" {
		t.Errorf("StarterQuery() = %q", ex.StarterQuery())
	}

	schemas, err := client.Schemas(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(schemas) != 1 || schemas[0].ExerciseCount != 3 {
		t.Errorf("schemas = %+v", schemas)
	}
}

func TestExercise_NotFound(t *testing.T) {
	ts, _ := setupTestServer(t)

	for _, path := range []string{"/api/exercises/99/", "/api/exercises/abc/"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, resp.StatusCode)
		}
		if resp.Header.Get(CorrelationIDHeader) == "" {
			t.Errorf("GET %s missing %s header", path, CorrelationIDHeader)
		}
	}
}

func TestExecute(t *testing.T) {
	_, client := setupTestServer(t)
	ctx := context.Background()

	res, err := client.Execute(ctx, 1, "SELECT * FROM employees")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"id", "name", "dept"}, res.Columns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	if res.RowCount != 3 {
		t.Errorf("RowCount = %d", res.RowCount)
	}

	empty, err := client.Execute(ctx, 1, "   ")
	if err != nil {
		t.Fatal(err)
	}
	if !empty.Failed() {
		t.Error("blank query should carry an embedded error")
	}
}

func TestSubmissions_RequireLogin(t *testing.T) {
	_, client := setupTestServer(t)
	ctx := context.Background()

	if _, err := client.Submissions(ctx, 1); !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("anonymous Submissions() error = %v, want unauthorized", err)
	}

	login(t, client, "student", "student123")
	if _, err := client.Submit(ctx, 1, "SELECT 1"); err != nil {
		t.Fatal(err)
	}
	if _, err := client.Submit(ctx, 1, "SELECT 2"); err != nil {
		t.Fatal(err)
	}

	subs, err := client.Submissions(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 2 || subs[0].Query != "SELECT 2" {
		t.Errorf("submissions = %+v, want newest first", subs)
	}
	if subs[0].Status != domain.SubmissionCorrect {
		t.Errorf("status = %q", subs[0].Status)
	}
}

func TestAuth_LoginMeLogout(t *testing.T) {
	_, client := setupTestServer(t)
	ctx := context.Background()

	_, err := client.Login(ctx, domain.Credentials{Username: "student", Password: "wrong"})
	var se *api.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusUnauthorized || se.Message != "Invalid username or password" {
		t.Fatalf("bad login error = %v", err)
	}

	res, err := client.Login(ctx, domain.Credentials{Username: "instructor", Password: "instructor123"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Username != "instructor" || domain.ParseRole(res.Role) != domain.RoleInstructor {
		t.Errorf("login result = %+v", res)
	}

	me, err := client.Me(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if me.Authenticated == nil || !*me.Authenticated || me.Username != "instructor" {
		t.Errorf("me = %+v", me)
	}

	if err := client.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	me, err = client.Me(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if me.Authenticated == nil || *me.Authenticated {
		t.Errorf("me after logout = %+v", me)
	}
}

func TestAuth_Signup(t *testing.T) {
	_, client := setupTestServer(t)
	ctx := context.Background()

	res, err := client.Signup(ctx, domain.Credentials{Username: "newbie", Password: "pw", Email: "n@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Role != string(domain.RoleStudent) {
		t.Errorf("role = %q", res.Role)
	}

	_, err = client.Signup(ctx, domain.Credentials{Username: "NEWBIE", Password: "pw"})
	var se *api.StatusError
	if !errors.As(err, &se) || se.Message != "Username already exists" {
		t.Errorf("duplicate signup error = %v", err)
	}
}

func TestInstructor_RequiresRole(t *testing.T) {
	_, client := setupTestServer(t)
	ctx := context.Background()

	if _, err := client.InstructorStats(ctx); !errors.Is(err, api.ErrUnauthorized) {
		t.Errorf("anonymous stats error = %v", err)
	}
	login(t, client, "student", "student123")
	if _, err := client.InstructorStats(ctx); !errors.Is(err, api.ErrForbidden) {
		t.Errorf("student stats error = %v", err)
	}
}

func TestInstructor_Dashboard(t *testing.T) {
	ts, student := setupTestServer(t)
	ctx := context.Background()

	login(t, student, "student", "student123")
	if _, err := student.Submit(ctx, 1, "SELECT 1"); err != nil {
		t.Fatal(err)
	}

	instr := newClient(t, ts.URL)
	login(t, instr, "instructor", "instructor123")

	stats, err := instr.InstructorStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := domain.InstructorStats{TotalStudents: 1, TotalExercises: 3, TotalSubmissions: 1, AverageCompletionRate: 100.0 / 3}
	if diff := cmp.Diff(want, *stats, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}

	students, err := instr.InstructorStudents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(students) != 1 || students[0].SubmissionsCount != 1 || students[0].LastLogin == nil {
		t.Fatalf("students = %+v", students)
	}

	detail, err := instr.InstructorStudent(ctx, students[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(detail.Submissions) != 1 || detail.Submissions[0].ExerciseTitle != "Two Sum (SQL demo)" {
		t.Errorf("detail = %+v", detail)
	}

	activity, err := instr.InstructorActivity(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(activity) != 1 || activity[0].User != "student" {
		t.Errorf("activity = %+v", activity)
	}

	if _, err := instr.InstructorStudent(ctx, 999); !errors.Is(err, api.ErrNotFound) {
		t.Errorf("unknown student error = %v", err)
	}
}

func TestInstructor_ExerciseLifecycle(t *testing.T) {
	_, client := setupTestServer(t)
	ctx := context.Background()
	login(t, client, "instructor", "instructor123")

	created, err := client.CreateExercise(ctx, domain.ExerciseDraft{
		Title:        "Highest paid",
		Description:  "Find the highest salary.",
		Difficulty:   "Hard",
		AnswerQuery:  "SELECT MAX(amount) FROM salaries",
		InitialQuery: "SELECT ",
		SchemaID:     1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if created.ID != 4 {
		t.Errorf("created id = %d", created.ID)
	}

	managed, err := client.InstructorExercises(ctx)
	if err != nil {
		t.Fatal(err)
	}
	last := managed[len(managed)-1]
	if last.Difficulty != "Hard" || last.CreatedAt == nil {
		t.Errorf("managed exercise = %+v", last)
	}

	ex, err := client.Exercise(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if ex.ExpectedQuery != "" {
		t.Error("solution must not be served")
	}

	right, err := client.Submit(ctx, created.ID, "select amount from salaries\norder by amount desc limit 1;")
	if err != nil {
		t.Fatal(err)
	}
	if !right.Correct {
		t.Errorf("equivalent solution graded incorrect: %+v", right)
	}
	wrong, err := client.Submit(ctx, created.ID, "SELECT 1")
	if err != nil {
		t.Fatal(err)
	}
	if wrong.Correct || wrong.ExpectedResult == nil {
		t.Errorf("wrong answer = %+v", wrong)
	}

	title := "Top earner"
	if _, err := client.UpdateExercise(ctx, created.ID, domain.ExerciseUpdate{Title: &title}); err != nil {
		t.Fatal(err)
	}
	ex, err = client.Exercise(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if ex.Title != title {
		t.Errorf("title after update = %q", ex.Title)
	}

	if _, err := client.DeleteExercise(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := client.DeleteExercise(ctx, created.ID); !errors.Is(err, api.ErrNotFound) {
		t.Errorf("second delete error = %v", err)
	}
}

func TestCreateExercise_ServerValidation(t *testing.T) {
	srv, err := New(Config{BcryptCost: bcrypt.MinCost, Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := newClient(t, ts.URL)
	login(t, client, "instructor", "instructor123")

	_, err = client.CreateExercise(context.Background(), domain.ExerciseDraft{
		Title:       "x",
		Description: "y",
		Difficulty:  "easy",
		AnswerQuery: "SELECT 1",
		SchemaID:    42,
	})
	var se *api.StatusError
	if !errors.As(err, &se) || se.Message != "Unknown schema" {
		t.Errorf("unknown schema error = %v", err)
	}
}

func TestNew_DuplicateSeedUser(t *testing.T) {
	_, err := New(Config{
		BcryptCost: bcrypt.MinCost,
		Logger:     quietLogger(),
		Users: []SeedUser{
			{Username: "a", Password: "x", Role: domain.RoleStudent},
			{Username: "A", Password: "y", Role: domain.RoleStudent},
		},
	})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("New() error = %v, want ErrUsernameTaken", err)
	}
}

func TestNormalizeSQL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"SELECT 1", "select 1"},
		{"  select\n\t1 ;", "select 1"},
		{"SELECT a FROM t;", "select a from t"},
	}
	for _, tt := range tests {
		if got := normalizeSQL(tt.in); got != tt.want {
			t.Errorf("normalizeSQL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
