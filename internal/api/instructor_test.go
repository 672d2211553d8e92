package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/felixgeelhaar/chatsql/internal/domain"
)

func TestInstructor_PropagatesErrors(t *testing.T) {
	c, _ := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Instructor access required"})
	}))
	ctx := context.Background()

	if _, err := c.InstructorStats(ctx); !errors.Is(err, ErrForbidden) {
		t.Errorf("InstructorStats() error = %v, want ErrForbidden", err)
	}
	if _, err := c.InstructorStudents(ctx); err == nil {
		t.Error("InstructorStudents() should fail")
	}
	if _, err := c.InstructorExercises(ctx); err == nil {
		t.Error("InstructorExercises() should fail")
	}
}

func TestInstructor_NoFallbackInDemoMode(t *testing.T) {
	c, _ := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, domain.InstructorStats{TotalStudents: 12})
	}), WithDemo(true))

	stats, err := c.InstructorStats(context.Background())
	if err != nil || stats.TotalStudents != 12 {
		t.Errorf("InstructorStats() = %+v, %v", stats, err)
	}
}

func TestCreateExercise(t *testing.T) {
	var body map[string]any
	c, _ := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/instructor/exercises/" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusCreated, domain.MutationResult{ID: 10, Title: "Top Salaries", Message: "Exercise created successfully"})
	}))

	res, err := c.CreateExercise(context.Background(), domain.ExerciseDraft{
		Title:       "Top Salaries",
		Description: "Rank salaries",
		Difficulty:  "Medium",
		AnswerQuery: "SELECT 1",
		SchemaID:    1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.ID != 10 {
		t.Errorf("CreateExercise() = %+v", res)
	}
	if body["difficulty"] != "medium" || body["expected_sql"] != "SELECT 1" || body["initial_query"] != "" {
		t.Errorf("request body = %v", body)
	}
	if _, ok := body["answer_query"]; ok {
		t.Error("answer_query must be sent as expected_sql")
	}
}

func TestCreateExercise_ValidatesFirst(t *testing.T) {
	c, _ := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("invalid draft reached the server")
	}))

	_, err := c.CreateExercise(context.Background(), domain.ExerciseDraft{Title: "x"})
	if !errors.Is(err, domain.ErrDescriptionRequired) {
		t.Errorf("CreateExercise() error = %v", err)
	}
}

func TestUpdateAndDeleteExercise(t *testing.T) {
	var methods []string
	var body map[string]any
	c, _ := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPut {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		writeJSON(w, http.StatusOK, domain.MutationResult{Message: "ok"})
	}))
	ctx := context.Background()

	if _, err := c.UpdateExercise(ctx, 3, domain.ExerciseUpdate{}); !errors.Is(err, domain.ErrNothingToUpdate) {
		t.Errorf("empty update error = %v", err)
	}

	hard := "Hard"
	if _, err := c.UpdateExercise(ctx, 3, domain.ExerciseUpdate{Difficulty: &hard}); err != nil {
		t.Fatal(err)
	}
	if body["difficulty"] != "hard" {
		t.Errorf("update body = %v", body)
	}
	if _, ok := body["title"]; ok {
		t.Error("unset fields must be omitted")
	}

	if _, err := c.DeleteExercise(ctx, 3); err != nil {
		t.Fatal(err)
	}

	want := []string{"PUT /api/instructor/exercises/3/", "DELETE /api/instructor/exercises/3/"}
	if len(methods) != 2 || methods[0] != want[0] || methods[1] != want[1] {
		t.Errorf("calls = %v, want %v", methods, want)
	}
}
