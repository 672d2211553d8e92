package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/felixgeelhaar/chatsql/internal/domain"
)

// Instructor endpoints never fall back to demo data; every failure is
// returned to the caller.

// InstructorStats fetches the dashboard headline numbers
func (c *Client) InstructorStats(ctx context.Context) (*domain.InstructorStats, error) {
	var out domain.InstructorStats
	if err := c.do(ctx, http.MethodGet, "/instructor/stats/", nil, nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// InstructorStudents lists every student
func (c *Client) InstructorStudents(ctx context.Context) ([]domain.Student, error) {
	var out []domain.Student
	if err := c.do(ctx, http.MethodGet, "/instructor/students/", nil, nil, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}

// InstructorStudent fetches one student with their submissions
func (c *Client) InstructorStudent(ctx context.Context, id int64) (*domain.StudentDetail, error) {
	var out domain.StudentDetail
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/instructor/students/%d/", id), nil, nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// InstructorActivity fetches the recent-activity feed
func (c *Client) InstructorActivity(ctx context.Context) ([]domain.Activity, error) {
	var out []domain.Activity
	if err := c.do(ctx, http.MethodGet, "/instructor/recent-activity/", nil, nil, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}

// InstructorExercises lists exercises as the instructor manages them
func (c *Client) InstructorExercises(ctx context.Context) ([]domain.ManagedExercise, error) {
	var out []domain.ManagedExercise
	if err := c.do(ctx, http.MethodGet, "/instructor/exercises/", nil, nil, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}

type createExerciseRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Difficulty   string `json:"difficulty"`
	SchemaID     int64  `json:"schema_id"`
	ExpectedSQL  string `json:"expected_sql"`
	InitialQuery string `json:"initial_query"`
}

// CreateExercise validates and posts a new exercise. The answer query is
// sent as expected_sql.
func (c *Client) CreateExercise(ctx context.Context, draft domain.ExerciseDraft) (*domain.MutationResult, error) {
	if err := draft.Validate(); err != nil {
		return nil, fmt.Errorf("create exercise: %w", err)
	}

	req := createExerciseRequest{
		Title:        draft.Title,
		Description:  draft.Description,
		Difficulty:   strings.ToLower(strings.TrimSpace(draft.Difficulty)),
		SchemaID:     draft.SchemaID,
		ExpectedSQL:  draft.AnswerQuery,
		InitialQuery: draft.InitialQuery,
	}

	var out domain.MutationResult
	if err := c.do(ctx, http.MethodPost, "/instructor/exercises/", nil, req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateExercise changes the non-nil fields of an exercise
func (c *Client) UpdateExercise(ctx context.Context, id int64, update domain.ExerciseUpdate) (*domain.MutationResult, error) {
	if update.IsEmpty() {
		return nil, fmt.Errorf("update exercise %d: %w", id, domain.ErrNothingToUpdate)
	}
	if update.Difficulty != nil {
		d := strings.ToLower(strings.TrimSpace(*update.Difficulty))
		update.Difficulty = &d
	}

	var out domain.MutationResult
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/instructor/exercises/%d/", id), nil, update, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteExercise removes an exercise
func (c *Client) DeleteExercise(ctx context.Context, id int64) (*domain.MutationResult, error) {
	var out domain.MutationResult
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/instructor/exercises/%d/", id), nil, nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}
