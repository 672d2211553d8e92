package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/felixgeelhaar/chatsql/internal/domain"
)

// Schemas lists the sandbox schemas
func (c *Client) Schemas(ctx context.Context) ([]domain.DatabaseSchema, error) {
	return withFallback(ctx, c.logger, "schemas", c.Demo(), MockSchemas,
		func(ctx context.Context) ([]domain.DatabaseSchema, error) {
			var out []domain.DatabaseSchema
			if err := c.do(ctx, http.MethodGet, "/schemas/", nil, nil, &out, true); err != nil {
				return nil, err
			}
			return out, nil
		})
}

// Exercises lists the exercises matching f. The zero filter lists all of
// them. Demo data is filtered locally with the same predicates.
func (c *Client) Exercises(ctx context.Context, f domain.Filter) ([]domain.Exercise, error) {
	query := url.Values{}
	if f.Difficulty != domain.DifficultyAll {
		query.Set("difficulty", string(f.Difficulty))
	}
	if f.Tag != "" {
		query.Set("tag", f.Tag)
	}

	fallback := func() []domain.Exercise { return f.Apply(MockExercises()) }

	return withFallback(ctx, c.logger, "exercises", c.Demo(), fallback,
		func(ctx context.Context) ([]domain.Exercise, error) {
			var out []domain.Exercise
			if err := c.do(ctx, http.MethodGet, "/exercises/", query, nil, &out, true); err != nil {
				return nil, err
			}
			if out == nil {
				out = []domain.Exercise{}
			}
			return out, nil
		})
}

// Exercise fetches one exercise with hints and schema
func (c *Client) Exercise(ctx context.Context, id int64) (*domain.Exercise, error) {
	fallback := func() *domain.Exercise {
		ex := MockExercise(id)
		return &ex
	}

	return withFallback(ctx, c.logger, "exercise", c.Demo(), fallback,
		func(ctx context.Context) (*domain.Exercise, error) {
			var out domain.Exercise
			if err := c.do(ctx, http.MethodGet, exercisePath(id, ""), nil, nil, &out, true); err != nil {
				return nil, err
			}
			return &out, nil
		})
}

type queryRequest struct {
	Query string `json:"query"`
}

// Execute runs query against the exercise's sandbox. SQL errors come back
// inside the result, not as an error.
func (c *Client) Execute(ctx context.Context, id int64, query string) (*domain.QueryResult, error) {
	fallback := func() *domain.QueryResult {
		r := MockQueryResult()
		return &r
	}

	return withFallback(ctx, c.logger, "execute", c.Demo(), fallback,
		func(ctx context.Context) (*domain.QueryResult, error) {
			var out domain.QueryResult
			if err := c.do(ctx, http.MethodPost, exercisePath(id, "execute/"), nil, queryRequest{Query: query}, &out, true); err != nil {
				return nil, err
			}
			return &out, nil
		})
}

// Submit grades query against the exercise's expected result
func (c *Client) Submit(ctx context.Context, id int64, query string) (*domain.SubmitResult, error) {
	fallback := func() *domain.SubmitResult {
		r := MockSubmitResult()
		return &r
	}

	return withFallback(ctx, c.logger, "submit", c.Demo(), fallback,
		func(ctx context.Context) (*domain.SubmitResult, error) {
			var out domain.SubmitResult
			if err := c.do(ctx, http.MethodPost, exercisePath(id, "submit/"), nil, queryRequest{Query: query}, &out, true); err != nil {
				return nil, err
			}
			return &out, nil
		})
}

// Ask sends one assistant turn for the exercise
func (c *Client) Ask(ctx context.Context, id int64, req domain.AIRequest) (*domain.AIResponse, error) {
	if req.Submissions == nil {
		req.Submissions = []domain.Submission{}
	}

	fallback := func() *domain.AIResponse {
		r := MockAIResponse()
		return &r
	}

	return withFallback(ctx, c.logger, "ai", c.Demo(), fallback,
		func(ctx context.Context) (*domain.AIResponse, error) {
			var out domain.AIResponse
			if err := c.do(ctx, http.MethodPost, exercisePath(id, "ai/"), nil, req, &out, true); err != nil {
				return nil, err
			}
			return &out, nil
		})
}

// Submissions lists the signed-in user's past attempts at the exercise.
// Failures are returned so callers can tell a missing session (ErrUnauthorized)
// from other errors. Demo mode has no history.
func (c *Client) Submissions(ctx context.Context, id int64) ([]domain.Submission, error) {
	if c.Demo() {
		return []domain.Submission{}, nil
	}

	var out []domain.Submission
	if err := c.do(ctx, http.MethodGet, exercisePath(id, "submissions/"), nil, nil, &out, false); err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Submission{}
	}
	return out, nil
}
