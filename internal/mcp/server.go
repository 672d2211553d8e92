package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"

	"github.com/felixgeelhaar/chatsql/internal/assistant"
	"github.com/felixgeelhaar/chatsql/internal/domain"
	"github.com/felixgeelhaar/chatsql/internal/history"
)

// Backend is the part of the adapter the tools use
type Backend interface {
	Schemas(ctx context.Context) ([]domain.DatabaseSchema, error)
	Exercises(ctx context.Context, f domain.Filter) ([]domain.Exercise, error)
	Exercise(ctx context.Context, id int64) (*domain.Exercise, error)
	Execute(ctx context.Context, id int64, query string) (*domain.QueryResult, error)
	Submit(ctx context.Context, id int64, query string) (*domain.SubmitResult, error)
	Ask(ctx context.Context, id int64, req domain.AIRequest) (*domain.AIResponse, error)
	Submissions(ctx context.Context, id int64) ([]domain.Submission, error)
	Demo() bool
}

// Server exposes the student operations as MCP tools
type Server struct {
	mcpServer *server.Server
	backend   Backend
	logger    *slog.Logger
}

// Config contains configuration for the MCP server
type Config struct {
	Backend Backend
	Version string
	Logger  *slog.Logger
}

// NewServer creates a new MCP server for chatsql
func NewServer(cfg Config) *Server {
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		backend: cfg.Backend,
		logger:  cfg.Logger,
	}

	s.mcpServer = server.New(server.Info{
		Name:    "chatsql",
		Version: cfg.Version,
	}, server.WithInstructions(`
chatsql is a SQL practice platform. Exercises ask for a query against a
sandbox database; queries can be run freely and then submitted for grading.

Available tools:
- chatsql_schemas: List the sandbox databases
- chatsql_exercises: List exercises, optionally by difficulty and tag
- chatsql_exercise: Show one exercise with hints and its starter query
- chatsql_execute: Run a query against an exercise's database
- chatsql_submit: Grade a query against the expected result
- chatsql_ask: Ask the SQL tutor about an exercise
- chatsql_history: List past submissions for an exercise (requires login)
`))

	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcpServer.Tool("chatsql_schemas").
		Description("List the sandbox databases exercises run against.").
		Handler(s.handleSchemas)

	s.mcpServer.Tool("chatsql_exercises").
		Description("List exercises. Filter by difficulty (easy, medium, hard) and tag.").
		Handler(s.handleExercises)

	s.mcpServer.Tool("chatsql_exercise").
		Description("Show an exercise: description, hints, schema and starter query.").
		Handler(s.handleExercise)

	s.mcpServer.Tool("chatsql_execute").
		Description("Run a SQL query against the exercise's database without grading it.").
		Handler(s.handleExecute)

	s.mcpServer.Tool("chatsql_submit").
		Description("Submit a SQL query for grading.").
		Handler(s.handleSubmit)

	s.mcpServer.Tool("chatsql_ask").
		Description("Ask the SQL tutor a question about an exercise.").
		Handler(s.handleAsk)

	s.mcpServer.Tool("chatsql_history").
		Description("List past submissions for an exercise. Requires a logged-in session.").
		Handler(s.handleHistory)
}

// Input/Output types for tools

type SchemasInput struct{}

type SchemasOutput struct {
	Schemas []domain.DatabaseSchema `json:"schemas"`
	Demo    bool                    `json:"demo"`
}

type ExercisesInput struct {
	Difficulty string `json:"difficulty,omitempty" jsonschema:"description=Difficulty filter,enum=easy,enum=medium,enum=hard"`
	Tag        string `json:"tag,omitempty" jsonschema:"description=Tag filter, e.g. join"`
}

type ExerciseSummary struct {
	ID         int64    `json:"id"`
	Title      string   `json:"title"`
	Difficulty string   `json:"difficulty"`
	Tags       []string `json:"tags"`
}

type ExercisesOutput struct {
	Exercises []ExerciseSummary `json:"exercises"`
	Tags      []string          `json:"tags"`
	Demo      bool              `json:"demo"`
}

type ExerciseInput struct {
	ExerciseID int64 `json:"exercise_id" jsonschema:"description=Exercise ID from chatsql_exercises"`
}

type ExerciseOutput struct {
	Exercise     domain.Exercise `json:"exercise"`
	StarterQuery string          `json:"starter_query"`
}

type QueryInput struct {
	ExerciseID int64  `json:"exercise_id" jsonschema:"description=Exercise ID from chatsql_exercises"`
	Query      string `json:"query" jsonschema:"description=SQL query to run"`
}

type ExecuteOutput struct {
	Result  domain.QueryResult `json:"result"`
	Summary string             `json:"summary"`
}

type SubmitOutput struct {
	Result  domain.SubmitResult `json:"result"`
	Summary string              `json:"summary"`
}

type AskInput struct {
	ExerciseID int64  `json:"exercise_id" jsonschema:"description=Exercise ID the question is about"`
	Message    string `json:"message" jsonschema:"description=The question"`
	Query      string `json:"query,omitempty" jsonschema:"description=The query currently being worked on"`
	Error      string `json:"error,omitempty" jsonschema:"description=Error from the last execution"`
}

type AskOutput struct {
	Response    string              `json:"response"`
	SQLQuery    string              `json:"sql_query,omitempty"`
	QueryResult *domain.QueryResult `json:"query_result,omitempty"`
	Intent      string              `json:"intent,omitempty"`
}

type HistoryInput struct {
	ExerciseID int64 `json:"exercise_id" jsonschema:"description=Exercise ID"`
}

type HistoryOutput struct {
	Submissions []domain.Submission `json:"submissions"`
	Message     string              `json:"message,omitempty"`
}

// Tool handlers

func (s *Server) handleSchemas(ctx context.Context, _ SchemasInput) (SchemasOutput, error) {
	schemas, err := s.backend.Schemas(ctx)
	if err != nil {
		return SchemasOutput{}, fmt.Errorf("list schemas: %w", err)
	}
	return SchemasOutput{Schemas: schemas, Demo: s.backend.Demo()}, nil
}

func (s *Server) handleExercises(ctx context.Context, input ExercisesInput) (ExercisesOutput, error) {
	d, err := domain.ParseDifficulty(input.Difficulty)
	if err != nil {
		return ExercisesOutput{}, err
	}
	f := domain.Filter{}.WithDifficulty(d).WithTag(input.Tag)

	list, err := s.backend.Exercises(ctx, f)
	if err != nil {
		return ExercisesOutput{}, fmt.Errorf("list exercises: %w", err)
	}

	out := ExercisesOutput{
		Exercises: make([]ExerciseSummary, 0, len(list)),
		Demo:      s.backend.Demo(),
	}
	for _, ex := range list {
		out.Exercises = append(out.Exercises, ExerciseSummary{
			ID:         ex.ID,
			Title:      ex.Title,
			Difficulty: string(ex.Difficulty),
			Tags:       ex.Tags,
		})
	}

	// tag choices come from the unfiltered set
	all := list
	if !f.IsZero() {
		if all, err = s.backend.Exercises(ctx, domain.Filter{}); err != nil {
			s.logger.Warn("fetch tag vocabulary failed", "error", err)
			all = list
		}
	}
	out.Tags = domain.TagVocabulary(all)
	return out, nil
}

func (s *Server) handleExercise(ctx context.Context, input ExerciseInput) (ExerciseOutput, error) {
	ex, err := s.backend.Exercise(ctx, input.ExerciseID)
	if err != nil {
		return ExerciseOutput{}, fmt.Errorf("get exercise %d: %w", input.ExerciseID, err)
	}
	return ExerciseOutput{Exercise: *ex, StarterQuery: ex.StarterQuery()}, nil
}

func (s *Server) handleExecute(ctx context.Context, input QueryInput) (ExecuteOutput, error) {
	query := input.Query
	if strings.TrimSpace(query) == "" {
		query = domain.DefaultQuery
	}

	res, err := s.backend.Execute(ctx, input.ExerciseID, query)
	if err != nil {
		return ExecuteOutput{}, fmt.Errorf("execute: %w", err)
	}

	summary := fmt.Sprintf("%d rows", res.RowCount)
	if res.Failed() {
		summary = "error: " + res.Error
	}
	return ExecuteOutput{Result: *res, Summary: summary}, nil
}

func (s *Server) handleSubmit(ctx context.Context, input QueryInput) (SubmitOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return SubmitOutput{}, fmt.Errorf("submit: %w: query is empty", domain.ErrInvalidInput)
	}

	res, err := s.backend.Submit(ctx, input.ExerciseID, input.Query)
	if err != nil {
		return SubmitOutput{}, fmt.Errorf("submit: %w", err)
	}

	summary := "Incorrect"
	if res.Correct {
		summary = "Correct"
	}
	if res.Message != "" {
		summary += ": " + res.Message
	}
	return SubmitOutput{Result: *res, Summary: summary}, nil
}

// handleAsk runs one turn of a fresh conversation so concurrent calls for
// different exercises never share history
func (s *Server) handleAsk(ctx context.Context, input AskInput) (AskOutput, error) {
	conv := assistant.New(s.backend, nil, s.logger)
	conv.Bind(ctx, input.ExerciseID)

	err := conv.Send(ctx, input.Message, assistant.EditorContext{
		Query:     input.Query,
		LastError: input.Error,
	})
	if err != nil {
		return AskOutput{}, fmt.Errorf("ask: %w", err)
	}

	msgs := conv.Messages()
	reply := msgs[len(msgs)-1]
	return AskOutput{
		Response:    reply.Text,
		SQLQuery:    reply.SQLQuery,
		QueryResult: reply.QueryResult,
		Intent:      reply.Intent,
	}, nil
}

func (s *Server) handleHistory(ctx context.Context, input HistoryInput) (HistoryOutput, error) {
	res := history.New(s.backend, s.logger).Load(ctx, input.ExerciseID)
	return HistoryOutput{Submissions: res.Submissions, Message: res.Message}, nil
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
