// Package mockserver is a self-contained chatsql backend serving the demo
// dataset. It speaks the same HTTP surface the api client consumes, keeps
// accounts and submissions in memory, and runs queries against a read-only
// SQLite sandbox seeded with the demo tables.
package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/felixgeelhaar/chatsql/internal/api"
	"github.com/felixgeelhaar/chatsql/internal/domain"
)

// SessionCookie is the name of the session cookie
const SessionCookie = "sessionid"

type ctxKey int

const userKey ctxKey = iota

// Config configures a Server
type Config struct {
	Users         []SeedUser
	BcryptCost    int
	SessionMaxAge time.Duration
	Logger        *slog.Logger
}

// Server is the demo backend
type Server struct {
	store   *store
	sandbox *sandbox
	router  chi.Router
	logger  *slog.Logger
}

// New creates a server and registers the seed users. Nil Users means
// DefaultUsers.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.SessionMaxAge == 0 {
		cfg.SessionMaxAge = 24 * time.Hour
	}
	if cfg.Users == nil {
		cfg.Users = DefaultUsers()
	}

	s := &Server{
		store:  newStore(cfg.BcryptCost, cfg.SessionMaxAge),
		logger: cfg.Logger,
	}
	for _, u := range cfg.Users {
		if _, err := s.store.register(u.Username, u.Password, u.Email, u.Role); err != nil {
			return nil, fmt.Errorf("seed user %q: %w", u.Username, err)
		}
	}

	sb, err := newSandbox()
	if err != nil {
		return nil, err
	}
	s.sandbox = sb

	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(correlationIDMiddleware, recoveryMiddleware(s.logger), loggingMiddleware(s.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/schemas/", s.handleSchemas)

		r.Route("/exercises", func(r chi.Router) {
			r.Get("/", s.handleListExercises)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetExercise)
				r.Post("/execute/", s.handleExecute)
				r.Post("/submit/", s.handleSubmit)
				r.Post("/ai/", s.handleAI)
				r.With(s.requireUser).Get("/submissions/", s.handleSubmissions)
			})
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login/", s.handleLogin)
			r.Post("/signup/", s.handleSignup)
			r.Post("/logout/", s.handleLogout)
			r.Get("/me/", s.handleMe)
		})

		r.Route("/instructor", func(r chi.Router) {
			r.Use(s.requireUser, requireInstructor)
			r.Get("/stats/", s.handleStats)
			r.Get("/recent-activity/", s.handleActivity)
			r.Get("/students/", s.handleStudents)
			r.Get("/students/{id}/", s.handleStudent)
			r.Get("/exercises/", s.handleManagedExercises)
			r.Post("/exercises/", s.handleCreateExercise)
			r.Put("/exercises/{id}/", s.handleUpdateExercise)
			r.Delete("/exercises/{id}/", s.handleDeleteExercise)
		})
	})

	s.router = r
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the sandbox database
func (s *Server) Close() error {
	return s.sandbox.Close()
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully and closes the server
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	defer s.Close()

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting demo server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down demo server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Helpers

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// currentUser resolves the session cookie, if any
func (s *Server) currentUser(r *http.Request) *user {
	if u, ok := r.Context().Value(userKey).(*user); ok {
		return u
	}
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil
	}
	u, err := s.store.userForToken(c.Value)
	if err != nil {
		return nil
	}
	return u
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := s.currentUser(r)
		if u == nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

func requireInstructor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, _ := r.Context().Value(userKey).(*user); u == nil || u.role != domain.RoleInstructor {
			writeError(w, http.StatusForbidden, "Instructor access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Student handlers

func (s *Server) handleSchemas(w http.ResponseWriter, r *http.Request) {
	counts := make(map[int64]int)
	for _, ex := range s.store.listExercises(domain.Filter{}) {
		counts[ex.Schema.ID]++
	}
	schemas := api.MockSchemas()
	for i := range schemas {
		schemas[i].ExerciseCount = counts[schemas[i].ID]
	}
	writeJSON(w, http.StatusOK, schemas)
}

func (s *Server) handleListExercises(w http.ResponseWriter, r *http.Request) {
	d, err := domain.ParseDifficulty(r.URL.Query().Get("difficulty"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid difficulty")
		return
	}
	f := domain.Filter{}.WithDifficulty(d).WithTag(r.URL.Query().Get("tag"))
	writeJSON(w, http.StatusOK, s.store.listExercises(f))
}

// exerciseFor resolves the {id} path parameter or writes the error response
func (s *Server) exerciseFor(w http.ResponseWriter, r *http.Request) (domain.Exercise, bool) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Exercise not found")
		return domain.Exercise{}, false
	}
	ex, ok := s.store.exercise(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Exercise not found")
		return domain.Exercise{}, false
	}
	return ex, true
}

func (s *Server) handleGetExercise(w http.ResponseWriter, r *http.Request) {
	ex, ok := s.exerciseFor(w, r)
	if !ok {
		return
	}
	// the solution never leaves the server
	ex.ExpectedQuery = ""
	writeJSON(w, http.StatusOK, ex)
}

type queryRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.exerciseFor(w, r); !ok {
		return
	}
	var req queryRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusOK, domain.QueryResult{
			Columns: []string{},
			Rows:    [][]any{},
			Error:   "Query cannot be empty",
		})
		return
	}
	writeJSON(w, http.StatusOK, s.sandbox.run(r.Context(), req.Query))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ex, ok := s.exerciseFor(w, r)
	if !ok {
		return
	}
	var req queryRequest
	if err := decode(r, &req); err != nil || strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "Query is required")
		return
	}

	res := s.grade(r.Context(), ex, req.Query)
	if u := s.currentUser(r); u != nil {
		s.store.recordSubmission(u.id, ex.ID, req.Query, res.Correct)
	}
	writeJSON(w, http.StatusOK, res)
}

// grade runs the query and the exercise's solution and compares their
// results. Exercises without a solution accept any query that runs.
func (s *Server) grade(ctx context.Context, ex domain.Exercise, query string) domain.SubmitResult {
	got := s.sandbox.run(ctx, query)
	if got.Failed() {
		return domain.SubmitResult{
			Correct:    false,
			Message:    "Your query failed to run.",
			UserResult: &got,
			Feedback:   got.Error,
		}
	}
	if ex.ExpectedQuery == "" {
		return domain.SubmitResult{
			Correct:    true,
			Message:    "All tests passed.",
			UserResult: &got,
		}
	}

	expected := s.sandbox.run(ctx, ex.ExpectedQuery)
	if expected.Failed() {
		s.logger.Error("reference solution failed", "exercise_id", ex.ID, "error", expected.Error)
		return domain.SubmitResult{
			Correct:    false,
			Message:    "This exercise cannot be graded right now.",
			UserResult: &got,
		}
	}

	ordered := strings.Contains(normalizeSQL(ex.ExpectedQuery), "order by")
	if sameResult(expected, got, ordered) {
		return domain.SubmitResult{
			Correct:    true,
			Message:    "All tests passed.",
			UserResult: &got,
		}
	}
	return domain.SubmitResult{
		Correct:        false,
		Message:        "Your result does not match the expected output.",
		UserResult:     &got,
		ExpectedResult: &expected,
		Feedback:       "Compare your query with the task description and try again.",
	}
}

// normalizeSQL folds case and whitespace and drops a trailing semicolon
func normalizeSQL(q string) string {
	q = strings.ToLower(strings.Join(strings.Fields(q), " "))
	return strings.TrimSpace(strings.TrimSuffix(q, ";"))
}

func (s *Server) handleAI(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.exerciseFor(w, r); !ok {
		return
	}
	var req domain.AIRequest
	if err := decode(r, &req); err != nil || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}
	writeJSON(w, http.StatusOK, api.MockAIResponse())
}

func (s *Server) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	ex, ok := s.exerciseFor(w, r)
	if !ok {
		return
	}
	u := s.currentUser(r)
	writeJSON(w, http.StatusOK, s.store.submissionsFor(u.id, ex.ID))
}

// Auth handlers

func (s *Server) setSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.store.sessionMaxAge.Seconds()),
	})
}

func authResult(u *user, message string) domain.AuthResult {
	return domain.AuthResult{
		Message:  message,
		Username: u.username,
		Role:     string(u.role),
		UserID:   u.id,
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := decode(r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := creds.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	u, token, err := s.store.authenticate(creds.Username, creds.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	if err != nil {
		s.logger.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	s.setSession(w, token)
	s.logger.Info("user logged in", "username", u.username, "role", u.role)
	writeJSON(w, http.StatusOK, authResult(u, "Login successful"))
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := decode(r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := creds.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	u, err := s.store.register(strings.TrimSpace(creds.Username), creds.Password, creds.Email, domain.RoleStudent)
	if errors.Is(err, ErrUsernameTaken) {
		writeError(w, http.StatusBadRequest, "Username already exists")
		return
	}
	if err != nil {
		s.logger.Error("signup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Signup failed")
		return
	}

	token, err := s.store.openSession(u)
	if err != nil {
		s.logger.Error("open session failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Signup failed")
		return
	}
	s.setSession(w, token)
	writeJSON(w, http.StatusCreated, authResult(u, "Signup successful"))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		s.store.closeSession(c.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u := s.currentUser(r)
	if u == nil {
		anonymous := false
		writeJSON(w, http.StatusOK, domain.AuthResult{Authenticated: &anonymous})
		return
	}
	res := authResult(u, "")
	authenticated := true
	res.Authenticated = &authenticated
	writeJSON(w, http.StatusOK, res)
}

// Instructor handlers

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.stats())
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.activity())
}

func (s *Server) handleStudents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.students())
}

func (s *Server) handleStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Student not found")
		return
	}
	detail, ok := s.store.student(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Student not found")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleManagedExercises(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.managedExercises())
}

type createExerciseRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Difficulty   string `json:"difficulty"`
	SchemaID     int64  `json:"schema_id"`
	ExpectedSQL  string `json:"expected_sql"`
	InitialQuery string `json:"initial_query"`
}

func schemaByID(id int64) (domain.DatabaseSchema, bool) {
	for _, sc := range api.MockSchemas() {
		if sc.ID == id {
			sc.DBName = sc.Name
			sc.ExerciseCount = 0
			return sc, true
		}
	}
	return domain.DatabaseSchema{}, false
}

func (s *Server) handleCreateExercise(w http.ResponseWriter, r *http.Request) {
	var req createExerciseRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	draft := domain.ExerciseDraft{
		Title:        req.Title,
		Description:  req.Description,
		Difficulty:   req.Difficulty,
		InitialQuery: req.InitialQuery,
		AnswerQuery:  req.ExpectedSQL,
		SchemaID:     req.SchemaID,
	}
	if err := draft.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, capitalize(err.Error()))
		return
	}
	schema, ok := schemaByID(req.SchemaID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown schema")
		return
	}

	d, _ := domain.ParseDifficulty(req.Difficulty)
	ex := s.store.addExercise(domain.Exercise{
		Title:         strings.TrimSpace(req.Title),
		Description:   req.Description,
		Difficulty:    d,
		InitialQuery:  req.InitialQuery,
		ExpectedQuery: req.ExpectedSQL,
		Schema:        schema,
		Hints:         []domain.Hint{},
	})
	s.logger.Info("exercise created", "id", ex.ID, "title", ex.Title)
	writeJSON(w, http.StatusCreated, domain.MutationResult{ID: ex.ID, Title: ex.Title, Message: "Exercise created"})
}

func (s *Server) handleUpdateExercise(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Exercise not found")
		return
	}
	var upd domain.ExerciseUpdate
	if err := decode(r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var d domain.Difficulty
	if upd.Difficulty != nil {
		parsed, err := domain.ParseDifficulty(*upd.Difficulty)
		if err != nil || parsed == domain.DifficultyAll {
			writeError(w, http.StatusBadRequest, "Invalid difficulty")
			return
		}
		d = parsed
	}

	ex, ok := s.store.updateExercise(id, func(ex *domain.Exercise) {
		if upd.Title != nil {
			ex.Title = *upd.Title
		}
		if upd.Description != nil {
			ex.Description = *upd.Description
		}
		if upd.Difficulty != nil {
			ex.Difficulty = d
		}
		if upd.ExpectedSQL != nil {
			ex.ExpectedQuery = *upd.ExpectedSQL
		}
	})
	if !ok {
		writeError(w, http.StatusNotFound, "Exercise not found")
		return
	}
	writeJSON(w, http.StatusOK, domain.MutationResult{ID: ex.ID, Title: ex.Title, Message: "Exercise updated"})
}

func (s *Server) handleDeleteExercise(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok || !s.store.deleteExercise(id) {
		writeError(w, http.StatusNotFound, "Exercise not found")
		return
	}
	writeJSON(w, http.StatusOK, domain.MutationResult{ID: id, Message: "Exercise deleted"})
}
