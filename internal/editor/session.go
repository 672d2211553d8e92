// Package editor holds the query buffer of the selected exercise and the
// results of running and grading it.
package editor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/felixgeelhaar/chatsql/internal/domain"
)

// Runner loads exercises and runs queries against them
type Runner interface {
	Exercise(ctx context.Context, id int64) (*domain.Exercise, error)
	Execute(ctx context.Context, id int64, query string) (*domain.QueryResult, error)
	Submit(ctx context.Context, id int64, query string) (*domain.SubmitResult, error)
}

// Session is the editor slice of the workspace. There is one buffer; it is
// replaced by the starter query whenever a new exercise finishes loading.
//
// Each of the three requests carries a generation. Loading an exercise
// advances all three, so a response for a superseded request or for the
// previous exercise is discarded.
type Session struct {
	runner Runner
	events *domain.EventDispatcher
	logger *slog.Logger

	mu           sync.Mutex
	exerciseID   int64
	hasExercise  bool
	exercise     *domain.Exercise
	query        string
	result       *domain.QueryResult
	submitResult *domain.SubmitResult
	loading      bool
	executing    bool
	submitting   bool
	loadGen      uint64
	execGen      uint64
	submitGen    uint64
}

// Snapshot is a consistent copy of the editor state
type Snapshot struct {
	ExerciseID   int64
	HasExercise  bool
	Exercise     *domain.Exercise
	Query        string
	Result       *domain.QueryResult
	SubmitResult *domain.SubmitResult
	Loading      bool
	Executing    bool
	Submitting   bool
}

// New creates an editor with an empty buffer
func New(runner Runner, events *domain.EventDispatcher, logger *slog.Logger) *Session {
	if events == nil {
		events = domain.NewEventDispatcher()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		runner: runner,
		events: events,
		logger: logger,
	}
}

// HandleSelection follows the browsing selection. It is meant to be
// subscribed to exercise.selected.
func (s *Session) HandleSelection(ctx context.Context, e domain.Event) {
	sc, ok := e.(domain.SelectionChangedEvent)
	if !ok {
		return
	}
	if sc.Selected {
		s.Load(ctx, sc.ExerciseID)
		return
	}
	s.Reset()
}

// Load switches to exercise id. Both results are cleared before the detail
// fetch starts. The buffer becomes the starter query on success and
// DefaultQuery when the fetch fails, so it never holds another exercise's
// query. Execute and Submit are refused until the fetch returns.
func (s *Session) Load(ctx context.Context, id int64) {
	s.mu.Lock()
	s.exerciseID = id
	s.hasExercise = true
	s.exercise = nil
	s.result = nil
	s.submitResult = nil
	s.loading = true
	s.executing = false
	s.submitting = false
	s.loadGen++
	s.execGen++
	s.submitGen++
	gen := s.loadGen
	s.mu.Unlock()

	ex, err := s.runner.Exercise(ctx, id)

	s.mu.Lock()
	if gen != s.loadGen {
		s.mu.Unlock()
		s.logger.Debug("dropped stale exercise detail", "exercise_id", id)
		return
	}
	s.loading = false
	s.result = nil
	s.submitResult = nil
	s.execGen++
	s.submitGen++
	if err != nil || ex == nil {
		s.query = domain.DefaultQuery
		s.mu.Unlock()
		s.logger.Warn("load exercise failed", "exercise_id", id, "error", err)
		return
	}
	s.exercise = ex
	s.query = ex.StarterQuery()
	loaded := *ex
	s.mu.Unlock()

	s.events.Publish(ctx, domain.NewExerciseLoadedEvent(id, loaded))
}

// Reset forgets the exercise, as when the filtered list became empty
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exerciseID = 0
	s.hasExercise = false
	s.exercise = nil
	s.query = ""
	s.result = nil
	s.submitResult = nil
	s.loading = false
	s.executing = false
	s.submitting = false
	s.loadGen++
	s.execGen++
	s.submitGen++
}

// SetQuery replaces the buffer
func (s *Session) SetQuery(q string) {
	s.mu.Lock()
	s.query = q
	s.mu.Unlock()
}

// Query returns the buffer
func (s *Session) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// LastError returns the error embedded in the latest execution result
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result.Failed() {
		return s.result.Error
	}
	return ""
}

// Execute runs the buffer against the selected exercise. Only a missing
// selection or a detail fetch still in flight is reported; transport
// failures are logged and the previous result stays.
func (s *Session) Execute(ctx context.Context) error {
	s.mu.Lock()
	if !s.hasExercise {
		s.mu.Unlock()
		return domain.ErrNoExercise
	}
	if s.loading {
		s.mu.Unlock()
		return domain.ErrExerciseLoading
	}
	s.execGen++
	gen, id, query := s.execGen, s.exerciseID, s.query
	s.executing = true
	s.mu.Unlock()

	res, err := s.runner.Execute(ctx, id, query)

	s.mu.Lock()
	if gen != s.execGen {
		s.mu.Unlock()
		s.logger.Debug("dropped stale execution result", "exercise_id", id)
		return nil
	}
	s.executing = false
	if err != nil || res == nil {
		s.mu.Unlock()
		s.logger.Warn("execute query failed", "exercise_id", id, "error", err)
		return nil
	}
	s.result = res
	out := *res
	s.mu.Unlock()

	s.events.Publish(ctx, domain.NewQueryExecutedEvent(id, out))
	return nil
}

// Submit grades the buffer. Failure handling matches Execute.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	if !s.hasExercise {
		s.mu.Unlock()
		return domain.ErrNoExercise
	}
	if s.loading {
		s.mu.Unlock()
		return domain.ErrExerciseLoading
	}
	s.submitGen++
	gen, id, query := s.submitGen, s.exerciseID, s.query
	s.submitting = true
	s.mu.Unlock()

	res, err := s.runner.Submit(ctx, id, query)

	s.mu.Lock()
	if gen != s.submitGen {
		s.mu.Unlock()
		s.logger.Debug("dropped stale submit result", "exercise_id", id)
		return nil
	}
	s.submitting = false
	if err != nil || res == nil {
		s.mu.Unlock()
		s.logger.Warn("submit query failed", "exercise_id", id, "error", err)
		return nil
	}
	s.submitResult = res
	out := *res
	s.mu.Unlock()

	s.events.Publish(ctx, domain.NewQuerySubmittedEvent(id, out))
	return nil
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ExerciseID:   s.exerciseID,
		HasExercise:  s.hasExercise,
		Exercise:     s.exercise,
		Query:        s.query,
		Result:       s.result,
		SubmitResult: s.submitResult,
		Loading:      s.loading,
		Executing:    s.executing,
		Submitting:   s.submitting,
	}
}
