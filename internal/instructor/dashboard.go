// Package instructor implements the instructor dashboard: headline stats,
// recent activity, the student table and exercise management.
package instructor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/chatsql/internal/api"
	"github.com/felixgeelhaar/chatsql/internal/auth"
	"github.com/felixgeelhaar/chatsql/internal/domain"
	"github.com/felixgeelhaar/chatsql/internal/i18n"
)

// Backend is the instructor part of the adapter
type Backend interface {
	InstructorStats(ctx context.Context) (*domain.InstructorStats, error)
	InstructorActivity(ctx context.Context) ([]domain.Activity, error)
	InstructorStudents(ctx context.Context) ([]domain.Student, error)
	InstructorStudent(ctx context.Context, id int64) (*domain.StudentDetail, error)
	InstructorExercises(ctx context.Context) ([]domain.ManagedExercise, error)
	CreateExercise(ctx context.Context, draft domain.ExerciseDraft) (*domain.MutationResult, error)
	UpdateExercise(ctx context.Context, id int64, update domain.ExerciseUpdate) (*domain.MutationResult, error)
	DeleteExercise(ctx context.Context, id int64) (*domain.MutationResult, error)
}

// Overview is the landing view: stats and the activity feed
type Overview struct {
	Stats    domain.InstructorStats
	Activity []domain.Activity
	Message  string
}

// StudentList is the filtered student table
type StudentList struct {
	Students []domain.Student
	Total    int
	Message  string
}

// StudentView is one student's detail page
type StudentView struct {
	Detail  *domain.StudentDetail
	Message string
}

// ExerciseList is the managed exercise table
type ExerciseList struct {
	Exercises []domain.ManagedExercise
	Message   string
}

// SaveError is a failed create, update or delete, carrying the text the
// form shows
type SaveError struct {
	Message string
	Err     error
}

func (e *SaveError) Error() string { return e.Message }
func (e *SaveError) Unwrap() error { return e.Err }

// Dashboard serves the instructor views. Reads never fall back to demo
// data: a failure is logged and shown as an empty view with a message.
// Every operation requires the instructor role.
type Dashboard struct {
	backend Backend
	auth    *auth.Context
	logger  *slog.Logger
}

// New creates a dashboard
func New(backend Backend, ac *auth.Context, logger *slog.Logger) *Dashboard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dashboard{backend: backend, auth: ac, logger: logger}
}

// NewDraft returns the create form as it first opens
func NewDraft() domain.ExerciseDraft {
	return domain.ExerciseDraft{
		Difficulty:   "Easy",
		InitialQuery: "SELECT * FROM ",
		SchemaID:     1,
	}
}

func (d *Dashboard) guard() error {
	return auth.RequireInstructor(d.auth.State())
}

// Overview fetches stats and recent activity concurrently. If either
// fails, both are shown empty.
func (d *Dashboard) Overview(ctx context.Context) (Overview, error) {
	if err := d.guard(); err != nil {
		return Overview{}, err
	}

	var (
		stats    *domain.InstructorStats
		activity []domain.Activity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := d.backend.InstructorStats(gctx)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		stats = s
		return nil
	})
	g.Go(func() error {
		a, err := d.backend.InstructorActivity(gctx)
		if err != nil {
			return fmt.Errorf("recent activity: %w", err)
		}
		activity = a
		return nil
	})

	if err := g.Wait(); err != nil {
		d.logger.Warn("load instructor overview failed", "error", err)
		return Overview{
			Activity: []domain.Activity{},
			Message:  i18n.T(ctx, i18n.MsgInstructorLoadFailed),
		}, nil
	}

	out := Overview{Activity: activity}
	if stats != nil {
		out.Stats = *stats
	}
	if out.Activity == nil {
		out.Activity = []domain.Activity{}
	}
	return out, nil
}

// Students lists students whose username or email contains search
func (d *Dashboard) Students(ctx context.Context, search string) (StudentList, error) {
	if err := d.guard(); err != nil {
		return StudentList{}, err
	}

	all, err := d.backend.InstructorStudents(ctx)
	if err != nil {
		d.logger.Warn("load students failed", "error", err)
		return StudentList{
			Students: []domain.Student{},
			Message:  i18n.T(ctx, i18n.MsgInstructorLoadFailed),
		}, nil
	}

	matched := make([]domain.Student, 0, len(all))
	for _, s := range all {
		if s.MatchesSearch(search) {
			matched = append(matched, s)
		}
	}
	return StudentList{Students: matched, Total: len(all)}, nil
}

// Student fetches one student's detail
func (d *Dashboard) Student(ctx context.Context, id int64) (StudentView, error) {
	if err := d.guard(); err != nil {
		return StudentView{}, err
	}

	detail, err := d.backend.InstructorStudent(ctx, id)
	if err != nil {
		d.logger.Warn("load student failed", "student_id", id, "error", err)
		return StudentView{Message: i18n.T(ctx, i18n.MsgInstructorLoadFailed)}, nil
	}
	return StudentView{Detail: detail}, nil
}

// Exercises lists the managed exercises
func (d *Dashboard) Exercises(ctx context.Context) (ExerciseList, error) {
	if err := d.guard(); err != nil {
		return ExerciseList{}, err
	}

	list, err := d.backend.InstructorExercises(ctx)
	if err != nil {
		d.logger.Warn("load managed exercises failed", "error", err)
		return ExerciseList{
			Exercises: []domain.ManagedExercise{},
			Message:   i18n.T(ctx, i18n.MsgInstructorLoadFailed),
		}, nil
	}
	if list == nil {
		list = []domain.ManagedExercise{}
	}
	return ExerciseList{Exercises: list}, nil
}

// Create posts a new exercise
func (d *Dashboard) Create(ctx context.Context, draft domain.ExerciseDraft) (*domain.MutationResult, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}

	res, err := d.backend.CreateExercise(ctx, draft)
	if err != nil {
		return nil, d.saveError(ctx, "create exercise", err)
	}
	d.logger.Info("exercise created", "id", res.ID, "title", draft.Title)
	return res, nil
}

// Update changes an exercise
func (d *Dashboard) Update(ctx context.Context, id int64, update domain.ExerciseUpdate) (*domain.MutationResult, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}

	res, err := d.backend.UpdateExercise(ctx, id, update)
	if err != nil {
		return nil, d.saveError(ctx, "update exercise", err)
	}
	d.logger.Info("exercise updated", "id", id)
	return res, nil
}

// Delete removes an exercise
func (d *Dashboard) Delete(ctx context.Context, id int64) (*domain.MutationResult, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}

	res, err := d.backend.DeleteExercise(ctx, id)
	if err != nil {
		return nil, d.saveError(ctx, "delete exercise", err)
	}
	d.logger.Info("exercise deleted", "id", id)
	return res, nil
}

// saveError picks the form text: a validation failure or the backend's own
// message when there is one, the generic failure otherwise
func (d *Dashboard) saveError(ctx context.Context, op string, err error) error {
	d.logger.Warn(op+" failed", "error", err)

	msg := i18n.T(ctx, i18n.MsgInstructorSaveFailed)
	var status *api.StatusError
	switch {
	case isValidation(err):
		msg = validationMessage(err)
	case errors.As(err, &status) && status.Message != "":
		msg = status.Message
	}
	return &SaveError{Message: msg, Err: err}
}

var validationErrors = []error{
	domain.ErrTitleRequired,
	domain.ErrDescriptionRequired,
	domain.ErrAnswerRequired,
	domain.ErrInvalidDifficulty,
	domain.ErrNothingToUpdate,
}

func isValidation(err error) bool {
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

func validationMessage(err error) string {
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			msg := v.Error()
			return strings.ToUpper(msg[:1]) + msg[1:]
		}
	}
	return err.Error()
}
