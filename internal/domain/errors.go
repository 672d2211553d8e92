package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// These errors are returned by the state holders and the adapter so callers
// can branch with errors.Is.
// -----------------------------------------------------------------------------

// Browsing and editor errors
var (
	ErrNoExercise        = errors.New("no exercise selected")
	ErrExerciseLoading   = errors.New("exercise is still loading")
	ErrExerciseNotListed = errors.New("exercise not in current list")
	ErrInvalidDifficulty = errors.New("invalid difficulty")
)

// Assistant errors
var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrSendInFlight = errors.New("a message is already being sent")
)

// Auth errors
var (
	ErrMissingCredentials = errors.New("username and password required")
	ErrNotAuthenticated   = errors.New("not logged in")
	ErrForbidden          = errors.New("instructor role required")
)

// Instructor form errors
var (
	ErrTitleRequired       = errors.New("title is required")
	ErrDescriptionRequired = errors.New("description is required")
	ErrAnswerRequired      = errors.New("answer query is required")
	ErrNothingToUpdate     = errors.New("nothing to update")
)

// General errors
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)
