package domain

import "strings"

// InstructorStats are the headline numbers of the instructor dashboard
type InstructorStats struct {
	TotalStudents         int     `json:"total_students"`
	TotalExercises        int     `json:"total_exercises"`
	TotalSubmissions      int     `json:"total_submissions"`
	AverageCompletionRate float64 `json:"average_completion_rate"` // percent
}

// Student is one row of the instructor's student table
type Student struct {
	ID               int64   `json:"id"`
	Username         string  `json:"username"`
	Email            string  `json:"email"`
	StudentID        string  `json:"student_id"`
	DateJoined       string  `json:"date_joined"`
	LastLogin        *string `json:"last_login,omitempty"`
	SubmissionsCount int     `json:"submissions_count"`
}

// MatchesSearch reports whether the username or email contains term, ignoring case
func (s Student) MatchesSearch(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s.Username), term) ||
		strings.Contains(strings.ToLower(s.Email), term)
}

// StudentSubmission is a graded attempt listed on a student's detail page
type StudentSubmission struct {
	ID            int64            `json:"id"`
	ExerciseTitle string           `json:"exercise_title"`
	Status        SubmissionStatus `json:"status"`
	CreatedAt     string           `json:"created_at"`
}

// StudentDetail is the instructor's view of one student
type StudentDetail struct {
	ID          int64               `json:"id"`
	Username    string              `json:"username"`
	Email       string              `json:"email"`
	StudentID   string              `json:"student_id"`
	DateJoined  string              `json:"date_joined"`
	Submissions []StudentSubmission `json:"submissions"`
}

// Activity is one entry of the recent-activity feed
type Activity struct {
	ID     int64            `json:"id"`
	User   string           `json:"user"`
	Action string           `json:"action"`
	Date   string           `json:"date"`
	Status SubmissionStatus `json:"status"`
}

// ManagedExercise is an exercise as listed by the instructor endpoints.
// Difficulty keeps the backend's capitalization (Easy/Medium/Hard).
type ManagedExercise struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Difficulty   string  `json:"difficulty"`
	Description  string  `json:"description"`
	Tag          string  `json:"tag"`
	DatabaseName string  `json:"database_name"`
	CreatedAt    *string `json:"created_at"`
}

// ExerciseDraft holds the create-exercise form
type ExerciseDraft struct {
	Title        string
	Description  string
	Difficulty   string
	InitialQuery string
	AnswerQuery  string
	SchemaID     int64
}

// Validate checks the fields the create form requires
func (d ExerciseDraft) Validate() error {
	switch {
	case strings.TrimSpace(d.Title) == "":
		return ErrTitleRequired
	case strings.TrimSpace(d.Description) == "":
		return ErrDescriptionRequired
	case strings.TrimSpace(d.AnswerQuery) == "":
		return ErrAnswerRequired
	}
	if diff, err := ParseDifficulty(d.Difficulty); err != nil || diff == DifficultyAll {
		return ErrInvalidDifficulty
	}
	return nil
}

// ExerciseUpdate carries the fields an instructor may change; nil fields are kept
type ExerciseUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Difficulty  *string `json:"difficulty,omitempty"`
	ExpectedSQL *string `json:"expected_sql,omitempty"`
}

// IsEmpty reports whether the update changes nothing
func (u ExerciseUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Difficulty == nil && u.ExpectedSQL == nil
}

// MutationResult is returned by instructor create/update/delete calls
type MutationResult struct {
	ID      int64  `json:"id,omitempty"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}
