package domain

import (
	"time"

	"github.com/google/uuid"
)

// QueryResult is the outcome of a trial execution against the sandbox
type QueryResult struct {
	Success       bool     `json:"success"`
	Columns       []string `json:"columns"`
	Rows          [][]any  `json:"rows"`
	RowCount      int      `json:"row_count"`
	ExecutionTime float64  `json:"execution_time,omitempty"` // milliseconds
	Error         string   `json:"error,omitempty"`
}

// Failed reports whether the backend embedded an execution error
func (r *QueryResult) Failed() bool {
	return r != nil && r.Error != ""
}

// SubmitResult is the outcome of a graded submission
type SubmitResult struct {
	Correct        bool         `json:"correct"`
	Message        string       `json:"message"`
	UserResult     *QueryResult `json:"user_result,omitempty"`
	ExpectedResult *QueryResult `json:"expected_result,omitempty"`
	Feedback       string       `json:"feedback,omitempty"`
}

// SubmissionStatus is the grading verdict of a past attempt
type SubmissionStatus string

const (
	SubmissionCorrect   SubmissionStatus = "correct"
	SubmissionIncorrect SubmissionStatus = "incorrect"
)

// Submission is one past graded attempt. Timestamps are kept as the
// backend's ISO strings, which carry no zone.
type Submission struct {
	ID            int64            `json:"id"`
	Query         string           `json:"query"`
	Status        SubmissionStatus `json:"status"`
	ExecutionTime *float64         `json:"execution_time"`
	CreatedAt     string           `json:"created_at"`
	UpdatedAt     string           `json:"updated_at"`
}

// AIRequest is one assistant turn sent to the backend
type AIRequest struct {
	Message     string       `json:"message"`
	UserQuery   string       `json:"user_query,omitempty"`
	Error       string       `json:"error,omitempty"`
	Submissions []Submission `json:"submissions"`
}

// AIResponse is the backend's reply to an assistant turn
type AIResponse struct {
	Response       string       `json:"response"`
	SQLQuery       string       `json:"sql_query,omitempty"`
	QueryResult    *QueryResult `json:"query_result,omitempty"`
	Executed       bool         `json:"executed,omitempty"`
	Intent         string       `json:"intent,omitempty"`
	ExecutionError string       `json:"execution_error,omitempty"`
}

// Speaker identifies who authored a chat message
type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerAI   Speaker = "ai"
)

// ChatMessage is one turn of an assistant conversation. Messages live in
// memory only.
type ChatMessage struct {
	ID          uuid.UUID
	Who         Speaker
	Text        string
	SQLQuery    string
	QueryResult *QueryResult
	Executed    bool
	Intent      string
	At          time.Time
}

// NewUserMessage creates a message typed by the student
func NewUserMessage(text string) ChatMessage {
	return ChatMessage{
		ID:   uuid.New(),
		Who:  SpeakerUser,
		Text: text,
		At:   time.Now(),
	}
}

// NewAIMessage creates a message from an assistant response
func NewAIMessage(resp *AIResponse) ChatMessage {
	msg := ChatMessage{
		ID:  uuid.New(),
		Who: SpeakerAI,
		At:  time.Now(),
	}
	if resp != nil {
		msg.Text = resp.Response
		msg.SQLQuery = resp.SQLQuery
		msg.QueryResult = resp.QueryResult
		msg.Executed = resp.Executed
		msg.Intent = resp.Intent
	}
	return msg
}

// NewAIErrorMessage creates an assistant message carrying only text
func NewAIErrorMessage(text string) ChatMessage {
	return ChatMessage{
		ID:   uuid.New(),
		Who:  SpeakerAI,
		Text: text,
		At:   time.Now(),
	}
}
