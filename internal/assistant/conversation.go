// Package assistant keeps the chat log with the AI tutor for the workspace.
package assistant

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/felixgeelhaar/chatsql/internal/domain"
	"github.com/felixgeelhaar/chatsql/internal/i18n"
)

// Tutor answers questions about an exercise
type Tutor interface {
	Ask(ctx context.Context, id int64, req domain.AIRequest) (*domain.AIResponse, error)
	Submissions(ctx context.Context, id int64) ([]domain.Submission, error)
	Demo() bool
}

// EditorContext is what the editor contributes to a question
type EditorContext struct {
	Query     string
	LastError string
}

// Conversation holds the message log and the submission history sent along
// with every question. The log survives exercise switches; only Clear
// empties it.
type Conversation struct {
	tutor  Tutor
	events *domain.EventDispatcher
	logger *slog.Logger

	mu         sync.Mutex
	exerciseID int64
	bound      bool
	boundDemo  bool
	messages   []domain.ChatMessage
	history    []domain.Submission
	pending    bool
	logGen     uint64
	historyGen uint64
}

// New creates an empty conversation
func New(tutor Tutor, events *domain.EventDispatcher, logger *slog.Logger) *Conversation {
	if events == nil {
		events = domain.NewEventDispatcher()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Conversation{
		tutor:   tutor,
		events:  events,
		logger:  logger,
		history: []domain.Submission{},
	}
}

// HandleExerciseLoaded binds the conversation to the exercise id the editor
// runs against. It is meant to be subscribed to exercise.loaded.
func (c *Conversation) HandleExerciseLoaded(ctx context.Context, e domain.Event) {
	if el, ok := e.(domain.ExerciseLoadedEvent); ok {
		c.Bind(ctx, el.ExerciseID)
	}
}

// Bind points the conversation at exercise id and refreshes the submission
// history when the exercise or the demo switch changed since the last bind.
// Demo mode has no history; a failed refresh leaves it empty.
func (c *Conversation) Bind(ctx context.Context, id int64) {
	demo := c.tutor.Demo()

	c.mu.Lock()
	if c.bound && c.exerciseID == id && c.boundDemo == demo {
		c.mu.Unlock()
		return
	}
	c.exerciseID = id
	c.bound = true
	c.boundDemo = demo
	c.history = []domain.Submission{}
	c.historyGen++
	gen := c.historyGen
	c.mu.Unlock()

	if demo {
		return
	}

	subs, err := c.tutor.Submissions(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.historyGen {
		return
	}
	if err != nil {
		c.logger.Warn("load submissions for assistant failed", "exercise_id", id, "error", err)
		return
	}
	c.history = subs
	c.logger.Debug("loaded submissions for assistant", "exercise_id", id, "count", len(subs))
}

// Unbind detaches the conversation, as when no exercise is selected
func (c *Conversation) Unbind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exerciseID = 0
	c.bound = false
	c.history = []domain.Submission{}
	c.historyGen++
}

// Send appends text as a user message, asks the tutor and appends the
// reply. Blank text, a missing exercise and a send already in flight are
// rejected. A failed request appends the fixed error message instead of a
// reply and is not returned.
func (c *Conversation) Send(ctx context.Context, text string, ec EditorContext) error {
	if strings.TrimSpace(text) == "" {
		return domain.ErrEmptyMessage
	}

	c.mu.Lock()
	if !c.bound {
		c.mu.Unlock()
		return domain.ErrNoExercise
	}
	if c.pending {
		c.mu.Unlock()
		return domain.ErrSendInFlight
	}
	c.pending = true
	c.messages = append(c.messages, domain.NewUserMessage(text))
	id, gen := c.exerciseID, c.logGen
	req := domain.AIRequest{
		Message:     text,
		UserQuery:   ec.Query,
		Error:       ec.LastError,
		Submissions: append([]domain.Submission{}, c.history...),
	}
	c.mu.Unlock()

	resp, err := c.tutor.Ask(ctx, id, req)

	var reply domain.ChatMessage
	if err != nil || resp == nil {
		c.logger.Warn("ask assistant failed", "exercise_id", id, "error", err)
		reply = domain.NewAIErrorMessage(i18n.T(ctx, i18n.MsgAIError))
	} else {
		reply = domain.NewAIMessage(resp)
	}

	c.mu.Lock()
	c.pending = false
	if gen != c.logGen {
		c.mu.Unlock()
		return nil
	}
	c.messages = append(c.messages, reply)
	c.mu.Unlock()

	c.events.Publish(ctx, domain.NewAssistantRepliedEvent(id, reply))
	return nil
}

// Clear empties the log. A reply still in flight is dropped.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
	c.logGen++
}

// Messages returns a copy of the log in send order
func (c *Conversation) Messages() []domain.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.ChatMessage(nil), c.messages...)
}

// Pending reports whether a send is in flight
func (c *Conversation) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// History returns the submissions sent along with questions
func (c *Conversation) History() []domain.Submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Submission{}, c.history...)
}

// ExerciseID returns the bound exercise
func (c *Conversation) ExerciseID() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exerciseID, c.bound
}
