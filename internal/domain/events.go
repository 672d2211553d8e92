package domain

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Event Interface and Base Event
// -----------------------------------------------------------------------------

// Event represents a state change published by one of the workspace slices
type Event interface {
	// EventID returns the unique identifier for this event
	EventID() uuid.UUID
	// EventType returns the type name of this event
	EventType() string
	// OccurredAt returns when this event occurred
	OccurredAt() time.Time
}

// Event type names
const (
	EventExercisesLoaded  = "exercises.loaded"
	EventSelectionChanged = "exercise.selected"
	EventExerciseLoaded   = "exercise.loaded"
	EventQueryExecuted    = "query.executed"
	EventQuerySubmitted   = "query.submitted"
	EventAssistantReplied = "assistant.replied"
	EventAuthChanged      = "auth.changed"
	EventLayoutChanged    = "layout.changed"
)

// BaseEvent provides common event fields
type BaseEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBaseEvent creates a new BaseEvent
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now(),
	}
}

func (e BaseEvent) EventID() uuid.UUID    { return e.ID }
func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// -----------------------------------------------------------------------------
// Event Handler and Dispatcher
// -----------------------------------------------------------------------------

// EventHandler processes events. The context is the one of the operation
// that caused the event, so handlers may perform follow-up requests with it.
type EventHandler func(ctx context.Context, event Event)

// EventDispatcher manages event subscriptions and publishing
type EventDispatcher struct {
	mu          sync.RWMutex
	handlers    map[string][]EventHandler
	allHandlers []EventHandler // handlers for all events
}

// NewEventDispatcher creates a new event dispatcher
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		handlers: make(map[string][]EventHandler),
	}
}

// Subscribe registers a handler for a specific event type
func (d *EventDispatcher) Subscribe(eventType string, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// SubscribeAll registers a handler for all event types
func (d *EventDispatcher) SubscribeAll(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.allHandlers = append(d.allHandlers, handler)
}

// Publish dispatches an event to all registered handlers in subscription
// order. Handlers run without the dispatcher lock held, so they may publish.
func (d *EventDispatcher) Publish(ctx context.Context, event Event) {
	if d == nil {
		return
	}

	d.mu.RLock()
	typed := append([]EventHandler(nil), d.handlers[event.EventType()]...)
	all := append([]EventHandler(nil), d.allHandlers...)
	d.mu.RUnlock()

	for _, h := range typed {
		h(ctx, event)
	}
	for _, h := range all {
		h(ctx, event)
	}
}

// -----------------------------------------------------------------------------
// Browsing Events
// -----------------------------------------------------------------------------

// ExercisesLoadedEvent is published when a filtered fetch has been applied
type ExercisesLoadedEvent struct {
	BaseEvent
	Filter Filter `json:"filter"`
	Count  int    `json:"count"`
}

// NewExercisesLoadedEvent creates a new exercises loaded event
func NewExercisesLoadedEvent(f Filter, count int) ExercisesLoadedEvent {
	return ExercisesLoadedEvent{
		BaseEvent: NewBaseEvent(EventExercisesLoaded),
		Filter:    f,
		Count:     count,
	}
}

// SelectionChangedEvent is published when the selected exercise changes,
// or must be reloaded (Reload) although the id stayed the same
type SelectionChangedEvent struct {
	BaseEvent
	ExerciseID int64 `json:"exercise_id"`
	Selected   bool  `json:"selected"`
	Reload     bool  `json:"reload"`
}

// NewSelectionChangedEvent creates a new selection changed event
func NewSelectionChangedEvent(id int64, selected, reload bool) SelectionChangedEvent {
	return SelectionChangedEvent{
		BaseEvent:  NewBaseEvent(EventSelectionChanged),
		ExerciseID: id,
		Selected:   selected,
		Reload:     reload,
	}
}

// -----------------------------------------------------------------------------
// Editor Events
// -----------------------------------------------------------------------------

// ExerciseLoadedEvent is published when the exercise detail reached the
// editor. ExerciseID is the selected id the editor runs queries against; it
// can differ from Exercise.ID when the detail came from the demo fallback.
type ExerciseLoadedEvent struct {
	BaseEvent
	ExerciseID int64    `json:"exercise_id"`
	Exercise   Exercise `json:"exercise"`
}

// NewExerciseLoadedEvent creates a new exercise loaded event
func NewExerciseLoadedEvent(id int64, ex Exercise) ExerciseLoadedEvent {
	return ExerciseLoadedEvent{
		BaseEvent:  NewBaseEvent(EventExerciseLoaded),
		ExerciseID: id,
		Exercise:   ex,
	}
}

// QueryExecutedEvent is published when an execution result was applied
type QueryExecutedEvent struct {
	BaseEvent
	ExerciseID int64       `json:"exercise_id"`
	Result     QueryResult `json:"result"`
}

// NewQueryExecutedEvent creates a new query executed event
func NewQueryExecutedEvent(id int64, result QueryResult) QueryExecutedEvent {
	return QueryExecutedEvent{
		BaseEvent:  NewBaseEvent(EventQueryExecuted),
		ExerciseID: id,
		Result:     result,
	}
}

// QuerySubmittedEvent is published when a grading result was applied
type QuerySubmittedEvent struct {
	BaseEvent
	ExerciseID int64        `json:"exercise_id"`
	Result     SubmitResult `json:"result"`
}

// NewQuerySubmittedEvent creates a new query submitted event
func NewQuerySubmittedEvent(id int64, result SubmitResult) QuerySubmittedEvent {
	return QuerySubmittedEvent{
		BaseEvent:  NewBaseEvent(EventQuerySubmitted),
		ExerciseID: id,
		Result:     result,
	}
}

// -----------------------------------------------------------------------------
// Assistant, Auth and Layout Events
// -----------------------------------------------------------------------------

// AssistantRepliedEvent is published when an AI message was appended
type AssistantRepliedEvent struct {
	BaseEvent
	ExerciseID int64       `json:"exercise_id"`
	Message    ChatMessage `json:"message"`
}

// NewAssistantRepliedEvent creates a new assistant replied event
func NewAssistantRepliedEvent(id int64, msg ChatMessage) AssistantRepliedEvent {
	return AssistantRepliedEvent{
		BaseEvent:  NewBaseEvent(EventAssistantReplied),
		ExerciseID: id,
		Message:    msg,
	}
}

// AuthChangedEvent is published by the auth context setter
type AuthChangedEvent struct {
	BaseEvent
	State AuthState `json:"state"`
}

// NewAuthChangedEvent creates a new auth changed event
func NewAuthChangedEvent(state AuthState) AuthChangedEvent {
	return AuthChangedEvent{
		BaseEvent: NewBaseEvent(EventAuthChanged),
		State:     state,
	}
}

// LayoutChangedEvent is published when a pane is shown or hidden
type LayoutChangedEvent struct {
	BaseEvent
	SidebarOpen   bool `json:"sidebar_open"`
	AssistantOpen bool `json:"assistant_open"`
}

// NewLayoutChangedEvent creates a new layout changed event
func NewLayoutChangedEvent(sidebar, assistant bool) LayoutChangedEvent {
	return LayoutChangedEvent{
		BaseEvent:     NewBaseEvent(EventLayoutChanged),
		SidebarOpen:   sidebar,
		AssistantOpen: assistant,
	}
}
