// Package workspace composes the student workspace: the exercise list, the
// editor, the assistant and the submission history, driven by one backend
// and one event dispatcher.
package workspace

import (
	"context"
	"log/slog"
	"sync"

	"github.com/felixgeelhaar/chatsql/internal/assistant"
	"github.com/felixgeelhaar/chatsql/internal/browse"
	"github.com/felixgeelhaar/chatsql/internal/domain"
	"github.com/felixgeelhaar/chatsql/internal/editor"
	"github.com/felixgeelhaar/chatsql/internal/history"
)

// Backend is everything the workspace asks of the adapter
type Backend interface {
	browse.Lister
	editor.Runner
	assistant.Tutor
	history.Source
	SetDemo(on bool)
}

// Layout is the visibility of the side panes
type Layout struct {
	SidebarOpen   bool
	AssistantOpen bool
}

// Shell owns the state holders and connects them:
// exercise.selected loads the editor, exercise.loaded binds the assistant.
type Shell struct {
	Browse    *browse.State
	Editor    *editor.Session
	Assistant *assistant.Conversation
	History   *history.Panel

	backend Backend
	events  *domain.EventDispatcher
	logger  *slog.Logger

	mu     sync.Mutex
	layout Layout
}

// New wires a workspace over backend. events may be nil.
func New(backend Backend, events *domain.EventDispatcher, layout Layout, logger *slog.Logger) *Shell {
	if events == nil {
		events = domain.NewEventDispatcher()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Shell{
		Browse:    browse.New(backend, events, logger.With("component", "browse")),
		Editor:    editor.New(backend, events, logger.With("component", "editor")),
		Assistant: assistant.New(backend, events, logger.With("component", "assistant")),
		History:   history.New(backend, logger.With("component", "history")),
		backend:   backend,
		events:    events,
		logger:    logger,
		layout:    layout,
	}

	events.Subscribe(domain.EventSelectionChanged, s.onSelectionChanged)
	events.Subscribe(domain.EventExerciseLoaded, s.Assistant.HandleExerciseLoaded)
	return s
}

func (s *Shell) onSelectionChanged(ctx context.Context, e domain.Event) {
	s.Editor.HandleSelection(ctx, e)
	if sc, ok := e.(domain.SelectionChangedEvent); ok && !sc.Selected {
		s.Assistant.Unbind()
		s.History.Clear()
	}
}

// Events returns the dispatcher views subscribe to
func (s *Shell) Events() *domain.EventDispatcher {
	return s.events
}

// Mount starts a fresh workspace: the chat log is emptied and the list,
// the tag choices and the first exercise are loaded.
func (s *Shell) Mount(ctx context.Context) {
	s.Assistant.Clear()
	s.Browse.Load(ctx)
}

// SetDemoMode flips the demo switch and reloads everything that depends on
// it. The current exercise is reloaded even when it stays selected.
func (s *Shell) SetDemoMode(ctx context.Context, on bool) {
	s.backend.SetDemo(on)
	s.logger.Info("demo mode changed", "demo", on)
	s.Browse.Load(ctx)
}

// Demo reports whether the workspace shows demo data
func (s *Shell) Demo() bool {
	return s.backend.Demo()
}

// Ask sends a question to the assistant along with the buffer and the
// error of the latest execution
func (s *Shell) Ask(ctx context.Context, text string) error {
	return s.Assistant.Send(ctx, text, assistant.EditorContext{
		Query:     s.Editor.Query(),
		LastError: s.Editor.LastError(),
	})
}

// LoadHistory loads the submission history of the current exercise
func (s *Shell) LoadHistory(ctx context.Context) (history.Result, error) {
	snap := s.Editor.Snapshot()
	if !snap.HasExercise {
		return history.Result{}, domain.ErrNoExercise
	}
	return s.History.Load(ctx, snap.ExerciseID), nil
}

// Layout returns the pane visibility
func (s *Shell) Layout() Layout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layout
}

// ToggleSidebar shows or hides the exercise list
func (s *Shell) ToggleSidebar(ctx context.Context) Layout {
	return s.setLayout(ctx, func(l *Layout) { l.SidebarOpen = !l.SidebarOpen })
}

// ToggleAssistant shows or hides the assistant pane
func (s *Shell) ToggleAssistant(ctx context.Context) Layout {
	return s.setLayout(ctx, func(l *Layout) { l.AssistantOpen = !l.AssistantOpen })
}

// SetAssistantOpen shows or hides the assistant pane explicitly
func (s *Shell) SetAssistantOpen(ctx context.Context, open bool) Layout {
	return s.setLayout(ctx, func(l *Layout) { l.AssistantOpen = open })
}

func (s *Shell) setLayout(ctx context.Context, fn func(*Layout)) Layout {
	s.mu.Lock()
	prev := s.layout
	fn(&s.layout)
	next := s.layout
	s.mu.Unlock()

	if next != prev {
		s.events.Publish(ctx, domain.NewLayoutChangedEvent(next.SidebarOpen, next.AssistantOpen))
	}
	return next
}
