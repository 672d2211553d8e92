// Package browse owns the exercise list, the filter and the selection.
package browse

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/felixgeelhaar/chatsql/internal/domain"
)

// Lister fetches exercises matching a filter
type Lister interface {
	Exercises(ctx context.Context, f domain.Filter) ([]domain.Exercise, error)
}

// State is the browsing slice of the workspace. Every filter change issues
// one filtered fetch; a response is applied only if no newer fetch was
// issued meanwhile. Fetch failures are logged and leave the list as it was.
type State struct {
	lister Lister
	events *domain.EventDispatcher
	logger *slog.Logger

	mu         sync.Mutex
	filter     domain.Filter
	exercises  []domain.Exercise
	vocabulary []string
	selectedID int64
	selected   bool
	loading    bool
	listGen    uint64
	vocabGen   uint64
}

// Snapshot is a consistent copy of the browsing state
type Snapshot struct {
	Filter       domain.Filter
	Exercises    []domain.Exercise
	Tags         []string
	SelectedID   int64
	HasSelection bool
	Loading      bool
}

// Selected returns the selected exercise as listed
func (s Snapshot) Selected() (domain.Exercise, bool) {
	if !s.HasSelection {
		return domain.Exercise{}, false
	}
	return domain.FindExercise(s.Exercises, s.SelectedID)
}

// New creates an empty browsing state
func New(lister Lister, events *domain.EventDispatcher, logger *slog.Logger) *State {
	if events == nil {
		events = domain.NewEventDispatcher()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &State{
		lister: lister,
		events: events,
		logger: logger,
	}
}

// Load runs both fetches, as on mount or after the demo switch flipped.
// The selection is re-announced even when its id survives, because the
// exercise behind it may have changed.
func (s *State) Load(ctx context.Context) {
	s.RefreshVocabulary(ctx)
	s.fetch(ctx, true)
}

// Refresh re-runs the filtered fetch with the current filter
func (s *State) Refresh(ctx context.Context) {
	s.fetch(ctx, false)
}

// RefreshVocabulary fetches the unfiltered set and derives the tag choices
func (s *State) RefreshVocabulary(ctx context.Context) {
	s.mu.Lock()
	s.vocabGen++
	gen := s.vocabGen
	s.mu.Unlock()

	all, err := s.lister.Exercises(ctx, domain.Filter{})
	if err != nil {
		s.logger.Warn("fetch tag vocabulary failed", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.vocabGen {
		return
	}
	s.vocabulary = domain.TagVocabulary(all)
}

// SetDifficulty replaces the difficulty predicate; DifficultyAll clears it
func (s *State) SetDifficulty(ctx context.Context, d domain.Difficulty) error {
	if !d.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidDifficulty, d)
	}
	if !s.updateFilter(func(f domain.Filter) domain.Filter { return f.WithDifficulty(d) }) {
		return nil
	}
	s.fetch(ctx, false)
	return nil
}

// ToggleTag selects t, or clears the tag predicate when t is already selected
func (s *State) ToggleTag(ctx context.Context, t string) {
	if !s.updateFilter(func(f domain.Filter) domain.Filter { return f.ToggleTag(t) }) {
		return
	}
	s.fetch(ctx, false)
}

// SetTag replaces the tag predicate; "" is the "All" choice
func (s *State) SetTag(ctx context.Context, t string) {
	if !s.updateFilter(func(f domain.Filter) domain.Filter { return f.WithTag(t) }) {
		return
	}
	s.fetch(ctx, false)
}

// ClearFilters resets both predicates
func (s *State) ClearFilters(ctx context.Context) {
	if !s.updateFilter(func(domain.Filter) domain.Filter { return domain.Filter{} }) {
		return
	}
	s.fetch(ctx, false)
}

// updateFilter applies fn and reports whether the filter changed
func (s *State) updateFilter(fn func(domain.Filter) domain.Filter) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := fn(s.filter)
	if next == s.filter {
		return false
	}
	s.filter = next
	return true
}

// Select makes id the selected exercise. Only listed exercises can be
// selected.
func (s *State) Select(ctx context.Context, id int64) error {
	s.mu.Lock()
	if _, ok := domain.FindExercise(s.exercises, id); !ok {
		s.mu.Unlock()
		return fmt.Errorf("select %d: %w", id, domain.ErrExerciseNotListed)
	}
	if s.selected && s.selectedID == id {
		s.mu.Unlock()
		return nil
	}
	s.selectedID = id
	s.selected = true
	s.mu.Unlock()

	s.events.Publish(ctx, domain.NewSelectionChangedEvent(id, true, false))
	return nil
}

// Snapshot returns a copy of the current state
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Filter:       s.filter,
		Exercises:    append([]domain.Exercise(nil), s.exercises...),
		Tags:         append([]string(nil), s.vocabulary...),
		SelectedID:   s.selectedID,
		HasSelection: s.selected,
		Loading:      s.loading,
	}
}

func (s *State) fetch(ctx context.Context, announce bool) {
	s.mu.Lock()
	s.listGen++
	gen := s.listGen
	f := s.filter
	s.loading = true
	s.mu.Unlock()

	list, err := s.lister.Exercises(ctx, f)

	s.mu.Lock()
	if gen != s.listGen {
		s.mu.Unlock()
		s.logger.Debug("dropped stale exercise list", "difficulty", f.Difficulty, "tag", f.Tag)
		return
	}
	s.loading = false
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("fetch exercises failed",
			"difficulty", f.Difficulty,
			"tag", f.Tag,
			"error", err)
		return
	}

	s.exercises = list
	prevID, hadSelection := s.selectedID, s.selected
	s.reconcileLocked()
	changed := hadSelection != s.selected || prevID != s.selectedID
	id, selected := s.selectedID, s.selected
	s.mu.Unlock()

	s.events.Publish(ctx, domain.NewExercisesLoadedEvent(f, len(list)))
	if changed || announce {
		s.events.Publish(ctx, domain.NewSelectionChangedEvent(id, selected, !changed))
	}
}

// reconcileLocked keeps the selection if it is still listed, otherwise
// falls back to the first exercise or to no selection
func (s *State) reconcileLocked() {
	if s.selected {
		if _, ok := domain.FindExercise(s.exercises, s.selectedID); ok {
			return
		}
	}
	if len(s.exercises) == 0 {
		s.selectedID = 0
		s.selected = false
		return
	}
	s.selectedID = s.exercises[0].ID
	s.selected = true
}
