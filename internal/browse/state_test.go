package browse

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/felixgeelhaar/chatsql/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var catalog = []domain.Exercise{
	{ID: 1, Title: "Two Sum", Difficulty: domain.DifficultyEasy, Tags: []string{"select", "join"}},
	{ID: 2, Title: "Count by Department", Difficulty: domain.DifficultyEasy, Tags: []string{"aggregate"}},
	{ID: 3, Title: "Top Salaries", Difficulty: domain.DifficultyMedium, Tags: []string{"window", " join"}},
}

// mockLister filters catalog and records every request
type mockLister struct {
	mu    sync.Mutex
	calls []domain.Filter
	err   error
	gates map[domain.Filter]chan struct{}
}

func (m *mockLister) Exercises(ctx context.Context, f domain.Filter) ([]domain.Exercise, error) {
	m.mu.Lock()
	m.calls = append(m.calls, f)
	gate := m.gates[f]
	err := m.err
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return f.Apply(catalog), nil
}

func (m *mockLister) filteredCalls() []domain.Filter {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Filter
	for _, f := range m.calls {
		if !f.IsZero() {
			out = append(out, f)
		}
	}
	return out
}

func (m *mockLister) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestState(l Lister) (*State, *[]domain.SelectionChangedEvent) {
	events := domain.NewEventDispatcher()
	var selections []domain.SelectionChangedEvent
	var mu sync.Mutex
	events.Subscribe(domain.EventSelectionChanged, func(_ context.Context, e domain.Event) {
		mu.Lock()
		defer mu.Unlock()
		selections = append(selections, e.(domain.SelectionChangedEvent))
	})
	return New(l, events, quietLogger()), &selections
}

func ids(exs []domain.Exercise) []int64 {
	out := make([]int64, 0, len(exs))
	for _, ex := range exs {
		out = append(out, ex.ID)
	}
	return out
}

func TestLoad_SelectsFirstAndDerivesTags(t *testing.T) {
	lister := &mockLister{}
	s, selections := newTestState(lister)

	s.Load(context.Background())
	snap := s.Snapshot()

	if diff := cmp.Diff([]int64{1, 2, 3}, ids(snap.Exercises)); diff != "" {
		t.Errorf("exercises mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"aggregate", "join", "select", "window"}, snap.Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if !snap.HasSelection || snap.SelectedID != 1 {
		t.Errorf("selection = %d/%v, want 1", snap.SelectedID, snap.HasSelection)
	}
	if len(*selections) != 1 || (*selections)[0].ExerciseID != 1 {
		t.Errorf("selection events = %+v", *selections)
	}
	if snap.Loading {
		t.Error("Loading should be false after fetch")
	}
}

func TestLoad_ReannouncesUnchangedSelection(t *testing.T) {
	s, selections := newTestState(&mockLister{})
	ctx := context.Background()

	s.Load(ctx)
	s.Load(ctx)

	if len(*selections) != 2 {
		t.Fatalf("selection events = %d, want 2", len(*selections))
	}
	if second := (*selections)[1]; second.ExerciseID != 1 || !second.Reload {
		t.Errorf("second event = %+v, want reload of 1", second)
	}
}

func TestToggleTagTwiceClearsFilter(t *testing.T) {
	lister := &mockLister{}
	s, _ := newTestState(lister)
	ctx := context.Background()
	s.Load(ctx)

	s.ToggleTag(ctx, "join")
	if got := s.Snapshot().Filter.Tag; got != "join" {
		t.Fatalf("after first toggle tag = %q, want join", got)
	}
	if diff := cmp.Diff([]int64{1, 3}, ids(s.Snapshot().Exercises)); diff != "" {
		t.Errorf("join list mismatch (-want +got):\n%s", diff)
	}

	s.ToggleTag(ctx, "join")
	snap := s.Snapshot()
	if snap.Filter.Tag != "" || !snap.Filter.IsZero() {
		t.Errorf("after second toggle filter = %+v, want unfiltered", snap.Filter)
	}
	if len(snap.Exercises) != 3 {
		t.Errorf("exercises = %d, want 3", len(snap.Exercises))
	}
}

func TestEachChangeIssuesOneFetch(t *testing.T) {
	lister := &mockLister{}
	s, _ := newTestState(lister)
	ctx := context.Background()
	s.Load(ctx)
	base := lister.callCount()

	if err := s.SetDifficulty(ctx, domain.DifficultyEasy); err != nil {
		t.Fatal(err)
	}
	if err := s.SetDifficulty(ctx, domain.DifficultyEasy); err != nil {
		t.Fatal(err)
	}
	s.SetTag(ctx, "aggregate")
	s.SetTag(ctx, "aggregate")

	if got := lister.callCount() - base; got != 2 {
		t.Errorf("fetches = %d, want 2 (unchanged values issue none)", got)
	}

	want := []domain.Filter{
		{Difficulty: domain.DifficultyEasy},
		{Difficulty: domain.DifficultyEasy, Tag: "aggregate"},
	}
	if diff := cmp.Diff(want, lister.filteredCalls()); diff != "" {
		t.Errorf("request filters mismatch (-want +got):\n%s", diff)
	}

	s.ClearFilters(ctx)
	s.ClearFilters(ctx)
	if got := lister.callCount() - base; got != 3 {
		t.Errorf("fetches after clear = %d, want 3", got)
	}
}

func TestSetDifficulty_Invalid(t *testing.T) {
	lister := &mockLister{}
	s, _ := newTestState(lister)

	err := s.SetDifficulty(context.Background(), domain.Difficulty("expert"))
	if !errors.Is(err, domain.ErrInvalidDifficulty) {
		t.Errorf("SetDifficulty() error = %v", err)
	}
	if lister.callCount() != 0 {
		t.Error("invalid difficulty must not fetch")
	}
}

func TestReconcileSelection(t *testing.T) {
	lister := &mockLister{}
	s, selections := newTestState(lister)
	ctx := context.Background()
	s.Load(ctx)

	if err := s.Select(ctx, 3); err != nil {
		t.Fatal(err)
	}

	// 3 survives the join filter
	s.ToggleTag(ctx, "join")
	if got := s.Snapshot().SelectedID; got != 3 {
		t.Errorf("selection = %d, want 3 kept", got)
	}

	// 3 is not easy, so the first easy exercise is selected
	_ = s.SetDifficulty(ctx, domain.DifficultyEasy)
	if got := s.Snapshot().SelectedID; got != 1 {
		t.Errorf("selection = %d, want 1", got)
	}

	// nothing is hard
	_ = s.SetDifficulty(ctx, domain.DifficultyHard)
	snap := s.Snapshot()
	if snap.HasSelection || len(snap.Exercises) != 0 {
		t.Errorf("selection = %d/%v, want none", snap.SelectedID, snap.HasSelection)
	}
	if _, ok := snap.Selected(); ok {
		t.Error("Selected() should report nothing")
	}

	last := (*selections)[len(*selections)-1]
	if last.Selected {
		t.Errorf("last selection event = %+v, want deselect", last)
	}
}

func TestSelect(t *testing.T) {
	s, selections := newTestState(&mockLister{})
	ctx := context.Background()
	s.Load(ctx)
	before := len(*selections)

	if err := s.Select(ctx, 99); !errors.Is(err, domain.ErrExerciseNotListed) {
		t.Errorf("Select(99) error = %v", err)
	}
	if err := s.Select(ctx, 1); err != nil {
		t.Errorf("Select(1) error = %v", err)
	}
	if len(*selections) != before {
		t.Error("selecting the current exercise must not publish")
	}
	if err := s.Select(ctx, 2); err != nil {
		t.Fatal(err)
	}
	ex, ok := s.Snapshot().Selected()
	if !ok || ex.Title != "Count by Department" {
		t.Errorf("Selected() = %+v, %v", ex, ok)
	}
}

func TestFetchFailureKeepsList(t *testing.T) {
	lister := &mockLister{}
	s, _ := newTestState(lister)
	ctx := context.Background()
	s.Load(ctx)

	lister.mu.Lock()
	lister.err = errors.New("connection refused")
	lister.mu.Unlock()

	s.ToggleTag(ctx, "window")
	snap := s.Snapshot()
	if len(snap.Exercises) != 3 || snap.SelectedID != 1 {
		t.Errorf("failed fetch changed the list: %v, selected %d", ids(snap.Exercises), snap.SelectedID)
	}
	if snap.Filter.Tag != "window" {
		t.Errorf("filter should still record the choice, got %+v", snap.Filter)
	}
	if len(snap.Tags) != 4 {
		t.Errorf("tags = %v", snap.Tags)
	}
}

func TestStaleResponseIsDropped(t *testing.T) {
	easy := domain.Filter{Difficulty: domain.DifficultyEasy}
	gate := make(chan struct{})
	lister := &mockLister{gates: map[domain.Filter]chan struct{}{easy: gate}}
	s, _ := newTestState(lister)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.SetDifficulty(ctx, domain.DifficultyEasy)
	}()

	// wait until the slow fetch is in flight
	for lister.callCount() == 0 {
		runtime.Gosched()
	}

	_ = s.SetDifficulty(ctx, domain.DifficultyMedium)
	close(gate)
	wg.Wait()

	snap := s.Snapshot()
	if diff := cmp.Diff([]int64{3}, ids(snap.Exercises)); diff != "" {
		t.Errorf("late easy response overwrote medium list (-want +got):\n%s", diff)
	}
	if snap.SelectedID != 3 {
		t.Errorf("selection = %d, want 3", snap.SelectedID)
	}
}

// Property: every displayed exercise satisfies both active predicates
func TestDisplayedSetIsConsistentWithFilter(t *testing.T) {
	ctx := context.Background()
	tags := []string{"", "join", "select", "aggregate", "window", "missing"}

	for _, d := range domain.Difficulties {
		for _, tag := range tags {
			s, _ := newTestState(&mockLister{})
			_ = s.SetDifficulty(ctx, d)
			s.SetTag(ctx, tag)
			s.Refresh(ctx)

			f := domain.Filter{Difficulty: d, Tag: tag}
			for _, ex := range s.Snapshot().Exercises {
				if !f.Matches(ex) {
					t.Errorf("filter %+v shows non-matching exercise %d", f, ex.ID)
				}
			}
		}
	}
}
