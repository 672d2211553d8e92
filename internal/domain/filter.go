package domain

import "strings"

// Filter is the browsing predicate applied to the exercise list.
// The zero value matches every exercise.
type Filter struct {
	Difficulty Difficulty
	Tag        string
}

// WithDifficulty replaces the difficulty predicate
func (f Filter) WithDifficulty(d Difficulty) Filter {
	f.Difficulty = d
	return f
}

// ToggleTag selects tag t, or clears the tag predicate when t is already selected
func (f Filter) ToggleTag(t string) Filter {
	t = strings.TrimSpace(t)
	if f.Tag == t {
		f.Tag = ""
		return f
	}
	f.Tag = t
	return f
}

// WithTag replaces the tag predicate; "" clears it
func (f Filter) WithTag(t string) Filter {
	f.Tag = strings.TrimSpace(t)
	return f
}

// IsZero reports whether no predicate is active
func (f Filter) IsZero() bool {
	return f.Difficulty == DifficultyAll && f.Tag == ""
}

// Matches reports whether ex satisfies every active predicate
func (f Filter) Matches(ex Exercise) bool {
	if f.Difficulty != DifficultyAll && !strings.EqualFold(string(ex.Difficulty), string(f.Difficulty)) {
		return false
	}
	if f.Tag != "" && !ex.HasTag(f.Tag) {
		return false
	}
	return true
}

// Apply returns the exercises that match f, preserving order
func (f Filter) Apply(exercises []Exercise) []Exercise {
	out := make([]Exercise, 0, len(exercises))
	for _, ex := range exercises {
		if f.Matches(ex) {
			out = append(out, ex)
		}
	}
	return out
}
