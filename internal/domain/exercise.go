package domain

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultQuery is loaded into the editor when an exercise has no starter query
const DefaultQuery = "SELECT 1"

// Exercise represents one SQL challenge as served by the backend
type Exercise struct {
	ID            int64          `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Difficulty    Difficulty     `json:"difficulty"`
	InitialQuery  string         `json:"initial_query,omitempty"`
	ExpectedQuery string         `json:"expected_query,omitempty"` // solution SQL, instructor-authored
	Hints         []Hint         `json:"hints,omitempty"`
	Schema        DatabaseSchema `json:"schema"`
	Tags          []string       `json:"tags,omitempty"`
	Workshop      string         `json:"workshop,omitempty"`
	DatabaseName  string         `json:"database_name,omitempty"`
}

// Hint is a leveled nudge attached to an exercise
type Hint struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// DatabaseSchema describes the sandbox database an exercise runs against
type DatabaseSchema struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	DisplayName   string `json:"display_name"`
	Description   string `json:"description,omitempty"`
	DBName        string `json:"db_name,omitempty"`
	ExerciseCount int    `json:"exercise_count,omitempty"`
}

// Difficulty represents exercise difficulty level
type Difficulty string

const (
	// DifficultyAll is the empty filter value
	DifficultyAll    Difficulty = ""
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists the filter choices in display order, "all" first
var Difficulties = []Difficulty{DifficultyAll, DifficultyEasy, DifficultyMedium, DifficultyHard}

// ParseDifficulty normalizes user input. "all" and "" both mean no filter.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case "all", DifficultyAll:
		return DifficultyAll, nil
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDifficulty, s)
	}
}

// Valid reports whether d is a known difficulty or the empty filter
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyAll, DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Label returns the display label, "all" for the empty filter
func (d Difficulty) Label() string {
	if d == DifficultyAll {
		return "all"
	}
	return string(d)
}

// StarterQuery returns the query the editor starts with for this exercise
func (e *Exercise) StarterQuery() string {
	if e == nil || e.InitialQuery == "" {
		return DefaultQuery
	}
	return e.InitialQuery
}

// HasTag reports whether the exercise carries tag t (surrounding space ignored)
func (e *Exercise) HasTag(t string) bool {
	t = strings.TrimSpace(t)
	for _, tag := range e.Tags {
		if strings.TrimSpace(tag) == t {
			return true
		}
	}
	return false
}

// TagVocabulary derives the sorted set of tags offered by the tag filter.
// Callers pass the unfiltered exercise set so that filtering never removes
// filter options.
func TagVocabulary(exercises []Exercise) []string {
	seen := make(map[string]struct{})
	for _, ex := range exercises {
		for _, tag := range ex.Tags {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			seen[tag] = struct{}{}
		}
	}

	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// FindExercise returns the exercise with the given id, if present
func FindExercise(exercises []Exercise, id int64) (Exercise, bool) {
	for _, ex := range exercises {
		if ex.ID == id {
			return ex, true
		}
	}
	return Exercise{}, false
}
