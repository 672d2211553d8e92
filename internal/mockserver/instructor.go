package mockserver

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/felixgeelhaar/chatsql/internal/domain"
)

// activityLimit is how many entries the recent-activity feed returns
const activityLimit = 10

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func (s *store) studentsLocked() []*user {
	var out []*user
	for _, u := range s.users {
		if u.role == domain.RoleStudent {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b *user) int { return int(a.id - b.id) })
	return out
}

func (s *store) toStudentLocked(u *user) domain.Student {
	st := domain.Student{
		ID:         u.id,
		Username:   u.username,
		Email:      u.email,
		StudentID:  studentNumber(u.id),
		DateJoined: formatTime(u.joined),
	}
	if u.lastLogin != nil {
		ll := formatTime(*u.lastLogin)
		st.LastLogin = &ll
	}
	for _, sub := range s.submissions {
		if sub.userID == u.id {
			st.SubmissionsCount++
		}
	}
	return st
}

func studentNumber(id int64) string {
	return fmt.Sprintf("S%05d", id)
}

// stats computes the dashboard headline numbers. The completion rate is the
// share of (student, exercise) pairs with a correct submission.
func (s *store) stats() domain.InstructorStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	students := s.studentsLocked()
	st := domain.InstructorStats{
		TotalStudents:    len(students),
		TotalExercises:   len(s.exercises),
		TotalSubmissions: len(s.submissions),
	}
	pairs := len(students) * len(s.exercises)
	if pairs == 0 {
		return st
	}

	type key struct{ user, exercise int64 }
	solved := make(map[key]bool)
	for _, sub := range s.submissions {
		if sub.status == domain.SubmissionCorrect {
			solved[key{sub.userID, sub.exerciseID}] = true
		}
	}
	st.AverageCompletionRate = float64(len(solved)) / float64(pairs) * 100
	return st
}

func (s *store) students() []domain.Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Student{}
	for _, u := range s.studentsLocked() {
		out = append(out, s.toStudentLocked(u))
	}
	return out
}

func (s *store) student(id int64) (domain.StudentDetail, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok || u.role != domain.RoleStudent {
		return domain.StudentDetail{}, false
	}
	st := s.toStudentLocked(u)
	detail := domain.StudentDetail{
		ID:          st.ID,
		Username:    st.Username,
		Email:       st.Email,
		StudentID:   st.StudentID,
		DateJoined:  st.DateJoined,
		Submissions: []domain.StudentSubmission{},
	}
	for i := len(s.submissions) - 1; i >= 0; i-- {
		sub := s.submissions[i]
		if sub.userID != id {
			continue
		}
		detail.Submissions = append(detail.Submissions, domain.StudentSubmission{
			ID:            sub.id,
			ExerciseTitle: s.exerciseTitleLocked(sub.exerciseID),
			Status:        sub.status,
			CreatedAt:     formatTime(sub.createdAt),
		})
	}
	return detail, true
}

func (s *store) activity() []domain.Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Activity{}
	for i := len(s.submissions) - 1; i >= 0 && len(out) < activityLimit; i-- {
		sub := s.submissions[i]
		name := ""
		if u, ok := s.users[sub.userID]; ok {
			name = u.username
		}
		out = append(out, domain.Activity{
			ID:     sub.id,
			User:   name,
			Action: "Submitted " + s.exerciseTitleLocked(sub.exerciseID),
			Date:   formatTime(sub.createdAt),
			Status: sub.status,
		})
	}
	return out
}

func (s *store) exerciseTitleLocked(id int64) string {
	if ex, ok := domain.FindExercise(s.exercises, id); ok {
		return ex.Title
	}
	return "deleted exercise"
}

// managedExercises lists exercises the way the instructor endpoints do,
// with capitalized difficulty and a single tag
func (s *store) managedExercises() []domain.ManagedExercise {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// a Caser keeps state, so each call gets its own
	title := cases.Title(language.English)
	out := make([]domain.ManagedExercise, 0, len(s.exercises))
	for _, ex := range s.exercises {
		me := domain.ManagedExercise{
			ID:           ex.ID,
			Title:        ex.Title,
			Difficulty:   title.String(string(ex.Difficulty)),
			Description:  ex.Description,
			DatabaseName: ex.Schema.DBName,
		}
		if len(ex.Tags) > 0 {
			me.Tag = strings.TrimSpace(ex.Tags[0])
		}
		if t, ok := s.createdAt[ex.ID]; ok {
			ts := formatTime(t)
			me.CreatedAt = &ts
		}
		out = append(out, me)
	}
	return out
}
