package mockserver

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/felixgeelhaar/chatsql/internal/api"
	"github.com/felixgeelhaar/chatsql/internal/domain"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrSessionNotFound    = errors.New("session not found")
)

// timeLayout is the zone-less ISO format the backend serves
const timeLayout = "2006-01-02T15:04:05"

// SeedUser is an account created when the server starts
type SeedUser struct {
	Username string
	Password string
	Email    string
	Role     domain.Role
}

// DefaultUsers are the accounts a fresh demo server knows
func DefaultUsers() []SeedUser {
	return []SeedUser{
		{Username: "student", Password: "student123", Email: "student@example.com", Role: domain.RoleStudent},
		{Username: "instructor", Password: "instructor123", Email: "instructor@example.com", Role: domain.RoleInstructor},
	}
}

type user struct {
	id           int64
	username     string
	email        string
	passwordHash []byte
	role         domain.Role
	joined       time.Time
	lastLogin    *time.Time
}

type session struct {
	token     string
	userID    int64
	expiresAt time.Time
}

type submission struct {
	id         int64
	userID     int64
	exerciseID int64
	query      string
	status     domain.SubmissionStatus
	createdAt  time.Time
}

// store is the in-memory backend state
type store struct {
	bcryptCost    int
	sessionMaxAge time.Duration
	now           func() time.Time

	mu          sync.RWMutex
	users       map[int64]*user
	sessions    map[string]*session
	exercises   []domain.Exercise
	createdAt   map[int64]time.Time
	submissions []submission
	nextUserID  int64
	nextExID    int64
	nextSubID   int64
}

func newStore(cost int, maxAge time.Duration) *store {
	s := &store{
		bcryptCost:    cost,
		sessionMaxAge: maxAge,
		now:           time.Now,
		users:         make(map[int64]*user),
		sessions:      make(map[string]*session),
		exercises:     api.MockExercises(),
		createdAt:     make(map[int64]time.Time),
		nextUserID:    1,
		nextSubID:     1,
	}
	for _, ex := range s.exercises {
		s.nextExID = max(s.nextExID, ex.ID)
	}
	s.nextExID++
	return s
}

// Users

func (s *store) register(username, password, email string, role domain.Role) (*user, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findUserLocked(username) != nil {
		return nil, ErrUsernameTaken
	}
	u := &user{
		id:           s.nextUserID,
		username:     username,
		email:        email,
		passwordHash: hash,
		role:         role,
		joined:       s.now(),
	}
	s.nextUserID++
	s.users[u.id] = u
	return u, nil
}

func (s *store) findUserLocked(username string) *user {
	for _, u := range s.users {
		if strings.EqualFold(u.username, username) {
			return u
		}
	}
	return nil
}

// authenticate checks a password and opens a session
func (s *store) authenticate(username, password string) (*user, string, error) {
	s.mu.RLock()
	u := s.findUserLocked(username)
	s.mu.RUnlock()
	if u == nil {
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.openSession(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *store) openSession(u *user) (string, error) {
	token, err := generateToken(32)
	if err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	u.lastLogin = &now
	s.sessions[token] = &session{
		token:     token,
		userID:    u.id,
		expiresAt: now.Add(s.sessionMaxAge),
	}
	return token, nil
}

// userForToken returns the owner of a live session
func (s *store) userForToken(token string) (*user, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.now().After(sess.expiresAt) {
		delete(s.sessions, token)
		return nil, ErrSessionNotFound
	}
	u, ok := s.users[sess.userID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return u, nil
}

func (s *store) closeSession(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// generateToken creates a random URL-safe session token
func generateToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Exercises

// listExercises returns the matching exercises without their solutions
func (s *store) listExercises(f domain.Filter) []domain.Exercise {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := f.Apply(s.exercises)
	for i := range out {
		out[i].ExpectedQuery = ""
	}
	return out
}

func (s *store) exercise(id int64) (domain.Exercise, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.FindExercise(s.exercises, id)
}

func (s *store) addExercise(ex domain.Exercise) domain.Exercise {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex.ID = s.nextExID
	s.nextExID++
	s.exercises = append(s.exercises, ex)
	s.createdAt[ex.ID] = s.now()
	return ex
}

func (s *store) updateExercise(id int64, fn func(*domain.Exercise)) (domain.Exercise, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.exercises {
		if s.exercises[i].ID == id {
			fn(&s.exercises[i])
			return s.exercises[i], true
		}
	}
	return domain.Exercise{}, false
}

func (s *store) deleteExercise(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.exercises, func(ex domain.Exercise) bool { return ex.ID == id })
	if i < 0 {
		return false
	}
	s.exercises = slices.Delete(s.exercises, i, i+1)
	delete(s.createdAt, id)
	return true
}

// Submissions

func (s *store) recordSubmission(userID, exerciseID int64, query string, correct bool) {
	status := domain.SubmissionIncorrect
	if correct {
		status = domain.SubmissionCorrect
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions = append(s.submissions, submission{
		id:         s.nextSubID,
		userID:     userID,
		exerciseID: exerciseID,
		query:      query,
		status:     status,
		createdAt:  s.now(),
	})
	s.nextSubID++
}

// submissionsFor lists a user's attempts at an exercise, newest first
func (s *store) submissionsFor(userID, exerciseID int64) []domain.Submission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Submission{}
	for i := len(s.submissions) - 1; i >= 0; i-- {
		sub := s.submissions[i]
		if sub.userID != userID || sub.exerciseID != exerciseID {
			continue
		}
		ts := sub.createdAt.UTC().Format(timeLayout)
		out = append(out, domain.Submission{
			ID:        sub.id,
			Query:     sub.query,
			Status:    sub.status,
			CreatedAt: ts,
			UpdatedAt: ts,
		})
	}
	return out
}
