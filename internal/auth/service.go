package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/chatsql/internal/api"
	"github.com/felixgeelhaar/chatsql/internal/domain"
	"github.com/felixgeelhaar/chatsql/internal/i18n"
)

// Backend is the part of the adapter the auth service needs
type Backend interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResult, error)
	Signup(ctx context.Context, creds domain.Credentials) (*domain.AuthResult, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*domain.AuthResult, error)
	Cookies() []*http.Cookie
	SetCookies(cookies []*http.Cookie)
}

// FormError is a failed login or signup, carrying the text the form shows
type FormError struct {
	Message string
	Err     error
}

func (e *FormError) Error() string { return e.Message }
func (e *FormError) Unwrap() error { return e.Err }

// Service signs users in and out and keeps the auth context and the
// persisted session in step
type Service struct {
	backend Backend
	auth    *Context
	repo    Repository // may be nil
	baseURL string
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates an auth service. repo may be nil to keep the session
// in memory only.
func NewService(backend Backend, auth *Context, repo Repository, baseURL string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend: backend,
		auth:    auth,
		repo:    repo,
		baseURL: baseURL,
		logger:  logger,
		now:     time.Now,
	}
}

// Login authenticates and returns the route to land on
func (s *Service) Login(ctx context.Context, creds domain.Credentials) (string, error) {
	return s.authenticate(ctx, creds, s.backend.Login)
}

// Signup creates an account and returns the route to land on
func (s *Service) Signup(ctx context.Context, creds domain.Credentials) (string, error) {
	return s.authenticate(ctx, creds, s.backend.Signup)
}

func (s *Service) authenticate(
	ctx context.Context,
	creds domain.Credentials,
	call func(context.Context, domain.Credentials) (*domain.AuthResult, error),
) (string, error) {
	if err := creds.Validate(); err != nil {
		return "", &FormError{Message: err.Error(), Err: err}
	}

	res, err := call(ctx, creds)
	if err != nil {
		s.logger.Warn("authentication failed", "username", creds.Username, "error", err)
		return "", &FormError{Message: FormMessage(ctx, err), Err: err}
	}

	username := res.Username
	if username == "" {
		username = creds.Username
	}
	state := domain.AuthState{
		IsAuthenticated: true,
		Username:        username,
		Role:            domain.ParseRole(res.Role),
	}

	s.auth.Set(ctx, state)
	s.persist(state)

	s.logger.Info("signed in", "username", state.Username, "role", state.Role)
	return Landing(state.Role), nil
}

// Logout ends the session locally even when the backend cannot be reached
func (s *Service) Logout(ctx context.Context) error {
	var err error
	if callErr := s.backend.Logout(ctx); callErr != nil {
		s.logger.Warn("backend logout failed", "error", callErr)
		err = fmt.Errorf("logout: %w", callErr)
	}

	s.auth.Clear(ctx)
	if s.repo != nil {
		if delErr := s.repo.DeleteSession(); delErr != nil {
			s.logger.Warn("delete stored session", "error", delErr)
		}
	}
	return err
}

// Restore reloads a stored session and confirms it with the backend. When
// the backend is unreachable the stored identity is kept.
func (s *Service) Restore(ctx context.Context) (domain.AuthState, error) {
	if s.repo == nil {
		return s.auth.State(), nil
	}

	sess, err := s.repo.LoadSession()
	if err != nil {
		return domain.AuthState{}, err
	}
	if sess == nil || sess.BaseURL != s.baseURL {
		return s.auth.State(), nil
	}

	s.backend.SetCookies(restoreCookies(sess.Cookies, s.now()))

	me, err := s.backend.Me(ctx)
	if err != nil {
		s.logger.Warn("could not confirm stored session", "error", err)
		s.auth.Set(ctx, sess.State)
		return s.auth.State(), nil
	}

	if me.Authenticated == nil || !*me.Authenticated {
		s.auth.Clear(ctx)
		if delErr := s.repo.DeleteSession(); delErr != nil {
			s.logger.Warn("delete stored session", "error", delErr)
		}
		return s.auth.State(), nil
	}

	state := domain.AuthState{
		IsAuthenticated: true,
		Username:        me.Username,
		Role:            domain.ParseRole(me.Role),
	}
	s.auth.Set(ctx, state)
	s.persist(state)
	return state, nil
}

func (s *Service) persist(state domain.AuthState) {
	if s.repo == nil {
		return
	}
	sess := &Session{
		BaseURL: s.baseURL,
		State:   state,
		Cookies: saveCookies(s.backend.Cookies()),
		SavedAt: s.now(),
	}
	if err := s.repo.SaveSession(sess); err != nil {
		s.logger.Warn("persist session", "error", err)
	}
}

// FormMessage maps a login/signup failure to the text shown on the form
func FormMessage(ctx context.Context, err error) string {
	var (
		malformed *api.MalformedResponseError
		status    *api.StatusError
		network   *api.NetworkError
	)
	switch {
	case errors.As(err, &malformed):
		return i18n.Td(ctx, i18n.MsgServerError, map[string]any{"Status": malformed.Status})
	case errors.As(err, &status):
		if status.Message != "" {
			return status.Message
		}
		return i18n.Td(ctx, i18n.MsgRequestFailed, map[string]any{"Code": status.Code})
	case errors.As(err, &network):
		return i18n.T(ctx, i18n.MsgNetworkError)
	case errors.Is(err, domain.ErrMissingCredentials):
		return err.Error()
	default:
		return i18n.T(ctx, i18n.MsgNetworkError)
	}
}
