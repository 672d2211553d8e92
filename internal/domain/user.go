package domain

import "strings"

// Role is the platform role of the signed-in user
type Role string

const (
	RoleNone       Role = ""
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
)

// ParseRole maps a backend role string, defaulting to student
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleInstructor:
		return RoleInstructor
	default:
		return RoleStudent
	}
}

// AuthState is the process-wide identity shown by the layout chrome
type AuthState struct {
	IsAuthenticated bool   `json:"is_authenticated"`
	Username        string `json:"username"`
	Role            Role   `json:"role"`
}

// IsInstructor reports whether the state grants instructor pages
func (s AuthState) IsInstructor() bool {
	return s.IsAuthenticated && s.Role == RoleInstructor
}

// Credentials are submitted by the login and signup forms
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"` // signup only
}

// Validate checks the fields the backend requires
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" || c.Password == "" {
		return ErrMissingCredentials
	}
	return nil
}

// AuthResult is the successful login/signup/me response body
type AuthResult struct {
	Message       string `json:"message,omitempty"`
	Username      string `json:"username"`
	Role          string `json:"role"`
	UserID        int64  `json:"userId,omitempty"`
	Authenticated *bool  `json:"authenticated,omitempty"` // only set by /auth/me/
}
