package auth

import "github.com/felixgeelhaar/chatsql/internal/domain"

// Routes of the client
const (
	RouteWorkspace  = "/"
	RouteAuth       = "/auth"
	RouteInstructor = "/instructor"
)

// Resolve returns the route to show for a requested route. Anonymous users
// asking for the instructor dashboard go to the login page and students go
// back to the workspace; everything else is public.
func Resolve(state domain.AuthState, route string) string {
	if route != RouteInstructor {
		return route
	}
	switch {
	case !state.IsAuthenticated:
		return RouteAuth
	case state.Role != domain.RoleInstructor:
		return RouteWorkspace
	default:
		return RouteInstructor
	}
}

// Landing is where a freshly signed-in user is sent
func Landing(role domain.Role) string {
	if role == domain.RoleInstructor {
		return RouteInstructor
	}
	return RouteWorkspace
}

// RequireInstructor fails unless state grants the instructor pages
func RequireInstructor(state domain.AuthState) error {
	if !state.IsAuthenticated {
		return domain.ErrNotAuthenticated
	}
	if state.Role != domain.RoleInstructor {
		return domain.ErrForbidden
	}
	return nil
}
