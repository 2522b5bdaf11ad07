package middleware // middleware provides shared request processing for handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// AccessLevel tags a route with the least privileged audience allowed to
// call it.  Levels map to fixed role sets via AllowedRoles; handlers never
// inspect role names directly.
type AccessLevel int

const (
	// LevelPublic admits any authenticated user.
	LevelPublic AccessLevel = iota
	// LevelModerator admits moderators and admins.
	LevelModerator
	// LevelAdmin admits admins only.
	LevelAdmin
)

// AllowedRoles returns the set of role names admitted at the given level.
// It is a pure function so the mapping can be tested without HTTP
// plumbing.
func AllowedRoles(level AccessLevel) map[string]bool {
	switch level {
	case LevelAdmin:
		return map[string]bool{"admin": true}
	case LevelModerator:
		return map[string]bool{"admin": true, "moderator": true}
	default:
		return map[string]bool{"admin": true, "moderator": true, "user": true}
	}
}

// RequireLevel returns middleware enforcing that the identity resolved by
// Authenticate holds a role admitted at the given level.  The response is
// always 403, never 401: by the time this middleware runs the caller's
// identity is established, only their privileges fall short.
func RequireLevel(level AccessLevel) echo.MiddlewareFunc {
	allowed := AllowedRoles(level)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ident, ok := CurrentIdentity(c)
			if !ok || !allowed[ident.Role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
