package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/theregram/backend/internal/cache"
	"github.com/theregram/backend/internal/repository"
	"github.com/theregram/backend/internal/token"
)

// identityKey is the echo context key the resolved identity is stored
// under.
const identityKey = "identity"

// Identity is the authenticated caller as resolved by Authenticate.  It is
// the cached subset of the user row: enough for role checks and ownership
// comparisons without re-reading the credential store on every request.
type Identity struct {
	ID       uint64 `json:"id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

// UserSource loads a user by email.  *repository.UserRepo satisfies it;
// tests substitute a fake.
type UserSource interface {
	GetByEmail(ctx context.Context, email string) (repository.User, error)
}

// Authenticate returns middleware that resolves a Bearer access token into
// an Identity and stores it in the request context.  The request walks
// token decode, then identity resolution, then admission; any decode failure or
// unknown subject is a 401.  Role checks are a separate middleware
// (RequireLevel) so the two failure modes stay distinct: 401 means
// "reauthenticate", 403 means "you are who you say, but may not proceed".
//
// Identity resolution goes through a read-through cache keyed by subject
// with a short TTL.  The cache is not a source of truth: staleness up to
// the TTL is accepted in exchange for skipping a database read per
// request, and a nil/unreachable cache only costs extra reads.
func Authenticate(tokens *token.Service, users UserSource, store cache.Store, ttl time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Decode verifies signature and expiry first, then checks the
			// scope claim independently, so a refresh token can never be
			// replayed here.
			subject, err := tokens.Decode(raw, token.ScopeAccess)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": unauthorizedMessage(err)})
			}

			ctx := c.Request().Context()
			ident, err := resolveIdentity(ctx, users, store, ttl, subject)
			if err != nil {
				// Token subject with no matching user is still a 401, not
				// a 404: the credential is what failed.
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "could not validate credentials"})
			}
			if !ident.IsActive {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "account is banned"})
			}

			c.Set(identityKey, ident)
			return next(c)
		}
	}
}

// CurrentIdentity returns the identity stored by Authenticate.  The bool
// is false on routes that skipped the middleware.
func CurrentIdentity(c echo.Context) (Identity, bool) {
	ident, ok := c.Get(identityKey).(Identity)
	return ident, ok
}

// resolveIdentity implements the read-through: cache hit wins, miss loads
// from the credential store and populates the cache with the given TTL.
// Cache failures are ignored in both directions.
func resolveIdentity(ctx context.Context, users UserSource, store cache.Store, ttl time.Duration, subject string) (Identity, error) {
	key := "user:" + subject
	if raw, ok, err := store.Get(ctx, key); err == nil && ok {
		var ident Identity
		if json.Unmarshal([]byte(raw), &ident) == nil && ident.Email != "" {
			return ident, nil
		}
	}

	u, err := users.GetByEmail(ctx, subject)
	if err != nil {
		return Identity{}, err
	}
	ident := Identity{ID: u.ID, Email: u.Email, Role: u.Role, IsActive: u.IsActive}
	if raw, err := json.Marshal(ident); err == nil {
		_ = store.Set(ctx, key, string(raw), ttl)
	}
	return ident, nil
}

// unauthorizedMessage keeps the three token failure modes distinguishable
// in responses while all mapping to 401.
func unauthorizedMessage(err error) string {
	switch err {
	case token.ErrExpiredToken:
		return "token expired"
	case token.ErrWrongScope:
		return "invalid token scope"
	default:
		return "invalid token"
	}
}
