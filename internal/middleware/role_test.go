package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowedRoles(t *testing.T) {
	tests := []struct {
		level AccessLevel
		role  string
		want  bool
	}{
		{LevelPublic, "user", true},
		{LevelPublic, "moderator", true},
		{LevelPublic, "admin", true},
		{LevelModerator, "user", false},
		{LevelModerator, "moderator", true},
		{LevelModerator, "admin", true},
		{LevelAdmin, "user", false},
		{LevelAdmin, "moderator", false},
		{LevelAdmin, "admin", true},
		{LevelPublic, "ghost", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AllowedRoles(tt.level)[tt.role],
			"level %d role %s", tt.level, tt.role)
	}
}

func requireLevelRequest(t *testing.T, level AccessLevel, ident *Identity) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if ident != nil {
		c.Set(identityKey, *ident)
	}
	handler := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	err := RequireLevel(level)(handler)(c)
	require.NoError(t, err)
	return rec
}

func TestRequireLevel(t *testing.T) {
	user := &Identity{ID: 1, Email: "u@example.com", Role: "user", IsActive: true}

	// A plain user is admitted on public routes but forbidden on
	// moderation routes.
	assert.Equal(t, http.StatusOK, requireLevelRequest(t, LevelPublic, user).Code)
	assert.Equal(t, http.StatusForbidden, requireLevelRequest(t, LevelModerator, user).Code)

	mod := &Identity{ID: 2, Email: "m@example.com", Role: "moderator", IsActive: true}
	assert.Equal(t, http.StatusOK, requireLevelRequest(t, LevelModerator, mod).Code)
	assert.Equal(t, http.StatusForbidden, requireLevelRequest(t, LevelAdmin, mod).Code)

	admin := &Identity{ID: 3, Email: "a@example.com", Role: "admin", IsActive: true}
	assert.Equal(t, http.StatusOK, requireLevelRequest(t, LevelAdmin, admin).Code)

	// No identity in context (Authenticate skipped) is still a 403 here.
	assert.Equal(t, http.StatusForbidden, requireLevelRequest(t, LevelPublic, nil).Code)
}
