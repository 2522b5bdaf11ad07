package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theregram/backend/internal/cache"
	"github.com/theregram/backend/internal/repository"
	"github.com/theregram/backend/internal/token"
)

// fakeUsers serves canned users and counts loads so cache behavior is
// observable.
type fakeUsers struct {
	users map[string]repository.User
	loads int
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (repository.User, error) {
	f.loads++
	u, ok := f.users[email]
	if !ok {
		return repository.User{}, repository.ErrNotFound
	}
	return u, nil
}

func okHandler(c echo.Context) error {
	ident, ok := CurrentIdentity(c)
	if !ok {
		return c.NoContent(http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, ident)
}

func doRequest(t *testing.T, mw echo.MiddlewareFunc, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	err := mw(okHandler)(c)
	require.NoError(t, err)
	return rec
}

func testDeps() (*token.Service, *fakeUsers, *cache.Memory) {
	tokens := token.New("test-secret", 15, 7)
	users := &fakeUsers{users: map[string]repository.User{
		"alice@example.com": {ID: 1, Email: "alice@example.com", Role: "user", IsActive: true},
		"mallory@example.com": {ID: 2, Email: "mallory@example.com", Role: "user", IsActive: false},
	}}
	return tokens, users, cache.NewMemory()
}

func TestAuthenticateAdmitsValidToken(t *testing.T) {
	tokens, users, store := testDeps()
	mw := Authenticate(tokens, users, store, 5*time.Minute)

	access, err := tokens.IssueAccess("alice@example.com")
	require.NoError(t, err)

	rec := doRequest(t, mw, "Bearer "+access)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice@example.com")
}

func TestAuthenticateRejectsMissingAndMalformed(t *testing.T) {
	tokens, users, store := testDeps()
	mw := Authenticate(tokens, users, store, 5*time.Minute)

	assert.Equal(t, http.StatusUnauthorized, doRequest(t, mw, "").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(t, mw, "Bearer garbage").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(t, mw, "Basic abc").Code)
}

func TestAuthenticateRejectsRefreshScope(t *testing.T) {
	tokens, users, store := testDeps()
	mw := Authenticate(tokens, users, store, 5*time.Minute)

	ref, err := tokens.IssueRefresh("alice@example.com")
	require.NoError(t, err)

	rec := doRequest(t, mw, "Bearer "+ref.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "scope")
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	expired := token.New("test-secret", -16, 7)
	_, users, store := testDeps()
	// Sign with the same secret but an already-passed expiry.
	mw := Authenticate(expired, users, store, 5*time.Minute)

	access, err := expired.IssueAccess("alice@example.com")
	require.NoError(t, err)

	rec := doRequest(t, mw, "Bearer "+access)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired")
}

func TestAuthenticateUnknownSubjectIs401(t *testing.T) {
	tokens, users, store := testDeps()
	mw := Authenticate(tokens, users, store, 5*time.Minute)

	access, err := tokens.IssueAccess("nobody@example.com")
	require.NoError(t, err)

	rec := doRequest(t, mw, "Bearer "+access)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateBannedUserIs403(t *testing.T) {
	tokens, users, store := testDeps()
	mw := Authenticate(tokens, users, store, 5*time.Minute)

	access, err := tokens.IssueAccess("mallory@example.com")
	require.NoError(t, err)

	rec := doRequest(t, mw, "Bearer "+access)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthenticateReadsThroughCache(t *testing.T) {
	tokens, users, store := testDeps()
	mw := Authenticate(tokens, users, store, 5*time.Minute)

	access, err := tokens.IssueAccess("alice@example.com")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		rec := doRequest(t, mw, "Bearer "+access)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	// First request misses and populates; the rest are served from cache.
	assert.Equal(t, 1, users.loads)
}

func TestAuthenticateCacheExpiryReloads(t *testing.T) {
	tokens, users, store := testDeps()
	now := time.Now()
	store.Now = func() time.Time { return now }
	mw := Authenticate(tokens, users, store, 5*time.Minute)

	access, err := tokens.IssueAccess("alice@example.com")
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, doRequest(t, mw, "Bearer "+access).Code)
	now = now.Add(6 * time.Minute)
	require.Equal(t, http.StatusOK, doRequest(t, mw, "Bearer "+access).Code)
	assert.Equal(t, 2, users.loads)
}
