package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/theregram/backend/internal/config"
	"github.com/theregram/backend/internal/middleware"
	"github.com/theregram/backend/internal/repository"
	"github.com/theregram/backend/internal/token"
	"github.com/theregram/backend/internal/utils"
)

// UserStore is the slice of the user repository the auth and mail
// handlers need.  *repository.UserRepo satisfies it.
type UserStore interface {
	Create(ctx context.Context, email, password, role string, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (repository.User, error)
	ConfirmEmail(ctx context.Context, email string) error
	ChangePassword(ctx context.Context, email, password string, cost int) error
}

// SessionStore tracks the single live refresh token per (user, device
// type).  *repository.SessionRepo satisfies it.
type SessionStore interface {
	Upsert(ctx context.Context, userID uint64, deviceType, token string, expiresAt time.Time) error
	FindByToken(ctx context.Context, userID uint64, token string) (repository.Session, error)
}

// MailSender enqueues transactional email jobs.
type MailSender interface {
	SendVerification(ctx context.Context, user repository.User, host string) error
	SendPasswordReset(ctx context.Context, user repository.User, host string) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Tokens   *token.Service
	Users    UserStore
	Sessions SessionStore
	Mail     MailSender
}

func NewAuthHandler(cfg config.Config, tokens *token.Service, u UserStore, s SessionStore, m MailSender) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Tokens: tokens, Users: u, Sessions: s, Mail: m}
}

// ----- DTOs -----

type signupReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type tokenResp struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	DeviceType   string `json:"device_type,omitempty"`
}

// Signup creates an unverified account and enqueues the verification
// email.  No tokens are issued until the address is confirmed.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Email, req.Password, "user", h.Cfg.BcryptCost)
	if err != nil {
		if err == repository.ErrEmailExists {
			return c.JSON(http.StatusConflict, echo.Map{"error": "account already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	user := repository.User{ID: uid, Email: req.Email}
	if err := h.Mail.SendVerification(ctx, user, baseURL(c)); err != nil {
		// The account exists; the user can re-request the email through
		// /verify_request. Do not fail the signup.
		c.Logger().Warnf("signup: enqueue verification for %s failed: %v", req.Email, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"id":      uid,
		"email":   req.Email,
		"message": "check your email for confirmation",
	})
}

// Login verifies credentials and returns a fresh access/refresh pair,
// overwriting the session slot for the caller's device type.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !u.IsVerified {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "email is not confirmed yet"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	return h.issuePair(c, ctx, u)
}

// RefreshToken exchanges a bearer refresh token for a new pair.  The
// presented token must both decode with refresh scope and still be the
// one on record for this user: a superseded token is rejected even
// though its signature is valid.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
	}
	raw := strings.TrimPrefix(auth, "Bearer ")

	email, err := h.Tokens.Decode(raw, token.ScopeRefresh)
	if err != nil {
		switch err {
		case token.ErrExpiredToken:
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token expired"})
		case token.ErrWrongScope:
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token scope"})
		default:
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, email)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}
	if _, err := h.Sessions.FindByToken(ctx, u.ID, raw); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}

	return h.issuePair(c, ctx, u)
}

// Me returns the identity resolved by the authorization gate.
func (h *AuthHandler) Me(c echo.Context) error {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":    ident.ID,
		"email": ident.Email,
		"role":  ident.Role,
	})
}

// issuePair mints a token pair for u and overwrites the session slot for
// the caller's device type.
func (h *AuthHandler) issuePair(c echo.Context, ctx context.Context, u repository.User) error {
	access, err := h.Tokens.IssueAccess(u.Email)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	refresh, err := h.Tokens.IssueRefresh(u.Email)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
	}

	device := utils.DeviceFromUserAgent(c.Request().UserAgent())
	if err := h.Sessions.Upsert(ctx, u.ID, device, refresh.Token, refresh.Exp); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save session failed"})
	}

	return c.JSON(http.StatusOK, tokenResp{
		AccessToken:  access,
		RefreshToken: refresh.Token,
		TokenType:    "bearer",
		DeviceType:   device,
	})
}

// baseURL reconstructs the externally visible base URL for links embedded
// in outgoing email.
func baseURL(c echo.Context) string {
	return c.Scheme() + "://" + c.Request().Host + "/"
}
