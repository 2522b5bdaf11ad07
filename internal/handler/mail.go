package handler

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/theregram/backend/internal/config"
	"github.com/theregram/backend/internal/repository"
	"github.com/theregram/backend/internal/token"
)

// LetterMarker flags letters as opened.  *repository.LetterRepo
// satisfies it.
type LetterMarker interface {
	MarkOpened(ctx context.Context, id string) error
}

// MailHandler serves the email verification, password reset and
// open-tracking endpoints.
type MailHandler struct {
	Cfg     config.Config
	Tokens  *token.Service
	Users   UserStore
	Letters LetterMarker
	Mail    MailSender
}

func NewMailHandler(cfg config.Config, tokens *token.Service, u UserStore, l LetterMarker, m MailSender) *MailHandler {
	return &MailHandler{Cfg: cfg, Tokens: tokens, Users: u, Letters: l, Mail: m}
}

type mailEmailReq struct {
	Email string `json:"email"`
}

// trackingPixel is the 1x1 transparent PNG returned by MarkOpen.
var trackingPixel = func() []byte {
	var buf bytes.Buffer
	_ = png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1)))
	return buf.Bytes()
}()

// ConfirmEmail marks the address in the emailed token as verified.
// Confirming twice is harmless.
func (h *MailHandler) ConfirmEmail(c echo.Context) error {
	email, err := h.Tokens.DecodeEmail(c.Param("token"))
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "invalid token for email verification"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, email)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "verification error"})
	}
	if u.IsVerified {
		return c.JSON(http.StatusOK, echo.Map{"message": "your email is already confirmed"})
	}
	if err := h.Users.ConfirmEmail(ctx, email); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verification failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "email confirmed"})
}

// VerifyRequest re-sends the verification email for an unverified
// account.  The response does not reveal whether the address exists.
func (h *MailHandler) VerifyRequest(c echo.Context) error {
	var req mailEmailReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err == nil && !u.IsVerified {
		if err := h.Mail.SendVerification(ctx, u, baseURL(c)); err != nil {
			c.Logger().Warnf("verify_request: enqueue for %s failed: %v", u.Email, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "check your email for confirmation"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "your email is already confirmed"})
}

// ResetPasswordRequest mails a password reset form.  Always 200 so the
// endpoint cannot be used to probe for accounts.
func (h *MailHandler) ResetPasswordRequest(c echo.Context) error {
	var req mailEmailReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if u, err := h.Users.GetByEmail(ctx, req.Email); err == nil {
		if err := h.Mail.SendPasswordReset(ctx, u, baseURL(c)); err != nil {
			c.Logger().Warnf("reset_password: enqueue for %s failed: %v", u.Email, err)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password reset form has been sent to your email"})
}

type resetPasswordReq struct {
	NewPassword    string `json:"new_password" form:"new_password"`
	RepeatPassword string `json:"repeat_password" form:"repeat_password"`
}

// ResetPassword stores a new password for the subject of the emailed
// token.
func (h *MailHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "new_password required"})
	}
	if req.NewPassword != req.RepeatPassword {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "passwords do not match"})
	}

	email, err := h.Tokens.DecodeEmail(c.Param("token"))
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "invalid token for password reset"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.ChangePassword(ctx, email, req.NewPassword, h.Cfg.BcryptCost); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "verification error"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password change failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password successfully changed"})
}

// MarkOpen is the tracking-pixel endpoint embedded in outgoing mail.  It
// always answers with the pixel: a broken or foreign token only skips
// the letter update, because a tracking pixel must never error visibly.
func (h *MailHandler) MarkOpen(c echo.Context) error {
	if id := h.Tokens.DecodeTracking(c.Param("token")); id != "" {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		if err := h.Letters.MarkOpened(ctx, id); err != nil {
			c.Logger().Warnf("mark_open: letter %s: %v", id, err)
		}
	}
	return c.Blob(http.StatusOK, "image/png", trackingPixel)
}
