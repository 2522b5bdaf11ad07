package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/theregram/backend/internal/middleware"
	"github.com/theregram/backend/internal/repository"
)

// UserByID resolves a user id to a user row; used to 404 follows of
// nonexistent targets.
type UserByID interface {
	GetByID(ctx context.Context, id uint64) (repository.User, error)
}

// FollowStore maintains the follower relation.
type FollowStore interface {
	Follow(ctx context.Context, followerID, followedID uint64) error
	Unfollow(ctx context.Context, followerID, followedID uint64) error
}

// FollowHandler serves follow/unfollow.
type FollowHandler struct {
	Users   UserByID
	Follows FollowStore
}

func NewFollowHandler(users UserByID, follows FollowStore) *FollowHandler {
	return &FollowHandler{Users: users, Follows: follows}
}

// Follow makes the caller follow the user in the path.
func (h *FollowHandler) Follow(c echo.Context) error {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	targetID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	if targetID == ident.ID {
		return c.JSON(http.StatusConflict, echo.Map{"error": "you can't follow yourself"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Users.GetByID(ctx, targetID); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if err := h.Follows.Follow(ctx, ident.ID, targetID); err != nil {
		if err == repository.ErrAlreadyFollowing {
			return c.JSON(http.StatusConflict, echo.Map{"error": "already following"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "follow failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Unfollow removes the caller's follow of the user in the path.
func (h *FollowHandler) Unfollow(c echo.Context) error {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	targetID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Follows.Unfollow(ctx, ident.ID, targetID); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not following"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "unfollow failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
