package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/theregram/backend/internal/middleware"
	"github.com/theregram/backend/internal/repository"
	"github.com/theregram/backend/internal/service"
)

// PostStore is the slice of the post repository the handlers need.
type PostStore interface {
	Create(ctx context.Context, userID uint64, description string) (uint64, error)
	GetByID(ctx context.Context, id uint64) (repository.Post, error)
	Delete(ctx context.Context, id uint64) error
}

// RatingStore removes rating rows on the moderation path.
type RatingStore interface {
	Delete(ctx context.Context, postID, userID uint64) error
}

// PostHandler serves posts, rating submission and the moderation
// endpoints.
type PostHandler struct {
	Posts   PostStore
	Ratings RatingStore
	Svc     *service.RatingService
}

func NewPostHandler(posts PostStore, ratings RatingStore, svc *service.RatingService) *PostHandler {
	return &PostHandler{Posts: posts, Ratings: ratings, Svc: svc}
}

type createPostReq struct {
	Description string `json:"description"`
}
type ratePostReq struct {
	Rating int `json:"rating"`
}

type postResp struct {
	ID            uint64  `json:"id"`
	UserID        uint64  `json:"user_id"`
	Description   string  `json:"description"`
	AverageRating float64 `json:"average_rating"`
}

func toPostResp(p repository.Post) postResp {
	return postResp{ID: p.ID, UserID: p.UserID, Description: p.Description, AverageRating: p.AverageRating}
}

// Create inserts a post owned by the caller.
func (h *PostHandler) Create(c echo.Context) error {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createPostReq
	if err := c.Bind(&req); err != nil || req.Description == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "description required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Posts.Create(ctx, ident.ID, req.Description)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create post failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// Get returns one post, including its current (possibly lagging) average
// rating.
func (h *PostHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid post id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Posts.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "post not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toPostResp(p))
}

// Rate submits one rating for a post on behalf of the caller.
func (h *PostHandler) Rate(c echo.Context) error {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid post id"})
	}
	var req ratePostReq
	if err := c.Bind(&req); err != nil || req.Rating < 1 || req.Rating > 5 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rating must be between 1 and 5"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	post, err := h.Svc.Submit(ctx, id, ident.ID, req.Rating)
	switch err {
	case nil:
		return c.JSON(http.StatusCreated, toPostResp(post))
	case repository.ErrNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "post not found"})
	case service.ErrSelfRating:
		return c.JSON(http.StatusConflict, echo.Map{"error": "you can't rate your own post"})
	case repository.ErrAlreadyRated:
		return c.JSON(http.StatusConflict, echo.Map{"error": "you already rated this post"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "rate post failed"})
	}
}

// Delete removes a post (moderation).
func (h *PostHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid post id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Posts.Delete(ctx, id); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "post not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete post failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteRating removes one user's rating of a post (moderation) and
// triggers an immediate recomputation so the removed vote stops counting.
func (h *PostHandler) DeleteRating(c echo.Context) error {
	postID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid post id"})
	}
	userID, err := pathID(c, "userID")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Ratings.Delete(ctx, postID, userID); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "rating not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete rating failed"})
	}
	if err := h.Svc.Recalculate(ctx, postID); err != nil {
		c.Logger().Warnf("delete rating: recalc for post %d failed: %v", postID, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}
