package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/theregram/backend/internal/middleware"
	"github.com/theregram/backend/internal/repository"
)

// CommentStore is the slice of the comment repository the handlers need.
// *repository.CommentRepo satisfies it.
type CommentStore interface {
	Create(ctx context.Context, postID, userID uint64, replyID *uint64, body string) (uint64, error)
	GetByID(ctx context.Context, id uint64) (repository.Comment, error)
	ListByPost(ctx context.Context, postID uint64) ([]repository.Comment, error)
	Replies(ctx context.Context, commentID uint64) ([]repository.Comment, error)
	Update(ctx context.Context, id, userID uint64, body string) error
	Delete(ctx context.Context, id, userID uint64) error
	Remove(ctx context.Context, id uint64) error
}

// CommentHandler serves the comment endpoints nested under posts, plus
// the moderation delete.
type CommentHandler struct {
	Posts    PostStore
	Comments CommentStore
}

func NewCommentHandler(posts PostStore, comments CommentStore) *CommentHandler {
	return &CommentHandler{Posts: posts, Comments: comments}
}

type commentReq struct {
	Comment string `json:"comment"`
}

type commentResp struct {
	ID      uint64  `json:"id"`
	PostID  uint64  `json:"post_id"`
	UserID  uint64  `json:"user_id"`
	ReplyID *uint64 `json:"reply_id,omitempty"`
	Comment string  `json:"comment"`
}

func toCommentResp(cm repository.Comment) commentResp {
	return commentResp{ID: cm.ID, PostID: cm.PostID, UserID: cm.UserID, ReplyID: cm.ReplyID, Comment: cm.Body}
}

// List returns all comments of a post.
func (h *CommentHandler) List(c echo.Context) error {
	postID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid post id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Posts.GetByID(ctx, postID); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "post not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	comments, err := h.Comments.ListByPost(ctx, postID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]commentResp, 0, len(comments))
	for _, cm := range comments {
		out = append(out, toCommentResp(cm))
	}
	return c.JSON(http.StatusOK, out)
}

// Create adds a top-level comment to a post on behalf of the caller.
func (h *CommentHandler) Create(c echo.Context) error {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	postID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid post id"})
	}
	var req commentReq
	if err := c.Bind(&req); err != nil || req.Comment == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "comment required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Posts.GetByID(ctx, postID); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "post not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	id, err := h.Comments.Create(ctx, postID, ident.ID, nil, req.Comment)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create comment failed"})
	}
	return c.JSON(http.StatusCreated, commentResp{ID: id, PostID: postID, UserID: ident.ID, Comment: req.Comment})
}

// Get returns one comment.
func (h *CommentHandler) Get(c echo.Context) error {
	commentID, err := pathID(c, "commentID")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid comment id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cm, err := h.Comments.GetByID(ctx, commentID)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "comment not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toCommentResp(cm))
}

// Reply attaches a reply to an existing comment.  The reply inherits the
// parent's post.
func (h *CommentHandler) Reply(c echo.Context) error {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	commentID, err := pathID(c, "commentID")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid comment id"})
	}
	var req commentReq
	if err := c.Bind(&req); err != nil || req.Comment == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "comment required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	parent, err := h.Comments.GetByID(ctx, commentID)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "comment not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	id, err := h.Comments.Create(ctx, parent.PostID, ident.ID, &parent.ID, req.Comment)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create reply failed"})
	}
	return c.JSON(http.StatusCreated, commentResp{
		ID: id, PostID: parent.PostID, UserID: ident.ID, ReplyID: &parent.ID, Comment: req.Comment,
	})
}

// Replies returns the direct replies of a comment.
func (h *CommentHandler) Replies(c echo.Context) error {
	commentID, err := pathID(c, "commentID")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid comment id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Comments.GetByID(ctx, commentID); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "comment not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	replies, err := h.Comments.Replies(ctx, commentID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]commentResp, 0, len(replies))
	for _, cm := range replies {
		out = append(out, toCommentResp(cm))
	}
	return c.JSON(http.StatusOK, out)
}

// Update replaces the text of the caller's own comment.
func (h *CommentHandler) Update(c echo.Context) error {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	commentID, err := pathID(c, "commentID")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid comment id"})
	}
	var req commentReq
	if err := c.Bind(&req); err != nil || req.Comment == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "comment required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Comments.Update(ctx, commentID, ident.ID, req.Comment); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "comment not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update comment failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"id": commentID, "comment": req.Comment})
}

// Delete removes the caller's own comment.  Someone else's comment is a
// 404, not a 403: author scoping happens in the store's WHERE clause.
func (h *CommentHandler) Delete(c echo.Context) error {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	commentID, err := pathID(c, "commentID")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid comment id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Comments.Delete(ctx, commentID, ident.ID); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "comment not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete comment failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Remove deletes any comment (moderation).
func (h *CommentHandler) Remove(c echo.Context) error {
	commentID, err := pathID(c, "commentID")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid comment id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Comments.Remove(ctx, commentID); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "comment not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete comment failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
