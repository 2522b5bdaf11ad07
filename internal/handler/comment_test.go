package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theregram/backend/internal/middleware"
	"github.com/theregram/backend/internal/repository"
)

type fakePostStore struct {
	posts map[uint64]repository.Post
}

func (f *fakePostStore) Create(_ context.Context, userID uint64, description string) (uint64, error) {
	id := uint64(len(f.posts) + 1)
	f.posts[id] = repository.Post{ID: id, UserID: userID, Description: description}
	return id, nil
}

func (f *fakePostStore) GetByID(_ context.Context, id uint64) (repository.Post, error) {
	p, ok := f.posts[id]
	if !ok {
		return repository.Post{}, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakePostStore) Delete(_ context.Context, id uint64) error {
	if _, ok := f.posts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.posts, id)
	return nil
}

type fakeCommentStore struct {
	comments map[uint64]repository.Comment
	nextID   uint64
}

func newFakeCommentStore() *fakeCommentStore {
	return &fakeCommentStore{comments: map[uint64]repository.Comment{}, nextID: 1}
}

func (f *fakeCommentStore) Create(_ context.Context, postID, userID uint64, replyID *uint64, body string) (uint64, error) {
	id := f.nextID
	f.nextID++
	f.comments[id] = repository.Comment{ID: id, PostID: postID, UserID: userID, ReplyID: replyID, Body: body}
	return id, nil
}

func (f *fakeCommentStore) GetByID(_ context.Context, id uint64) (repository.Comment, error) {
	cm, ok := f.comments[id]
	if !ok {
		return repository.Comment{}, repository.ErrNotFound
	}
	return cm, nil
}

func (f *fakeCommentStore) ListByPost(_ context.Context, postID uint64) ([]repository.Comment, error) {
	var out []repository.Comment
	for id := uint64(1); id < f.nextID; id++ {
		if cm, ok := f.comments[id]; ok && cm.PostID == postID {
			out = append(out, cm)
		}
	}
	return out, nil
}

func (f *fakeCommentStore) Replies(_ context.Context, commentID uint64) ([]repository.Comment, error) {
	var out []repository.Comment
	for id := uint64(1); id < f.nextID; id++ {
		if cm, ok := f.comments[id]; ok && cm.ReplyID != nil && *cm.ReplyID == commentID {
			out = append(out, cm)
		}
	}
	return out, nil
}

func (f *fakeCommentStore) Update(_ context.Context, id, userID uint64, body string) error {
	cm, ok := f.comments[id]
	if !ok || cm.UserID != userID {
		return repository.ErrNotFound
	}
	cm.Body = body
	f.comments[id] = cm
	return nil
}

func (f *fakeCommentStore) Delete(_ context.Context, id, userID uint64) error {
	cm, ok := f.comments[id]
	if !ok || cm.UserID != userID {
		return repository.ErrNotFound
	}
	delete(f.comments, id)
	return nil
}

func (f *fakeCommentStore) Remove(_ context.Context, id uint64) error {
	if _, ok := f.comments[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.comments, id)
	return nil
}

func testCommentHandler() (*CommentHandler, *fakePostStore, *fakeCommentStore) {
	posts := &fakePostStore{posts: map[uint64]repository.Post{
		1: {ID: 1, UserID: 10, Description: "sunset"},
	}}
	comments := newFakeCommentStore()
	return NewCommentHandler(posts, comments), posts, comments
}

func apiCtx(e *echo.Echo, method, body string, identID uint64, names, values []string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, "/", nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	if identID != 0 {
		c.Set("identity", middleware.Identity{ID: identID, Email: "user@example.com", Role: "user", IsActive: true})
	}
	return c, rec
}

func TestCreateCommentStoresRow(t *testing.T) {
	h, _, comments := testCommentHandler()
	e := echo.New()

	c, rec := apiCtx(e, http.MethodPost, `{"comment":"nice shot"}`, 7, []string{"id"}, []string{"1"})
	require.NoError(t, h.Create(c))

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp commentResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	stored := comments.comments[resp.ID]
	assert.Equal(t, uint64(1), stored.PostID)
	assert.Equal(t, uint64(7), stored.UserID)
	assert.Nil(t, stored.ReplyID)
	assert.Equal(t, "nice shot", stored.Body)
}

func TestCreateCommentOnMissingPost(t *testing.T) {
	h, _, comments := testCommentHandler()
	e := echo.New()

	c, rec := apiCtx(e, http.MethodPost, `{"comment":"hi"}`, 7, []string{"id"}, []string{"99"})
	require.NoError(t, h.Create(c))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, comments.comments)
}

func TestReplyInheritsParentPost(t *testing.T) {
	h, _, comments := testCommentHandler()
	parentID, err := comments.Create(context.Background(), 1, 10, nil, "first")
	require.NoError(t, err)
	e := echo.New()

	c, rec := apiCtx(e, http.MethodPost, `{"comment":"agreed"}`, 7,
		[]string{"id", "commentID"}, []string{"1", "1"})
	require.NoError(t, h.Reply(c))

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp commentResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.ReplyID)
	assert.Equal(t, parentID, *resp.ReplyID)
	assert.Equal(t, uint64(1), resp.PostID)

	replies, err := comments.Replies(context.Background(), parentID)
	require.NoError(t, err)
	assert.Len(t, replies, 1)
}

func TestReplyToMissingComment(t *testing.T) {
	h, _, _ := testCommentHandler()
	e := echo.New()

	c, rec := apiCtx(e, http.MethodPost, `{"comment":"hello?"}`, 7,
		[]string{"id", "commentID"}, []string{"1", "42"})
	require.NoError(t, h.Reply(c))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListCommentsByPost(t *testing.T) {
	h, posts, comments := testCommentHandler()
	posts.posts[2] = repository.Post{ID: 2, UserID: 10}
	_, _ = comments.Create(context.Background(), 1, 7, nil, "a")
	_, _ = comments.Create(context.Background(), 2, 7, nil, "b")
	_, _ = comments.Create(context.Background(), 1, 8, nil, "c")
	e := echo.New()

	c, rec := apiCtx(e, http.MethodGet, "", 0, []string{"id"}, []string{"1"})
	require.NoError(t, h.List(c))

	require.Equal(t, http.StatusOK, rec.Code)
	var out []commentResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Comment)
	assert.Equal(t, "c", out[1].Comment)
}

func TestDeleteCommentScopedToAuthor(t *testing.T) {
	h, _, comments := testCommentHandler()
	id, err := comments.Create(context.Background(), 1, 10, nil, "mine")
	require.NoError(t, err)
	e := echo.New()

	// Someone else cannot delete it.
	c, rec := apiCtx(e, http.MethodDelete, "", 7,
		[]string{"id", "commentID"}, []string{"1", "1"})
	require.NoError(t, h.Delete(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, comments.comments, id)

	// The author can.
	c, rec = apiCtx(e, http.MethodDelete, "", 10,
		[]string{"id", "commentID"}, []string{"1", "1"})
	require.NoError(t, h.Delete(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotContains(t, comments.comments, id)
}

func TestRemoveCommentIgnoresAuthor(t *testing.T) {
	h, _, comments := testCommentHandler()
	id, err := comments.Create(context.Background(), 1, 10, nil, "spam")
	require.NoError(t, err)
	e := echo.New()

	c, rec := apiCtx(e, http.MethodDelete, "", 3,
		[]string{"id", "commentID"}, []string{"1", "1"})
	require.NoError(t, h.Remove(c))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotContains(t, comments.comments, id)
}

func TestUpdateCommentScopedToAuthor(t *testing.T) {
	h, _, comments := testCommentHandler()
	_, err := comments.Create(context.Background(), 1, 10, nil, "typos")
	require.NoError(t, err)
	e := echo.New()

	c, rec := apiCtx(e, http.MethodPatch, `{"comment":"fixed"}`, 7,
		[]string{"id", "commentID"}, []string{"1", "1"})
	require.NoError(t, h.Update(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = apiCtx(e, http.MethodPatch, `{"comment":"fixed"}`, 10,
		[]string{"id", "commentID"}, []string{"1", "1"})
	require.NoError(t, h.Update(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fixed", comments.comments[1].Body)
}
