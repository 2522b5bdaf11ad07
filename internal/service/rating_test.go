package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theregram/backend/internal/cache"
	"github.com/theregram/backend/internal/repository"
)

type fakePosts struct {
	posts map[uint64]repository.Post
}

func (f *fakePosts) GetByID(_ context.Context, id uint64) (repository.Post, error) {
	p, ok := f.posts[id]
	if !ok {
		return repository.Post{}, repository.ErrNotFound
	}
	return p, nil
}

type fakeRatings struct {
	rows map[[2]uint64]int // (postID, userID) -> rating
}

func (f *fakeRatings) Insert(_ context.Context, postID, userID uint64, rating int) error {
	key := [2]uint64{postID, userID}
	if _, ok := f.rows[key]; ok {
		return repository.ErrAlreadyRated
	}
	f.rows[key] = rating
	return nil
}

type fakePublisher struct {
	jobs []uint64
}

func (f *fakePublisher) PublishRatingRecalc(_ context.Context, postID uint64) error {
	f.jobs = append(f.jobs, postID)
	return nil
}

func newRatingFixture() (*RatingService, *fakeRatings, *fakePublisher, *cache.Memory) {
	posts := &fakePosts{posts: map[uint64]repository.Post{
		10: {ID: 10, UserID: 1, Description: "first"},
	}}
	ratings := &fakeRatings{rows: map[[2]uint64]int{}}
	pub := &fakePublisher{}
	store := cache.NewMemory()
	svc := NewRatingService(posts, ratings, store, pub, 5*time.Second)
	return svc, ratings, pub, store
}

func TestSubmitStoresRatingAndEnqueuesOneJob(t *testing.T) {
	svc, ratings, pub, _ := newRatingFixture()

	post, err := svc.Submit(context.Background(), 10, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), post.ID)
	assert.Len(t, ratings.rows, 1)
	assert.Equal(t, []uint64{10}, pub.jobs)
}

func TestSubmitRejectsSelfRating(t *testing.T) {
	svc, ratings, pub, _ := newRatingFixture()

	// Post 10 is owned by user 1.
	_, err := svc.Submit(context.Background(), 10, 1, 5)
	assert.ErrorIs(t, err, ErrSelfRating)
	assert.Empty(t, ratings.rows)
	assert.Empty(t, pub.jobs)
}

func TestSubmitRejectsDuplicate(t *testing.T) {
	svc, ratings, pub, _ := newRatingFixture()

	_, err := svc.Submit(context.Background(), 10, 2, 4)
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), 10, 2, 5)
	assert.ErrorIs(t, err, repository.ErrAlreadyRated)

	assert.Equal(t, 4, ratings.rows[[2]uint64{10, 2}], "first rating stays")
	assert.Len(t, pub.jobs, 1, "failed duplicate enqueues nothing")
}

func TestSubmitUnknownPost(t *testing.T) {
	svc, ratings, pub, _ := newRatingFixture()

	_, err := svc.Submit(context.Background(), 99, 2, 3)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, ratings.rows)
	assert.Empty(t, pub.jobs)
}

func TestSubmitDebouncesBurst(t *testing.T) {
	svc, _, pub, _ := newRatingFixture()

	// N ratings from different users inside one window: exactly one job.
	for user := uint64(2); user <= 6; user++ {
		_, err := svc.Submit(context.Background(), 10, user, 4)
		require.NoError(t, err)
	}
	assert.Equal(t, []uint64{10}, pub.jobs)
}

func TestSubmitSeparateWindowsEnqueueSeparateJobs(t *testing.T) {
	svc, _, pub, store := newRatingFixture()
	now := time.Now()
	store.Now = func() time.Time { return now }

	_, err := svc.Submit(context.Background(), 10, 2, 4)
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), 10, 3, 5)
	require.NoError(t, err)
	require.Len(t, pub.jobs, 1)

	// Let the debounce flag expire, then rate again.
	now = now.Add(6 * time.Second)
	_, err = svc.Submit(context.Background(), 10, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 10}, pub.jobs)
}

func TestRecalculateBypassesDebounce(t *testing.T) {
	svc, _, pub, _ := newRatingFixture()

	_, err := svc.Submit(context.Background(), 10, 2, 4)
	require.NoError(t, err)
	require.Len(t, pub.jobs, 1)

	// Moderation path enqueues immediately even inside the window.
	require.NoError(t, svc.Recalculate(context.Background(), 10))
	assert.Len(t, pub.jobs, 2)
}
