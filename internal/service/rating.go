// Package service holds the business operations that span repositories,
// cache and queue: rating submission with debounced recomputation, and
// transactional mail preparation.
package service

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/theregram/backend/internal/cache"
	"github.com/theregram/backend/internal/repository"
)

// ErrSelfRating is returned when a user tries to rate their own post.
// Handlers map it to 409.
var ErrSelfRating = errors.New("cannot rate your own post")

// PostSource is the slice of PostRepo the rating service needs.
type PostSource interface {
	GetByID(ctx context.Context, id uint64) (repository.Post, error)
}

// RatingStore inserts rating rows.  Duplicate detection lives in the
// store's unique key, not here.
type RatingStore interface {
	Insert(ctx context.Context, postID, userID uint64, rating int) error
}

// RecalcPublisher enqueues asynchronous recomputation jobs.
type RecalcPublisher interface {
	PublishRatingRecalc(ctx context.Context, postID uint64) error
}

// RatingService accepts one rating per (post, user) pair and keeps the
// post's denormalized mean fresh without recomputing on every vote.
type RatingService struct {
	Posts       PostSource
	Ratings     RatingStore
	Cache       cache.Store
	Publisher   RecalcPublisher
	DebounceTTL time.Duration
}

// NewRatingService wires the aggregator.  debounceTTL bounds how long a
// burst of ratings for one post shares a single recomputation job.
func NewRatingService(posts PostSource, ratings RatingStore, store cache.Store, pub RecalcPublisher, debounceTTL time.Duration) *RatingService {
	return &RatingService{Posts: posts, Ratings: ratings, Cache: store, Publisher: pub, DebounceTTL: debounceTTL}
}

// Submit records one rating and schedules a recomputation.
//
// Failure order: a missing post yields repository.ErrNotFound, a rater
// who owns the post yields ErrSelfRating, and an existing (post, user)
// row yields ErrAlreadyRated from the store's unique key.  Nothing is
// inserted or enqueued on any failure.
//
// On success the debounce flag rating_update:<postID> is claimed with
// SetNX: the first submitter in a window claims it and enqueues exactly
// one job; everyone else in the window enqueues nothing.  If the cache
// is down every rating enqueues a job, which is wasteful but correct
// because recomputation is idempotent.
func (s *RatingService) Submit(ctx context.Context, postID, raterID uint64, value int) (repository.Post, error) {
	post, err := s.Posts.GetByID(ctx, postID)
	if err != nil {
		return repository.Post{}, err
	}
	if post.UserID == raterID {
		return repository.Post{}, ErrSelfRating
	}
	if err := s.Ratings.Insert(ctx, postID, raterID, value); err != nil {
		return repository.Post{}, err
	}

	key := debounceKey(postID)
	claimed, err := s.Cache.SetNX(ctx, key, "1", s.DebounceTTL)
	if err != nil {
		// Treat a broken cache as an open window: enqueue rather than
		// risk a stale average.
		claimed = true
	}
	if claimed {
		if err := s.Publisher.PublishRatingRecalc(ctx, postID); err != nil {
			// The job is lost but the rating row is durable; the next
			// rating outside this window re-triggers recomputation.
			log.Printf("rating: enqueue recalc for post %d failed: %v", postID, err)
		}
	}
	return post, nil
}

// Recalculate enqueues one job immediately, bypassing the debounce.  Used
// by moderation after deleting a rating, where waiting out a window would
// leave a removed vote visible in the average.
func (s *RatingService) Recalculate(ctx context.Context, postID uint64) error {
	return s.Publisher.PublishRatingRecalc(ctx, postID)
}

func debounceKey(postID uint64) string {
	return "rating_update:" + strconv.FormatUint(postID, 10)
}
