package main // Entry point package

import (
	"log" // Logging library

	"github.com/joho/godotenv"    // .env loader for local development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/theregram/backend/internal/cache"
	"github.com/theregram/backend/internal/config"
	"github.com/theregram/backend/internal/database"
	"github.com/theregram/backend/internal/handler"
	"github.com/theregram/backend/internal/middleware"
	"github.com/theregram/backend/internal/queue"
	"github.com/theregram/backend/internal/repository"
	"github.com/theregram/backend/internal/router"
	"github.com/theregram/backend/internal/service"
	"github.com/theregram/backend/internal/token"
)

func main() {
	_ = godotenv.Load() // best effort; real deployments set env directly
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	// Redis backs the identity cache, the rating debounce flag and the
	// rate limiter.  nil client means all three degrade gracefully.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; caching and rate limiting disabled")
	}
	store := cache.NewRedis(rdb)

	tokens := token.New(cfg.JWTSecret, cfg.AccessTTLMin, cfg.RefreshTTLDays)

	users := repository.NewUserRepo(db)
	sessions := repository.NewSessionRepo(db)
	posts := repository.NewPostRepo(db)
	ratings := repository.NewRatingRepo(db)
	comments := repository.NewCommentRepo(db)
	follows := repository.NewFollowRepo(db)
	contacts := repository.NewContactRepo(db)
	letters := repository.NewLetterRepo(db)

	publisher := queue.NewPublisher()
	ratingSvc := service.NewRatingService(posts, ratings, store, publisher, cfg.DebounceTTL)
	mailSvc := service.NewMailService(letters, tokens, publisher)

	// Background workers: rating recomputation and the email outbox.
	// Each runs its own reconnect loop against the broker.
	ratingWorker := &queue.RatingWorker{Ratings: ratings, Posts: posts}
	go func() {
		if err := ratingWorker.Start(); err != nil {
			log.Printf("rating worker stopped: %v", err)
		}
	}()
	emailWorker := &queue.EmailWorker{}
	go func() {
		if err := emailWorker.Start(); err != nil {
			log.Printf("email worker stopped: %v", err)
		}
	}()

	e := echo.New()
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	router.Register(e, router.Deps{
		Auth:     handler.NewAuthHandler(cfg, tokens, users, sessions, mailSvc),
		Mail:     handler.NewMailHandler(cfg, tokens, users, letters, mailSvc),
		Posts:    handler.NewPostHandler(posts, ratings, ratingSvc),
		Comments: handler.NewCommentHandler(posts, comments),
		Follows:  handler.NewFollowHandler(users, follows),
		Contacts: handler.NewContactHandler(contacts),

		Tokens:      tokens,
		Users:       users,
		Cache:       store,
		IdentityTTL: cfg.IdentityCacheTTL,

		ResponseCache: middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err)
	}
}
