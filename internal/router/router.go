package router // package router defines how HTTP routes are registered for the API

import (
	"time"

	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/theregram/backend/internal/cache"
	"github.com/theregram/backend/internal/handler"
	"github.com/theregram/backend/internal/middleware"
	"github.com/theregram/backend/internal/token"
)

// Deps bundles everything route registration needs: the handlers plus the
// pieces the authorization gate is built from.
type Deps struct {
	Auth     *handler.AuthHandler
	Mail     *handler.MailHandler
	Posts    *handler.PostHandler
	Comments *handler.CommentHandler
	Follows  *handler.FollowHandler
	Contacts *handler.ContactHandler

	Tokens      *token.Service
	Users       middleware.UserSource
	Cache       cache.Store
	IdentityTTL time.Duration

	// ResponseCache wraps caller-independent GET routes.  Nil disables it.
	ResponseCache echo.MiddlewareFunc
}

// Register wires every route.  Unauthenticated endpoints live under
// /api/auth and /api/mail; everything else passes through the
// authorization gate (Authenticate then RequireLevel), with moderation
// endpoints additionally restricted to elevated roles.
func Register(e *echo.Echo, d Deps) {
	// Health check for load balancers and monitoring.
	e.GET("/healthz", handler.Health)

	// Authentication: no gate, tokens are what these endpoints produce.
	auth := e.Group("/api/auth")
	auth.POST("/signup", d.Auth.Signup)
	auth.POST("/login", d.Auth.Login)
	auth.GET("/refresh_token", d.Auth.RefreshToken)

	// Email flows: reached from links in outgoing mail, so no gate either.
	mail := e.Group("/api/mail")
	mail.GET("/confirm_email/:token", d.Mail.ConfirmEmail)
	mail.POST("/verify_request", d.Mail.VerifyRequest)
	mail.POST("/reset_password", d.Mail.ResetPasswordRequest)
	mail.PATCH("/reset_password/:token", d.Mail.ResetPassword)
	mail.GET("/mark_open/:token", d.Mail.MarkOpen)

	// The authorization gate: resolve identity once, then enforce a role
	// level per group.
	authenticate := middleware.Authenticate(d.Tokens, d.Users, d.Cache, d.IdentityTTL)

	api := e.Group("/api")
	api.Use(authenticate)
	api.Use(middleware.RequireLevel(middleware.LevelPublic))

	// Post bodies and comment lists read the same for every caller, so
	// those GETs go through the response cache when one is configured.
	cached := func(h echo.HandlerFunc) echo.HandlerFunc { return h }
	if d.ResponseCache != nil {
		cached = func(h echo.HandlerFunc) echo.HandlerFunc { return d.ResponseCache(h) }
	}

	api.GET("/users/me", d.Auth.Me)
	api.POST("/users/:id/follow", d.Follows.Follow)
	api.DELETE("/users/:id/follow", d.Follows.Unfollow)

	api.POST("/posts", d.Posts.Create)
	api.GET("/posts/:id", cached(d.Posts.Get))
	api.POST("/posts/:id/rate_post", d.Posts.Rate)

	api.GET("/posts/:id/comments", cached(d.Comments.List))
	api.POST("/posts/:id/comments", d.Comments.Create)
	api.GET("/posts/:id/comments/:commentID", d.Comments.Get)
	api.PATCH("/posts/:id/comments/:commentID", d.Comments.Update)
	api.DELETE("/posts/:id/comments/:commentID", d.Comments.Delete)
	api.POST("/posts/:id/comments/:commentID/reply", d.Comments.Reply)
	api.GET("/posts/:id/comments/:commentID/replies", d.Comments.Replies)

	api.POST("/contacts", d.Contacts.Create)
	api.GET("/contacts", d.Contacts.List)
	api.GET("/contacts/birthdays", d.Contacts.UpcomingBirthdays)
	api.GET("/contacts/:id", d.Contacts.Get)
	api.PUT("/contacts/:id", d.Contacts.Update)
	api.DELETE("/contacts/:id", d.Contacts.Delete)
	api.POST("/contacts/:id/phones", d.Contacts.AddPhone)
	api.PUT("/contacts/:id/phones/:tag", d.Contacts.UpdatePhone)
	api.POST("/contacts/:id/emails", d.Contacts.AddEmail)
	api.PUT("/contacts/:id/emails/:tag", d.Contacts.UpdateEmail)

	// Moderation: same gate, tighter role set.
	mod := e.Group("/api/moderation")
	mod.Use(authenticate)
	mod.Use(middleware.RequireLevel(middleware.LevelModerator))
	mod.DELETE("/posts/:id", d.Posts.Delete)
	mod.DELETE("/posts/:id/ratings/:userID", d.Posts.DeleteRating)
	mod.DELETE("/posts/:id/comments/:commentID", d.Comments.Remove)
}
