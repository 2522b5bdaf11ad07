package service

import (
	"context"

	"github.com/theregram/backend/internal/queue"
	"github.com/theregram/backend/internal/repository"
	"github.com/theregram/backend/internal/token"
)

// LetterStore drafts letter rows so opens can be tracked.
type LetterStore interface {
	Draft(ctx context.Context, userID uint64) (string, error)
}

// EmailPublisher enqueues email-send jobs.  The core never executes a
// send itself.
type EmailPublisher interface {
	PublishEmail(ctx context.Context, ev queue.EmailJobEvent) error
}

// MailService prepares transactional emails: it drafts a letter row,
// mints the email and tracking tokens, and enqueues the send job.
type MailService struct {
	Letters   LetterStore
	Tokens    *token.Service
	Publisher EmailPublisher
}

func NewMailService(letters LetterStore, tokens *token.Service, pub EmailPublisher) *MailService {
	return &MailService{Letters: letters, Tokens: tokens, Publisher: pub}
}

// SendVerification enqueues an address-confirmation email for the user.
// host is the externally visible base URL used to build the confirm link.
func (s *MailService) SendVerification(ctx context.Context, user repository.User, host string) error {
	return s.prepare(ctx, user, host, "Confirm your email", "email_verification.html")
}

// SendPasswordReset enqueues a password-reset email for the user.
func (s *MailService) SendPasswordReset(ctx context.Context, user repository.User, host string) error {
	return s.prepare(ctx, user, host, "Reset your password", "reset_password_request.html")
}

func (s *MailService) prepare(ctx context.Context, user repository.User, host, subject, template string) error {
	letterID, err := s.Letters.Draft(ctx, user.ID)
	if err != nil {
		return err
	}
	emailToken, err := s.Tokens.IssueEmail(user.Email)
	if err != nil {
		return err
	}
	trackingToken, err := s.Tokens.IssueTracking(letterID)
	if err != nil {
		return err
	}
	return s.Publisher.PublishEmail(ctx, queue.EmailJobEvent{
		Recipient: user.Email,
		LetterID:  letterID,
		Subject:   subject,
		Template:  template,
		Params: map[string]string{
			"host":           host,
			"token":          emailToken,
			"tracking_token": trackingToken,
		},
	})
}
