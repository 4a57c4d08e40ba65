package courier

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists message records. Lookups return nil without error when the
// record does not exist.
type Store interface {
	SaveEmail(ctx context.Context, email *Email) error
	GetEmail(ctx context.Context, id uuid.UUID) (*Email, error)
	MarkEmailSent(ctx context.Context, id uuid.UUID, at time.Time, sender, recipient string) error

	SaveSms(ctx context.Context, sms *Sms) error
	GetSms(ctx context.Context, id uuid.UUID) (*Sms, error)
	MarkSmsSent(ctx context.Context, id uuid.UUID, at time.Time, sender, recipient string) error

	// DeleteUserMessages drops every message attached to the user, emails
	// and SMS alike. This is the GDPR eraser.
	DeleteUserMessages(ctx context.Context, userID string) error
}
