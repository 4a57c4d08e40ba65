package backend

import (
	"context"
	"log/slog"

	"github.com/resend/resend-go/v2"
	"github.com/samber/lo"
)

// Resend sends emails via the Resend API. Resend has no SMS offering, so
// this provider only covers email.
type Resend struct {
	Client *resend.Client
	Logger *slog.Logger
}

// NewResend creates a Resend provider with the given API key.
func NewResend(apiKey string) *Resend {
	return &Resend{Client: resend.NewClient(apiKey)}
}

// Name returns the provider name.
func (r *Resend) Name() string {
	return "resend"
}

// SendEmails sends each email in its own API call and counts the accepted
// ones. Failed calls are logged and lower the count.
func (r *Resend) SendEmails(ctx context.Context, emails []*Email) (int, error) {
	sent := 0
	for _, email := range emails {
		params := &resend.SendEmailRequest{
			From:    email.From,
			To:      email.To,
			Cc:      email.Cc,
			Bcc:     email.Bcc,
			Subject: email.Subject,
			Html:    email.HTML,
			Headers: email.Headers,
		}
		if email.Text != "" {
			params.Text = email.Text
		}
		if len(email.Attachments) > 0 {
			params.Attachments = lo.Map(email.Attachments, func(a Attachment, _ int) *resend.Attachment {
				return &resend.Attachment{
					Filename:    a.Filename,
					Content:     a.Content,
					ContentType: a.contentType(),
				}
			})
		}

		resp, err := r.Client.Emails.SendWithContext(ctx, params)
		if err != nil {
			r.logger().Warn("resend send failed", "err", err)
			continue
		}
		if resp != nil && resp.Id != "" {
			sent++
		}
	}
	return sent, nil
}

func (r *Resend) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
