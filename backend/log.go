package backend

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// Log is a fallback provider that logs messages instead of sending them.
// Every message counts as delivered.
type Log struct {
	Logger *slog.Logger
}

// NewLog creates a new log-only provider.
func NewLog(logger *slog.Logger) *Log {
	return &Log{Logger: logger}
}

// Name returns the provider name.
func (l *Log) Name() string {
	return "log"
}

// SendEmails logs every email and reports all of them as sent.
func (l *Log) SendEmails(ctx context.Context, emails []*Email) (int, error) {
	for _, email := range emails {
		l.logger().Info("email logged (not sent)",
			"provider", "log",
			"from", email.From,
			"to", strings.Join(email.To, ", "),
			"subject", email.Subject,
			"html_length", len(email.HTML),
			"text_length", len(email.Text),
			"attachments", len(email.Attachments),
			"fake_message_id", "log-"+uuid.New().String(),
		)
		if email.Text != "" {
			l.logger().Info("email text body", "text", email.Text)
		}
		if email.HTML != "" {
			l.logger().Info("email HTML body", "html", email.HTML)
		}
	}
	return len(emails), nil
}

// SendSms logs every message and reports every recipient as reached.
func (l *Log) SendSms(ctx context.Context, messages []*Sms) (int, error) {
	sent := 0
	for _, msg := range messages {
		for _, to := range msg.Recipients {
			l.logger().Info("sms logged (not sent)",
				"provider", "log",
				"from", msg.From,
				"to", to,
				"text", msg.Text,
			)
			sent++
		}
	}
	return sent, nil
}

func (l *Log) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}
