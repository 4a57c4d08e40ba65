// Package backend delivers rendered messages through email and SMS
// providers. Providers return how many messages were accepted: transport
// problems lower the count instead of surfacing as errors, only malformed
// input does.
package backend

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// Email is a fully rendered email, ready for delivery.
type Email struct {
	From        string
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
	Headers     map[string]string
}

// Sms is a rendered text message, fanned out to every recipient.
type Sms struct {
	From       string
	Recipients []string
	Text       string
}

// Attachment is a file attached to an email. ContentType may be left empty,
// in which case it is sniffed from the content.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

func (a Attachment) contentType() string {
	if a.ContentType != "" {
		return a.ContentType
	}
	return mimetype.Detect(a.Content).String()
}

// EmailProvider sends rendered emails and reports the delivered count.
type EmailProvider interface {
	Name() string
	SendEmails(ctx context.Context, emails []*Email) (int, error)
}

// SmsProvider sends rendered text messages and reports the delivered count.
type SmsProvider interface {
	Name() string
	SendSms(ctx context.Context, messages []*Sms) (int, error)
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// blacklist builds a lowercase header name set.
func blacklist(names ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, name := range names {
		out[strings.ToLower(name)] = struct{}{}
	}
	return out
}

// filterHeaders drops reserved headers, comparing names case-insensitively.
// Returns nil when nothing survives so the field marshals away entirely.
func filterHeaders(headers map[string]string, reserved map[string]struct{}) map[string]string {
	var out map[string]string
	for k, v := range headers {
		if _, ok := reserved[strings.ToLower(k)]; ok {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[k] = v
	}
	return out
}
