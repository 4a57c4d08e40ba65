package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/samber/lo"
)

const mandrillDefaultBaseURL = "https://mandrillapp.com"

// Mandrill rejects far fewer headers than Mailjet, routing headers mostly.
var mandrillReservedHeaders = blacklist(
	"From",
	"Sender",
	"Subject",
	"To",
	"Cc",
	"Bcc",
	"Return-Path",
	"Delivered-To",
	"DKIM-Signature",
	"DomainKey-Status",
	"Received-SPF",
	"Authentication-Results",
	"Received",
	"User-Agent",
	"List-Id",
	"Date",
	"X-CSA-Complaints",
	"Message-Id",
)

// Mandrill sends emails through the Mandrill messages API. The API key
// travels in the request body, not in a header.
type Mandrill struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewMandrill creates a Mandrill provider with the given API key.
func NewMandrill(apiKey string) *Mandrill {
	return &Mandrill{
		BaseURL:    mandrillDefaultBaseURL,
		APIKey:     apiKey,
		HTTPClient: defaultHTTPClient(),
	}
}

// Name returns the provider name.
func (m *Mandrill) Name() string {
	return "mandrill"
}

type mandrillRecipient struct {
	Email string `json:"email"`
	Type  string `json:"type"`
	Name  string `json:"name,omitempty"`
}

type mandrillAttachment struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

type mandrillMessage struct {
	FromEmail   string               `json:"from_email"`
	FromName    string               `json:"from_name,omitempty"`
	To          []mandrillRecipient  `json:"to"`
	Subject     string               `json:"subject"`
	Text        string               `json:"text,omitempty"`
	HTML        string               `json:"html,omitempty"`
	Attachments []mandrillAttachment `json:"attachments,omitempty"`
	Headers     map[string]string    `json:"headers,omitempty"`
}

type mandrillSendRequest struct {
	Key     string          `json:"key"`
	Message mandrillMessage `json:"message"`
}

type mandrillSentStatus struct {
	Email  string `json:"email"`
	Status string `json:"status"`
}

// SendEmails sends each email in its own API call. An email counts as sent
// when the call succeeds and the API reports "sent" for every recipient.
func (m *Mandrill) SendEmails(ctx context.Context, emails []*Email) (int, error) {
	sent := 0
	for _, email := range emails {
		msg, err := m.convertEmail(email)
		if err != nil {
			return sent, err
		}

		body, err := json.Marshal(mandrillSendRequest{Key: m.APIKey, Message: msg})
		if err != nil {
			return sent, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.BaseURL+"/api/1.0/messages/send", bytes.NewReader(body))
		if err != nil {
			return sent, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := m.httpClient().Do(req)
		if err != nil {
			m.logger().Warn("mandrill send failed", "err", err)
			continue
		}

		var statuses []mandrillSentStatus
		decodeErr := json.NewDecoder(resp.Body).Decode(&statuses)
		resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			m.logger().Warn("mandrill send rejected", "status", resp.StatusCode)
			continue
		}
		if decodeErr != nil {
			m.logger().Warn("mandrill sent an unreadable response", "err", decodeErr)
			continue
		}

		allSent := true
		for _, status := range statuses {
			if status.Status != "sent" {
				allSent = false
				break
			}
		}
		if allSent {
			sent++
		}
	}
	return sent, nil
}

func (m *Mandrill) convertEmail(email *Email) (mandrillMessage, error) {
	from, err := ParseAddress(email.From)
	if err != nil {
		return mandrillMessage{}, err
	}

	var to []mandrillRecipient
	for _, group := range []struct {
		kind      string
		addresses []string
	}{
		{"to", email.To},
		{"cc", email.Cc},
		{"bcc", email.Bcc},
	} {
		for _, raw := range group.addresses {
			addr, err := ParseAddress(raw)
			if err != nil {
				return mandrillMessage{}, err
			}
			to = append(to, mandrillRecipient{Email: addr.Email, Type: group.kind, Name: addr.Name})
		}
	}

	out := mandrillMessage{
		FromEmail: from.Email,
		FromName:  from.Name,
		To:        to,
		Subject:   email.Subject,
		Text:      email.Text,
		HTML:      email.HTML,
		Headers:   filterHeaders(email.Headers, mandrillReservedHeaders),
	}

	if len(email.Attachments) > 0 {
		out.Attachments = lo.Map(email.Attachments, func(a Attachment, _ int) mandrillAttachment {
			return mandrillAttachment{
				Type:    a.contentType(),
				Name:    a.Filename,
				Content: base64.StdEncoding.EncodeToString(a.Content),
			}
		})
	}

	return out, nil
}

func (m *Mandrill) httpClient() *http.Client {
	if m.HTTPClient != nil {
		return m.HTTPClient
	}
	return http.DefaultClient
}

func (m *Mandrill) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}
