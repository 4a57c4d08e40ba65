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

const mailjetDefaultBaseURL = "https://api.mailjet.com"

// Headers that Mailjet reserves for itself or that make no sense on an API
// submission. Anything listed here is silently dropped from outgoing mail.
var mailjetReservedHeaders = blacklist(
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
	"X-Mailjet-Prio",
	"X-Mailjet-Debug",
	"User-Agent",
	"X-Mailer",
	"X-MJ-CustomID",
	"X-MJ-EventPayload",
	"X-MJ-Vars",
	"X-MJ-TemplateErrorDeliver",
	"X-MJ-TemplateErrorReporting",
	"X-MJ-TemplateLanguage",
	"X-Mailjet-TrackOpen",
	"X-Mailjet-TrackClick",
	"X-MJ-TemplateID",
	"X-MJ-WorkflowID",
	"X-Feedback-Id",
	"X-Mailjet-Segmentation",
	"List-Id",
	"X-MJ-MID",
	"X-MJ-ErrorMessage",
	"Date",
	"X-CSA-Complaints",
	"Message-Id",
	"X-Mailjet-Campaign",
	"X-MJ-StatisticsContactsListID",
)

// Mailjet sends emails through the v3.1 send API and text messages through
// the SMS API. Emails authenticate with the key pair, SMS with the token.
type Mailjet struct {
	BaseURL    string
	APIKey     string
	SecretKey  string
	SMSToken   string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewMailjet creates a Mailjet provider. The SMS token may be empty when
// only email is used, and vice versa for the key pair.
func NewMailjet(apiKey, secretKey, smsToken string) *Mailjet {
	return &Mailjet{
		BaseURL:    mailjetDefaultBaseURL,
		APIKey:     apiKey,
		SecretKey:  secretKey,
		SMSToken:   smsToken,
		HTTPClient: defaultHTTPClient(),
	}
}

// Name returns the provider name.
func (m *Mailjet) Name() string {
	return "mailjet"
}

type mailjetAddress struct {
	Email string `json:"Email"`
	Name  string `json:"Name,omitempty"`
}

type mailjetAttachment struct {
	Filename      string `json:"Filename"`
	ContentType   string `json:"ContentType"`
	Base64Content string `json:"Base64Content"`
}

type mailjetMessage struct {
	From        mailjetAddress      `json:"From"`
	To          []mailjetAddress    `json:"To"`
	Cc          []mailjetAddress    `json:"Cc,omitempty"`
	Bcc         []mailjetAddress    `json:"Bcc,omitempty"`
	Subject     string              `json:"Subject"`
	TextPart    string              `json:"TextPart,omitempty"`
	HTMLPart    string              `json:"HTMLPart,omitempty"`
	Attachments []mailjetAttachment `json:"Attachments,omitempty"`
	Headers     map[string]string   `json:"Headers,omitempty"`
}

type mailjetSendRequest struct {
	Messages []mailjetMessage `json:"Messages"`
}

type mailjetSendResponse struct {
	Messages []struct {
		Status string `json:"Status"`
	} `json:"Messages"`
}

type mailjetSmsRequest struct {
	From string `json:"From"`
	To   string `json:"To"`
	Text string `json:"Text"`
}

// SendEmails submits every email in a single bulk call and counts the
// messages the API reports as "success". A failing call counts as zero sent,
// only unconvertible input returns an error.
func (m *Mailjet) SendEmails(ctx context.Context, emails []*Email) (int, error) {
	messages := make([]mailjetMessage, 0, len(emails))
	for _, email := range emails {
		msg, err := m.convertEmail(email)
		if err != nil {
			return 0, err
		}
		messages = append(messages, msg)
	}

	body, err := json.Marshal(mailjetSendRequest{Messages: messages})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.BaseURL+"/v3.1/send", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.SetBasicAuth(m.APIKey, m.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient().Do(req)
	if err != nil {
		m.logger().Warn("mailjet send failed", "err", err)
		return 0, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		m.logger().Warn("mailjet send rejected", "status", resp.StatusCode)
		return 0, nil
	}

	var out mailjetSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		m.logger().Warn("mailjet sent an unreadable response", "err", err)
		return 0, nil
	}

	sent := 0
	for _, msg := range out.Messages {
		if msg.Status == "success" {
			sent++
		}
	}
	return sent, nil
}

func (m *Mailjet) convertEmail(email *Email) (mailjetMessage, error) {
	from, err := mailjetAddr(email.From)
	if err != nil {
		return mailjetMessage{}, err
	}
	to, err := mailjetAddrs(email.To)
	if err != nil {
		return mailjetMessage{}, err
	}
	cc, err := mailjetAddrs(email.Cc)
	if err != nil {
		return mailjetMessage{}, err
	}
	bcc, err := mailjetAddrs(email.Bcc)
	if err != nil {
		return mailjetMessage{}, err
	}

	out := mailjetMessage{
		From:     from,
		To:       to,
		Cc:       cc,
		Bcc:      bcc,
		Subject:  email.Subject,
		TextPart: email.Text,
		HTMLPart: email.HTML,
		Headers:  filterHeaders(email.Headers, mailjetReservedHeaders),
	}

	if len(email.Attachments) > 0 {
		out.Attachments = lo.Map(email.Attachments, func(a Attachment, _ int) mailjetAttachment {
			return mailjetAttachment{
				Filename:      a.Filename,
				ContentType:   a.contentType(),
				Base64Content: base64.StdEncoding.EncodeToString(a.Content),
			}
		})
	}

	return out, nil
}

func mailjetAddr(s string) (mailjetAddress, error) {
	addr, err := ParseAddress(s)
	if err != nil {
		return mailjetAddress{}, err
	}
	return mailjetAddress{Email: addr.Email, Name: addr.Name}, nil
}

func mailjetAddrs(in []string) ([]mailjetAddress, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]mailjetAddress, 0, len(in))
	for _, s := range in {
		addr, err := mailjetAddr(s)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// SendSms sends one API call per message and recipient, there is no bulk
// endpoint. Each accepted call counts as one sent message, so a partially
// failing fan-out still reports the successful part.
func (m *Mailjet) SendSms(ctx context.Context, messages []*Sms) (int, error) {
	sent := 0
	for _, msg := range messages {
		for _, to := range msg.Recipients {
			body, err := json.Marshal(mailjetSmsRequest{From: msg.From, To: to, Text: msg.Text})
			if err != nil {
				return sent, err
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.BaseURL+"/v4/sms-send", bytes.NewReader(body))
			if err != nil {
				return sent, err
			}
			req.Header.Set("Authorization", "Bearer "+m.SMSToken)
			req.Header.Set("Content-Type", "application/json")

			resp, err := m.httpClient().Do(req)
			if err != nil {
				m.logger().Warn("mailjet sms send failed", "to", to, "err", err)
				continue
			}
			resp.Body.Close()

			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				sent++
			} else {
				m.logger().Warn("mailjet sms rejected", "to", to, "status", resp.StatusCode)
			}
		}
	}
	return sent, nil
}

func (m *Mailjet) httpClient() *http.Client {
	if m.HTTPClient != nil {
		return m.HTTPClient
	}
	return http.DefaultClient
}

func (m *Mailjet) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}
