package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
)

func TestMandrillSendEmails(t *testing.T) {
	srv, requests := captureServer(t, http.StatusOK, func([]byte) string {
		return `[{"email":"a@example.org","status":"sent"}]`
	})

	m := NewMandrill("secret-key")
	m.BaseURL = srv.URL
	m.Logger = discardLogger()

	sent, err := m.SendEmails(context.Background(), []*Email{
		{
			From:    "Sender <sender@example.org>",
			To:      []string{"a@example.org"},
			Cc:      []string{"C <c@example.org>"},
			Bcc:     []string{"d@example.org"},
			Subject: "First",
			Text:    "text body",
			HTML:    "<p>html body</p>",
			Headers: map[string]string{"X-Mailjet-Prio": "3", "Date": "today"},
		},
		{From: "sender@example.org", To: []string{"b@example.org"}, Subject: "Second", Text: "t"},
	})
	if err != nil {
		t.Fatalf("SendEmails: %v", err)
	}
	if sent != 2 {
		t.Errorf("sent = %d, want 2", sent)
	}

	reqs := requests()
	if len(reqs) != 2 {
		t.Fatalf("got %d requests, want one per email", len(reqs))
	}
	if reqs[0].path != "/api/1.0/messages/send" {
		t.Errorf("path = %q, want /api/1.0/messages/send", reqs[0].path)
	}
	if reqs[0].auth != "" {
		t.Errorf("the key must travel in the body, not a header, got %q", reqs[0].auth)
	}

	var payload map[string]any
	if err := json.Unmarshal(reqs[0].body, &payload); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	if payload["key"] != "secret-key" {
		t.Errorf("key = %v", payload["key"])
	}

	msg := payload["message"].(map[string]any)
	if msg["from_email"] != "sender@example.org" || msg["from_name"] != "Sender" {
		t.Errorf("from = %v / %v", msg["from_email"], msg["from_name"])
	}
	if msg["subject"] != "First" || msg["text"] != "text body" || msg["html"] != "<p>html body</p>" {
		t.Errorf("message = %v", msg)
	}

	to := msg["to"].([]any)
	if len(to) != 3 {
		t.Fatalf("got %d recipients, want to+cc+bcc", len(to))
	}
	first := to[0].(map[string]any)
	if first["email"] != "a@example.org" || first["type"] != "to" {
		t.Errorf("to[0] = %v", first)
	}
	if _, ok := first["name"]; ok {
		t.Errorf("bare address should carry no name: %v", first)
	}
	second := to[1].(map[string]any)
	if second["email"] != "c@example.org" || second["type"] != "cc" || second["name"] != "C" {
		t.Errorf("to[1] = %v", second)
	}
	if third := to[2].(map[string]any); third["type"] != "bcc" {
		t.Errorf("to[2] = %v", third)
	}

	headers := msg["headers"].(map[string]any)
	if headers["X-Mailjet-Prio"] != "3" {
		t.Errorf("Mailjet-specific headers pass through Mandrill: %v", headers)
	}
	if _, ok := headers["Date"]; ok {
		t.Errorf("Date is reserved and should be dropped: %v", headers)
	}

	var secondPayload map[string]any
	if err := json.Unmarshal(reqs[1].body, &secondPayload); err != nil {
		t.Fatalf("unmarshal second request: %v", err)
	}
	secondMsg := secondPayload["message"].(map[string]any)
	if _, ok := secondMsg["from_name"]; ok {
		t.Errorf("bare sender should carry no from_name: %v", secondMsg)
	}
	if _, ok := secondMsg["html"]; ok {
		t.Errorf("absent html part should be omitted")
	}
	if _, ok := secondMsg["headers"]; ok {
		t.Errorf("empty headers should be omitted")
	}
}

func TestMandrillRejectedRecipientDoesNotCount(t *testing.T) {
	srv, _ := captureServer(t, http.StatusOK, func([]byte) string {
		return `[{"email":"a@example.org","status":"sent"},{"email":"c@example.org","status":"rejected","reject_reason":"hard-bounce"}]`
	})

	m := NewMandrill("secret-key")
	m.BaseURL = srv.URL
	m.Logger = discardLogger()

	sent, err := m.SendEmails(context.Background(), []*Email{
		{From: "s@example.org", To: []string{"a@example.org", "c@example.org"}, Subject: "s", Text: "t"},
	})
	if err != nil {
		t.Fatalf("SendEmails: %v", err)
	}
	if sent != 0 {
		t.Errorf("sent = %d, want 0 when any recipient is rejected", sent)
	}
}

func TestMandrillServerError(t *testing.T) {
	srv, _ := captureServer(t, http.StatusInternalServerError, func([]byte) string {
		return `{"status":"error","message":"Invalid API key"}`
	})

	m := NewMandrill("bad-key")
	m.BaseURL = srv.URL
	m.Logger = discardLogger()

	sent, err := m.SendEmails(context.Background(), []*Email{
		{From: "s@example.org", To: []string{"a@example.org"}, Subject: "s", Text: "t"},
	})
	if err != nil {
		t.Fatalf("transport failures must not error, got %v", err)
	}
	if sent != 0 {
		t.Errorf("sent = %d, want 0", sent)
	}
}

func TestMandrillInvalidRecipient(t *testing.T) {
	srv, requests := captureServer(t, http.StatusOK, func([]byte) string {
		return `[]`
	})

	m := NewMandrill("secret-key")
	m.BaseURL = srv.URL
	m.Logger = discardLogger()

	_, err := m.SendEmails(context.Background(), []*Email{
		{From: "s@example.org", To: []string{"<<<"}, Subject: "s", Text: "t"},
	})
	if !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("err = %v, want ErrInvalidAddress", err)
	}
	if len(requests()) != 0 {
		t.Errorf("no request should go out when conversion fails")
	}
}

func TestMandrillEmptyStatusListCounts(t *testing.T) {
	srv, _ := captureServer(t, http.StatusOK, func([]byte) string {
		return `[]`
	})

	m := NewMandrill("secret-key")
	m.BaseURL = srv.URL
	m.Logger = discardLogger()

	sent, err := m.SendEmails(context.Background(), []*Email{
		{From: "s@example.org", To: []string{"a@example.org"}, Subject: "s", Text: "t"},
	})
	if err != nil {
		t.Fatalf("SendEmails: %v", err)
	}
	if sent != 1 {
		t.Errorf("sent = %d, want 1 (a success with no statuses still counts)", sent)
	}
}
