package backend

import (
	"context"
	"sync"
)

// Memory keeps every message in memory instead of delivering it. It backs
// tests and local development, as an outbox that can be inspected.
type Memory struct {
	mu     sync.Mutex
	emails []*Email
	sms    []*Sms

	// Err, when set, is returned by every send.
	Err error
}

// NewMemory creates an empty in-memory outbox.
func NewMemory() *Memory {
	return &Memory{}
}

// Name returns the provider name.
func (m *Memory) Name() string {
	return "memory"
}

// SendEmails records the emails and reports all of them as sent.
func (m *Memory) SendEmails(ctx context.Context, emails []*Email) (int, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails = append(m.emails, emails...)
	return len(emails), nil
}

// SendSms records the messages and reports every recipient as reached.
func (m *Memory) SendSms(ctx context.Context, messages []*Sms) (int, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sms = append(m.sms, messages...)
	sent := 0
	for _, msg := range messages {
		sent += len(msg.Recipients)
	}
	return sent, nil
}

// Emails returns the recorded emails, oldest first.
func (m *Memory) Emails() []*Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Email(nil), m.emails...)
}

// Sms returns the recorded text messages, oldest first.
func (m *Memory) Sms() []*Sms {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Sms(nil), m.sms...)
}

// Reset drops everything recorded so far.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails = nil
	m.sms = nil
}
