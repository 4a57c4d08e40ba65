package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"courier"
)

// Memory keeps records in process memory, nothing survives a restart. It
// backs development setups and tests.
type Memory struct {
	mu     sync.Mutex
	emails map[uuid.UUID]*courier.Email
	sms    map[uuid.UUID]*courier.Sms
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		emails: map[uuid.UUID]*courier.Email{},
		sms:    map[uuid.UUID]*courier.Sms{},
	}
}

// SaveEmail stores a copy of the record.
func (m *Memory) SaveEmail(_ context.Context, email *courier.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *email
	m.emails[email.ID] = &cp
	return nil
}

// GetEmail returns a copy of the record, or nil when it does not exist.
func (m *Memory) GetEmail(_ context.Context, id uuid.UUID) (*courier.Email, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.emails[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// MarkEmailSent stamps the stored record.
func (m *Memory) MarkEmailSent(_ context.Context, id uuid.UUID, at time.Time, sender, recipient string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.emails[id]
	if !ok {
		return courier.ErrNotFound
	}
	rec.SentAt, rec.Sender, rec.Recipient = &at, sender, recipient
	return nil
}

// SaveSms stores a copy of the record.
func (m *Memory) SaveSms(_ context.Context, sms *courier.Sms) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sms
	m.sms[sms.ID] = &cp
	return nil
}

// GetSms returns a copy of the record, or nil when it does not exist.
func (m *Memory) GetSms(_ context.Context, id uuid.UUID) (*courier.Sms, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sms[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// MarkSmsSent stamps the stored record.
func (m *Memory) MarkSmsSent(_ context.Context, id uuid.UUID, at time.Time, sender, recipient string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sms[id]
	if !ok {
		return courier.ErrNotFound
	}
	rec.SentAt, rec.Sender, rec.Recipient = &at, sender, recipient
	return nil
}

// DeleteUserMessages drops every record attached to the user.
func (m *Memory) DeleteUserMessages(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rec := range m.emails {
		if rec.UserID == userID {
			delete(m.emails, id)
		}
	}
	for id, rec := range m.sms {
		if rec.UserID == userID {
			delete(m.sms, id)
		}
	}
	return nil
}
