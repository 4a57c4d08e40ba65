package store

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"courier"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testStore runs the behaviour every Store implementation must share.
func testStore(t *testing.T, s courier.Store) {
	t.Helper()
	ctx := context.Background()

	email := &courier.Email{
		ID:        uuid.New(),
		Type:      "hello",
		Data:      courier.Context{"user_id": "u1"},
		Context:   courier.Context{"name": "John", "locale": "fr"},
		UserID:    "u1",
		Sender:    "noreply@example.org",
		Recipient: "john@example.org",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, s.SaveEmail(ctx, email))

	got, err := s.GetEmail(ctx, email.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "hello", got.Type)
	require.Equal(t, "John", got.Context["name"])
	require.Equal(t, "u1", got.Data["user_id"])
	require.Nil(t, got.SentAt)

	missing, err := s.GetEmail(ctx, uuid.New())
	require.NoError(t, err)
	require.Nil(t, missing)

	at := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, s.MarkEmailSent(ctx, email.ID, at, "noreply@example.org", "jane@example.org"))
	got, err = s.GetEmail(ctx, email.ID)
	require.NoError(t, err)
	require.NotNil(t, got.SentAt)
	require.True(t, got.SentAt.Equal(at), "sent_at = %v, want %v", got.SentAt, at)
	require.Equal(t, "jane@example.org", got.Recipient)

	require.ErrorIs(t, s.MarkEmailSent(ctx, uuid.New(), at, "", ""), courier.ErrNotFound)
	require.ErrorIs(t, s.MarkSmsSent(ctx, uuid.New(), at, "", ""), courier.ErrNotFound)

	sms := &courier.Sms{
		ID:        uuid.New(),
		Type:      "come-home",
		Context:   courier.Context{"name": "John"},
		UserID:    "u1",
		Recipient: "+33611223344",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, s.SaveSms(ctx, sms))
	gotSms, err := s.GetSms(ctx, sms.ID)
	require.NoError(t, err)
	require.NotNil(t, gotSms)
	require.Equal(t, "+33611223344", gotSms.Recipient)
	require.NoError(t, s.MarkSmsSent(ctx, sms.ID, at, "+33612345678", "+33611223344"))

	keep := &courier.Sms{
		ID:        uuid.New(),
		Type:      "come-home",
		UserID:    "u2",
		Recipient: "+34659424242",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, s.SaveSms(ctx, keep))

	require.NoError(t, s.DeleteUserMessages(ctx, "u1"))

	got, err = s.GetEmail(ctx, email.ID)
	require.NoError(t, err)
	require.Nil(t, got)
	gotSms, err = s.GetSms(ctx, sms.ID)
	require.NoError(t, err)
	require.Nil(t, gotSms)

	gotKeep, err := s.GetSms(ctx, keep.ID)
	require.NoError(t, err)
	require.NotNil(t, gotKeep)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemory())
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	email := &courier.Email{ID: uuid.New(), Type: "hello", CreatedAt: time.Now().UTC()}
	require.NoError(t, m.SaveEmail(ctx, email))

	email.Type = "changed after save"
	got, err := m.GetEmail(ctx, email.ID)
	require.NoError(t, err)
	require.Equal(t, "hello", got.Type)
}

func TestBadgerStore(t *testing.T) {
	s, err := OpenBadger(t.TempDir(), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	testStore(t, s)
}

func TestBadgerStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenBadger(dir, discardLogger())
	require.NoError(t, err)
	email := &courier.Email{ID: uuid.New(), Type: "hello", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.SaveEmail(ctx, email))
	require.NoError(t, s.Close())

	s, err = OpenBadger(dir, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	got, err := s.GetEmail(ctx, email.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "hello", got.Type)
}
