package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"courier"
)

// Badger stores message records in a local BadgerDB. Records attached to a
// user carry an index entry so the GDPR eraser can find them without a full
// scan. User IDs must not contain ':'.
type Badger struct {
	db  *badger.DB
	log *slog.Logger
}

// OpenBadger opens, or creates, a Badger store at path.
func OpenBadger(path string, logger *slog.Logger) (*Badger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return &Badger{db: db, log: logger}, nil
}

// Close releases the underlying database.
func (b *Badger) Close() error {
	return b.db.Close()
}

func emailKey(id uuid.UUID) string {
	return "email:" + id.String()
}

func smsKey(id uuid.UUID) string {
	return "sms:" + id.String()
}

func userKey(userID, member string) string {
	return "user:" + userID + ":" + member
}

// SaveEmail persists the record and, when it belongs to a user, its index
// entry.
func (b *Badger) SaveEmail(_ context.Context, email *courier.Email) error {
	payload, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(emailKey(email.ID)), payload); err != nil {
			return err
		}
		if email.UserID != "" {
			return txn.Set([]byte(userKey(email.UserID, emailKey(email.ID))), nil)
		}
		return nil
	})
}

// GetEmail returns the record, or nil when it does not exist.
func (b *Badger) GetEmail(_ context.Context, id uuid.UUID) (*courier.Email, error) {
	var rec courier.Email
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(emailKey(id)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkEmailSent stamps the stored record.
func (b *Badger) MarkEmailSent(_ context.Context, id uuid.UUID, at time.Time, sender, recipient string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(emailKey(id)))
		if err != nil {
			return err
		}
		var rec courier.Email
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return err
		}
		rec.SentAt, rec.Sender, rec.Recipient = &at, sender, recipient
		payload, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		return txn.Set([]byte(emailKey(id)), payload)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return courier.ErrNotFound
	}
	return err
}

// SaveSms persists the record and, when it belongs to a user, its index
// entry.
func (b *Badger) SaveSms(_ context.Context, sms *courier.Sms) error {
	payload, err := json.Marshal(sms)
	if err != nil {
		return fmt.Errorf("encode sms: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(smsKey(sms.ID)), payload); err != nil {
			return err
		}
		if sms.UserID != "" {
			return txn.Set([]byte(userKey(sms.UserID, smsKey(sms.ID))), nil)
		}
		return nil
	})
}

// GetSms returns the record, or nil when it does not exist.
func (b *Badger) GetSms(_ context.Context, id uuid.UUID) (*courier.Sms, error) {
	var rec courier.Sms
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(smsKey(id)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkSmsSent stamps the stored record.
func (b *Badger) MarkSmsSent(_ context.Context, id uuid.UUID, at time.Time, sender, recipient string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(smsKey(id)))
		if err != nil {
			return err
		}
		var rec courier.Sms
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return err
		}
		rec.SentAt, rec.Sender, rec.Recipient = &at, sender, recipient
		payload, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		return txn.Set([]byte(smsKey(id)), payload)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return courier.ErrNotFound
	}
	return err
}

// DeleteUserMessages walks the user's index entries and drops the records
// they point to, then the entries themselves.
func (b *Badger) DeleteUserMessages(_ context.Context, userID string) error {
	prefix := []byte("user:" + userID + ":")

	var members []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			members = append(members, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return nil
	}

	return b.db.Update(func(txn *badger.Txn) error {
		for _, member := range members {
			if err := txn.Delete([]byte(member)); err != nil {
				return err
			}
			if err := txn.Delete([]byte(userKey(userID, member))); err != nil {
				return err
			}
		}
		return nil
	})
}
