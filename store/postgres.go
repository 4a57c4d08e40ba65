// Package store provides the persistence backends for message records:
// PostgreSQL for production, Badger for single node setups without a
// database server, and an in-memory one for development.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"courier"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Postgres stores message records in PostgreSQL. Open the handle with the
// pgx stdlib driver and run Migrate once before use.
type Postgres struct {
	db  *sql.DB
	log *slog.Logger
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{db: db, log: logger}
}

// Migrate applies the embedded schema migrations that have not been applied
// yet, each in its own transaction.
func (p *Postgres) Migrate(ctx context.Context) error {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return err
	}

	if _, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return err
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		var exists bool
		if err := p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, file).Scan(&exists); err != nil {
			return err
		}
		if exists {
			continue
		}

		content, err := migrationFiles.ReadFile(filepath.Join("migrations", file))
		if err != nil {
			return err
		}

		tx, err := p.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, file); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		p.log.Info("applied migration", "file", file)
	}

	return nil
}

// SaveEmail inserts the record, or refreshes it when the ID already exists.
func (p *Postgres) SaveEmail(ctx context.Context, email *courier.Email) error {
	data, err := jsonMap(email.Data)
	if err != nil {
		return fmt.Errorf("encode email data: %w", err)
	}
	frozen, err := jsonMap(email.Context)
	if err != nil {
		return fmt.Errorf("encode email context: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO emails (id, type, data, context, user_id, sender, recipient, created_at, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			data = EXCLUDED.data,
			context = EXCLUDED.context,
			sender = EXCLUDED.sender,
			recipient = EXCLUDED.recipient,
			sent_at = EXCLUDED.sent_at
	`, email.ID, email.Type, data, frozen, email.UserID, email.Sender, email.Recipient, email.CreatedAt, email.SentAt)
	return err
}

// GetEmail returns the record, or nil when it does not exist.
func (p *Postgres) GetEmail(ctx context.Context, id uuid.UUID) (*courier.Email, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, type, data, context, user_id, sender, recipient, created_at, sent_at
		FROM emails WHERE id = $1
	`, id)

	var (
		rec          courier.Email
		data, frozen []byte
	)
	err := row.Scan(&rec.ID, &rec.Type, &data, &frozen, &rec.UserID, &rec.Sender, &rec.Recipient, &rec.CreatedAt, &rec.SentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &rec.Data); err != nil {
		return nil, fmt.Errorf("decode email data: %w", err)
	}
	if err := json.Unmarshal(frozen, &rec.Context); err != nil {
		return nil, fmt.Errorf("decode email context: %w", err)
	}
	return &rec, nil
}

// MarkEmailSent stamps the record and refreshes the addresses it was
// actually delivered with.
func (p *Postgres) MarkEmailSent(ctx context.Context, id uuid.UUID, at time.Time, sender, recipient string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE emails SET sent_at = $2, sender = $3, recipient = $4 WHERE id = $1
	`, id, at, sender, recipient)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// SaveSms inserts the record, or refreshes it when the ID already exists.
func (p *Postgres) SaveSms(ctx context.Context, sms *courier.Sms) error {
	data, err := jsonMap(sms.Data)
	if err != nil {
		return fmt.Errorf("encode sms data: %w", err)
	}
	frozen, err := jsonMap(sms.Context)
	if err != nil {
		return fmt.Errorf("encode sms context: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO sms (id, type, data, context, user_id, sender, recipient, created_at, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			data = EXCLUDED.data,
			context = EXCLUDED.context,
			sender = EXCLUDED.sender,
			recipient = EXCLUDED.recipient,
			sent_at = EXCLUDED.sent_at
	`, sms.ID, sms.Type, data, frozen, sms.UserID, sms.Sender, sms.Recipient, sms.CreatedAt, sms.SentAt)
	return err
}

// GetSms returns the record, or nil when it does not exist.
func (p *Postgres) GetSms(ctx context.Context, id uuid.UUID) (*courier.Sms, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, type, data, context, user_id, sender, recipient, created_at, sent_at
		FROM sms WHERE id = $1
	`, id)

	var (
		rec          courier.Sms
		data, frozen []byte
	)
	err := row.Scan(&rec.ID, &rec.Type, &data, &frozen, &rec.UserID, &rec.Sender, &rec.Recipient, &rec.CreatedAt, &rec.SentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &rec.Data); err != nil {
		return nil, fmt.Errorf("decode sms data: %w", err)
	}
	if err := json.Unmarshal(frozen, &rec.Context); err != nil {
		return nil, fmt.Errorf("decode sms context: %w", err)
	}
	return &rec, nil
}

// MarkSmsSent stamps the record and refreshes the addresses it was actually
// delivered with.
func (p *Postgres) MarkSmsSent(ctx context.Context, id uuid.UUID, at time.Time, sender, recipient string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE sms SET sent_at = $2, sender = $3, recipient = $4 WHERE id = $1
	`, id, at, sender, recipient)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// DeleteUserMessages drops every record attached to the user, in one
// transaction.
func (p *Postgres) DeleteUserMessages(ctx context.Context, userID string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM emails WHERE user_id = $1`, userID); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sms WHERE user_id = $1`, userID); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func jsonMap(c courier.Context) ([]byte, error) {
	if c == nil {
		c = courier.Context{}
	}
	return json.Marshal(c)
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return courier.ErrNotFound
	}
	return nil
}
