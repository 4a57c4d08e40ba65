// Package config loads the daemon configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"courier/phone"
)

// Config is everything the daemon needs to run.
type Config struct {
	Addr string
	Env  string

	// Store selects the persistence backend: postgres, badger or memory.
	Store       string
	DatabaseURL string
	BadgerPath  string

	// EmailProvider selects the email transport: mailjet, mandrill, resend
	// or log. SmsProvider is mailjet or log.
	EmailProvider string
	SmsProvider   string

	BaseURL       string
	DefaultFrom   string
	SmsSenders    []string
	DefaultLocale string
	ExtraLocales  []string
	TemplatesDir  string

	// SigningSecret, when set, protects message permalinks with signed
	// tokens.
	SigningSecret string

	MailjetPublicKey  string
	MailjetPrivateKey string
	MailjetSMSToken   string
	MandrillAPIKey    string
	ResendAPIKey      string
}

// Load reads the configuration, a .env file first when one exists, then the
// environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Addr:              valueOrDefault("COURIER_ADDR", ":8080"),
		Env:               valueOrDefault("COURIER_ENV", "development"),
		Store:             valueOrDefault("COURIER_STORE", "memory"),
		DatabaseURL:       strings.TrimSpace(os.Getenv("DATABASE_URL")),
		BadgerPath:        valueOrDefault("COURIER_BADGER_PATH", "/var/lib/courier/badger"),
		EmailProvider:     valueOrDefault("COURIER_EMAIL_PROVIDER", "log"),
		SmsProvider:       valueOrDefault("COURIER_SMS_PROVIDER", "log"),
		BaseURL:           strings.TrimSpace(os.Getenv("COURIER_BASE_URL")),
		DefaultFrom:       strings.TrimSpace(os.Getenv("COURIER_FROM")),
		SmsSenders:        splitList(os.Getenv("COURIER_SMS_SENDERS")),
		DefaultLocale:     valueOrDefault("COURIER_DEFAULT_LOCALE", "en"),
		ExtraLocales:      splitList(os.Getenv("COURIER_LOCALES")),
		TemplatesDir:      strings.TrimSpace(os.Getenv("COURIER_TEMPLATES_DIR")),
		SigningSecret:     strings.TrimSpace(os.Getenv("COURIER_SIGNING_SECRET")),
		MailjetPublicKey:  strings.TrimSpace(os.Getenv("MAILJET_API_KEY_PUBLIC")),
		MailjetPrivateKey: strings.TrimSpace(os.Getenv("MAILJET_API_KEY_PRIVATE")),
		MailjetSMSToken:   strings.TrimSpace(os.Getenv("MAILJET_API_TOKEN")),
		MandrillAPIKey:    strings.TrimSpace(os.Getenv("MANDRILL_API_KEY")),
		ResendAPIKey:      strings.TrimSpace(os.Getenv("RESEND_API_KEY")),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = assembleDatabaseURL()
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("COURIER_STORE=postgres needs DATABASE_URL or the PG*/POSTGRES_* variables")
		}
	case "badger", "memory":
	default:
		return fmt.Errorf("COURIER_STORE must be postgres, badger or memory, not %q", c.Store)
	}

	switch c.EmailProvider {
	case "mailjet":
		if c.MailjetPublicKey == "" || c.MailjetPrivateKey == "" {
			return fmt.Errorf("the mailjet email provider needs MAILJET_API_KEY_PUBLIC and MAILJET_API_KEY_PRIVATE")
		}
	case "mandrill":
		if c.MandrillAPIKey == "" {
			return fmt.Errorf("the mandrill email provider needs MANDRILL_API_KEY")
		}
	case "resend":
		if c.ResendAPIKey == "" {
			return fmt.Errorf("the resend email provider needs RESEND_API_KEY")
		}
	case "log":
	default:
		return fmt.Errorf("COURIER_EMAIL_PROVIDER must be mailjet, mandrill, resend or log, not %q", c.EmailProvider)
	}

	switch c.SmsProvider {
	case "mailjet":
		if c.MailjetSMSToken == "" {
			return fmt.Errorf("the mailjet SMS provider needs MAILJET_API_TOKEN")
		}
	case "log":
	default:
		return fmt.Errorf("COURIER_SMS_PROVIDER must be mailjet or log, not %q", c.SmsProvider)
	}

	if c.SigningSecret != "" && len(c.SigningSecret) < 16 {
		return fmt.Errorf("COURIER_SIGNING_SECRET must be at least 16 characters")
	}

	for _, sender := range c.SmsSenders {
		if _, err := phone.Parse(sender); err != nil {
			return fmt.Errorf("COURIER_SMS_SENDERS entry %q: %w", sender, err)
		}
	}

	return nil
}

func assembleDatabaseURL() string {
	host := valueFromEnvKeys("PGHOST", "POSTGRES_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	port := valueFromEnvKeys("PGPORT", "POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	dbname := valueFromEnvKeys("PGDATABASE", "POSTGRES_DB")
	user := valueFromEnvKeys("PGUSER", "POSTGRES_USER")
	password := valueFromEnvKeys("PGPASSWORD", "POSTGRES_PASSWORD")
	sslmode := valueFromEnvKeys("PGSSLMODE", "POSTGRES_SSLMODE")
	if sslmode == "" {
		sslmode = "disable"
	}
	if dbname == "" || user == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, dbname, sslmode)
}

func valueOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func valueFromEnvKeys(keys ...string) string {
	for _, key := range keys {
		value := strings.TrimSpace(os.Getenv(key))
		if value != "" {
			return value
		}
	}
	return ""
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
