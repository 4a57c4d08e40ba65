// Command courierd runs the transactional messaging daemon. It serves the
// message permalinks over HTTP and offers a few verbs to send and resend
// messages from the command line:
//
//	courierd                      serve permalinks (default)
//	courierd serve
//	courierd send-email <type> [json-data]
//	courierd send-sms <type> [json-data]
//	courierd resend <email|sms> <id>
//	courierd token                mint an API token for the send endpoints
package main

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"courier"
	"courier/backend"
	"courier/config"
	"courier/inline"
	"courier/locale"
	"courier/store"
	"courier/templates"
	"courier/web"
)

//go:embed templates
var demoAssets embed.FS

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("store unavailable", "store", cfg.Store, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	bundle, err := locale.NewBundle(cfg.DefaultLocale, cfg.ExtraLocales...)
	if err != nil {
		logger.Error("invalid locales", "err", err)
		os.Exit(1)
	}
	if err := demoTranslations(bundle); err != nil {
		logger.Error("invalid translations", "err", err)
		os.Exit(1)
	}

	assets, err := templateAssets(cfg)
	if err != nil {
		logger.Error("templates unavailable", "err", err)
		os.Exit(1)
	}
	renderer, err := templates.NewFSRenderer(assets, templates.FuncMap{
		"style": styleFunc(assets),
	})
	if err != nil {
		logger.Error("invalid templates", "err", err)
		os.Exit(1)
	}

	c, err := courier.New(courier.Options{
		Store:       st,
		Emails:      emailProvider(cfg, logger),
		Sms:         smsProvider(cfg, logger),
		Renderer:    renderer,
		Locales:     bundle,
		Inliner:     inline.New(),
		BaseURL:     cfg.BaseURL,
		DefaultFrom: cfg.DefaultFrom,
		SmsSenders:  cfg.SmsSenders,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("courier setup failed", "err", err)
		os.Exit(1)
	}
	registerDemoTypes(c)

	logger.Info("runtime configuration",
		"env", cfg.Env,
		"addr", cfg.Addr,
		"store", cfg.Store,
		"email_provider", cfg.EmailProvider,
		"sms_provider", cfg.SmsProvider,
	)

	verb := "serve"
	if len(os.Args) > 1 {
		verb = os.Args[1]
	}
	switch verb {
	case "serve":
		runServe(cfg, c, logger)
	case "send-email":
		runSendEmail(ctx, c, os.Args[2:], logger)
	case "send-sms":
		runSendSms(ctx, c, os.Args[2:], logger)
	case "resend":
		runResend(ctx, c, st, os.Args[2:], logger)
	case "token":
		runToken(cfg, c)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (courier.Store, func(), error) {
	switch cfg.Store {
	case "postgres":
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		pg := store.NewPostgres(db, logger)
		if err := pg.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return pg, func() { _ = db.Close() }, nil
	case "badger":
		b, err := store.OpenBadger(cfg.BadgerPath, logger)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { _ = b.Close() }, nil
	default:
		return store.NewMemory(), func() {}, nil
	}
}

func emailProvider(cfg *config.Config, logger *slog.Logger) backend.EmailProvider {
	switch cfg.EmailProvider {
	case "mailjet":
		p := backend.NewMailjet(cfg.MailjetPublicKey, cfg.MailjetPrivateKey, cfg.MailjetSMSToken)
		p.Logger = logger
		return p
	case "mandrill":
		p := backend.NewMandrill(cfg.MandrillAPIKey)
		p.Logger = logger
		return p
	case "resend":
		p := backend.NewResend(cfg.ResendAPIKey)
		p.Logger = logger
		return p
	default:
		return backend.NewLog(logger)
	}
}

func smsProvider(cfg *config.Config, logger *slog.Logger) backend.SmsProvider {
	if cfg.SmsProvider == "mailjet" {
		p := backend.NewMailjet(cfg.MailjetPublicKey, cfg.MailjetPrivateKey, cfg.MailjetSMSToken)
		p.Logger = logger
		return p
	}
	return backend.NewLog(logger)
}

// templateAssets returns the template tree, the configured directory when
// one is set, the embedded demo templates otherwise.
func templateAssets(cfg *config.Config) (fs.FS, error) {
	if cfg.TemplatesDir != "" {
		return os.DirFS(cfg.TemplatesDir), nil
	}
	return fs.Sub(demoAssets, "templates")
}

func runServe(cfg *config.Config, c *courier.Courier, logger *slog.Logger) {
	srv := web.NewServer(web.Options{
		Courier:       c,
		Logger:        logger,
		SigningSecret: cfg.SigningSecret,
	})
	r := srv.Router()
	logger.Info("listening", "addr", cfg.Addr)
	if err := r.Run(cfg.Addr); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func runToken(cfg *config.Config, c *courier.Courier) {
	srv := web.NewServer(web.Options{Courier: c, SigningSecret: cfg.SigningSecret})
	token, err := srv.APIToken()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func runSendEmail(ctx context.Context, c *courier.Courier, args []string, logger *slog.Logger) {
	typeName, data := parseSendArgs("send-email", args)
	rec, err := c.SendEmail(ctx, typeName, data)
	if err != nil {
		logger.Error("send failed", "type", typeName, "err", err)
		os.Exit(1)
	}
	logger.Info("email sent", "type", typeName, "id", rec.ID, "view_html", rec.LinkHTML(), "view_text", rec.LinkText())
}

func runSendSms(ctx context.Context, c *courier.Courier, args []string, logger *slog.Logger) {
	typeName, data := parseSendArgs("send-sms", args)
	rec, err := c.SendSms(ctx, typeName, data)
	if err != nil {
		logger.Error("send failed", "type", typeName, "err", err)
		os.Exit(1)
	}
	logger.Info("sms sent", "type", typeName, "id", rec.ID, "view", rec.Link())
}

func parseSendArgs(verb string, args []string) (string, courier.Context) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "usage: courierd %s <type> [json-data]\n", verb)
		os.Exit(1)
	}
	data := courier.Context{}
	if len(args) > 1 {
		if err := json.Unmarshal([]byte(args[1]), &data); err != nil {
			fmt.Fprintf(os.Stderr, "invalid data: %v\n", err)
			os.Exit(1)
		}
	}
	return args[0], data
}

func runResend(ctx context.Context, c *courier.Courier, st courier.Store, args []string, logger *slog.Logger) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: courierd resend <email|sms> <id>")
		os.Exit(1)
	}
	id, err := uuid.Parse(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid id: %v\n", err)
		os.Exit(1)
	}

	switch args[0] {
	case "email":
		rec, err := st.GetEmail(ctx, id)
		if err != nil {
			logger.Error("load failed", "id", id, "err", err)
			os.Exit(1)
		}
		if rec == nil {
			fmt.Fprintf(os.Stderr, "no email %s\n", id)
			os.Exit(1)
		}
		sent, err := c.SendEmailNow(ctx, rec)
		if err != nil {
			logger.Error("resend failed", "id", id, "err", err)
			os.Exit(1)
		}
		logger.Info("email resent", "id", id, "delivered", sent)
	case "sms":
		rec, err := st.GetSms(ctx, id)
		if err != nil {
			logger.Error("load failed", "id", id, "err", err)
			os.Exit(1)
		}
		if rec == nil {
			fmt.Fprintf(os.Stderr, "no sms %s\n", id)
			os.Exit(1)
		}
		sent, err := c.SendSmsNow(ctx, rec)
		if err != nil {
			logger.Error("resend failed", "id", id, "err", err)
			os.Exit(1)
		}
		logger.Info("sms resent", "id", id, "delivered", sent)
	default:
		fmt.Fprintln(os.Stderr, "usage: courierd resend <email|sms> <id>")
		os.Exit(1)
	}
}
