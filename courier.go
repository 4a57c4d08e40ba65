// Package courier sends transactional emails and text messages. Every
// message is an instance of a registered type which decides its recipient,
// locale, content and template values. The values get frozen into a durable
// record at send time, so a message re-renders identically long after the
// live data it was built from changed.
package courier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"courier/backend"
	"courier/locale"
	"courier/phone"
	"courier/templates"
)

// Options configures a Courier. Store is the only hard requirement, the
// rest depends on which operations are used.
type Options struct {
	// Store persists message records.
	Store Store

	// Emails delivers rendered emails.
	Emails backend.EmailProvider

	// Sms delivers rendered text messages.
	Sms backend.SmsProvider

	// Renderer resolves the template names message types return. Only
	// needed when a registered type renders through templates.
	Renderer templates.Renderer

	// Locales translates message content. A nil bundle renders every key
	// as itself.
	Locales *locale.Bundle

	// Inliner post-processes template-rendered HTML parts, typically
	// inlining CSS.
	Inliner Inliner

	// BaseURL, when set, is used verbatim for absolute links. Otherwise
	// Sites and SiteID decide, see ResolveBaseURL.
	BaseURL string
	Sites   []Site
	SiteID  string

	// DefaultFrom is the sender address for email types without their own.
	DefaultFrom string

	// SmsSenders are the numbers SMS can be sent from. Types without their
	// own sender get the one matching the recipient's country, if any.
	SmsSenders []string

	Logger *slog.Logger
}

// Courier renders registered message types and hands the result to a
// provider, keeping a record of everything it sends.
type Courier struct {
	registry    *Registry
	store       Store
	emails      backend.EmailProvider
	sms         backend.SmsProvider
	renderer    templates.Renderer
	locales     *locale.Bundle
	inliner     Inliner
	baseURL     string
	sites       []Site
	siteID      string
	defaultFrom string
	smsSenders  []string
	log         *slog.Logger

	now func() time.Time
}

// New creates a Courier from options.
func New(opts Options) (*Courier, error) {
	if opts.Store == nil {
		return nil, errors.New("courier: a store is required")
	}

	bundle := opts.Locales
	if bundle == nil {
		var err error
		bundle, err = locale.NewBundle("en")
		if err != nil {
			return nil, err
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Courier{
		registry:    NewRegistry(),
		store:       opts.Store,
		emails:      opts.Emails,
		sms:         opts.Sms,
		renderer:    opts.Renderer,
		locales:     bundle,
		inliner:     opts.Inliner,
		baseURL:     opts.BaseURL,
		sites:       opts.Sites,
		siteID:      opts.SiteID,
		defaultFrom: opts.DefaultFrom,
		smsSenders:  opts.SmsSenders,
		log:         logger,
		now:         time.Now,
	}, nil
}

// RegisterEmail registers an email type under a name.
func (c *Courier) RegisterEmail(name string, factory EmailFactory) {
	c.registry.RegisterEmail(name, factory)
}

// RegisterSms registers an SMS type under a name.
func (c *Courier) RegisterSms(name string, factory SmsFactory) {
	c.registry.RegisterSms(name, factory)
}

// Registry returns the type registry.
func (c *Courier) Registry() *Registry {
	return c.registry
}

// SendEmail builds, persists and sends an email of the given type. The data
// payload is stored on the record and handed to the type, so it must be
// JSON-serializable.
func (c *Courier) SendEmail(ctx context.Context, typeName string, data Context) (*Email, error) {
	return c.SendEmailFor(ctx, typeName, data, "")
}

// SendEmailFor is SendEmail with the message attached to a user, which
// makes the record reachable by DeleteUserMessages.
func (c *Courier) SendEmailFor(ctx context.Context, typeName string, data Context, userID string) (*Email, error) {
	factory, ok := c.registry.emailFactory(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: email type %q", ErrUnknownType, typeName)
	}

	rec := &Email{
		ID:        uuid.New(),
		Type:      typeName,
		Data:      data,
		UserID:    userID,
		CreatedAt: c.now().UTC(),
	}
	t := factory(rec)

	// First resolution happens before the locale is active. Both values
	// are read again under the locale right before delivery, so a re-send
	// picks up live recipient changes while the context stays frozen.
	from, err := c.emailFrom(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("resolve sender of %q: %w", typeName, err)
	}
	to, err := t.To(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve recipient of %q: %w", typeName, err)
	}
	rec.Sender, rec.Recipient = from, to

	rctx := c.renderCtx(ctx, t.Locale(), t)
	fresh, err := t.Context(rctx)
	if err != nil {
		return nil, fmt.Errorf("build context of %q: %w", typeName, err)
	}
	rec.Context, err = freezeContext(fresh)
	if err != nil {
		return nil, fmt.Errorf("email type %q: %w", typeName, err)
	}

	if err := c.store.SaveEmail(ctx, rec); err != nil {
		return nil, fmt.Errorf("save email: %w", err)
	}

	if _, err := c.SendEmailNow(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// SendEmailNow renders and delivers a persisted email record, then stamps
// it. It returns how many messages the provider accepted, zero meaning the
// transport refused it. Calling it again on an already sent record re-sends
// the same frozen content to the recipient as they are now.
func (c *Courier) SendEmailNow(ctx context.Context, rec *Email) (int, error) {
	if c.emails == nil {
		return 0, errors.New("courier: no email provider configured")
	}
	factory, ok := c.registry.emailFactory(rec.Type)
	if !ok {
		return 0, fmt.Errorf("%w: email type %q", ErrUnknownType, rec.Type)
	}
	t := factory(rec)

	rctx := c.renderCtx(ctx, t.Locale(), t)

	to, err := t.To(rctx)
	if err != nil {
		return 0, fmt.Errorf("resolve recipient of %q: %w", rec.Type, err)
	}
	from, err := c.emailFrom(rctx, t)
	if err != nil {
		return 0, fmt.Errorf("resolve sender of %q: %w", rec.Type, err)
	}
	subject, err := t.Subject(rctx)
	if err != nil {
		return 0, fmt.Errorf("subject of %q: %w", rec.Type, err)
	}

	text, err := c.textPart(rctx, rec, t)
	if err != nil {
		return 0, err
	}
	html, err := c.htmlPart(rctx, rec, t)
	if err != nil {
		return 0, err
	}
	if text == "" && html == "" {
		return 0, fmt.Errorf("email type %q has neither a text nor an HTML part: %w", rec.Type, ErrNotImplemented)
	}

	msg := &backend.Email{
		From:    from,
		To:      []string{to},
		Subject: subject,
		Text:    text,
		HTML:    html,
	}
	if a, ok := t.(Attacher); ok {
		msg.Attachments, err = a.Attachments(rctx)
		if err != nil && !errors.Is(err, ErrNotImplemented) {
			return 0, fmt.Errorf("attachments of %q: %w", rec.Type, err)
		}
	}
	if h, ok := t.(HeaderProvider); ok {
		msg.Headers, err = h.Headers(rctx)
		if err != nil && !errors.Is(err, ErrNotImplemented) {
			return 0, fmt.Errorf("headers of %q: %w", rec.Type, err)
		}
	}

	sent, err := c.emails.SendEmails(ctx, []*backend.Email{msg})
	if err != nil {
		return 0, fmt.Errorf("send email %q: %w", rec.Type, err)
	}

	at := c.now().UTC()
	rec.SentAt, rec.Sender, rec.Recipient = &at, from, to
	if err := c.store.MarkEmailSent(ctx, rec.ID, at, from, to); err != nil {
		return sent, fmt.Errorf("record email delivery: %w", err)
	}

	if sent == 0 {
		c.log.Warn("email not delivered", "type", rec.Type, "id", rec.ID, "provider", c.emails.Name())
	} else {
		c.log.Info("email sent", "type", rec.Type, "id", rec.ID, "provider", c.emails.Name(), "delivered", sent)
	}
	return sent, nil
}

// SendSms builds, persists and sends an SMS of the given type.
func (c *Courier) SendSms(ctx context.Context, typeName string, data Context) (*Sms, error) {
	return c.SendSmsFor(ctx, typeName, data, "")
}

// SendSmsFor is SendSms with the message attached to a user.
func (c *Courier) SendSmsFor(ctx context.Context, typeName string, data Context, userID string) (*Sms, error) {
	factory, ok := c.registry.smsFactory(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: sms type %q", ErrUnknownType, typeName)
	}

	rec := &Sms{
		ID:        uuid.New(),
		Type:      typeName,
		Data:      data,
		UserID:    userID,
		CreatedAt: c.now().UTC(),
	}
	t := factory(rec)

	toRaw, err := t.To(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve recipient of %q: %w", typeName, err)
	}
	to, err := phone.Parse(toRaw)
	if err != nil {
		return nil, fmt.Errorf("sms type %q: %w", typeName, err)
	}
	from, err := c.smsFrom(ctx, t, to)
	if err != nil {
		return nil, fmt.Errorf("resolve sender of %q: %w", typeName, err)
	}
	rec.Sender, rec.Recipient = from, to.E164()

	rctx := c.renderCtx(ctx, t.Locale(), t)
	fresh, err := t.Context(rctx)
	if err != nil {
		return nil, fmt.Errorf("build context of %q: %w", typeName, err)
	}
	rec.Context, err = freezeContext(fresh)
	if err != nil {
		return nil, fmt.Errorf("sms type %q: %w", typeName, err)
	}

	if err := c.store.SaveSms(ctx, rec); err != nil {
		return nil, fmt.Errorf("save sms: %w", err)
	}

	if _, err := c.SendSmsNow(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// SendSmsNow renders and delivers a persisted SMS record, then stamps it.
func (c *Courier) SendSmsNow(ctx context.Context, rec *Sms) (int, error) {
	if c.sms == nil {
		return 0, errors.New("courier: no SMS provider configured")
	}
	factory, ok := c.registry.smsFactory(rec.Type)
	if !ok {
		return 0, fmt.Errorf("%w: sms type %q", ErrUnknownType, rec.Type)
	}
	t := factory(rec)

	rctx := c.renderCtx(ctx, t.Locale(), t)

	toRaw, err := t.To(rctx)
	if err != nil {
		return 0, fmt.Errorf("resolve recipient of %q: %w", rec.Type, err)
	}
	to, err := phone.Parse(toRaw)
	if err != nil {
		return 0, fmt.Errorf("sms type %q: %w", rec.Type, err)
	}
	from, err := c.smsFrom(rctx, t, to)
	if err != nil {
		return 0, fmt.Errorf("resolve sender of %q: %w", rec.Type, err)
	}
	content, err := t.Content(rctx)
	if err != nil {
		return 0, fmt.Errorf("content of %q: %w", rec.Type, err)
	}

	sent, err := c.sms.SendSms(ctx, []*backend.Sms{{
		From:       from,
		Recipients: []string{to.E164()},
		Text:       content,
	}})
	if err != nil {
		return 0, fmt.Errorf("send sms %q: %w", rec.Type, err)
	}

	at := c.now().UTC()
	rec.SentAt, rec.Sender, rec.Recipient = &at, from, to.E164()
	if err := c.store.MarkSmsSent(ctx, rec.ID, at, from, to.E164()); err != nil {
		return sent, fmt.Errorf("record sms delivery: %w", err)
	}

	if sent == 0 {
		c.log.Warn("sms not delivered", "type", rec.Type, "id", rec.ID, "provider", c.sms.Name())
	} else {
		c.log.Info("sms sent", "type", rec.Type, "id", rec.ID, "provider", c.sms.Name(), "delivered", sent)
	}
	return sent, nil
}

// RenderEmail re-renders a stored email in the given format, "html" or
// "txt", from its frozen context. Unknown records return ErrNotFound, an
// absent part ErrNotImplemented.
func (c *Courier) RenderEmail(ctx context.Context, id uuid.UUID, format string) (string, error) {
	rec, err := c.store.GetEmail(ctx, id)
	if err != nil {
		return "", fmt.Errorf("load email: %w", err)
	}
	if rec == nil {
		return "", fmt.Errorf("email %s: %w", id, ErrNotFound)
	}
	factory, ok := c.registry.emailFactory(rec.Type)
	if !ok {
		return "", fmt.Errorf("%w: email type %q", ErrUnknownType, rec.Type)
	}
	t := factory(rec)
	rctx := c.renderCtx(ctx, t.Locale(), t)

	var out string
	switch format {
	case "html":
		out, err = c.htmlPart(rctx, rec, t)
	case "txt":
		out, err = c.textPart(rctx, rec, t)
	default:
		return "", fmt.Errorf("unknown email format %q: %w", format, ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", fmt.Errorf("email %s has no %s part: %w", id, format, ErrNotImplemented)
	}
	return out, nil
}

// RenderSms re-renders a stored SMS from its frozen context.
func (c *Courier) RenderSms(ctx context.Context, id uuid.UUID) (string, error) {
	rec, err := c.store.GetSms(ctx, id)
	if err != nil {
		return "", fmt.Errorf("load sms: %w", err)
	}
	if rec == nil {
		return "", fmt.Errorf("sms %s: %w", id, ErrNotFound)
	}
	factory, ok := c.registry.smsFactory(rec.Type)
	if !ok {
		return "", fmt.Errorf("%w: sms type %q", ErrUnknownType, rec.Type)
	}
	t := factory(rec)
	rctx := c.renderCtx(ctx, t.Locale(), t)

	content, err := t.Content(rctx)
	if err != nil {
		return "", fmt.Errorf("content of %q: %w", rec.Type, err)
	}
	return content, nil
}

// DeleteUserMessages removes every message kept for a user.
func (c *Courier) DeleteUserMessages(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("courier: empty user id")
	}
	if err := c.store.DeleteUserMessages(ctx, userID); err != nil {
		return fmt.Errorf("delete messages of user %q: %w", userID, err)
	}
	c.log.Info("user messages deleted", "user_id", userID)
	return nil
}

// renderCtx activates the message locale and attaches lazy base URL
// resolution, so accessors and templates can translate and build absolute
// links without global state.
func (c *Courier) renderCtx(ctx context.Context, loc string, t any) context.Context {
	ctx = c.locales.Activate(ctx, loc)
	return withBaseURL(ctx, func(ctx context.Context) (string, error) {
		if bp, ok := t.(BaseURLProvider); ok {
			return bp.BaseURL(ctx)
		}
		return ResolveBaseURL(c.baseURL, c.sites, c.siteID)
	})
}

func (c *Courier) emailFrom(ctx context.Context, t EmailType) (string, error) {
	if fp, ok := t.(FromProvider); ok {
		from, err := fp.From(ctx)
		if err != nil && !errors.Is(err, ErrNotImplemented) {
			return "", err
		}
		if err == nil && from != "" {
			return from, nil
		}
	}
	return c.defaultFrom, nil
}

func (c *Courier) smsFrom(ctx context.Context, t SmsType, to phone.Number) (string, error) {
	if fp, ok := t.(FromProvider); ok {
		from, err := fp.From(ctx)
		if err != nil && !errors.Is(err, ErrNotImplemented) {
			return "", err
		}
		if err == nil && from != "" {
			return from, nil
		}
	}
	for _, raw := range c.smsSenders {
		sender, err := phone.Parse(raw)
		if err != nil {
			continue
		}
		if sender.CountryCode() == to.CountryCode() {
			return sender.E164(), nil
		}
	}
	return "", nil
}

func (c *Courier) textPart(ctx context.Context, rec *Email, t EmailType) (string, error) {
	if tc, ok := t.(TextContenter); ok {
		out, err := tc.ContentText(ctx)
		if errors.Is(err, ErrNotImplemented) {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("text content of %q: %w", rec.Type, err)
		}
		return out, nil
	}

	tt, ok := t.(TextTemplater)
	if !ok || tt.TemplateText() == "" {
		return "", nil
	}
	if c.renderer == nil {
		return "", fmt.Errorf("%w: type %q names template %q but no renderer is configured", ErrTemplate, rec.Type, tt.TemplateText())
	}
	data, err := c.emailTemplateData(ctx, rec, t)
	if err != nil {
		return "", err
	}
	out, err := c.renderer.RenderText(tt.TemplateText(), data, templateFuncs(ctx))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplate, err)
	}
	return out, nil
}

// htmlPart renders the HTML part. Template-rendered HTML additionally goes
// through the inliner and gets its relative links absolutized, so it needs a
// resolvable base URL. Types producing their own HTML skip all of that.
func (c *Courier) htmlPart(ctx context.Context, rec *Email, t EmailType) (string, error) {
	if hc, ok := t.(HTMLContenter); ok {
		out, err := hc.ContentHTML(ctx)
		if errors.Is(err, ErrNotImplemented) {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("HTML content of %q: %w", rec.Type, err)
		}
		return out, nil
	}

	ht, ok := t.(HTMLTemplater)
	if !ok || ht.TemplateHTML() == "" {
		return "", nil
	}
	if c.renderer == nil {
		return "", fmt.Errorf("%w: type %q names template %q but no renderer is configured", ErrTemplate, rec.Type, ht.TemplateHTML())
	}
	data, err := c.emailTemplateData(ctx, rec, t)
	if err != nil {
		return "", err
	}
	out, err := c.renderer.RenderHTML(ht.TemplateHTML(), data, templateFuncs(ctx))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplate, err)
	}

	base, err := currentBaseURL(ctx)
	if err != nil {
		return "", err
	}
	if c.inliner != nil {
		out, err = c.inliner.Inline(out)
		if err != nil {
			return "", fmt.Errorf("%w: inline styles: %v", ErrTemplate, err)
		}
	}
	out, err = absolutizeHTML(out, base)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplate, err)
	}
	return out, nil
}

func (c *Courier) emailTemplateData(ctx context.Context, rec *Email, t EmailType) (Context, error) {
	if tc, ok := t.(TemplateContexter); ok {
		data, err := tc.TemplateContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("template context of %q: %w", rec.Type, err)
		}
		return data, nil
	}
	data := Context{}
	for k, v := range rec.Context {
		data[k] = v
	}
	data["self"] = rec
	return data, nil
}

// templateFuncs binds the per-render template functions to the rendering
// context: "t" translates in the message locale, "absolute" builds an
// absolute URL from a path.
func templateFuncs(ctx context.Context) templates.FuncMap {
	return templates.FuncMap{
		"t": func(key string, args ...any) string {
			return locale.Sprintf(ctx, key, args...)
		},
		"absolute": func(ref string) (string, error) {
			return MakeAbsolute(ctx, ref)
		},
	}
}
