package courier

import (
	"context"

	"courier/backend"
)

// EmailType gives an email kind its behaviour: who receives it, in which
// locale, with which subject, and the values frozen into its context. A type
// is built from its record by the factory registered for its name, so it can
// read both the initial payload (Data) and, once frozen, the Context.
//
// Accessors run with the message locale active on ctx, except To and From
// which are also called once before activation.
type EmailType interface {
	// Locale returns the BCP 47 tag this message renders under. Types that
	// froze a locale into their context should return that one so a stored
	// message always re-renders the same way.
	Locale() string

	// To returns the recipient address, bare or as "Name <addr>".
	To(ctx context.Context) (string, error)

	// Subject returns the subject line, already localized.
	Subject(ctx context.Context) (string, error)

	// Context computes the values to freeze. Everything returned must
	// survive a JSON round trip. Called once per message, at send time.
	Context(ctx context.Context) (Context, error)
}

// SmsType is the SMS counterpart of EmailType. Content returns the message
// body, there are no templates or subjects involved.
type SmsType interface {
	Locale() string
	To(ctx context.Context) (string, error)
	Content(ctx context.Context) (string, error)
	Context(ctx context.Context) (Context, error)
}

// Optional capabilities below. The pipeline checks for them with type
// assertions, absence simply means the default behaviour.

// FromProvider overrides the configured default sender.
type FromProvider interface {
	From(ctx context.Context) (string, error)
}

// HTMLTemplater names the template for the HTML part. An empty name means
// no HTML part, which lets an embedding type drop the part of its base.
type HTMLTemplater interface {
	TemplateHTML() string
}

// TextTemplater names the template for the text part, "" meaning none.
type TextTemplater interface {
	TemplateText() string
}

// HTMLContenter produces the HTML part directly, bypassing templates and
// the inline/absolutize post-processing. Returning ErrNotImplemented drops
// the part.
type HTMLContenter interface {
	ContentHTML(ctx context.Context) (string, error)
}

// TextContenter produces the text part directly. Returning
// ErrNotImplemented drops the part.
type TextContenter interface {
	ContentText(ctx context.Context) (string, error)
}

// TemplateContexter replaces the default template data, which is the frozen
// context plus the record under "self".
type TemplateContexter interface {
	TemplateContext(ctx context.Context) (Context, error)
}

// Attacher adds attachments to an email.
type Attacher interface {
	Attachments(ctx context.Context) ([]backend.Attachment, error)
}

// HeaderProvider adds extra headers to an email. Providers drop the ones
// they reserve.
type HeaderProvider interface {
	Headers(ctx context.Context) (map[string]string, error)
}

// BaseURLProvider overrides the configured base URL for absolute links.
type BaseURLProvider interface {
	BaseURL(ctx context.Context) (string, error)
}

// Inliner rewrites an HTML body before delivery, typically inlining CSS
// into style attributes since email clients ignore style blocks.
type Inliner interface {
	Inline(html string) (string, error)
}
