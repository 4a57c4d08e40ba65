// Package locale provides translation catalogs and carries the active locale
// through a context.Context so renderings never touch global state.
package locale

import (
	"context"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Bundle holds the translations for every locale a deployment supports.
// Define the catalog once at startup, then Activate a locale per message.
type Bundle struct {
	fallback language.Tag
	tags     []language.Tag
	matcher  language.Matcher
	builder  *catalog.Builder
}

// NewBundle creates a bundle with the given fallback locale and any number
// of additional supported locales. Tags are BCP 47 ("en", "fr", "pt-BR").
func NewBundle(fallback string, others ...string) (*Bundle, error) {
	tag, err := language.Parse(fallback)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", fallback, err)
	}

	tags := []language.Tag{tag}
	for _, other := range others {
		t, err := language.Parse(other)
		if err != nil {
			return nil, fmt.Errorf("parse locale %q: %w", other, err)
		}
		tags = append(tags, t)
	}

	return &Bundle{
		fallback: tag,
		tags:     tags,
		matcher:  language.NewMatcher(tags),
		builder:  catalog.NewBuilder(catalog.Fallback(tag)),
	}, nil
}

// Define registers the translation of a message key for one locale. Keys
// that have no entry for the active locale render as themselves, so plain
// English keys double as the fallback text.
func (b *Bundle) Define(loc, key, translation string) error {
	tag, err := language.Parse(loc)
	if err != nil {
		return fmt.Errorf("parse locale %q: %w", loc, err)
	}
	if err := b.builder.SetString(tag, key, translation); err != nil {
		return fmt.Errorf("define %q for %q: %w", key, loc, err)
	}
	return nil
}

type activeKey struct{}

type active struct {
	tag     language.Tag
	printer *message.Printer
}

// Activate returns a context carrying a printer for the closest supported
// locale. Unknown or malformed locales fall back to the bundle's default.
func (b *Bundle) Activate(ctx context.Context, loc string) context.Context {
	tag, err := language.Parse(loc)
	if err != nil {
		tag = b.fallback
	}
	tag, _, _ = b.matcher.Match(tag)

	return context.WithValue(ctx, activeKey{}, &active{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(b.builder)),
	})
}

// Lang reports the locale active on the context, or "" when none is.
func Lang(ctx context.Context) string {
	if a, ok := ctx.Value(activeKey{}).(*active); ok {
		return a.tag.String()
	}
	return ""
}

// Sprintf formats key in the locale active on the context. Outside an
// activated context it degrades to plain formatting of the key itself.
func Sprintf(ctx context.Context, key string, args ...any) string {
	if a, ok := ctx.Value(activeKey{}).(*active); ok {
		return a.printer.Sprintf(key, args...)
	}
	return fmt.Sprintf(key, args...)
}
