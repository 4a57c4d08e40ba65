package locale

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestBundle(t *testing.T) *Bundle {
	t.Helper()

	b, err := NewBundle("en", "fr")
	require.NoError(t, err)
	require.NoError(t, b.Define("fr", "Hello %s", "Salut %s"))
	require.NoError(t, b.Define("fr", "See you soon", "À plus la pluche"))
	return b
}

func TestSprintfTranslates(t *testing.T) {
	b := newTestBundle(t)

	ctx := b.Activate(context.Background(), "fr")
	require.Equal(t, "Salut John", Sprintf(ctx, "Hello %s", "John"))
	require.Equal(t, "À plus la pluche", Sprintf(ctx, "See you soon"))
}

func TestSprintfFallsBackToKey(t *testing.T) {
	b := newTestBundle(t)

	ctx := b.Activate(context.Background(), "en")
	require.Equal(t, "Hello John", Sprintf(ctx, "Hello %s", "John"))
}

func TestActivateUnknownLocaleUsesFallback(t *testing.T) {
	b := newTestBundle(t)

	ctx := b.Activate(context.Background(), "not a locale")
	require.Equal(t, "en", Lang(ctx))
	require.Equal(t, "Hello John", Sprintf(ctx, "Hello %s", "John"))
}

func TestRegionalVariantMatchesBase(t *testing.T) {
	b := newTestBundle(t)

	ctx := b.Activate(context.Background(), "fr-BE")
	require.Equal(t, "Salut John", Sprintf(ctx, "Hello %s", "John"))
}

func TestSprintfWithoutActivation(t *testing.T) {
	require.Equal(t, "", Lang(context.Background()))
	require.Equal(t, "Hello John", Sprintf(context.Background(), "Hello %s", "John"))
}

func TestNewBundleRejectsBadTag(t *testing.T) {
	_, err := NewBundle("!!")
	require.Error(t, err)
}
