package template

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vilterp/nltemplate/pkg/lang"
)

func openTestStore(t *testing.T) *Store {
	store, err := OpenStore(filepath.Join(t.TempDir(), "templates.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)

	tmpl := New()
	require.NoError(t, tmpl.AddRuleWithMetadata(
		lang.MustRule(lang.MustAtom("h", lang.X).Dim(2, 3), lang.MustAtom("p", lang.Y), lang.MustAtom("edge", lang.Y, lang.X)),
		lang.Metadata{Aggregation: lang.AggSum},
	))
	require.NoError(t, tmpl.SetDefault(lang.Predicate{Name: "h", Arity: 1}, lang.Metadata{Activation: lang.ReLU}))
	require.NoError(t, tmpl.AddRule(lang.NewFact(lang.MustAtom("edge", lang.Const("a"), lang.Const("b")))))
	require.NoError(t, store.Put(tmpl))

	loaded, err := store.Get(tmpl.ID())
	require.NoError(t, err)
	require.Equal(t, tmpl.ID(), loaded.ID())
	require.Equal(t, tmpl.String(), loaded.String())
	require.False(t, loaded.IsFrozen())

	ids, err := store.List()
	require.NoError(t, err)
	require.Equal(t, []string{tmpl.ID()}, ids)
}

func TestStoreGetBindsFactory(t *testing.T) {
	store := openTestStore(t)

	tmpl := New()
	require.NoError(t, tmpl.SetDefault(lang.Predicate{Name: "h", Arity: 1}, lang.Metadata{Activation: lang.ReLU}))
	require.NoError(t, store.Put(tmpl))

	factory := lang.NewFactory(lang.AttachOverwrite)
	loaded, err := store.Get(tmpl.ID(), WithFactory(factory))
	require.NoError(t, err)
	require.Same(t, factory, loaded.Factory())
	require.Equal(t, tmpl.ID(), loaded.ID())
	_, ok := factory.Registry().Lookup("h")
	require.True(t, ok)

	require.NoError(t, loaded.SetDefault(lang.Predicate{Name: "h", Arity: 1}, lang.Metadata{Activation: lang.Tanh}))
	require.Equal(t, "h/1 [activation=tanh]", loaded.String())
}

func TestStoreMissingTemplate(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get("nope")
	require.IsType(t, &NoSuchTemplateError{}, err)
	require.EqualError(t, err, "no such template: nope")
}
