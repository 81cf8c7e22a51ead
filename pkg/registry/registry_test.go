package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/simple-analytics/pkg/core"
)

type trackArgs struct {
	URL     string `arg:"url"`
	Visitor string `arg:"visitor"`
}

func TestRegistry_Register(t *testing.T) {
	r := New()

	r.Register("track-pageview", func(ctx context.Context, args trackArgs) error {
		return nil
	})

	assert.True(t, r.HasHandler("track-pageview"))
	assert.False(t, r.HasHandler("unknown"))

	h, ok := r.Handler("track-pageview")
	require.True(t, ok)
	assert.Equal(t, "track-pageview", h.Name)
	assert.Equal(t, []string{"url", "visitor"}, h.Params)
	assert.Empty(t, h.Module)
}

func TestRegistry_RegisterWithParams(t *testing.T) {
	r := New()

	r.Register("f", func(db, fs any, x int) error { return nil }, Params("db", "fs", "x"))

	h, ok := r.Handler("f")
	require.True(t, ok)
	assert.Equal(t, []string{"db", "fs", "x"}, h.Params)
}

func TestRegistry_RegisterInModule(t *testing.T) {
	r := New()

	r.Register("report", func() error { return nil }, InModule("pageviews.reports"))

	h, _ := r.Handler("report")
	assert.Equal(t, "pageviews.reports", h.Module)
}

func TestRegistry_RegisterPanicsOnInvalidName(t *testing.T) {
	r := New()

	assert.Panics(t, func() {
		r.Register("not valid", func() error { return nil })
	})
}

func TestRegistry_RegisterPanicsOnInvalidFunction(t *testing.T) {
	r := New()

	assert.Panics(t, func() {
		r.Register("broken", "not a function")
	})
}

func TestRegistry_RegisterE(t *testing.T) {
	r := New()

	err := r.RegisterE("bad name", func() error { return nil })
	assert.ErrorIs(t, err, core.ErrInvalidHandlerName)

	err = r.RegisterE("positional", func(x int) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "positional")

	err = r.RegisterE("mod", func() error { return nil }, InModule("bad/module"))
	assert.ErrorIs(t, err, core.ErrInvalidModuleName)

	assert.Empty(t, r.Names())
}

func TestRegistry_DuplicateHandler(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterE("track", func() error { return nil }))

	err := r.RegisterE("track", func() error { return nil })

	assert.ErrorIs(t, err, core.ErrDuplicateHandler)
}

func TestRegistry_Names(t *testing.T) {
	r := New()
	r.Register("b", func() error { return nil })
	r.Register("a", func() error { return nil })
	r.Register("c", func() error { return nil })

	assert.Equal(t, []string{"a", "b", "c"}, r.Names())
}

func TestScope_StampsModule(t *testing.T) {
	r := New()
	s := r.Scope("pageviews")

	s.Register("track", func() error { return nil }, InModule("spoofed"))
	require.NoError(t, s.RegisterE("report", func() error { return nil }))

	assert.Equal(t, "pageviews", s.Module())
	h, _ := r.Handler("track")
	assert.Equal(t, "pageviews", h.Module)
	h, _ = r.Handler("report")
	assert.Equal(t, "pageviews", h.Module)
}

func TestScope_DoesNotWriteIntoCallerOptions(t *testing.T) {
	r := New()
	s := r.Scope("pageviews")
	opts := make([]Option, 1, 4)
	opts[0] = Params()

	s.Register("track", func() error { return nil }, opts...)
	require.NoError(t, s.RegisterE("report", func() error { return nil }, opts...))

	assert.Nil(t, opts[:2][1], "spare capacity of the caller's slice is untouched")
}
