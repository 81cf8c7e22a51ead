package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/simple-analytics/pkg/core"
)

// testModule registers one no-op handler per entry in handlers.
type testModule struct {
	name       string
	handlers   []string
	submodules []Module
	calls      int
}

func (m *testModule) Name() string { return m.name }

func (m *testModule) Register(s *Scope) {
	m.calls++
	for _, h := range m.handlers {
		s.Register(h, func() error { return nil })
	}
}

type parentModule struct {
	testModule
}

func (m *parentModule) Submodules() []Module { return m.submodules }

func TestLoad_RegistersInstalledModules(t *testing.T) {
	r := New()
	pageviews := &testModule{name: "pageviews", handlers: []string{"track"}}
	video := &testModule{name: "video", handlers: []string{"play"}}
	unused := &testModule{name: "unused", handlers: []string{"nope"}}

	loaded, err := Load(r, []string{"video", "pageviews"}, []Module{pageviews, video, unused})

	require.NoError(t, err)
	assert.Equal(t, []string{"video", "pageviews"}, loaded)
	assert.Equal(t, []string{"video", "pageviews"}, r.Modules())
	assert.Equal(t, []string{"play", "track"}, r.Names())
	assert.Equal(t, 0, unused.calls)

	h, _ := r.Handler("track")
	assert.Equal(t, "pageviews", h.Module)
}

func TestLoad_QualifiesSubmodules(t *testing.T) {
	r := New()
	reports := &testModule{name: "reports", handlers: []string{"daily-report"}}
	live := &testModule{name: "live", handlers: []string{"live-count"}}
	pageviews := &parentModule{testModule{
		name:       "pageviews",
		handlers:   []string{"track"},
		submodules: []Module{reports, live},
	}}

	loaded, err := Load(r, []string{"pageviews"}, []Module{pageviews})

	require.NoError(t, err)
	assert.Equal(t, []string{"pageviews", "pageviews.reports", "pageviews.live"}, loaded)

	h, _ := r.Handler("daily-report")
	assert.Equal(t, "pageviews.reports", h.Module)
	h, _ = r.Handler("live-count")
	assert.Equal(t, "pageviews.live", h.Module)
	h, _ = r.Handler("track")
	assert.Equal(t, "pageviews", h.Module)
}

func TestLoad_UnknownModule(t *testing.T) {
	r := New()

	_, err := Load(r, []string{"missing"}, []Module{&testModule{name: "pageviews"}})

	assert.ErrorIs(t, err, core.ErrUnknownModule)
	assert.Contains(t, err.Error(), "missing")
}

func TestLoad_InvalidModuleName(t *testing.T) {
	r := New()

	_, err := Load(r, []string{"bad/name"}, nil)

	assert.ErrorIs(t, err, core.ErrInvalidModuleName)
}

func TestLoad_ModuleListedTwice(t *testing.T) {
	r := New()
	m := &testModule{name: "pageviews"}

	loaded, err := Load(r, []string{"pageviews", "pageviews"}, []Module{m})

	assert.ErrorIs(t, err, core.ErrModuleAlreadyLoaded)
	assert.Equal(t, []string{"pageviews"}, loaded)
	assert.Equal(t, 1, m.calls)
}

func TestLoad_DuplicateCatalogEntry(t *testing.T) {
	r := New()

	_, err := Load(r, nil, []Module{&testModule{name: "a"}, &testModule{name: "a"}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "twice")
}

func TestLoad_RegistrationPanicBecomesError(t *testing.T) {
	r := New()
	a := &testModule{name: "a", handlers: []string{"shared"}}
	b := &testModule{name: "b", handlers: []string{"shared"}}

	_, err := Load(r, []string{"a", "b"}, []Module{a, b})

	assert.ErrorIs(t, err, core.ErrDuplicateHandler)
	assert.Contains(t, err.Error(), `module "b"`)
}

func TestLoad_FailedModuleIsRolledBack(t *testing.T) {
	r := New()
	a := &testModule{name: "a", handlers: []string{"shared"}}
	b := &testModule{name: "b", handlers: []string{"own", "shared"}}

	loaded, err := Load(r, []string{"a", "b"}, []Module{a, b})

	require.ErrorIs(t, err, core.ErrDuplicateHandler)
	assert.Equal(t, []string{"a"}, loaded)
	assert.Equal(t, []string{"a"}, r.Modules())
	assert.False(t, r.HasHandler("own"), "handlers registered before the failure are removed")
	h, ok := r.Handler("shared")
	require.True(t, ok)
	assert.Equal(t, "a", h.Module)

	fixed := &testModule{name: "b", handlers: []string{"own"}}
	loaded, err = Load(r, []string{"b"}, []Module{fixed})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, loaded)
	assert.True(t, r.HasHandler("own"))
}

func TestLoad_EmptyConfiguration(t *testing.T) {
	r := New()

	loaded, err := Load(r, nil, []Module{&testModule{name: "pageviews"}})

	require.NoError(t, err)
	assert.Empty(t, loaded)
	assert.Empty(t, r.Names())
}
