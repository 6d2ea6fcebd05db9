package plugin

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smnsjas/go-negotel/fsm"
)

// stubPlugin is a minimal Plugin used to exercise Manager without
// pulling in any real option package.
type stubPlugin struct {
	id   ID
	deps []ID

	configureCalls []string
	initErr        error
	enableErr      error
	disableErr     error
	disposeErr     error

	log *[]string
}

func (p *stubPlugin) ID() ID             { return p.id }
func (p *stubPlugin) Name() string       { return string(p.id) }
func (p *stubPlugin) Dependencies() []ID { return p.deps }

func (p *stubPlugin) ConfigureStateMachine(Context) { p.record("configure") }
func (p *stubPlugin) Initialize(Context) error {
	p.record("initialize")
	return p.initErr
}
func (p *stubPlugin) OnEnabled(Context) error {
	p.record("enable")
	return p.enableErr
}
func (p *stubPlugin) OnDisabled(Context) error {
	p.record("disable")
	return p.disableErr
}
func (p *stubPlugin) Dispose(Context) error {
	p.record("dispose")
	return p.disposeErr
}

func (p *stubPlugin) record(event string) {
	if p.log != nil {
		*p.log = append(*p.log, string(p.id)+":"+event)
	}
}

// stubContext is a minimal Context for manager tests.
type stubContext struct{ m *fsm.Machine }

func (c *stubContext) SendNegotiation([]byte) error { return nil }
func (c *stubContext) CurrentEncoding() string      { return "US-ASCII" }
func (c *stubContext) SetEncoding(string)           {}
func (c *stubContext) Mode() Mode                   { return ModeServer }
func (c *stubContext) FSM() *fsm.Machine            { return c.m }
func (c *stubContext) Get(ID) (Plugin, bool)        { return nil, false }
func (c *stubContext) IsEnabled(ID) bool            { return false }
func (c *stubContext) SharedSet(string, any)        {}
func (c *stubContext) SharedGet(string) (any, bool) { return nil, false }
func (c *stubContext) Logger() *slog.Logger         { return slog.Default() }

func newStubContext() Context {
	m := fsm.NewMachine(fsm.Accepting)
	_ = m.Build()
	return &stubContext{m: m}
}

func TestManager_BuildOrdersByDependency(t *testing.T) {
	var log []string
	m := NewManager()

	gmcp := &stubPlugin{id: "gmcp", deps: []ID{"mnes"}, log: &log}
	mnes := &stubPlugin{id: "mnes", log: &log}

	require.NoError(t, m.Register(gmcp))
	require.NoError(t, m.Register(mnes))

	require.NoError(t, m.Build(newStubContext()))

	assert.Equal(t, []string{
		"mnes:configure", "gmcp:configure",
		"mnes:initialize", "gmcp:initialize",
		"mnes:enable", "gmcp:enable",
	}, log)
}

func TestManager_RegisterAfterBuildFails(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Build(newStubContext()))

	err := m.Register(&stubPlugin{id: "late"})
	assert.ErrorIs(t, err, ErrAfterBuild)
}

func TestManager_DuplicateRegisterFails(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register(&stubPlugin{id: "x"}))
	err := m.Register(&stubPlugin{id: "x"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestManager_BuildFailsOnMissingDependency(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register(&stubPlugin{id: "gmcp", deps: []ID{"mnes"}}))

	err := m.Build(newStubContext())
	var depErr *DependencyError
	require.True(t, errors.As(err, &depErr))
	assert.Contains(t, depErr.Missing, ID("gmcp"))
}

func TestManager_BuildFailsOnCycle(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register(&stubPlugin{id: "a", deps: []ID{"b"}}))
	require.NoError(t, m.Register(&stubPlugin{id: "b", deps: []ID{"a"}}))

	err := m.Build(newStubContext())
	var depErr *DependencyError
	require.True(t, errors.As(err, &depErr))
	assert.ElementsMatch(t, []ID{"a", "b"}, depErr.Cycle)
}

func TestManager_DisableFailsWhenEnabledDependentExists(t *testing.T) {
	m := NewManager()
	msdp := &stubPlugin{id: "msdp"}
	gmcp := &stubPlugin{id: "gmcp", deps: []ID{"msdp"}}
	require.NoError(t, m.Register(msdp))
	require.NoError(t, m.Register(gmcp))
	require.NoError(t, m.Build(newStubContext()))

	err := m.Disable(newStubContext(), "msdp")
	var hdErr *HasDependentsError
	require.True(t, errors.As(err, &hdErr))
	assert.Equal(t, []ID{"gmcp"}, hdErr.Dependents)
}

func TestManager_DisableThenEnableRoundTrip(t *testing.T) {
	m := NewManager()
	solo := &stubPlugin{id: "solo"}
	require.NoError(t, m.Register(solo))
	ctx := newStubContext()
	require.NoError(t, m.Build(ctx))

	require.True(t, m.IsEnabled("solo"))
	require.NoError(t, m.Disable(ctx, "solo"))
	assert.False(t, m.IsEnabled("solo"))
	require.NoError(t, m.Enable(ctx, "solo"))
	assert.True(t, m.IsEnabled("solo"))
}

func TestManager_EnableUnknownIDFails(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Build(newStubContext()))
	err := m.Enable(newStubContext(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_DisposeRunsInReverseDependencyOrder(t *testing.T) {
	var log []string
	m := NewManager()
	mnes := &stubPlugin{id: "mnes", log: &log}
	gmcp := &stubPlugin{id: "gmcp", deps: []ID{"mnes"}, log: &log}
	require.NoError(t, m.Register(gmcp))
	require.NoError(t, m.Register(mnes))
	ctx := newStubContext()
	require.NoError(t, m.Build(ctx))
	log = nil

	require.NoError(t, m.Dispose(ctx))
	assert.Equal(t, []string{"gmcp:dispose", "mnes:dispose"}, log)
}
