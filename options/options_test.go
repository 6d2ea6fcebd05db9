package options

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smnsjas/go-negotel/fsm"
	"github.com/smnsjas/go-negotel/plugin"
)

// testContext implements plugin.Context over a real Machine with the
// framing protocol installed, so option tests drive literal wire bytes
// end to end without the interpreter package.
type testContext struct {
	t *testing.T
	m *fsm.Machine

	mode     plugin.Mode
	sent     []byte
	lines    [][]byte
	encoding string
	shared   map[string]any
	plugins  map[plugin.ID]plugin.Plugin
	enabled  map[plugin.ID]bool
}

func newTestContext(t *testing.T, mode plugin.Mode, plugins ...plugin.Plugin) *testContext {
	t.Helper()
	c := &testContext{
		t:        t,
		m:        fsm.NewMachine(fsm.Accepting),
		mode:     mode,
		encoding: "iso-8859-1",
		shared:   make(map[string]any),
		plugins:  make(map[plugin.ID]plugin.Plugin),
		enabled:  make(map[plugin.ID]bool),
	}
	fsm.ConfigureFraming(c.m, fsm.FramingConfig{
		Send:   func(b []byte) error { c.sent = append(c.sent, b...); return nil },
		OnLine: func(line []byte) { c.lines = append(c.lines, line) },
	})
	for _, p := range plugins {
		c.plugins[p.ID()] = p
		c.enabled[p.ID()] = true
	}
	for _, p := range plugins {
		p.ConfigureStateMachine(c)
	}
	for _, p := range plugins {
		require.NoError(t, p.Initialize(c))
	}
	require.NoError(t, c.m.Build())
	return c
}

func (c *testContext) SendNegotiation(b []byte) error {
	c.sent = append(c.sent, b...)
	return nil
}

func (c *testContext) CurrentEncoding() string { return c.encoding }
func (c *testContext) SetEncoding(name string) { c.encoding = name }
func (c *testContext) Mode() plugin.Mode       { return c.mode }
func (c *testContext) FSM() *fsm.Machine       { return c.m }

func (c *testContext) Get(id plugin.ID) (plugin.Plugin, bool) {
	p, ok := c.plugins[id]
	return p, ok
}

func (c *testContext) IsEnabled(id plugin.ID) bool { return c.enabled[id] }

func (c *testContext) SharedSet(key string, val any) { c.shared[key] = val }
func (c *testContext) SharedGet(key string) (any, bool) {
	v, ok := c.shared[key]
	return v, ok
}

func (c *testContext) Logger() *slog.Logger { return slog.New(slog.DiscardHandler) }

// feed drives the machine with wire bytes the way the pipeline consumer
// does.
func (c *testContext) feed(bytes ...byte) {
	c.t.Helper()
	for _, b := range bytes {
		require.NoError(c.t, c.m.Fire(fsm.Trigger(b), b))
	}
}

// takeSent returns and clears the outbound capture, so a test can
// discard initial offers before asserting on the bytes a stimulus
// produced.
func (c *testContext) takeSent() []byte {
	out := c.sent
	c.sent = nil
	return out
}
