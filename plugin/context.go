package plugin

import (
	"log/slog"

	"github.com/smnsjas/go-negotel/fsm"
)

// Context is the narrow façade a Plugin uses to reach the owning
// interpreter. A concrete implementation is
// supplied by the interpreter package; plugin authors only ever see
// this interface, which keeps plugin/ free of any dependency on
// interpreter/ and avoids an import cycle.
type Context interface {
	// SendNegotiation writes raw bytes (already IAC-escaped by the
	// caller where needed) to the peer.
	SendNegotiation(b []byte) error

	// CurrentEncoding returns the name of the session's current charset.
	CurrentEncoding() string
	// SetEncoding switches the active charset. name must already be
	// canonicalized; plugins that accept peer-supplied names should run
	// them through internal/txt.Canonical first.
	SetEncoding(name string)

	// Mode reports whether the owning interpreter is a Server or Client.
	Mode() Mode

	// FSM exposes the shared state machine for ConfigureStateMachine to
	// extend. The plugin manager only expects it to be used during
	// ConfigureStateMachine; Configure calls made later still edit the
	// same live transition tables.
	FSM() *fsm.Machine

	// Get looks up another registered plugin by ID, for plugins that
	// cooperate directly (e.g. SendPrompt checking whether EOR and
	// SUPPRESS-GA are active).
	Get(id ID) (Plugin, bool)
	// IsEnabled reports whether the plugin with the given ID is
	// currently enabled.
	IsEnabled(id ID) bool

	// SharedSet stores a value under key in the interpreter-wide shared
	// state map, visible to every plugin.
	SharedSet(key string, val any)
	// SharedGet retrieves a value previously stored with SharedSet.
	SharedGet(key string) (any, bool)

	// Logger returns the interpreter's structured logger, already
	// enriched with session-scoped attributes.
	Logger() *slog.Logger
}

// SharedGetAs is a type-asserting convenience wrapper around
// Context.SharedGet, since Go interface methods cannot be generic. It
// returns ok=false both when the key is absent and when the stored
// value is not a T.
func SharedGetAs[T any](ctx Context, key string) (T, bool) {
	var zero T
	v, ok := ctx.SharedGet(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// GetAs is the typed counterpart of Context.Get: it looks a plugin up
// by ID and asserts it to the concrete type T, so callers that need a
// specific plugin's extra methods (beyond the Plugin interface) don't
// have to type-assert by hand.
func GetAs[T Plugin](ctx Context, id ID) (T, bool) {
	var zero T
	p, ok := ctx.Get(id)
	if !ok {
		return zero, false
	}
	t, ok := p.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
