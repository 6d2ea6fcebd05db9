// Package plugin implements the plugin lifecycle system: registration,
// dependency-ordered initialization, runtime
// enable/disable under dependency constraints, and the narrow façade
// each option plugin uses to talk back to the interpreter.
package plugin

// ID uniquely identifies a plugin's type across one Manager instance.
// Option plugins
// use a short, stable string such as "gmcp" or "naws".
type ID string

// Mode selects whether the owning interpreter initiates option offers
// (Server) or mostly responds to them (Client).
type Mode int

const (
	// ModeServer initiates offers: it sends WILL for options it
	// supports and DO for options it wants the peer to enable.
	ModeServer Mode = iota
	// ModeClient mostly responds to offers from the peer; the NAWS,
	// NEW-ENVIRON and CHARSET plugins still send their own initial WILL.
	ModeClient
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	if m == ModeServer {
		return "Server"
	}
	return "Client"
}

// Plugin is the contract every Telnet option plugin (or any FSM
// extension) implements. A Plugin is registered once, configured and
// initialized once (in dependency order, after Manager.Build), then may
// be enabled and disabled any number of times, and is finally disposed
// once.
type Plugin interface {
	// ID returns this plugin's unique type identity.
	ID() ID
	// Name returns a human-readable display name for logs and errors.
	Name() string
	// Dependencies lists the IDs of plugins this plugin requires to be
	// registered (and, once enabled, to remain enabled alongside it).
	Dependencies() []ID

	// ConfigureStateMachine extends the shared FSM with this plugin's
	// states and transitions. Called once, in dependency order, before
	// Initialize. ctx.FSM() is only meaningful during this call.
	ConfigureStateMachine(ctx Context)
	// Initialize runs once, in dependency order, after every plugin's
	// ConfigureStateMachine has run. This is where a plugin sends its
	// initial offer.
	Initialize(ctx Context) error
	// OnEnabled runs whenever the plugin transitions from disabled to
	// enabled, including the initial enable Manager.Build performs by
	// default for every successfully initialized plugin.
	OnEnabled(ctx Context) error
	// OnDisabled runs whenever the plugin transitions from enabled to
	// disabled.
	OnDisabled(ctx Context) error
	// Dispose runs once, in reverse dependency order, when the owning
	// Manager is disposed.
	Dispose(ctx Context) error
}
