package fsm

// State names a node in the machine. States are plain strings rather
// than a single closed enum because plugins contribute their own
// per-option states at configuration time; a fixed enum can't be
// extended by a plugin
// package without an import cycle.
type State string

// Core framing states, always present regardless of which option
// plugins are installed.
const (
	// Accepting is the initial, absorbing super-state: non-framing
	// bytes are treated as payload. A separate "Data" state would be
	// behaviorally identical ("ordinary byte stream, no pending
	// negotiation"), so Accepting plays both roles.
	Accepting State = "Accepting"

	StartNegotiation State = "StartNegotiation"
	Willing          State = "Willing"
	Refusing         State = "Refusing"
	Do               State = "Do"
	Dont             State = "Dont"
	SubNegotiation   State = "SubNegotiation"

	// Act is transient: entering it flushes the line buffer, then the
	// machine settles back to Accepting without consuming another byte.
	Act State = "Act"

	// BadWilling/BadRefusing/BadDo/BadDont are the safe-negotiation
	// recovery states entered for an option code that no plugin has
	// wired into the machine. BadWilling answers DONT and BadDo answers
	// WONT; BadRefusing and BadDont send nothing. All four settle back
	// to Accepting.
	BadWilling  State = "BadWilling"
	BadRefusing State = "BadRefusing"
	BadDo       State = "BadDo"
	BadDont     State = "BadDont"

	// BadSubNegotiation consumes bytes (honoring IAC-doubling) until the
	// next IAC SE, then settles back to Accepting. It is the landing
	// state for any SB option code with no registered plugin.
	BadSubNegotiation State = "BadSubNegotiation"
	// badSubNegotiationEscaping is BadSubNegotiation's internal
	// "just saw IAC" sibling, mirroring Escaping<Opt>Value below.
	badSubNegotiationEscaping State = "badSubNegotiationEscaping"
)

// permit describes one configured transition out of a state.
type permit struct {
	dest   State
	guard  func() bool
	action func(b byte)
	reentr bool // PermitReentry: dest==self; Fire skips OnExit for it
}

// StateConfig is the fluent builder returned by Machine.Configure. All
// methods return the receiver so calls can be chained.
type StateConfig struct {
	m     *Machine
	state State

	permits   map[Trigger]*permit
	ignore    map[Trigger]bool
	catchAll  *permit
	parent    *State
	onEntry   []func(b byte)
	onExit    []func(b byte)
	transient *State // if set, settle here immediately after OnEntry runs
}

// Permit configures an unconditional transition from this state to dest
// when trigger fires.
func (c *StateConfig) Permit(trigger Trigger, dest State) *StateConfig {
	return c.PermitIf(trigger, dest, nil, nil)
}

// PermitWithAction configures a transition that also runs action with
// the triggering byte (used for subnegotiation byte accumulation).
func (c *StateConfig) PermitWithAction(trigger Trigger, dest State, action func(b byte)) *StateConfig {
	return c.PermitIf(trigger, dest, nil, action)
}

// PermitIf configures a conditional transition: the transition is only
// taken if guard returns true (or guard is nil).
func (c *StateConfig) PermitIf(trigger Trigger, dest State, guard func() bool, action func(b byte)) *StateConfig {
	c.permits[trigger] = &permit{dest: dest, guard: guard, action: action}
	return c
}

// PermitReentry configures a self-transition: OnEntry fires again for
// this state, OnExit does not, and the machine never leaves it.
func (c *StateConfig) PermitReentry(trigger Trigger, action func(b byte)) *StateConfig {
	c.permits[trigger] = &permit{dest: c.state, action: action, reentr: true}
	return c
}

// Ignore configures trigger to be a no-op in this state: no transition,
// no action, and critically no fall-through to the unhandled-trigger
// hook (so Error never fires for an intentionally-ignored trigger).
func (c *StateConfig) Ignore(trigger Trigger) *StateConfig {
	c.ignore[trigger] = true
	return c
}

// CatchAll configures the wildcard fallback used when no more specific
// permit matches: the "any other byte" transitions (Accepting's
// ReadNextCharacter, an Evaluating<Opt>Value state's raw payload byte,
// BadSubNegotiation's "consume bytes until IAC SE"). Calling CatchAll
// more than once on the same state composes rather than replaces: each
// action runs in registration order before the (shared) transition to
// dest, which is how an option plugin like ECHO layers its own
// byte-level hook (e.g. auto-echoing) on top of the framing protocol's
// own line-accumulation catch-all without either one clobbering the
// other.
func (c *StateConfig) CatchAll(dest State, action func(b byte)) *StateConfig {
	if c.catchAll == nil {
		c.catchAll = &permit{dest: dest, action: action}
		return c
	}
	prev := c.catchAll.action
	c.catchAll.dest = dest
	c.catchAll.action = func(b byte) {
		if prev != nil {
			prev(b)
		}
		if action != nil {
			action(b)
		}
	}
	return c
}

// SubstateOf marks this state as inheriting parent's permits: a trigger
// not found in this state's own table is looked up in parent's, and so
// on up the chain. This is how "a state is accepting iff it is or
// inherits from Accepting" is realized generically.
func (c *StateConfig) SubstateOf(parent State) *StateConfig {
	p := parent
	c.parent = &p
	return c
}

// OnEntry registers a callback run whenever the machine transitions into
// this state (including via PermitReentry).
func (c *StateConfig) OnEntry(fn func(b byte)) *StateConfig {
	c.onEntry = append(c.onEntry, fn)
	return c
}

// OnExit registers a callback run whenever the machine transitions out
// of this state.
func (c *StateConfig) OnExit(fn func(b byte)) *StateConfig {
	c.onExit = append(c.onExit, fn)
	return c
}

// TransientTo marks this state as transient: the instant it is entered
// (after OnEntry callbacks run), the machine settles into dest without
// consuming another input byte. Used for Act, Completing<Opt>, and the
// Bad* recovery states, all of which do their work purely in OnEntry.
func (c *StateConfig) TransientTo(dest State) *StateConfig {
	d := dest
	c.transient = &d
	return c
}
