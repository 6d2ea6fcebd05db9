package fsm

import "fmt"

// maxSettleHops bounds the internal transient-state chain so a
// misconfigured plugin (one whose TransientTo chain never reaches a
// stable state) fails loudly instead of recursing forever.
const maxSettleHops = 32

// TransitionEvent describes one completed transition, passed to any
// OnTransition observer for trace-level logging.
type TransitionEvent struct {
	From    State
	To      State
	Trigger Trigger
	Byte    byte
}

// Machine is the deterministic state machine driving Telnet decoding.
// It is configured once (via Configure, before Build) and then driven one
// byte at a time via Fire. It is not safe for concurrent use; exactly one
// goroutine (the pipeline's consumer) drives it.
type Machine struct {
	states  map[State]*StateConfig
	current State
	built   bool

	onTransition func(TransitionEvent)
	onUnhandled  func(state State, trigger Trigger, b byte)
}

// NewMachine creates a machine with the given initial state. Callers
// normally pass fsm.Accepting.
func NewMachine(initial State) *Machine {
	m := &Machine{
		states:  make(map[State]*StateConfig),
		current: initial,
	}
	return m
}

// Configure returns the StateConfig for state, creating it on first use.
// Calling Configure again for the same state returns the same builder, so
// multiple plugins (or the framing protocol and a plugin) can each add
// permits to a shared state like SubNegotiation.
func (m *Machine) Configure(state State) *StateConfig {
	if c, ok := m.states[state]; ok {
		return c
	}
	c := &StateConfig{
		m:       m,
		state:   state,
		permits: make(map[Trigger]*permit),
		ignore:  make(map[Trigger]bool),
	}
	m.states[state] = c
	return c
}

// OnTransition registers an observer called after every completed
// transition, including internal settle hops.
func (m *Machine) OnTransition(fn func(TransitionEvent)) {
	m.onTransition = fn
}

// OnUnhandledTrigger registers the safe-negotiation last-resort hook.
// If unset, Fire's default behavior is to force a
// transition to Accepting, matching the Error trigger's sole effect.
func (m *Machine) OnUnhandledTrigger(fn func(state State, trigger Trigger, b byte)) {
	m.onUnhandled = fn
}

// Build finalizes configuration. After Build, Configure may still be
// called defensively but no further plugin wiring is expected; Build's
// main job is to guarantee Accepting exists so Fire always has a floor
// to recover to.
func (m *Machine) Build() error {
	if _, ok := m.states[Accepting]; !ok {
		m.Configure(Accepting)
	}
	m.built = true
	return nil
}

// Current returns the machine's current state.
func (m *Machine) Current() State {
	return m.current
}

// IsAccepting reports whether the current state is Accepting or a state
// that declares Accepting (directly or transitively) as its parent via
// SubstateOf.
func (m *Machine) IsAccepting() bool {
	return m.inherits(m.current, Accepting)
}

func (m *Machine) inherits(s State, ancestor State) bool {
	for {
		if s == ancestor {
			return true
		}
		cfg, ok := m.states[s]
		if !ok || cfg.parent == nil {
			return false
		}
		s = *cfg.parent
	}
}

// Fire drives the machine with one trigger/byte pair. Byte carries the
// raw wire byte (used by accumulation actions); for sentinel triggers
// that weren't produced by a real byte, pass 0.
func (m *Machine) Fire(trigger Trigger, b byte) error {
	return m.fireHops(trigger, b, 0)
}

func (m *Machine) fireHops(trigger Trigger, b byte, hop int) error {
	if hop > maxSettleHops {
		return fmt.Errorf("fsm: exceeded %d internal settle hops from state %s; likely a TransientTo cycle", maxSettleHops, m.current)
	}

	// Error is universally permitted: its sole effect is a
	// transition to Accepting. It is checked before resolution so no
	// state's catch-all can swallow it, and it bypasses the unhandled
	// hook so the hook itself can fire Error without recursing.
	if trigger == TriggerError {
		m.current = Accepting
		return nil
	}

	from := m.current
	cfg, ok := m.states[from]
	if !ok {
		cfg = m.Configure(from)
	}

	// Ignore wins over everything, including the state's catch-all:
	// an intentionally-dropped trigger must not be accumulated as
	// payload nor reach the unhandled hook.
	if cfg.ignore[trigger] {
		return nil
	}

	p, matchedTrigger := m.resolve(cfg, trigger)
	if p == nil {
		return m.unhandled(from, trigger, b)
	}

	if p.guard != nil && !p.guard() {
		return m.unhandled(from, trigger, b)
	}

	// Exit callbacks only run on a real state change, not PermitReentry.
	if !p.reentr {
		for _, fn := range cfg.onExit {
			fn(b)
		}
	}

	m.current = p.dest
	if p.action != nil {
		p.action(b)
	}

	destCfg := m.states[p.dest]
	if destCfg != nil {
		for _, fn := range destCfg.onEntry {
			fn(b)
		}
	}

	if m.onTransition != nil {
		m.onTransition(TransitionEvent{From: from, To: p.dest, Trigger: matchedTrigger, Byte: b})
	}

	if destCfg != nil && destCfg.transient != nil {
		return m.settle(b, hop+1)
	}
	return nil
}

// settle walks the TransientTo chain from the current state: each hop
// runs OnExit, moves, runs OnEntry, and reports to the transition
// observer under the internal settle trigger. The hop counter carries
// over from the Fire that started the chain, so a TransientTo cycle
// trips the maxSettleHops guard instead of looping forever.
func (m *Machine) settle(b byte, hop int) error {
	for {
		if hop > maxSettleHops {
			return fmt.Errorf("fsm: exceeded %d internal settle hops from state %s; likely a TransientTo cycle", maxSettleHops, m.current)
		}
		cfg, ok := m.states[m.current]
		if !ok || cfg.transient == nil {
			return nil
		}
		from := m.current
		dest := *cfg.transient
		for _, fn := range cfg.onExit {
			fn(b)
		}
		m.current = dest
		if destCfg, ok := m.states[dest]; ok {
			for _, fn := range destCfg.onEntry {
				fn(b)
			}
		}
		if m.onTransition != nil {
			m.onTransition(TransitionEvent{From: from, To: dest, Trigger: triggerSettle, Byte: b})
		}
		hop++
	}
}

// resolve finds the permit for trigger in state (or its catch-all), and
// failing that walks the SubstateOf chain. It returns the matched
// trigger too, since a catch-all match logically corresponds to
// TriggerReadNextCharacter-style "any byte" semantics for tracing.
func (m *Machine) resolve(cfg *StateConfig, trigger Trigger) (*permit, Trigger) {
	for c := cfg; c != nil; {
		if p, ok := c.permits[trigger]; ok {
			return p, trigger
		}
		if c.parent != nil {
			parentCfg, ok := m.states[*c.parent]
			if !ok {
				break
			}
			c = parentCfg
			continue
		}
		break
	}
	// Catch-all only applies at the originating state, not inherited
	// ancestors, since a substate's "any other byte" meaning is always
	// local to what it's accumulating.
	if cfg.catchAll != nil {
		return cfg.catchAll, triggerAny
	}
	return nil, trigger
}

func (m *Machine) unhandled(state State, trigger Trigger, b byte) error {
	if m.onUnhandled != nil {
		m.onUnhandled(state, trigger, b)
		return nil
	}
	m.current = Accepting
	return nil
}
