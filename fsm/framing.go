package fsm

// FramingConfig wires the always-present Telnet framing protocol onto a
// Machine: IAC escaping, the WILL/WONT/DO/DONT dispatch
// scaffolding option plugins hang their own permits off of, the
// subnegotiation envelope boundary, line assembly, and the safe-
// negotiation Bad* recovery states. It lives in fsm rather than any one
// plugin because Willing/Refusing/Do/Dont/SubNegotiation are states every
// option plugin shares — ConfigureFraming and a plugin's own
// ConfigureStateMachine call Machine.Configure on the very same states
// and simply accumulate permits into the same table.
type FramingConfig struct {
	// Send writes raw bytes to the peer. Only the safe-negotiation
	// refusal path (BadWilling -> DONT, BadDo -> WONT) needs it; a nil
	// Send silently drops those refusals, which a real Builder never
	// leaves unset.
	Send func(b []byte) error
	// OnLine is called with one assembled line, without its trailing
	// newline, whenever the line buffer flushes.
	OnLine func(line []byte)
	// MaxLineBuffer caps the line-assembly buffer. 0
	// selects DefaultMaxLineBuffer.
	MaxLineBuffer int
	// OnOverflow, if set, is called once whenever accumulation would
	// exceed MaxLineBuffer, immediately before the partial line is
	// flushed early.
	OnOverflow func()
}

// DefaultMaxLineBuffer is the default line-assembly buffer cap.
const DefaultMaxLineBuffer = 5 * 1024 * 1024

// ConfigureFraming installs the framing protocol described above. It
// must run before the Machine is driven with Fire, but may run before or
// after any plugin's ConfigureStateMachine — both only ever add to the
// shared per-state tables, never replace them.
func ConfigureFraming(m *Machine, cfg FramingConfig) {
	if cfg.MaxLineBuffer <= 0 {
		cfg.MaxLineBuffer = DefaultMaxLineBuffer
	}
	line := make([]byte, 0, 256)

	flush := func() {
		if cfg.OnLine != nil {
			cfg.OnLine(append([]byte(nil), line...))
		}
		line = line[:0]
	}
	accumulate := func(b byte) {
		if len(line) >= cfg.MaxLineBuffer {
			if cfg.OnOverflow != nil {
				cfg.OnOverflow()
			}
			flush()
		}
		line = append(line, b)
	}
	send := func(b []byte) {
		if cfg.Send != nil {
			_ = cfg.Send(b)
		}
	}

	// CR is swallowed so CRLF- and bare-LF-terminated input both deliver
	// the same line bytes.
	m.Configure(Accepting).
		Permit(TriggerIAC, StartNegotiation).
		Permit(TriggerNEWLINE, Act).
		Ignore(TriggerCR).
		CatchAll(Accepting, accumulate)

	m.Configure(Act).
		TransientTo(Accepting).
		OnEntry(func(byte) { flush() })

	// A lone IAC inside StartNegotiation (IAC IAC) is the escaped-IAC
	// payload byte, not a command: store a literal 0xFF and return to
	// Accepting without consuming another byte of context.
	m.Configure(StartNegotiation).
		PermitWithAction(TriggerIAC, Accepting, func(byte) { accumulate(0xFF) }).
		Permit(TriggerWILL, Willing).
		Permit(TriggerWONT, Refusing).
		Permit(TriggerDO, Do).
		Permit(TriggerDONT, Dont).
		Permit(TriggerSB, SubNegotiation)

	// Safe-negotiation: any option code a plugin did not register a
	// specific permit for falls through to these catch-alls. WILL/DO
	// solicit a response so no option is ever left silently unanswered;
	// WONT/DONT need none for an option we never
	// offered or accepted in the first place.
	m.Configure(Willing).CatchAll(BadWilling, nil)
	m.Configure(BadWilling).
		TransientTo(Accepting).
		OnEntry(func(b byte) { send([]byte{byte(TriggerIAC), byte(TriggerDONT), b}) })

	m.Configure(Refusing).CatchAll(BadRefusing, nil)
	m.Configure(BadRefusing).TransientTo(Accepting)

	m.Configure(Do).CatchAll(BadDo, nil)
	m.Configure(BadDo).
		TransientTo(Accepting).
		OnEntry(func(b byte) { send([]byte{byte(TriggerIAC), byte(TriggerWONT), b}) })

	m.Configure(Dont).CatchAll(BadDont, nil)
	m.Configure(BadDont).TransientTo(Accepting)

	// An SB option code with no registered plugin: consume bytes
	// (honoring IAC-doubling) until IAC SE, then resync to Accepting.
	m.Configure(SubNegotiation).CatchAll(BadSubNegotiation, nil)
	m.Configure(BadSubNegotiation).
		Permit(TriggerIAC, badSubNegotiationEscaping).
		CatchAll(BadSubNegotiation, nil)
	m.Configure(badSubNegotiationEscaping).
		Permit(TriggerIAC, BadSubNegotiation).
		Permit(TriggerSE, Accepting).
		CatchAll(Accepting, nil)
}
