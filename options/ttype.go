package options

import (
	"strconv"
	"strings"

	"github.com/smnsjas/go-negotel/fsm"
	"github.com/smnsjas/go-negotel/plugin"
)

// TTYPEID is the TTYPE/MTTS plugin's registration identity.
const TTYPEID plugin.ID = "ttype"

// TTYPE subnegotiation markers (RFC 1091).
const (
	ttypeIS   byte = 0
	ttypeSEND byte = 1
)

// MTTS capability bits, reported by a client as the
// numeric bitfield in its "MTTS <n>" terminal-type responses.
const (
	MTTSAnsi         = 1
	MTTSVT100        = 2
	MTTSUTF8         = 4
	MTTS256Colors    = 8
	MTTSMouse        = 16
	MTTSOSCColor     = 32
	MTTSScreenReader = 64
	MTTSProxy        = 128
	MTTSTruecolor    = 256
	MTTSMNES         = 512
)

// MTTSFlag names one capability bit, for log output and for hosts that
// want to render a decoded bitfield. The table is static rather than
// derived, the same shape as StandardMSSPVariables.
type MTTSFlag struct {
	Name string
	Bit  int
}

// MTTSFlags lists every defined MTTS capability bit.
var MTTSFlags = []MTTSFlag{
	{"ANSI", MTTSAnsi},
	{"VT100", MTTSVT100},
	{"UTF-8", MTTSUTF8},
	{"256 COLORS", MTTS256Colors},
	{"MOUSE TRACKING", MTTSMouse},
	{"OSC COLOR PALETTE", MTTSOSCColor},
	{"SCREEN READER", MTTSScreenReader},
	{"PROXY", MTTSProxy},
	{"TRUECOLOR", MTTSTruecolor},
	{"MNES", MTTSMNES},
}

// maxTerminalNameLen bounds each accumulated terminal-type name.
const maxTerminalNameLen = 256

// TTYPEOptions configures the TTYPE/MTTS plugin.
type TTYPEOptions struct {
	// TerminalTypes is the client-side response cycle, most specific
	// first (conventionally client name, then terminal emulation).
	// After these are exhausted the client answers "MTTS <bitfield>" on
	// every further SEND, whose repetition ends the server's cycle.
	TerminalTypes []string
	// MTTS is the capability bitfield reported after TerminalTypes.
	// MTTSMNES is OR-ed in automatically while NEW-ENVIRON is active.
	MTTS int
}

// DefaultTTYPEOptions reports a bare ANSI terminal.
func DefaultTTYPEOptions() TTYPEOptions {
	return TTYPEOptions{TerminalTypes: []string{"ANSI"}, MTTS: MTTSAnsi}
}

// TTYPE implements terminal-type negotiation (RFC 1091) with the MTTS
// extension: the server repeats SEND and collects IS replies until a
// name repeats, the client walks its TerminalTypes cycle and then
// reports its MTTS bitfield.
type TTYPE struct {
	opts TTYPEOptions
	neg  *Negotiation
	buf  *boundedBuffer

	// server side: names collected so far this cycle, in reply order.
	collected []string
	cycleDone bool
	onTypes   func(names []string, mtts int)

	// client side: position in the TerminalTypes reply cycle.
	replyIndex int
}

// NewTTYPE creates a TTYPE plugin.
func NewTTYPE(opts TTYPEOptions) *TTYPE {
	if len(opts.TerminalTypes) == 0 {
		opts.TerminalTypes = DefaultTTYPEOptions().TerminalTypes
	}
	return &TTYPE{opts: opts, neg: NewNegotiation(OptTTYPE), buf: newBoundedBuffer(maxTerminalNameLen + 1)}
}

func (p *TTYPE) ID() plugin.ID             { return TTYPEID }
func (p *TTYPE) Name() string              { return "TTYPE" }
func (p *TTYPE) Dependencies() []plugin.ID { return nil }

// TerminalTypes returns the names collected from the peer so far, in
// the order they were reported.
func (p *TTYPE) TerminalTypes() []string {
	return append([]string(nil), p.collected...)
}

// OnTerminalTypes registers a server-side callback fired once per cycle,
// when the peer's first repeated name ends it. mtts is the decoded
// bitfield from the peer's last "MTTS <n>" reply, or 0 if it never sent
// one.
func (p *TTYPE) OnTerminalTypes(fn func(names []string, mtts int)) { p.onTypes = fn }

func (p *TTYPE) ConfigureStateMachine(ctx plugin.Context) {
	WireNegotiation(ctx, TTYPEID, fsm.TriggerOptTTYPE, p.neg,
		func() bool { return ctx.IsEnabled(TTYPEID) },
		func() bool { return ctx.IsEnabled(TTYPEID) },
	)

	// The server opens the cycle the moment the peer's WILL lands.
	ctx.FSM().Configure(fsm.State("Willing/" + string(TTYPEID))).OnEntry(func(byte) {
		if ctx.Mode() == plugin.ModeServer && p.neg.ActiveDoWill() {
			p.collected = nil
			p.cycleDone = false
			p.sendRequest(ctx)
		}
	})

	WireSubnegotiation(ctx, TTYPEID, fsm.TriggerOptTTYPE, p.buf, func(payload []byte, overflowed bool) {
		p.handlePayload(ctx, payload, overflowed)
	})
}

func (p *TTYPE) handlePayload(ctx plugin.Context, payload []byte, overflowed bool) {
	if overflowed {
		ctx.Logger().Warn("ttype: oversize terminal-type payload dropped")
		return
	}
	if len(payload) == 0 {
		return
	}
	switch payload[0] {
	case ttypeSEND:
		p.sendReply(ctx)
	case ttypeIS:
		p.handleIs(ctx, string(payload[1:]))
	default:
		ctx.Logger().Warn("ttype: unknown subnegotiation marker", "marker", payload[0])
	}
}

// handleIs records one reported name; the first case-insensitive repeat
// ends the cycle (the MTTS cycle-detection rule).
func (p *TTYPE) handleIs(ctx plugin.Context, name string) {
	if p.cycleDone {
		return
	}
	for _, seen := range p.collected {
		if strings.EqualFold(seen, name) {
			p.cycleDone = true
			if p.onTypes != nil {
				p.onTypes(p.TerminalTypes(), p.collectedMTTS())
			}
			return
		}
	}
	p.collected = append(p.collected, name)
	p.sendRequest(ctx)
}

// collectedMTTS decodes the bitfield from the last "MTTS <n>" name the
// peer reported, if any.
func (p *TTYPE) collectedMTTS() int {
	for i := len(p.collected) - 1; i >= 0; i-- {
		rest, ok := strings.CutPrefix(p.collected[i], "MTTS ")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil {
			continue
		}
		return n
	}
	return 0
}

func (p *TTYPE) sendRequest(ctx plugin.Context) {
	send(ctx, envelope(OptTTYPE, []byte{ttypeSEND}))
}

// sendReply answers one SEND: the next name in the cycle, then the MTTS
// bitfield for every SEND thereafter.
func (p *TTYPE) sendReply(ctx plugin.Context) {
	var name string
	if p.replyIndex < len(p.opts.TerminalTypes) {
		name = p.opts.TerminalTypes[p.replyIndex]
		p.replyIndex++
	} else {
		name = "MTTS " + strconv.Itoa(p.effectiveMTTS(ctx))
	}
	send(ctx, envelope(OptTTYPE, append([]byte{ttypeIS}, name...)))
}

// effectiveMTTS is the configured bitfield with MNES OR-ed in while
// NEW-ENVIRON is active. The coupling goes through the shared-state map
// rather than a plugin dependency, so TTYPE works with or without
// NEW-ENVIRON registered.
func (p *TTYPE) effectiveMTTS(ctx plugin.Context) int {
	bits := p.opts.MTTS
	if active, ok := plugin.SharedGetAs[bool](ctx, SharedKeyNewEnvironActive); ok && active {
		bits |= MTTSMNES
	}
	return bits
}

func (p *TTYPE) Initialize(ctx plugin.Context) error {
	if ctx.Mode() == plugin.ModeServer {
		send(ctx, p.neg.OfferDo())
	}
	return nil
}

func (p *TTYPE) OnEnabled(plugin.Context) error { return nil }

func (p *TTYPE) OnDisabled(plugin.Context) error {
	p.collected = nil
	p.cycleDone = false
	p.replyIndex = 0
	return nil
}

func (p *TTYPE) Dispose(plugin.Context) error { return nil }
