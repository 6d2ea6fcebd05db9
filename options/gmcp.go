package options

import (
	"bytes"

	"github.com/smnsjas/go-negotel/fsm"
	"github.com/smnsjas/go-negotel/plugin"
)

// GMCPID is the GMCP plugin's registration identity.
const GMCPID plugin.ID = "gmcp"

// GMCPBufferSize caps GMCP subnegotiation accumulation.
const GMCPBufferSize = 8 * 1024

// GMCP implements the Generic MUD Communication Protocol (option 201):
// each subnegotiation carries "<package-name> <json-body>" where the
// package name is a dotted identifier like "Core.Hello".
type GMCP struct {
	neg *Negotiation
	buf *boundedBuffer

	onMessage func(pkg, body string)
}

// NewGMCP creates a GMCP plugin.
func NewGMCP() *GMCP {
	return &GMCP{neg: NewNegotiation(OptGMCP), buf: newBoundedBuffer(GMCPBufferSize)}
}

func (p *GMCP) ID() plugin.ID { return GMCPID }
func (p *GMCP) Name() string  { return "GMCP" }

// Dependencies: GMCP rides on MSDP's variable model for servers that
// bridge the two protocols, so MSDP must be registered (and stay enabled)
// alongside it.
func (p *GMCP) Dependencies() []plugin.ID { return []plugin.ID{MSDPID} }

// Active reports whether GMCP is active in either direction.
func (p *GMCP) Active() bool { return p.neg.Active() }

// OnMessage registers the callback fired for each decoded GMCP message.
func (p *GMCP) OnMessage(fn func(pkg, body string)) { p.onMessage = fn }

func (p *GMCP) ConfigureStateMachine(ctx plugin.Context) {
	WireNegotiation(ctx, GMCPID, fsm.TriggerOptGMCP, p.neg,
		func() bool { return ctx.IsEnabled(GMCPID) },
		func() bool { return ctx.IsEnabled(GMCPID) },
	)
	WireSubnegotiation(ctx, GMCPID, fsm.TriggerOptGMCP, p.buf, func(payload []byte, overflowed bool) {
		p.handlePayload(ctx, payload, overflowed)
	})
}

func (p *GMCP) handlePayload(ctx plugin.Context, payload []byte, overflowed bool) {
	if overflowed {
		ctx.Logger().Warn("gmcp: message exceeded buffer, dropped", "limit", GMCPBufferSize)
		return
	}
	if len(payload) == 0 {
		ctx.Logger().Warn("gmcp: empty message dropped")
		return
	}
	sp := bytes.IndexByte(payload, ' ')
	if sp < 0 {
		ctx.Logger().Warn("gmcp: message without package/body separator dropped")
		return
	}
	if p.onMessage != nil {
		p.onMessage(string(payload[:sp]), string(payload[sp+1:]))
	}
}

func (p *GMCP) Initialize(ctx plugin.Context) error {
	if ctx.Mode() == plugin.ModeServer {
		send(ctx, p.neg.OfferWill())
	}
	return nil
}

func (p *GMCP) OnEnabled(plugin.Context) error  { return nil }
func (p *GMCP) OnDisabled(plugin.Context) error { return nil }
func (p *GMCP) Dispose(plugin.Context) error    { return nil }

// Send frames and writes one GMCP message: IAC SB GMCP <pkg> ' ' <json>
// IAC SE, with any 0xFF in the body IAC-doubled.
func (p *GMCP) Send(ctx plugin.Context, pkg, body string) error {
	payload := make([]byte, 0, len(pkg)+1+len(body))
	payload = append(payload, pkg...)
	payload = append(payload, ' ')
	payload = append(payload, body...)
	return ctx.SendNegotiation(envelope(OptGMCP, payload))
}
