package options

import (
	"github.com/smnsjas/go-negotel/fsm"
	"github.com/smnsjas/go-negotel/plugin"
)

// NAWSID is the NAWS plugin's registration identity.
const NAWSID plugin.ID = "naws"

// Default NAWS dimensions before any size has been
// reported.
const (
	DefaultNAWSWidth  = 78
	DefaultNAWSHeight = 24
)

// SharedKeyNAWSWidth and SharedKeyNAWSHeight are the SharedStateMap keys
// NAWS publishes its last known size under.
const (
	SharedKeyNAWSWidth  = "naws.width"
	SharedKeyNAWSHeight = "naws.height"
)

// NAWS implements window-size reporting (RFC 1073). The client WILLs,
// the server DOes; whichever side is the client sends its terminal
// dimensions as two big-endian 16-bit integers inside the subnegotiation
// envelope.
type NAWS struct {
	neg *Negotiation

	width, height uint16
	onResize      func(width, height uint16)

	buf *boundedBuffer
}

// NewNAWS creates a NAWS plugin defaulting to 78x24.
func NewNAWS() *NAWS {
	return &NAWS{
		neg:    NewNegotiation(OptNAWS),
		width:  DefaultNAWSWidth,
		height: DefaultNAWSHeight,
		buf:    newBoundedBuffer(4), // two 16-bit words, no more
	}
}

func (p *NAWS) ID() plugin.ID             { return NAWSID }
func (p *NAWS) Name() string              { return "NAWS" }
func (p *NAWS) Dependencies() []plugin.ID { return nil }

// Size returns the last known (width, height).
func (p *NAWS) Size() (width, height uint16) { return p.width, p.height }

// OnResize registers a callback fired whenever a new size is decoded.
func (p *NAWS) OnResize(fn func(width, height uint16)) { p.onResize = fn }

func (p *NAWS) ConfigureStateMachine(ctx plugin.Context) {
	// A client WILLs (it is the one reporting size); a server DOes (it
	// is the one requesting reports). Either role still answers the
	// other's offer honestly if asked, since the arbitration itself
	// stays symmetric; only the initial offer is
	// mode-specific.
	WireNegotiation(ctx, NAWSID, fsm.TriggerOptNAWS, p.neg,
		func() bool { return ctx.IsEnabled(NAWSID) },
		func() bool { return ctx.IsEnabled(NAWSID) },
	)

	WireSubnegotiation(ctx, NAWSID, fsm.TriggerOptNAWS, p.buf, func(payload []byte, overflowed bool) {
		if overflowed || len(payload) != 4 {
			ctx.Logger().Warn("naws: malformed subnegotiation payload", "length", len(payload))
			return
		}
		width := uint16(payload[0])<<8 | uint16(payload[1])
		height := uint16(payload[2])<<8 | uint16(payload[3])
		p.width, p.height = width, height
		ctx.SharedSet(SharedKeyNAWSWidth, width)
		ctx.SharedSet(SharedKeyNAWSHeight, height)
		if p.onResize != nil {
			p.onResize(width, height)
		}
	})
}

func (p *NAWS) Initialize(ctx plugin.Context) error {
	if ctx.Mode() == plugin.ModeClient {
		send(ctx, p.neg.OfferWill())
	} else {
		send(ctx, p.neg.OfferDo())
	}
	return nil
}

func (p *NAWS) OnEnabled(plugin.Context) error  { return nil }
func (p *NAWS) OnDisabled(plugin.Context) error { return nil }
func (p *NAWS) Dispose(plugin.Context) error    { return nil }

// Report encodes and sends the current size, IAC-doubling any 0xFF byte
// inside the two size words.
func (p *NAWS) Report(ctx plugin.Context, width, height uint16) error {
	p.width, p.height = width, height
	payload := []byte{byte(width >> 8), byte(width), byte(height >> 8), byte(height)}
	return ctx.SendNegotiation(envelope(OptNAWS, payload))
}
