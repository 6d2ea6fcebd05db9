package options

import (
	"github.com/smnsjas/go-negotel/fsm"
	"github.com/smnsjas/go-negotel/internal/txt"
	"github.com/smnsjas/go-negotel/plugin"
)

// CharsetID is the CHARSET plugin's registration identity.
const CharsetID plugin.ID = "charset"

// CharsetOptions configures the CHARSET option plugin (RFC 2066).
type CharsetOptions struct {
	// Preference lists acceptable charset names, most preferred first,
	// used both when responding to a peer's REQUEST and when this side
	// initiates one via RequestCharset.
	Preference []string
	// Separator is the single 7-bit ASCII byte placed before each
	// offered name when this side sends REQUEST. Defaults to ' '.
	Separator byte
}

// DefaultCharsetOptions prefers UTF-8, falling back to ISO-8859-1 (the
// session's default encoding).
func DefaultCharsetOptions() CharsetOptions {
	return CharsetOptions{Preference: []string{"UTF-8", "ISO-8859-1"}, Separator: ' '}
}

// Charset implements CHARSET negotiation (RFC 2066): after WILL/DO
// agreement, either side may REQUEST a charset switch; the responder
// ranks the offered names against its own Preference and ACCEPTS or
// REJECTS.
type Charset struct {
	opts CharsetOptions
	neg  *Negotiation
	buf  *boundedBuffer
}

// NewCharset creates a CHARSET plugin.
func NewCharset(opts CharsetOptions) *Charset {
	if opts.Separator == 0 {
		opts.Separator = ' '
	}
	return &Charset{opts: opts, neg: NewNegotiation(OptCharset), buf: newBoundedBuffer(1024)}
}

func (p *Charset) ID() plugin.ID             { return CharsetID }
func (p *Charset) Name() string              { return "CHARSET" }
func (p *Charset) Dependencies() []plugin.ID { return nil }

func (p *Charset) ConfigureStateMachine(ctx plugin.Context) {
	WireNegotiation(ctx, CharsetID, fsm.TriggerOptCharset, p.neg,
		func() bool { return ctx.IsEnabled(CharsetID) },
		func() bool { return ctx.IsEnabled(CharsetID) },
	)
	WireSubnegotiation(ctx, CharsetID, fsm.TriggerOptCharset, p.buf, func(payload []byte, overflowed bool) {
		p.handlePayload(ctx, payload, overflowed)
	})
}

func (p *Charset) handlePayload(ctx plugin.Context, payload []byte, overflowed bool) {
	if overflowed || len(payload) == 0 {
		ctx.Logger().Warn("charset: empty or oversize subnegotiation payload")
		return
	}
	switch payload[0] {
	case MarkerREQUEST:
		p.handleRequest(ctx, payload[1:])
	case MarkerACCEPTED:
		name := string(payload[1:])
		canon, ok := txt.Canonical(name)
		if !ok {
			ctx.Logger().Warn("charset: peer accepted a name we don't recognize", "name", name)
			return
		}
		ctx.SetEncoding(canon)
	case MarkerREJECTED:
		ctx.Logger().Debug("charset: peer rejected our REQUEST")
	default:
		ctx.Logger().Warn("charset: unknown subnegotiation marker", "marker", payload[0])
	}
}

// handleRequest answers a peer's REQUEST: body is <sep><name><sep><name>...
func (p *Charset) handleRequest(ctx plugin.Context, body []byte) {
	if len(body) == 0 {
		_ = ctx.SendNegotiation(envelope(OptCharset, []byte{MarkerREJECTED}))
		return
	}
	sep := body[0]
	offered := splitSep(body[1:], sep)

	selected, ok := txt.Rank(offered, p.opts.Preference)
	if !ok {
		_ = ctx.SendNegotiation(envelope(OptCharset, []byte{MarkerREJECTED}))
		return
	}
	if canon, mappable := txt.Canonical(selected); mappable {
		ctx.SetEncoding(canon)
	}
	// The ACCEPTED reply echoes the peer's own spelling of the name.
	payload := append([]byte{MarkerACCEPTED}, []byte(selected)...)
	_ = ctx.SendNegotiation(envelope(OptCharset, payload))
}

func splitSep(b []byte, sep byte) []string {
	if len(b) == 0 {
		return nil
	}
	var out []string
	start := 0
	for i, c := range b {
		if c == sep {
			out = append(out, string(b[start:i]))
			start = i + 1
		}
	}
	return append(out, string(b[start:]))
}

func (p *Charset) Initialize(ctx plugin.Context) error {
	send(ctx, p.neg.OfferWill())
	return nil
}

func (p *Charset) OnEnabled(plugin.Context) error  { return nil }
func (p *Charset) OnDisabled(plugin.Context) error { return nil }
func (p *Charset) Dispose(plugin.Context) error    { return nil }

// RequestCharset sends CHARSET REQUEST offering this plugin's configured
// Preference list; after WILL/DO agreement either side may initiate.
func (p *Charset) RequestCharset(ctx plugin.Context) error {
	body := []byte{MarkerREQUEST, p.opts.Separator}
	for i, name := range p.opts.Preference {
		if i > 0 {
			body = append(body, p.opts.Separator)
		}
		body = append(body, []byte(name)...)
	}
	return ctx.SendNegotiation(envelope(OptCharset, body))
}
