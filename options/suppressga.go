package options

import (
	"github.com/smnsjas/go-negotel/fsm"
	"github.com/smnsjas/go-negotel/plugin"
)

// SuppressGAID is the SUPPRESS-GO-AHEAD plugin's registration identity.
const SuppressGAID plugin.ID = "suppress-ga"

// SuppressGA implements SUPPRESS-GO-AHEAD (RFC 858): pure WILL/WONT/DO/DONT
// negotiation with no payload. Its only externally visible effect is the
// Active flag EOR consults before deciding whether a prompt needs a
// trailing IAC GA.
type SuppressGA struct {
	neg *Negotiation
}

// NewSuppressGA creates a SUPPRESS-GO-AHEAD plugin.
func NewSuppressGA() *SuppressGA {
	return &SuppressGA{neg: NewNegotiation(OptSuppressGA)}
}

func (p *SuppressGA) ID() plugin.ID             { return SuppressGAID }
func (p *SuppressGA) Name() string              { return "SUPPRESS-GA" }
func (p *SuppressGA) Dependencies() []plugin.ID { return nil }

// Active reports whether go-aheads are currently suppressed in either
// direction.
func (p *SuppressGA) Active() bool { return p.neg.Active() }

func (p *SuppressGA) ConfigureStateMachine(ctx plugin.Context) {
	WireNegotiation(ctx, SuppressGAID, fsm.TriggerOptSuppressGA, p.neg,
		func() bool { return ctx.IsEnabled(SuppressGAID) },
		func() bool { return ctx.IsEnabled(SuppressGAID) },
	)
}

func (p *SuppressGA) Initialize(ctx plugin.Context) error {
	if ctx.Mode() == plugin.ModeServer {
		send(ctx, p.neg.OfferWill())
	}
	return nil
}

func (p *SuppressGA) OnEnabled(plugin.Context) error  { return nil }
func (p *SuppressGA) OnDisabled(plugin.Context) error { return nil }
func (p *SuppressGA) Dispose(plugin.Context) error    { return nil }
