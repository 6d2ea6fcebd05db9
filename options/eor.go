package options

import (
	"github.com/smnsjas/go-negotel/fsm"
	"github.com/smnsjas/go-negotel/plugin"
)

// EORID is the End-Of-Record plugin's registration identity.
const EORID plugin.ID = "eor"

// EOR implements the End-Of-Record option (RFC 885): pure negotiation,
// no payload, but it owns SendPrompt, the fallback rule for terminating
// a prompt without a trailing newline.
type EOR struct {
	neg *Negotiation
}

// NewEOR creates an EOR plugin. It depends on SUPPRESS-GA because
// SendPrompt's fallback decision reads that plugin's
// Active() flag; declaring the dependency guarantees it is registered
// and available via ctx.Get before EOR's own lifecycle methods run.
func NewEOR() *EOR {
	return &EOR{neg: NewNegotiation(OptEOR)}
}

func (p *EOR) ID() plugin.ID             { return EORID }
func (p *EOR) Name() string              { return "EOR" }
func (p *EOR) Dependencies() []plugin.ID { return []plugin.ID{SuppressGAID} }

// Active reports whether EOR is active in either direction.
func (p *EOR) Active() bool { return p.neg.Active() }

func (p *EOR) ConfigureStateMachine(ctx plugin.Context) {
	WireNegotiation(ctx, EORID, fsm.TriggerOptEOR, p.neg,
		func() bool { return ctx.IsEnabled(EORID) },
		func() bool { return ctx.IsEnabled(EORID) },
	)
}

func (p *EOR) Initialize(ctx plugin.Context) error {
	if ctx.Mode() == plugin.ModeServer {
		send(ctx, p.neg.OfferWill())
	}
	return nil
}

func (p *EOR) OnEnabled(plugin.Context) error  { return nil }
func (p *EOR) OnDisabled(plugin.Context) error { return nil }
func (p *EOR) Dispose(plugin.Context) error    { return nil }

// SendPrompt writes bytes then terminates the prompt: IAC EOR if EOR is
// active, else IAC GA if SUPPRESS-GA is not active, else neither marker,
// logged at debug so the silent case is still observable.
func SendPrompt(ctx plugin.Context, bytes []byte) error {
	out := append([]byte(nil), bytes...)

	eor, hasEOR := plugin.GetAs[*EOR](ctx, EORID)
	if hasEOR && eor.Active() {
		out = append(out, IAC, EORByte)
		return ctx.SendNegotiation(out)
	}

	ga, hasGA := plugin.GetAs[*SuppressGA](ctx, SuppressGAID)
	if !hasGA || !ga.Active() {
		out = append(out, IAC, GA)
		return ctx.SendNegotiation(out)
	}

	ctx.Logger().Debug("send_prompt: EOR inactive and SUPPRESS-GA active, emitting neither marker")
	return ctx.SendNegotiation(out)
}
