package options

import (
	"github.com/smnsjas/go-negotel/fsm"
	"github.com/smnsjas/go-negotel/plugin"
)

// EchoID is the ECHO plugin's registration identity.
const EchoID plugin.ID = "echo"

// EchoOptions configures the ECHO option plugin (RFC 857).
type EchoOptions struct {
	// AutoEcho, if true, writes every accepted payload byte straight
	// back to the peer while ECHO is active in the WillDo direction (we
	// WILL, peer answered DO), the way a server-side line-mode session
	// echoes keystrokes.
	AutoEcho bool
}

// DefaultEchoOptions returns ECHO's zero-value configuration: auto-echo
// off, leaving byte echoing to the host application.
func DefaultEchoOptions() EchoOptions { return EchoOptions{} }

// Echo implements the ECHO option (RFC 857): pure WILL/WONT/DO/DONT
// negotiation with no subnegotiation payload.
type Echo struct {
	opts EchoOptions
	neg  *Negotiation
}

// NewEcho creates an ECHO plugin.
func NewEcho(opts EchoOptions) *Echo {
	return &Echo{opts: opts, neg: NewNegotiation(OptEcho)}
}

func (p *Echo) ID() plugin.ID             { return EchoID }
func (p *Echo) Name() string              { return "ECHO" }
func (p *Echo) Dependencies() []plugin.ID { return nil }

// IsEchoing reports whether ECHO is active in either direction.
func (p *Echo) IsEchoing() bool { return p.neg.Active() }

func (p *Echo) ConfigureStateMachine(ctx plugin.Context) {
	WireNegotiation(ctx, EchoID, fsm.TriggerOptEcho, p.neg,
		func() bool { return ctx.IsEnabled(EchoID) },
		func() bool { return ctx.IsEnabled(EchoID) },
	)

	if p.opts.AutoEcho {
		ctx.FSM().Configure(fsm.Accepting).CatchAll(fsm.Accepting, func(b byte) {
			if p.neg.ActiveWillDo() {
				send(ctx, []byte{b})
			}
		})
	}
}

func (p *Echo) Initialize(ctx plugin.Context) error {
	if ctx.Mode() == plugin.ModeServer {
		send(ctx, p.neg.OfferWill())
	}
	return nil
}

func (p *Echo) OnEnabled(plugin.Context) error  { return nil }
func (p *Echo) OnDisabled(plugin.Context) error { return nil }
func (p *Echo) Dispose(plugin.Context) error    { return nil }
