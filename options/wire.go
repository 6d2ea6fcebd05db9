package options

import (
	"github.com/smnsjas/go-negotel/fsm"
	"github.com/smnsjas/go-negotel/plugin"
)

// WireNegotiation installs the generic WILL/WONT/DO/DONT dispatch for one
// option code into the shared framing states, delegating
// the actual accept/refuse decision to neg and weWantDo/weWantWill, and
// sending any resulting response via ctx.SendNegotiation. id must be
// unique per plugin; it is only used to name the option-specific
// substates this installs ("Willing/gmcp", "Do/gmcp", ...).
func WireNegotiation(ctx plugin.Context, id plugin.ID, trig fsm.Trigger, neg *Negotiation, weWantDo, weWantWill func() bool) {
	m := ctx.FSM()
	name := string(id)

	willing := fsm.State("Willing/" + name)
	m.Configure(fsm.Willing).Permit(trig, willing)
	m.Configure(willing).TransientTo(fsm.Accepting).OnEntry(func(byte) {
		send(ctx, neg.HandleWill(weWantDo()))
	})

	refusing := fsm.State("Refusing/" + name)
	m.Configure(fsm.Refusing).Permit(trig, refusing)
	m.Configure(refusing).TransientTo(fsm.Accepting).OnEntry(func(byte) {
		send(ctx, neg.HandleWont())
	})

	doState := fsm.State("Do/" + name)
	m.Configure(fsm.Do).Permit(trig, doState)
	m.Configure(doState).TransientTo(fsm.Accepting).OnEntry(func(byte) {
		send(ctx, neg.HandleDo(weWantWill()))
	})

	dontState := fsm.State("Dont/" + name)
	m.Configure(fsm.Dont).Permit(trig, dontState)
	m.Configure(dontState).TransientTo(fsm.Accepting).OnEntry(func(byte) {
		send(ctx, neg.HandleDont())
	})
}

// PublishActiveState hooks an additional OnEntry callback onto the same
// four WILL/WONT/DO/DONT substates WireNegotiation installs for id (the
// two must be called for the same id), publishing neg.Active() to the
// shared state map under key after every arbitration. This is how TTYPE
// observes NEW-ENVIRON's negotiated state for the MTTS MNES capability
// flag via the shared-state map rather than a hard plugin dependency.
func PublishActiveState(ctx plugin.Context, id plugin.ID, key string, neg *Negotiation) {
	m := ctx.FSM()
	name := string(id)
	publish := func(byte) { ctx.SharedSet(key, neg.Active()) }

	m.Configure(fsm.State("Willing/" + name)).OnEntry(publish)
	m.Configure(fsm.State("Refusing/" + name)).OnEntry(publish)
	m.Configure(fsm.State("Do/" + name)).OnEntry(publish)
	m.Configure(fsm.State("Dont/" + name)).OnEntry(publish)
}

func send(ctx plugin.Context, b []byte) {
	if b == nil {
		return
	}
	if err := ctx.SendNegotiation(b); err != nil {
		ctx.Logger().Warn("negotiation send failed", "error", err)
	}
}

// WireSubnegotiation installs the standard "IAC SB <opt> ... IAC SE"
// envelope scaffolding for one option: entering SubNegotiation on trig
// resets buf and starts accumulating; IAC begins an escape (doubled
// 0xFF decodes to one 0xFF byte written via buf); SE after that escape
// ends the envelope and calls onComplete with the accumulated payload;
// any other byte immediately after an escape is a protocol violation and
// resyncs to Accepting without calling onComplete.
func WireSubnegotiation(ctx plugin.Context, id plugin.ID, trig fsm.Trigger, buf *boundedBuffer, onComplete func(payload []byte, overflowed bool)) {
	m := ctx.FSM()
	name := string(id)

	evaluating := fsm.State("Evaluating/" + name)
	escaping := fsm.State("Escaping/" + name)
	completing := fsm.State("Completing/" + name)

	// The buffer resets on the SB <opt> edge, not on entry to evaluating:
	// evaluating is re-entered for every accumulated byte (via its own
	// catch-all) and after every escaped IAC, and none of those may wipe
	// what's already been captured.
	m.Configure(fsm.SubNegotiation).PermitWithAction(trig, evaluating, func(byte) { buf.Reset() })

	// A bare SE byte with no preceding IAC is ordinary payload inside the
	// envelope; only the IAC SE pair (via escaping) ends it.
	m.Configure(evaluating).
		Permit(fsm.TriggerIAC, escaping).
		CatchAll(evaluating, func(b byte) { buf.Write(b) })

	m.Configure(escaping).
		PermitWithAction(fsm.TriggerIAC, evaluating, func(byte) { buf.Write(0xFF) }).
		Permit(fsm.TriggerSE, completing).
		CatchAll(fsm.Accepting, func(byte) {
			ctx.Logger().Warn("protocol violation in subnegotiation, resyncing", "option", name)
		})

	m.Configure(completing).TransientTo(fsm.Accepting).OnEntry(func(byte) {
		payload := append([]byte(nil), buf.Bytes()...)
		onComplete(payload, buf.Overflowed())
	})
}
