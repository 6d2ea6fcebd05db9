package options

import (
	"os"

	"github.com/smnsjas/go-negotel/fsm"
	"github.com/smnsjas/go-negotel/plugin"
)

// NewEnvironID is the NEW-ENVIRON plugin's registration identity.
const NewEnvironID plugin.ID = "new-environ"

// SharedKeyNewEnvironActive is the SharedStateMap key under which this
// plugin publishes whether NEW-ENVIRON negotiation is active; TTYPE
// reads it to decide the MTTS MNES bit.
const SharedKeyNewEnvironActive = "newenviron.active"

// NEW-ENVIRON entry-type and command codes (RFC 1572).
const (
	envVAR     byte = 0
	envVALUE   byte = 1
	envESC     byte = 2
	envUSERVAR byte = 3

	envIS   byte = 0
	envSEND byte = 1
	envINFO byte = 2
)

// newEnvironBufferSize caps inbound accumulation; environment exchanges
// are small relative to GMCP/MSDP.
const newEnvironBufferSize = 2 * 1024

// wellKnownEnvVars are the VAR-typed names RFC 1572 defines; anything
// else travels as USERVAR.
var wellKnownEnvVars = map[string]bool{
	"USER":       true,
	"JOB":        true,
	"ACCT":       true,
	"PRINTER":    true,
	"SYSTEMTYPE": true,
	"DISPLAY":    true,
}

// EnvironEntry is one decoded (type, name, value) triple from an IS or
// INFO payload. Defined reports whether a VALUE block was present at
// all — RFC 1572 distinguishes "defined but empty" from "not defined".
type EnvironEntry struct {
	UserVar bool
	Name    string
	Value   string
	Defined bool
}

// NewEnvironOptions configures the NEW-ENVIRON plugin.
type NewEnvironOptions struct {
	// Vars are the well-known variables this side answers SEND with.
	Vars map[string]string
	// UserVars are the USERVAR-typed variables this side answers with.
	UserVars map[string]string
	// ReadHostEnv, if true, falls back to the process environment for
	// USER and LANG when they are requested but not in Vars.
	ReadHostEnv bool
}

// DefaultNewEnvironOptions answers from the host environment only.
func DefaultNewEnvironOptions() NewEnvironOptions {
	return NewEnvironOptions{ReadHostEnv: true}
}

// NewEnviron implements environment-variable exchange (RFC 1572): the
// server SENDs, the client answers IS with (name, value) pairs for its
// VAR and USERVAR maps, and either side may push unsolicited updates
// with INFO.
type NewEnviron struct {
	opts NewEnvironOptions
	neg  *Negotiation
	buf  *boundedBuffer

	received  map[string]string
	onEnviron func(entries []EnvironEntry)
}

// NewNewEnviron creates a NEW-ENVIRON plugin.
func NewNewEnviron(opts NewEnvironOptions) *NewEnviron {
	return &NewEnviron{
		opts:     opts,
		neg:      NewNegotiation(OptNewEnviron),
		buf:      newBoundedBuffer(newEnvironBufferSize),
		received: make(map[string]string),
	}
}

func (p *NewEnviron) ID() plugin.ID             { return NewEnvironID }
func (p *NewEnviron) Name() string              { return "NEW-ENVIRON" }
func (p *NewEnviron) Dependencies() []plugin.ID { return nil }

// Active reports whether NEW-ENVIRON is active in either direction.
func (p *NewEnviron) Active() bool { return p.neg.Active() }

// Received returns the last value the peer reported for name.
func (p *NewEnviron) Received(name string) (string, bool) {
	v, ok := p.received[name]
	return v, ok
}

// OnEnviron registers the callback fired with each decoded IS or INFO
// entry set from the peer.
func (p *NewEnviron) OnEnviron(fn func(entries []EnvironEntry)) { p.onEnviron = fn }

func (p *NewEnviron) ConfigureStateMachine(ctx plugin.Context) {
	WireNegotiation(ctx, NewEnvironID, fsm.TriggerOptNewEnviron, p.neg,
		func() bool { return ctx.IsEnabled(NewEnvironID) },
		func() bool { return ctx.IsEnabled(NewEnvironID) },
	)
	PublishActiveState(ctx, NewEnvironID, SharedKeyNewEnvironActive, p.neg)

	// A server asks for the peer's environment the moment its WILL lands.
	ctx.FSM().Configure(fsm.State("Willing/" + string(NewEnvironID))).OnEntry(func(byte) {
		if ctx.Mode() == plugin.ModeServer && p.neg.ActiveDoWill() {
			send(ctx, envelope(OptNewEnviron, []byte{envSEND}))
		}
	})

	WireSubnegotiation(ctx, NewEnvironID, fsm.TriggerOptNewEnviron, p.buf, func(payload []byte, overflowed bool) {
		p.handlePayload(ctx, payload, overflowed)
	})
}

func (p *NewEnviron) handlePayload(ctx plugin.Context, payload []byte, overflowed bool) {
	if overflowed {
		ctx.Logger().Warn("new-environ: oversize payload dropped", "limit", newEnvironBufferSize)
		return
	}
	if len(payload) == 0 {
		return
	}
	switch payload[0] {
	case envSEND:
		p.answerSend(ctx, payload[1:])
	case envIS, envINFO:
		entries := decodeEnvironEntries(payload[1:])
		for _, e := range entries {
			if e.Defined {
				p.received[e.Name] = e.Value
			} else {
				delete(p.received, e.Name)
			}
		}
		if p.onEnviron != nil {
			p.onEnviron(entries)
		}
	default:
		ctx.Logger().Warn("new-environ: unknown subnegotiation command", "command", payload[0])
	}
}

// answerSend builds the IS reply: requested names only, or the full VAR
// and USERVAR maps when the request names none.
func (p *NewEnviron) answerSend(ctx plugin.Context, request []byte) {
	reply := []byte{envIS}

	requested := decodeEnvironEntries(request)
	if len(requested) == 0 {
		vars := p.vars()
		for _, name := range sortedKeys(vars) {
			reply = appendEnvironEntry(reply, !wellKnown(name), name, vars[name], true)
		}
		for _, name := range sortedKeys(p.opts.UserVars) {
			reply = appendEnvironEntry(reply, true, name, p.opts.UserVars[name], true)
		}
	} else {
		for _, req := range requested {
			value, defined := p.lookup(req.UserVar, req.Name)
			reply = appendEnvironEntry(reply, req.UserVar, req.Name, value, defined)
		}
	}
	send(ctx, envelope(OptNewEnviron, reply))
}

// vars merges configured Vars with the host-environment fallback for
// USER and LANG.
func (p *NewEnviron) vars() map[string]string {
	out := make(map[string]string, len(p.opts.Vars)+2)
	if p.opts.ReadHostEnv {
		for _, name := range []string{"USER", "LANG"} {
			if v, ok := os.LookupEnv(name); ok {
				out[name] = v
			}
		}
	}
	for name, v := range p.opts.Vars {
		out[name] = v
	}
	return out
}

func (p *NewEnviron) lookup(userVar bool, name string) (string, bool) {
	if userVar {
		v, ok := p.opts.UserVars[name]
		return v, ok
	}
	v, ok := p.vars()[name]
	return v, ok
}

func (p *NewEnviron) Initialize(ctx plugin.Context) error {
	if ctx.Mode() == plugin.ModeServer {
		send(ctx, p.neg.OfferDo())
	} else {
		send(ctx, p.neg.OfferWill())
	}
	return nil
}

func (p *NewEnviron) OnEnabled(plugin.Context) error { return nil }

func (p *NewEnviron) OnDisabled(ctx plugin.Context) error {
	ctx.SharedSet(SharedKeyNewEnvironActive, false)
	return nil
}

func (p *NewEnviron) Dispose(plugin.Context) error { return nil }

// SendInfo pushes unsolicited variable updates to the peer (RFC 1572
// INFO), used when a value changes after the initial IS exchange.
func (p *NewEnviron) SendInfo(ctx plugin.Context, entries []EnvironEntry) error {
	out := []byte{envINFO}
	for _, e := range entries {
		out = appendEnvironEntry(out, e.UserVar, e.Name, e.Value, e.Defined)
	}
	return ctx.SendNegotiation(envelope(OptNewEnviron, out))
}

// appendEnvironEntry appends one VAR/USERVAR block, escaping the four
// reserved type codes inside name and value with ESC. An undefined
// variable is a name with no VALUE block.
func appendEnvironEntry(dst []byte, userVar bool, name, value string, defined bool) []byte {
	if userVar {
		dst = append(dst, envUSERVAR)
	} else {
		dst = append(dst, envVAR)
	}
	dst = appendEnvEscaped(dst, name)
	if defined {
		dst = append(dst, envVALUE)
		dst = appendEnvEscaped(dst, value)
	}
	return dst
}

func appendEnvEscaped(dst []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b <= envUSERVAR {
			dst = append(dst, envESC)
		}
		dst = append(dst, b)
	}
	return dst
}

// decodeEnvironEntries parses a sequence of VAR/USERVAR blocks (with
// optional VALUE), honoring ESC.
func decodeEnvironEntries(b []byte) []EnvironEntry {
	var out []EnvironEntry
	i := 0
	token := func() string {
		var t []byte
		for i < len(b) {
			c := b[i]
			if c == envESC && i+1 < len(b) {
				t = append(t, b[i+1])
				i += 2
				continue
			}
			if c == envVAR || c == envVALUE || c == envUSERVAR {
				break
			}
			t = append(t, c)
			i++
		}
		return string(t)
	}
	for i < len(b) {
		typ := b[i]
		if typ != envVAR && typ != envUSERVAR {
			i++
			continue
		}
		i++
		entry := EnvironEntry{UserVar: typ == envUSERVAR, Name: token()}
		if i < len(b) && b[i] == envVALUE {
			i++
			entry.Value = token()
			entry.Defined = true
		}
		out = append(out, entry)
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// wellKnown reports whether RFC 1572 defines name as a VAR (as opposed
// to USERVAR) entry type.
func wellKnown(name string) bool { return wellKnownEnvVars[name] }
