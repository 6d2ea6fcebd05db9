package options

import (
	"strconv"

	"github.com/smnsjas/go-negotel/fsm"
	"github.com/smnsjas/go-negotel/plugin"
)

// MSSPID is the MSSP plugin's registration identity.
const MSSPID plugin.ID = "mssp"

// MSSP payload markers.
const (
	MSSPVarMarker byte = 1
	MSSPValMarker byte = 2
)

// msspBufferSize caps inbound MSSP accumulation; a full standard
// variable set fits comfortably.
const msspBufferSize = 4 * 1024

// MSSPKind is a variable's value shape, used by the static table below
// in place of the reflection the protocol's reference implementations
// lean on.
type MSSPKind int

const (
	MSSPString MSSPKind = iota
	MSSPBool
	MSSPInt
	MSSPList
)

// MSSPVariable is one row of the standard variable table: canonical
// name plus value kind.
type MSSPVariable struct {
	Name string
	Kind MSSPKind
}

// StandardMSSPVariables enumerates the variable set defined by the MSSP
// standard. Hosts may send any string-keyed extension beyond
// these; the table exists so servers can validate and document what they
// advertise.
var StandardMSSPVariables = []MSSPVariable{
	{"NAME", MSSPString},
	{"PLAYERS", MSSPInt},
	{"UPTIME", MSSPInt},
	{"CODEBASE", MSSPString},
	{"CONTACT", MSSPString},
	{"CRAWL DELAY", MSSPInt},
	{"CREATED", MSSPInt},
	{"HOSTNAME", MSSPString},
	{"ICON", MSSPString},
	{"IP", MSSPString},
	{"IPV6", MSSPString},
	{"LANGUAGE", MSSPString},
	{"LOCATION", MSSPString},
	{"MINIMUM_AGE", MSSPInt},
	{"PORT", MSSPList},
	{"REFERRAL", MSSPList},
	{"WEBSITE", MSSPString},
	{"FAMILY", MSSPString},
	{"GENRE", MSSPString},
	{"GAMEPLAY", MSSPString},
	{"STATUS", MSSPString},
	{"GAMESYSTEM", MSSPString},
	{"INTERMUD", MSSPString},
	{"SUBGENRE", MSSPString},
	{"AREAS", MSSPInt},
	{"HELPFILES", MSSPInt},
	{"MOBILES", MSSPInt},
	{"OBJECTS", MSSPInt},
	{"ROOMS", MSSPInt},
	{"CLASSES", MSSPInt},
	{"LEVELS", MSSPInt},
	{"RACES", MSSPInt},
	{"SKILLS", MSSPInt},
	{"ANSI", MSSPBool},
	{"PUEBLO", MSSPBool},
	{"MSP", MSSPBool},
	{"UTF-8", MSSPBool},
	{"VT100", MSSPBool},
	{"XTERM: 256 COLORS", MSSPBool},
	{"XTERM: TRUE COLORS", MSSPBool},
	{"PAY: TO PLAY", MSSPBool},
	{"PAY: FOR PERKS", MSSPBool},
	{"HIRING: BUILDERS", MSSPBool},
	{"HIRING: CODERS", MSSPBool},
}

// MSSPValue is one variable's producer, created via MSSPStringVal,
// MSSPBoolVal, MSSPIntVal or MSSPListVal. Producers are re-read on every
// render, so live values (PLAYERS, UPTIME) stay current.
type MSSPValue struct {
	kind MSSPKind
	str  func() string
	b    func() bool
	i    func() int
	list func() []string
}

// MSSPStringVal wraps a string producer.
func MSSPStringVal(fn func() string) MSSPValue { return MSSPValue{kind: MSSPString, str: fn} }

// MSSPBoolVal wraps a boolean producer; rendered as "1"/"0".
func MSSPBoolVal(fn func() bool) MSSPValue { return MSSPValue{kind: MSSPBool, b: fn} }

// MSSPIntVal wraps an integer producer; rendered in decimal.
func MSSPIntVal(fn func() int) MSSPValue { return MSSPValue{kind: MSSPInt, i: fn} }

// MSSPListVal wraps a list producer; rendered as repeated MSSP_VAL
// blocks under one MSSP_VAR.
func MSSPListVal(fn func() []string) MSSPValue { return MSSPValue{kind: MSSPList, list: fn} }

// MSSPEntry pairs a variable name with its value producer. A slice
// (rather than a map) keeps the advertised order stable.
type MSSPEntry struct {
	Name  string
	Value MSSPValue
}

// MSSPOptions configures the server-side variable set.
type MSSPOptions struct {
	Variables []MSSPEntry
}

// DefaultMSSPOptions returns an empty variable set.
func DefaultMSSPOptions() MSSPOptions { return MSSPOptions{} }

// MSSP implements the MUD Server Status Protocol (option 70): the
// server advertises its status variable set as one subnegotiation the
// moment the peer's DO completes the handshake.
type MSSP struct {
	opts MSSPOptions
	neg  *Negotiation
	buf  *boundedBuffer

	payloadSent bool
	onVariables func(vars map[string][]string)
}

// NewMSSP creates an MSSP plugin.
func NewMSSP(opts MSSPOptions) *MSSP {
	return &MSSP{opts: opts, neg: NewNegotiation(OptMSSP), buf: newBoundedBuffer(msspBufferSize)}
}

func (p *MSSP) ID() plugin.ID             { return MSSPID }
func (p *MSSP) Name() string              { return "MSSP" }
func (p *MSSP) Dependencies() []plugin.ID { return nil }

// OnVariables registers the client-side callback fired with the peer's
// full decoded variable set.
func (p *MSSP) OnVariables(fn func(vars map[string][]string)) { p.onVariables = fn }

func (p *MSSP) ConfigureStateMachine(ctx plugin.Context) {
	WireNegotiation(ctx, MSSPID, fsm.TriggerOptMSSP, p.neg,
		func() bool { return ctx.IsEnabled(MSSPID) },
		func() bool { return ctx.IsEnabled(MSSPID) },
	)

	// DO MSSP is the ask: render the whole set once the
	// WillDo direction goes active.
	ctx.FSM().Configure(fsm.State("Do/" + string(MSSPID))).OnEntry(func(byte) {
		if p.neg.ActiveWillDo() && !p.payloadSent {
			p.payloadSent = true
			send(ctx, envelope(OptMSSP, p.renderVariables()))
		}
	})

	WireSubnegotiation(ctx, MSSPID, fsm.TriggerOptMSSP, p.buf, func(payload []byte, overflowed bool) {
		if overflowed {
			ctx.Logger().Warn("mssp: oversize payload dropped", "limit", msspBufferSize)
			return
		}
		if p.onVariables != nil {
			p.onVariables(DecodeMSSP(payload))
		}
	})
}

// renderVariables encodes the configured set as a sequence of
// MSSP_VAR <name> MSSP_VAL <value> blocks, lists repeating MSSP_VAL.
func (p *MSSP) renderVariables() []byte {
	var out []byte
	for _, entry := range p.opts.Variables {
		out = append(out, MSSPVarMarker)
		out = append(out, entry.Name...)
		switch entry.Value.kind {
		case MSSPString:
			out = append(out, MSSPValMarker)
			out = append(out, entry.Value.str()...)
		case MSSPBool:
			out = append(out, MSSPValMarker)
			if entry.Value.b() {
				out = append(out, '1')
			} else {
				out = append(out, '0')
			}
		case MSSPInt:
			out = append(out, MSSPValMarker)
			out = strconv.AppendInt(out, int64(entry.Value.i()), 10)
		case MSSPList:
			for _, v := range entry.Value.list() {
				out = append(out, MSSPValMarker)
				out = append(out, v...)
			}
		}
	}
	return out
}

// DecodeMSSP parses a peer's variable advertisement. Multi-valued
// variables (repeated MSSP_VAL under one MSSP_VAR) collect in order.
func DecodeMSSP(payload []byte) map[string][]string {
	vars := make(map[string][]string)
	var name string
	i := 0
	next := func() string {
		start := i
		for i < len(payload) && payload[i] != MSSPVarMarker && payload[i] != MSSPValMarker {
			i++
		}
		return string(payload[start:i])
	}
	for i < len(payload) {
		switch payload[i] {
		case MSSPVarMarker:
			i++
			name = next()
		case MSSPValMarker:
			i++
			v := next()
			if name != "" {
				vars[name] = append(vars[name], v)
			}
		default:
			i++
		}
	}
	return vars
}

func (p *MSSP) Initialize(ctx plugin.Context) error {
	if ctx.Mode() == plugin.ModeServer {
		send(ctx, p.neg.OfferWill())
	}
	return nil
}

func (p *MSSP) OnEnabled(plugin.Context) error { return nil }

func (p *MSSP) OnDisabled(plugin.Context) error {
	p.payloadSent = false
	return nil
}

func (p *MSSP) Dispose(plugin.Context) error { return nil }
