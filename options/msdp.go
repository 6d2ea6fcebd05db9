package options

import (
	"fmt"
	"sort"

	"github.com/smnsjas/go-negotel/fsm"
	"github.com/smnsjas/go-negotel/plugin"
)

// MSDPID is the MSDP plugin's registration identity.
const MSDPID plugin.ID = "msdp"

// MSDPBufferSize caps MSDP subnegotiation accumulation.
const MSDPBufferSize = 8 * 1024

// MSDP value markers.
const (
	MSDPVar        byte = 1
	MSDPVal        byte = 2
	MSDPTableOpen  byte = 3
	MSDPTableClose byte = 4
	MSDPArrayOpen  byte = 5
	MSDPArrayClose byte = 6
)

// MSDPValue is one node of the self-describing variable tree: a string
// scalar, a []MSDPValue array, or a map[string]MSDPValue table.
type MSDPValue any

// MSDPPair is one VAR/VAL entry of an MSDP message.
type MSDPPair struct {
	Name  string
	Value MSDPValue
}

// The standard MSDP command set, answered by the server-side handler.
const (
	msdpCmdList     = "LIST"
	msdpCmdReport   = "REPORT"
	msdpCmdUnreport = "UNREPORT"
	msdpCmdSend     = "SEND"
	msdpCmdReset    = "RESET"
)

// The list names a LIST command may ask for.
const (
	msdpListCommands     = "COMMANDS"
	msdpListConfigurable = "CONFIGURABLE_VARIABLES"
	msdpListReportable   = "REPORTABLE_VARIABLES"
	msdpListSendable     = "SENDABLE_VARIABLES"
	msdpListReported     = "REPORTED_VARIABLES"
)

// MSDPOptions configures the server-side MSDP handler. A client-only
// interpreter can leave it zero: decoding and OnVariable still work.
type MSDPOptions struct {
	// ConfigurableVariables answers LIST CONFIGURABLE_VARIABLES.
	ConfigurableVariables []string
	// ReportableVariables answers LIST REPORTABLE_VARIABLES and bounds
	// which names REPORT may subscribe to.
	ReportableVariables []string
	// SendableVariables answers LIST SENDABLE_VARIABLES and bounds which
	// names SEND may ask for. Empty means "same as ReportableVariables".
	SendableVariables []string
	// Variables maps a variable name to its producer, read on SEND,
	// REPORT and every SendVariable call.
	Variables map[string]func() MSDPValue
}

// DefaultMSDPOptions returns an empty server configuration.
func DefaultMSDPOptions() MSDPOptions { return MSDPOptions{} }

// MSDP implements the MUD Server Data Protocol (option 69): a
// self-describing variable tree exchanged as VAR/VAL markers, plus the
// standard LIST/REPORT/UNREPORT/SEND/RESET server commands.
type MSDP struct {
	opts MSDPOptions
	neg  *Negotiation
	buf  *boundedBuffer

	reported   []string
	onVariable func(name string, value MSDPValue)
}

// NewMSDP creates an MSDP plugin.
func NewMSDP(opts MSDPOptions) *MSDP {
	return &MSDP{opts: opts, neg: NewNegotiation(OptMSDP), buf: newBoundedBuffer(MSDPBufferSize)}
}

func (p *MSDP) ID() plugin.ID             { return MSDPID }
func (p *MSDP) Name() string              { return "MSDP" }
func (p *MSDP) Dependencies() []plugin.ID { return nil }

// Active reports whether MSDP is active in either direction.
func (p *MSDP) Active() bool { return p.neg.Active() }

// OnVariable registers the callback fired for each decoded VAR/VAL pair
// that is not one of the standard commands (the client-facing surface).
func (p *MSDP) OnVariable(fn func(name string, value MSDPValue)) { p.onVariable = fn }

// ReportedVariables returns the names the peer currently has under REPORT.
func (p *MSDP) ReportedVariables() []string {
	return append([]string(nil), p.reported...)
}

func (p *MSDP) ConfigureStateMachine(ctx plugin.Context) {
	WireNegotiation(ctx, MSDPID, fsm.TriggerOptMSDP, p.neg,
		func() bool { return ctx.IsEnabled(MSDPID) },
		func() bool { return ctx.IsEnabled(MSDPID) },
	)
	WireSubnegotiation(ctx, MSDPID, fsm.TriggerOptMSDP, p.buf, func(payload []byte, overflowed bool) {
		p.handlePayload(ctx, payload, overflowed)
	})
}

func (p *MSDP) handlePayload(ctx plugin.Context, payload []byte, overflowed bool) {
	if overflowed {
		ctx.Logger().Warn("msdp: message exceeded buffer, truncated and dropped", "limit", MSDPBufferSize)
		return
	}
	pairs, err := DecodeMSDP(payload)
	if err != nil {
		ctx.Logger().Warn("msdp: malformed message dropped", "error", err)
		return
	}
	for _, pair := range pairs {
		p.handlePair(ctx, pair)
	}
}

func (p *MSDP) handlePair(ctx plugin.Context, pair MSDPPair) {
	switch pair.Name {
	case msdpCmdList:
		p.handleList(ctx, pair.Value)
	case msdpCmdReport:
		for _, name := range scalarNames(pair.Value) {
			p.handleReport(ctx, name)
		}
	case msdpCmdUnreport:
		for _, name := range scalarNames(pair.Value) {
			p.removeReported(name)
		}
	case msdpCmdSend:
		for _, name := range scalarNames(pair.Value) {
			p.sendVariable(ctx, name)
		}
	case msdpCmdReset:
		p.reported = nil
	default:
		if p.onVariable != nil {
			p.onVariable(pair.Name, pair.Value)
		}
	}
}

func (p *MSDP) handleList(ctx plugin.Context, v MSDPValue) {
	name, _ := v.(string)
	var items []string
	switch name {
	case msdpListCommands:
		items = []string{msdpCmdList, msdpCmdReport, msdpCmdUnreport, msdpCmdSend, msdpCmdReset}
	case msdpListConfigurable:
		items = p.opts.ConfigurableVariables
	case msdpListReportable:
		items = p.opts.ReportableVariables
	case msdpListSendable:
		items = p.sendable()
	case msdpListReported:
		items = p.reported
	default:
		ctx.Logger().Warn("msdp: LIST for unknown list", "list", name)
		return
	}
	arr := make([]MSDPValue, len(items))
	for i, it := range items {
		arr[i] = it
	}
	send(ctx, envelope(OptMSDP, EncodeMSDP([]MSDPPair{{Name: name, Value: arr}})))
}

func (p *MSDP) handleReport(ctx plugin.Context, name string) {
	if !contains(p.opts.ReportableVariables, name) {
		ctx.Logger().Warn("msdp: REPORT for non-reportable variable", "variable", name)
		return
	}
	if !contains(p.reported, name) {
		p.reported = append(p.reported, name)
	}
	p.sendVariable(ctx, name)
}

func (p *MSDP) removeReported(name string) {
	for i, r := range p.reported {
		if r == name {
			p.reported = append(p.reported[:i], p.reported[i+1:]...)
			return
		}
	}
}

func (p *MSDP) sendable() []string {
	if len(p.opts.SendableVariables) > 0 {
		return p.opts.SendableVariables
	}
	return p.opts.ReportableVariables
}

func (p *MSDP) sendVariable(ctx plugin.Context, name string) {
	if !contains(p.sendable(), name) {
		ctx.Logger().Warn("msdp: SEND for non-sendable variable", "variable", name)
		return
	}
	producer, ok := p.opts.Variables[name]
	if !ok {
		ctx.Logger().Warn("msdp: no producer for variable", "variable", name)
		return
	}
	send(ctx, envelope(OptMSDP, EncodeMSDP([]MSDPPair{{Name: name, Value: producer()}})))
}

// SendVariable pushes one variable's current value to the peer, the
// server-side path a host uses when a REPORTed value changes.
func (p *MSDP) SendVariable(ctx plugin.Context, name string) error {
	producer, ok := p.opts.Variables[name]
	if !ok {
		return fmt.Errorf("msdp: no producer for variable %q", name)
	}
	return ctx.SendNegotiation(envelope(OptMSDP, EncodeMSDP([]MSDPPair{{Name: name, Value: producer()}})))
}

func (p *MSDP) Initialize(ctx plugin.Context) error {
	if ctx.Mode() == plugin.ModeServer {
		send(ctx, p.neg.OfferWill())
	}
	return nil
}

func (p *MSDP) OnEnabled(plugin.Context) error { return nil }

func (p *MSDP) OnDisabled(plugin.Context) error {
	p.reported = nil
	return nil
}

func (p *MSDP) Dispose(plugin.Context) error { return nil }

// scalarNames flattens a command argument into variable names: a scalar
// is one name, an array is several.
func scalarNames(v MSDPValue) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []MSDPValue:
		var out []string
		for _, item := range t {
			out = append(out, scalarNames(item)...)
		}
		return out
	default:
		return nil
	}
}

func contains(list []string, name string) bool {
	for _, item := range list {
		if item == name {
			return true
		}
	}
	return false
}

// EncodeMSDP renders pairs as MSDP wire bytes (before IAC-doubling,
// which the envelope applies).
func EncodeMSDP(pairs []MSDPPair) []byte {
	var out []byte
	for _, pair := range pairs {
		out = append(out, MSDPVar)
		out = append(out, pair.Name...)
		out = append(out, MSDPVal)
		out = appendMSDPValue(out, pair.Value)
	}
	return out
}

func appendMSDPValue(dst []byte, v MSDPValue) []byte {
	switch t := v.(type) {
	case nil:
		return dst
	case string:
		return append(dst, t...)
	case []MSDPValue:
		dst = append(dst, MSDPArrayOpen)
		for _, item := range t {
			dst = append(dst, MSDPVal)
			dst = appendMSDPValue(dst, item)
		}
		return append(dst, MSDPArrayClose)
	case map[string]MSDPValue:
		dst = append(dst, MSDPTableOpen)
		names := make([]string, 0, len(t))
		for name := range t {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			dst = append(dst, MSDPVar)
			dst = append(dst, name...)
			dst = append(dst, MSDPVal)
			dst = appendMSDPValue(dst, t[name])
		}
		return append(dst, MSDPTableClose)
	default:
		return append(dst, fmt.Sprint(t)...)
	}
}

// DecodeMSDP parses MSDP wire bytes into VAR/VAL pairs by recursive
// descent over the grammar:
//
//	message := (VAR <name> VAL <value>)*
//	value   := <bytes> | ARRAY_OPEN (VAL <value>)* ARRAY_CLOSE
//	                   | TABLE_OPEN (VAR <name> VAL <value>)* TABLE_CLOSE
func DecodeMSDP(b []byte) ([]MSDPPair, error) {
	d := &msdpDecoder{b: b}
	pairs, err := d.pairs(0)
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.b) {
		return nil, fmt.Errorf("msdp: trailing byte 0x%02x at offset %d", d.b[d.pos], d.pos)
	}
	return pairs, nil
}

type msdpDecoder struct {
	b   []byte
	pos int
}

// pairs parses (VAR name VAL value)* to end of input or, inside a
// table, to the given close marker.
func (d *msdpDecoder) pairs(until byte) ([]MSDPPair, error) {
	var out []MSDPPair
	for d.pos < len(d.b) {
		if until != 0 && d.b[d.pos] == until {
			return out, nil
		}
		if d.b[d.pos] != MSDPVar {
			return nil, fmt.Errorf("msdp: expected VAR at offset %d, got 0x%02x", d.pos, d.b[d.pos])
		}
		d.pos++
		name := d.scalar()
		if d.pos >= len(d.b) || d.b[d.pos] != MSDPVal {
			return nil, fmt.Errorf("msdp: variable %q has no VAL", name)
		}
		d.pos++
		v, err := d.value()
		if err != nil {
			return nil, err
		}
		out = append(out, MSDPPair{Name: string(name), Value: v})
	}
	if until != 0 {
		return nil, fmt.Errorf("msdp: unterminated table")
	}
	return out, nil
}

func (d *msdpDecoder) value() (MSDPValue, error) {
	if d.pos < len(d.b) {
		switch d.b[d.pos] {
		case MSDPArrayOpen:
			d.pos++
			return d.array()
		case MSDPTableOpen:
			d.pos++
			pairs, err := d.pairs(MSDPTableClose)
			if err != nil {
				return nil, err
			}
			if d.pos >= len(d.b) || d.b[d.pos] != MSDPTableClose {
				return nil, fmt.Errorf("msdp: unterminated table")
			}
			d.pos++
			table := make(map[string]MSDPValue, len(pairs))
			for _, pair := range pairs {
				table[pair.Name] = pair.Value
			}
			return table, nil
		}
	}
	return string(d.scalar()), nil
}

func (d *msdpDecoder) array() (MSDPValue, error) {
	out := []MSDPValue{}
	for d.pos < len(d.b) {
		switch d.b[d.pos] {
		case MSDPArrayClose:
			d.pos++
			return out, nil
		case MSDPVal:
			d.pos++
			v, err := d.value()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		default:
			return nil, fmt.Errorf("msdp: expected VAL or ARRAY_CLOSE at offset %d, got 0x%02x", d.pos, d.b[d.pos])
		}
	}
	return nil, fmt.Errorf("msdp: unterminated array")
}

// scalar consumes bytes up to (not including) the next marker byte.
func (d *msdpDecoder) scalar() []byte {
	start := d.pos
	for d.pos < len(d.b) && !isMSDPMarker(d.b[d.pos]) {
		d.pos++
	}
	return d.b[start:d.pos]
}

func isMSDPMarker(b byte) bool {
	return b >= MSDPVar && b <= MSDPArrayClose
}
