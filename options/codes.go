// Package options implements one plugin.Plugin per Telnet option:
// ECHO, SUPPRESS-GA, TTYPE/MTTS, NAWS, CHARSET, EOR, MSSP, GMCP, MSDP,
// and NEW-ENVIRON. Each file owns its option's wire
// codec and the FSM substates it adds; the generic WILL/WONT/DO/DONT
// arbitration shared by all of them lives in negotiation.go, and the
// generic "SB <opt> ... IAC SE" accumulation scaffolding lives in
// wire.go, so each option file only has to supply its own payload
// grammar.
package options

// Telnet command bytes (RFC 854), duplicated here as plain byte
// constants (rather than imported as fsm.Trigger) because outbound wire
// framing is assembled as []byte, not fired through the state machine.
const (
	IAC     byte = 255
	DONT    byte = 254
	DO      byte = 253
	WONT    byte = 252
	WILL    byte = 251
	SB      byte = 250
	GA      byte = 249
	EORByte byte = 239
	SE      byte = 240
)

// Option codes.
const (
	OptEcho       byte = 1
	OptSuppressGA byte = 3
	OptTTYPE      byte = 24
	OptEOR        byte = 25
	OptNAWS       byte = 31
	OptNewEnviron byte = 39
	OptCharset    byte = 42
	OptMSDP       byte = 69
	OptMSSP       byte = 70
	OptGMCP       byte = 201
)

// Subnegotiation marker bytes shared by more than one option.
const (
	MarkerIS       byte = 0
	MarkerSEND     byte = 1
	MarkerREQUEST  byte = 1
	MarkerACCEPTED byte = 2
	MarkerREJECTED byte = 3
)

// appendEscaped appends payload to dst, doubling every 0xFF byte, the
// IAC-doubling rule for bytes inside any SB...SE envelope.
func appendEscaped(dst, payload []byte) []byte {
	for _, b := range payload {
		if b == IAC {
			dst = append(dst, IAC)
		}
		dst = append(dst, b)
	}
	return dst
}

// EscapePayload returns payload with every 0xFF doubled, the form raw
// application bytes must take on the wire outside any envelope.
func EscapePayload(payload []byte) []byte {
	return appendEscaped(make([]byte, 0, len(payload)+2), payload)
}

// envelope frames payload as IAC SB opt payload(escaped) IAC SE.
func envelope(opt byte, payload []byte) []byte {
	out := make([]byte, 0, len(payload)+6)
	out = append(out, IAC, SB, opt)
	out = appendEscaped(out, payload)
	out = append(out, IAC, SE)
	return out
}
