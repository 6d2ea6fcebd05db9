// Package negotel implements a protocol-pure Telnet negotiation engine:
// the RFC 854/855 option-negotiation state machine plus pluggable option
// handlers for GMCP, MSDP, MSSP, NAWS, TTYPE/MTTS, CHARSET, EOR,
// SUPPRESS-GA, ECHO, and NEW-ENVIRON. It neither opens sockets nor
// renders output; the host owns all I/O and hands bytes in.
//
// # Architecture
//
// The module is organized into layers:
//
//	┌─────────────────────────────────────────────────────────┐
//	│  interpreter/  Builder + Interpreter session handle     │
//	├─────────────────────────────────────────────────────────┤
//	│  options/      One plugin per Telnet option             │
//	├─────────────────────────────────────────────────────────┤
//	│  plugin/       Lifecycle manager + plugin context       │
//	├─────────────────────────────────────────────────────────┤
//	│  fsm/          Deterministic byte-stream state machine  │
//	├─────────────────────────────────────────────────────────┤
//	│  pipeline/     Bounded inbound queue + consumer task    │
//	└─────────────────────────────────────────────────────────┘
//
// # Quick Start
//
//	i, err := interpreter.NewBuilder(plugin.ModeServer).
//	    WithLogger(logger).
//	    OnNegotiation(func(b []byte) error { _, err := conn.Write(b); return err }).
//	    OnLine(func(line []byte, enc string, i *interpreter.Interpreter) {
//	        handleCommand(line)
//	    }).
//	    AddPlugin(options.NewEcho(options.DefaultEchoOptions())).
//	    AddPlugin(options.NewNAWS()).
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer i.Close()
//
//	i.SubmitBytes(ctx, inbound)
package negotel
