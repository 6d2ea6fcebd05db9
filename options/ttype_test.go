package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smnsjas/go-negotel/plugin"
)

func sbTTYPEIs(name string) []byte {
	return envelope(OptTTYPE, append([]byte{ttypeIS}, name...))
}

var sbTTYPESend = []byte{IAC, SB, OptTTYPE, ttypeSEND, IAC, SE}

func TestTTYPE_ServerCollectsUntilNameRepeats(t *testing.T) {
	ttype := NewTTYPE(DefaultTTYPEOptions())
	ctx := newTestContext(t, plugin.ModeServer, ttype)
	require.Equal(t, []byte{IAC, DO, OptTTYPE}, ctx.takeSent())

	var gotNames []string
	gotMTTS := -1
	ttype.OnTerminalTypes(func(names []string, mtts int) { gotNames, gotMTTS = names, mtts })

	// Peer WILLs; the server opens the SEND cycle.
	ctx.feed(0xFF, 0xFB, 0x18)
	require.Equal(t, sbTTYPESend, ctx.takeSent())

	ctx.feed(sbTTYPEIs("TINTIN++")...)
	require.Equal(t, sbTTYPESend, ctx.takeSent())

	ctx.feed(sbTTYPEIs("XTERM")...)
	require.Equal(t, sbTTYPESend, ctx.takeSent())

	ctx.feed(sbTTYPEIs("MTTS 137")...)
	require.Equal(t, sbTTYPESend, ctx.takeSent())

	// Repetition (case-insensitive) ends the cycle.
	ctx.feed(sbTTYPEIs("mtts 137")...)
	assert.Empty(t, ctx.takeSent())

	assert.Equal(t, []string{"TINTIN++", "XTERM", "MTTS 137"}, gotNames)
	assert.Equal(t, 137, gotMTTS)
}

func TestTTYPE_ClientWalksCycleThenReportsMTTS(t *testing.T) {
	ttype := NewTTYPE(TTYPEOptions{
		TerminalTypes: []string{"NEGOTEL", "XTERM"},
		MTTS:          MTTSAnsi | MTTSUTF8,
	})
	ctx := newTestContext(t, plugin.ModeClient, ttype)
	ctx.takeSent()

	// Server DOes; client WILLs.
	ctx.feed(0xFF, 0xFD, 0x18)
	require.Equal(t, []byte{IAC, WILL, OptTTYPE}, ctx.takeSent())

	sendReq := envelope(OptTTYPE, []byte{ttypeSEND})

	ctx.feed(sendReq...)
	assert.Equal(t, sbTTYPEIs("NEGOTEL"), ctx.takeSent())

	ctx.feed(sendReq...)
	assert.Equal(t, sbTTYPEIs("XTERM"), ctx.takeSent())

	ctx.feed(sendReq...)
	assert.Equal(t, sbTTYPEIs("MTTS 5"), ctx.takeSent())

	// The bitfield repeats forever, which is what lets the server detect
	// the end of the cycle.
	ctx.feed(sendReq...)
	assert.Equal(t, sbTTYPEIs("MTTS 5"), ctx.takeSent())
}

func TestTTYPE_MNESFlagFollowsNewEnvironState(t *testing.T) {
	ttype := NewTTYPE(TTYPEOptions{TerminalTypes: []string{"NEGOTEL"}, MTTS: MTTSAnsi})
	ctx := newTestContext(t, plugin.ModeClient, ttype)
	ctx.takeSent()
	ctx.feed(0xFF, 0xFD, 0x18)
	ctx.takeSent()

	ctx.SharedSet(SharedKeyNewEnvironActive, true)

	sendReq := envelope(OptTTYPE, []byte{ttypeSEND})
	ctx.feed(sendReq...) // NEGOTEL
	ctx.takeSent()
	ctx.feed(sendReq...)
	assert.Equal(t, sbTTYPEIs("MTTS 513"), ctx.takeSent())
}

func TestTTYPE_OversizeNameDropped(t *testing.T) {
	ttype := NewTTYPE(DefaultTTYPEOptions())
	ctx := newTestContext(t, plugin.ModeServer, ttype)
	ctx.takeSent()
	ctx.feed(0xFF, 0xFB, 0x18)
	ctx.takeSent()

	long := make([]byte, 400)
	for i := range long {
		long[i] = 'A'
	}
	ctx.feed(envelope(OptTTYPE, append([]byte{ttypeIS}, long...))...)

	assert.Empty(t, ttype.TerminalTypes())
}
