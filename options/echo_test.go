package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smnsjas/go-negotel/plugin"
)

func TestEcho_ServerAcceptsDoEcho(t *testing.T) {
	echo := NewEcho(DefaultEchoOptions())
	ctx := newTestContext(t, plugin.ModeServer, echo)

	offer := ctx.takeSent()
	require.Equal(t, []byte{IAC, WILL, OptEcho}, offer, "server offers WILL ECHO at init")

	// IAC DO ECHO
	ctx.feed(0xFF, 0xFD, 0x01)

	assert.Empty(t, ctx.takeSent(), "DO confirming our WILL produces no response")
	assert.True(t, echo.IsEchoing())
}

func TestEcho_ClientRespondsToWillEcho(t *testing.T) {
	echo := NewEcho(DefaultEchoOptions())
	ctx := newTestContext(t, plugin.ModeClient, echo)
	require.Empty(t, ctx.takeSent(), "client makes no initial offer")

	// IAC WILL ECHO
	ctx.feed(0xFF, 0xFB, 0x01)

	assert.Equal(t, []byte{IAC, DO, OptEcho}, ctx.takeSent())
	assert.True(t, echo.IsEchoing())
}

func TestEcho_AutoEchoWritesAcceptedBytesBack(t *testing.T) {
	echo := NewEcho(EchoOptions{AutoEcho: true})
	ctx := newTestContext(t, plugin.ModeServer, echo)
	ctx.takeSent()
	ctx.feed(0xFF, 0xFD, 0x01) // activate WillDo

	ctx.feed('h', 'i')
	assert.Equal(t, []byte("hi"), ctx.takeSent())
}

func TestEcho_AutoEchoInactiveUntilNegotiated(t *testing.T) {
	echo := NewEcho(EchoOptions{AutoEcho: true})
	ctx := newTestContext(t, plugin.ModeServer, echo)
	ctx.takeSent()

	ctx.feed('h', 'i')
	assert.Empty(t, ctx.takeSent())
}
