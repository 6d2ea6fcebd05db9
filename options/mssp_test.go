package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smnsjas/go-negotel/plugin"
)

func newMSSPServer(t *testing.T) (*MSSP, *testContext) {
	t.Helper()
	mssp := NewMSSP(MSSPOptions{Variables: []MSSPEntry{
		{Name: "NAME", Value: MSSPStringVal(func() string { return "Darkwind" })},
		{Name: "PLAYERS", Value: MSSPIntVal(func() int { return 52 })},
		{Name: "ANSI", Value: MSSPBoolVal(func() bool { return true })},
		{Name: "PORT", Value: MSSPListVal(func() []string { return []string{"4000", "4001"} })},
	}})
	ctx := newTestContext(t, plugin.ModeServer, mssp)
	ctx.takeSent() // IAC WILL MSSP
	return mssp, ctx
}

func TestMSSP_DoTriggersAdvertisement(t *testing.T) {
	_, ctx := newMSSPServer(t)

	// IAC DO MSSP
	ctx.feed(0xFF, 0xFD, 0x46)

	var want []byte
	want = append(want, MSSPVarMarker)
	want = append(want, "NAME"...)
	want = append(want, MSSPValMarker)
	want = append(want, "Darkwind"...)
	want = append(want, MSSPVarMarker)
	want = append(want, "PLAYERS"...)
	want = append(want, MSSPValMarker)
	want = append(want, "52"...)
	want = append(want, MSSPVarMarker)
	want = append(want, "ANSI"...)
	want = append(want, MSSPValMarker, '1')
	want = append(want, MSSPVarMarker)
	want = append(want, "PORT"...)
	want = append(want, MSSPValMarker)
	want = append(want, "4000"...)
	want = append(want, MSSPValMarker)
	want = append(want, "4001"...)

	assert.Equal(t, envelope(OptMSSP, want), ctx.takeSent())
}

func TestMSSP_AdvertisesOnlyOnce(t *testing.T) {
	_, ctx := newMSSPServer(t)

	ctx.feed(0xFF, 0xFD, 0x46)
	require.NotEmpty(t, ctx.takeSent())

	ctx.feed(0xFF, 0xFD, 0x46)
	assert.Empty(t, ctx.takeSent(), "a repeated DO must not re-advertise")
}

func TestMSSP_ClientDecodesVariables(t *testing.T) {
	mssp := NewMSSP(DefaultMSSPOptions())
	ctx := newTestContext(t, plugin.ModeClient, mssp)
	ctx.takeSent()

	var got map[string][]string
	mssp.OnVariables(func(vars map[string][]string) { got = vars })

	var payload []byte
	payload = append(payload, MSSPVarMarker)
	payload = append(payload, "NAME"...)
	payload = append(payload, MSSPValMarker)
	payload = append(payload, "Darkwind"...)
	payload = append(payload, MSSPVarMarker)
	payload = append(payload, "PORT"...)
	payload = append(payload, MSSPValMarker)
	payload = append(payload, "4000"...)
	payload = append(payload, MSSPValMarker)
	payload = append(payload, "4001"...)
	ctx.feed(envelope(OptMSSP, payload)...)

	require.NotNil(t, got)
	assert.Equal(t, []string{"Darkwind"}, got["NAME"])
	assert.Equal(t, []string{"4000", "4001"}, got["PORT"])
}

func TestMSSP_StandardTableCoversSpecSet(t *testing.T) {
	names := make(map[string]bool, len(StandardMSSPVariables))
	for _, v := range StandardMSSPVariables {
		names[v.Name] = true
	}
	for _, required := range []string{"NAME", "PLAYERS", "UPTIME", "CRAWL DELAY", "PAY: TO PLAY", "HIRING: CODERS"} {
		assert.True(t, names[required], required)
	}
}
