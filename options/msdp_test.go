package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smnsjas/go-negotel/plugin"
)

func TestMSDP_EncodeDecodeRoundTrip(t *testing.T) {
	in := []MSDPPair{
		{Name: "HEALTH", Value: "1200"},
		{Name: "EXITS", Value: []MSDPValue{"n", "e", "sw"}},
		{Name: "ROOM", Value: map[string]MSDPValue{
			"VNUM": "6008",
			"NAME": "The forest clearing",
			"DOORS": map[string]MSDPValue{
				"north": "open",
			},
		}},
	}

	out, err := DecodeMSDP(EncodeMSDP(in))
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, in[0], out[0])
	assert.Equal(t, in[1], out[1])
	assert.Equal(t, in[2], out[2])
}

func TestMSDP_DecodeLiteralBytes(t *testing.T) {
	// MSDP_VAR "LIST" MSDP_VAL "COMMANDS"
	raw := []byte{MSDPVar, 'L', 'I', 'S', 'T', MSDPVal, 'C', 'O', 'M', 'M', 'A', 'N', 'D', 'S'}
	pairs, err := DecodeMSDP(raw)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, MSDPPair{Name: "LIST", Value: "COMMANDS"}, pairs[0])
}

func TestMSDP_DecodeMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  []byte
	}{
		{"value before var", []byte{MSDPVal, 'x'}},
		{"var without val", []byte{MSDPVar, 'X'}},
		{"unterminated array", []byte{MSDPVar, 'X', MSDPVal, MSDPArrayOpen, MSDPVal, 'a'}},
		{"unterminated table", []byte{MSDPVar, 'X', MSDPVal, MSDPTableOpen, MSDPVar, 'k', MSDPVal, 'v'}},
	}
	for _, c := range cases {
		if _, err := DecodeMSDP(c.raw); err == nil {
			t.Errorf("%s: expected decode error", c.name)
		}
	}
}

func newMSDPServer(t *testing.T) (*MSDP, *testContext) {
	t.Helper()
	msdp := NewMSDP(MSDPOptions{
		ReportableVariables: []string{"HEALTH", "MANA"},
		Variables: map[string]func() MSDPValue{
			"HEALTH": func() MSDPValue { return "1200" },
			"MANA":   func() MSDPValue { return "450" },
		},
	})
	ctx := newTestContext(t, plugin.ModeServer, msdp)
	ctx.takeSent() // IAC WILL MSDP
	return msdp, ctx
}

func TestMSDP_ListCommands(t *testing.T) {
	_, ctx := newMSDPServer(t)

	ctx.feed(envelope(OptMSDP, EncodeMSDP([]MSDPPair{{Name: "LIST", Value: "COMMANDS"}}))...)

	want := envelope(OptMSDP, EncodeMSDP([]MSDPPair{{
		Name:  "COMMANDS",
		Value: []MSDPValue{"LIST", "REPORT", "UNREPORT", "SEND", "RESET"},
	}}))
	assert.Equal(t, want, ctx.takeSent())
}

func TestMSDP_ReportSubscribesAndSendsValue(t *testing.T) {
	msdp, ctx := newMSDPServer(t)

	ctx.feed(envelope(OptMSDP, EncodeMSDP([]MSDPPair{{Name: "REPORT", Value: "HEALTH"}}))...)

	want := envelope(OptMSDP, EncodeMSDP([]MSDPPair{{Name: "HEALTH", Value: "1200"}}))
	assert.Equal(t, want, ctx.takeSent())
	assert.Equal(t, []string{"HEALTH"}, msdp.ReportedVariables())

	ctx.feed(envelope(OptMSDP, EncodeMSDP([]MSDPPair{{Name: "UNREPORT", Value: "HEALTH"}}))...)
	assert.Empty(t, msdp.ReportedVariables())
}

func TestMSDP_ReportRejectsUnknownVariable(t *testing.T) {
	msdp, ctx := newMSDPServer(t)

	ctx.feed(envelope(OptMSDP, EncodeMSDP([]MSDPPair{{Name: "REPORT", Value: "GOLD"}}))...)

	assert.Empty(t, ctx.takeSent())
	assert.Empty(t, msdp.ReportedVariables())
}

func TestMSDP_ResetClearsReported(t *testing.T) {
	msdp, ctx := newMSDPServer(t)

	ctx.feed(envelope(OptMSDP, EncodeMSDP([]MSDPPair{
		{Name: "REPORT", Value: []MSDPValue{"HEALTH", "MANA"}},
	}))...)
	require.Equal(t, []string{"HEALTH", "MANA"}, msdp.ReportedVariables())

	ctx.feed(envelope(OptMSDP, EncodeMSDP([]MSDPPair{{Name: "RESET", Value: "REPORTABLE_VARIABLES"}}))...)
	assert.Empty(t, msdp.ReportedVariables())
}

func TestMSDP_NonCommandVariableReachesCallback(t *testing.T) {
	msdp, ctx := newMSDPServer(t)

	var gotName string
	var gotValue MSDPValue
	msdp.OnVariable(func(name string, value MSDPValue) { gotName, gotValue = name, value })

	ctx.feed(envelope(OptMSDP, EncodeMSDP([]MSDPPair{{Name: "CLIENT_NAME", Value: "tintin"}}))...)

	assert.Equal(t, "CLIENT_NAME", gotName)
	assert.Equal(t, "tintin", gotValue)
}
