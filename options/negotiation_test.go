package options

import (
	"bytes"
	"testing"
)

func TestNegotiation_PeerWillAnsweredOnce(t *testing.T) {
	n := NewNegotiation(OptNAWS)

	got := n.HandleWill(true)
	want := []byte{IAC, DO, OptNAWS}
	if !bytes.Equal(got, want) {
		t.Fatalf("HandleWill = % X, want % X", got, want)
	}
	if !n.ActiveDoWill() {
		t.Fatal("DoWill direction should be active after WILL/DO")
	}

	if got := n.HandleWill(true); got != nil {
		t.Fatalf("repeated WILL must not be re-answered, got % X", got)
	}
}

func TestNegotiation_PeerWillRefused(t *testing.T) {
	n := NewNegotiation(OptEcho)

	got := n.HandleWill(false)
	want := []byte{IAC, DONT, OptEcho}
	if !bytes.Equal(got, want) {
		t.Fatalf("HandleWill = % X, want % X", got, want)
	}
	if n.Active() {
		t.Fatal("refused option must not be active")
	}
}

func TestNegotiation_OfferWillConfirmedByDo(t *testing.T) {
	n := NewNegotiation(OptEcho)

	offer := n.OfferWill()
	if want := []byte{IAC, WILL, OptEcho}; !bytes.Equal(offer, want) {
		t.Fatalf("OfferWill = % X, want % X", offer, want)
	}
	if again := n.OfferWill(); again != nil {
		t.Fatalf("pending offer must not be re-offered, got % X", again)
	}

	// The peer's DO completes our handshake: no response bytes, but the
	// direction goes active.
	if got := n.HandleDo(true); got != nil {
		t.Fatalf("DO confirming our WILL must not be answered, got % X", got)
	}
	if !n.ActiveWillDo() {
		t.Fatal("WillDo direction should be active after WILL/DO")
	}
}

func TestNegotiation_DontDeactivatesWithAck(t *testing.T) {
	n := NewNegotiation(OptEcho)
	n.OfferWill()
	n.HandleDo(true)

	got := n.HandleDont()
	if want := []byte{IAC, WONT, OptEcho}; !bytes.Equal(got, want) {
		t.Fatalf("HandleDont = % X, want % X", got, want)
	}
	if n.Active() {
		t.Fatal("option must be inactive after DONT")
	}

	if got := n.HandleDont(); got != nil {
		t.Fatalf("DONT while inactive needs no acknowledgement, got % X", got)
	}
}

func TestNegotiation_WontWhileInactiveIsSilent(t *testing.T) {
	n := NewNegotiation(OptTTYPE)
	if got := n.HandleWont(); got != nil {
		t.Fatalf("WONT for an option never active needs no response, got % X", got)
	}
}
