package options

// Negotiation tracks per-direction WILL/WONT/DO/DONT arbitration state
// for one Telnet option code, implementing the option response rule
// once so every option plugin in this package shares the
// same safe-negotiation behavior instead of reimplementing it.
//
// Two directions exist, matching RFC 854: WillDo is "we send WILL, peer
// answers DO" (we perform the option, e.g. the server echoing); DoWill is
// "we send DO, peer answers WILL" (the peer performs it, e.g. a client
// reporting NAWS). A Negotiation tracks both directions independently,
// since nothing prevents an option from being active in both at once
// (CHARSET, GMCP).
type Negotiation struct {
	code byte

	// offeredWill/offeredDo latch while our own WILL/DO offer is on the
	// wire awaiting the peer's answer; a confirmation then activates the
	// direction without any further response from us (our offer already
	// was one half of the handshake).
	offeredWill bool
	offeredDo   bool

	// answeredWill/answeredDo latch once this side has responded to (or
	// pre-empted, via its own offer) the peer's WILL/DO, so a repeated
	// offer is never answered twice.
	answeredWill bool
	answeredDo   bool

	activeWillDo bool
	activeDoWill bool
}

// NewNegotiation creates tracking state for one option code.
func NewNegotiation(code byte) *Negotiation {
	return &Negotiation{code: code}
}

// ActiveWillDo reports whether we WILL and the peer has answered DO: we
// are the one performing/sending for this option.
func (n *Negotiation) ActiveWillDo() bool { return n.activeWillDo }

// ActiveDoWill reports whether we DO and the peer has answered WILL: the
// peer is the one performing/sending for this option.
func (n *Negotiation) ActiveDoWill() bool { return n.activeDoWill }

// Active reports whether either direction is active.
func (n *Negotiation) Active() bool { return n.activeWillDo || n.activeDoWill }

// OfferWill returns IAC WILL <code>, the initial offer a side makes when
// it wants to start performing the option. It returns nil while a
// previous offer is still pending or the direction is already active:
// an offer pending a response is never re-offered.
func (n *Negotiation) OfferWill() []byte {
	if n.offeredWill || n.activeWillDo {
		return nil
	}
	n.offeredWill = true
	return []byte{IAC, WILL, n.code}
}

// OfferDo returns IAC DO <code>, the initial offer requesting the peer
// perform the option. Idempotent like OfferWill.
func (n *Negotiation) OfferDo() []byte {
	if n.offeredDo || n.activeDoWill {
		return nil
	}
	n.offeredDo = true
	return []byte{IAC, DO, n.code}
}

// HandleWill processes a received WILL <code> and returns the response
// bytes to send, or nil when no response is due: either the WILL confirms
// our own pending DO (the handshake is complete, the option goes active),
// or it repeats an offer we already answered, which must not be
// re-answered lest the peers loop. weWant reports whether this side accepts the peer
// performing the option.
func (n *Negotiation) HandleWill(weWant bool) []byte {
	if n.offeredDo {
		n.offeredDo = false
		n.answeredWill = true
		n.activeDoWill = true
		return nil
	}
	if n.answeredWill {
		return nil
	}
	n.answeredWill = true
	n.activeDoWill = weWant
	if weWant {
		return []byte{IAC, DO, n.code}
	}
	return []byte{IAC, DONT, n.code}
}

// HandleDo processes a received DO <code>, the mirror of HandleWill for
// the WillDo direction: a DO confirming our pending WILL activates the
// option silently; a fresh DO is answered WILL or WONT exactly once.
func (n *Negotiation) HandleDo(weWant bool) []byte {
	if n.offeredWill {
		n.offeredWill = false
		n.answeredDo = true
		n.activeWillDo = true
		return nil
	}
	if n.answeredDo {
		return nil
	}
	n.answeredDo = true
	n.activeWillDo = weWant
	if weWant {
		return []byte{IAC, WILL, n.code}
	}
	return []byte{IAC, WONT, n.code}
}

// HandleWont processes a received WONT <code>: a refusal of our pending
// DO needs no acknowledgement; an active DoWill direction is withdrawn
// and acknowledged with DONT.
func (n *Negotiation) HandleWont() []byte {
	n.offeredDo = false
	wasActive := n.activeDoWill
	n.activeDoWill = false
	n.answeredWill = false
	if wasActive {
		return []byte{IAC, DONT, n.code}
	}
	return nil
}

// HandleDont processes a received DONT <code>, the mirror of
// HandleWont for the WillDo direction.
func (n *Negotiation) HandleDont() []byte {
	n.offeredWill = false
	wasActive := n.activeWillDo
	n.activeWillDo = false
	n.answeredDo = false
	if wasActive {
		return []byte{IAC, WONT, n.code}
	}
	return nil
}
