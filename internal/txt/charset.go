// Package txt resolves Telnet CHARSET names to concrete text encodings
// and ranks a peer's offered names against a configured preference order.
//
// The Telnet CHARSET option (RFC 2066) exchanges names as plain ASCII
// tokens ("UTF-8", "ISO-8859-1", ...); this package is the only place in
// the module that turns those tokens into an actual byte<->rune
// transcoding, via golang.org/x/text's canonical encoding registry.
package txt

import (
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
)

// Canonical returns the canonical lowercase name for a charset token
// (ASCII case-insensitive) and whether it maps to a known encoding.
// "utf8", "UTF-8", "unicode-1-1-utf-8" all canonicalize to "utf-8".
//
// Resolution is two-tier: the IANA/MIME registry first (so "ISO-8859-1"
// stays iso-8859-1 rather than aliasing to windows-1252, as the WHATWG
// index would have it), then the WHATWG label index as a lenient
// fallback for the sloppy spellings clients actually send.
func Canonical(name string) (string, bool) {
	enc, ok := Lookup(name)
	if !ok {
		return "", false
	}
	if canon, err := ianaindex.MIME.Name(enc); err == nil {
		return strings.ToLower(canon), true
	}
	if canon, err := htmlindex.Name(enc); err == nil {
		return strings.ToLower(canon), true
	}
	return "", false
}

// Lookup returns the encoding.Encoding for a charset token, or false if
// the name does not map to any known encoding.
func Lookup(name string) (encoding.Encoding, bool) {
	if enc, err := ianaindex.MIME.Encoding(name); err == nil && enc != nil {
		return enc, true
	}
	if enc, err := htmlindex.Get(name); err == nil {
		return enc, true
	}
	return nil, false
}

// Decode transcodes bytes in the named encoding to UTF-8. Unmappable
// names decode as-is (ISO-8859-1 is a safe identity fallback for the
// default SessionEncoding).
func Decode(name string, b []byte) ([]byte, error) {
	enc, ok := Lookup(name)
	if !ok {
		return b, nil
	}
	return enc.NewDecoder().Bytes(b)
}

// Encode transcodes UTF-8 bytes into the named encoding.
func Encode(name string, b []byte) ([]byte, error) {
	enc, ok := Lookup(name)
	if !ok {
		return b, nil
	}
	return enc.NewEncoder().Bytes(b)
}

// Rank selects the best charset from offered according to preference,
// returning the winning name in its offered spelling (the ACCEPTED reply
// echoes the peer's own token; canonicalize separately for the session
// encoding).
//
// Only offered names that canonicalize to a known encoding participate;
// an unknown name never wins even if it is first in either list (spec
// open question: the head of the preference list never loses to an
// earlier but unmappable offered name). Rank is the offered name's
// position in preference; ties among offered names resolve to whichever
// appeared earlier in offered.
func Rank(offered []string, preference []string) (selected string, ok bool) {
	bestRank := len(preference) + 1
	bestName := ""
	found := false

	prefIndex := make(map[string]int, len(preference))
	for i, p := range preference {
		canon, mappable := Canonical(p)
		if !mappable {
			continue
		}
		if _, exists := prefIndex[canon]; !exists {
			prefIndex[canon] = i
		}
	}

	for _, o := range offered {
		canon, mappable := Canonical(o)
		if !mappable {
			continue
		}
		rank, inPreference := prefIndex[canon]
		if !inPreference {
			continue
		}
		if rank < bestRank {
			bestRank = rank
			bestName = o
			found = true
		}
	}

	return bestName, found
}

// EqualFold reports whether two charset tokens name the same charset,
// either as literal ASCII-case-insensitive strings or after
// canonicalization (so "UTF8" and "unicode-1-1-utf-8" compare equal).
func EqualFold(a, b string) bool {
	if strings.EqualFold(a, b) {
		return true
	}
	ca, okA := Canonical(a)
	cb, okB := Canonical(b)
	return okA && okB && ca == cb
}
