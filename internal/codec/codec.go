// Package codec implements the three encoding policies defined in spec.md
// §3/§4.1: the stateless, per-direction translation between wire bytes and
// text. Decode never fails — invalid input is replaced or reinterpreted
// according to the policy, never rejected.
package codec

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Policy selects one of the three encoding variants. The zero value is
// Utf8.
type Policy int

const (
	Utf8 Policy = iota
	Utf8OrLatin1
	Latin1
)

// ParsePolicy maps the command-line spellings ("utf8", "utf8-latin1",
// "latin1") to a Policy.
func ParsePolicy(s string) (Policy, bool) {
	switch s {
	case "utf8":
		return Utf8, true
	case "utf8-latin1":
		return Utf8OrLatin1, true
	case "latin1":
		return Latin1, true
	default:
		return 0, false
	}
}

func (p Policy) String() string {
	switch p {
	case Utf8:
		return "utf8"
	case Utf8OrLatin1:
		return "utf8-latin1"
	case Latin1:
		return "latin1"
	default:
		return "unknown"
	}
}

// Decode translates wire bytes to text under p. It never returns an error;
// invalid sequences are substituted or the whole line is reinterpreted,
// per policy.
func Decode(b []byte, p Policy) string {
	switch p {
	case Latin1:
		return decodeLatin1(b)
	case Utf8OrLatin1:
		if utf8.Valid(b) {
			return string(b)
		}
		return decodeLatin1(b)
	default: // Utf8
		return decodeUTF8Lossy(b)
	}
}

// Encode translates text to wire bytes under p.
//
// For the UTF-8 policies this is simply []byte(s) (text is always held as
// valid UTF-8 internally). For Latin1, every scalar value above U+00FF is
// replaced with '?' (0x3F); the returned string is the substituted text as
// actually transmitted, so the caller can echo it back in a Send event
// (spec.md §4.1).
func Encode(s string, p Policy) (wire []byte, echoed string) {
	if p != Latin1 {
		return []byte(s), s
	}
	return encodeLatin1(s)
}

// decodeUTF8Lossy replaces each maximal invalid subsequence with exactly one
// U+FFFD, matching the WHATWG substitution rule referenced by spec.md §4.1.
//
// utf8.DecodeRune cannot be used directly for this: it always reports width
// 1 for a malformed sequence, even when several leading bytes of that
// sequence were valid continuation bytes (e.g. a 3-byte lead followed by one
// good continuation byte and then a non-continuation byte). That would
// split one WHATWG "maximal subpart" into several replacement characters.
// This walks the UTF-8 byte-sequence table by hand so a whole maximal
// subpart consumes exactly one U+FFFD.
func decodeUTF8Lossy(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var out []rune
	n := len(b)
	for i := 0; i < n; {
		c := b[i]
		switch {
		case c < 0x80:
			out = append(out, rune(c))
			i++
		case c < 0xC2, c >= 0xF5:
			// Continuation byte or overlong/out-of-range lead byte on its
			// own: invalid lead, maximal subpart length 1.
			out = append(out, utf8.RuneError)
			i++
		case c < 0xE0:
			if i+1 < n && isUTF8Cont(b[i+1]) {
				out = append(out, rune(c&0x1F)<<6|rune(b[i+1]&0x3F))
				i += 2
			} else {
				out = append(out, utf8.RuneError)
				i++
			}
		case c < 0xF0:
			lo, hi := byte(0x80), byte(0xBF)
			if c == 0xE0 {
				lo = 0xA0
			} else if c == 0xED {
				hi = 0x9F
			}
			if i+1 >= n || b[i+1] < lo || b[i+1] > hi {
				out = append(out, utf8.RuneError)
				i++
				continue
			}
			if i+2 < n && isUTF8Cont(b[i+2]) {
				out = append(out, rune(c&0x0F)<<12|rune(b[i+1]&0x3F)<<6|rune(b[i+2]&0x3F))
				i += 3
			} else {
				out = append(out, utf8.RuneError)
				i += 2
			}
		default: // c < 0xF5
			lo, hi := byte(0x80), byte(0xBF)
			if c == 0xF0 {
				lo = 0x90
			} else if c == 0xF4 {
				hi = 0x8F
			}
			if i+1 >= n || b[i+1] < lo || b[i+1] > hi {
				out = append(out, utf8.RuneError)
				i++
				continue
			}
			if i+2 >= n || !isUTF8Cont(b[i+2]) {
				out = append(out, utf8.RuneError)
				i += 2
				continue
			}
			if i+3 < n && isUTF8Cont(b[i+3]) {
				out = append(out, rune(c&0x07)<<18|rune(b[i+1]&0x3F)<<12|rune(b[i+2]&0x3F)<<6|rune(b[i+3]&0x3F))
				i += 4
			} else {
				out = append(out, utf8.RuneError)
				i += 3
			}
		}
	}
	return string(out)
}

func isUTF8Cont(c byte) bool { return c&0xC0 == 0x80 }

// decodeLatin1 maps each byte to the code point of the same numeric value,
// via golang.org/x/text/encoding/charmap's ISO-8859-1 table (an exact
// identity mapping for bytes 0x00-0xFF).
func decodeLatin1(b []byte) string {
	out, _ := charmap.ISO8859_1.NewDecoder().Bytes(b)
	return string(out)
}

// encodeLatin1 emits one byte per scalar value <= 0xFF; scalar values above
// 0xFF become '?' both on the wire and in the echoed text.
func encodeLatin1(s string) (wire []byte, echoed string) {
	wireBuf := make([]byte, 0, len(s))
	echoBuf := make([]rune, 0, len(s))
	for _, r := range s {
		if r <= 0xFF {
			wireBuf = append(wireBuf, byte(r))
			echoBuf = append(echoBuf, r)
			continue
		}
		wireBuf = append(wireBuf, '?')
		echoBuf = append(echoBuf, '?')
	}
	return wireBuf, string(echoBuf)
}
