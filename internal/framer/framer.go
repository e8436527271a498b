// Package framer implements the Line Framer described in spec.md §4.2: a
// stateful byte accumulator that turns an inbound byte stream into complete
// lines, enforcing a hard per-line byte ceiling.
//
// Grounded on the teacher's netconf/rfc6242.Decoder, which drives a
// bufio.Scanner with a custom split function (there: FramerFn, chunked vs.
// end-of-message; here: one fixed, length-capped newline split). The
// scanner's internal re-slicing buffer plays the role of the teacher's
// pipe-relay for over-sized tokens, without needing the pipe: every emitted
// token here is bounded by maxLineLength by construction, so it always fits
// the caller's buffer in one Scan.
package framer

import (
	"bufio"
	"bytes"
	"io"
)

// Line is a decoded textual unit: the spec.md §3 Line type, still holding
// raw bytes (decoding into text happens one layer up, in internal/codec).
type Line struct {
	// Payload is the raw bytes of the line, including the trailing '\n' if
	// Terminated is true.
	Payload []byte
	// Terminated reports whether a '\n' in the source stream ends this
	// line, as opposed to a final unterminated fragment at EOF or a
	// synthetic split forced by the length ceiling.
	Terminated bool
}

// Framer reads length-capped lines from r.
type Framer struct {
	scanner *bufio.Scanner
	maxLen  int
}

// New creates a Framer reading from r, splitting at '\n' and never
// emitting a line longer than maxLineLength bytes. maxLineLength must be
// >= 1.
func New(r io.Reader, maxLineLength int) *Framer {
	if maxLineLength < 1 {
		maxLineLength = 1
	}
	f := &Framer{maxLen: maxLineLength}
	f.scanner = bufio.NewScanner(r)

	initial := maxLineLength
	if initial > 4096 {
		initial = 4096
	}
	f.scanner.Buffer(make([]byte, 0, initial), maxLineLength)
	f.scanner.Split(f.split)
	return f
}

// Next returns the next complete or length-capped line. It returns io.EOF
// once the underlying reader is exhausted and no bytes remain buffered; any
// other error is a ReadError per spec.md §7.
func (f *Framer) Next() (Line, error) {
	if !f.scanner.Scan() {
		if err := f.scanner.Err(); err != nil {
			return Line{}, err
		}
		return Line{}, io.EOF
	}
	tok := f.scanner.Bytes()
	payload := make([]byte, len(tok))
	copy(payload, tok)
	return Line{Payload: payload, Terminated: len(payload) > 0 && payload[len(payload)-1] == '\n'}, nil
}

// split implements spec.md §4.2's algorithm as a bufio.SplitFunc: find the
// next '\n' within the first maxLen bytes; if present, the line (including
// the newline) is a complete token. Otherwise, once maxLen bytes have
// accumulated without a newline, emit exactly maxLen bytes as a line with
// no newline (the overflow case, invariant iii). At EOF, whatever remains
// is emitted as a final unterminated line.
func (f *Framer) split(data []byte, atEOF bool) (advance int, token []byte, err error) {
	limit := len(data)
	if limit > f.maxLen {
		limit = f.maxLen
	}
	if nl := bytes.IndexByte(data[:limit], '\n'); nl >= 0 {
		return nl + 1, data[:nl+1], nil
	}
	if len(data) >= f.maxLen {
		return f.maxLen, data[:f.maxLen], nil
	}
	if atEOF {
		if len(data) == 0 {
			return 0, nil, nil
		}
		return len(data), data, nil
	}
	// Request more data.
	return 0, nil, nil
}
