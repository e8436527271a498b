package framer

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, r io.Reader, maxLen int) []Line {
	t.Helper()
	f := New(r, maxLen)
	var lines []Line
	for {
		l, err := f.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		lines = append(lines, l)
	}
	return lines
}

func TestSimpleLines(t *testing.T) {
	lines := collect(t, bytes.NewReader([]byte("foo\nbar\n")), 65535)
	require.Len(t, lines, 2)
	assert.Equal(t, "foo\n", string(lines[0].Payload))
	assert.True(t, lines[0].Terminated)
	assert.Equal(t, "bar\n", string(lines[1].Payload))
}

func TestEmptyStreamYieldsNoLines(t *testing.T) {
	lines := collect(t, bytes.NewReader(nil), 65535)
	assert.Empty(t, lines)
}

func TestUnterminatedFragmentAtEOF(t *testing.T) {
	lines := collect(t, bytes.NewReader([]byte("partial")), 65535)
	require.Len(t, lines, 1)
	assert.Equal(t, "partial", string(lines[0].Payload))
	assert.False(t, lines[0].Terminated)
}

func TestExactlyMaxLengthWithoutNewline(t *testing.T) {
	// Boundary behaviour from spec.md §8: inbound stream with exactly
	// L-byte line without newline -> one recv of those L bytes.
	payload := bytes.Repeat([]byte("a"), 5)
	lines := collect(t, bytes.NewReader(payload), 5)
	require.Len(t, lines, 1)
	assert.Equal(t, payload, lines[0].Payload)
	assert.False(t, lines[0].Terminated)
}

func TestOverflowSplitsSyntheticLine(t *testing.T) {
	// Boundary behaviour from spec.md §8: L+1 bytes followed by newline ->
	// one recv of L bytes (no newline), then one recv of 1 byte + newline.
	lines := collect(t, bytes.NewReader([]byte("abcdef\n")), 5)
	require.Len(t, lines, 2)
	assert.Equal(t, "abcde", string(lines[0].Payload))
	assert.False(t, lines[0].Terminated)
	assert.Equal(t, "f\n", string(lines[1].Payload))
	assert.True(t, lines[1].Terminated)
}

func TestMaxLineLengthFiveScenario(t *testing.T) {
	// Scenario 4 from spec.md §8.
	lines := collect(t, bytes.NewReader([]byte("abcdef\n")), 5)
	require.Len(t, lines, 2)
	assert.Equal(t, "abcde", string(lines[0].Payload))
	assert.Equal(t, "f\n", string(lines[1].Payload))
}

func TestNoEmittedLineExceedsMaxLength(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 10007)
	payload = append(payload, '\n')
	for _, maxLen := range []int{1, 2, 7, 100, 10000} {
		lines := collect(t, bytes.NewReader(append([]byte{}, payload...)), maxLen)
		for _, l := range lines {
			assert.LessOrEqual(t, len(l.Payload), maxLen)
		}
	}
}

func TestConcatenationOfPayloadsReproducesStream(t *testing.T) {
	payload := []byte("hello\nworld this is a long line that exceeds the cap\nshort\nfinal-no-newline")
	for _, maxLen := range []int{1, 3, 10, 1000} {
		lines := collect(t, bytes.NewReader(append([]byte{}, payload...)), maxLen)
		var buf bytes.Buffer
		for _, l := range lines {
			buf.Write(l.Payload)
		}
		assert.Equal(t, payload, buf.Bytes())
	}
}

func TestTerminatedLineLengthInvariant(t *testing.T) {
	payload := []byte("ab\ncd\n")
	lines := collect(t, bytes.NewReader(payload), 65535)
	for _, l := range lines {
		if l.Terminated {
			assert.GreaterOrEqual(t, len(l.Payload), 1)
			assert.LessOrEqual(t, len(l.Payload), 65535)
		}
	}
}

func TestReFramingIsIdempotent(t *testing.T) {
	payload := []byte("one\ntwo\nthreeeeeeeeeeeeeeeeeeeee\nfour")
	maxLen := 6
	first := collect(t, bytes.NewReader(payload), maxLen)

	var buf bytes.Buffer
	for _, l := range first {
		buf.Write(l.Payload)
	}
	second := collect(t, bytes.NewReader(buf.Bytes()), maxLen)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Payload, second[i].Payload)
	}
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }

func TestReadErrorPropagates(t *testing.T) {
	sentinel := io.ErrClosedPipe
	f := New(errReader{sentinel}, 100)
	_, err := f.Next()
	assert.ErrorIs(t, err, sentinel)
}
