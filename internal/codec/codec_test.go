package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePolicy(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want Policy
	}{
		{"utf8", Utf8},
		{"utf8-latin1", Utf8OrLatin1},
		{"latin1", Latin1},
	} {
		got, ok := ParsePolicy(tt.in)
		require.True(t, ok, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, ok := ParsePolicy("nonsense")
	assert.False(t, ok)
}

func TestDecodeUtf8LossyReplacesInvalidRun(t *testing.T) {
	// Scenario 1 from spec.md §8.
	in := []byte("Hi\xC3\x28there\n")
	got := Decode(in, Utf8)
	assert.Equal(t, "Hi�(there\n", got)
}

func TestDecodeUtf8LossyCollapsesMaximalSubpartToOneReplacement(t *testing.T) {
	// Lead byte + one valid continuation byte + one byte that breaks the
	// sequence: the whole two-byte subpart is one maximal invalid run, so
	// it collapses to a single U+FFFD, not one per byte.
	in := []byte("\xE2\x82\x28")
	got := Decode(in, Utf8)
	assert.Equal(t, "�(", got)
}

func TestDecodeUtf8OrLatin1FallsBackWholeLine(t *testing.T) {
	// Scenario 2 from spec.md §8.
	in := []byte("Hi\xC3\x28there\n")
	got := Decode(in, Utf8OrLatin1)
	assert.Equal(t, "HiÃ(there\n", got)
}

func TestDecodeUtf8OrLatin1KeepsValidUtf8(t *testing.T) {
	in := []byte("héllo\n")
	got := Decode(in, Utf8OrLatin1)
	assert.Equal(t, "héllo\n", got)
}

func TestDecodeLatin1BytewiseIdentity(t *testing.T) {
	in := []byte{0x63, 0x61, 0x66, 0xe9}
	got := Decode(in, Latin1)
	assert.Equal(t, "café", got)
}

func TestEncodeLatin1SubstitutesAboveFF(t *testing.T) {
	// Scenario 3 from spec.md §8.
	wire, echoed := Encode("café ☃\n", Latin1)
	assert.Equal(t, []byte{0x63, 0x61, 0x66, 0xe9, 0x20, 0x3f, 0x0a}, wire)
	assert.Equal(t, "café ?\n", echoed)
}

func TestEncodeUtf8IsIdentity(t *testing.T) {
	wire, echoed := Encode("héllo\n", Utf8)
	assert.Equal(t, []byte("héllo\n"), wire)
	assert.Equal(t, "héllo\n", echoed)
}

func TestRoundTripLatin1Bounded(t *testing.T) {
	for _, s := range []string{"hello", "café", "ÿ"} {
		wire, _ := Encode(s, Latin1)
		got := Decode(wire, Latin1)
		assert.Equal(t, s, got)
	}
}
