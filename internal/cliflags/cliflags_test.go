package cliflags

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lineio/netline/internal/codec"
	"github.com/lineio/netline/internal/session"
)

func TestParseDefaults(t *testing.T) {
	a, err := Parse([]string{"example.com", "23"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "example.com", a.Host)
	assert.Equal(t, 23, a.Port)
	assert.False(t, a.TLS)
	assert.Equal(t, "utf8", a.Encoding)
	assert.Equal(t, 65535, a.MaxLineLength)
	assert.Equal(t, 500, a.StartupWaitMS)
	assert.Equal(t, "example.com", a.ServerName)
}

func TestParseServerNameDefaultsToHost(t *testing.T) {
	a, err := Parse([]string{"--tls", "host.example", "443"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "host.example", a.ServerName)
}

func TestParseExplicitServerName(t *testing.T) {
	a, err := Parse([]string{"--tls", "--servername", "other.example", "host.example", "443"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "other.example", a.ServerName)
}

func TestParseRejectsMissingPositionals(t *testing.T) {
	_, err := Parse([]string{"--tls"}, io.Discard)
	assert.Error(t, err)
}

func TestParseRejectsInvalidPort(t *testing.T) {
	_, err := Parse([]string{"host", "not-a-port"}, io.Discard)
	assert.Error(t, err)
}

func TestParseRejectsInvalidEncoding(t *testing.T) {
	_, err := Parse([]string{"-E", "ebcdic", "host", "23"}, io.Discard)
	assert.Error(t, err)
}

func TestParseRejectsZeroMaxLineLength(t *testing.T) {
	_, err := Parse([]string{"--max-line-length", "0", "host", "23"}, io.Discard)
	assert.Error(t, err)
}

func TestParseBuildInfoShortCircuitsPositionals(t *testing.T) {
	a, err := Parse([]string{"--build-info"}, io.Discard)
	require.NoError(t, err)
	assert.True(t, a.BuildInfo)
}

func TestToConfigMapsFlags(t *testing.T) {
	a, err := Parse([]string{"--crlf", "-E", "latin1", "host", "23"}, io.Discard)
	require.NoError(t, err)

	cfg := ToConfig(a)
	assert.Equal(t, session.CRLF, cfg.Terminator)
	assert.Equal(t, codec.Latin1, cfg.Encoding)
	assert.Equal(t, "host", cfg.Host)
	assert.Equal(t, 23, cfg.Port)
}
