package session

import (
	"time"

	"github.com/imdario/mergo"

	"github.com/lineio/netline/internal/codec"
)

// Terminator selects the outgoing line terminator, fixed for the session.
type Terminator int

const (
	LF Terminator = iota
	CRLF
)

// Bytes returns the wire representation of the terminator.
func (t Terminator) Bytes() []byte {
	if t == CRLF {
		return []byte("\r\n")
	}
	return []byte("\n")
}

// Config is the immutable session configuration described in spec.md §3,
// constructed once by the outer program and passed by value to the Engine.
type Config struct {
	Host string
	Port int

	TLS        bool
	ServerName string

	Encoding   codec.Policy
	Terminator Terminator

	MaxLineLength int

	ShowTimes bool

	TranscriptPath string

	StartupScriptPath string
	StartupWaitMS     int
}

// DefaultConfig supplies the defaults named in spec.md §6: max line length
// 65535, startup wait 500ms, LF terminator, utf8 encoding. Following the
// teacher's client.DefaultConfig / cli.DefaultConfig pattern, a caller-built
// Config{} is merged against this with mergo so unset fields resolve
// sanely.
var DefaultConfig = Config{
	MaxLineLength: 65535,
	StartupWaitMS: 500,
	Terminator:    LF,
	Encoding:      codec.Utf8,
}

// WithDefaults returns cfg with every zero-valued field filled in from
// DefaultConfig.
func WithDefaults(cfg Config) Config {
	resolved := cfg
	_ = mergo.Merge(&resolved, DefaultConfig)
	return resolved
}

// StartupWait returns StartupWaitMS as a time.Duration.
func (c Config) StartupWait() time.Duration {
	return time.Duration(c.StartupWaitMS) * time.Millisecond
}
