// Package cliflags implements the command-line surface described in
// spec.md §6: an external collaborator, parsed with the standard `flag`
// package (grounded on other_examples' logpipe.go, the only flag-parsing
// precedent anywhere in the retrieval pack — no CLI framework appears in
// any complete example repo outside dev-tooling).
package cliflags

import (
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/lineio/netline/internal/codec"
	"github.com/lineio/netline/internal/session"
)

// Args is the parsed command line, ready to be turned into a session.Config.
type Args struct {
	Host string
	Port int

	TLS        bool
	ServerName string
	CRLF       bool
	Encoding   string

	MaxLineLength int
	ShowTimes     bool
	Transcript    string

	StartupScript string
	StartupWaitMS int

	BuildInfo bool
	Version   bool
}

// BuildInfo is the information reported by --build-info and -V/--version.
// Populated from the linker-settable version/commit/date variables in
// cmd/netline, which default to "dev", "none" and "unknown" for unlinked
// builds.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("netline %s (commit %s, built %s)", b.Version, b.Commit, b.Date)
}

// Parse parses argv (excluding the program name) against fs's output
// writer for usage text. It returns ErrHelp-wrapping errors for -h/--help
// failures exactly as the standard flag package does, so callers can
// distinguish "user asked for help" from "user made a mistake".
func Parse(argv []string, usageOut io.Writer) (Args, error) {
	fs := flag.NewFlagSet("netline", flag.ContinueOnError)
	fs.SetOutput(usageOut)

	var a Args
	fs.BoolVar(&a.TLS, "tls", false, "connect using TLS")
	fs.StringVar(&a.ServerName, "servername", "", "TLS server name for SNI and verification (default: <host>)")
	fs.BoolVar(&a.CRLF, "crlf", false, "terminate outgoing lines with CRLF instead of LF")
	fs.StringVar(&a.Encoding, "E", "utf8", "encoding policy: utf8, utf8-latin1, or latin1")
	fs.StringVar(&a.Encoding, "encoding", "utf8", "encoding policy: utf8, utf8-latin1, or latin1")
	fs.IntVar(&a.MaxLineLength, "max-line-length", 65535, "maximum bytes per line (>= 1)")
	fs.BoolVar(&a.ShowTimes, "t", false, "prefix terminal output with [HH:MM:SS]")
	fs.BoolVar(&a.ShowTimes, "show-times", false, "prefix terminal output with [HH:MM:SS]")
	fs.StringVar(&a.Transcript, "T", "", "append a JSON-Lines transcript to this file")
	fs.StringVar(&a.Transcript, "transcript", "", "append a JSON-Lines transcript to this file")
	fs.StringVar(&a.StartupScript, "S", "", "replay lines from this file before interactive input")
	fs.StringVar(&a.StartupScript, "startup-script", "", "replay lines from this file before interactive input")
	fs.IntVar(&a.StartupWaitMS, "startup-wait-ms", 500, "delay in milliseconds before each startup script line")
	fs.BoolVar(&a.BuildInfo, "build-info", false, "print build information and exit")
	fs.BoolVar(&a.Version, "V", false, "print version and exit")
	fs.BoolVar(&a.Version, "version", false, "print version and exit")

	if err := fs.Parse(argv); err != nil {
		return a, err
	}

	if a.BuildInfo || a.Version {
		return a, nil
	}

	rest := fs.Args()
	if len(rest) != 2 {
		fs.Usage()
		return a, errors.Errorf("expected <host> <port>, got %d positional argument(s)", len(rest))
	}
	a.Host = rest[0]
	port, err := strconv.Atoi(rest[1])
	if err != nil || port < 0 || port > 65535 {
		return a, errors.Errorf("invalid port %q", rest[1])
	}
	a.Port = port

	if a.ServerName == "" {
		a.ServerName = a.Host
	}
	if a.MaxLineLength < 1 {
		return a, errors.New("--max-line-length must be >= 1")
	}
	if _, ok := codec.ParsePolicy(a.Encoding); !ok {
		return a, errors.Errorf("invalid --encoding %q: want utf8, utf8-latin1, or latin1", a.Encoding)
	}

	return a, nil
}

// ToConfig builds a session.Config from parsed Args, defaulted via
// session.WithDefaults.
func ToConfig(a Args) session.Config {
	policy, _ := codec.ParsePolicy(a.Encoding)
	term := session.LF
	if a.CRLF {
		term = session.CRLF
	}
	return session.WithDefaults(session.Config{
		Host:              a.Host,
		Port:              a.Port,
		TLS:               a.TLS,
		ServerName:        a.ServerName,
		Encoding:          policy,
		Terminator:        term,
		MaxLineLength:     a.MaxLineLength,
		ShowTimes:         a.ShowTimes,
		TranscriptPath:    a.Transcript,
		StartupScriptPath: a.StartupScript,
		StartupWaitMS:     a.StartupWaitMS,
	})
}
