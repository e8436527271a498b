// Command netline is a line-oriented TCP/TLS client: it connects to a host
// and port, exchanges newline-delimited text with the operator's terminal,
// and optionally records a JSON-Lines transcript.
//
// Grounded on the teacher's cmd-less CLI layering: wiring lives entirely in
// main, built from the package-level constructors (cliflags.Parse,
// session.New, sink.New), matching the style of os/signal-driven shutdown
// seen in other_examples' logpipe.go.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lineio/netline/internal/cliflags"
	"github.com/lineio/netline/internal/input"
	"github.com/lineio/netline/internal/session"
	"github.com/lineio/netline/internal/sink"
)

// version, commit, and date are overridden at build time via
// -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	args, err := cliflags.Parse(argv, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	info := cliflags.BuildInfo{Version: version, Commit: commit, Date: date}
	if args.BuildInfo || args.Version {
		fmt.Println(info.String())
		return 0
	}

	cfg := cliflags.ToConfig(args)
	logger := log.New(os.Stderr, "netline: ", log.LstdFlags)

	src, prompt, closeSrc, err := buildInputSource(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "netline: %v\n", err)
		return 1
	}
	defer closeSrc()

	sinkW, err := sink.New(sink.Options{
		Terminal:       os.Stdout,
		Prompt:         prompt,
		ShowTimes:      cfg.ShowTimes,
		TranscriptPath: cfg.TranscriptPath,
		Logger:         logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "netline: failed to open transcript: %v\n", err)
		return 1
	}
	defer sinkW.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := session.New(cfg, sinkW, src, session.WithLogger(logger))
	if err := eng.Run(ctx); err != nil {
		return 1
	}
	return 0
}

// buildInputSource selects the interactive editor, or a scripted source
// that falls back to it, per spec.md §4.3 step 5. It also returns the
// interactive editor as a PromptWriter so the Sink can print above the
// in-progress prompt. If the editor cannot put stdin into raw mode (for
// example, stdin is not a terminal), that failure is returned as an error.
// The returned closer always restores the terminal, whether or not a
// script was used.
func buildInputSource(cfg session.Config) (input.Source, input.PromptWriter, func(), error) {
	interactive, err := input.NewInteractive(int(os.Stdin.Fd()), os.Stdin, os.Stdout)
	if err != nil {
		return nil, nil, nil, err
	}
	closer := func() { _ = interactive.Close() }

	if cfg.StartupScriptPath == "" {
		return interactive, interactive, closer, nil
	}

	f, err := os.Open(cfg.StartupScriptPath)
	if err != nil {
		_ = interactive.Close()
		return nil, nil, nil, err
	}
	scripted := input.NewScripted(f, f, cfg.StartupWait(), interactive)
	return scripted, interactive, closer, nil
}
