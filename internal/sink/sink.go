// Package sink implements the Sink described in spec.md §4.5: fan-out of
// Events to a pretty-printed terminal and an append-only JSON-Lines
// transcript.
package sink

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/lineio/netline/internal/event"
	"github.com/lineio/netline/internal/input"
)

// Sink fans out Events to a terminal writer and, optionally, a transcript
// file. It exclusively owns both for the lifetime of the session (spec.md
// §3: "The Sink exclusively owns the transcript file handle and the
// terminal writer").
type Sink struct {
	mu sync.Mutex

	term      io.Writer
	prompt    input.PromptWriter // nil unless the input source is interactive
	showTimes bool

	transcript         io.WriteCloser
	transcriptDisabled bool

	runID  uuid.UUID
	logger *log.Logger
}

// Options configures a new Sink.
type Options struct {
	Terminal       io.Writer
	Prompt         input.PromptWriter // optional
	ShowTimes      bool
	TranscriptPath string // optional; empty disables the transcript
	Logger         *log.Logger
}

// New constructs a Sink. If opts.TranscriptPath is set, the file is opened
// for append (created if absent) and owned by the Sink until Close.
func New(opts Options) (*Sink, error) {
	s := &Sink{
		term:      opts.Terminal,
		prompt:    opts.Prompt,
		showTimes: opts.ShowTimes,
		runID:     uuid.New(),
		logger:    opts.Logger,
	}
	if s.logger == nil {
		s.logger = log.New(os.Stderr, "netline: ", log.LstdFlags)
	}
	if opts.TranscriptPath != "" {
		f, err := os.OpenFile(opts.TranscriptPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		s.transcript = f
	}
	return s, nil
}

// Close releases the transcript file handle, if any. Guaranteed to be
// called on every engine exit path (spec.md §3).
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transcript != nil {
		return s.transcript.Close()
	}
	return nil
}

// Emit renders ev to the terminal and appends it to the transcript. A
// transcript write failure is non-fatal: it disables further transcript
// writes and synthesizes an Error event describing the degradation
// (spec.md §7 TranscriptError), but Emit itself never returns an error to
// the caller for that case — only a genuine terminal-write failure is
// returned, since the terminal is the operator's only remaining feedback
// channel at that point.
func (s *Sink) Emit(ev event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeTerminalLocked(ev); err != nil {
		return err
	}
	s.appendTranscriptLocked(ev)
	return nil
}

func (s *Sink) writeTerminalLocked(ev event.Event) error {
	if s.term == nil && s.prompt == nil {
		return nil
	}
	line := s.render(ev)
	if s.prompt != nil {
		return s.prompt.WriteAbove(line)
	}
	_, err := io.WriteString(s.term, line+"\n")
	return err
}

func (s *Sink) appendTranscriptLocked(ev event.Event) {
	if s.transcript == nil || s.transcriptDisabled {
		return
	}
	rec := toRecord(ev)
	b, err := json.Marshal(rec)
	if err == nil {
		b = append(b, '\n')
		_, err = s.transcript.Write(b)
	}
	if err == nil {
		if f, ok := s.transcript.(*os.File); ok {
			err = f.Sync()
		}
	}
	if err != nil {
		s.transcriptDisabled = true
		s.logger.Printf("run=%s transcript write failed, disabling further transcript writes: %v", s.runID, err)
		degraded := event.Event{
			Kind:      event.Error,
			Timestamp: ev.Timestamp,
			Message:   fmt.Sprintf("transcript write failed: %v", err),
		}
		_ = s.writeTerminalLocked(degraded)
	}
}

// render implements the §6 terminal format.
func (s *Sink) render(ev event.Event) string {
	var prefix string
	if s.showTimes {
		prefix = "[" + ev.Timestamp.Format("15:04:05") + "] "
	}

	switch ev.Kind {
	case event.ConnectionStart:
		return prefix + fmt.Sprintf("* connecting to %s:%d", ev.Host, ev.Port)
	case event.ConnectionComplete:
		return prefix + fmt.Sprintf("* connected to %s", ev.PeerIP)
	case event.TLSStart:
		return prefix + "* starting TLS"
	case event.TLSComplete:
		return prefix + "* TLS established"
	case event.Recv:
		return prefix + "< " + sanitize(ev.Data)
	case event.Send:
		return prefix + "> " + sanitize(ev.Data)
	case event.Disconnect:
		return prefix + "* disconnected"
	case event.Error:
		return prefix + "! " + ev.Message
	default:
		return prefix + "?"
	}
}

// sanitize implements spec.md §4.5's control-character sanitization, used
// identically for Recv and Send payloads (the §9 Open Question resolution:
// yes, symmetric with recv). Every control, format, or unassigned scalar
// value becomes its \uXXXX escape; a trailing LF, CR or CRLF is stripped
// since it is the line terminator, preserved only for transcript fidelity.
// Tab is left untouched.
func sanitize(s string) string {
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\t' {
			b.WriteRune(r)
			continue
		}
		if unicode.Is(unicode.Cc, r) || unicode.Is(unicode.Cf, r) || !unicode.IsGraphic(r) && !unicode.IsSpace(r) {
			fmt.Fprintf(&b, "\\u%04X", r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// transcriptRecord is the one-JSON-object-per-line shape from spec.md §6.
type transcriptRecord struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Host      string `json:"host,omitempty"`
	Port      *int   `json:"port,omitempty"`
	PeerIP    string `json:"peer_ip,omitempty"`
	Data      string `json:"data,omitempty"`
}

// iso8601Micro formats t as YYYY-MM-DDTHH:MM:SS.ffffff±HH:MM, the format
// spec.md §6 requires.
func iso8601Micro(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.000000") + formatOffset(t)
}

func formatOffset(t time.Time) string {
	_, offset := t.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	h := offset / 3600
	m := (offset % 3600) / 60
	return fmt.Sprintf("%s%02d:%02d", sign, h, m)
}

func toRecord(ev event.Event) transcriptRecord {
	rec := transcriptRecord{
		Timestamp: iso8601Micro(ev.Timestamp),
		Event:     ev.Kind.String(),
	}
	switch ev.Kind {
	case event.ConnectionStart:
		rec.Host = ev.Host
		port := ev.Port
		rec.Port = &port
	case event.ConnectionComplete:
		rec.PeerIP = ev.PeerIP
	case event.Recv, event.Send:
		rec.Data = ev.Data
	case event.Error:
		rec.Data = ev.Message
	}
	return rec
}
