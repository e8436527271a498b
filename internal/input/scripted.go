package input

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
)

// Scripted replays lines from a startup script file, waiting delay before
// each one (including the first), then transparently hands off to a
// fallback interactive Source once the file is exhausted — spec.md §4.4.
//
// Grounded on the teacher's readUntilTimeout (v2/cli/session.go): racing
// time.After against a channel read. Here the delay is raced against
// ctx.Done(), and the line is read from the script only after the delay has
// elapsed.
type Scripted struct {
	scanner  *bufio.Scanner
	delay    time.Duration
	fallback Source
	closer   io.Closer
	done     bool
}

// NewScripted creates a Scripted source reading newline-delimited commands
// from r (closed via closer, if non-nil, once the script is exhausted),
// waiting delay before each line, and handing off to fallback afterwards.
func NewScripted(r io.Reader, closer io.Closer, delay time.Duration, fallback Source) *Scripted {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), 1<<20)
	return &Scripted{scanner: s, delay: delay, fallback: fallback, closer: closer}
}

// NextLine implements Source.
func (s *Scripted) NextLine(ctx context.Context) (Result, error) {
	if s.done {
		return s.fallback.NextLine(ctx)
	}

	select {
	case <-ctx.Done():
		return Result{Outcome: EOF}, nil
	case <-time.After(s.delay):
	}

	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return Result{}, errors.Wrap(err, "failed to read startup script")
		}
		s.done = true
		if s.closer != nil {
			_ = s.closer.Close()
		}
		return s.fallback.NextLine(ctx)
	}

	return Result{Outcome: Line, Text: s.scanner.Text()}, nil
}
