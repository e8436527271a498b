package input

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/term"
)

// promptText is the fixed editor prompt spec.md §4.4 specifies.
const promptText = "> "

// editor owns the terminal's notion of "what is currently drawn": the
// prompt plus whatever the operator has typed so far. WriteAbove and the
// key-handling loop both go through editor so a Sink print can never
// interleave with a partial redraw.
//
// This is the spec.md §9 fallback design ("the engine must serialize Sink
// writes through a mutex that also guards prompt-redraw state") rather than
// a dependency on a third-party readline library — none appears anywhere in
// the retrieval pack, and spec.md §1 places the line editor outside the
// Session Engine's scope as an external collaborator.
type editor struct {
	mu      sync.Mutex
	out     io.Writer
	buf     []rune
	lastLen int
}

func (e *editor) clearLocked() {
	if e.lastLen > 0 {
		io.WriteString(e.out, "\r"+strings.Repeat(" ", e.lastLen)+"\r") //nolint:errcheck
	} else {
		io.WriteString(e.out, "\r") //nolint:errcheck
	}
}

func (e *editor) redrawLocked() {
	line := promptText + string(e.buf)
	io.WriteString(e.out, line) //nolint:errcheck
	e.lastLen = len([]rune(line))
}

// WriteAbove implements PromptWriter: erase the prompt line, write s
// (newline-terminated), then redraw the prompt with whatever was in
// progress.
func (e *editor) WriteAbove(s string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clearLocked()
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	if _, err := io.WriteString(e.out, s); err != nil {
		return err
	}
	e.redrawLocked()
	return nil
}

type keyEvent struct {
	r   rune
	err error
}

// Interactive reads lines from a raw-mode terminal, presenting Interrupt on
// Ctrl-C and EOF on Ctrl-D, per spec.md §4.4. Raw-mode enter/restore follows
// the lifecycle shown by the retrieval pack's dshills-gokeys input.Backend
// (Init puts the terminal in raw mode; Stop/Close restores it, idempotently).
type Interactive struct {
	editor   *editor
	fd       int
	oldState *term.State
	reader   *bufio.Reader
	keys     chan keyEvent
	once     sync.Once
}

// NewInteractive puts fd into raw mode and returns an Interactive reading
// from in and writing prompt/echo output to out.
func NewInteractive(fd int, in io.Reader, out io.Writer) (*Interactive, error) {
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, errors.Wrap(err, "failed to enter raw terminal mode")
	}
	ia := &Interactive{
		editor:   &editor{out: out},
		fd:       fd,
		oldState: oldState,
		reader:   bufio.NewReader(in),
		keys:     make(chan keyEvent, 1),
	}
	go ia.readLoop()
	return ia, nil
}

func (ia *Interactive) readLoop() {
	for {
		r, _, err := ia.reader.ReadRune()
		ia.keys <- keyEvent{r: r, err: err}
		if err != nil {
			return
		}
	}
}

// WriteAbove implements PromptWriter.
func (ia *Interactive) WriteAbove(s string) error { return ia.editor.WriteAbove(s) }

// Close restores the terminal's original mode. Only the first call
// restores; later calls do nothing and return nil.
func (ia *Interactive) Close() error {
	var err error
	ia.once.Do(func() {
		if ia.oldState != nil {
			err = term.Restore(ia.fd, ia.oldState)
		}
	})
	return err
}

// NextLine implements Source.
func (ia *Interactive) NextLine(ctx context.Context) (Result, error) {
	ia.editor.mu.Lock()
	ia.editor.buf = ia.editor.buf[:0]
	ia.editor.redrawLocked()
	ia.editor.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return Result{Outcome: EOF}, nil
		case ev := <-ia.keys:
			if ev.err != nil {
				if ev.err == io.EOF {
					return Result{Outcome: EOF}, nil
				}
				return Result{}, ev.err
			}
			if res, done := ia.handleRune(ev.r); done {
				return res, nil
			}
		}
	}
}

// handleRune applies one typed rune to the in-progress line, returning a
// terminal Result when the line is complete, interrupted, or the stream
// ends.
func (ia *Interactive) handleRune(r rune) (Result, bool) {
	ia.editor.mu.Lock()
	defer ia.editor.mu.Unlock()

	switch {
	case r == '\r' || r == '\n':
		line := string(ia.editor.buf)
		ia.editor.buf = ia.editor.buf[:0]
		io.WriteString(ia.editor.out, "\r\n") //nolint:errcheck
		ia.editor.lastLen = 0
		return Result{Outcome: Line, Text: line}, true
	case r == 0x03: // Ctrl-C: cancel the partial line, not the session.
		ia.editor.buf = ia.editor.buf[:0]
		ia.editor.redrawLocked()
		return Result{Outcome: Interrupt}, true
	case r == 0x04: // Ctrl-D
		return Result{Outcome: EOF}, true
	case r == 0x7f || r == 0x08: // Backspace / Delete
		if len(ia.editor.buf) > 0 {
			ia.editor.buf = ia.editor.buf[:len(ia.editor.buf)-1]
		}
		ia.editor.clearLocked()
		ia.editor.redrawLocked()
		return Result{}, false
	default:
		ia.editor.buf = append(ia.editor.buf, r)
		ia.editor.redrawLocked()
		return Result{}, false
	}
}
