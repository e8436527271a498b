// Package session implements the Session Engine: the multiplexing
// coordinator of spec.md §4.3 that owns the connection, the Framer, the
// Sink, and the Input Source for the run's whole lifetime.
//
// Grounded on the teacher's cli.SessionImpl (v2/cli/session.go): a reader
// goroutine feeding a channel the consumer selects over. The teacher's
// synchronous Send/WaitFor request-response model is replaced by spec.md
// §4.3's concurrent three-source select loop (inbound line, outbound line,
// local-input exhaustion), since this engine interleaves two independent
// line streams rather than driving a single prompt-terminated request.
package session

import (
	"context"
	"io"
	"log"
	"net"
	"os"

	"github.com/pkg/errors"

	"github.com/lineio/netline/internal/codec"
	"github.com/lineio/netline/internal/event"
	"github.com/lineio/netline/internal/framer"
	"github.com/lineio/netline/internal/input"
	"github.com/lineio/netline/internal/sink"
	"github.com/lineio/netline/internal/transport"
)

// engineState names the states from spec.md §4.3's state machine.
type engineState int

const (
	stateConnecting engineState = iota
	stateConnected
	stateTLSHandshaking
	stateTLSReady
	stateRunning
	stateDraining
	stateTerminated
)

// Dialer abstracts TCP connect + TLS upgrade so tests can substitute an
// in-process listener without touching DNS or a real TLS handshake.
type Dialer interface {
	Dial(ctx context.Context, host string, port int) (net.Conn, error)
	UpgradeTLS(ctx context.Context, conn net.Conn, serverName string) (net.Conn, error)
}

// defaultDialer wires internal/transport's package-level functions.
type defaultDialer struct{}

func (defaultDialer) Dial(ctx context.Context, host string, port int) (net.Conn, error) {
	return transport.Dial(ctx, host, port)
}

func (defaultDialer) UpgradeTLS(ctx context.Context, conn net.Conn, serverName string) (net.Conn, error) {
	return transport.UpgradeTLS(ctx, conn, serverName)
}

// Engine is the Session Engine. It exclusively owns the connection, the
// Framer, the Sink, and the Input Source for the run's duration (spec.md
// §3).
type Engine struct {
	cfg    Config
	sinkW  *sink.Sink
	input  input.Source
	clk    event.Clock
	dialer Dialer
	logger *log.Logger

	state engineState
}

// Option configures an Engine beyond its required Config/Sink/Source.
type Option func(*Engine)

// WithClock overrides the production clock; used by tests for a
// deterministic timeline.
func WithClock(clk event.Clock) Option {
	return func(e *Engine) { e.clk = clk }
}

// WithDialer overrides the TCP/TLS dialer; used by tests to connect to an
// in-process listener.
func WithDialer(d Dialer) Option {
	return func(e *Engine) { e.dialer = d }
}

// WithLogger overrides the ambient diagnostic logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New constructs an Engine. cfg should already have passed through
// WithDefaults.
func New(cfg Config, sinkW *sink.Sink, src input.Source, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		sinkW:  sinkW,
		input:  src,
		clk:    event.RealClock{},
		dialer: defaultDialer{},
		logger: log.New(os.Stderr, "netline: ", log.LstdFlags),
		state:  stateConnecting,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) setState(s engineState) { e.state = s }

func (e *Engine) emit(ev event.Event) {
	if err := e.sinkW.Emit(ev); err != nil {
		e.logger.Printf("sink write failed: %v", err)
	}
}

func (e *Engine) now() event.Event { return event.Event{Timestamp: e.clk.Now()} }

// Run drives the full session lifecycle described in spec.md §4.3: connect,
// optional TLS, the main loop, and shutdown/drain. It returns nil on a
// clean Disconnect and a non-nil error for any fatal condition (after the
// corresponding Error event has already been emitted to the Sink).
func (e *Engine) Run(ctx context.Context) error {
	start := e.now()
	start.Kind = event.ConnectionStart
	start.Host, start.Port = e.cfg.Host, e.cfg.Port
	e.emit(start)

	conn, err := e.dialer.Dial(ctx, e.cfg.Host, e.cfg.Port)
	if err != nil {
		e.fatal(errKindConnect, err)
		return err
	}
	e.setState(stateConnected)
	complete := e.now()
	complete.Kind = event.ConnectionComplete
	complete.PeerIP = transport.PeerIP(conn)
	e.emit(complete)

	if e.cfg.TLS {
		e.setState(stateTLSHandshaking)
		e.emit(event.Event{Kind: event.TLSStart, Timestamp: e.clk.Now()})
		serverName := e.cfg.ServerName
		if serverName == "" {
			serverName = e.cfg.Host
		}
		tlsConn, err := e.dialer.UpgradeTLS(ctx, conn, serverName)
		if err != nil {
			e.fatal(errKindTLS, err)
			return err
		}
		conn = tlsConn
		e.setState(stateTLSReady)
		e.emit(event.Event{Kind: event.TLSComplete, Timestamp: e.clk.Now()})
	}

	e.setState(stateRunning)
	return e.runLoop(ctx, conn)
}

type inboundResult struct {
	line framer.Line
	err  error
}

type outboundResult struct {
	res input.Result
	err error
}

// runLoop implements the cooperative three-source select of spec.md §4.3
// and the shutdown/drain sequence. Grounded on the teacher's launchReader:
// a goroutine owns the only read of the connection and/or input source and
// feeds a channel; the Engine itself never reads them directly (it does
// write outgoing lines to the connection itself, in sendLine).
func (e *Engine) runLoop(ctx context.Context, conn net.Conn) error {
	frm := framer.New(conn, e.cfg.MaxLineLength)

	inboundCh := make(chan inboundResult, 1)
	go func() {
		for {
			l, err := frm.Next()
			inboundCh <- inboundResult{line: l, err: err}
			if err != nil {
				return
			}
		}
	}()

	inputCtx, cancelInput := context.WithCancel(ctx)
	defer cancelInput()

	outboundCh := make(chan outboundResult, 1)
	go func() {
		for {
			res, err := e.input.NextLine(inputCtx)
			outboundCh <- outboundResult{res: res, err: err}
			if err != nil || res.Outcome == input.EOF {
				return
			}
		}
	}()

	localDone := false
	for !localDone {
		select {
		case in := <-inboundCh:
			if done, err := e.handleInbound(in); done {
				return err
			}
		case out := <-outboundCh:
			if out.err != nil {
				e.fatal(errKindInput, out.err)
				return out.err
			}
			switch out.res.Outcome {
			case input.Line:
				if err := e.sendLine(conn, out.res.Text); err != nil {
					e.fatal(errKindWrite, err)
					return err
				}
			case input.Interrupt:
				// Ordinary prompt cancellation; nothing to do.
			case input.EOF:
				localDone = true
			}
		}
	}

	return e.drain(conn, inboundCh)
}

// sendLine implements spec.md §4.3's outbound handling: append the
// configured terminator, encode under the session policy, write to the
// connection, and submit the post-substitution Send event.
func (e *Engine) sendLine(conn net.Conn, text string) error {
	full := text + string(e.cfg.Terminator.Bytes())
	wire, echoed := codec.Encode(full, e.cfg.Encoding)
	if _, err := conn.Write(wire); err != nil {
		return errors.Wrap(err, "write failed")
	}
	e.emit(event.Event{Kind: event.Send, Timestamp: e.clk.Now(), Data: echoed})
	return nil
}

// handleInbound processes one Framer result, returning done=true once a
// terminal event (Disconnect or Error) has been emitted.
func (e *Engine) handleInbound(in inboundResult) (done bool, err error) {
	if in.err != nil {
		if in.err == io.EOF {
			e.setState(stateTerminated)
			e.emit(event.Event{Kind: event.Disconnect, Timestamp: e.clk.Now()})
			return true, nil
		}
		e.fatal(errKindRead, in.err)
		return true, in.err
	}
	text := codec.Decode(in.line.Payload, e.cfg.Encoding)
	e.emit(event.Event{Kind: event.Recv, Timestamp: e.clk.Now(), Data: text})
	return false, nil
}

// drain implements spec.md §4.3's shutdown sequence: half-close the send
// side, keep servicing inbound lines until EOF or error, then emit exactly
// one of Disconnect/Error.
func (e *Engine) drain(conn net.Conn, inboundCh chan inboundResult) error {
	e.setState(stateDraining)
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}

	for {
		in := <-inboundCh
		if done, err := e.handleInbound(in); done {
			return err
		}
	}
}

type errKind int

const (
	errKindConnect errKind = iota
	errKindTLS
	errKindRead
	errKindWrite
	errKindInput
)

func (k errKind) String() string {
	switch k {
	case errKindConnect:
		return "connect"
	case errKindTLS:
		return "tls"
	case errKindRead:
		return "read"
	case errKindWrite:
		return "write"
	case errKindInput:
		return "input"
	default:
		return "unknown"
	}
}

func (e *Engine) fatal(kind errKind, err error) {
	e.setState(stateTerminated)
	e.emit(event.Event{Kind: event.Error, Timestamp: e.clk.Now(), Message: err.Error()})
	e.logger.Printf("%s error: %v", kind, err)
}
