// Package session runs the per-connection protocol of the relay:
// name negotiation, chat relay, commands and liveness probing.
package session

import (
	"bufio"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var _ contract.Member = (*Session)(nil)

// errExit ends the session on the peer's request.
var errExit = fmt.Errorf("exit requested")

// DefaultMaxLineLength bounds an inbound line when Settings leaves it unset.
const DefaultMaxLineLength = 64 * 1024

// Settings holds the per-connection timings and limits shared by every session.
type Settings struct {
	PingTime      time.Duration
	ProbeTimeout  time.Duration
	WriteTimeout  time.Duration
	ClientNameLen int
	// MaxLineLength is the longest inbound line in bytes, terminator excluded.
	MaxLineLength int
}

// Session owns one connection from acceptance to closure.
type Session struct {
	id       uuid.UUID
	log      *slog.Logger
	conn     net.Conn
	reader   *bufio.Reader
	registry contract.IRegistry
	sink     contract.LifecycleSink
	censor   contract.Censor
	counters *observability.RelayCounters
	settings Settings
	now      func() time.Time

	writeMu sync.Mutex
	writer  *bufio.Writer

	closeOnce sync.Once
	state     atomic.Int32
	lastSeen  atomic.Int64

	// Owned by the session goroutine. name is set once, before the registry publishes it.
	name       domain.ClientName
	registered bool
	pending    strings.Builder
}

// New wraps an accepted connection. Nil sink, censor and counters fall back to no-op values.
func New(
	log *slog.Logger,
	conn net.Conn,
	registry contract.IRegistry,
	sink contract.LifecycleSink,
	censor contract.Censor,
	counters *observability.RelayCounters,
	settings Settings,
) *Session {
	id := uuid.New()
	if sink == nil {
		sink = noopSink{}
	}
	if censor == nil {
		censor = noopCensor{}
	}
	if counters == nil {
		counters = observability.NewRelayCounters()
	}
	if settings.MaxLineLength <= 0 {
		settings.MaxLineLength = DefaultMaxLineLength
	}
	s := &Session{
		id:       id,
		log:      log.With("session_id", id.String(), "remote_addr", conn.RemoteAddr().String()),
		conn:     conn,
		reader:   bufio.NewReader(conn),
		writer:   bufio.NewWriter(conn),
		registry: registry,
		sink:     sink,
		censor:   censor,
		counters: counters,
		settings: settings,
		now:      time.Now,
	}
	s.state.Store(int32(Connecting))
	s.touch()
	return s
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) Name() domain.ClientName { return s.name }

func (s *Session) State() State { return State(s.state.Load()) }

// LastActivity is the time the last complete line was read from the peer.
func (s *Session) LastActivity() time.Time { return time.Unix(0, s.lastSeen.Load()) }

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
}

func (s *Session) touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

// Run drives the session until the peer leaves, fails, or ctx is cancelled.
// It returns the cause of an abnormal end, nil after \exit or a server shutdown.
func (s *Session) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	remoteAddr := s.conn.RemoteAddr().String()
	s.counters.IncrConnections()
	s.sink.Record(event.Connected(s.id, remoteAddr))
	s.log.Info("Client connected")

	cause := s.serveRecovered()

	reason := "exit"
	switch {
	case cause == nil || stderrors.Is(cause, errExit):
		cause = nil
	case ctx.Err() != nil:
		reason = "server shutdown"
		cause = nil
	default:
		reason = cause.Error()
	}
	s.finish()

	s.counters.IncrDisconnections()
	s.sink.Record(event.Disconnected(s.id, remoteAddr, string(s.name), reason))
	s.log.Info("Client disconnected", "name", s.name, "reason", reason)
	return cause
}

// serveRecovered turns a panic in the protocol loop into an ordinary cause,
// so the teardown below still clears the registry entry.
func (s *Session) serveRecovered() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("session panic: %v", r)
		}
	}()
	return s.serve()
}

func (s *Session) serve() error {
	s.setState(Registering)
	if err := s.reply(domain.HelpText, domain.NamePrompt); err != nil {
		return err
	}
	if err := s.register(); err != nil {
		return err
	}
	s.setState(Active)
	return s.chat()
}

// register loops until the peer owns a unique valid name.
func (s *Session) register() error {
	for {
		line, err := s.readLine()
		if err != nil {
			return err
		}
		if _, ok := domain.ParseCommand(line).(domain.ExitCommand); ok {
			return errExit
		}

		name, err := domain.ValidateName(line, s.settings.ClientNameLen)
		if err != nil {
			s.reject(err)
			text := domain.InvalidNameSyntaxText
			if stderrors.Is(err, errors.ErrEmptyName) {
				text = domain.EmptyNameText
			}
			if err := s.reply(text, domain.NameRetry); err != nil {
				return err
			}
			continue
		}

		s.name = name
		if err := s.registry.TryRegister(name, s); err != nil {
			s.name = ""
			s.reject(err)
			if err := s.reply(domain.NameExistsText); err != nil {
				return err
			}
			continue
		}
		s.registered = true

		s.counters.IncrJoins()
		s.sink.Record(event.Joined(s.id, s.conn.RemoteAddr().String(), string(name)))
		s.log.Info("Client joined the chat", "name", name)

		if err := s.reply(domain.JoinConfirmed); err != nil {
			return err
		}
		s.broadcast(domain.JoinNotice(name))
		return nil
	}
}

func (s *Session) reject(cause error) {
	s.sink.Record(event.Rejected(s.id, s.conn.RemoteAddr().String(), cause.Error()))
	s.log.Info("Name rejected", "reason", cause)
}

// chat relays plain lines and dispatches commands until the session ends.
func (s *Session) chat() error {
	for {
		line, err := s.readLine()
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if !domain.IsCommand(line) {
			s.counters.IncrBroadcasts()
			s.broadcast(domain.ChatLine(s.name, s.censor.Censor(line)))
			continue
		}
		if err := s.dispatch(domain.ParseCommand(line)); err != nil {
			return err
		}
	}
}

// readLine returns the next complete line without its terminator and without
// probe bytes. Every wait is bounded by the ping time; silence triggers a probe.
// A line longer than MaxLineLength ends the session with ErrLineTooLong.
func (s *Session) readLine() (string, error) {
	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.settings.PingTime)); err != nil {
			return "", s.transportError(err)
		}
		chunk, err := s.reader.ReadSlice('\n')
		size := s.pending.Len() + len(chunk)
		if err == nil {
			size--
		}
		if size > s.settings.MaxLineLength {
			s.pending.Reset()
			s.log.Warn("Inbound line too long", "name", s.name, "limit", s.settings.MaxLineLength)
			return "", errors.ErrLineTooLong
		}
		s.pending.Write(chunk)
		if stderrors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err == nil {
			line := s.pending.String()
			s.pending.Reset()
			s.touch()
			line = strings.ReplaceAll(line, string(domain.ProbeByte), "")
			return strings.TrimRight(line, "\r\n"), nil
		}
		if !isTimeout(err) {
			return "", s.transportError(err)
		}
		if err := s.probe(); err != nil {
			return "", err
		}
	}
}

// Deliver writes one newline-terminated text to the peer.
// It is called by the owning session and by any session relaying to this one.
func (s *Session) Deliver(text string) error {
	return s.reply(text)
}

func (s *Session) reply(texts ...string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.settings.WriteTimeout)); err != nil {
		return s.failWrite(err)
	}
	for _, text := range texts {
		if _, err := s.writer.WriteString(text + "\n"); err != nil {
			return s.failWrite(err)
		}
	}
	if err := s.writer.Flush(); err != nil {
		return s.failWrite(err)
	}
	return nil
}

func (s *Session) writeRaw(b []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.settings.WriteTimeout)); err != nil {
		return s.failWrite(err)
	}
	if _, err := s.writer.Write(b); err != nil {
		return s.failWrite(err)
	}
	if err := s.writer.Flush(); err != nil {
		return s.failWrite(err)
	}
	return nil
}

// failWrite closes the transport: a stream that failed mid-write cannot be trusted
// to carry further frames, and closing unblocks the owner's pending read.
func (s *Session) failWrite(err error) error {
	s.Close()
	return s.transportError(err)
}

func (s *Session) transportError(err error) error {
	switch {
	case stderrors.Is(err, io.EOF):
		return errors.ErrPeerClosed
	case stderrors.Is(err, net.ErrClosed):
		return errors.ErrSessionClosed
	default:
		return fmt.Errorf("%w: %v", errors.ErrTransport, err)
	}
}

// Close shuts the transport down. It is safe to call from any goroutine, any number of times.
// Registry cleanup is left to the session goroutine, which notices the closed stream.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
	})
}

// finish moves the session through Closing to Closed.
func (s *Session) finish() {
	if s.State() == Closed {
		return
	}
	s.setState(Closing)
	if s.registered {
		s.registry.Unregister(s.name)
		s.registered = false
	}
	s.Close()
	s.setState(Closed)
}

func isTimeout(err error) bool {
	if stderrors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

type noopSink struct{}

func (noopSink) Record(event.Event) {}

type noopCensor struct{}

func (noopCensor) Censor(text string) string { return text }
