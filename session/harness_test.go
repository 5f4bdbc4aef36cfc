package session

import (
	"bufio"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"chat-relay/runtime"
	"context"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

const ioTimeout = 3 * time.Second

var relaxed = Settings{
	PingTime:      10 * time.Second,
	ProbeTimeout:  2 * time.Second,
	WriteTimeout:  2 * time.Second,
	ClientNameLen: 16,
}

type recordingSink struct {
	mu     sync.Mutex
	events []event.Event
}

func (s *recordingSink) Record(e event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) Types() []event.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Map(s.events, func(e event.Event, _ int) event.Type { return e.Type })
}

func (s *recordingSink) Last(t event.Type) (event.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, _, ok := lo.FindLastIndexOf(s.events, func(e event.Event) bool { return e.Type == t })
	return e, ok
}

// harness runs real sessions behind a loopback listener.
type harness struct {
	t        *testing.T
	registry *runtime.Registry
	sink     *recordingSink
	counters *observability.RelayCounters
	censor   contract.Censor
	now      func() time.Time
	settings Settings
	listener net.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func newHarness(t *testing.T, settings Settings, opts ...func(*harness)) *harness {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{
		t:        t,
		registry: runtime.NewRegistry(),
		sink:     &recordingSink{},
		counters: observability.NewRelayCounters(),
		settings: settings,
		listener: listener,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(h)
	}

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			s := New(log, conn, h.registry, h.sink, h.censor, h.counters, h.settings)
			if h.now != nil {
				s.now = h.now
			}
			h.wg.Add(1)
			go func() {
				defer h.wg.Done()
				_ = s.Run(ctx)
			}()
		}
	}()

	t.Cleanup(h.shutdown)
	return h
}

func (h *harness) shutdown() {
	h.cancel()
	_ = h.listener.Close()
	h.wg.Wait()
}

func (h *harness) session(name domain.ClientName) *Session {
	h.t.Helper()
	member, ok := h.registry.Lookup(name)
	require.True(h.t, ok, "%s is not registered", name)
	return member.(*Session)
}

func (h *harness) dial() *peer {
	h.t.Helper()
	conn, err := net.Dial("tcp", h.listener.Addr().String())
	require.NoError(h.t, err)
	h.t.Cleanup(func() { _ = conn.Close() })
	p := &peer{t: h.t, conn: conn, reader: bufio.NewReader(conn)}
	p.readUntil(domain.NamePrompt)
	return p
}

// join dials and registers name. Every peer already in others must see the join notice.
func (h *harness) join(name string, others ...*peer) *peer {
	h.t.Helper()
	p := h.dial()
	p.send(name)
	p.expect(domain.JoinConfirmed)
	for _, o := range others {
		o.expect(domain.JoinNotice(domain.ClientName(name)))
	}
	return p
}

type peer struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func (p *peer) send(line string) {
	p.t.Helper()
	_ = p.conn.SetWriteDeadline(time.Now().Add(ioTimeout))
	_, err := p.conn.Write([]byte(line + "\n"))
	require.NoError(p.t, err)
}

func (p *peer) readLine() string {
	p.t.Helper()
	_ = p.conn.SetReadDeadline(time.Now().Add(ioTimeout))
	line, err := p.reader.ReadString('\n')
	require.NoError(p.t, err, "partial read %q", line)
	return strings.TrimSuffix(line, "\n")
}

func (p *peer) expect(line string) {
	p.t.Helper()
	require.Equal(p.t, line, p.readLine())
}

func (p *peer) readUntil(line string) {
	p.t.Helper()
	for p.readLine() != line {
	}
}

func (p *peer) readByte() byte {
	p.t.Helper()
	_ = p.conn.SetReadDeadline(time.Now().Add(ioTimeout))
	b, err := p.reader.ReadByte()
	require.NoError(p.t, err)
	return b
}

// expectClosed waits for the server to close the stream.
func (p *peer) expectClosed() {
	p.t.Helper()
	_ = p.conn.SetReadDeadline(time.Now().Add(ioTimeout))
	for {
		if _, err := p.reader.ReadByte(); err != nil {
			require.False(p.t, isTimeout(err), "stream still open")
			return
		}
	}
}
