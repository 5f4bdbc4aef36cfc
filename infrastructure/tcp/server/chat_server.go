package server

import (
	"chat-relay/contract"
	"chat-relay/observability"
	"chat-relay/session"
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"syscall"
	"time"
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// ChatServer accepts stream connections and runs one Session per connection.
type ChatServer struct {
	log      *slog.Logger
	registry contract.IRegistry
	sink     contract.LifecycleSink
	censor   contract.Censor
	counters *observability.RelayCounters
	settings session.Settings
	wg       sync.WaitGroup
}

// NewChatServer wires the shared relay state every accepted session needs.
func NewChatServer(
	log *slog.Logger,
	registry contract.IRegistry,
	sink contract.LifecycleSink,
	censor contract.Censor,
	counters *observability.RelayCounters,
	settings session.Settings,
) *ChatServer {
	return &ChatServer{
		log:      log,
		registry: registry,
		sink:     sink,
		censor:   censor,
		counters: counters,
		settings: settings,
	}
}

// Serve blocks on the accept loop until ctx is cancelled or the listener is closed.
// Any other accept error, such as descriptor exhaustion, is retried with a capped
// exponential backoff and never touches the live sessions.
// On return every session it spawned has ended: closing the listener from
// outside ends them too.
func (s *ChatServer) Serve(ctx context.Context, listener net.Listener) error {
	defer s.wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	s.log.Info("Listening", "address", listener.Addr().String())
	var backoff time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.log.Info("Listener closed")
				return nil
			}
			backoff = nextBackoff(backoff)
			s.log.Warn("Accept failed, retrying", "error", err, "transient", isTransient(err), "backoff", backoff)
			select {
			case <-ctx.Done():
				s.log.Info("Listener closed")
				return nil
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

func nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return minAcceptBackoff
	}
	return min(current*2, maxAcceptBackoff)
}

// isTransient reports the accept failures a busy host is expected to recover from.
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ENOBUFS) ||
		errors.Is(err, syscall.ENOMEM)
}

func (s *ChatServer) handle(ctx context.Context, conn net.Conn) {
	sess := session.New(s.log, conn, s.registry, s.sink, s.censor, s.counters, s.settings)
	if err := sess.Run(ctx); err != nil {
		s.log.Debug("Session ended", "session_id", sess.ID(), "error", err)
	}
}
