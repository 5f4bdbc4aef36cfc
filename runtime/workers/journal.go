package workers

import (
	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/repositories"
	"context"
	"log/slog"
)

var (
	_ contract.Worker        = (*JournalWorker)(nil)
	_ contract.LifecycleSink = (*JournalWorker)(nil)
)

// JournalWorker persists session lifecycle events.
// Sessions hand events over through Record, which never blocks: when the buffer
// is full the event is dropped and logged. This is an audit trail, not a guarantee.
type JournalWorker struct {
	log        *slog.Logger
	repository repositories.IJournalRepository
	events     chan event.Event
}

func NewJournalWorker(log *slog.Logger, repository repositories.IJournalRepository, bufferSize int) *JournalWorker {
	return &JournalWorker{
		log:        log,
		repository: repository,
		events:     make(chan event.Event, bufferSize),
	}
}

// Buffer exposes the pending events channel for capacity reporting.
func (w *JournalWorker) Buffer() NamedChannel {
	return NamedChannel{Name: "journal", Channel: w.events}
}

func (w *JournalWorker) Record(e event.Event) {
	select {
	case w.events <- e:
	default:
		w.log.Debug("Journal buffer full, event lost", "type", e.Type, "session_id", e.SessionID)
	}
}

func (w *JournalWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			w.log.Debug("Context done, stopping journal")
			return nil
		case e := <-w.events:
			w.store(e)
		}
	}
}

// drain stores whatever is still buffered once the context is done.
func (w *JournalWorker) drain() {
	for {
		select {
		case e := <-w.events:
			w.store(e)
		default:
			return
		}
	}
}

func (w *JournalWorker) store(e event.Event) {
	if err := w.repository.Store(e); err != nil {
		w.log.Error("Failed to store lifecycle event", "type", e.Type, "error", err)
	}
}
