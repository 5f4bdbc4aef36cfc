package runtime

import (
	"chat-relay/contract"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime/workers"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Orchestrator owns the relay's shared state (registry, counters) and the
// supervised background workers around it. Sessions never talk to the workers
// directly: they only see the registry, the lifecycle sink and the censor.
type Orchestrator struct {
	mu            sync.Mutex
	log           *slog.Logger
	supervisor    contract.ISupervisor
	registry      *Registry
	counters      *observability.RelayCounters
	journal       *workers.JournalWorker
	statsInterval time.Duration
	started       bool
	stopped       bool
	cancel        context.CancelFunc
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor, registry *Registry,
	repository repositories.IJournalRepository, counters *observability.RelayCounters,
	bufferSize int, statsInterval time.Duration) *Orchestrator {
	return &Orchestrator{
		log:           log,
		supervisor:    supervisor,
		registry:      registry,
		counters:      counters,
		journal:       workers.NewJournalWorker(log, repository, bufferSize),
		statsInterval: statsInterval,
	}
}

func (o *Orchestrator) Registry() *Registry { return o.registry }

func (o *Orchestrator) Counters() *observability.RelayCounters { return o.counters }

// Sink is where sessions report their lifecycle events.
func (o *Orchestrator) Sink() contract.LifecycleSink { return o.journal }

// Start registers the journal and stats workers and runs the supervisor.
// It blocks until the context is done or Stop is called. Sessions keep
// recording into the sink until Stop, so the caller should stop the
// orchestrator only once every session has ended.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator already started")
	}
	o.started = true
	if o.stopped {
		o.mu.Unlock()
		return nil
	}
	ctx, o.cancel = context.WithCancel(ctx)
	o.supervisor.Add(o.journal)
	if o.statsInterval > 0 {
		o.supervisor.Add(workers.NewStatsWorker(o.log, o.counters, o.registry.Len, o.statsInterval,
			o.journal.Buffer()))
	}
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
	return nil
}

// Stop cancels every supervised worker. The journal stores what is still buffered before returning.
// Calling Stop before Start makes Start return immediately.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopped = true
	if o.cancel != nil {
		o.cancel()
	}
	o.supervisor.Stop()
}

// LoadCensor builds a moderator from the dictionaries found at the root of fsys.
func LoadCensor(log *slog.Logger, fsys fs.FS, charReplacement rune) (*moderation.Moderator, error) {
	data, err := NewCensoredLoader(fsys).LoadAll(".")
	if err != nil {
		return nil, err
	}

	log.Info(fmt.Sprintf("%d censored files loaded [%s]",
		len(data.Languages), strings.Join(data.Languages, ",")))
	log.Info(fmt.Sprintf("%d unique censored words loaded", len(data.Words)))

	return moderation.NewModerator(data.Words, charReplacement, log)
}
