package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"os"
	"reflect"
	"time"

	"github.com/shirou/gopsutil/process"
)

// NamedChannel is a buffered channel whose fill level is worth watching.
type NamedChannel struct {
	Name    string
	Channel any
}

// StatsWorker periodically logs the relay counters, the member count, the fill
// level of the watched channels and the resource usage of the relay process.
// Reading len and cap of a channel never blocks its users.
type StatsWorker struct {
	log         *slog.Logger
	counters    *observability.RelayCounters
	memberCount func() int
	interval    time.Duration
	channels    []NamedChannel
}

func NewStatsWorker(log *slog.Logger, counters *observability.RelayCounters,
	memberCount func() int, interval time.Duration, channels ...NamedChannel) *StatsWorker {
	return &StatsWorker{
		log:         log,
		counters:    counters,
		memberCount: memberCount,
		interval:    interval,
		channels:    channels,
	}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.report(p)
		}
	}
}

func (w *StatsWorker) report(p *process.Process) {
	stats := w.counters.GetLatest()
	attrs := []any{
		"members", w.memberCount(),
		"connections", stats.Connections,
		"joins", stats.Joins,
		"disconnections", stats.Disconnections,
		"broadcasts", stats.Broadcasts,
		"private_messages", stats.PrivateMessages,
		"dropped_private", stats.DroppedPrivate,
		"probes_sent", stats.ProbesSent,
		"probe_failures", stats.ProbeFailures,
	}

	rss, cpu, err := getSelfStats(p)
	if err != nil {
		w.log.Debug("Failed to collect self stats", "err", err)
	} else {
		attrs = append(attrs, "rss_bytes", rss, "cpu_percent", cpu)
	}
	w.log.Info("Relay stats", attrs...)
	w.reportChannels()
}

func (w *StatsWorker) reportChannels() {
	for _, nc := range w.channels {
		v := reflect.ValueOf(nc.Channel)
		if v.Kind() != reflect.Chan {
			w.log.Error("Provided object is not a channel", "name", nc.Name)
			continue
		}
		w.log.Debug("Channel capacity", "name", nc.Name, "length", v.Len(), "capacity", v.Cap())
	}
}

// getSelfStats retrieves memory and CPU usage for the given process.
func getSelfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
