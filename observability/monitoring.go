package observability

import (
	"sync/atomic"
)

// RelayStats is a point-in-time copy of the relay counters.
type RelayStats struct {
	Connections     uint64 `json:"connections"`
	Joins           uint64 `json:"joins"`
	Disconnections  uint64 `json:"disconnections"`
	Broadcasts      uint64 `json:"broadcasts"`
	PrivateMessages uint64 `json:"private_messages"`
	DroppedPrivate  uint64 `json:"dropped_private"`
	ProbesSent      uint64 `json:"probes_sent"`
	ProbeFailures   uint64 `json:"probe_failures"`
}

// RelayCounters gathers the relay telemetry.
// Every method is safe for concurrent use by any session goroutine.
type RelayCounters struct {
	connections     atomic.Uint64
	joins           atomic.Uint64
	disconnections  atomic.Uint64
	broadcasts      atomic.Uint64
	privateMessages atomic.Uint64
	droppedPrivate  atomic.Uint64
	probesSent      atomic.Uint64
	probeFailures   atomic.Uint64
}

func NewRelayCounters() *RelayCounters {
	return &RelayCounters{}
}

func (c *RelayCounters) IncrConnections()    { c.connections.Add(1) }
func (c *RelayCounters) IncrJoins()          { c.joins.Add(1) }
func (c *RelayCounters) IncrDisconnections() { c.disconnections.Add(1) }
func (c *RelayCounters) IncrBroadcasts()     { c.broadcasts.Add(1) }
func (c *RelayCounters) IncrPrivate()        { c.privateMessages.Add(1) }
func (c *RelayCounters) IncrDroppedPrivate() { c.droppedPrivate.Add(1) }
func (c *RelayCounters) IncrProbesSent()     { c.probesSent.Add(1) }
func (c *RelayCounters) IncrProbeFailures()  { c.probeFailures.Add(1) }

// GetLatest returns the current value of every counter.
func (c *RelayCounters) GetLatest() RelayStats {
	return RelayStats{
		Connections:     c.connections.Load(),
		Joins:           c.joins.Load(),
		Disconnections:  c.disconnections.Load(),
		Broadcasts:      c.broadcasts.Load(),
		PrivateMessages: c.privateMessages.Load(),
		DroppedPrivate:  c.droppedPrivate.Load(),
		ProbesSent:      c.probesSent.Load(),
		ProbeFailures:   c.probeFailures.Load(),
	}
}
