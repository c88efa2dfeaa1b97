package mri

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the command-handling latency histogram
// buckets in nanoseconds, from 1us to 10s.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks operational statistics for a Monitor: how many
// commands it dispatched in total (not broken down by command byte) and
// how many had no handler, how many bytes the m/M/X handlers
// moved, how many replies came back as an error, and how long command
// handling took. It is optional — a Monitor with a nil Metrics simply
// skips recording — since a target wired for production rarely wants
// the extra bookkeeping on every trap entry.
type Metrics struct {
	CommandsDispatched atomic.Uint64
	UnknownCommands    atomic.Uint64
	ErrorReplies       atomic.Uint64

	MemoryBytesRead    atomic.Uint64
	MemoryBytesWritten atomic.Uint64

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
}

// NewMetrics constructs a zeroed Metrics with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// recordCommand records one dispatched command's outcome and latency;
// called by commandLoop after each handler returns.
func (m *Metrics) recordCommand(errored bool, latencyNs uint64) {
	if m == nil {
		return
	}
	m.CommandsDispatched.Add(1)
	if errored {
		m.ErrorReplies.Add(1)
	}
	m.recordLatency(latencyNs)
}

func (m *Metrics) recordUnknownCommand() {
	if m == nil {
		return
	}
	m.UnknownCommands.Add(1)
}

func (m *Metrics) recordMemoryRead(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.MemoryBytesRead.Add(uint64(n))
}

func (m *Metrics) recordMemoryWritten(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.MemoryBytesWritten.Add(uint64(n))
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
			break
		}
	}
}

// MetricsSnapshot is a point-in-time, non-atomic copy of Metrics for
// reporting (e.g. a periodic log line).
type MetricsSnapshot struct {
	CommandsDispatched uint64
	UnknownCommands    uint64
	ErrorReplies       uint64
	MemoryBytesRead    uint64
	MemoryBytesWritten uint64
	AvgLatencyNs       uint64
	UptimeSeconds      float64
}

// Snapshot renders the current counters into a plain struct.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avg uint64
	if ops := m.OpCount.Load(); ops > 0 {
		avg = m.TotalLatencyNs.Load() / ops
	}
	start := time.Unix(0, m.StartTime.Load())
	return MetricsSnapshot{
		CommandsDispatched: m.CommandsDispatched.Load(),
		UnknownCommands:    m.UnknownCommands.Load(),
		ErrorReplies:       m.ErrorReplies.Load(),
		MemoryBytesRead:    m.MemoryBytesRead.Load(),
		MemoryBytesWritten: m.MemoryBytesWritten.Load(),
		AvgLatencyNs:       avg,
		UptimeSeconds:      time.Since(start).Seconds(),
	}
}
