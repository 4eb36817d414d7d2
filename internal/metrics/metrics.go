// Package metrics keeps the lightweight atomic counters the supervisor
// surfaces on SIGUSR1 for operational visibility. This is not a
// Prometheus-style metrics subsystem, just counters a log line can dump.
package metrics

import "go.uber.org/atomic"

// Counters is the fixed set of process-lifetime counters segrotd keeps.
type Counters struct {
	SegmentsIngested atomic.Int64
	Appends          atomic.Int64
	Rotations        atomic.Int64
	ArchivesProduced atomic.Int64
	ArchiverFailures atomic.Int64
}

// Snapshot is a point-in-time, plain-value copy of Counters suitable for
// logging or JSON encoding.
type Snapshot struct {
	SegmentsIngested int64 `json:"segments_ingested"`
	Appends          int64 `json:"appends"`
	Rotations        int64 `json:"rotations"`
	ArchivesProduced int64 `json:"archives_produced"`
	ArchiverFailures int64 `json:"archiver_failures"`
}

// New returns a zeroed Counters.
func New() *Counters { return &Counters{} }

// Snapshot reads every counter into a plain struct.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		SegmentsIngested: c.SegmentsIngested.Load(),
		Appends:          c.Appends.Load(),
		Rotations:        c.Rotations.Load(),
		ArchivesProduced: c.ArchivesProduced.Load(),
		ArchiverFailures: c.ArchiverFailures.Load(),
	}
}
