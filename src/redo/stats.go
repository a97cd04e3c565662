package redo

import (
	"sync/atomic"
	"time"
)

type stats struct {
	writeRequests      atomic.Uint64
	waits              atomic.Uint64
	writtenWaits       atomic.Uint64
	flushedWaits       atomic.Uint64
	writes             atomic.Uint64
	bytesWritten       atomic.Uint64
	pendingWrites      atomic.Int64
	flushes            atomic.Uint64
	avgFlushNanos      atomic.Int64
	checkpoints        atomic.Uint64
	checkpointFailures atomic.Uint64
}

// Stats are monotonic counters of the pipeline, except PendingWrites and
// AvgFlushTime which are gauges.
type Stats struct {
	// reservations of a non-empty range
	WriteRequests uint64
	// reservations that had to wait for buffer space
	Waits uint64
	// callers that blocked in WaitForWritten
	WrittenWaits uint64
	// callers that blocked in WaitForFlushed
	FlushedWaits uint64

	Writes        uint64
	BytesWritten  uint64
	PendingWrites int64
	Flushes       uint64
	AvgFlushTime  time.Duration

	Checkpoints        uint64
	CheckpointFailures uint64
}

func (l *Log) Stats() Stats {
	s := &l.stats
	return Stats{
		WriteRequests:      s.writeRequests.Load(),
		Waits:              s.waits.Load(),
		WrittenWaits:       s.writtenWaits.Load(),
		FlushedWaits:       s.flushedWaits.Load(),
		Writes:             s.writes.Load(),
		BytesWritten:       s.bytesWritten.Load(),
		PendingWrites:      s.pendingWrites.Load(),
		Flushes:            s.flushes.Load(),
		AvgFlushTime:       time.Duration(s.avgFlushNanos.Load()),
		Checkpoints:        s.checkpoints.Load(),
		CheckpointFailures: s.checkpointFailures.Load(),
	}
}
