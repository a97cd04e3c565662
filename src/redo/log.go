package redo

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Blackdeer1524/redopipe/src"
	"github.com/Blackdeer1524/redopipe/src/pkg/assert"
	"github.com/Blackdeer1524/redopipe/src/pkg/common"
	"github.com/Blackdeer1524/redopipe/src/srv"
)

// Range is a reserved interval [Start, End) of the log stream.
type Range struct {
	Start common.LSN
	End   common.LSN
}

func (r Range) Len() uint64 {
	return uint64(r.End - r.Start)
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// Watermarks is a consistent snapshot of the log's progress:
// Checkpoint <= Flushed <= Written <= Reserved.
type Watermarks struct {
	Reserved   common.LSN
	Written    common.LSN
	Flushed    common.LSN
	Closed     common.LSN
	Checkpoint common.LSN
}

type Deps struct {
	File        common.LogFile
	Checkpoints common.CheckpointStore
	// DirtyPages may be nil when no page cache holds back checkpoints.
	DirtyPages common.DirtyPageTracker
	Phase      *srv.Phase
	Activity   *srv.Activity
	// CPU may be nil; spinning is then never disabled by load.
	CPU      CPUUsage
	EngineID uuid.UUID
	Logger   src.Logger
}

type failure struct {
	err error
}

// Log is the redo log pipeline. Foreground goroutines reserve ranges, copy
// their bytes into the buffer and mark them written and closed; background
// threads started by Start move the data to the file and advance the
// watermarks.
type Log struct {
	cfg      Config
	log      src.Logger
	file     common.LogFile
	store    common.CheckpointStore
	dirty    common.DirtyPageTracker
	phase    *srv.Phase
	activity *srv.Activity
	cpu      CPUUsage
	engineID uuid.UUID

	sn         atomic.Uint64
	written    atomic.Uint64
	flushed    atomic.Uint64
	checkpoint atomic.Uint64

	buffer        *logBuffer
	recentWritten *linkBuf
	recentClosed  *linkBuf

	writerEvent      event
	flusherEvent     event
	closerEvent      event
	bufferSpaceEvent event
	closedSpaceEvent event

	writeNotifier *notifier
	flushNotifier *notifier

	checkpointReq      chan struct{}
	checkpointsEnabled atomic.Bool

	failed   atomic.Pointer[failure]
	writeBuf []byte

	stats stats
}

func New(cfg Config, deps Deps) (*Log, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.File == nil {
		return nil, errors.New("redo log requires a log file")
	}
	if deps.Checkpoints == nil {
		return nil, errors.New("redo log requires a checkpoint store")
	}

	if deps.DirtyPages == nil {
		deps.DirtyPages = common.NoDirtyPages()
	}
	if deps.Phase == nil {
		deps.Phase = &srv.Phase{}
	}
	if deps.Activity == nil {
		deps.Activity = &srv.Activity{}
	}
	if deps.Logger == nil {
		deps.Logger = src.NopLogger()
	}
	if deps.EngineID == uuid.Nil {
		deps.EngineID = uuid.New()
	}

	l := &Log{
		cfg:      cfg,
		log:      deps.Logger,
		file:     deps.File,
		store:    deps.Checkpoints,
		dirty:    deps.DirtyPages,
		phase:    deps.Phase,
		activity: deps.Activity,
		cpu:      deps.CPU,
		engineID: deps.EngineID,

		buffer:        newLogBuffer(cfg.BufferSize),
		recentWritten: newLinkBuf(cfg.RecentWrittenSize, cfg.StartLSN),
		recentClosed:  newLinkBuf(cfg.RecentClosedSize, cfg.StartLSN),

		checkpointReq: make(chan struct{}, 1),
		writeBuf:      make([]byte, 0, cfg.WriteMaxSize),
	}

	start := uint64(cfg.StartLSN)
	l.sn.Store(start)
	l.written.Store(start)
	l.flushed.Store(start)
	l.checkpoint.Store(uint64(cfg.CheckpointLSN))
	l.checkpointsEnabled.Store(!cfg.CheckpointDisabled)

	l.writeNotifier = newNotifier("write", cfg.WriteEvents, &l.written, cfg.StartLSN)
	l.flushNotifier = newNotifier("flush", cfg.FlushEvents, &l.flushed, cfg.StartLSN)

	return l, nil
}

func (l *Log) EngineID() uuid.UUID {
	return l.engineID
}

func (l *Log) Config() Config {
	return l.cfg
}

func (l *Log) ReservedLSN() common.LSN {
	return common.LSN(l.sn.Load())
}

func (l *Log) WrittenLSN() common.LSN {
	return common.LSN(l.written.Load())
}

func (l *Log) FlushedLSN() common.LSN {
	return common.LSN(l.flushed.Load())
}

func (l *Log) ClosedLSN() common.LSN {
	return l.recentClosed.Tail()
}

func (l *Log) CheckpointLSN() common.LSN {
	return common.LSN(l.checkpoint.Load())
}

func (l *Log) Watermarks() Watermarks {
	var w Watermarks
	// lower watermarks first so that the snapshot stays ordered
	w.Checkpoint = l.CheckpointLSN()
	w.Flushed = l.FlushedLSN()
	w.Written = l.WrittenLSN()
	w.Reserved = l.ReservedLSN()
	w.Closed = l.ClosedLSN()
	return w
}

// Err returns the fatal I/O error that stopped the log, if any.
func (l *Log) Err() error {
	f := l.failed.Load()
	if f == nil {
		return nil
	}
	return f.err
}

func (l *Log) fail(err error) {
	f := &failure{err: fmt.Errorf("%w: %w", ErrLogFailed, err)}
	if !l.failed.CompareAndSwap(nil, f) {
		return
	}
	l.log.Errorw("redo log failed, refusing further writes", "error", err)
	l.WakeAll()
}

// abandoned is the stop condition of foreground waits.
func (l *Log) abandoned() bool {
	return l.failed.Load() != nil || l.phase.AtLeast(srv.PhaseCleanupRequested)
}

func (l *Log) abandonErr() error {
	if err := l.Err(); err != nil {
		return err
	}
	return ErrWaitAbandoned
}

// ReserveLSNRange allocates the next n bytes of the log stream. It blocks
// while the range does not fit into the log buffer or the recent-written
// ring. When that wait is abandoned the LSNs are already taken: they stay
// unwritten and the writer stops in front of them at shutdown.
func (l *Log) ReserveLSNRange(n uint64) (Range, error) {
	if err := l.Err(); err != nil {
		return Range{}, err
	}
	if l.phase.AtLeast(srv.PhaseCleanupRequested) {
		return Range{}, ErrShutdown
	}
	if n > l.cfg.BufferSize {
		return Range{}, fmt.Errorf("%w: %d bytes, buffer holds %d", ErrRecordTooLarge, n, l.cfg.BufferSize)
	}
	if n == 0 {
		cur := common.LSN(l.sn.Load())
		return Range{Start: cur, End: cur}, nil
	}

	end := common.LSN(l.sn.Add(n))
	r := Range{Start: end - common.LSN(n), End: end}
	l.stats.writeRequests.Add(1)

	fits := func() bool {
		return uint64(r.End)-l.written.Load() <= l.cfg.BufferSize &&
			l.recentWritten.hasSpace(r.Start)
	}
	if fits() {
		return r, nil
	}

	l.stats.waits.Add(1)
	ws := l.foregroundStrategy(l.cfg.WaitForWrite)
	if ws.wait(&l.bufferSpaceEvent, fits, l.abandoned) == waitStopped {
		if err := l.Err(); err != nil {
			return Range{}, err
		}
		return Range{}, ErrShutdown
	}
	return r, nil
}

// WriteToBuffer copies the bytes of a reserved range into the log buffer.
func (l *Log) WriteToBuffer(r Range, data []byte) {
	assert.Assert(uint64(len(data)) == r.Len(), "range %s got %d bytes", r, len(data))
	if r.Len() == 0 {
		return
	}
	l.buffer.write(r.Start, data)
}

// MarkWritten publishes that the bytes of r are in the buffer.
func (l *Log) MarkWritten(r Range) {
	if r.Len() == 0 {
		return
	}
	l.recentWritten.add(r.Start, r.End)
	l.writerEvent.set()
}

// MarkClosed publishes that the pages modified under r are registered as
// dirty. It blocks while the recent-closed ring is full.
func (l *Log) MarkClosed(r Range) error {
	if r.Len() == 0 {
		return nil
	}

	fits := func() bool {
		return l.recentClosed.hasSpace(r.Start)
	}
	if !fits() {
		ws := l.foregroundStrategy(l.cfg.WaitForWrite)
		if ws.wait(&l.closedSpaceEvent, fits, l.abandoned) == waitStopped {
			if err := l.Err(); err != nil {
				return err
			}
			return ErrShutdown
		}
	}

	l.recentClosed.add(r.Start, r.End)
	l.closerEvent.set()
	return nil
}

// Append runs the whole producer protocol for one record.
func (l *Log) Append(data []byte) (Range, error) {
	r, err := l.ReserveLSNRange(uint64(len(data)))
	if err != nil {
		return r, err
	}
	l.WriteToBuffer(r, data)
	l.MarkWritten(r)
	if err := l.MarkClosed(r); err != nil {
		return r, err
	}
	return r, nil
}

// WaitForWritten blocks until every byte below lsn reached the file.
func (l *Log) WaitForWritten(lsn common.LSN) error {
	reached := func() bool {
		return l.WrittenLSN() >= lsn
	}
	if reached() {
		return nil
	}

	l.stats.writtenWaits.Add(1)
	ws := l.foregroundStrategy(l.cfg.WaitForWrite)
	if ws.wait(l.writeNotifier.slot(lsn), reached, l.abandoned) == waitStopped {
		return l.abandonErr()
	}
	return nil
}

// WaitForFlushed blocks until every byte below lsn is durable.
func (l *Log) WaitForFlushed(lsn common.LSN) error {
	reached := func() bool {
		return l.FlushedLSN() >= lsn
	}
	if reached() {
		return nil
	}

	l.stats.flushedWaits.Add(1)
	l.RequestFlush()

	ws := l.foregroundStrategy(l.cfg.WaitForFlush)
	ws.spinGate = func() bool {
		return l.AvgFlushTime() <= l.cfg.FlushSpinHWM
	}
	if ws.wait(l.flushNotifier.slot(lsn), reached, l.abandoned) == waitStopped {
		return l.abandonErr()
	}
	return nil
}

// RequestFlush wakes the flusher without waiting for it.
func (l *Log) RequestFlush() {
	l.flusherEvent.set()
}

// WakeAll interrupts every sleeping waiter so it can re-check its
// condition.
func (l *Log) WakeAll() {
	l.writerEvent.set()
	l.flusherEvent.set()
	l.closerEvent.set()
	l.bufferSpaceEvent.set()
	l.closedSpaceEvent.set()
	l.writeNotifier.setAll()
	l.flushNotifier.setAll()
}

func (l *Log) foregroundStrategy(p WaitPolicy) waitStrategy {
	return waitStrategy{policy: p, cpu: l.cpu}
}

func (l *Log) backgroundStrategy(p WaitPolicy) waitStrategy {
	return waitStrategy{policy: p, cpu: l.cpu, activity: l.activity}
}

// retryIO runs fn until it succeeds or the retries run out, doubling the
// pause between attempts.
func (l *Log) retryIO(op string, fn func() error) error {
	backoff := l.cfg.IORetryBackoff

	var err error
	for attempt := 0; attempt <= l.cfg.IORetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}

		l.log.Warnw("log file operation failed", "op", op, "attempt", attempt+1, "error", err)
		if attempt < l.cfg.IORetries {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, l.cfg.IORetries+1, err)
}
