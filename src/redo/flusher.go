package redo

import (
	"time"

	"github.com/Blackdeer1524/redopipe/src/pkg/assert"
	"github.com/Blackdeer1524/redopipe/src/srv"
)

// weight of the newest sample in the average flush time, in 1/8ths
const flushTimeWeight = 1

func (l *Log) flusherThread(h *srv.Handle) {
	ws := l.backgroundStrategy(l.cfg.Flusher)
	stop := func() bool {
		return h.StopRequested() || l.failed.Load() != nil
	}

	for ws.wait(&l.flusherEvent, l.hasUnflushed, stop) == waitSatisfied {
		if err := l.flush(); err != nil {
			return
		}
	}

	// the writer has exited, make its last writes durable
	for l.failed.Load() == nil && l.hasUnflushed() {
		if err := l.flush(); err != nil {
			return
		}
	}
}

func (l *Log) hasUnflushed() bool {
	return l.written.Load() > l.flushed.Load()
}

// flush makes everything written so far durable.
func (l *Log) flush() error {
	target := l.written.Load()
	if target <= l.flushed.Load() {
		return nil
	}

	begin := time.Now()
	if err := l.retryIO("sync", l.file.Sync); err != nil {
		l.fail(err)
		return err
	}
	elapsed := time.Since(begin)

	assert.Assert(target <= l.written.Load(), "flushed %d beyond written %d", target, l.written.Load())
	l.flushed.Store(target)
	l.stats.flushes.Add(1)
	l.recordFlushTime(elapsed)

	l.flushNotifier.wake.set()
	return nil
}

func (l *Log) recordFlushTime(d time.Duration) {
	prev := l.stats.avgFlushNanos.Load()
	if prev == 0 {
		l.stats.avgFlushNanos.Store(int64(d))
		return
	}
	l.stats.avgFlushNanos.Store((prev*(8-flushTimeWeight) + int64(d)*flushTimeWeight) / 8)
}

func (l *Log) AvgFlushTime() time.Duration {
	return time.Duration(l.stats.avgFlushNanos.Load())
}
