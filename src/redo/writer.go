package redo

import (
	"github.com/Blackdeer1524/redopipe/src/pkg/assert"
	"github.com/Blackdeer1524/redopipe/src/pkg/common"
	"github.com/Blackdeer1524/redopipe/src/srv"
)

func (l *Log) writerThread(h *srv.Handle) {
	ws := l.backgroundStrategy(l.cfg.Writer)
	stop := func() bool {
		return h.StopRequested() || l.failed.Load() != nil
	}

	for ws.wait(&l.writerEvent, l.recentWritten.hasNext, stop) == waitSatisfied {
		if _, err := l.writeNext(); err != nil {
			return
		}
	}

	// producers are gone by now, write out what they left behind
	for l.failed.Load() == nil {
		progressed, err := l.writeNext()
		if err != nil || !progressed {
			return
		}
	}
}

// writeNext writes the longest contiguous run of completed ranges starting
// at the written watermark, capped at WriteMaxSize unless the first range
// alone is longer.
func (l *Log) writeNext() (bool, error) {
	start := l.WrittenLSN()
	end, ok := l.recentWritten.advanceTail(start + common.LSN(l.cfg.WriteMaxSize))
	if !ok {
		return false, nil
	}
	assert.Assert(end > start, "writer moved from %d to %d", start, end)

	data := l.buffer.read(start, end, l.writeBuf[:0])
	if cap(data) > cap(l.writeBuf) {
		l.writeBuf = data[:0]
	}

	l.stats.pendingWrites.Add(1)
	err := l.retryIO("write", func() error {
		_, err := l.file.WriteAt(data, int64(start))
		return err
	})
	l.stats.pendingWrites.Add(-1)
	if err != nil {
		l.fail(err)
		return false, err
	}

	l.written.Store(uint64(end))
	l.stats.writes.Add(1)
	l.stats.bytesWritten.Add(uint64(end - start))

	l.bufferSpaceEvent.set()
	l.writeNotifier.wake.set()
	l.flusherEvent.set()
	return true, nil
}
