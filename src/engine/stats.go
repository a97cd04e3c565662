package engine

import (
	"github.com/Blackdeer1524/redopipe/src/redo"
)

type Stats struct {
	Redo       redo.Stats
	Watermarks redo.Watermarks
	DirtyPages int
	CPUPercent float64

	PurgeTasks       uint64
	PageCleanerTasks uint64
	LRUTasks         uint64

	ActiveThreads []string
}

func (e *Engine) Stats() Stats {
	s := Stats{
		Redo:          e.redo.Stats(),
		Watermarks:    e.redo.Watermarks(),
		DirtyPages:    e.pages.Len(),
		CPUPercent:    e.cpu.Percent(),
		ActiveThreads: e.reg.Active(),
	}
	if e.purge != nil {
		s.PurgeTasks = e.purge.Executed()
	}
	if e.pageCleaner != nil {
		s.PageCleanerTasks = e.pageCleaner.Executed()
	}
	if e.lru != nil {
		s.LRUTasks = e.lru.Executed()
	}
	return s
}

func (e *Engine) reportStats() {
	s := e.Stats()
	e.log.Debugw(
		"engine stats",
		"cpu_pct", s.CPUPercent,
		"reserved_lsn", s.Watermarks.Reserved,
		"written_lsn", s.Watermarks.Written,
		"flushed_lsn", s.Watermarks.Flushed,
		"closed_lsn", s.Watermarks.Closed,
		"checkpoint_lsn", s.Watermarks.Checkpoint,
		"log_write_requests", s.Redo.WriteRequests,
		"log_writes", s.Redo.Writes,
		"os_log_written", s.Redo.BytesWritten,
		"os_log_pending_writes", s.Redo.PendingWrites,
		"log_waits", s.Redo.Waits,
		"avg_flush_time", s.Redo.AvgFlushTime,
		"dirty_pages", s.DirtyPages,
	)
}
