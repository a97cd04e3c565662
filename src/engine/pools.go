package engine

import (
	"runtime"
	"sync"
	"time"

	"github.com/Blackdeer1524/redopipe/src/redo"
	"github.com/Blackdeer1524/redopipe/src/srv"
)

const (
	PoolPurge       = "purge"
	PoolPageCleaner = "page_cleaner"
	PoolLRU         = "lru_manager"
	ThreadMonitor   = "monitor"
)

// jobQueue feeds a pool coordinator. Once closed it refuses new jobs, and
// every job accepted before that is dispatched.
type jobQueue struct {
	mu     sync.RWMutex
	closed bool
	jobs   chan func()
}

func newJobQueue(size int) *jobQueue {
	return &jobQueue{jobs: make(chan func(), size)}
}

func (q *jobQueue) submit(phase *srv.Phase, job func()) error {
	if phase.AtLeast(srv.PhaseCleanupRequested) {
		return redo.ErrShutdown
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return redo.ErrShutdown
	}
	q.jobs <- job
	return nil
}

func (q *jobQueue) dispatchPending(pc *srv.PoolContext) {
	for {
		select {
		case job := <-q.jobs:
			pc.Dispatch(job)
		default:
			return
		}
	}
}

// coordinator hands queued jobs to the pool members.
func (q *jobQueue) coordinator(pc *srv.PoolContext) {
	for !pc.StopRequested() {
		select {
		case job := <-q.jobs:
			pc.Dispatch(job)
		case <-pc.Handle().WakeCh():
		}
	}

	// submitters blocked on a full queue hold the read lock
	for !q.mu.TryLock() {
		q.dispatchPending(pc)
		runtime.Gosched()
	}
	q.closed = true
	q.mu.Unlock()

	q.dispatchPending(pc)
}

// cleanerCoordinator writes back dirty pages whose log is durable, oldest first,
// so that the checkpoint can move past them.
func (e *Engine) cleanerCoordinator(pc *srv.PoolContext) {
	ticker := time.NewTicker(e.cfg.PageCleanerEvery)
	defer ticker.Stop()

	for !pc.StopRequested() {
		select {
		case <-ticker.C:
		case <-pc.Handle().WakeCh():
			continue
		}
		e.cleanPages(pc, e.cfg.PageCleanerBatch)
	}

	e.cleanPages(pc, 0)
}

func (e *Engine) cleanPages(pc *srv.PoolContext, batch int) {
	flushed := e.redo.FlushedLSN()
	for _, pIdent := range e.pages.FlushCandidates(flushed, batch) {
		pc.Dispatch(func() {
			if _, err := e.pages.FlushPage(pIdent, flushed); err != nil {
				e.log.Warnw("failed to write back dirty page", "page", pIdent, "error", err)
			}
		})
	}
	pc.RunPending()
}
