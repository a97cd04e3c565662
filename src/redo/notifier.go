package redo

import (
	"sync/atomic"

	"github.com/Blackdeer1524/redopipe/src/pkg/common"
	"github.com/Blackdeer1524/redopipe/src/srv"
)

// notifier wakes goroutines waiting for a watermark. Waiters for LSN l sleep
// on the event of l's block, so waiters of unrelated blocks are left alone.
type notifier struct {
	name      string
	events    []event
	mask      uint64
	watermark *atomic.Uint64

	// wake is set by the thread that moves the watermark.
	wake event
	// lastNotified is owned by the notifier thread.
	lastNotified common.LSN
}

func newNotifier(name string, n uint64, watermark *atomic.Uint64, start common.LSN) *notifier {
	return &notifier{
		name:         name,
		events:       make([]event, n),
		mask:         n - 1,
		watermark:    watermark,
		lastNotified: start,
	}
}

func (n *notifier) slot(lsn common.LSN) *event {
	return &n.events[lsn.Block()&n.mask]
}

func (n *notifier) behind() bool {
	return common.LSN(n.watermark.Load()) > n.lastNotified
}

// notifyUpTo wakes the waiters of every block in (lastNotified, lsn].
func (n *notifier) notifyUpTo(lsn common.LSN) int {
	if lsn <= n.lastNotified {
		return 0
	}

	first := (n.lastNotified + 1).Block()
	last := lsn.Block()
	n.lastNotified = lsn

	if last-first+1 >= uint64(len(n.events)) {
		n.setAll()
		return len(n.events)
	}

	for b := first; b <= last; b++ {
		n.events[b&n.mask].set()
	}
	return int(last - first + 1)
}

func (n *notifier) setAll() {
	for i := range n.events {
		n.events[i].set()
	}
}

func (n *notifier) run(h *srv.Handle, ws waitStrategy) {
	for {
		res := ws.wait(&n.wake, n.behind, h.StopRequested)
		n.notifyUpTo(common.LSN(n.watermark.Load()))
		if res == waitStopped {
			// nothing will move the watermark anymore
			n.setAll()
			return
		}
	}
}
