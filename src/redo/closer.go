package redo

import (
	"math"

	"github.com/Blackdeer1524/redopipe/src/pkg/common"
	"github.com/Blackdeer1524/redopipe/src/srv"
)

func (l *Log) closerThread(h *srv.Handle) {
	ws := l.backgroundStrategy(l.cfg.Closer)

	for {
		res := ws.wait(&l.closerEvent, l.recentClosed.hasNext, h.StopRequested)
		l.advanceClosed()
		if res == waitStopped {
			return
		}
	}
}

// advanceClosed moves the closed watermark over every contiguous closed
// range. Unlike the written watermark it is not capped.
func (l *Log) advanceClosed() bool {
	_, ok := l.recentClosed.advanceTail(common.LSN(math.MaxUint64))
	if ok {
		l.closedSpaceEvent.set()
	}
	return ok
}
