package redo

import (
	"fmt"
	"time"

	"github.com/Blackdeer1524/redopipe/src/pkg/assert"
	"github.com/Blackdeer1524/redopipe/src/pkg/common"
	"github.com/Blackdeer1524/redopipe/src/srv"
)

// CheckpointTarget is the LSN a checkpoint taken now would record: nothing
// below it is needed for recovery.
func (l *Log) CheckpointTarget() common.LSN {
	target := common.MinLSN(l.FlushedLSN(), l.ClosedLSN())
	if oldest, ok := l.dirty.OldestModification(); ok {
		target = common.MinLSN(target, oldest)
	}
	return target
}

// Checkpoint persists the current checkpoint target if it is ahead of the
// last persisted one and reports whether the checkpoint LSN moved.
func (l *Log) Checkpoint() (bool, error) {
	target := l.CheckpointTarget()
	current := l.CheckpointLSN()
	if target <= current {
		return false, nil
	}

	rec := common.CheckpointRecord{
		LSN:       target,
		EngineID:  l.engineID,
		CreatedAt: time.Now(),
	}
	if err := l.store.Store(rec); err != nil {
		l.stats.checkpointFailures.Add(1)
		return false, fmt.Errorf("failed to persist checkpoint at %s: %w", target, err)
	}

	assert.Assert(target <= l.FlushedLSN(), "checkpoint %d ahead of flushed %d", target, l.FlushedLSN())
	l.checkpoint.Store(uint64(target))
	l.stats.checkpoints.Add(1)
	l.log.Debugw("checkpoint written", "lsn", target, "previous", current)
	return true, nil
}

// RequestCheckpoint makes the checkpointer run before its next period
// elapses. It does not wait for the checkpoint.
func (l *Log) RequestCheckpoint() {
	select {
	case l.checkpointReq <- struct{}{}:
	default:
	}
}

func (l *Log) SetCheckpointsEnabled(enabled bool) {
	l.checkpointsEnabled.Store(enabled)
}

func (l *Log) CheckpointsEnabled() bool {
	return l.checkpointsEnabled.Load()
}

func (l *Log) checkpointerThread(h *srv.Handle) {
	every := l.cfg.CheckpointEvery
	if every <= 0 {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	lastActivity := l.activity.Get()
	for !h.StopRequested() {
		forced := false
		select {
		case <-ticker.C:
		case <-l.checkpointReq:
			forced = true
		case <-h.WakeCh():
			continue
		}

		if !forced {
			if !l.CheckpointsEnabled() {
				continue
			}
			if !l.activity.Changed(lastActivity) && l.CheckpointTarget() <= l.CheckpointLSN() {
				continue
			}
		}
		lastActivity = l.activity.Get()

		if _, err := l.Checkpoint(); err != nil {
			l.log.Warnw("checkpoint failed, retrying next period", "error", err)
		}
	}

	if !l.CheckpointsEnabled() {
		return
	}
	if _, err := l.Checkpoint(); err != nil {
		l.log.Warnw("final checkpoint failed", "error", err)
	}
}
