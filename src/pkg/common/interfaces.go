package common

import (
	"time"

	"github.com/google/uuid"
)

// LogFile is the durable-storage primitive the writer and the flusher drain
// the log buffer into. Offsets are logical LSNs.
type LogFile interface {
	WriteAt(p []byte, off int64) (int, error)
	Sync() error
	Close() error
}

// CheckpointRecord is what the checkpointer persists. All data below LSN is
// recoverable without replaying earlier log.
type CheckpointRecord struct {
	LSN       LSN
	EngineID  uuid.UUID
	CreatedAt time.Time
}

type CheckpointStore interface {
	// Load returns the last persisted record. ok is false when nothing
	// has been persisted yet.
	Load() (rec CheckpointRecord, ok bool, err error)
	Store(rec CheckpointRecord) error
}

// DirtyPageTracker reports the oldest modification LSN among pages that are
// still waiting on the flush lists. ok is false when nothing is dirty.
type DirtyPageTracker interface {
	OldestModification() (lsn LSN, ok bool)
}
