package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/Blackdeer1524/redopipe/src/redo"
)

var ErrInvalidConfig = errors.New("invalid engine config")

type Config struct {
	Redo redo.Config

	DataDir        string
	LogFile        string
	CheckpointFile string

	PurgeThreads       int
	PageCleanerThreads int
	LRUThreads         int

	PageCleanerEvery time.Duration
	PageCleanerBatch int

	MonitorEvery      time.Duration
	ShutdownWarnEvery time.Duration
}

func DefaultConfig() Config {
	return Config{
		Redo:               redo.DefaultConfig(),
		DataDir:            "data",
		LogFile:            "redo.log",
		CheckpointFile:     "checkpoint",
		PurgeThreads:       4,
		PageCleanerThreads: 4,
		LRUThreads:         1,
		PageCleanerEvery:   time.Second,
		PageCleanerBatch:   200,
		MonitorEvery:       time.Second,
		ShutdownWarnEvery:  10 * time.Second,
	}
}

func (c Config) Validate() error {
	if err := c.Redo.Validate(); err != nil {
		return err
	}

	switch {
	case c.LogFile == "":
		return fmt.Errorf("%w: log file name is empty", ErrInvalidConfig)
	case c.CheckpointFile == "":
		return fmt.Errorf("%w: checkpoint file name is empty", ErrInvalidConfig)
	case c.LogFile == c.CheckpointFile:
		return fmt.Errorf("%w: log and checkpoint share file %q", ErrInvalidConfig, c.LogFile)
	case c.PurgeThreads <= 0 || c.PageCleanerThreads <= 0 || c.LRUThreads <= 0:
		return fmt.Errorf(
			"%w: thread pools need at least one thread (purge %d, page cleaner %d, lru %d)",
			ErrInvalidConfig,
			c.PurgeThreads,
			c.PageCleanerThreads,
			c.LRUThreads,
		)
	case c.PageCleanerEvery <= 0 || c.MonitorEvery <= 0:
		return fmt.Errorf("%w: periods must be positive", ErrInvalidConfig)
	case c.ShutdownWarnEvery <= 0:
		return fmt.Errorf("%w: shutdown warn period must be positive", ErrInvalidConfig)
	}
	return nil
}
