package redo

import (
	"fmt"
	"time"

	"github.com/Blackdeer1524/redopipe/src/pkg/common"
	"github.com/Blackdeer1524/redopipe/src/pkg/utils"
)

// WaitPolicy tunes the spin-then-sleep loop of one kind of waiter.
type WaitPolicy struct {
	// SpinDelay is the number of busy polls before the first sleep.
	SpinDelay int
	// CPUHighWater disables spinning while the process uses more than this
	// percentage of the machine. Zero never disables it.
	CPUHighWater float64
	// Timeout bounds a single sleep.
	Timeout time.Duration
	// MaxTimeout lets idle background threads double their sleep up to this
	// value. Values not above Timeout disable the relaxation.
	MaxTimeout time.Duration
}

type Config struct {
	StartLSN common.LSN
	// CheckpointLSN is the last persisted checkpoint. It must not be above
	// StartLSN.
	CheckpointLSN common.LSN

	BufferSize        uint64
	RecentWrittenSize uint64
	RecentClosedSize  uint64
	WriteMaxSize      uint64
	WriteEvents       uint64
	FlushEvents       uint64

	Writer        WaitPolicy
	Flusher       WaitPolicy
	WriteNotifier WaitPolicy
	FlushNotifier WaitPolicy
	Closer        WaitPolicy
	WaitForWrite  WaitPolicy
	WaitForFlush  WaitPolicy

	// FlushSpinHWM is the average flush time above which flush waiters go
	// to sleep right away.
	FlushSpinHWM time.Duration

	CheckpointEvery    time.Duration
	CheckpointDisabled bool

	IORetries      int
	IORetryBackoff time.Duration
}

func DefaultConfig() Config {
	const cpuHWM = 50

	background := func(spin int) WaitPolicy {
		return WaitPolicy{
			SpinDelay:    spin,
			CPUHighWater: cpuHWM,
			Timeout:      time.Millisecond,
			MaxTimeout:   100 * time.Millisecond,
		}
	}

	return Config{
		StartLSN:          0,
		BufferSize:        16 << 20,
		RecentWrittenSize: 1 << 20,
		RecentClosedSize:  2 << 20,
		WriteMaxSize:      4096,
		WriteEvents:       2048,
		FlushEvents:       2048,

		Writer:        background(2500),
		Flusher:       background(2500),
		WriteNotifier: background(0),
		FlushNotifier: background(0),
		Closer:        background(0),
		WaitForWrite: WaitPolicy{
			SpinDelay:    2500,
			CPUHighWater: cpuHWM,
			Timeout:      10 * time.Millisecond,
		},
		WaitForFlush: WaitPolicy{
			SpinDelay:    2500,
			CPUHighWater: cpuHWM,
			Timeout:      10 * time.Millisecond,
		},
		FlushSpinHWM: 400 * time.Microsecond,

		CheckpointEvery:    time.Second,
		CheckpointDisabled: false,

		IORetries:      3,
		IORetryBackoff: 10 * time.Millisecond,
	}
}

func (c Config) Validate() error {
	pow2 := map[string]uint64{
		"buffer size":         c.BufferSize,
		"recent written size": c.RecentWrittenSize,
		"recent closed size":  c.RecentClosedSize,
		"write events":        c.WriteEvents,
		"flush events":        c.FlushEvents,
	}
	for name, v := range pow2 {
		if !utils.IsPowerOfTwo(v) {
			return fmt.Errorf("%w: %s must be a power of two, got %d", ErrInvalidConfig, name, v)
		}
	}

	if c.CheckpointLSN > c.StartLSN {
		return fmt.Errorf(
			"%w: checkpoint lsn %d is above start lsn %d",
			ErrInvalidConfig,
			c.CheckpointLSN,
			c.StartLSN,
		)
	}
	if c.WriteMaxSize == 0 {
		return fmt.Errorf("%w: write max size must be positive", ErrInvalidConfig)
	}
	if c.IORetries < 0 {
		return fmt.Errorf("%w: io retries must not be negative", ErrInvalidConfig)
	}

	policies := map[string]WaitPolicy{
		"writer":         c.Writer,
		"flusher":        c.Flusher,
		"write notifier": c.WriteNotifier,
		"flush notifier": c.FlushNotifier,
		"closer":         c.Closer,
		"wait for write": c.WaitForWrite,
		"wait for flush": c.WaitForFlush,
	}
	for name, p := range policies {
		if p.Timeout <= 0 {
			return fmt.Errorf("%w: %s timeout must be positive", ErrInvalidConfig, name)
		}
		if p.SpinDelay < 0 {
			return fmt.Errorf("%w: %s spin delay must not be negative", ErrInvalidConfig, name)
		}
	}

	if !c.CheckpointDisabled && c.CheckpointEvery <= 0 {
		return fmt.Errorf("%w: checkpoint period must be positive", ErrInvalidConfig)
	}
	return nil
}
