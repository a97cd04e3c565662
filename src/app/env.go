package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/Blackdeer1524/redopipe/src/engine"
	"github.com/Blackdeer1524/redopipe/src/redo"
)

const envPrefix = "REDO"

const (
	EnvDev  = "dev"
	EnvProd = "prod"
)

type envVars struct {
	Environment string `envconfig:"ENVIRONMENT" default:"dev"`
	DataDir     string `envconfig:"DATA_DIR" default:"data"`

	BufferSize        uint64 `envconfig:"BUFFER_SIZE" default:"16777216"`
	RecentWrittenSize uint64 `envconfig:"RECENT_WRITTEN_SIZE" default:"1048576"`
	RecentClosedSize  uint64 `envconfig:"RECENT_CLOSED_SIZE" default:"2097152"`
	WriteMaxSize      uint64 `envconfig:"WRITE_MAX_SIZE" default:"4096"`
	WriteEvents       uint64 `envconfig:"WRITE_EVENTS" default:"2048"`
	FlushEvents       uint64 `envconfig:"FLUSH_EVENTS" default:"2048"`

	WriterSpinDelay  int           `envconfig:"WRITER_SPIN_DELAY" default:"2500"`
	WriterTimeout    time.Duration `envconfig:"WRITER_TIMEOUT" default:"1ms"`
	FlusherSpinDelay int           `envconfig:"FLUSHER_SPIN_DELAY" default:"2500"`
	FlusherTimeout   time.Duration `envconfig:"FLUSHER_TIMEOUT" default:"1ms"`
	NotifierTimeout  time.Duration `envconfig:"NOTIFIER_TIMEOUT" default:"1ms"`
	CloserTimeout    time.Duration `envconfig:"CLOSER_TIMEOUT" default:"1ms"`
	MaxIdleTimeout   time.Duration `envconfig:"MAX_IDLE_TIMEOUT" default:"100ms"`
	WaitSpinDelay    int           `envconfig:"WAIT_SPIN_DELAY" default:"2500"`
	WaitTimeout      time.Duration `envconfig:"WAIT_TIMEOUT" default:"10ms"`
	CPUHighWater     float64       `envconfig:"CPU_HIGH_WATER" default:"50"`
	FlushSpinHWM     time.Duration `envconfig:"FLUSH_SPIN_HWM" default:"400us"`

	CheckpointEvery    time.Duration `envconfig:"CHECKPOINT_EVERY" default:"1s"`
	CheckpointDisabled bool          `envconfig:"CHECKPOINT_DISABLED" default:"false"`
	IORetries          int           `envconfig:"IO_RETRIES" default:"3"`
	IORetryBackoff     time.Duration `envconfig:"IO_RETRY_BACKOFF" default:"10ms"`

	PurgeThreads       int           `envconfig:"PURGE_THREADS" default:"4"`
	PageCleanerThreads int           `envconfig:"PAGE_CLEANER_THREADS" default:"4"`
	LRUThreads         int           `envconfig:"LRU_THREADS" default:"1"`
	MonitorEvery       time.Duration `envconfig:"MONITOR_EVERY" default:"1s"`
}

// loadEnv reads the optional dotenv files (".env" when none are given) and
// then the REDO_* environment. Variables already set win over dotenv ones.
func loadEnv(files ...string) (envVars, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return envVars{}, fmt.Errorf("failed to load dotenv: %w", err)
	}

	var env envVars
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return envVars{}, fmt.Errorf("failed to process env: %w", err)
	}

	if env.Environment != EnvDev && env.Environment != EnvProd {
		return envVars{}, fmt.Errorf("unknown environment %q", env.Environment)
	}
	return env, nil
}

func mustLoadEnv() envVars {
	env, err := loadEnv()
	if err != nil {
		panic(err)
	}
	return env
}

func (e envVars) EngineConfig() engine.Config {
	background := func(spin int, timeout time.Duration) redo.WaitPolicy {
		return redo.WaitPolicy{
			SpinDelay:    spin,
			CPUHighWater: e.CPUHighWater,
			Timeout:      timeout,
			MaxTimeout:   e.MaxIdleTimeout,
		}
	}
	foreground := redo.WaitPolicy{
		SpinDelay:    e.WaitSpinDelay,
		CPUHighWater: e.CPUHighWater,
		Timeout:      e.WaitTimeout,
	}

	cfg := engine.DefaultConfig()
	cfg.DataDir = e.DataDir
	cfg.PurgeThreads = e.PurgeThreads
	cfg.PageCleanerThreads = e.PageCleanerThreads
	cfg.LRUThreads = e.LRUThreads
	cfg.MonitorEvery = e.MonitorEvery

	cfg.Redo = redo.Config{
		BufferSize:         e.BufferSize,
		RecentWrittenSize:  e.RecentWrittenSize,
		RecentClosedSize:   e.RecentClosedSize,
		WriteMaxSize:       e.WriteMaxSize,
		WriteEvents:        e.WriteEvents,
		FlushEvents:        e.FlushEvents,
		Writer:             background(e.WriterSpinDelay, e.WriterTimeout),
		Flusher:            background(e.FlusherSpinDelay, e.FlusherTimeout),
		WriteNotifier:      background(0, e.NotifierTimeout),
		FlushNotifier:      background(0, e.NotifierTimeout),
		Closer:             background(0, e.CloserTimeout),
		WaitForWrite:       foreground,
		WaitForFlush:       foreground,
		FlushSpinHWM:       e.FlushSpinHWM,
		CheckpointEvery:    e.CheckpointEvery,
		CheckpointDisabled: e.CheckpointDisabled,
		IORetries:          e.IORetries,
		IORetryBackoff:     e.IORetryBackoff,
	}
	return cfg
}
