package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/Blackdeer1524/redopipe/src"
	"github.com/Blackdeer1524/redopipe/src/bufferpool"
	"github.com/Blackdeer1524/redopipe/src/pkg/common"
	"github.com/Blackdeer1524/redopipe/src/redo"
	"github.com/Blackdeer1524/redopipe/src/srv"
	"github.com/Blackdeer1524/redopipe/src/storage/checkpoint"
	"github.com/Blackdeer1524/redopipe/src/storage/disk"
)

type Deps struct {
	Fs     afero.Fs
	Logger src.Logger
	// PageWriter receives pages written back by the page cleaner. Pages are
	// discarded when nil.
	PageWriter bufferpool.PageWriter
}

// Engine owns the redo pipeline, its background threads and the thread
// pools collaborators dispatch work to.
type Engine struct {
	cfg      Config
	log      src.Logger
	engineID uuid.UUID

	file     *disk.FileLog
	store    *checkpoint.FileStore
	redo     *redo.Log
	pages    *bufferpool.Manager
	reg      *srv.Registry
	activity *srv.Activity
	cpu      *srv.CPUMonitor

	threads     redo.Threads
	purge       *srv.Pool
	pageCleaner *srv.Pool
	lru         *srv.Pool
	monitor     *srv.Handle

	purgeJobs *jobQueue
	lruJobs   *jobQueue

	shutdown     *srv.Shutdown
	shutdownOnce sync.Once
	shutdownErr  error
}

// Open starts an engine over the data directory. A persisted checkpoint and
// the existing log are resumed: new LSNs continue after both.
func Open(cfg Config, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}
	if deps.Logger == nil {
		deps.Logger = src.NopLogger()
	}

	e := &Engine{
		cfg:       cfg,
		log:       deps.Logger,
		store:     checkpoint.NewFileStore(deps.Fs, filepath.Join(cfg.DataDir, cfg.CheckpointFile)),
		pages:     bufferpool.New(deps.PageWriter, deps.Logger),
		reg:       srv.NewRegistry(deps.Logger),
		activity:  &srv.Activity{},
		cpu:       srv.NewCPUMonitor(),
		purgeJobs: newJobQueue(cfg.PurgeThreads * 4),
		lruJobs:   newJobQueue(cfg.LRUThreads * 4),
	}
	e.shutdown = srv.NewShutdown(e.reg.Phase(), e.log)
	e.shutdown.WarnEvery = cfg.ShutdownWarnEvery

	rec, ok, err := e.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	e.engineID = uuid.New()
	if ok {
		e.engineID = rec.EngineID
	}

	e.file, err = disk.Open(deps.Fs, filepath.Join(cfg.DataDir, cfg.LogFile))
	if err != nil {
		return nil, err
	}
	size, err := e.file.Size()
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to stat log file: %w", err), e.file.Close())
	}

	redoCfg := cfg.Redo
	redoCfg.StartLSN = common.LSN(max(uint64(redoCfg.StartLSN), uint64(rec.LSN), uint64(size)))
	redoCfg.CheckpointLSN = rec.LSN

	e.redo, err = redo.New(redoCfg, redo.Deps{
		File:        e.file,
		Checkpoints: e.store,
		DirtyPages:  e.pages,
		Phase:       e.reg.Phase(),
		Activity:    e.activity,
		CPU:         e.cpu,
		EngineID:    e.engineID,
		Logger:      e.log,
	})
	if err != nil {
		return nil, errors.Join(err, e.file.Close())
	}

	if err := e.start(); err != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownWarnEvery)
		defer cancel()
		return nil, errors.Join(err, e.Shutdown(ctx))
	}

	e.log.Infow(
		"engine started",
		"engine_id", e.engineID,
		"start_lsn", redoCfg.StartLSN,
		"checkpoint_lsn", redoCfg.CheckpointLSN,
		"checkpoint_found", ok,
		"data_dir", cfg.DataDir,
	)
	return e, nil
}

// start launches every thread and records its place in the shutdown graph.
// On failure the graph holds exactly the threads that were started.
func (e *Engine) start() (err error) {
	e.purge, err = e.reg.NewPool(PoolPurge, e.cfg.PurgeThreads, e.purgeJobs.coordinator)
	if err != nil {
		return err
	}
	if err := e.shutdown.Add(e.purge); err != nil {
		return err
	}

	e.pageCleaner, err = e.reg.NewPool(PoolPageCleaner, e.cfg.PageCleanerThreads, e.cleanerCoordinator)
	if err != nil {
		return err
	}
	if err := e.shutdown.Add(e.pageCleaner); err != nil {
		return err
	}

	e.lru, err = e.reg.NewPool(PoolLRU, e.cfg.LRUThreads, e.lruJobs.coordinator)
	if err != nil {
		return err
	}
	if err := e.shutdown.Add(e.lru); err != nil {
		return err
	}

	e.threads = e.redo.Start(e.reg)
	if err := e.threads.RegisterShutdown(e.shutdown, PoolPurge, PoolPageCleaner, PoolLRU); err != nil {
		return err
	}

	e.monitor = e.reg.Go(ThreadMonitor, nil, func(h *srv.Handle) {
		e.cpu.RunMonitor(h, e.cfg.MonitorEvery, e.reportStats)
	})
	return e.shutdown.Add(
		e.monitor,
		redo.ThreadWriteNotifier,
		redo.ThreadFlushNotifier,
		redo.ThreadCheckpointer,
	)
}

func (e *Engine) EngineID() uuid.UUID {
	return e.engineID
}

func (e *Engine) Registry() *srv.Registry {
	return e.reg
}

func (e *Engine) DirtyPages() *bufferpool.Manager {
	return e.pages
}

func (e *Engine) Log() *redo.Log {
	return e.redo
}

func (e *Engine) ReserveLSNRange(n uint64) (redo.Range, error) {
	return e.redo.ReserveLSNRange(n)
}

func (e *Engine) WriteToBuffer(r redo.Range, data []byte) {
	e.redo.WriteToBuffer(r, data)
}

func (e *Engine) MarkWritten(r redo.Range) {
	e.redo.MarkWritten(r)
}

// MarkPagesDirty registers the pages modified under r. Call it after
// MarkWritten and before MarkClosed.
func (e *Engine) MarkPagesDirty(r redo.Range, pages ...common.PageIdentity) {
	for _, p := range pages {
		e.pages.MarkDirty(p, r.Start, r.End)
	}
}

func (e *Engine) MarkClosed(r redo.Range) error {
	return e.redo.MarkClosed(r)
}

// Append commits one mini-transaction: its record and the pages it
// modified.
func (e *Engine) Append(data []byte, pages ...common.PageIdentity) (redo.Range, error) {
	r, err := e.redo.ReserveLSNRange(uint64(len(data)))
	if err != nil {
		return r, err
	}

	e.redo.WriteToBuffer(r, data)
	e.redo.MarkWritten(r)
	e.MarkPagesDirty(r, pages...)
	if err := e.redo.MarkClosed(r); err != nil {
		return r, err
	}

	e.activity.Inc()
	return r, nil
}

func (e *Engine) WaitForWritten(lsn common.LSN) error {
	return e.redo.WaitForWritten(lsn)
}

func (e *Engine) WaitForFlushed(lsn common.LSN) error {
	return e.redo.WaitForFlushed(lsn)
}

func (e *Engine) CurrentCheckpointLSN() common.LSN {
	return e.redo.CheckpointLSN()
}

func (e *Engine) RequestCheckpoint() {
	e.redo.RequestCheckpoint()
}

func (e *Engine) SetCheckpointsEnabled(enabled bool) {
	e.redo.SetCheckpointsEnabled(enabled)
}

// NotifyActivity marks the server as busy for the idle heuristics of the
// background threads.
func (e *Engine) NotifyActivity() {
	e.activity.Inc()
}

func (e *Engine) Watermarks() redo.Watermarks {
	return e.redo.Watermarks()
}

func (e *Engine) PurgePool() *srv.Pool {
	return e.purge
}

func (e *Engine) PageCleanerPool() *srv.Pool {
	return e.pageCleaner
}

func (e *Engine) LRUPool() *srv.Pool {
	return e.lru
}

func (e *Engine) SubmitPurge(job func()) error {
	return e.purgeJobs.submit(e.reg.Phase(), job)
}

func (e *Engine) SubmitLRU(job func()) error {
	return e.lruJobs.submit(e.reg.Phase(), job)
}

// RequestShutdown refuses new work and wakes every foreground waiter. It
// does not wait for the background threads.
func (e *Engine) RequestShutdown() {
	if e.reg.Phase().Advance(srv.PhaseCleanupRequested) {
		e.log.Infow("shutdown requested")
	}
	e.redo.WakeAll()
}

// Shutdown stops every thread in dependency order and closes the log file.
// Calls after the first return its result.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.shutdownOnce.Do(func() {
		e.RequestShutdown()

		err := e.shutdown.Run(ctx)
		if err != nil {
			e.log.Errorw("shutdown did not complete", "active", e.reg.Active(), "error", err)
			e.shutdownErr = err
			return
		}

		e.shutdownErr = e.file.Close()
		e.log.Infow(
			"engine stopped",
			"checkpoint_lsn", e.redo.CheckpointLSN(),
			"flushed_lsn", e.redo.FlushedLSN(),
		)
	})
	return e.shutdownErr
}

func (e *Engine) IsShutdownComplete() bool {
	return e.reg.Phase().Get() == srv.PhaseStopped
}
