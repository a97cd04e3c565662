package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Blackdeer1524/redopipe/src/app"
	"github.com/Blackdeer1524/redopipe/src/engine"
	"github.com/Blackdeer1524/redopipe/src/pkg/common"
	"github.com/Blackdeer1524/redopipe/src/redo"
	"github.com/Blackdeer1524/redopipe/src/storage/checkpoint"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "redopipe",
		Short:        "Concurrent redo log pipeline",
		SilenceUsage: true,
	}
	root.AddCommand(runCmd(), checkpointCmd())
	return root
}

func runCmd() *cobra.Command {
	var (
		writers    int
		duration   time.Duration
		recordSize int
		pages      uint64
		durable    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the engine and drive it with concurrent writers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if writers <= 0 || recordSize <= 0 || pages == 0 {
				return errors.New("writers, record size and pages must be positive")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ep := &app.Entrypoint{}
			if err := ep.Init(ctx); err != nil {
				return err
			}

			err := drive(ctx, ep.Engine(), writers, duration, recordSize, pages, durable)
			printStats(cmd, ep.Engine().Stats())
			return errors.Join(err, ep.Close())
		},
	}

	cmd.Flags().IntVar(&writers, "writers", 8, "number of concurrent writer goroutines")
	cmd.Flags().DurationVar(&duration, "duration", 5*time.Second, "how long to write")
	cmd.Flags().IntVar(&recordSize, "record-size", 128, "bytes per record")
	cmd.Flags().Uint64Var(&pages, "pages", 1024, "number of distinct pages records modify")
	cmd.Flags().BoolVar(&durable, "durable", false, "wait for every record to be flushed")
	return cmd
}

func drive(
	ctx context.Context,
	e *engine.Engine,
	writers int,
	duration time.Duration,
	recordSize int,
	pages uint64,
	durable bool,
) error {
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for w := range writers {
		g.Go(func() error {
			record := make([]byte, recordSize)
			for i := uint64(0); ctx.Err() == nil; i++ {
				record[0] = byte(w)
				page := common.PageIdentity{FileID: 1, PageID: common.PageID((uint64(w)*7919 + i) % pages)}

				r, err := e.Append(record, page)
				if errors.Is(err, redo.ErrShutdown) {
					return nil
				}
				if err != nil {
					return err
				}

				if !durable {
					continue
				}
				if err := e.WaitForFlushed(r.End); err != nil && !errors.Is(err, redo.ErrWaitAbandoned) {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func printStats(cmd *cobra.Command, s engine.Stats) {
	out := cmd.OutOrStdout()
	w := s.Watermarks
	fmt.Fprintf(out, "reserved=%d written=%d flushed=%d closed=%d checkpoint=%d\n",
		w.Reserved, w.Written, w.Flushed, w.Closed, w.Checkpoint)
	fmt.Fprintf(out, "write requests=%d writes=%d bytes=%d waits=%d flushes=%d avg flush=%s\n",
		s.Redo.WriteRequests, s.Redo.Writes, s.Redo.BytesWritten, s.Redo.Waits, s.Redo.Flushes, s.Redo.AvgFlushTime)
	fmt.Fprintf(out, "checkpoints=%d failed=%d dirty pages=%d page writes=%d cpu=%.1f%%\n",
		s.Redo.Checkpoints, s.Redo.CheckpointFailures, s.DirtyPages, s.PageCleanerTasks, s.CPUPercent)
}

func checkpointCmd() *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Print the persisted checkpoint record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := filepath.Join(dataDir, engine.DefaultConfig().CheckpointFile)
			rec, ok, err := checkpoint.NewFileStore(afero.NewOsFs(), path).Load()
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "no checkpoint in %s\n", dataDir)
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "lsn=%d engine=%s created=%s\n",
				uint64(rec.LSN), rec.EngineID, rec.CreatedAt.Format(time.RFC3339Nano))
			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", engine.DefaultConfig().DataDir, "engine data directory")
	return cmd
}
